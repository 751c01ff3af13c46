// Package effects implements the video effect pipeline attachment: wrapping a
// raw camera source with an ordered set of frame-processing stages before the
// composite device is handed to the media transport.
//
// The package does not implement per-pixel algorithms. Segmentation, edge
// detection, and stylization are external capabilities plugged in through the
// FrameProcessor interface; this package owns stage ordering, graceful
// degradation while a processor is still initializing, and reuse of the
// underlying capture stream across stage changes.
//
// # Stage Ordering
//
// Background/segmentation stages must operate on the unmodified camera frame,
// so a TransformDevice always runs stages implementing BackgroundStage before
// any stylization stage, regardless of the order they were supplied in.
//
// # Usage
//
//	vb := effects.NewVirtualBackground(effects.KindBlur, effects.BackgroundQualityDefault)
//	dev, err := effects.NewTransformDevice(media.DeviceID("camera-1"), vb)
//	if err != nil {
//	    return err
//	}
//	// hand dev to the transport as the video input
//
// Until the virtual background's processor finishes initializing, frames pass
// through untransformed; capture is never blocked.
package effects
