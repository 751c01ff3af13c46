package effects

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// FrameProcessor is the external capability that actually computes the
// virtual background. Implementations typically wrap a segmentation worker
// that takes time to initialize.
type FrameProcessor interface {
	// ProcessFrame transforms the frame for the given kind at the given
	// working resolution.
	ProcessFrame(f *Frame, kind Kind, resolution int) *Frame
}

// VirtualBackground is the segmentation/background stage. It is constructed
// without a processor and passes frames through untransformed until one is
// attached, so pipeline attachment never waits on worker initialization.
//
// A single VirtualBackground instance is meant to live as long as the device
// negotiator and be re-targeted via SetKind as the user changes backgrounds.
type VirtualBackground struct {
	mu        sync.RWMutex
	kind      Kind
	quality   BackgroundQuality
	processor FrameProcessor
}

// NewVirtualBackground creates the stage with the given initial kind and
// quality and no processor attached.
func NewVirtualBackground(kind Kind, quality BackgroundQuality) *VirtualBackground {
	logrus.WithFields(logrus.Fields{
		"function": "NewVirtualBackground",
		"kind":     kind.String(),
		"quality":  int(quality),
	}).Info("virtual background stage created")
	return &VirtualBackground{kind: kind, quality: quality}
}

// Name implements Stage.
func (v *VirtualBackground) Name() string { return "virtual-background" }

// Background marks this as a stage that must see the raw camera frame.
func (v *VirtualBackground) Background() {}

// Ready reports whether a processor has been attached.
func (v *VirtualBackground) Ready() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.processor != nil
}

// SetProcessor attaches the heavy processing resource once it has finished
// initializing. Passing nil detaches it and the stage degrades to
// passthrough again.
func (v *VirtualBackground) SetProcessor(p FrameProcessor) {
	v.mu.Lock()
	v.processor = p
	v.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"function": "SetProcessor",
		"attached": p != nil,
	}).Info("virtual background processor updated")
}

// SetKind re-targets the stage to a different background treatment.
func (v *VirtualBackground) SetKind(kind Kind) {
	v.mu.Lock()
	v.kind = kind
	v.mu.Unlock()
}

// Kind returns the current background treatment.
func (v *VirtualBackground) Kind() Kind {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.kind
}

// SetQuality changes the working resolution of the processor.
func (v *VirtualBackground) SetQuality(q BackgroundQuality) {
	v.mu.Lock()
	v.quality = q
	v.mu.Unlock()
}

// Process implements Stage. KindNone is a passthrough even with a processor
// attached.
func (v *VirtualBackground) Process(f *Frame) *Frame {
	v.mu.RLock()
	p := v.processor
	kind := v.kind
	res := v.quality.Resolution()
	v.mu.RUnlock()

	if p == nil || kind == KindNone {
		return f
	}
	return p.ProcessFrame(f, kind, res)
}
