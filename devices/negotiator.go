package devices

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/meetsync/effects"
	"github.com/opd-ai/meetsync/media"
)

// Selection is a snapshot of the current device choices. BackgroundSet
// distinguishes "no pipeline attached" from an attached pipeline whose kind
// happens to be KindNone.
type Selection struct {
	AudioInput    string
	VideoInput    media.VideoSource
	Background    effects.Kind
	BackgroundSet bool
	AudioOutput   string

	AudioInputEnabled  bool
	VideoInputEnabled  bool
	AudioOutputEnabled bool
}

// Negotiator serializes device selection against the media transport, one
// in-flight operation per device class.
type Negotiator struct {
	transport media.AudioVideoTransport
	vb        *effects.VirtualBackground

	// Per-class serialization. Held for the full duration of a selection,
	// including the transport call, so completions cannot apply out of
	// order within a class.
	audioMu  sync.Mutex
	videoMu  sync.Mutex
	outputMu sync.Mutex

	// Guards the committed selection and session-mode fields.
	mu        sync.RWMutex
	sel       Selection
	transform *effects.TransformDevice
	meeting   bool
	preview   media.RenderSurface
	sink      media.AudioSink
}

// New creates a negotiator bound to a transport. All three enabled flags
// start true; nothing is selected.
func New(transport media.AudioVideoTransport) (*Negotiator, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	logrus.WithFields(logrus.Fields{
		"function": "New",
	}).Debug("device negotiator created")
	return &Negotiator{
		transport: transport,
		vb:        effects.NewVirtualBackground(effects.KindNone, effects.BackgroundQualityDefault),
		sel: Selection{
			AudioInputEnabled:  true,
			VideoInputEnabled:  true,
			AudioOutputEnabled: true,
		},
	}, nil
}

// VirtualBackgroundStage exposes the long-lived background stage so the
// embedding application can attach its frame processor once it is ready.
func (n *Negotiator) VirtualBackgroundStage() *effects.VirtualBackground { return n.vb }

// SetMeetingActive switches video side effects between meeting mode
// (start/stop the local tile) and preview mode (restart the preview surface).
func (n *Negotiator) SetMeetingActive(active bool) {
	n.mu.Lock()
	n.meeting = active
	n.mu.Unlock()
}

// SetPreviewSurface records the surface video changes should re-drive while
// not in a meeting. Pass nil when preview ends.
func (n *Negotiator) SetPreviewSurface(surface media.RenderSurface) {
	n.mu.Lock()
	n.preview = surface
	n.mu.Unlock()
}

// SetAudioSink records the sink rebound after audio-output changes.
func (n *Negotiator) SetAudioSink(sink media.AudioSink) {
	n.mu.Lock()
	n.sink = sink
	n.mu.Unlock()
}

// Selection returns a snapshot of the committed device choices.
func (n *Negotiator) Selection() Selection {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sel
}

// SelectAudioInput chooses a microphone. An empty id releases the device.
// While the class is disabled the transport keeps nil, but the id is stored
// so re-enabling restores it.
func (n *Negotiator) SelectAudioInput(ctx context.Context, deviceID string) error {
	n.audioMu.Lock()
	defer n.audioMu.Unlock()

	n.mu.RLock()
	enabled := n.sel.AudioInputEnabled
	n.mu.RUnlock()

	applied := deviceID
	if !enabled {
		applied = ""
	}
	if err := n.transport.ChooseAudioInput(ctx, applied); err != nil {
		return &SelectionError{Class: media.DeviceAudioInput, Cause: err}
	}

	n.mu.Lock()
	n.sel.AudioInput = deviceID
	n.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"function": "SelectAudioInput",
		"device":   deviceID,
		"enabled":  enabled,
	}).Info("audio input selected")
	return nil
}

// SetAudioInputEnabled toggles the microphone without touching the stored
// device id.
func (n *Negotiator) SetAudioInputEnabled(ctx context.Context, enabled bool) error {
	n.audioMu.Lock()
	defer n.audioMu.Unlock()

	n.mu.RLock()
	stored := n.sel.AudioInput
	n.mu.RUnlock()

	applied := ""
	if enabled {
		applied = stored
	}
	if err := n.transport.ChooseAudioInput(ctx, applied); err != nil {
		return &SelectionError{Class: media.DeviceAudioInput, Cause: err}
	}

	n.mu.Lock()
	n.sel.AudioInputEnabled = enabled
	n.mu.Unlock()
	return nil
}

// SelectAudioOutput chooses a speaker and rebinds the audio sink if one is
// set. Output selection requires the transport's device cache to be
// populated (see AudioVideoTransport.ListAudioOutputDevices).
func (n *Negotiator) SelectAudioOutput(ctx context.Context, deviceID string) error {
	n.outputMu.Lock()
	defer n.outputMu.Unlock()

	n.mu.RLock()
	enabled := n.sel.AudioOutputEnabled
	sink := n.sink
	n.mu.RUnlock()

	applied := deviceID
	if !enabled {
		applied = ""
	}
	if err := n.transport.ChooseAudioOutput(ctx, applied); err != nil {
		return &SelectionError{Class: media.DeviceAudioOutput, Cause: err}
	}
	if sink != nil {
		if err := n.transport.BindAudioSink(sink); err != nil {
			return &SelectionError{Class: media.DeviceAudioOutput, Cause: err}
		}
	}

	n.mu.Lock()
	n.sel.AudioOutput = deviceID
	n.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"function": "SelectAudioOutput",
		"device":   deviceID,
	}).Info("audio output selected")
	return nil
}

// SetAudioOutputEnabled toggles the speaker. Disabling unbinds the sink;
// enabling re-applies the stored device and rebinds it.
func (n *Negotiator) SetAudioOutputEnabled(ctx context.Context, enabled bool) error {
	n.outputMu.Lock()
	defer n.outputMu.Unlock()

	n.mu.RLock()
	stored := n.sel.AudioOutput
	sink := n.sink
	n.mu.RUnlock()

	if enabled {
		if err := n.transport.ChooseAudioOutput(ctx, stored); err != nil {
			return &SelectionError{Class: media.DeviceAudioOutput, Cause: err}
		}
		if sink != nil {
			if err := n.transport.BindAudioSink(sink); err != nil {
				return &SelectionError{Class: media.DeviceAudioOutput, Cause: err}
			}
		}
	} else {
		if err := n.transport.ChooseAudioOutput(ctx, ""); err != nil {
			return &SelectionError{Class: media.DeviceAudioOutput, Cause: err}
		}
		n.transport.UnbindAudioSink()
	}

	n.mu.Lock()
	n.sel.AudioOutputEnabled = enabled
	n.mu.Unlock()
	return nil
}

// SelectVideoInput chooses a camera source (nil releases it). If a virtual
// background is set, the source is wrapped in a transform device first.
func (n *Negotiator) SelectVideoInput(ctx context.Context, source media.VideoSource) error {
	n.videoMu.Lock()
	defer n.videoMu.Unlock()

	n.mu.RLock()
	enabled := n.sel.VideoInputEnabled
	bgSet := n.sel.BackgroundSet
	kind := n.sel.Background
	n.mu.RUnlock()

	target := source
	if !enabled {
		target = nil
	}
	if err := n.applyVideo(ctx, target, bgSet, kind); err != nil {
		return err
	}

	n.mu.Lock()
	n.sel.VideoInput = source
	n.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"function":   "SelectVideoInput",
		"source":     sourceID(source),
		"background": bgSet,
	}).Info("video input selected")
	return nil
}

// SelectVirtualBackground attaches (or re-targets) the background pipeline
// on the current video selection.
func (n *Negotiator) SelectVirtualBackground(ctx context.Context, kind effects.Kind) error {
	n.videoMu.Lock()
	defer n.videoMu.Unlock()

	n.mu.RLock()
	enabled := n.sel.VideoInputEnabled
	stored := n.sel.VideoInput
	n.mu.RUnlock()

	target := stored
	if !enabled {
		target = nil
	}
	if err := n.applyVideo(ctx, target, true, kind); err != nil {
		return err
	}

	n.mu.Lock()
	n.sel.Background = kind
	n.sel.BackgroundSet = true
	n.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"function": "SelectVirtualBackground",
		"kind":     kind.String(),
	}).Info("virtual background selected")
	return nil
}

// ClearVirtualBackground tears the background pipeline down, leaving the raw
// camera selected.
func (n *Negotiator) ClearVirtualBackground(ctx context.Context) error {
	n.videoMu.Lock()
	defer n.videoMu.Unlock()

	n.mu.RLock()
	enabled := n.sel.VideoInputEnabled
	stored := n.sel.VideoInput
	n.mu.RUnlock()

	target := stored
	if !enabled {
		target = nil
	}
	if err := n.applyVideo(ctx, target, false, effects.KindNone); err != nil {
		return err
	}

	n.mu.Lock()
	n.sel.Background = effects.KindNone
	n.sel.BackgroundSet = false
	n.mu.Unlock()
	return nil
}

// SetVideoInputEnabled toggles the camera without touching the stored
// selection.
func (n *Negotiator) SetVideoInputEnabled(ctx context.Context, enabled bool) error {
	n.videoMu.Lock()
	defer n.videoMu.Unlock()

	n.mu.RLock()
	stored := n.sel.VideoInput
	bgSet := n.sel.BackgroundSet
	kind := n.sel.Background
	n.mu.RUnlock()

	var target media.VideoSource
	if enabled {
		target = stored
	}
	if err := n.applyVideo(ctx, target, bgSet, kind); err != nil {
		return err
	}

	n.mu.Lock()
	n.sel.VideoInputEnabled = enabled
	n.mu.Unlock()
	return nil
}

// applyVideo pushes a video choice to the transport and performs the
// phase-dependent side effect: (re)start the local tile in a meeting,
// restart the preview surface otherwise. Callers hold videoMu.
func (n *Negotiator) applyVideo(ctx context.Context, source media.VideoSource, bgSet bool, kind effects.Kind) error {
	n.mu.RLock()
	meeting := n.meeting
	preview := n.preview
	current := n.transform
	n.mu.RUnlock()

	if source == nil {
		if err := n.transport.ChooseVideoInput(ctx, nil); err != nil {
			return &SelectionError{Class: media.DeviceVideoInput, Cause: err}
		}
		n.mu.Lock()
		n.transform = nil
		n.mu.Unlock()
		if meeting {
			n.transport.StopLocalVideoTile()
		} else if preview != nil {
			n.transport.StopVideoPreview(preview)
			n.transport.StartVideoPreview(preview)
		}
		return nil
	}

	dev := source
	var next *effects.TransformDevice
	if bgSet {
		if current != nil && current.SourceID() == source.SourceID() {
			// Same raw capture: swap stages on the existing composite
			// instead of recreating the stream.
			current.SetStages(n.vb)
			next = current
		} else {
			td, err := effects.NewTransformDevice(source, n.vb)
			if err != nil {
				return &SelectionError{Class: media.DeviceVideoInput, Cause: err}
			}
			next = td
		}
		dev = next
	}

	if err := n.transport.ChooseVideoInput(ctx, dev); err != nil {
		return &SelectionError{Class: media.DeviceVideoInput, Cause: err}
	}

	// Commit the pipeline only after the transport accepted the device, so
	// a rejected choice leaves the previous composite untouched.
	n.vb.SetKind(kind)
	n.mu.Lock()
	n.transform = next
	n.mu.Unlock()

	if meeting {
		n.transport.StartLocalVideoTile()
	} else if preview != nil {
		n.transport.StopVideoPreview(preview)
		n.transport.StartVideoPreview(preview)
	}
	return nil
}

// Reapply re-issues the stored audio-input, audio-output, and video(+effect)
// selections against the transport, in that order. Used when entering a
// meeting room, because leaving preview reinitializes the capture devices.
func (n *Negotiator) Reapply(ctx context.Context) error {
	sel := n.Selection()
	if err := n.SelectAudioInput(ctx, sel.AudioInput); err != nil {
		return err
	}
	if err := n.SelectAudioOutput(ctx, sel.AudioOutput); err != nil {
		return err
	}
	return n.SelectVideoInput(ctx, sel.VideoInput)
}

// Reset releases all three device classes and forgets the stored ids.
// Enabled flags survive. All classes are attempted even if one fails.
func (n *Negotiator) Reset(ctx context.Context) error {
	var errs []error

	n.audioMu.Lock()
	if err := n.transport.ChooseAudioInput(ctx, ""); err != nil {
		errs = append(errs, &SelectionError{Class: media.DeviceAudioInput, Cause: err})
	}
	n.audioMu.Unlock()

	n.videoMu.Lock()
	if err := n.transport.ChooseVideoInput(ctx, nil); err != nil {
		errs = append(errs, &SelectionError{Class: media.DeviceVideoInput, Cause: err})
	}
	n.videoMu.Unlock()

	n.outputMu.Lock()
	if err := n.transport.ChooseAudioOutput(ctx, ""); err != nil {
		errs = append(errs, &SelectionError{Class: media.DeviceAudioOutput, Cause: err})
	}
	n.outputMu.Unlock()

	n.mu.Lock()
	n.sel.AudioInput = ""
	n.sel.VideoInput = nil
	n.sel.AudioOutput = ""
	n.sel.Background = effects.KindNone
	n.sel.BackgroundSet = false
	n.transform = nil
	n.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Reset",
		"errors":   len(errs),
	}).Info("device selections reset")
	return errors.Join(errs...)
}

func sourceID(s media.VideoSource) string {
	if s == nil {
		return ""
	}
	return s.SourceID()
}
