package effects

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/meetsync/media"
)

// Stage is one frame-processing step in a transform device.
//
// Process must never block capture: a stage whose underlying resource (for
// example a heavy segmentation worker) is still initializing reports
// Ready() == false and is skipped until it becomes ready.
type Stage interface {
	// Name identifies the stage for logging.
	Name() string
	// Ready reports whether the stage can transform frames right now.
	Ready() bool
	// Process transforms a frame. It may return its argument unchanged.
	Process(f *Frame) *Frame
}

// BackgroundStage marks a stage that must see the unmodified camera frame.
// A TransformDevice orders these ahead of all other stages.
type BackgroundStage interface {
	Stage
	// Background is a marker; it carries no behavior.
	Background()
}

// TransformDevice wraps a raw video source with an ordered stage set. It
// satisfies media.VideoSource, so it can be handed to the transport wherever
// a plain device id could be.
//
// The raw source is fixed for the device's lifetime; swapping stages via
// SetStages never touches the underlying capture stream.
type TransformDevice struct {
	raw media.VideoSource

	mu     sync.RWMutex
	stages []Stage
}

// NewTransformDevice builds a composite device from a raw source and zero or
// more stages. Stage order is normalized so background stages run first.
func NewTransformDevice(raw media.VideoSource, stages ...Stage) (*TransformDevice, error) {
	if raw == nil {
		return nil, ErrNilSource
	}
	d := &TransformDevice{raw: raw}
	d.SetStages(stages...)
	logrus.WithFields(logrus.Fields{
		"function": "NewTransformDevice",
		"source":   raw.SourceID(),
		"stages":   len(stages),
	}).Debug("transform device created")
	return d, nil
}

// SourceID returns the identity of the underlying capture, so callers can
// recognize that two composites share the same camera.
func (d *TransformDevice) SourceID() string { return d.raw.SourceID() }

// Raw returns the wrapped source.
func (d *TransformDevice) Raw() media.VideoSource { return d.raw }

// SetStages replaces the stage set without recreating the capture stream.
func (d *TransformDevice) SetStages(stages ...Stage) {
	ordered := orderStages(stages)
	d.mu.Lock()
	d.stages = ordered
	d.mu.Unlock()
}

// Stages returns the current stage set in execution order.
func (d *TransformDevice) Stages() []Stage {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Stage, len(d.stages))
	copy(out, d.stages)
	return out
}

// Transform runs the frame through every ready stage in order. Stages that
// are not yet ready are skipped so capture is never blocked on processor
// initialization.
func (d *TransformDevice) Transform(f *Frame) *Frame {
	d.mu.RLock()
	stages := d.stages
	d.mu.RUnlock()

	for _, s := range stages {
		if !s.Ready() {
			logrus.WithFields(logrus.Fields{
				"function": "Transform",
				"stage":    s.Name(),
			}).Debug("stage not ready, passing frame through")
			continue
		}
		f = s.Process(f)
	}
	return f
}

// orderStages returns the stages with background stages first, preserving
// relative order within each group.
func orderStages(stages []Stage) []Stage {
	out := make([]Stage, 0, len(stages))
	for _, s := range stages {
		if _, ok := s.(BackgroundStage); ok {
			out = append(out, s)
		}
	}
	for _, s := range stages {
		if _, ok := s.(BackgroundStage); !ok {
			out = append(out, s)
		}
	}
	return out
}
