package media

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeviceClass identifies one of the three independently negotiated device
// classes. Device operations are serialized per class, never globally.
type DeviceClass uint8

const (
	// DeviceAudioInput is the microphone class.
	DeviceAudioInput DeviceClass = iota
	// DeviceVideoInput is the camera class.
	DeviceVideoInput
	// DeviceAudioOutput is the speaker class.
	DeviceAudioOutput
)

// String returns a human-readable name for the device class.
func (c DeviceClass) String() string {
	switch c {
	case DeviceAudioInput:
		return "audio-input"
	case DeviceVideoInput:
		return "video-input"
	case DeviceAudioOutput:
		return "audio-output"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one enumerable device as reported by the transport.
type DeviceInfo struct {
	ID    string
	Label string
	Class DeviceClass
}

// VideoSource is anything the transport can accept as a video input: a
// device id, a live capture stream, or a composite processed device such as
// effects.TransformDevice. SourceID identifies the underlying capture so
// callers can tell whether two sources share the same camera.
type VideoSource interface {
	SourceID() string
}

// DeviceID is a plain device identifier used as a VideoSource.
type DeviceID string

// SourceID returns the device identifier.
func (d DeviceID) SourceID() string { return string(d) }

// StreamHandle references an already-open capture stream owned by the
// embedding application (for example a display capture handed to content
// share). The handle identity is stable for the stream's lifetime.
type StreamHandle struct {
	ID string
}

// NewStreamHandle allocates a handle with a unique identity.
func NewStreamHandle() *StreamHandle {
	return &StreamHandle{ID: uuid.NewString()}
}

// SourceID returns the handle's unique identity.
func (s *StreamHandle) SourceID() string { return s.ID }

// RenderSurface is a target the transport can render video onto. The view
// layer supplies the concrete implementation.
type RenderSurface interface {
	SurfaceID() string
}

// AudioSink is a target the transport can play meeting audio through.
type AudioSink interface {
	SinkID() string
}

// TileState is the transport's description of one video tile at a point in
// time. Tile identity (TileID) can change while the bound attendee stays the
// same, e.g. after a camera restart.
type TileState struct {
	TileID          int
	BoundAttendeeID string
	LocalTile       bool
	Content         bool
	Paused          bool
	Active          bool
}

// PresenceCallback receives attendee join/leave events.
type PresenceCallback func(attendeeID string, present bool)

// VolumeCallback receives per-attendee volume telemetry. A nil field means
// "unchanged", never "reset".
type VolumeCallback func(attendeeID string, volume *float64, muted *bool, signalStrength *float64)

// ActiveSpeakersCallback receives the attendee ids currently judged to be
// speaking, ordered most-active first.
type ActiveSpeakersCallback func(attendeeIDs []string)

// ScoresCallback receives periodic activity scores per attendee.
type ScoresCallback func(scores map[string]float64)

// TileObserver receives tile lifecycle events from the transport.
type TileObserver interface {
	TileUpdated(state TileState)
	TileRemoved(tileID int)
}

// AudioVideoTransport is the full capability surface meetsync consumes from
// the media session. Implementations must tolerate concurrent calls; all
// blocking operations take a context.
type AudioVideoTransport interface {
	// Device enumeration. ChooseAudioOutput depends on the transport's
	// internal device cache, which these calls populate.
	ListAudioInputDevices(ctx context.Context) ([]DeviceInfo, error)
	ListVideoInputDevices(ctx context.Context) ([]DeviceInfo, error)
	ListAudioOutputDevices(ctx context.Context) ([]DeviceInfo, error)

	// Device selection. An empty device id or nil source releases the
	// device for that class.
	ChooseAudioInput(ctx context.Context, deviceID string) error
	ChooseVideoInput(ctx context.Context, source VideoSource) error
	ChooseAudioOutput(ctx context.Context, deviceID string) error

	// Local tile control, valid only while the transport is started.
	StartLocalVideoTile()
	StopLocalVideoTile()

	// UnbindVideoTile releases the render target bound to a tile.
	UnbindVideoTile(tileID int)

	// Preview control. Stopping a preview terminates the underlying
	// capture stream; the device must be re-chosen afterwards.
	StartVideoPreview(surface RenderSurface)
	StopVideoPreview(surface RenderSurface)

	// Audio output binding.
	BindAudioSink(sink AudioSink) error
	UnbindAudioSink()

	// Session start/stop.
	Start(ctx context.Context) error
	Stop()

	// Content share.
	StartContentShare(ctx context.Context, source VideoSource) error
	StopContentShare()

	// Realtime event subscriptions.
	SubscribePresence(cb PresenceCallback)
	SubscribeVolumeIndicator(attendeeID string, cb VolumeCallback)
	UnsubscribeVolumeIndicator(attendeeID string)
	SubscribeActiveSpeakers(interval time.Duration, speakers ActiveSpeakersCallback, scores ScoresCallback)
	AddTileObserver(obs TileObserver)
}
