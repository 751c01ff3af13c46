package meetsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/meetsync/backend"
	"github.com/opd-ai/meetsync/config"
	"github.com/opd-ai/meetsync/devices"
	"github.com/opd-ai/meetsync/effects"
	"github.com/opd-ai/meetsync/media"
	"github.com/opd-ai/meetsync/roster"
	"github.com/opd-ai/meetsync/tiles"
)

// Identity describes the local participant of the current session.
type Identity struct {
	MeetingName     string
	UserName        string
	Region          string
	LocalAttendeeID string
}

// TransportFactory constructs a media transport for a joined meeting. The
// embedding application supplies it, typically wrapping an SDK media session
// built from the join payload.
type TransportFactory func(info *backend.JoinInfo) (media.AudioVideoTransport, error)

// Session is the lifecycle controller for one user's participation in group
// meetings. It owns the roster, the tile registry, and the device negotiator
// for the currently joined meeting, and drives the ordered entry and teardown
// sequences. All methods are safe for concurrent use.
type Session struct {
	cfg     *config.Config
	api     *backend.Client
	creds   backend.Credentials
	factory TransportFactory

	mu            sync.Mutex
	phase         Phase
	identity      Identity
	transport     media.AudioVideoTransport
	negotiator    *devices.Negotiator
	roster        *roster.Roster
	tiles         *tiles.Registry
	preview       media.RenderSurface
	sink          media.AudioSink
	screenSharing bool
}

// New creates a session controller in the idle phase.
func New(cfg *config.Config, api *backend.Client, creds backend.Credentials, factory TransportFactory) (*Session, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if api == nil {
		return nil, ErrNilBackend
	}
	if factory == nil {
		return nil, ErrNilTransportFactory
	}
	logrus.WithFields(logrus.Fields{
		"function": "New",
		"backend":  cfg.BackendURL,
	}).Debug("session controller created")
	return &Session{
		cfg:     cfg,
		api:     api,
		creds:   creds,
		factory: factory,
		phase:   PhaseIdle,
	}, nil
}

// transition moves the lifecycle to next if the graph allows it. Callers
// hold s.mu.
func (s *Session) transition(next Phase) error {
	if !s.phase.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPhase, s.phase, next)
	}
	logrus.WithFields(logrus.Fields{
		"function": "transition",
		"from":     s.phase.String(),
		"to":       next.String(),
	}).Debug("phase transition")
	s.phase = next
	return nil
}

// setPhase forces the lifecycle to p. Used for error fallbacks, which always
// return to the phase the failed step started from. Callers hold s.mu.
func (s *Session) setPhase(p Phase) {
	s.phase = p
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Identity returns the local participant identity. It is zero outside a
// joined session.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// ScreenSharing reports whether a local content share is active.
func (s *Session) ScreenSharing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenSharing
}

// Roster returns the attendee roster for the joined session, or nil when no
// session exists.
func (s *Session) Roster() *roster.Roster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster
}

// Tiles returns the video tile registry for the joined session, or nil when
// no session exists.
func (s *Session) Tiles() *tiles.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tiles
}

// Devices returns the device negotiator for the joined session, or nil when
// no session exists.
func (s *Session) Devices() *devices.Negotiator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiator
}

// Create asks the backend to create a meeting. The session returns to idle
// afterwards regardless of outcome; creation never opens a session, callers
// follow up with Join.
func (s *Session) Create(ctx context.Context, meetingName, userName, region string) error {
	if region == "" {
		region = s.cfg.Region
	}

	s.mu.Lock()
	if err := s.transition(PhaseCreating); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	err := s.api.CreateMeeting(ctx, meetingName, userName, region, s.creds)

	s.mu.Lock()
	s.setPhase(PhaseIdle)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("create meeting %q: %w", meetingName, err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "Create",
		"meeting":  meetingName,
		"region":   region,
	}).Info("meeting created")
	return nil
}

// Join joins a meeting and builds the per-session collaborators: the media
// transport, the device negotiator, the roster with its name resolver, and
// the tile registry. On success the session is in preview.
func (s *Session) Join(ctx context.Context, meetingName, userName string) error {
	s.mu.Lock()
	if err := s.transition(PhaseJoining); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	fail := func(err error) error {
		s.mu.Lock()
		s.setPhase(PhaseIdle)
		s.mu.Unlock()
		return err
	}

	info, err := s.api.JoinMeeting(ctx, meetingName, userName, s.creds)
	if err != nil {
		return fail(fmt.Errorf("join meeting %q: %w", meetingName, err))
	}

	transport, err := s.factory(info)
	if err != nil {
		return fail(fmt.Errorf("construct media transport: %w", err))
	}

	negotiator, err := devices.New(transport)
	if err != nil {
		return fail(err)
	}

	resolver := &backend.Resolver{Client: s.api, MeetingName: meetingName, Creds: s.creds}
	attendees := roster.New(resolver, transport)
	registry := tiles.New(transport)
	transport.AddTileObserver(registry)

	s.mu.Lock()
	s.transport = transport
	s.negotiator = negotiator
	s.roster = attendees
	s.tiles = registry
	s.identity = Identity{
		MeetingName:     meetingName,
		UserName:        userName,
		Region:          s.cfg.Region,
		LocalAttendeeID: info.Attendee.AttendeeID,
	}
	s.setPhase(PhaseInPreview)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Join",
		"meeting":  meetingName,
		"attendee": info.Attendee.AttendeeID,
	}).Info("meeting joined")
	return nil
}

// StartPreview starts rendering the selected camera onto surface. Valid only
// while the session is in preview.
func (s *Session) StartPreview(surface media.RenderSurface) error {
	s.mu.Lock()
	if s.phase != PhaseInPreview {
		s.mu.Unlock()
		return fmt.Errorf("%w: preview requires %s, session is %s", ErrInvalidPhase, PhaseInPreview, s.phase)
	}
	transport := s.transport
	negotiator := s.negotiator
	s.preview = surface
	s.mu.Unlock()

	transport.StartVideoPreview(surface)
	negotiator.SetPreviewSurface(surface)
	return nil
}

// StopPreview stops the preview render. The underlying capture stream ends
// with it; the camera must be re-chosen before video works again, which the
// entry sequence does via the negotiator.
func (s *Session) StopPreview() {
	s.mu.Lock()
	surface := s.preview
	transport := s.transport
	negotiator := s.negotiator
	s.preview = nil
	s.mu.Unlock()

	if surface == nil || transport == nil {
		return
	}
	transport.StopVideoPreview(surface)
	negotiator.SetPreviewSurface(nil)
}

// Enter runs the meeting entry sequence: stop the preview, subscribe the
// realtime event handlers, enumerate devices, bind the audio sink, re-apply
// the device selections, start the transport, and start the local tile. Any
// failure rolls the session back to preview; steps already performed are not
// undone, re-entering repeats them harmlessly.
func (s *Session) Enter(ctx context.Context) error {
	s.mu.Lock()
	if err := s.transition(PhaseEntering); err != nil {
		s.mu.Unlock()
		return err
	}
	transport := s.transport
	negotiator := s.negotiator
	attendees := s.roster
	surface := s.preview
	sink := s.sink
	interval := s.cfg.ActiveSpeakerInterval
	s.preview = nil
	s.mu.Unlock()

	fail := func(err error) error {
		s.mu.Lock()
		s.setPhase(PhaseInPreview)
		s.mu.Unlock()
		return err
	}

	if surface != nil {
		transport.StopVideoPreview(surface)
		negotiator.SetPreviewSurface(nil)
	}

	transport.SubscribePresence(attendees.HandlePresence)
	transport.SubscribeActiveSpeakers(interval, attendees.HandleActiveSpeakers, attendees.HandleScores)

	// Output selection reads the transport's device cache, so enumeration
	// has to happen before devices are re-applied.
	if _, err := transport.ListAudioInputDevices(ctx); err != nil {
		return fail(fmt.Errorf("enumerate audio inputs: %w", err))
	}
	if _, err := transport.ListVideoInputDevices(ctx); err != nil {
		return fail(fmt.Errorf("enumerate video inputs: %w", err))
	}
	if _, err := transport.ListAudioOutputDevices(ctx); err != nil {
		return fail(fmt.Errorf("enumerate audio outputs: %w", err))
	}

	if sink != nil {
		if err := transport.BindAudioSink(sink); err != nil {
			return fail(fmt.Errorf("bind audio sink: %w", err))
		}
	}

	if err := negotiator.Reapply(ctx); err != nil {
		return fail(fmt.Errorf("re-apply device selections: %w", err))
	}

	if err := transport.Start(ctx); err != nil {
		return fail(fmt.Errorf("start media transport: %w", err))
	}
	transport.StartLocalVideoTile()
	negotiator.SetMeetingActive(true)

	s.mu.Lock()
	s.setPhase(PhaseInMeeting)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Enter",
	}).Info("meeting entered")
	return nil
}

// Leave tears the session down: roster and tiles stop accepting events,
// devices are released, the transport is stopped, and the session returns to
// idle. Leave with no active session is a no-op.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.transport == nil {
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "Leave",
		}).Debug("leave with no active session, ignoring")
		return nil
	}
	s.setPhase(PhaseLeaving)
	transport := s.transport
	negotiator := s.negotiator
	attendees := s.roster
	registry := s.tiles
	surface := s.preview
	s.preview = nil
	s.mu.Unlock()

	// Event-driven mutation stops first so nothing repopulates state while
	// the transport shuts down underneath it.
	attendees.Shutdown()
	registry.Shutdown()

	if err := negotiator.Reset(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Leave",
			"error":    err,
		}).Warn("device release failed, continuing teardown")
	}

	if surface != nil {
		transport.StopVideoPreview(surface)
	}
	transport.StopLocalVideoTile()
	transport.Stop()

	s.mu.Lock()
	s.transport = nil
	s.negotiator = nil
	s.roster = nil
	s.tiles = nil
	s.identity = Identity{}
	s.screenSharing = false
	s.setPhase(PhaseIdle)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Leave",
	}).Info("meeting left")
	return nil
}

// ShareScreen starts a local content share from source. Valid only while in
// a meeting.
func (s *Session) ShareScreen(ctx context.Context, source media.VideoSource) error {
	s.mu.Lock()
	if s.transport == nil {
		s.mu.Unlock()
		return ErrNoActiveSession
	}
	if s.phase != PhaseInMeeting {
		s.mu.Unlock()
		return fmt.Errorf("%w: content share requires %s, session is %s", ErrInvalidPhase, PhaseInMeeting, s.phase)
	}
	transport := s.transport
	s.mu.Unlock()

	if err := transport.StartContentShare(ctx, source); err != nil {
		return fmt.Errorf("start content share: %w", err)
	}

	s.mu.Lock()
	s.screenSharing = true
	s.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"function": "ShareScreen",
	}).Info("content share started")
	return nil
}

// StopShareScreen ends the local content share. It is idempotent.
func (s *Session) StopShareScreen() error {
	s.mu.Lock()
	if s.transport == nil {
		s.mu.Unlock()
		return ErrNoActiveSession
	}
	transport := s.transport
	sharing := s.screenSharing
	s.screenSharing = false
	s.mu.Unlock()

	if !sharing {
		return nil
	}
	transport.StopContentShare()
	logrus.WithFields(logrus.Fields{
		"function": "StopShareScreen",
	}).Info("content share stopped")
	return nil
}

// SetAudioSink records the sink meeting audio plays through and binds it
// immediately when a transport exists.
func (s *Session) SetAudioSink(sink media.AudioSink) error {
	s.mu.Lock()
	s.sink = sink
	transport := s.transport
	negotiator := s.negotiator
	s.mu.Unlock()

	if negotiator != nil {
		negotiator.SetAudioSink(sink)
	}
	if transport == nil || sink == nil {
		return nil
	}
	if err := transport.BindAudioSink(sink); err != nil {
		return fmt.Errorf("bind audio sink: %w", err)
	}
	return nil
}

// negotiatorRef returns the active negotiator or ErrNoActiveSession.
func (s *Session) negotiatorRef() (*devices.Negotiator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.negotiator == nil {
		return nil, ErrNoActiveSession
	}
	return s.negotiator, nil
}

// SelectAudioInput chooses the microphone for the session.
func (s *Session) SelectAudioInput(ctx context.Context, deviceID string) error {
	n, err := s.negotiatorRef()
	if err != nil {
		return err
	}
	return n.SelectAudioInput(ctx, deviceID)
}

// SelectVideoInput chooses the camera source for the session.
func (s *Session) SelectVideoInput(ctx context.Context, source media.VideoSource) error {
	n, err := s.negotiatorRef()
	if err != nil {
		return err
	}
	return n.SelectVideoInput(ctx, source)
}

// SelectAudioOutput chooses the speaker for the session.
func (s *Session) SelectAudioOutput(ctx context.Context, deviceID string) error {
	n, err := s.negotiatorRef()
	if err != nil {
		return err
	}
	return n.SelectAudioOutput(ctx, deviceID)
}

// SetAudioInputEnabled toggles the microphone without forgetting the stored
// device.
func (s *Session) SetAudioInputEnabled(ctx context.Context, enabled bool) error {
	n, err := s.negotiatorRef()
	if err != nil {
		return err
	}
	return n.SetAudioInputEnabled(ctx, enabled)
}

// SetVideoInputEnabled toggles the camera without forgetting the stored
// selection.
func (s *Session) SetVideoInputEnabled(ctx context.Context, enabled bool) error {
	n, err := s.negotiatorRef()
	if err != nil {
		return err
	}
	return n.SetVideoInputEnabled(ctx, enabled)
}

// SetAudioOutputEnabled toggles the speaker without forgetting the stored
// device.
func (s *Session) SetAudioOutputEnabled(ctx context.Context, enabled bool) error {
	n, err := s.negotiatorRef()
	if err != nil {
		return err
	}
	return n.SetAudioOutputEnabled(ctx, enabled)
}

// SelectVirtualBackground attaches the background effect pipeline to the
// current camera selection.
func (s *Session) SelectVirtualBackground(ctx context.Context, kind effects.Kind) error {
	n, err := s.negotiatorRef()
	if err != nil {
		return err
	}
	return n.SelectVirtualBackground(ctx, kind)
}

// ClearVirtualBackground removes the background effect pipeline.
func (s *Session) ClearVirtualBackground(ctx context.Context) error {
	n, err := s.negotiatorRef()
	if err != nil {
		return err
	}
	return n.ClearVirtualBackground(ctx)
}
