package meetsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/meetsync/backend"
	"github.com/opd-ai/meetsync/config"
	"github.com/opd-ai/meetsync/media"
)

// sessionTransport is a scriptable media.AudioVideoTransport that records
// the ordered sequence of calls made against it.
type sessionTransport struct {
	mu    sync.Mutex
	calls []string

	listErr     error
	startErr    error
	contentErr  error
	bindSinkErr error

	presence media.PresenceCallback
	tileObs  media.TileObserver
}

func (m *sessionTransport) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *sessionTransport) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *sessionTransport) ListAudioInputDevices(ctx context.Context) ([]media.DeviceInfo, error) {
	m.record("list-audio-in")
	return nil, m.listErr
}

func (m *sessionTransport) ListVideoInputDevices(ctx context.Context) ([]media.DeviceInfo, error) {
	m.record("list-video-in")
	return nil, m.listErr
}

func (m *sessionTransport) ListAudioOutputDevices(ctx context.Context) ([]media.DeviceInfo, error) {
	m.record("list-audio-out")
	return nil, m.listErr
}

func (m *sessionTransport) ChooseAudioInput(ctx context.Context, deviceID string) error {
	m.record("choose-audio-in:" + deviceID)
	return nil
}

func (m *sessionTransport) ChooseVideoInput(ctx context.Context, source media.VideoSource) error {
	id := ""
	if source != nil {
		id = source.SourceID()
	}
	m.record("choose-video-in:" + id)
	return nil
}

func (m *sessionTransport) ChooseAudioOutput(ctx context.Context, deviceID string) error {
	m.record("choose-audio-out:" + deviceID)
	return nil
}

func (m *sessionTransport) StartLocalVideoTile()   { m.record("start-local-tile") }
func (m *sessionTransport) StopLocalVideoTile()    { m.record("stop-local-tile") }
func (m *sessionTransport) UnbindVideoTile(id int) { m.record("unbind-tile") }

func (m *sessionTransport) StartVideoPreview(surface media.RenderSurface) {
	m.record("start-preview:" + surface.SurfaceID())
}

func (m *sessionTransport) StopVideoPreview(surface media.RenderSurface) {
	m.record("stop-preview:" + surface.SurfaceID())
}

func (m *sessionTransport) BindAudioSink(sink media.AudioSink) error {
	m.record("bind-sink:" + sink.SinkID())
	return m.bindSinkErr
}

func (m *sessionTransport) UnbindAudioSink() { m.record("unbind-sink") }

func (m *sessionTransport) Start(ctx context.Context) error {
	m.record("start")
	return m.startErr
}

func (m *sessionTransport) Stop() { m.record("stop") }

func (m *sessionTransport) StartContentShare(ctx context.Context, source media.VideoSource) error {
	m.record("start-content-share")
	return m.contentErr
}

func (m *sessionTransport) StopContentShare() { m.record("stop-content-share") }

func (m *sessionTransport) SubscribePresence(cb media.PresenceCallback) {
	m.record("subscribe-presence")
	m.mu.Lock()
	m.presence = cb
	m.mu.Unlock()
}

func (m *sessionTransport) SubscribeVolumeIndicator(attendeeID string, cb media.VolumeCallback) {
	m.record("subscribe-volume:" + attendeeID)
}

func (m *sessionTransport) UnsubscribeVolumeIndicator(attendeeID string) {
	m.record("unsubscribe-volume:" + attendeeID)
}

func (m *sessionTransport) SubscribeActiveSpeakers(interval time.Duration, speakers media.ActiveSpeakersCallback, scores media.ScoresCallback) {
	m.record("subscribe-active-speakers")
}

func (m *sessionTransport) AddTileObserver(obs media.TileObserver) {
	m.record("add-tile-observer")
	m.mu.Lock()
	m.tileObs = obs
	m.mu.Unlock()
}

type testSurface struct{ id string }

func (s *testSurface) SurfaceID() string { return s.id }

type testSink struct{ id string }

func (s *testSink) SinkID() string { return s.id }

// newTestBackend serves the create, join, and name endpoints the session
// drives during its lifecycle.
func newTestBackend(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/meetings/create":
			json.NewEncoder(w).Encode(map[string]bool{"created": true})
		case "/meetings/join":
			json.NewEncoder(w).Encode(map[string]any{
				"Meeting":  map[string]string{"MeetingId": "m-1"},
				"Attendee": map[string]string{"AttendeeId": "a-local", "ExternalUserId": "user-1"},
			})
		case "/attendees/name":
			json.NewEncoder(w).Encode(map[string]string{"result": "success", "name": "Alice"})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestSession(t *testing.T, srv *httptest.Server, transport *sessionTransport) *Session {
	t.Helper()
	cfg := config.Default()
	cfg.BackendURL = srv.URL
	s, err := New(cfg, backend.New(srv.URL, time.Second), backend.Credentials{UserID: "user-1"},
		func(info *backend.JoinInfo) (media.AudioVideoTransport, error) {
			return transport, nil
		})
	require.NoError(t, err)
	return s
}

func joinedSession(t *testing.T, srv *httptest.Server, transport *sessionTransport) *Session {
	t.Helper()
	s := newTestSession(t, srv, transport)
	require.NoError(t, s.Join(context.Background(), "standup", "alice"))
	return s
}

func TestNewValidatesCollaborators(t *testing.T) {
	cfg := config.Default()
	api := backend.New("http://localhost", time.Second)
	factory := func(info *backend.JoinInfo) (media.AudioVideoTransport, error) { return nil, nil }

	_, err := New(nil, api, backend.Credentials{}, factory)
	assert.ErrorIs(t, err, ErrNilConfig)

	_, err = New(cfg, nil, backend.Credentials{}, factory)
	assert.ErrorIs(t, err, ErrNilBackend)

	_, err = New(cfg, api, backend.Credentials{}, nil)
	assert.ErrorIs(t, err, ErrNilTransportFactory)

	s, err := New(cfg, api, backend.Credentials{}, factory)
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, s.Phase())
}

func TestCreateReturnsToIdle(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()

	s := newTestSession(t, srv, &sessionTransport{})
	require.NoError(t, s.Create(context.Background(), "standup", "alice", ""))
	assert.Equal(t, PhaseIdle, s.Phase())
}

func TestJoinEntersPreview(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()
	transport := &sessionTransport{}

	s := joinedSession(t, srv, transport)

	assert.Equal(t, PhaseInPreview, s.Phase())
	assert.Equal(t, "a-local", s.Identity().LocalAttendeeID)
	assert.Equal(t, "standup", s.Identity().MeetingName)
	assert.NotNil(t, s.Roster())
	assert.NotNil(t, s.Tiles())
	assert.NotNil(t, s.Devices())
	assert.Contains(t, transport.callLog(), "add-tile-observer")
}

func TestJoinBackendFailureReturnsToIdle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newTestSession(t, srv, &sessionTransport{})
	err := s.Join(context.Background(), "standup", "alice")
	require.Error(t, err)
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Nil(t, s.Roster())
}

func TestJoinWhileJoinedIsRejected(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()

	s := joinedSession(t, srv, &sessionTransport{})
	err := s.Join(context.Background(), "other", "alice")
	assert.ErrorIs(t, err, ErrInvalidPhase)
	assert.Equal(t, PhaseInPreview, s.Phase())
}

func TestEnterSequenceOrder(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()
	transport := &sessionTransport{}

	s := joinedSession(t, srv, transport)
	require.NoError(t, s.StartPreview(&testSurface{id: "preview-1"}))
	require.NoError(t, s.SetAudioSink(&testSink{id: "speakers"}))
	require.NoError(t, s.SelectAudioInput(context.Background(), "mic-1"))

	require.NoError(t, s.Enter(context.Background()))
	assert.Equal(t, PhaseInMeeting, s.Phase())

	log := transport.callLog()
	order := func(call string) int {
		for i, c := range log {
			if c == call {
				return i
			}
		}
		t.Fatalf("call %q not found in %v", call, log)
		return -1
	}

	// Preview stops before the realtime subscriptions go up, devices are
	// enumerated before selections are re-applied, and the local tile
	// starts only after the transport itself started.
	assert.Less(t, order("stop-preview:preview-1"), order("subscribe-presence"))
	assert.Less(t, order("subscribe-presence"), order("subscribe-active-speakers"))
	assert.Less(t, order("subscribe-active-speakers"), order("list-audio-in"))
	assert.Less(t, order("list-audio-out"), order("start"))
	assert.Less(t, order("start"), order("start-local-tile"))
	assert.Contains(t, log, "bind-sink:speakers")
}

func TestEnterFailureFallsBackToPreview(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()
	transport := &sessionTransport{startErr: errors.New("media down")}

	s := joinedSession(t, srv, transport)
	err := s.Enter(context.Background())
	require.Error(t, err)

	assert.Equal(t, PhaseInPreview, s.Phase())
	assert.False(t, s.ScreenSharing())
	assert.NotContains(t, transport.callLog(), "start-local-tile")
}

func TestEnterEnumerationFailureFallsBackToPreview(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()
	transport := &sessionTransport{listErr: errors.New("permission denied")}

	s := joinedSession(t, srv, transport)
	err := s.Enter(context.Background())
	require.Error(t, err)
	assert.Equal(t, PhaseInPreview, s.Phase())
	assert.NotContains(t, transport.callLog(), "start")
}

func TestLeaveTearsDownAndIsIdempotent(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()
	transport := &sessionTransport{}

	s := joinedSession(t, srv, transport)
	require.NoError(t, s.Enter(context.Background()))
	require.NoError(t, s.Leave(context.Background()))

	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Nil(t, s.Roster())
	assert.Nil(t, s.Tiles())
	assert.Nil(t, s.Devices())
	assert.Equal(t, Identity{}, s.Identity())
	assert.Contains(t, transport.callLog(), "stop")

	stops := len(transport.callLog())
	require.NoError(t, s.Leave(context.Background()))
	assert.Len(t, transport.callLog(), stops)
}

func TestLeaveFromPreview(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()
	transport := &sessionTransport{}

	s := joinedSession(t, srv, transport)
	require.NoError(t, s.StartPreview(&testSurface{id: "preview-1"}))
	require.NoError(t, s.Leave(context.Background()))

	assert.Equal(t, PhaseIdle, s.Phase())
	log := transport.callLog()
	assert.Contains(t, log, "stop-preview:preview-1")
	assert.Contains(t, log, "stop")
}

func TestShareScreenRequiresMeeting(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()
	transport := &sessionTransport{}

	s := newTestSession(t, srv, transport)
	err := s.ShareScreen(context.Background(), media.NewStreamHandle())
	assert.ErrorIs(t, err, ErrNoActiveSession)

	require.NoError(t, s.Join(context.Background(), "standup", "alice"))
	err = s.ShareScreen(context.Background(), media.NewStreamHandle())
	assert.ErrorIs(t, err, ErrInvalidPhase)

	require.NoError(t, s.Enter(context.Background()))
	require.NoError(t, s.ShareScreen(context.Background(), media.NewStreamHandle()))
	assert.True(t, s.ScreenSharing())

	require.NoError(t, s.StopShareScreen())
	assert.False(t, s.ScreenSharing())

	// Stopping again is a no-op, not a second transport call.
	before := len(transport.callLog())
	require.NoError(t, s.StopShareScreen())
	assert.Len(t, transport.callLog(), before)
}

func TestShareScreenFailureLeavesFlagClear(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()
	transport := &sessionTransport{contentErr: errors.New("denied")}

	s := joinedSession(t, srv, transport)
	require.NoError(t, s.Enter(context.Background()))

	err := s.ShareScreen(context.Background(), media.NewStreamHandle())
	require.Error(t, err)
	assert.False(t, s.ScreenSharing())
}

func TestLeaveClearsScreenSharing(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()
	transport := &sessionTransport{}

	s := joinedSession(t, srv, transport)
	require.NoError(t, s.Enter(context.Background()))
	require.NoError(t, s.ShareScreen(context.Background(), media.NewStreamHandle()))

	require.NoError(t, s.Leave(context.Background()))
	assert.False(t, s.ScreenSharing())
}

func TestPresenceEventsReachRoster(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()
	transport := &sessionTransport{}

	s := joinedSession(t, srv, transport)
	require.NoError(t, s.Enter(context.Background()))

	transport.mu.Lock()
	presence := transport.presence
	transport.mu.Unlock()
	require.NotNil(t, presence)

	presence("a-remote", true)
	assert.Eventually(t, func() bool {
		return s.Roster().Len() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "Alice", s.Roster().DisplayName("a-remote"))
}

func TestStartPreviewRequiresPreviewPhase(t *testing.T) {
	srv := newTestBackend(t)
	defer srv.Close()

	s := newTestSession(t, srv, &sessionTransport{})
	err := s.StartPreview(&testSurface{id: "p"})
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestPhaseTransitions(t *testing.T) {
	assert.True(t, PhaseIdle.CanTransition(PhaseJoining))
	assert.True(t, PhaseInPreview.CanTransition(PhaseEntering))
	assert.True(t, PhaseEntering.CanTransition(PhaseInPreview))
	assert.False(t, PhaseIdle.CanTransition(PhaseInMeeting))
	assert.False(t, PhaseInMeeting.CanTransition(PhaseInPreview))
	assert.Equal(t, "in-meeting", PhaseInMeeting.String())
}
