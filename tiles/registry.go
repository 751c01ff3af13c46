package tiles

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/meetsync/media"
)

// Unbinder is the slice of the media transport the registry needs to release
// render targets for removed tiles.
type Unbinder interface {
	UnbindVideoTile(tileID int)
}

// NewTileCallback is invoked with the tile state whenever a new tile or a
// tile replacement requires the view layer to bind a render target.
type NewTileCallback func(state media.TileState)

// Registry owns the attendee→tile mapping for one meeting session. It
// satisfies media.TileObserver so it can be registered with the transport
// directly.
type Registry struct {
	unbinder Unbinder

	mu         sync.Mutex
	byAttendee map[string]media.TileState
	latest     *media.TileState
	closed     bool

	onNewTile NewTileCallback
}

// New creates an empty registry. The unbinder may be nil when the embedding
// application manages render targets itself.
func New(unbinder Unbinder) *Registry {
	return &Registry{
		unbinder:   unbinder,
		byAttendee: make(map[string]media.TileState),
	}
}

// OnNewTile registers the new-tile notification.
func (g *Registry) OnNewTile(fn NewTileCallback) {
	g.mu.Lock()
	g.onNewTile = fn
	g.mu.Unlock()
}

// TileUpdated implements media.TileObserver. Updates without a bound
// attendee are placeholder tiles and are ignored.
func (g *Registry) TileUpdated(state media.TileState) {
	if state.BoundAttendeeID == "" {
		return
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	prev, exists := g.byAttendee[state.BoundAttendeeID]
	g.byAttendee[state.BoundAttendeeID] = state
	announce := !exists || prev.TileID != state.TileID
	if announce {
		s := state
		g.latest = &s
	}
	fn := g.onNewTile
	g.mu.Unlock()

	if !announce {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "TileUpdated",
		"attendee": state.BoundAttendeeID,
		"tile":     state.TileID,
		"replaced": exists,
	}).Info("new tile available")
	if fn != nil {
		fn(state)
	}
}

// TileRemoved implements media.TileObserver. It unbinds the render target
// for the tile and forgets the record that owned it. Removals for unknown
// tile ids are dropped.
func (g *Registry) TileRemoved(tileID int) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	for attendee, state := range g.byAttendee {
		if state.TileID == tileID {
			delete(g.byAttendee, attendee)
			break
		}
	}
	if g.latest != nil && g.latest.TileID == tileID {
		g.latest = nil
	}
	g.mu.Unlock()

	if g.unbinder != nil {
		g.unbinder.UnbindVideoTile(tileID)
	}
	logrus.WithFields(logrus.Fields{
		"function": "TileRemoved",
		"tile":     tileID,
	}).Debug("tile removed")
}

// Latest returns the most recent announced tile state, if it is still bound.
func (g *Registry) Latest() (media.TileState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.latest == nil {
		return media.TileState{}, false
	}
	return *g.latest, true
}

// Get returns the stored tile state for an attendee.
func (g *Registry) Get(attendeeID string) (media.TileState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.byAttendee[attendeeID]
	return state, ok
}

// Snapshot returns a copy of the attendee→tile mapping.
func (g *Registry) Snapshot() map[string]media.TileState {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]media.TileState, len(g.byAttendee))
	for id, state := range g.byAttendee {
		out[id] = state
	}
	return out
}

// Len returns the number of tracked tiles.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.byAttendee)
}

// Shutdown stops accepting tile events and clears all state.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	g.closed = true
	g.byAttendee = make(map[string]media.TileState)
	g.latest = nil
	g.mu.Unlock()
}
