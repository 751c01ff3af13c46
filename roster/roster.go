package roster

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/meetsync/media"
)

// NameResolver resolves an attendee id to a display name via an external
// lookup. Resolution order is not guaranteed to match join order.
type NameResolver interface {
	ResolveDisplayName(ctx context.Context, attendeeID string) (string, error)
}

// VolumeSubscriber is the slice of the media transport the roster needs to
// manage per-attendee volume-indicator subscriptions.
type VolumeSubscriber interface {
	SubscribeVolumeIndicator(attendeeID string, cb media.VolumeCallback)
	UnsubscribeVolumeIndicator(attendeeID string)
}

// Roster owns the attendee set for one meeting session. All mutation goes
// through the Handle* methods; readers get copies via Snapshot and Get.
type Roster struct {
	resolver NameResolver
	subs     VolumeSubscriber

	mu      sync.Mutex
	records map[string]*Record
	// present tracks the latest presence verdict per id, including joins
	// whose name resolution is still in flight. It is the authority an
	// async resolution checks before publishing its record.
	present map[string]bool
	closed  bool

	onChange func()
}

// New creates an empty roster. Both collaborators are required.
func New(resolver NameResolver, subs VolumeSubscriber) *Roster {
	logrus.WithFields(logrus.Fields{
		"function": "New",
	}).Debug("roster created")
	return &Roster{
		resolver: resolver,
		subs:     subs,
		records:  make(map[string]*Record),
		present:  make(map[string]bool),
	}
}

// OnChange registers the change notification. It fires once per merge that
// changed visible state, after the roster lock is released, so the callback
// may read snapshots freely.
func (r *Roster) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Roster) notify() {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// HandlePresence processes a join or leave event for an attendee.
//
// A join subscribes the id's volume indicator immediately and kicks off the
// asynchronous display-name resolution; the record is published once the name
// arrives, unless the attendee left in the meantime. A leave unsubscribes and
// removes; it is idempotent for ids already absent.
func (r *Roster) HandlePresence(attendeeID string, present bool) {
	if present {
		r.handleJoin(attendeeID)
		return
	}
	r.handleLeave(attendeeID)
}

func (r *Roster) handleJoin(attendeeID string) {
	r.mu.Lock()
	if r.closed || r.present[attendeeID] {
		r.mu.Unlock()
		return
	}
	r.present[attendeeID] = true
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "handleJoin",
		"attendee": attendeeID,
	}).Info("attendee joined")

	r.subs.SubscribeVolumeIndicator(attendeeID, r.HandleVolume)

	// Name resolution is an external call and must not block the presence
	// callback. The result is merged against then-current state.
	go r.resolveAndPublish(attendeeID)
}

func (r *Roster) resolveAndPublish(attendeeID string) {
	name, err := r.resolver.ResolveDisplayName(context.Background(), attendeeID)
	if err != nil || name == "" {
		// Non-success lookups fall back to the raw id.
		name = attendeeID
	}

	r.mu.Lock()
	if r.closed || !r.present[attendeeID] {
		// The attendee left (or the session ended) while the lookup was
		// in flight. Publishing now would resurrect a removed attendee.
		r.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "resolveAndPublish",
			"attendee": attendeeID,
		}).Debug("discarding stale name resolution")
		return
	}
	if _, exists := r.records[attendeeID]; exists {
		r.mu.Unlock()
		return
	}
	r.records[attendeeID] = newRecord(attendeeID, name)
	r.mu.Unlock()

	r.notify()
}

func (r *Roster) handleLeave(attendeeID string) {
	r.mu.Lock()
	if r.closed || !r.present[attendeeID] {
		r.mu.Unlock()
		return
	}
	delete(r.present, attendeeID)
	_, hadRecord := r.records[attendeeID]
	delete(r.records, attendeeID)
	r.mu.Unlock()

	// Unsubscribing here guarantees no dangling volume updates after the
	// record is gone.
	r.subs.UnsubscribeVolumeIndicator(attendeeID)

	logrus.WithFields(logrus.Fields{
		"function": "handleLeave",
		"attendee": attendeeID,
	}).Info("attendee left")

	if hadRecord {
		r.notify()
	}
}

// HandleVolume merges a volume-indicator update into the attendee's record.
// A nil field means "unchanged", never "reset to zero/false". Updates for
// attendees no longer tracked are dropped (races with a leave are expected).
func (r *Roster) HandleVolume(attendeeID string, volume *float64, muted *bool, signalStrength *float64) {
	r.mu.Lock()
	rec, ok := r.records[attendeeID]
	if r.closed || !ok {
		r.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "HandleVolume",
			"attendee": attendeeID,
		}).Debug("dropping volume update for untracked attendee")
		return
	}
	changed := false
	if volume != nil && rec.Volume != *volume {
		rec.Volume = *volume
		changed = true
	}
	if muted != nil && rec.Muted != *muted {
		rec.Muted = *muted
		changed = true
	}
	if signalStrength != nil && rec.SignalStrength != *signalStrength {
		rec.SignalStrength = *signalStrength
		changed = true
	}
	r.mu.Unlock()

	if changed {
		r.notify()
	}
}

// HandleActiveSpeakers applies an active-speaker detector result. At most the
// first-ranked id present in the roster is marked active; every other record
// is cleared, so the roster never shows more than one active speaker.
func (r *Roster) HandleActiveSpeakers(attendeeIDs []string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	active := ""
	for _, id := range attendeeIDs {
		if _, ok := r.records[id]; ok {
			active = id
			break
		}
	}
	changed := false
	for id, rec := range r.records {
		want := id == active
		if rec.ActiveSpeaker != want {
			rec.ActiveSpeaker = want
			changed = true
		}
	}
	r.mu.Unlock()

	if changed {
		r.notify()
	}
}

// HandleScores merges activity scores for attendees still in the roster.
func (r *Roster) HandleScores(scores map[string]float64) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	changed := false
	for id, score := range scores {
		if rec, ok := r.records[id]; ok && rec.ActivityScore != score {
			rec.ActivityScore = score
			changed = true
		}
	}
	r.mu.Unlock()

	if changed {
		r.notify()
	}
}

// Get returns a copy of the attendee's record.
func (r *Roster) Get(attendeeID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[attendeeID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// DisplayName returns the resolved display name for the attendee, falling
// back to the raw id when the attendee is unknown.
func (r *Roster) DisplayName(attendeeID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[attendeeID]; ok {
		return rec.DisplayName
	}
	return attendeeID
}

// Snapshot returns a copy of every published record keyed by attendee id.
func (r *Roster) Snapshot() map[string]Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Record, len(r.records))
	for id, rec := range r.records {
		out[id] = *rec
	}
	return out
}

// Len returns the number of published records.
func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Shutdown stops accepting event-driven mutation, unsubscribes every volume
// indicator, and clears all state. Events and late name resolutions arriving
// afterwards are dropped. Shutdown is idempotent.
func (r *Roster) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	ids := make([]string, 0, len(r.present))
	for id := range r.present {
		ids = append(ids, id)
	}
	r.records = make(map[string]*Record)
	r.present = make(map[string]bool)
	r.mu.Unlock()

	for _, id := range ids {
		r.subs.UnsubscribeVolumeIndicator(id)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Shutdown",
		"attendees": len(ids),
	}).Info("roster shut down")
}
