package roster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/meetsync/media"
)

// gatedResolver blocks each resolution until released, so tests can order
// resolutions relative to other events.
type gatedResolver struct {
	mu    sync.Mutex
	names map[string]string
	err   error
	gates map[string]chan struct{}
}

func newGatedResolver() *gatedResolver {
	return &gatedResolver{
		names: make(map[string]string),
		gates: make(map[string]chan struct{}),
	}
}

func (r *gatedResolver) gate(attendeeID string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gates[attendeeID]
	if !ok {
		g = make(chan struct{})
		r.gates[attendeeID] = g
	}
	return g
}

func (r *gatedResolver) ResolveDisplayName(_ context.Context, attendeeID string) (string, error) {
	<-r.gate(attendeeID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	return r.names[attendeeID], nil
}

// instantResolver resolves synchronously from a fixed table.
type instantResolver struct {
	names map[string]string
	err   error
}

func (r *instantResolver) ResolveDisplayName(_ context.Context, attendeeID string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.names[attendeeID], nil
}

// recordingSubscriber records volume indicator subscription churn.
type recordingSubscriber struct {
	mu           sync.Mutex
	subscribed   []string
	unsubscribed []string
}

func (s *recordingSubscriber) SubscribeVolumeIndicator(attendeeID string, _ media.VolumeCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = append(s.subscribed, attendeeID)
}

func (s *recordingSubscriber) UnsubscribeVolumeIndicator(attendeeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = append(s.unsubscribed, attendeeID)
}

func (s *recordingSubscriber) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribed), len(s.unsubscribed)
}

func waitForLen(t *testing.T, r *Roster, want int) {
	t.Helper()
	assert.Eventually(t, func() bool { return r.Len() == want },
		time.Second, 5*time.Millisecond)
}

func f64(v float64) *float64 { return &v }
func b(v bool) *bool         { return &v }

func TestJoinPublishesResolvedName(t *testing.T) {
	resolver := &instantResolver{names: map[string]string{"a1": "Alice"}}
	subs := &recordingSubscriber{}
	r := New(resolver, subs)

	r.HandlePresence("a1", true)
	waitForLen(t, r, 1)

	rec, ok := r.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "Alice", rec.DisplayName)
	assert.False(t, rec.SharedContent)

	subbed, _ := subs.counts()
	assert.Equal(t, 1, subbed)
}

func TestJoinFallsBackToRawIDOnResolverError(t *testing.T) {
	resolver := &instantResolver{err: errors.New("lookup failed")}
	r := New(resolver, &recordingSubscriber{})

	r.HandlePresence("a1", true)
	waitForLen(t, r, 1)

	assert.Equal(t, "a1", r.DisplayName("a1"))
}

func TestContentShareAttendeeDerivesOwner(t *testing.T) {
	resolver := &instantResolver{names: map[string]string{}}
	r := New(resolver, &recordingSubscriber{})

	r.HandlePresence("a1#content", true)
	waitForLen(t, r, 1)

	rec, ok := r.Get("a1#content")
	require.True(t, ok)
	assert.True(t, rec.SharedContent)
	assert.Equal(t, "a1", rec.OwnerID)
}

// A leave arriving while the join's name resolution is still in flight must
// discard the resolution instead of resurrecting the attendee.
func TestLeaveBeforeResolutionDiscardsRecord(t *testing.T) {
	resolver := newGatedResolver()
	resolver.names["a1"] = "Alice"
	subs := &recordingSubscriber{}
	r := New(resolver, subs)

	r.HandlePresence("a1", true)
	r.HandlePresence("a1", false)
	close(resolver.gate("a1"))

	// Give the resolution goroutine a chance to (incorrectly) publish.
	assert.Never(t, func() bool { return r.Len() != 0 },
		100*time.Millisecond, 10*time.Millisecond)

	_, unsubbed := subs.counts()
	assert.Equal(t, 1, unsubbed)
}

// Out-of-order resolutions across multiple joins must still converge on the
// set of attendees whose latest presence event was present=true.
func TestInterleavedJoinsResolveOutOfOrder(t *testing.T) {
	resolver := newGatedResolver()
	resolver.names["a1"] = "Alice"
	resolver.names["a2"] = "Bob"
	resolver.names["a3"] = "Carol"
	r := New(resolver, &recordingSubscriber{})

	r.HandlePresence("a1", true)
	r.HandlePresence("a2", true)
	r.HandlePresence("a3", true)
	r.HandlePresence("a2", false)

	// Release in reverse join order.
	close(resolver.gate("a3"))
	close(resolver.gate("a2"))
	close(resolver.gate("a1"))

	waitForLen(t, r, 2)
	snap := r.Snapshot()
	assert.Contains(t, snap, "a1")
	assert.Contains(t, snap, "a3")
	assert.NotContains(t, snap, "a2")
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := New(&instantResolver{names: map[string]string{}}, &recordingSubscriber{})
	r.HandlePresence("ghost", false)
	r.HandlePresence("ghost", false)
	assert.Zero(t, r.Len())
}

func TestDuplicateJoinResolvesOnce(t *testing.T) {
	resolver := &instantResolver{names: map[string]string{"a1": "Alice"}}
	subs := &recordingSubscriber{}
	r := New(resolver, subs)

	r.HandlePresence("a1", true)
	r.HandlePresence("a1", true)
	waitForLen(t, r, 1)

	subbed, _ := subs.counts()
	assert.Equal(t, 1, subbed)
}

func TestVolumeMergeKeepsNilFieldsUnchanged(t *testing.T) {
	r := New(&instantResolver{names: map[string]string{"a1": "Alice"}}, &recordingSubscriber{})
	r.HandlePresence("a1", true)
	waitForLen(t, r, 1)

	r.HandleVolume("a1", f64(0.7), b(true), f64(0.9))
	rec, _ := r.Get("a1")
	assert.Equal(t, 0.7, rec.Volume)
	assert.True(t, rec.Muted)
	assert.Equal(t, 0.9, rec.SignalStrength)

	// Nil means unchanged, never reset.
	r.HandleVolume("a1", nil, b(false), nil)
	rec, _ = r.Get("a1")
	assert.Equal(t, 0.7, rec.Volume)
	assert.False(t, rec.Muted)
	assert.Equal(t, 0.9, rec.SignalStrength)
}

func TestVolumeForUntrackedAttendeeIsDropped(t *testing.T) {
	r := New(&instantResolver{names: map[string]string{}}, &recordingSubscriber{})
	r.HandleVolume("gone", f64(1), nil, nil)
	assert.Zero(t, r.Len())
}

func TestActiveSpeakerIsSingular(t *testing.T) {
	resolver := &instantResolver{names: map[string]string{"a1": "A", "a2": "B", "a3": "C"}}
	r := New(resolver, &recordingSubscriber{})
	for _, id := range []string{"a1", "a2", "a3"} {
		r.HandlePresence(id, true)
	}
	waitForLen(t, r, 3)

	countActive := func() int {
		n := 0
		for _, rec := range r.Snapshot() {
			if rec.ActiveSpeaker {
				n++
			}
		}
		return n
	}

	// First-ranked id wins even when several are reported.
	r.HandleActiveSpeakers([]string{"a2", "a1"})
	assert.Equal(t, 1, countActive())
	rec, _ := r.Get("a2")
	assert.True(t, rec.ActiveSpeaker)

	// First-ranked id not in roster: next present one wins.
	r.HandleActiveSpeakers([]string{"missing", "a3"})
	assert.Equal(t, 1, countActive())
	rec, _ = r.Get("a3")
	assert.True(t, rec.ActiveSpeaker)

	// Empty detector result clears everyone.
	r.HandleActiveSpeakers(nil)
	assert.Zero(t, countActive())
}

func TestScoresMergeOnlyTrackedAttendees(t *testing.T) {
	r := New(&instantResolver{names: map[string]string{"a1": "A"}}, &recordingSubscriber{})
	r.HandlePresence("a1", true)
	waitForLen(t, r, 1)

	r.HandleScores(map[string]float64{"a1": 0.42, "stranger": 0.9})
	rec, _ := r.Get("a1")
	assert.Equal(t, 0.42, rec.ActivityScore)
	_, ok := r.Get("stranger")
	assert.False(t, ok)
}

func TestChangeNotificationFiresOncePerVisibleChange(t *testing.T) {
	r := New(&instantResolver{names: map[string]string{"a1": "A"}}, &recordingSubscriber{})
	var mu sync.Mutex
	changes := 0
	r.OnChange(func() {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	r.HandlePresence("a1", true)
	waitForLen(t, r, 1)

	r.HandleVolume("a1", f64(0.5), nil, nil) // change
	r.HandleVolume("a1", f64(0.5), nil, nil) // no-op merge
	r.HandleScores(map[string]float64{"a1": 0.5})
	r.HandleScores(map[string]float64{"a1": 0.5}) // no-op merge

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, changes, "join + volume + score")
}

func TestShutdownStopsMutationAndUnsubscribes(t *testing.T) {
	resolver := newGatedResolver()
	resolver.names["late"] = "Late"
	subs := &recordingSubscriber{}
	r := New(resolver, subs)

	r.HandlePresence("late", true)
	r.Shutdown()

	// A stale callback after shutdown must not resurrect state.
	r.HandlePresence("after", true)
	close(resolver.gate("late"))
	close(resolver.gate("after"))

	assert.Never(t, func() bool { return r.Len() != 0 },
		100*time.Millisecond, 10*time.Millisecond)

	_, unsubbed := subs.counts()
	assert.Equal(t, 1, unsubbed)
}
