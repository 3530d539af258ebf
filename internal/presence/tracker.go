// Package presence tracks ephemeral per-(user, group) typing state.
//
// Typing indicators are best-effort, high-churn signals: writers schedule a
// deferred clear after the freshness window, and readers additionally filter
// out stale entries, so a client that disconnects mid-type disappears from
// the typing list without an explicit stop event.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultWindow is the freshness window after which a typing record is
// considered stale.
const DefaultWindow = 3 * time.Second

// Tracker is the typing-state store.
type Tracker interface {
	SetTyping(ctx context.Context, userID, groupID int, isTyping bool) error
	TypingUsers(ctx context.Context, groupID int) ([]int, error)
}

type key struct {
	userID  int
	groupID int
}

// MemoryTracker is the in-process Tracker. A record exists only while its
// user is typing; each typing=true write arms a timer that removes it after
// the window, keyed to the write timestamp so it never clobbers a fresher
// write.
type MemoryTracker struct {
	mu      sync.Mutex
	entries map[key]time.Time
	timers  map[key]*time.Timer
	window  time.Duration
	now     func() time.Time
}

// NewMemoryTracker constructs a MemoryTracker with the given window.
func NewMemoryTracker(window time.Duration) *MemoryTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryTracker{
		entries: make(map[key]time.Time),
		timers:  make(map[key]*time.Timer),
		window:  window,
		now:     time.Now,
	}
}

// SetTyping upserts the (user, group) record. An earlier pending clear is
// canceled and rescheduled. A false write removes the record entirely so the
// map does not accumulate dead pairs.
func (t *MemoryTracker) SetTyping(ctx context.Context, userID, groupID int, isTyping bool) error {
	k := key{userID: userID, groupID: groupID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[k]; ok {
		timer.Stop()
		delete(t.timers, k)
	}

	if !isTyping {
		delete(t.entries, k)
		return nil
	}

	stamp := t.now()
	t.entries[k] = stamp
	t.timers[k] = time.AfterFunc(t.window, func() {
		t.clear(k, stamp)
	})
	return nil
}

// clear removes the record only if it still carries the timestamp the timer
// was armed against.
func (t *MemoryTracker) clear(k key, stamp time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.entries[k]
	if !ok || !cur.Equal(stamp) {
		return
	}
	delete(t.entries, k)
	delete(t.timers, k)
}

// TypingUsers returns users typing in the group, filtering records older
// than the freshness window even if a clear has not fired yet.
func (t *MemoryTracker) TypingUsers(ctx context.Context, groupID int) ([]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.window)
	var users []int
	for k, stamp := range t.entries {
		if k.groupID != groupID || stamp.Before(cutoff) {
			continue
		}
		users = append(users, k.userID)
	}
	sort.Ints(users)
	return users, nil
}
