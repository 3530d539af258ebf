package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestTracker(window time.Duration) (*MemoryTracker, *time.Time) {
	tracker := NewMemoryTracker(window)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }
	return tracker, &now
}

func TestSetTypingVisibleImmediately(t *testing.T) {
	tracker, _ := newTestTracker(3 * time.Second)
	ctx := context.Background()

	require.NoError(t, tracker.SetTyping(ctx, 1, 10, true))
	require.NoError(t, tracker.SetTyping(ctx, 2, 10, true))
	require.NoError(t, tracker.SetTyping(ctx, 3, 99, true))

	users, err := tracker.TypingUsers(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, users)
}

func TestTypingFalseClearsImmediately(t *testing.T) {
	tracker, _ := newTestTracker(3 * time.Second)
	ctx := context.Background()

	require.NoError(t, tracker.SetTyping(ctx, 1, 10, true))
	require.NoError(t, tracker.SetTyping(ctx, 1, 10, false))

	users, err := tracker.TypingUsers(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestTypingDecaysAfterWindow(t *testing.T) {
	tracker, now := newTestTracker(3 * time.Second)
	ctx := context.Background()

	require.NoError(t, tracker.SetTyping(ctx, 1, 10, true))

	// reader-side staleness filter kicks in even before the timer fires
	*now = now.Add(3500 * time.Millisecond)
	users, err := tracker.TypingUsers(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestFreshWriteWithinWindowStaysVisible(t *testing.T) {
	tracker, now := newTestTracker(3 * time.Second)
	ctx := context.Background()

	require.NoError(t, tracker.SetTyping(ctx, 1, 10, true))
	*now = now.Add(2 * time.Second)
	require.NoError(t, tracker.SetTyping(ctx, 1, 10, true))
	*now = now.Add(2 * time.Second)

	// 4s after the first write, 2s after the refresh
	users, err := tracker.TypingUsers(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []int{1}, users)
}

func TestScheduledClearSkipsFresherWrite(t *testing.T) {
	tracker, now := newTestTracker(3 * time.Second)
	ctx := context.Background()

	require.NoError(t, tracker.SetTyping(ctx, 1, 10, true))
	firstStamp := *now

	*now = now.Add(time.Second)
	require.NoError(t, tracker.SetTyping(ctx, 1, 10, true))

	// a clear armed against the first write must not touch the fresher record
	tracker.clear(key{userID: 1, groupID: 10}, firstStamp)

	users, err := tracker.TypingUsers(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []int{1}, users)
}

func TestScheduledClearFlipsMatchingWrite(t *testing.T) {
	tracker, now := newTestTracker(3 * time.Second)
	ctx := context.Background()

	require.NoError(t, tracker.SetTyping(ctx, 1, 10, true))
	tracker.clear(key{userID: 1, groupID: 10}, *now)

	users, err := tracker.TypingUsers(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestTypingRecordsReclaimed(t *testing.T) {
	tracker, now := newTestTracker(3 * time.Second)
	ctx := context.Background()

	// an explicit stop removes the record, not just hides it
	require.NoError(t, tracker.SetTyping(ctx, 1, 10, true))
	require.NoError(t, tracker.SetTyping(ctx, 1, 10, false))
	require.Empty(t, tracker.entries)
	require.Empty(t, tracker.timers)

	// so does a fired clear
	require.NoError(t, tracker.SetTyping(ctx, 2, 10, true))
	tracker.clear(key{userID: 2, groupID: 10}, *now)
	require.Empty(t, tracker.entries)
	require.Empty(t, tracker.timers)
}

func TestTimerClearsForReal(t *testing.T) {
	tracker := NewMemoryTracker(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, tracker.SetTyping(ctx, 1, 10, true))
	require.Eventually(t, func() bool {
		users, err := tracker.TypingUsers(ctx, 10)
		return err == nil && len(users) == 0
	}, time.Second, 10*time.Millisecond)
}
