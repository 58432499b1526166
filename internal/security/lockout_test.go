package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func TestLockoutGuard_LocksAtThreshold(t *testing.T) {
	clock := newFakeClock()
	guard := NewLockoutGuard(5, 15*time.Minute, 15*time.Minute, clock.Now)

	for i := 0; i < 4; i++ {
		assert.False(t, guard.RecordFailure("user-1"))
		locked, _ := guard.IsLocked("user-1")
		assert.False(t, locked)
	}

	assert.True(t, guard.RecordFailure("user-1"), "fifth failure trips the lock")

	locked, remaining := guard.IsLocked("user-1")
	assert.True(t, locked)
	assert.Equal(t, 15*time.Minute, remaining)
}

func TestLockoutGuard_SuccessClearsHistory(t *testing.T) {
	clock := newFakeClock()
	guard := NewLockoutGuard(5, 15*time.Minute, 15*time.Minute, clock.Now)

	for i := 0; i < 4; i++ {
		guard.RecordFailure("user-1")
	}
	guard.Clear("user-1")

	// The next failure starts a fresh series at 1, not 5.
	assert.False(t, guard.RecordFailure("user-1"))
	locked, _ := guard.IsLocked("user-1")
	assert.False(t, locked)
}

func TestLockoutGuard_SlidingWindowPrunesOldFailures(t *testing.T) {
	clock := newFakeClock()
	guard := NewLockoutGuard(5, 15*time.Minute, 15*time.Minute, clock.Now)

	for i := 0; i < 4; i++ {
		guard.RecordFailure("user-1")
	}

	// The first four slide out of the window before the fifth arrives.
	clock.Advance(16 * time.Minute)
	assert.False(t, guard.RecordFailure("user-1"))
	locked, _ := guard.IsLocked("user-1")
	assert.False(t, locked)
}

func TestLockoutGuard_SelfHealsAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	guard := NewLockoutGuard(3, 15*time.Minute, 10*time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		guard.RecordFailure("10.0.0.9")
	}
	locked, _ := guard.IsLocked("10.0.0.9")
	require.True(t, locked)

	clock.Advance(9 * time.Minute)
	locked, remaining := guard.IsLocked("10.0.0.9")
	assert.True(t, locked)
	assert.Equal(t, time.Minute, remaining)

	clock.Advance(time.Minute)
	locked, _ = guard.IsLocked("10.0.0.9")
	assert.False(t, locked, "lock expires without any external action")
}

func TestLockoutGuard_FailuresDuringLockDoNotExtend(t *testing.T) {
	clock := newFakeClock()
	guard := NewLockoutGuard(3, 15*time.Minute, 10*time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		guard.RecordFailure("user-1")
	}

	clock.Advance(5 * time.Minute)
	assert.False(t, guard.RecordFailure("user-1"))

	_, remaining := guard.IsLocked("user-1")
	assert.Equal(t, 5*time.Minute, remaining)
}

func TestLockoutGuard_LockedEntryCountsFreshAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	guard := NewLockoutGuard(3, 15*time.Minute, 10*time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		guard.RecordFailure("user-1")
	}

	// After the lock expires the timestamp list was cleared, so a single
	// failure does not immediately re-lock.
	clock.Advance(11 * time.Minute)
	assert.False(t, guard.RecordFailure("user-1"))
	locked, _ := guard.IsLocked("user-1")
	assert.False(t, locked)
}

func TestLockoutGuard_IdentifiersAreIndependent(t *testing.T) {
	clock := newFakeClock()
	guard := NewLockoutGuard(3, 15*time.Minute, 10*time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		guard.RecordFailure("user-1")
	}

	locked, _ := guard.IsLocked("user-2")
	assert.False(t, locked)
	assert.False(t, guard.RecordFailure("user-2"))
}

func TestLockoutGuard_SweepPurgesStaleEntries(t *testing.T) {
	clock := newFakeClock()
	guard := NewLockoutGuard(5, 15*time.Minute, 10*time.Minute, clock.Now)

	guard.RecordFailure("stale")
	for i := 0; i < 5; i++ {
		guard.RecordFailure("locked")
	}
	require.Equal(t, 2, guard.Len())

	// Nothing stale yet: one entry has a recent failure, one a live lock.
	assert.Equal(t, 0, guard.Sweep())

	clock.Advance(16 * time.Minute)
	assert.Equal(t, 2, guard.Sweep())
	assert.Equal(t, 0, guard.Len())
}
