// Package security holds the in-memory guards: failure lockout and CSRF
// token issuance. Both take an injected clock so tests never sleep.
package security

import (
	"context"
	"sync"
	"time"
)

// lockoutEntry tracks one identifier (account or client IP). Timestamps only
// exist while accumulating; once locked the list is cleared and lockedUntil
// carries the state.
type lockoutEntry struct {
	failures    []time.Time
	lockedUntil time.Time
}

// LockoutGuard counts authentication failures per identifier over a sliding
// window and time-boxes a lock once the threshold is hit. Expired locks
// self-heal on read; the sweeper only exists for memory hygiene.
type LockoutGuard struct {
	maxFailures int
	window      time.Duration
	lockFor     time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*lockoutEntry
}

func NewLockoutGuard(maxFailures int, window, lockFor time.Duration, now func() time.Time) *LockoutGuard {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	if lockFor <= 0 {
		lockFor = 15 * time.Minute
	}
	if now == nil {
		now = time.Now
	}

	return &LockoutGuard{
		maxFailures: maxFailures,
		window:      window,
		lockFor:     lockFor,
		now:         now,
		entries:     map[string]*lockoutEntry{},
	}
}

// RecordFailure appends a failure instant and returns true when this failure
// tripped the lock. Entries older than the window never count.
func (g *LockoutGuard) RecordFailure(identifier string) bool {
	ts := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.entries[identifier]
	if !ok {
		entry = &lockoutEntry{}
		g.entries[identifier] = entry
	}

	if !entry.lockedUntil.IsZero() {
		if ts.Before(entry.lockedUntil) {
			return false
		}
		// Lock expired; the entry heals before the new failure counts.
		entry.lockedUntil = time.Time{}
	}

	cutoff := ts.Add(-g.window)
	kept := entry.failures[:0]
	for _, f := range entry.failures {
		if f.After(cutoff) {
			kept = append(kept, f)
		}
	}
	entry.failures = append(kept, ts)

	if len(entry.failures) >= g.maxFailures {
		entry.lockedUntil = ts.Add(g.lockFor)
		entry.failures = nil
		return true
	}

	return false
}

// IsLocked reports whether the identifier is currently locked and how long
// remains. A lock past its deadline heals in place without a sweep.
func (g *LockoutGuard) IsLocked(identifier string) (bool, time.Duration) {
	ts := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.entries[identifier]
	if !ok || entry.lockedUntil.IsZero() {
		return false, 0
	}

	if !ts.Before(entry.lockedUntil) {
		entry.lockedUntil = time.Time{}
		entry.failures = nil
		return false, 0
	}

	return true, entry.lockedUntil.Sub(ts)
}

// Clear drops both failure history and lock state, called on successful
// authentication so failures never accumulate across successes.
func (g *LockoutGuard) Clear(identifier string) {
	g.mu.Lock()
	delete(g.entries, identifier)
	g.mu.Unlock()
}

// Sweep purges entries that carry no live state: expired locks and failure
// lists that slid entirely out of the window. Returns the number removed.
// The lock is taken per entry, not across the whole pass, so concurrent
// logins are never stalled behind a large sweep.
func (g *LockoutGuard) Sweep() int {
	ts := g.now()
	cutoff := ts.Add(-g.window)

	g.mu.Lock()
	ids := make([]string, 0, len(g.entries))
	for id := range g.entries {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	removed := 0
	for _, id := range ids {
		g.mu.Lock()
		entry, ok := g.entries[id]
		if ok && g.entryStale(entry, ts, cutoff) {
			delete(g.entries, id)
			removed++
		}
		g.mu.Unlock()
	}

	return removed
}

func (g *LockoutGuard) entryStale(entry *lockoutEntry, ts, cutoff time.Time) bool {
	if !entry.lockedUntil.IsZero() && ts.Before(entry.lockedUntil) {
		return false
	}
	for _, f := range entry.failures {
		if f.After(cutoff) {
			return false
		}
	}
	return true
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (g *LockoutGuard) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}

// Len reports tracked identifiers, used by the sweeper tests.
func (g *LockoutGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
