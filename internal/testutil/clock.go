package testutil

import (
	"sync"
	"time"
)

// FakeClock is a settable wall clock for tests.
//
// Unlike clock.System, FakeClock only moves when told to, so timestamps in
// assertions and golden files are stable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// DefaultEpoch is the instant a FakeClock starts at when none is given:
// Monday 2026-10-19 09:00 UTC.
var DefaultEpoch = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// NewFakeClock creates a clock reading start (DefaultEpoch if zero).
func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	return &FakeClock{now: start.UTC()}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward (or backward, for negative d).
func (c *FakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set jumps the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
