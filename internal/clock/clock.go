// Package clock provides the wall clock and logical sequence used to stamp
// records and events.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock tells the current wall time. Injected everywhere "now" matters so
// tests can pin it.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock, in UTC.
type System struct{}

// Now returns time.Now() in UTC.
func (System) Now() time.Time { return time.Now().UTC() }

// Sequence is a monotonic logical clock for event ordering.
//
// Every event published by a store is stamped with a strictly increasing
// seq from that store's Sequence, so subscribers can observe commit order
// independent of wall time.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

