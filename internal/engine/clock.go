package engine

import (
	"sync/atomic"
	"time"
)

// Clock is the monotonic slot counter.
//
// Every submitted transaction is stamped with a strictly increasing slot from
// this clock. This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Replay produces identical slots
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	slot atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific slot.
// Used to resume after the last journaled slot.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.slot.Store(start)
	return c
}

// Next returns the next slot and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.slot.Add(1)
}

// Current returns the current slot without incrementing.
func (c *Clock) Current() int64 {
	return c.slot.Load()
}

// Advance moves the clock forward to at least slot. It never moves backwards.
func (c *Clock) Advance(slot int64) {
	for {
		cur := c.slot.Load()
		if slot <= cur || c.slot.CompareAndSwap(cur, slot) {
			return
		}
	}
}

// TimeSource provides ledger time.
// Implemented by SystemTime (production) and testutil.FixedTime (tests).
type TimeSource interface {
	Now() time.Time
}

// SystemTime reads the wall clock.
type SystemTime struct{}

// Now returns time.Now().
func (SystemTime) Now() time.Time {
	return time.Now()
}
