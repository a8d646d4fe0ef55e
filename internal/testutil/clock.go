package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the ledger time FixedTime starts from when none is given.
var DefaultEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// FixedTime is a controllable ledger time source for tests.
//
// Now returns the same instant until Advance or Set is called, so mint
// timestamps are reproducible across runs and golden comparisons.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedTime creates a time source frozen at t. A zero t uses DefaultEpoch.
func NewFixedTime(t time.Time) *FixedTime {
	if t.IsZero() {
		t = DefaultEpoch
	}
	return &FixedTime{now: t}
}

// Now returns the current frozen instant.
//
// Implements engine.TimeSource interface.
func (c *FixedTime) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedTime) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FixedTime) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
