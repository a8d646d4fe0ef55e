package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator generates "<prefix>-1", "<prefix>-2", ... in order.
//
// This enables deterministic test execution: the same scenario produces the
// same nonces, and therefore the same transaction IDs, on every run. Unlike
// engine.FixedGenerator it never runs out.
//
// Thread-safety: SequentialGenerator is safe for concurrent use.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator. If prefix is empty,
// "test" is used.
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "test"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements txn.NonceGenerator and engine.IDGenerator.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequentialGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
