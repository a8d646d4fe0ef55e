package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialGenerator_Order(t *testing.T) {
	gen := NewSequentialGenerator("nonce")

	assert.Equal(t, "nonce-1", gen.Generate())
	assert.Equal(t, "nonce-2", gen.Generate())
	assert.Equal(t, "nonce-3", gen.Generate())
}

func TestSequentialGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialGenerator("")

	assert.Equal(t, "test-1", gen.Generate())
}

func TestSequentialGenerator_Reset(t *testing.T) {
	gen := NewSequentialGenerator("trace")
	gen.Generate()
	gen.Generate()

	gen.Reset()
	assert.Equal(t, "trace-1", gen.Generate())
}

func TestSequentialGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequentialGenerator("x")

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}
