package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_StartsAt(t *testing.T) {
	assert.Equal(t, int64(0), NewClock().Current())
	assert.Equal(t, int64(100), NewClockAt(100).Current())
}

func TestClock_Next_Incrementing(t *testing.T) {
	c := NewClock()

	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current(), "Current should not increment")
}

func TestClock_Advance_NeverMovesBackwards(t *testing.T) {
	c := NewClockAt(10)

	c.Advance(5)
	assert.Equal(t, int64(10), c.Current())

	c.Advance(42)
	assert.Equal(t, int64(42), c.Current())
	assert.Equal(t, int64(43), c.Next())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	const goroutines = 50
	const calls = 100

	var wg sync.WaitGroup
	slots := make(chan int64, goroutines*calls)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				slots <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(slots)

	seen := make(map[int64]bool)
	for s := range slots {
		assert.False(t, seen[s], "slot %d generated twice", s)
		seen[s] = true
	}
	assert.Len(t, seen, goroutines*calls)
}
