package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionClock_UsesWallClock(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	c := NewVersionClockWithSource(func() time.Time { return at })

	assert.Equal(t, int64(1_700_000_000_000), c.Next())
	assert.Equal(t, int64(1_700_000_000_000), c.Last())
}

func TestVersionClock_StrictlyIncreasingWhenTimeStalls(t *testing.T) {
	at := time.UnixMilli(1000)
	c := NewVersionClockWithSource(func() time.Time { return at })

	var previous int64
	for i := 0; i < 100; i++ {
		current := c.Next()
		assert.Greater(t, current, previous, "Next should always increase")
		previous = current
	}
	assert.Equal(t, int64(1099), previous)
}

func TestVersionClock_ClockGoesBackwards(t *testing.T) {
	times := []int64{5000, 4000, 6000}
	i := 0
	c := NewVersionClockWithSource(func() time.Time {
		v := times[i]
		i++
		return time.UnixMilli(v)
	})

	assert.Equal(t, int64(5000), c.Next())
	assert.Equal(t, int64(5001), c.Next(), "backwards jump must not repeat a version")
	assert.Equal(t, int64(6000), c.Next())
}

func TestVersionClock_Observe(t *testing.T) {
	c := NewVersionClockWithSource(func() time.Time { return time.UnixMilli(100) })

	c.Observe(500)
	assert.Equal(t, int64(501), c.Next())

	// Меньшее значение не откатывает часы назад
	c.Observe(10)
	assert.Equal(t, int64(502), c.Next())
}

func TestVersionClock_Concurrent(t *testing.T) {
	c := NewVersionClock()

	const goroutines = 10
	const perGoroutine = 100

	var mu sync.Mutex
	seen := make(map[int64]struct{}, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				v := c.Next()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*perGoroutine, "all versions must be distinct")
}
