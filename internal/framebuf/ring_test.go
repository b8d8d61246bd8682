package framebuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_DropOldest(t *testing.T) {
	r := New[string](3)

	assert.False(t, r.Push("A"))
	assert.False(t, r.Push("B"))
	assert.False(t, r.Push("C"))
	assert.True(t, r.Push("D"), "fourth push should evict A")

	assert.Equal(t, []string{"B", "C", "D"}, r.Items())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, uint64(1), r.Dropped())

	for _, want := range []string{"B", "C", "D"} {
		got, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestRing_PopEmpty(t *testing.T) {
	r := New[int](1)
	v, ok := r.Pop()
	assert.False(t, ok)
	assert.Zero(t, v)

	_, skipped, ok := r.PopLatest()
	assert.False(t, ok)
	assert.Zero(t, skipped)
}

func TestRing_CapacityOne(t *testing.T) {
	r := New[int](1)
	for i := 1; i <= 5; i++ {
		r.Push(i)
		assert.Equal(t, 1, r.Len())
	}
	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, 5, v)
	assert.Equal(t, uint64(4), r.Dropped())
}

func TestRing_PopLatest(t *testing.T) {
	r := New[int](4)
	for i := 1; i <= 3; i++ {
		r.Push(i)
	}

	v, skipped, ok := r.PopLatest()
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, skipped)
	assert.Zero(t, r.Len())

	c := r.Counters()
	assert.Equal(t, uint64(3), c.Pushed)
	assert.Equal(t, uint64(1), c.Popped)
	assert.Equal(t, uint64(2), c.Skipped)
	assert.Zero(t, c.Dropped, "skips are not evictions")
}

// TestRing_SkipsAndDropsCountedApart mixes evictions and PopLatest skips and
// checks that each lands in its own counter.
func TestRing_SkipsAndDropsCountedApart(t *testing.T) {
	r := New[int](2)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	// 1..3 evicted, 4 and 5 buffered
	assert.Equal(t, uint64(3), r.Dropped())

	v, skipped, ok := r.PopLatest()
	require.True(t, ok)
	assert.Equal(t, 5, v)
	assert.Equal(t, 1, skipped)

	c := r.Counters()
	assert.Equal(t, uint64(3), c.Dropped)
	assert.Equal(t, uint64(1), c.Skipped)
	assert.Equal(t, c.Pushed, c.Popped+c.Dropped+c.Skipped+uint64(r.Len()))
}

func TestRing_WrapKeepsOrder(t *testing.T) {
	r := New[int](3)
	for i := 0; i < 10; i++ {
		r.Push(i)
		if i%2 == 1 {
			r.Pop()
		}
	}
	// Pushed 0..9, popped 5 times from the front after evictions
	items := r.Items()
	require.NotEmpty(t, items)
	for i := 1; i < len(items); i++ {
		assert.Less(t, items[i-1], items[i], "items must stay oldest first")
	}
	assert.Equal(t, 9, items[len(items)-1])
}

func TestRing_NewPanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}

// TestRing_Concurrent checks that a producer and a consumer racing on the
// ring never observe a length above capacity or an out-of-order pop.
// Run with -race.
func TestRing_Concurrent(t *testing.T) {
	const (
		capacity = 8
		total    = 10000
	)
	r := New[int](capacity)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			r.Push(i)
			if n := r.Len(); n > capacity {
				t.Errorf("len %d exceeds capacity", n)
				return
			}
		}
	}()

	var popped []int
	go func() {
		defer wg.Done()
		for len(popped) == 0 || popped[len(popped)-1] < total-1 {
			if v, ok := r.Pop(); ok {
				popped = append(popped, v)
			}
		}
	}()

	wg.Wait()

	for i := 1; i < len(popped); i++ {
		if popped[i] <= popped[i-1] {
			t.Fatalf("out of order pop: %d after %d", popped[i], popped[i-1])
		}
	}
	c := r.Counters()
	assert.Equal(t, uint64(total), c.Pushed)
	assert.Equal(t, c.Pushed, c.Popped+c.Dropped+c.Skipped+uint64(r.Len()))
	t.Logf("✅ %d pushed, %d popped, %d dropped", c.Pushed, c.Popped, c.Dropped)
}
