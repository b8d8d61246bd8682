// Package framebuf provides the fixed-capacity buffer that sits between
// the acquisition loop and the consumer.
package framebuf

import (
	"sync"
	"sync/atomic"
)

// Ring is a bounded FIFO with a drop-oldest overflow policy.
//
// Semantics:
//   - Push never blocks and never fails; when full, the oldest entry is
//     discarded to make room (freshness over completeness)
//   - Pop returns the oldest entry, or ok=false when empty
//   - Every operation holds the mutex for its own duration only, so an
//     observer sees a whole entry or none
type Ring[T any] struct {
	mu    sync.Mutex
	items []T
	head  int // index of the oldest entry
	size  int

	// Counters are read by Stats without taking the lock
	pushed  atomic.Uint64
	dropped atomic.Uint64
	skipped atomic.Uint64
	popped  atomic.Uint64
}

// New returns an empty ring. It panics if capacity < 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic("framebuf: capacity must be at least 1")
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v as the newest entry and reports whether an older entry
// had to be evicted.
func (r *Ring[T]) Push(v T) (dropped bool) {
	r.mu.Lock()
	if r.size == len(r.items) {
		// Overwrite the oldest slot and advance head
		r.items[r.head] = v
		r.head = (r.head + 1) % len(r.items)
		dropped = true
	} else {
		r.items[(r.head+r.size)%len(r.items)] = v
		r.size++
	}
	r.mu.Unlock()

	r.pushed.Add(1)
	if dropped {
		r.dropped.Add(1)
	}
	return dropped
}

// Pop removes and returns the oldest entry.
func (r *Ring[T]) Pop() (v T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return v, false
	}
	v = r.take()
	r.popped.Add(1)
	return v, true
}

// PopLatest removes every entry and returns the newest one together with
// the number of older entries that were discarded. Discarded entries count
// as skipped, not dropped.
func (r *Ring[T]) PopLatest() (v T, skipped int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return v, 0, false
	}
	skipped = r.size - 1
	for r.size > 1 {
		r.take()
	}
	v = r.take()
	r.popped.Add(1)
	r.skipped.Add(uint64(skipped))
	return v, skipped, true
}

// take removes the head entry. Caller holds mu and ensures size > 0.
func (r *Ring[T]) take() T {
	var zero T
	v := r.items[r.head]
	r.items[r.head] = zero // release the reference for GC
	r.head = (r.head + 1) % len(r.items)
	r.size--
	return v
}

// Len returns the number of buffered entries.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.items) }

// Items returns a copy of the buffered entries, oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Counters is a snapshot of lifetime ring activity.
type Counters struct {
	Pushed  uint64
	Dropped uint64 // evicted by Push on a full ring
	Skipped uint64 // discarded by PopLatest
	Popped  uint64
}

// Counters returns lifetime push/drop/skip/pop totals.
func (r *Ring[T]) Counters() Counters {
	return Counters{
		Pushed:  r.pushed.Load(),
		Dropped: r.dropped.Load(),
		Skipped: r.skipped.Load(),
		Popped:  r.popped.Load(),
	}
}

// Dropped returns how many entries were evicted by Push so far.
func (r *Ring[T]) Dropped() uint64 { return r.dropped.Load() }

// Skipped returns how many entries PopLatest discarded so far.
func (r *Ring[T]) Skipped() uint64 { return r.skipped.Load() }
