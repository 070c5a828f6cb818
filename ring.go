package main

import (
	"iter"
	"math"
)

// MaxRingCapacity bounds the capacity so head+capacity never overflows an int.
const MaxRingCapacity = math.MaxInt / 2

// Ring is a fixed-size FIFO queue with overwrite-on-full semantics.
//
// A Ring is always full: slots that were never pushed hold the fill value it
// was created with. head is the slot the next Push overwrites, which is also
// the oldest retained element.
type Ring[T any] struct {
	buf  []T
	head int
}

// NewRing creates a ring with the given capacity, filled with T's zero value.
func NewRing[T any](capacity int) *Ring[T] {
	var zero T
	return NewRingFilled(capacity, zero)
}

// NewRingFilled creates a ring with every slot set to fill.
func NewRingFilled[T any](capacity int, fill T) *Ring[T] {
	checkCapacity(capacity)
	buf := make([]T, capacity)
	for i := range buf {
		buf[i] = fill
	}
	return &Ring[T]{buf: buf}
}

func checkCapacity(capacity int) {
	if capacity <= 0 {
		panic("capacity must be > 0")
	}
	if capacity > MaxRingCapacity {
		panic("capacity too large")
	}
}

func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Cursor returns the index of the slot the next Push will overwrite.
func (r *Ring[T]) Cursor() int {
	return r.head
}

// Push overwrites (and evicts) the oldest element with x.
func (r *Ring[T]) Push(x T) {
	r.buf[r.head] = x
	r.head++
	if r.head == len(r.buf) {
		r.head = 0
	}
}

// At returns the i-th element in logical order [0..Cap()-1],
// where 0 is the oldest and Cap()-1 is the newest.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= len(r.buf) {
		panic("index out of range")
	}
	return r.buf[(r.head+i)%len(r.buf)]
}

// All returns the retained values oldest first. Each call starts a fresh
// traversal from the cursor as it was when iteration began; pushing while
// ranging is not supported.
func (r *Ring[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		start, n := r.head, len(r.buf)
		for i := 0; i < n; i++ {
			if !yield(r.buf[(start+i)%n]) {
				return
			}
		}
	}
}

// Slice returns a copy of the data in logical order.
func (r *Ring[T]) Slice() []T {
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.head:]...)
	out = append(out, r.buf[:r.head]...)

	return out
}

// restoreRing rebuilds a ring from its physical slots and cursor. The slots
// are copied.
func restoreRing[T any](slots []T, cursor int) *Ring[T] {
	checkCapacity(len(slots))
	if cursor < 0 || cursor >= len(slots) {
		panic("cursor out of range")
	}
	buf := make([]T, len(slots))
	copy(buf, slots)
	return &Ring[T]{buf: buf, head: cursor}
}
