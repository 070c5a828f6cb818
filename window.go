package main

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// ErrWindowNotFull is returned by Mean until the window has seen Capacity()
// samples since it was created or last reset.
var ErrWindowNotFull = errors.New("not enough historical data has been collected yet")

// Number is the set of sample types a Window can average.
type Number interface {
	constraints.Integer | constraints.Float
}

// Window tracks the trailing Capacity() samples and how many of them were
// recorded since the last reset. It is not safe for concurrent use.
type Window[T Number] struct {
	ring   *Ring[T]
	filled int
}

// NewWindow creates an empty window. It panics if capacity is not positive,
// larger than MaxRingCapacity, or not exactly representable in T.
func NewWindow[T Number](capacity int) *Window[T] {
	if !capacityFits[T](capacity) {
		panic("capacity does not fit the sample type")
	}
	return &Window[T]{ring: NewRing[T](capacity)}
}

// capacityFits reports whether capacity survives conversion to T, so that
// Mean divides by the real window length.
func capacityFits[T Number](capacity int) bool {
	return capacity > 0 && int(T(capacity)) == capacity
}

// Record adds a sample, evicting the oldest one.
func (w *Window[T]) Record(sample T) {
	w.ring.Push(sample)
	if w.filled < w.ring.Cap() {
		w.filled++
	}
}

// Mean returns the arithmetic mean of the window in T's arithmetic: integer
// types truncate, floats propagate NaN and Inf.
func (w *Window[T]) Mean() (T, error) {
	if w.filled != w.ring.Cap() {
		return 0, ErrWindowNotFull
	}
	var sum T
	for v := range w.ring.All() {
		sum += v
	}
	return sum / T(w.ring.Cap()), nil
}

// Depth returns the number of samples recorded since the last reset, capped
// at Capacity().
func (w *Window[T]) Depth() int {
	return w.filled
}

func (w *Window[T]) Capacity() int {
	return w.ring.Cap()
}

// Reset forgets the history. The stored samples are left in place; they stop
// counting towards Depth until overwritten by new records.
func (w *Window[T]) Reset() {
	w.filled = 0
}

// Values returns a copy of every slot, oldest first, including slots that
// hold stale or initial values.
func (w *Window[T]) Values() []T {
	return w.ring.Slice()
}
