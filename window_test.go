package main

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestWindowScenario(t *testing.T) {
	w := NewWindow[float64](5)

	if _, err := w.Mean(); !errors.Is(err, ErrWindowNotFull) {
		t.Fatalf("Mean on empty window: got %v, want ErrWindowNotFull", err)
	}

	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Record(v)
	}
	if w.Depth() != 5 {
		t.Fatalf("Depth = %d, want 5", w.Depth())
	}
	mean, err := w.Mean()
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	if math.Abs(mean-3) > 1e-9 {
		t.Fatalf("Mean = %v, want 3", mean)
	}

	w.Record(100)
	if diff := cmp.Diff([]float64{2, 3, 4, 5, 100}, w.Values()); diff != "" {
		t.Fatalf("Values mismatch (-want +got):\n%s", diff)
	}
	if w.Depth() != 5 {
		t.Fatalf("Depth = %d, want 5", w.Depth())
	}
	mean, err = w.Mean()
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	if math.Abs(mean-22.8) > 1e-9 {
		t.Fatalf("Mean = %v, want 22.8", mean)
	}
}

func TestWindowDepthSaturates(t *testing.T) {
	const N = 4
	w := NewWindow[int64](N)
	for k := 1; k <= 3*N; k++ {
		w.Record(int64(k))
		if want := min(k, N); w.Depth() != want {
			t.Fatalf("Depth after %d records = %d, want %d", k, w.Depth(), want)
		}
		_, err := w.Mean()
		if k < N && !errors.Is(err, ErrWindowNotFull) {
			t.Fatalf("Mean after %d records: got %v, want ErrWindowNotFull", k, err)
		}
		if k >= N && err != nil {
			t.Fatalf("Mean after %d records: %v", k, err)
		}
	}
	if w.Capacity() != N {
		t.Fatalf("Capacity = %d, want %d", w.Capacity(), N)
	}
}

func TestWindowMeanOfLastN(t *testing.T) {
	w := NewWindow[float64](3)
	samples := []float64{7, -2, 9.5, 4, 0.25, 11}
	for i, v := range samples {
		w.Record(v)
		if i < 2 {
			continue
		}
		last := samples[i-2 : i+1]
		want := (last[0] + last[1] + last[2]) / 3
		got, err := w.Mean()
		if err != nil {
			t.Fatalf("Mean: %v", err)
		}
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("Mean after %v = %v, want %v", samples[:i+1], got, want)
		}
	}
}

func TestWindowFailedMeanChangesNothing(t *testing.T) {
	w := NewWindow[float64](3)
	w.Record(1)
	w.Record(2)
	before := w.Values()
	if _, err := w.Mean(); err == nil {
		t.Fatalf("expected an error")
	}
	if w.Depth() != 2 {
		t.Fatalf("Depth = %d, want 2", w.Depth())
	}
	if diff := cmp.Diff(before, w.Values()); diff != "" {
		t.Fatalf("Values changed (-before +after):\n%s", diff)
	}
}

func TestWindowResetKeepsContents(t *testing.T) {
	w := NewWindow[float64](3)
	for _, v := range []float64{1, 2, 3} {
		w.Record(v)
	}
	w.Reset()

	if w.Depth() != 0 {
		t.Fatalf("Depth after reset = %d, want 0", w.Depth())
	}
	if _, err := w.Mean(); !errors.Is(err, ErrWindowNotFull) {
		t.Fatalf("Mean after reset: got %v, want ErrWindowNotFull", err)
	}
	if diff := cmp.Diff([]float64{1, 2, 3}, w.Values()); diff != "" {
		t.Fatalf("reset touched the buffer (-want +got):\n%s", diff)
	}

	// Two fresh records are not enough even though the stale 3 is still there.
	w.Record(10)
	w.Record(20)
	if _, err := w.Mean(); !errors.Is(err, ErrWindowNotFull) {
		t.Fatalf("Mean after 2 of 3 records: got %v, want ErrWindowNotFull", err)
	}
	if diff := cmp.Diff([]float64{3, 10, 20}, w.Values()); diff != "" {
		t.Fatalf("Values mismatch (-want +got):\n%s", diff)
	}

	w.Record(30)
	mean, err := w.Mean()
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	if mean != 20 {
		t.Fatalf("Mean = %v, want 20", mean)
	}
}

func TestWindowIntegerMeanTruncates(t *testing.T) {
	w := NewWindow[int](2)
	w.Record(1)
	w.Record(2)
	mean, err := w.Mean()
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	if mean != 1 {
		t.Fatalf("Mean = %d, want 1", mean)
	}
}

func TestWindowNonFinite(t *testing.T) {
	w := NewWindow[float64](2)
	w.Record(math.Inf(1))
	w.Record(1)
	mean, err := w.Mean()
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	if !math.IsInf(mean, 1) {
		t.Fatalf("Mean = %v, want +Inf", mean)
	}

	w.Record(math.NaN())
	mean, _ = w.Mean()
	if !math.IsNaN(mean) {
		t.Fatalf("Mean = %v, want NaN", mean)
	}
}

func TestNewWindowPanicsOnZero(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for capacity 0")
		}
	}()
	_ = NewWindow[float64](0)
}

func TestNewWindowNarrowSampleTypes(t *testing.T) {
	w := NewWindow[uint8](255)
	for i := 0; i < 255; i++ {
		w.Record(1)
	}
	if mean, err := w.Mean(); err != nil || mean != 1 {
		t.Fatalf("Mean = %v, %v, want 1", mean, err)
	}

	s := NewWindow[int8](127)
	for i := 0; i < 127; i++ {
		s.Record(1)
	}
	if mean, err := s.Mean(); err != nil || mean != 1 {
		t.Fatalf("Mean = %v, %v, want 1", mean, err)
	}

	for name, build := range map[string]func(){
		"uint8 256": func() { NewWindow[uint8](256) },
		"int8 128":  func() { NewWindow[int8](128) },
		"int8 200":  func() { NewWindow[int8](200) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Fatalf("expected panic for a capacity the sample type cannot hold")
				}
			}()
			build()
		})
	}
}
