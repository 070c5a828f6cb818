package main

import (
	"bytes"
	"encoding/binary"
	"math"
	"reflect"

	"github.com/pkg/errors"
)

// Window layout, little endian:
//
//	magic    [3]byte "PHW"
//	version  uint8
//	kind     uint8   reflect.Kind of the sample type
//	capacity uint32
//	cursor   uint32
//	filled   uint32
//	slots    [capacity]T in physical order
const (
	codecVersion    = 1
	codecHeaderSize = 3 + 1 + 1 + 4 + 4 + 4
)

var codecMagic = [3]byte{'P', 'H', 'W'}

// ErrCorruptState is returned when stored bytes cannot be decoded into a
// window.
var ErrCorruptState = errors.New("corrupt window state")

type windowHeader struct {
	Magic    [3]byte
	Version  uint8
	Kind     uint8
	Capacity uint32
	Cursor   uint32
	Filled   uint32
}

func sampleKind[T Number]() (uint8, int, error) {
	var zero T
	size := binary.Size(zero)
	if size <= 0 {
		return 0, 0, errors.Errorf("sample type %T has no fixed size", zero)
	}
	return uint8(reflect.TypeFor[T]().Kind()), size, nil
}

// checkEncodable rejects capacities that do not fit the uint32 header
// fields. Cursor and filled never exceed the capacity.
func checkEncodable(capacity int) error {
	if uint64(capacity) > math.MaxUint32 {
		return errors.Errorf("capacity %d does not fit the window layout", capacity)
	}
	return nil
}

// MarshalBinary encodes the window, including stale slots and the cursor, so
// that a decoded copy behaves exactly like the original.
func (w *Window[T]) MarshalBinary() ([]byte, error) {
	kind, size, err := sampleKind[T]()
	if err != nil {
		return nil, err
	}
	if err := checkEncodable(w.ring.Cap()); err != nil {
		return nil, err
	}
	hdr := windowHeader{
		Magic:    codecMagic,
		Version:  codecVersion,
		Kind:     kind,
		Capacity: uint32(w.ring.Cap()),
		Cursor:   uint32(w.ring.Cursor()),
		Filled:   uint32(w.filled),
	}
	var buf bytes.Buffer
	buf.Grow(codecHeaderSize + size*w.ring.Cap())
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "encoding window header")
	}
	if err := binary.Write(&buf, binary.LittleEndian, w.ring.buf); err != nil {
		return nil, errors.Wrap(err, "encoding window slots")
	}
	return buf.Bytes(), nil
}

// UnmarshalWindow decodes bytes produced by Window.MarshalBinary. It never
// panics on malformed input.
func UnmarshalWindow[T Number](data []byte) (*Window[T], error) {
	kind, size, err := sampleKind[T]()
	if err != nil {
		return nil, err
	}
	if len(data) < codecHeaderSize {
		return nil, errors.Wrapf(ErrCorruptState, "%d bytes is shorter than the header", len(data))
	}

	var hdr windowHeader
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(ErrCorruptState, err.Error())
	}
	switch {
	case hdr.Magic != codecMagic:
		return nil, errors.Wrap(ErrCorruptState, "bad magic")
	case hdr.Version != codecVersion:
		return nil, errors.Wrapf(ErrCorruptState, "unsupported version %d", hdr.Version)
	case hdr.Kind != kind:
		return nil, errors.Wrapf(ErrCorruptState, "sample kind %v, expected %v",
			reflect.Kind(hdr.Kind), reflect.Kind(kind))
	case hdr.Capacity == 0 || uint64(hdr.Capacity) > MaxRingCapacity || !capacityFits[T](int(hdr.Capacity)):
		return nil, errors.Wrapf(ErrCorruptState, "invalid capacity %d", hdr.Capacity)
	case hdr.Cursor >= hdr.Capacity:
		return nil, errors.Wrapf(ErrCorruptState, "cursor %d out of range", hdr.Cursor)
	case hdr.Filled > hdr.Capacity:
		return nil, errors.Wrapf(ErrCorruptState, "filled %d exceeds capacity", hdr.Filled)
	}

	// Check the length before allocating so a forged capacity can't make us
	// allocate more than the input holds.
	if want := uint64(hdr.Capacity) * uint64(size); uint64(r.Len()) != want {
		return nil, errors.Wrapf(ErrCorruptState, "have %d slot bytes, expected %d", r.Len(), want)
	}
	slots := make([]T, hdr.Capacity)
	if err := binary.Read(r, binary.LittleEndian, slots); err != nil {
		return nil, errors.Wrap(ErrCorruptState, err.Error())
	}

	return &Window[T]{
		ring:   restoreRing(slots, int(hdr.Cursor)),
		filled: int(hdr.Filled),
	}, nil
}
