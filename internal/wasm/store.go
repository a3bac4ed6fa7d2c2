package wasm

import (
	"encoding/binary"
	"fmt"
)

// GrowResult is the outcome of LinearStore.Grow. Only GrowGrown changes the store.
type GrowResult byte

const (
	// GrowNoChange means a zero size was requested for a store that was empty already.
	GrowNoChange GrowResult = iota
	// GrowTooLarge means the requested size exceeds the maximum.
	GrowTooLarge
	// GrowTooSmall means the requested size is below the minimum or would shrink the buffer.
	GrowTooSmall
	// GrowGrown means the buffer was reallocated at the requested size.
	GrowGrown
)

// String implements fmt.Stringer
func (r GrowResult) String() string {
	switch r {
	case GrowNoChange:
		return "no change"
	case GrowTooLarge:
		return "too large"
	case GrowTooSmall:
		return "too small"
	case GrowGrown:
		return "grown"
	}
	return fmt.Sprintf("GrowResult(%d)", byte(r))
}

// StoreBoundsError is returned by LinearStore.GrowStrict when a grow didn't succeed.
type StoreBoundsError struct {
	// Result is what Grow reported.
	Result GrowResult
	// Requested is the size that was asked for, in units of Align.
	Requested uint32
	// Min and Max are the bounds of the store at the time of the request.
	Min, Max uint32
}

// Error implements error
func (e *StoreBoundsError) Error() string {
	return fmt.Sprintf("grow to %d outside of [%d, %d]: %s", e.Requested, e.Min, e.Max, e.Result)
}

// LinearStore is a growable byte buffer whose length is always a multiple of Align. Sizes are counted in units of
// Align: pages for a memory, entries for a table and a single scalar for a global.
//
// Buffer is reallocated on each grow, so a slice of it must not be kept across a call to Grow.
type LinearStore struct {
	Buffer []byte

	// Align is the byte length of one unit.
	Align uint32

	// Min and Max bound the size in units. Once initialized, the size is within [Min, Max].
	Min, Max uint32
}

// NewLinearStore returns an empty store. Call Grow to give it its initial size.
func NewLinearStore(align, min, max uint32) *LinearStore {
	return &LinearStore{Align: align, Min: min, Max: max}
}

// Size returns the current size in units of Align.
func (s *LinearStore) Size() uint32 {
	return uint32(uint64(len(s.Buffer)) / uint64(s.Align))
}

// Len returns the current size in bytes.
func (s *LinearStore) Len() uint64 {
	return uint64(len(s.Buffer))
}

// Grow reallocates the buffer to newSize units, copying existing bytes to its low end and zeroing the rest. The store
// never shrinks.
func (s *LinearStore) Grow(newSize uint32) GrowResult {
	if newSize > s.Max {
		return GrowTooLarge
	}
	newLen := uint64(newSize) * uint64(s.Align)
	if s.Buffer != nil && newLen < uint64(len(s.Buffer)) {
		return GrowTooSmall
	}
	if newSize == 0 && len(s.Buffer) == 0 {
		return GrowNoChange
	}
	if newSize < s.Min {
		return GrowTooSmall
	}
	buf := make([]byte, newLen)
	copy(buf, s.Buffer)
	s.Buffer = buf
	return GrowGrown
}

// GrowStrict is Grow for callers where anything other than success is a bug in the caller's sizing, such as applying
// default values at construction. allowNoChange accepts GrowNoChange as success.
func (s *LinearStore) GrowStrict(newSize uint32, allowNoChange bool) error {
	switch r := s.Grow(newSize); r {
	case GrowGrown:
		return nil
	case GrowNoChange:
		if allowNoChange {
			return nil
		}
		fallthrough
	default:
		return &StoreBoundsError{Result: r, Requested: newSize, Min: s.Min, Max: s.Max}
	}
}

// hasSize returns true if Len is sufficient for byteCount at the given offset.
func (s *LinearStore) hasSize(offset uint64, byteCount uint64) bool {
	return offset+byteCount <= uint64(len(s.Buffer)) // uint64 prevents overflow on add
}

// ReadUint32Le reads a little-endian uint32 at the byte offset, or returns false if out of range.
func (s *LinearStore) ReadUint32Le(offset uint64) (uint32, bool) {
	if !s.hasSize(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(s.Buffer[offset:]), true
}

// ReadUint64Le reads a little-endian uint64 at the byte offset, or returns false if out of range.
func (s *LinearStore) ReadUint64Le(offset uint64) (uint64, bool) {
	if !s.hasSize(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(s.Buffer[offset:]), true
}

// WriteUint32Le writes v little-endian at the byte offset, or returns false if out of range.
func (s *LinearStore) WriteUint32Le(offset uint64, v uint32) bool {
	if !s.hasSize(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(s.Buffer[offset:], v)
	return true
}

// WriteUint64Le writes v little-endian at the byte offset, or returns false if out of range.
func (s *LinearStore) WriteUint64Le(offset uint64, v uint64) bool {
	if !s.hasSize(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(s.Buffer[offset:], v)
	return true
}

// Read returns a view of byteCount bytes at offset. The view is only valid until the next Grow.
func (s *LinearStore) Read(offset uint64, byteCount uint32) ([]byte, bool) {
	if !s.hasSize(offset, uint64(byteCount)) {
		return nil, false
	}
	return s.Buffer[offset : offset+uint64(byteCount)], true
}

// Write copies val to offset, or returns false, writing nothing, if it doesn't fit.
func (s *LinearStore) Write(offset uint64, val []byte) bool {
	if !s.hasSize(offset, uint64(len(val))) {
		return false
	}
	copy(s.Buffer[offset:], val)
	return true
}

// ElementSize returns the byte width of one value of the given type. Table entries and globals are sized with it, as
// are the widths of loads and stores.
func ElementSize(vt ValueType) uint32 {
	switch vt {
	case ValueTypeI32, ValueTypeF32, ValueTypeFuncref:
		return 4
	case ValueTypeI64, ValueTypeF64:
		return 8
	}
	panic(fmt.Errorf("BUG: unknown value type %#x", vt))
}
