package wasm

import "fmt"

// TableLimitEntries is the largest table this package will allocate. It matches the 2^27 limit on functions.
const TableLimitEntries = uint32(1 << 27)

// tableEntrySize is the width of a funcref slot.
var tableEntrySize = ElementSize(ValueTypeFuncref)

// TableInstance is a LinearStore of funcref entries. A slot holds the function index plus one, so a zeroed slot is
// null.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#table-instances%E2%91%A0
type TableInstance struct {
	LinearStore
}

// NewTableInstance allocates a table at its minimum size with every entry null.
func NewTableInstance(table *Table) (*TableInstance, error) {
	t := &TableInstance{LinearStore{Align: tableEntrySize, Min: table.Min, Max: table.MaxOr(TableLimitEntries)}}
	if err := t.GrowStrict(table.Min, true); err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	return t, nil
}

// Len returns the count of entries.
func (t *TableInstance) Len() uint32 {
	return t.Size()
}

// Get returns the function index at entry i. ok is false when i is out of range or the entry is null.
func (t *TableInstance) Get(i uint32) (funcIndex Index, ok bool) {
	v, inRange := t.ReadUint32Le(uint64(i) * uint64(tableEntrySize))
	if !inRange || v == 0 {
		return 0, false
	}
	return v - 1, true
}

// Set points entry i at the given function index, or returns false if i is out of range.
func (t *TableInstance) Set(i uint32, funcIndex Index) bool {
	return t.WriteUint32Le(uint64(i)*uint64(tableEntrySize), funcIndex+1)
}

// Clear nulls entry i, or returns false if i is out of range.
func (t *TableInstance) Clear(i uint32) bool {
	return t.WriteUint32Le(uint64(i)*uint64(tableEntrySize), 0)
}

// GrowEntries adds delta null entries, returning the previous length, or false if the table would exceed its maximum.
func (t *TableInstance) GrowEntries(delta uint32) (previous uint32, ok bool) {
	previous = t.Len()
	if delta == 0 {
		return previous, true
	}
	n := uint64(previous) + uint64(delta)
	if n > uint64(t.Max) || t.Grow(uint32(n)) != GrowGrown {
		return 0, false
	}
	return previous, true
}

// encodeTableEntries is the payload of an element segment: one little-endian slot per function index.
func encodeTableEntries(init []Index) []byte {
	ret := make([]byte, 0, len(init)*int(tableEntrySize))
	for _, fn := range init {
		v := fn + 1
		ret = append(ret, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return ret
}
