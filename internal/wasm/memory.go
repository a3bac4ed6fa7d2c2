package wasm

import "fmt"

const (
	// MemoryPageSize is the unit of memory length in WebAssembly,
	// and is defined as 2^16 = 65536.
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#memory-instances%E2%91%A0
	MemoryPageSize = uint32(65536)
	// MemoryLimitPages is maximum number of pages defined (2^16).
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#grow-mem
	MemoryLimitPages = uint32(65536)
	// MemoryPageSizeInBits satisfies the relation: "1 << MemoryPageSizeInBits == MemoryPageSize".
	MemoryPageSizeInBits = 16
)

// MemoryInstance is a page-aligned LinearStore.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#memory-instances%E2%91%A0.
type MemoryInstance struct {
	LinearStore
}

// NewMemoryInstance allocates a memory at its minimum size. An unbounded Max is capped at limitPages.
func NewMemoryInstance(mem *Memory, limitPages uint32) (*MemoryInstance, error) {
	m := &MemoryInstance{LinearStore{Align: MemoryPageSize, Min: mem.Min, Max: mem.MaxOr(limitPages)}}
	if err := m.GrowStrict(mem.Min, true); err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	return m, nil
}

// Pages returns the current size in pages.
func (m *MemoryInstance) Pages() uint32 {
	return uint32(len(m.Buffer) >> MemoryPageSizeInBits)
}

// GrowPages is the guest-visible memory.grow. It returns the previous size in pages, or false if the memory couldn't
// grow by delta pages. Growing by zero always succeeds.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#grow-mem
func (m *MemoryInstance) GrowPages(delta uint32) (previous uint32, ok bool) {
	previous = m.Pages()
	if delta == 0 {
		return previous, true
	}
	newPages := uint64(previous) + uint64(delta)
	if newPages > uint64(m.Max) {
		return 0, false
	}
	if m.Grow(uint32(newPages)) != GrowGrown {
		return 0, false
	}
	return previous, true
}

// MemoryPagesToBytesNum converts the given pages into the number of bytes contained in these pages.
func MemoryPagesToBytesNum(pages uint32) (bytesNum uint64) {
	return uint64(pages) << MemoryPageSizeInBits
}

// PagesToUnitOfBytes converts the pages to a human-readable form similar to what's specified. Ex. 1 -> "64 Ki"
//
// See https://www.w3.org/TR/wasm-core-1/#memory-instances%E2%91%A0
func PagesToUnitOfBytes(pages uint32) string {
	k := pages * 64
	if k < 1024 {
		return fmt.Sprintf("%d Ki", k)
	}
	m := k / 1024
	if m < 1024 {
		return fmt.Sprintf("%d Mi", m)
	}
	g := m / 1024
	if g < 1024 {
		return fmt.Sprintf("%d Gi", g)
	}
	return fmt.Sprintf("%d Ti", g/1024)
}
