package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/loadwasm/loadwasm/internal/leb128"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

// SectionID identifies the sections of a Module in the WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
type SectionID = byte

const (
	// SectionIDCustom sections are skipped: nothing loaded depends on names or debug info.
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
	// SectionIDDataCount is skipped, as passive data segments aren't supported.
	SectionIDDataCount
)

// SectionIDName returns the canonical name of a module section.
// https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
func SectionIDName(sectionID SectionID) string {
	switch sectionID {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	case SectionIDDataCount:
		return "data_count"
	}
	return "unknown"
}

// decodeVectorSize reads the count of a vector whose items take at least one byte each.
func decodeVectorSize(r *bytes.Reader) (uint32, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return 0, fmt.Errorf("get size of vector: %w", err)
	}
	if uint64(vs) > uint64(r.Len()) {
		return 0, fmt.Errorf("vector of size %d exceeds the remaining %d bytes", vs, r.Len())
	}
	return vs, nil
}

func decodeTypeSection(r *bytes.Reader) ([]*wasm.FunctionType, error) {
	vs, err := decodeVectorSize(r)
	if err != nil {
		return nil, err
	}

	result := make([]*wasm.FunctionType, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeFunctionType(r); err != nil {
			return nil, fmt.Errorf("read %d-th type: %w", i, err)
		}
	}
	return result, nil
}

func decodeImportSection(r *bytes.Reader) ([]*wasm.Import, error) {
	vs, err := decodeVectorSize(r)
	if err != nil {
		return nil, err
	}

	result := make([]*wasm.Import, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeImport(r, i); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func decodeFunctionSection(r *bytes.Reader) ([]wasm.Index, error) {
	vs, err := decodeVectorSize(r)
	if err != nil {
		return nil, err
	}

	result := make([]wasm.Index, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], _, err = leb128.DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("get type index: %w", err)
		}
	}
	return result, nil
}

func decodeTableSection(r *bytes.Reader) ([]*wasm.Table, error) {
	vs, err := decodeVectorSize(r)
	if err != nil {
		return nil, err
	}

	result := make([]*wasm.Table, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeTable(r); err != nil {
			return nil, fmt.Errorf("read table: %w", err)
		}
	}
	return result, nil
}

func decodeMemorySection(r *bytes.Reader) ([]*wasm.Memory, error) {
	vs, err := decodeVectorSize(r)
	if err != nil {
		return nil, err
	}

	result := make([]*wasm.Memory, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeMemory(r); err != nil {
			return nil, fmt.Errorf("read memory: %w", err)
		}
	}
	return result, nil
}

func decodeGlobalSection(r *bytes.Reader) ([]*wasm.Global, error) {
	vs, err := decodeVectorSize(r)
	if err != nil {
		return nil, err
	}

	result := make([]*wasm.Global, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeGlobal(r); err != nil {
			return nil, fmt.Errorf("global[%d]: %w", i, err)
		}
	}
	return result, nil
}

func decodeExportSection(r *bytes.Reader) ([]*wasm.Export, error) {
	vs, err := decodeVectorSize(r)
	if err != nil {
		return nil, err
	}

	result := make([]*wasm.Export, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeExport(r, i); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func decodeStartSection(r *bytes.Reader) (*wasm.Index, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get function index: %w", err)
	}
	return &vs, nil
}

func decodeElementSection(r *bytes.Reader) ([]*wasm.ElementSegment, error) {
	vs, err := decodeVectorSize(r)
	if err != nil {
		return nil, err
	}

	result := make([]*wasm.ElementSegment, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeElementSegment(r); err != nil {
			return nil, fmt.Errorf("read element: %w", err)
		}
	}
	return result, nil
}

func decodeCodeSection(r *bytes.Reader) ([]*wasm.Code, error) {
	vs, err := decodeVectorSize(r)
	if err != nil {
		return nil, err
	}

	result := make([]*wasm.Code, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeCode(r); err != nil {
			return nil, fmt.Errorf("read %d-th code segment: %w", i, err)
		}
	}
	return result, nil
}

func decodeDataSection(r *bytes.Reader) ([]*wasm.DataSegment, error) {
	vs, err := decodeVectorSize(r)
	if err != nil {
		return nil, err
	}

	result := make([]*wasm.DataSegment, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeDataSegment(r); err != nil {
			return nil, fmt.Errorf("read data segment: %w", err)
		}
	}
	return result, nil
}

// skipSection discards the contents of a section which is not decoded.
func skipSection(r *bytes.Reader, size uint32) error {
	if uint64(size) > uint64(r.Len()) {
		return io.ErrUnexpectedEOF
	}
	_, err := r.Seek(int64(size), io.SeekCurrent)
	return err
}

// encodeSection encodes the sectionID, the size of its contents in bytes, followed by the contents.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
func encodeSection(sectionID SectionID, contents []byte) []byte {
	return append([]byte{sectionID}, encodeSizePrefixed(contents)...)
}

// encodeTypeSection encodes a SectionIDType for the given imports in WebAssembly 1.0 (20191205) Binary Format.
//
// See encodeFunctionType
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#type-section%E2%91%A0
func encodeTypeSection(types []*wasm.FunctionType) []byte {
	return encodeSection(SectionIDType, encodeVector(len(types), func(i int) []byte {
		return encodeFunctionType(types[i])
	}))
}

// encodeImportSection encodes a SectionIDImport for the given imports in WebAssembly 1.0 (20191205) Binary Format.
//
// See encodeImport
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#import-section%E2%91%A0
func encodeImportSection(imports []*wasm.Import) []byte {
	return encodeSection(SectionIDImport, encodeVector(len(imports), func(i int) []byte {
		return encodeImport(imports[i])
	}))
}

// encodeFunctionSection encodes a SectionIDFunction for the type indices associated with module-defined functions in
// WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#function-section%E2%91%A0
func encodeFunctionSection(typeIndices []wasm.Index) []byte {
	return encodeSection(SectionIDFunction, encodeVector(len(typeIndices), func(i int) []byte {
		return leb128.EncodeUint32(typeIndices[i])
	}))
}

func encodeTableSection(tables []*wasm.Table) []byte {
	return encodeSection(SectionIDTable, encodeVector(len(tables), func(i int) []byte {
		return encodeTable(tables[i])
	}))
}

func encodeMemorySection(memories []*wasm.Memory) []byte {
	return encodeSection(SectionIDMemory, encodeVector(len(memories), func(i int) []byte {
		return encodeMemory(memories[i])
	}))
}

func encodeGlobalSection(globals []*wasm.Global) []byte {
	return encodeSection(SectionIDGlobal, encodeVector(len(globals), func(i int) []byte {
		return encodeGlobal(globals[i])
	}))
}

// encodeExportSection encodes a SectionIDExport for the given exports in WebAssembly 1.0 (20191205) Binary Format.
//
// See encodeExport
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#export-section%E2%91%A0
func encodeExportSection(exports []*wasm.Export) []byte {
	return encodeSection(SectionIDExport, encodeVector(len(exports), func(i int) []byte {
		return encodeExport(exports[i])
	}))
}

// encodeStartSection encodes a SectionIDStart for the given function index in WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#start-section%E2%91%A0
func encodeStartSection(funcidx wasm.Index) []byte {
	return encodeSection(SectionIDStart, leb128.EncodeUint32(funcidx))
}

func encodeElementSection(elements []*wasm.ElementSegment) []byte {
	return encodeSection(SectionIDElement, encodeVector(len(elements), func(i int) []byte {
		return encodeElement(elements[i])
	}))
}

// encodeCodeSection encodes a SectionIDCode for the module-defined function in WebAssembly 1.0 (20191205) Binary
// Format.
//
// See encodeCode
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#code-section%E2%91%A0
func encodeCodeSection(code []*wasm.Code) []byte {
	return encodeSection(SectionIDCode, encodeVector(len(code), func(i int) []byte {
		return encodeCode(code[i])
	}))
}

func encodeDataSection(data []*wasm.DataSegment) []byte {
	return encodeSection(SectionIDData, encodeVector(len(data), func(i int) []byte {
		return encodeDataSegment(data[i])
	}))
}
