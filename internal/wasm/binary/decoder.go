package binary

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/loadwasm/loadwasm/internal/leb128"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

var (
	ErrInvalidByte        = errors.New("invalid byte")
	ErrInvalidMagicNumber = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("invalid version header")
	ErrInvalidSectionID   = errors.New("invalid section id")
	ErrUnsupported        = errors.New("unsupported encoding")
)

// DecodeModule decodes the WebAssembly 1.0 (20191205) Binary Format into a wasm.Module. Function bodies are kept
// raw: they are checked when transpiled.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-format%E2%91%A0
func DecodeModule(binary []byte) (*wasm.Module, error) {
	r := bytes.NewReader(binary)

	// Magic number.
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil || !bytes.Equal(buf, Magic) {
		return nil, ErrInvalidMagicNumber
	}

	// Version.
	if _, err := io.ReadFull(r, buf); err != nil || !bytes.Equal(buf, version) {
		return nil, ErrInvalidVersion
	}

	m := &wasm.Module{}
	var lastSectionID SectionID
	for {
		sectionID, err := r.ReadByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read section id: %w", err)
		}

		sectionSize, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("get size of section %s: %v", SectionIDName(sectionID), err)
		}
		if uint64(sectionSize) > uint64(r.Len()) {
			return nil, fmt.Errorf("section %s of size %d exceeds the remaining %d bytes",
				SectionIDName(sectionID), sectionSize, r.Len())
		}

		// Known sections must appear at most once and in order. The data count section sits between the element and
		// code sections.
		if sectionID != SectionIDCustom {
			order := sectionOrder(sectionID)
			if order <= sectionOrder(lastSectionID) {
				return nil, fmt.Errorf("section %s is out of order", SectionIDName(sectionID))
			}
			lastSectionID = sectionID
		}

		sectionContentStart := r.Len()
		switch sectionID {
		case SectionIDCustom, SectionIDDataCount:
			err = skipSection(r, sectionSize)
		case SectionIDType:
			m.TypeSection, err = decodeTypeSection(r)
		case SectionIDImport:
			m.ImportSection, err = decodeImportSection(r)
		case SectionIDFunction:
			m.FunctionSection, err = decodeFunctionSection(r)
		case SectionIDTable:
			m.TableSection, err = decodeTableSection(r)
		case SectionIDMemory:
			m.MemorySection, err = decodeMemorySection(r)
		case SectionIDGlobal:
			m.GlobalSection, err = decodeGlobalSection(r)
		case SectionIDExport:
			m.ExportSection, err = decodeExportSection(r)
		case SectionIDStart:
			m.StartSection, err = decodeStartSection(r)
		case SectionIDElement:
			m.ElementSection, err = decodeElementSection(r)
		case SectionIDCode:
			m.CodeSection, err = decodeCodeSection(r)
		case SectionIDData:
			m.DataSection, err = decodeDataSection(r)
		default:
			err = ErrInvalidSectionID
		}

		if read := sectionContentStart - r.Len(); err == nil && read != int(sectionSize) {
			err = fmt.Errorf("invalid section length: expected to be %d but got %d", sectionSize, read)
		}

		if err != nil {
			return nil, fmt.Errorf("section %s: %w", SectionIDName(sectionID), err)
		}
	}

	if len(m.FunctionSection) != len(m.CodeSection) {
		return nil, fmt.Errorf("function and code section have inconsistent lengths: %d != %d",
			len(m.FunctionSection), len(m.CodeSection))
	}
	return m, nil
}

// sectionOrder is the position of a known section in a module.
func sectionOrder(id SectionID) int {
	switch id {
	case SectionIDDataCount:
		return int(SectionIDElement) + 1
	case SectionIDCode, SectionIDData:
		return int(id) + 1
	}
	return int(id)
}
