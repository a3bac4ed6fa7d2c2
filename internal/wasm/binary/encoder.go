package binary

import "github.com/loadwasm/loadwasm/internal/wasm"

// EncodeModule encodes the given module into a byte slice in WebAssembly 1.0 (20191205) Binary Format. Bodies in the
// code section are written as they are, so only encode a module before it is transpiled.
//
// Note: If saving to a file, the conventional extension is wasm
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-format%E2%91%A0
func EncodeModule(m *wasm.Module) (bytes []byte) {
	bytes = append(append([]byte{}, Magic...), version...)
	if len(m.TypeSection) > 0 {
		bytes = append(bytes, encodeTypeSection(m.TypeSection)...)
	}
	if len(m.ImportSection) > 0 {
		bytes = append(bytes, encodeImportSection(m.ImportSection)...)
	}
	if len(m.FunctionSection) > 0 {
		bytes = append(bytes, encodeFunctionSection(m.FunctionSection)...)
	}
	if len(m.TableSection) > 0 {
		bytes = append(bytes, encodeTableSection(m.TableSection)...)
	}
	if len(m.MemorySection) > 0 {
		bytes = append(bytes, encodeMemorySection(m.MemorySection)...)
	}
	if len(m.GlobalSection) > 0 {
		bytes = append(bytes, encodeGlobalSection(m.GlobalSection)...)
	}
	if len(m.ExportSection) > 0 {
		bytes = append(bytes, encodeExportSection(m.ExportSection)...)
	}
	if m.StartSection != nil {
		bytes = append(bytes, encodeStartSection(*m.StartSection)...)
	}
	if len(m.ElementSection) > 0 {
		bytes = append(bytes, encodeElementSection(m.ElementSection)...)
	}
	if len(m.CodeSection) > 0 {
		bytes = append(bytes, encodeCodeSection(m.CodeSection)...)
	}
	if len(m.DataSection) > 0 {
		bytes = append(bytes, encodeDataSection(m.DataSection)...)
	}
	return
}
