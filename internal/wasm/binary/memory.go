package binary

import (
	"bytes"

	"github.com/loadwasm/loadwasm/internal/wasm"
)

// decodeMemory returns the wasm.Memory decoded with the WebAssembly 1.0 (20191205) Binary Format. Limits are checked
// against the configured page limit by wasm.Module Validate.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-memory
func decodeMemory(r *bytes.Reader) (*wasm.Memory, error) {
	return decodeLimitsType(r)
}

// encodeMemory returns the wasm.Memory encoded in WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-memory
func encodeMemory(i *wasm.Memory) []byte {
	return encodeLimitsType(i)
}
