package binary

import (
	"bytes"
	"fmt"

	"github.com/loadwasm/loadwasm/internal/wasm"
)

// decodeTable returns the wasm.Table decoded with the WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-table
func decodeTable(r *bytes.Reader) (*wasm.Table, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read leading byte: %v", err)
	}

	if b != wasm.ValueTypeFuncref {
		return nil, fmt.Errorf("%w: invalid element type %#x != funcref(%#x)", ErrInvalidByte, b, wasm.ValueTypeFuncref)
	}

	limits, err := decodeLimitsType(r)
	if err != nil {
		return nil, fmt.Errorf("read limits: %w", err)
	}
	return limits, nil
}

// encodeTable returns the wasm.Table encoded in WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-table
func encodeTable(i *wasm.Table) []byte {
	return append([]byte{wasm.ValueTypeFuncref}, encodeLimitsType(i)...)
}
