package binary

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/loadwasm/loadwasm/internal/leb128"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

// decodeCode returns the wasm.Code decoded with the WebAssembly 1.0 (20191205) Binary Format. The body is kept raw,
// including its trailing end, for the transpiler.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-code
func decodeCode(r *bytes.Reader) (*wasm.Code, error) {
	ss, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get the size of code: %w", err)
	}
	remaining := int64(ss)

	// parse locals
	ls, bytesRead, err := leb128.DecodeUint32(r)
	remaining -= int64(bytesRead)
	if err != nil {
		return nil, fmt.Errorf("get the size locals: %v", err)
	} else if remaining < 0 {
		return nil, io.EOF
	}

	var nums []uint64
	var types []wasm.ValueType
	var sum uint64
	var n uint32
	for i := uint32(0); i < ls; i++ {
		n, bytesRead, err = leb128.DecodeUint32(r)
		remaining -= int64(bytesRead) + 1 // +1 for the subsequent ReadByte
		if err != nil {
			return nil, fmt.Errorf("read n of locals: %v", err)
		} else if remaining < 0 {
			return nil, io.EOF
		}

		sum += uint64(n)
		nums = append(nums, uint64(n))

		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read type of local: %v", err)
		}
		switch vt := b; vt {
		case wasm.ValueTypeI32, wasm.ValueTypeF32, wasm.ValueTypeI64, wasm.ValueTypeF64:
			types = append(types, vt)
		default:
			return nil, fmt.Errorf("invalid local type: %#x", vt)
		}
	}

	if sum > math.MaxUint32 {
		return nil, fmt.Errorf("too many locals: %d", sum)
	}

	var localTypes []wasm.ValueType
	for i, num := range nums {
		t := types[i]
		for j := uint64(0); j < num; j++ {
			localTypes = append(localTypes, t)
		}
	}

	if remaining < 0 {
		return nil, io.EOF
	}
	body := make([]byte, remaining)
	if _, err = io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if len(body) == 0 || body[len(body)-1] != wasm.OpcodeEnd {
		return nil, fmt.Errorf("expr not end with OpcodeEnd")
	}

	return &wasm.Code{Body: body, LocalTypes: localTypes}, nil
}

// encodeCode returns the wasm.Code encoded in WebAssembly 1.0 (20191205) Binary Format. Adjacent locals of the same
// type are grouped.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-code
func encodeCode(c *wasm.Code) []byte {
	var groups []byte
	var groupCount uint32
	for i := 0; i < len(c.LocalTypes); {
		j := i
		for j < len(c.LocalTypes) && c.LocalTypes[j] == c.LocalTypes[i] {
			j++
		}
		groups = append(groups, leb128.EncodeUint32(uint32(j-i))...)
		groups = append(groups, c.LocalTypes[i])
		groupCount++
		i = j
	}
	code := append(leb128.EncodeUint32(groupCount), groups...)
	code = append(code, c.Body...)
	return encodeSizePrefixed(code)
}
