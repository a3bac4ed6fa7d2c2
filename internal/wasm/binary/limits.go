package binary

import (
	"bytes"
	"fmt"

	"github.com/loadwasm/loadwasm/internal/leb128"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

// decodeLimitsType returns the wasm.Limits decoded with the WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#limits%E2%91%A6
func decodeLimitsType(r *bytes.Reader) (*wasm.Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read leading byte: %v", err)
	}

	ret := &wasm.Limits{}
	switch flag {
	case 0x00:
		if ret.Min, _, err = leb128.DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("read min of limit: %v", err)
		}
	case 0x01:
		if ret.Min, _, err = leb128.DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("read min of limit: %v", err)
		}
		m, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read max of limit: %v", err)
		}
		ret.Max = &m
	default:
		return nil, fmt.Errorf("%v for limits: %#x != 0x00 or 0x01", ErrInvalidByte, flag)
	}
	return ret, nil
}

// encodeLimitsType returns the `limitsType` (min, max) encoded in WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#limits%E2%91%A6
func encodeLimitsType(l *wasm.Limits) []byte {
	if l.Max == nil {
		return append([]byte{0x00}, leb128.EncodeUint32(l.Min)...)
	}
	return append(append([]byte{0x01}, leb128.EncodeUint32(l.Min)...), leb128.EncodeUint32(*l.Max)...)
}
