package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/loadwasm/loadwasm/internal/leb128"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

// decodeDataSegment returns the wasm.DataSegment decoded with the WebAssembly 1.0 (20191205) Binary Format. Of the
// later encodings, only an active segment with an explicit memory index (prefix 2) is supported.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#data-section%E2%91%A0
func decodeDataSegment(r *bytes.Reader) (*wasm.DataSegment, error) {
	prefix, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read data segment prefix: %w", err)
	}

	ret := &wasm.DataSegment{}
	switch prefix {
	case 0:
	case 2:
		if ret.MemoryIndex, _, err = leb128.DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("read memory index: %v", err)
		}
	default:
		return nil, fmt.Errorf("%w: data segment prefix %d", ErrUnsupported, prefix)
	}

	if ret.OffsetExpression, err = decodeConstantExpression(r); err != nil {
		return nil, fmt.Errorf("read offset expression: %v", err)
	}

	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get the size of vector: %v", err)
	}
	if uint64(vs) > uint64(r.Len()) {
		return nil, fmt.Errorf("data of size %d exceeds the remaining %d bytes", vs, r.Len())
	}

	ret.Init = make([]byte, vs)
	if _, err = io.ReadFull(r, ret.Init); err != nil {
		return nil, fmt.Errorf("read bytes for init: %v", err)
	}
	return ret, nil
}

// encodeDataSegment returns the wasm.DataSegment encoded in WebAssembly 1.0 (20191205) Binary Format, unless the
// memory index isn't zero.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#data-section%E2%91%A0
func encodeDataSegment(d *wasm.DataSegment) (ret []byte) {
	if d.MemoryIndex == 0 {
		ret = leb128.EncodeUint32(0)
	} else {
		ret = append(leb128.EncodeUint32(2), leb128.EncodeUint32(d.MemoryIndex)...)
	}
	ret = append(ret, encodeConstantExpression(d.OffsetExpression)...)
	return append(ret, encodeSizePrefixed(d.Init)...)
}
