package binary

import (
	"bytes"
	"fmt"

	"github.com/loadwasm/loadwasm/internal/leb128"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

func decodeElementInitValueVector(r *bytes.Reader) ([]wasm.Index, error) {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}
	// Each function index takes at least one byte.
	if uint64(vs) > uint64(r.Len()) {
		return nil, fmt.Errorf("%d function indexes exceed the remaining %d bytes", vs, r.Len())
	}

	vec := make([]wasm.Index, vs)
	for i := range vec {
		if vec[i], _, err = leb128.DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("read function index: %w", err)
		}
	}
	return vec, nil
}

// decodeElementSegment returns the wasm.ElementSegment decoded with the WebAssembly 1.0 (20191205) Binary Format.
// Of the later encodings, only an active segment with an explicit table index (prefix 2) is supported.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#element-section%E2%91%A0
func decodeElementSegment(r *bytes.Reader) (*wasm.ElementSegment, error) {
	prefix, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read element prefix: %w", err)
	}

	ret := &wasm.ElementSegment{}
	switch prefix {
	case 0:
		// Legacy prefix which is WebAssembly 1.0 compatible.
	case 2:
		if ret.TableIndex, _, err = leb128.DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("read table index: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: element segment prefix %d", ErrUnsupported, prefix)
	}

	if ret.OffsetExpr, err = decodeConstantExpression(r); err != nil {
		return nil, fmt.Errorf("read expr for offset: %w", err)
	}

	if prefix == 2 {
		elemKind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read element kind: %w", err)
		}
		if elemKind != 0x0 {
			return nil, fmt.Errorf("element kind must be zero but was %#x", elemKind)
		}
	}

	if ret.Init, err = decodeElementInitValueVector(r); err != nil {
		return nil, err
	}
	return ret, nil
}

// encodeElement returns the wasm.ElementSegment encoded in WebAssembly 1.0 (20191205) Binary Format, unless the table
// index isn't zero.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#element-section%E2%91%A0
func encodeElement(e *wasm.ElementSegment) (ret []byte) {
	if e.TableIndex == 0 {
		ret = leb128.EncodeUint32(0)
		ret = append(ret, encodeConstantExpression(e.OffsetExpr)...)
	} else {
		ret = leb128.EncodeUint32(2)
		ret = append(ret, leb128.EncodeUint32(e.TableIndex)...)
		ret = append(ret, encodeConstantExpression(e.OffsetExpr)...)
		ret = append(ret, 0x0) // element kind
	}
	ret = append(ret, encodeVector(len(e.Init), func(i int) []byte {
		return leb128.EncodeUint32(e.Init[i])
	})...)
	return
}
