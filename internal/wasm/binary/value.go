package binary

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/loadwasm/loadwasm/internal/leb128"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

func decodeValueTypes(r *bytes.Reader, num uint32) ([]wasm.ValueType, error) {
	if num == 0 {
		return nil, nil
	}
	if uint64(num) > uint64(r.Len()) {
		return nil, fmt.Errorf("%d value types exceed the remaining %d bytes", num, r.Len())
	}
	ret := make([]wasm.ValueType, num)
	if _, err := io.ReadFull(r, ret); err != nil {
		return nil, err
	}
	for _, v := range ret {
		switch v {
		case wasm.ValueTypeI32, wasm.ValueTypeF32, wasm.ValueTypeI64, wasm.ValueTypeF64:
		default:
			return nil, fmt.Errorf("%w: invalid value type: %#x", ErrInvalidByte, v)
		}
	}
	return ret, nil
}

// decodeUTF8 decodes a size prefixed string from the reader, returning it and the count of bytes read.
// contextFormat and contextArgs apply an error format when present
func decodeUTF8(r *bytes.Reader, contextFormat string, contextArgs ...interface{}) (string, uint32, error) {
	size, sizeOfSize, err := leb128.DecodeUint32(r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read %s size: %w", fmt.Sprintf(contextFormat, contextArgs...), err)
	}
	if uint64(size) > uint64(r.Len()) {
		return "", 0, fmt.Errorf("%s of size %d exceeds the remaining %d bytes",
			fmt.Sprintf(contextFormat, contextArgs...), size, r.Len())
	}

	buf := make([]byte, size)
	if _, err = io.ReadFull(r, buf); err != nil {
		return "", 0, fmt.Errorf("failed to read %s: %w", fmt.Sprintf(contextFormat, contextArgs...), err)
	}

	if !utf8.Valid(buf) {
		return "", 0, fmt.Errorf("%s is not valid UTF-8", fmt.Sprintf(contextFormat, contextArgs...))
	}

	return string(buf), size + uint32(sizeOfSize), nil
}

// encodeSizePrefixed encodes the data prefixed by its length in LEB128.
func encodeSizePrefixed(data []byte) []byte {
	size := leb128.EncodeUint32(uint32(len(data)))
	return append(size, data...)
}

// encodeVector encodes the count of items followed by each encoded item.
func encodeVector(count int, encodeItem func(i int) []byte) []byte {
	ret := leb128.EncodeUint32(uint32(count))
	for i := 0; i < count; i++ {
		ret = append(ret, encodeItem(i)...)
	}
	return ret
}
