package binary

import (
	"bytes"
	"fmt"

	"github.com/loadwasm/loadwasm/api"
	"github.com/loadwasm/loadwasm/internal/leb128"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

func decodeImport(r *bytes.Reader, idx uint32) (i *wasm.Import, err error) {
	i = &wasm.Import{}
	if i.Module, _, err = decodeUTF8(r, "import[%d] module", idx); err != nil {
		return nil, err
	}

	if i.Name, _, err = decodeUTF8(r, "import[%d] name", idx); err != nil {
		return nil, err
	}

	b, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("import[%d] %s.%s: error decoding type: %w", idx, i.Module, i.Name, err)
	}
	i.Type = b
	switch i.Type {
	case wasm.ExternTypeFunc:
		i.DescFunc, _, err = leb128.DecodeUint32(r)
	case wasm.ExternTypeTable:
		i.DescTable, err = decodeTable(r)
	case wasm.ExternTypeMemory:
		i.DescMem, err = decodeMemory(r)
	case wasm.ExternTypeGlobal:
		i.DescGlobal, err = decodeGlobalType(r)
	default:
		err = fmt.Errorf("%w: invalid byte for importdesc: %#x", ErrInvalidByte, b)
	}
	if err != nil {
		return nil, fmt.Errorf("import[%d] %s[%s.%s]: %w", idx, api.ExternTypeName(i.Type), i.Module, i.Name, err)
	}
	return
}

// encodeImport returns the wasm.Import encoded in WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-import
func encodeImport(i *wasm.Import) []byte {
	data := encodeSizePrefixed([]byte(i.Module))
	data = append(data, encodeSizePrefixed([]byte(i.Name))...)
	data = append(data, i.Type)
	switch i.Type {
	case wasm.ExternTypeFunc:
		data = append(data, leb128.EncodeUint32(i.DescFunc)...)
	case wasm.ExternTypeTable:
		data = append(data, encodeTable(i.DescTable)...)
	case wasm.ExternTypeMemory:
		data = append(data, encodeMemory(i.DescMem)...)
	case wasm.ExternTypeGlobal:
		data = append(data, encodeGlobalType(i.DescGlobal)...)
	default:
		panic(fmt.Errorf("invalid externtype: %s", api.ExternTypeName(i.Type)))
	}
	return data
}
