package transpiler

import "github.com/loadwasm/loadwasm/internal/wasm"

// memArgHasMemoryIndex is set in the alignment of a memarg when a memory index follows it.
const memArgHasMemoryIndex = 0x40

// memoryAccess describes a load or store of the binary format.
type memoryAccess struct {
	// vt is the type of the value loaded or stored.
	vt wasm.ValueType
	// bytes is the width accessed in memory, or zero when it is the width of vt.
	bytes  uint32
	signed bool
	store  bool
}

var memoryAccesses = map[wasm.Opcode]*memoryAccess{
	wasm.OpcodeI32Load:    {vt: wasm.ValueTypeI32},
	wasm.OpcodeI64Load:    {vt: wasm.ValueTypeI64},
	wasm.OpcodeF32Load:    {vt: wasm.ValueTypeF32},
	wasm.OpcodeF64Load:    {vt: wasm.ValueTypeF64},
	wasm.OpcodeI32Load8S:  {vt: wasm.ValueTypeI32, bytes: 1, signed: true},
	wasm.OpcodeI32Load8U:  {vt: wasm.ValueTypeI32, bytes: 1},
	wasm.OpcodeI32Load16S: {vt: wasm.ValueTypeI32, bytes: 2, signed: true},
	wasm.OpcodeI32Load16U: {vt: wasm.ValueTypeI32, bytes: 2},
	wasm.OpcodeI64Load8S:  {vt: wasm.ValueTypeI64, bytes: 1, signed: true},
	wasm.OpcodeI64Load8U:  {vt: wasm.ValueTypeI64, bytes: 1},
	wasm.OpcodeI64Load16S: {vt: wasm.ValueTypeI64, bytes: 2, signed: true},
	wasm.OpcodeI64Load16U: {vt: wasm.ValueTypeI64, bytes: 2},
	wasm.OpcodeI64Load32S: {vt: wasm.ValueTypeI64, bytes: 4, signed: true},
	wasm.OpcodeI64Load32U: {vt: wasm.ValueTypeI64, bytes: 4},
	wasm.OpcodeI32Store:   {vt: wasm.ValueTypeI32, store: true},
	wasm.OpcodeI64Store:   {vt: wasm.ValueTypeI64, store: true},
	wasm.OpcodeF32Store:   {vt: wasm.ValueTypeF32, store: true},
	wasm.OpcodeF64Store:   {vt: wasm.ValueTypeF64, store: true},
	wasm.OpcodeI32Store8:  {vt: wasm.ValueTypeI32, bytes: 1, store: true},
	wasm.OpcodeI32Store16: {vt: wasm.ValueTypeI32, bytes: 2, store: true},
	wasm.OpcodeI64Store8:  {vt: wasm.ValueTypeI64, bytes: 1, store: true},
	wasm.OpcodeI64Store16: {vt: wasm.ValueTypeI64, bytes: 2, store: true},
	wasm.OpcodeI64Store32: {vt: wasm.ValueTypeI64, bytes: 4, store: true},
}

// width returns the count of bytes accessed.
func (a *memoryAccess) width() uint32 {
	if a.bytes != 0 {
		return a.bytes
	}
	return wasm.ElementSize(a.vt)
}

// opcode returns the transpiled opcode without offset. The variant with offset follows it.
func (a *memoryAccess) opcode() Opcode {
	if a.store {
		switch a.width() {
		case 1:
			return OpStore8
		case 2:
			return OpStore16
		case 4:
			return OpStore32
		default:
			return OpStore64
		}
	}

	wide := a.vt == wasm.ValueTypeI64
	switch a.width() {
	case 1:
		switch {
		case !a.signed:
			return OpLoad8U
		case wide:
			return OpLoad8S64
		default:
			return OpLoad8S32
		}
	case 2:
		switch {
		case !a.signed:
			return OpLoad16U
		case wide:
			return OpLoad16S64
		default:
			return OpLoad16S32
		}
	case 4:
		if a.signed {
			return OpLoad32S64
		}
		return OpLoad32U
	default:
		return OpLoad64
	}
}
