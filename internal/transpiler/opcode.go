package transpiler

import (
	"encoding/binary"
	"fmt"

	"github.com/loadwasm/loadwasm/internal/wasm"
)

// Opcode is an instruction of the transpiled form. Immediates are fixed-width little-endian and jump targets are
// absolute offsets into the transpiled body.
//
// Numeric, comparison and conversion operators, including sign extension, keep their binary-format byte in the range
// [wasm.OpcodeI32Eqz, wasm.OpcodeI64Extend32S] and take no immediates. Every other instruction is one of the constants
// below.
type Opcode = byte

const (
	// OpUnreachable traps.
	OpUnreachable Opcode = 0x00
	// OpLocals [n u32] pushes n zeroed declared locals. It only appears as the first instruction.
	OpLocals Opcode = 0x01
	// OpJump [target u32]
	OpJump Opcode = 0x02
	// OpJumpIf [target u32] pops an i32 and jumps if it is not zero.
	OpJumpIf Opcode = 0x03
	// OpJumpUnless [target u32] pops an i32 and jumps if it is zero.
	OpJumpUnless Opcode = 0x04
	// OpBr [keep u32] [drop u32] [target u32] moves the top keep values down over drop values, then jumps.
	OpBr Opcode = 0x05
	// OpBrIf [keep u32] [drop u32] [target u32] pops an i32 and if it is not zero, does OpBr.
	OpBrIf Opcode = 0x06
	// OpBrTable [keep u32] [n u32] ([drop u32] [target u32]){n+1} pops an i32 index and does OpBr with the entry at
	// that index, or the last entry when out of range. A target of ReturnTarget returns from the function.
	OpBrTable Opcode = 0x07
	// OpReturn [keep u32] [drop u32] moves the top keep values down over drop values, including locals, and returns.
	OpReturn Opcode = 0x08
	// OpCallLocal [position u32] calls a function defined in the module.
	OpCallLocal Opcode = 0x09
	// OpCallImport [position u32] calls an imported function.
	OpCallImport Opcode = 0x0a
	// OpCallIndirect [type u32] pops an i32 entry of the active table and calls it, trapping unless its type matches.
	OpCallIndirect Opcode = 0x0b
	// OpDrop discards the top value.
	OpDrop Opcode = 0x0c
	// OpSelect pops an i32 and two values, pushing the first if the i32 is not zero and otherwise the second.
	OpSelect Opcode = 0x0d
	// OpLocalGet [index u32] pushes the local at index from the frame base. Parameters come first.
	OpLocalGet Opcode = 0x0e
	// OpLocalSet [index u32]
	OpLocalSet Opcode = 0x0f
	// OpLocalTee [index u32]
	OpLocalTee Opcode = 0x10
	// OpUseMemory [kind u8] [position u32] selects the active memory. kind is a wasm.LocationKind.
	OpUseMemory Opcode = 0x11
	// OpUseTable [kind u8] [position u32] selects the active table.
	OpUseTable Opcode = 0x12
	// OpUseGlobal [kind u8] [position u32] selects the active global.
	OpUseGlobal Opcode = 0x13
	// OpGlobalGet32 pushes the 4-byte value of the active global.
	OpGlobalGet32 Opcode = 0x14
	// OpGlobalGet64 pushes the 8-byte value of the active global.
	OpGlobalGet64 Opcode = 0x15
	// OpGlobalSet32 pops into the 4-byte value of the active global.
	OpGlobalSet32 Opcode = 0x16
	// OpGlobalSet64 pops into the 8-byte value of the active global.
	OpGlobalSet64 Opcode = 0x17
)

// Loads pop an i32 address from the active memory. Each width has a variant without offset and a variant followed by
// [offset u32]. The suffix names the extension: U zero-extends and S32/S64 sign-extend to that width.
const (
	OpLoad8U Opcode = 0x18 + iota
	OpLoad8UOffset
	OpLoad8S32
	OpLoad8S32Offset
	OpLoad8S64
	OpLoad8S64Offset
	OpLoad16U
	OpLoad16UOffset
	OpLoad16S32
	OpLoad16S32Offset
	OpLoad16S64
	OpLoad16S64Offset
	OpLoad32U
	OpLoad32UOffset
	OpLoad32S64
	OpLoad32S64Offset
	OpLoad64
	OpLoad64Offset
)

// Stores pop a value then an i32 address, writing the low bytes of the value to the active memory.
const (
	OpStore8 Opcode = 0x2a + iota
	OpStore8Offset
	OpStore16
	OpStore16Offset
	OpStore32
	OpStore32Offset
	OpStore64
	OpStore64Offset
)

const (
	// OpMemorySize pushes the page count of the active memory.
	OpMemorySize Opcode = 0x32
	// OpMemoryGrow grows the active memory. Its buffer must be reacquired afterward.
	OpMemoryGrow Opcode = 0x33
	// OpMemoryCopy pops n, src and dst and copies within the active memory.
	OpMemoryCopy Opcode = 0x34
	// OpMemoryFill pops n, val and dst and fills the active memory.
	OpMemoryFill Opcode = 0x35
	// OpConst32 [value u32] pushes an i32 or the bits of an f32.
	OpConst32 Opcode = 0x36
	// OpConst64 [value u64] pushes an i64 or the bits of an f64.
	OpConst64 Opcode = 0x37
)

// Saturating truncations, in the order of their wasm.OpcodeMisc sub-opcodes.
const (
	OpI32TruncSatF32S Opcode = 0xc5 + iota
	OpI32TruncSatF32U
	OpI32TruncSatF64S
	OpI32TruncSatF64U
	OpI64TruncSatF32S
	OpI64TruncSatF32U
	OpI64TruncSatF64S
	OpI64TruncSatF64U
)

// ReturnTarget is the OpBrTable target that returns from the function.
const ReturnTarget = uint32(0xffffffff)

// immediate describes the fixed immediates of an opcode.
type immediate byte

const (
	immNone immediate = iota
	immU32
	immU32x2
	immU32x3
	immU64
	immStore // kind u8, position u32
	immBrTable
)

var opNames = [256]string{
	OpUnreachable: "unreachable", OpLocals: "locals", OpJump: "jump", OpJumpIf: "jump_if",
	OpJumpUnless: "jump_unless", OpBr: "br", OpBrIf: "br_if", OpBrTable: "br_table", OpReturn: "return",
	OpCallLocal: "call_local", OpCallImport: "call_import", OpCallIndirect: "call_indirect", OpDrop: "drop",
	OpSelect: "select", OpLocalGet: "local.get", OpLocalSet: "local.set", OpLocalTee: "local.tee",
	OpUseMemory: "use_memory", OpUseTable: "use_table", OpUseGlobal: "use_global",
	OpGlobalGet32: "global.get32", OpGlobalGet64: "global.get64", OpGlobalSet32: "global.set32",
	OpGlobalSet64: "global.set64",
	OpLoad8U: "load8_u", OpLoad8UOffset: "load8_u_offset", OpLoad8S32: "load8_s32",
	OpLoad8S32Offset: "load8_s32_offset", OpLoad8S64: "load8_s64", OpLoad8S64Offset: "load8_s64_offset",
	OpLoad16U: "load16_u", OpLoad16UOffset: "load16_u_offset", OpLoad16S32: "load16_s32",
	OpLoad16S32Offset: "load16_s32_offset", OpLoad16S64: "load16_s64", OpLoad16S64Offset: "load16_s64_offset",
	OpLoad32U: "load32_u", OpLoad32UOffset: "load32_u_offset", OpLoad32S64: "load32_s64",
	OpLoad32S64Offset: "load32_s64_offset", OpLoad64: "load64", OpLoad64Offset: "load64_offset",
	OpStore8: "store8", OpStore8Offset: "store8_offset", OpStore16: "store16", OpStore16Offset: "store16_offset",
	OpStore32: "store32", OpStore32Offset: "store32_offset", OpStore64: "store64", OpStore64Offset: "store64_offset",
	OpMemorySize: "memory.size", OpMemoryGrow: "memory.grow", OpMemoryCopy: "memory.copy",
	OpMemoryFill: "memory.fill", OpConst32: "const32", OpConst64: "const64",
	OpI32TruncSatF32S: "i32.trunc_sat_f32_s", OpI32TruncSatF32U: "i32.trunc_sat_f32_u",
	OpI32TruncSatF64S: "i32.trunc_sat_f64_s", OpI32TruncSatF64U: "i32.trunc_sat_f64_u",
	OpI64TruncSatF32S: "i64.trunc_sat_f32_s", OpI64TruncSatF32U: "i64.trunc_sat_f32_u",
	OpI64TruncSatF64S: "i64.trunc_sat_f64_s", OpI64TruncSatF64U: "i64.trunc_sat_f64_u",
}

// isNumericOp is true for binary-format operators copied through unchanged.
func isNumericOp(op Opcode) bool {
	return op >= wasm.OpcodeI32Eqz && op <= wasm.OpcodeI64Extend32S
}

// OpName returns the name of a transpiled opcode, or a hex string if it isn't one.
func OpName(op Opcode) string {
	if isNumericOp(op) {
		return wasm.InstructionName(op)
	}
	if name := opNames[op]; name != "" {
		return name
	}
	return fmt.Sprintf("%#x", op)
}

func opImmediate(op Opcode) (immediate, bool) {
	switch {
	case isNumericOp(op):
		return immNone, true
	case op >= OpLoad8U && op <= OpStore64Offset:
		if (op-OpLoad8U)%2 == 1 {
			return immU32, true
		}
		return immNone, true
	case op >= OpI32TruncSatF32S && op <= OpI64TruncSatF64U:
		return immNone, true
	}
	switch op {
	case OpUnreachable, OpDrop, OpSelect, OpGlobalGet32, OpGlobalGet64, OpGlobalSet32, OpGlobalSet64,
		OpMemorySize, OpMemoryGrow, OpMemoryCopy, OpMemoryFill:
		return immNone, true
	case OpLocals, OpJump, OpJumpIf, OpJumpUnless, OpCallLocal, OpCallImport, OpCallIndirect,
		OpLocalGet, OpLocalSet, OpLocalTee, OpConst32:
		return immU32, true
	case OpReturn:
		return immU32x2, true
	case OpBr, OpBrIf:
		return immU32x3, true
	case OpConst64:
		return immU64, true
	case OpUseMemory, OpUseTable, OpUseGlobal:
		return immStore, true
	case OpBrTable:
		return immBrTable, true
	}
	return immNone, false
}

func putUint32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}
