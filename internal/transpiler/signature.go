package transpiler

import (
	"fmt"

	"github.com/loadwasm/loadwasm/internal/wasm"
)

// signature represents how an operator manipulates the value stack in terms of value types.
type signature struct {
	in, out []wasm.ValueType
}

var (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
	f32 = wasm.ValueTypeF32
	f64 = wasm.ValueTypeF64

	signature_I32_I32        = &signature{in: []wasm.ValueType{i32}, out: []wasm.ValueType{i32}}
	signature_I32_I64        = &signature{in: []wasm.ValueType{i32}, out: []wasm.ValueType{i64}}
	signature_I32_F32        = &signature{in: []wasm.ValueType{i32}, out: []wasm.ValueType{f32}}
	signature_I32_F64        = &signature{in: []wasm.ValueType{i32}, out: []wasm.ValueType{f64}}
	signature_I64_I32        = &signature{in: []wasm.ValueType{i64}, out: []wasm.ValueType{i32}}
	signature_I64_I64        = &signature{in: []wasm.ValueType{i64}, out: []wasm.ValueType{i64}}
	signature_I64_F32        = &signature{in: []wasm.ValueType{i64}, out: []wasm.ValueType{f32}}
	signature_I64_F64        = &signature{in: []wasm.ValueType{i64}, out: []wasm.ValueType{f64}}
	signature_F32_I32        = &signature{in: []wasm.ValueType{f32}, out: []wasm.ValueType{i32}}
	signature_F32_I64        = &signature{in: []wasm.ValueType{f32}, out: []wasm.ValueType{i64}}
	signature_F32_F32        = &signature{in: []wasm.ValueType{f32}, out: []wasm.ValueType{f32}}
	signature_F32_F64        = &signature{in: []wasm.ValueType{f32}, out: []wasm.ValueType{f64}}
	signature_F64_I32        = &signature{in: []wasm.ValueType{f64}, out: []wasm.ValueType{i32}}
	signature_F64_I64        = &signature{in: []wasm.ValueType{f64}, out: []wasm.ValueType{i64}}
	signature_F64_F32        = &signature{in: []wasm.ValueType{f64}, out: []wasm.ValueType{f32}}
	signature_F64_F64        = &signature{in: []wasm.ValueType{f64}, out: []wasm.ValueType{f64}}
	signature_I32I32_I32     = &signature{in: []wasm.ValueType{i32, i32}, out: []wasm.ValueType{i32}}
	signature_I64I64_I32     = &signature{in: []wasm.ValueType{i64, i64}, out: []wasm.ValueType{i32}}
	signature_I64I64_I64     = &signature{in: []wasm.ValueType{i64, i64}, out: []wasm.ValueType{i64}}
	signature_F32F32_I32     = &signature{in: []wasm.ValueType{f32, f32}, out: []wasm.ValueType{i32}}
	signature_F32F32_F32     = &signature{in: []wasm.ValueType{f32, f32}, out: []wasm.ValueType{f32}}
	signature_F64F64_I32     = &signature{in: []wasm.ValueType{f64, f64}, out: []wasm.ValueType{i32}}
	signature_F64F64_F64     = &signature{in: []wasm.ValueType{f64, f64}, out: []wasm.ValueType{f64}}
	signature_I32I32I32_None = &signature{in: []wasm.ValueType{i32, i32, i32}}
)

// numericOpSignature returns the signature of an operator copied through unchanged.
func numericOpSignature(op wasm.Opcode) (*signature, error) {
	switch {
	case op == wasm.OpcodeI32Eqz:
		return signature_I32_I32, nil
	case op >= wasm.OpcodeI32Eq && op <= wasm.OpcodeI32GeU:
		return signature_I32I32_I32, nil
	case op == wasm.OpcodeI64Eqz:
		return signature_I64_I32, nil
	case op >= wasm.OpcodeI64Eq && op <= wasm.OpcodeI64GeU:
		return signature_I64I64_I32, nil
	case op >= wasm.OpcodeF32Eq && op <= wasm.OpcodeF32Ge:
		return signature_F32F32_I32, nil
	case op >= wasm.OpcodeF64Eq && op <= wasm.OpcodeF64Ge:
		return signature_F64F64_I32, nil
	case op >= wasm.OpcodeI32Clz && op <= wasm.OpcodeI32Popcnt:
		return signature_I32_I32, nil
	case op >= wasm.OpcodeI32Add && op <= wasm.OpcodeI32Rotr:
		return signature_I32I32_I32, nil
	case op >= wasm.OpcodeI64Clz && op <= wasm.OpcodeI64Popcnt:
		return signature_I64_I64, nil
	case op >= wasm.OpcodeI64Add && op <= wasm.OpcodeI64Rotr:
		return signature_I64I64_I64, nil
	case op >= wasm.OpcodeF32Abs && op <= wasm.OpcodeF32Sqrt:
		return signature_F32_F32, nil
	case op >= wasm.OpcodeF32Add && op <= wasm.OpcodeF32Copysign:
		return signature_F32F32_F32, nil
	case op >= wasm.OpcodeF64Abs && op <= wasm.OpcodeF64Sqrt:
		return signature_F64_F64, nil
	case op >= wasm.OpcodeF64Add && op <= wasm.OpcodeF64Copysign:
		return signature_F64F64_F64, nil
	}

	switch op {
	case wasm.OpcodeI32WrapI64:
		return signature_I64_I32, nil
	case wasm.OpcodeI32TruncF32S, wasm.OpcodeI32TruncF32U, wasm.OpcodeI32ReinterpretF32:
		return signature_F32_I32, nil
	case wasm.OpcodeI32TruncF64S, wasm.OpcodeI32TruncF64U:
		return signature_F64_I32, nil
	case wasm.OpcodeI64ExtendI32S, wasm.OpcodeI64ExtendI32U:
		return signature_I32_I64, nil
	case wasm.OpcodeI64TruncF32S, wasm.OpcodeI64TruncF32U:
		return signature_F32_I64, nil
	case wasm.OpcodeI64TruncF64S, wasm.OpcodeI64TruncF64U, wasm.OpcodeI64ReinterpretF64:
		return signature_F64_I64, nil
	case wasm.OpcodeF32ConvertI32S, wasm.OpcodeF32ConvertI32U, wasm.OpcodeF32ReinterpretI32:
		return signature_I32_F32, nil
	case wasm.OpcodeF32ConvertI64S, wasm.OpcodeF32ConvertI64U:
		return signature_I64_F32, nil
	case wasm.OpcodeF32DemoteF64:
		return signature_F64_F32, nil
	case wasm.OpcodeF64ConvertI32S, wasm.OpcodeF64ConvertI32U:
		return signature_I32_F64, nil
	case wasm.OpcodeF64ConvertI64S, wasm.OpcodeF64ConvertI64U, wasm.OpcodeF64ReinterpretI64:
		return signature_I64_F64, nil
	case wasm.OpcodeF64PromoteF32:
		return signature_F32_F64, nil
	case wasm.OpcodeI32Extend8S, wasm.OpcodeI32Extend16S:
		return signature_I32_I32, nil
	case wasm.OpcodeI64Extend8S, wasm.OpcodeI64Extend16S, wasm.OpcodeI64Extend32S:
		return signature_I64_I64, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOpcode, wasm.InstructionName(op))
}

// truncSatSignature returns the signature of a saturating truncation.
func truncSatSignature(op wasm.OpcodeMisc) *signature {
	switch op {
	case wasm.OpcodeMiscI32TruncSatF32S, wasm.OpcodeMiscI32TruncSatF32U:
		return signature_F32_I32
	case wasm.OpcodeMiscI32TruncSatF64S, wasm.OpcodeMiscI32TruncSatF64U:
		return signature_F64_I32
	case wasm.OpcodeMiscI64TruncSatF32S, wasm.OpcodeMiscI64TruncSatF32U:
		return signature_F32_I64
	default: // wasm.OpcodeMiscI64TruncSatF64S, wasm.OpcodeMiscI64TruncSatF64U
		return signature_F64_I64
	}
}
