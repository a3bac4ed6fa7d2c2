package wasm

import (
	"encoding/binary"
	"fmt"

	"github.com/loadwasm/loadwasm/internal/leb128"
)

// ConstantExpression is an initializer expression: a single constant or global.get, without the trailing end.
// Data holds the immediate as encoded in the binary format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#constant-expressions%E2%91%A0
type ConstantExpression struct {
	Opcode Opcode
	Data   []byte
}

// GlobalValueReader returns the value of the global at the given index, encoded as in api.ValueType.
type GlobalValueReader func(globalIndex Index) (uint64, error)

// decodeConstantExpression returns the immediate of expr: the value for a constant and the global index for
// global.get.
func decodeConstantExpression(expr *ConstantExpression) (uint64, error) {
	switch expr.Opcode {
	case OpcodeI32Const:
		v, _, err := leb128.LoadInt32(expr.Data)
		if err != nil {
			return 0, leb128.DecodeError("i32.const", err)
		}
		return uint64(uint32(v)), nil
	case OpcodeI64Const:
		v, _, err := leb128.LoadInt64(expr.Data)
		if err != nil {
			return 0, leb128.DecodeError("i64.const", err)
		}
		return uint64(v), nil
	case OpcodeF32Const:
		if len(expr.Data) < 4 {
			return 0, fmt.Errorf("read f32.const: %d bytes", len(expr.Data))
		}
		return uint64(binary.LittleEndian.Uint32(expr.Data)), nil
	case OpcodeF64Const:
		if len(expr.Data) < 8 {
			return 0, fmt.Errorf("read f64.const: %d bytes", len(expr.Data))
		}
		return binary.LittleEndian.Uint64(expr.Data), nil
	case OpcodeGlobalGet:
		v, _, err := leb128.LoadUint32(expr.Data)
		if err != nil {
			return 0, leb128.DecodeError("global index", err)
		}
		return uint64(v), nil
	}
	return 0, fmt.Errorf("invalid opcode for const expression: %#x", expr.Opcode)
}

// ValidateConstantExpression ensures expr produces a value of the expected type. global.get may only read an
// immutable imported global.
func ValidateConstantExpression(expr *ConstantExpression, expected ValueType, index *IndexTable) error {
	if expr == nil {
		return fmt.Errorf("missing const expression")
	}
	imm, err := decodeConstantExpression(expr)
	if err != nil {
		return err
	}
	var actual ValueType
	switch expr.Opcode {
	case OpcodeI32Const:
		actual = ValueTypeI32
	case OpcodeI64Const:
		actual = ValueTypeI64
	case OpcodeF32Const:
		actual = ValueTypeF32
	case OpcodeF64Const:
		actual = ValueTypeF64
	case OpcodeGlobalGet:
		loc, gt, err := index.Global(Index(imm))
		if err != nil {
			return err
		}
		if loc.Kind != LocationKindImported {
			return fmt.Errorf("global.get %d in const expression must read an imported global", imm)
		}
		if gt.Mutable {
			return fmt.Errorf("global.get %d in const expression must read an immutable global", imm)
		}
		actual = gt.ValType
	}
	if actual != expected {
		return fmt.Errorf("const expression type mismatch: expected %s, but was %s",
			ValueTypeName(expected), ValueTypeName(actual))
	}
	return nil
}

// EvaluateConstantExpression returns the value of expr, encoded as in api.ValueType. global.get is resolved with
// globals.
func EvaluateConstantExpression(expr *ConstantExpression, globals GlobalValueReader) (uint64, error) {
	v, err := decodeConstantExpression(expr)
	if err != nil {
		return 0, err
	}
	if expr.Opcode == OpcodeGlobalGet {
		return globals(Index(v))
	}
	return v, nil
}
