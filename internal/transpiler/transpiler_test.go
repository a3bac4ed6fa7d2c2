package transpiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loadwasm/loadwasm/internal/wasm"
)

var (
	v_v        = &wasm.FunctionType{}
	i32_i32    = &wasm.FunctionType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}
	i32i32_i32 = &wasm.FunctionType{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}}
	v_i32      = &wasm.FunctionType{Results: []wasm.ValueType{i32}}
	i32_v      = &wasm.FunctionType{Params: []wasm.ValueType{i32}}

	imported = byte(wasm.LocationKindImported)
	local    = byte(wasm.LocationKindLocal)
)

// testIndex has the following index spaces:
//   - types: v_v, i32_i32, i32i32_i32
//   - functions: [0] env.f (i32_i32, imported[0]), [1] v_v (local[0]), [2] i32i32_i32 (local[1])
//   - globals: [0] env.g const i32 (imported[0]), [1] var i64 (local[0]), [2] var i32 (local[1])
//   - memories: [0] env.mem (imported[0])
//   - tables: [0] (local[0])
func testIndex(t *testing.T) *wasm.IndexTable {
	b := wasm.NewIndexTableBuilder([]*wasm.FunctionType{v_v, i32_i32, i32i32_i32})
	require.NoError(t, b.AddImport(&wasm.Import{Type: wasm.ExternTypeFunc, Module: "env", Name: "f", DescFunc: 1}))
	require.NoError(t, b.AddImport(&wasm.Import{
		Type: wasm.ExternTypeGlobal, Module: "env", Name: "g", DescGlobal: &wasm.GlobalType{ValType: i32},
	}))
	require.NoError(t, b.AddImport(&wasm.Import{Type: wasm.ExternTypeMemory, Module: "env", Name: "mem", DescMem: &wasm.Memory{Min: 1}}))
	require.NoError(t, b.AddFunction(0))
	require.NoError(t, b.AddFunction(2))
	require.NoError(t, b.AddGlobal(&wasm.GlobalType{ValType: i64, Mutable: true}))
	require.NoError(t, b.AddGlobal(&wasm.GlobalType{ValType: i32, Mutable: true}))
	require.NoError(t, b.AddTable(&wasm.Table{Min: 1}))
	index, err := b.Build()
	require.NoError(t, err)
	return index
}

func u32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// code concatenates opcodes and immediates into an expected body.
func code(parts ...interface{}) []byte {
	var ret []byte
	for _, p := range parts {
		switch v := p.(type) {
		case byte:
			ret = append(ret, v)
		case []byte:
			ret = append(ret, v...)
		default:
			panic("unexpected part")
		}
	}
	return ret
}

func TestTranspile(t *testing.T) {
	tests := []struct {
		name       string
		typ        *wasm.FunctionType
		localTypes []wasm.ValueType
		body       []byte
		expected   []byte
	}{
		{
			name:     "empty",
			typ:      v_v,
			body:     []byte{wasm.OpcodeEnd},
			expected: code(OpReturn, u32(0), u32(0)),
		},
		{
			name:     "i32.const",
			typ:      v_i32,
			body:     []byte{wasm.OpcodeI32Const, 0x01, wasm.OpcodeEnd},
			expected: code(OpConst32, u32(1), OpReturn, u32(1), u32(0)),
		},
		{
			name:     "i32.const negative",
			typ:      v_i32,
			body:     []byte{wasm.OpcodeI32Const, 0x7f, wasm.OpcodeEnd},
			expected: code(OpConst32, u32(0xffffffff), OpReturn, u32(1), u32(0)),
		},
		{
			name: "i64.const",
			typ:  v_v,
			body: []byte{wasm.OpcodeI64Const, 0x02, wasm.OpcodeDrop, wasm.OpcodeEnd},
			expected: code(OpConst64, u32(2), u32(0), OpDrop,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "f32.const and numeric op",
			typ:  v_v,
			body: []byte{wasm.OpcodeF32Const, 0x00, 0x00, 0x80, 0x3f, wasm.OpcodeF32Neg, wasm.OpcodeDrop, wasm.OpcodeEnd},
			expected: code(OpConst32, []byte{0x00, 0x00, 0x80, 0x3f}, wasm.OpcodeF32Neg, OpDrop,
				OpReturn, u32(0), u32(0)),
		},
		{
			name:       "locals",
			typ:        i32_i32,
			localTypes: []wasm.ValueType{i64},
			body:       []byte{wasm.OpcodeLocalGet, 0x00, wasm.OpcodeEnd},
			expected: code(OpLocals, u32(1), OpLocalGet, u32(0),
				OpReturn, u32(1), u32(2)),
		},
		{
			name: "local.set and local.tee",
			typ:  i32_v,
			body: []byte{
				wasm.OpcodeI32Const, 0x03, wasm.OpcodeLocalTee, 0x00,
				wasm.OpcodeLocalSet, 0x00, wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(3), OpLocalTee, u32(0), OpLocalSet, u32(0),
				OpReturn, u32(0), u32(1)),
		},
		{
			name: "loop br 0 targets the loop entry",
			typ:  v_v,
			body: []byte{wasm.OpcodeLoop, 0x40, wasm.OpcodeBr, 0x00, wasm.OpcodeEnd, wasm.OpcodeEnd},
			expected: code(OpJump, u32(0),
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "block br 0 targets the end",
			typ:  v_v,
			body: []byte{wasm.OpcodeBlock, 0x40, wasm.OpcodeBr, 0x00, wasm.OpcodeEnd, wasm.OpcodeEnd},
			expected: code(OpJump, u32(5),
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "br keeps the label value and drops the rest",
			typ:  v_i32,
			body: []byte{
				wasm.OpcodeBlock, i32,
				wasm.OpcodeI32Const, 0x01, wasm.OpcodeI32Const, 0x02, wasm.OpcodeBr, 0x00,
				wasm.OpcodeEnd, wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(1), OpConst32, u32(2), OpBr, u32(1), u32(1), u32(23),
				OpReturn, u32(1), u32(0)),
		},
		{
			name: "br to the function returns",
			typ:  v_v,
			body: []byte{wasm.OpcodeBlock, 0x40, wasm.OpcodeBr, 0x01, wasm.OpcodeEnd, wasm.OpcodeEnd},
			expected: code(OpReturn, u32(0), u32(0),
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "br_if to a block",
			typ:  i32_v,
			body: []byte{
				wasm.OpcodeBlock, 0x40, wasm.OpcodeLocalGet, 0x00, wasm.OpcodeBrIf, 0x00, wasm.OpcodeEnd,
				wasm.OpcodeEnd,
			},
			expected: code(OpLocalGet, u32(0), OpJumpIf, u32(10),
				OpReturn, u32(0), u32(1)),
		},
		{
			name: "br_if to the function",
			typ:  v_v,
			body: []byte{wasm.OpcodeI32Const, 0x00, wasm.OpcodeBrIf, 0x00, wasm.OpcodeEnd},
			expected: code(OpConst32, u32(0), OpJumpUnless, u32(19), OpReturn, u32(0), u32(0),
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "if else",
			typ:  i32_i32,
			body: []byte{
				wasm.OpcodeLocalGet, 0x00,
				wasm.OpcodeIf, i32, wasm.OpcodeI32Const, 0x01,
				wasm.OpcodeElse, wasm.OpcodeI32Const, 0x02,
				wasm.OpcodeEnd, wasm.OpcodeEnd,
			},
			expected: code(OpLocalGet, u32(0), OpJumpUnless, u32(20), OpConst32, u32(1), OpJump, u32(25),
				OpConst32, u32(2),
				OpReturn, u32(1), u32(1)),
		},
		{
			name: "if without else",
			typ:  i32_v,
			body: []byte{
				wasm.OpcodeLocalGet, 0x00,
				wasm.OpcodeIf, 0x40, wasm.OpcodeNop, wasm.OpcodeEnd, wasm.OpcodeEnd,
			},
			expected: code(OpLocalGet, u32(0), OpJumpUnless, u32(10),
				OpReturn, u32(0), u32(1)),
		},
		{
			name: "br_table",
			typ:  i32_v,
			body: []byte{
				wasm.OpcodeBlock, 0x40, wasm.OpcodeBlock, 0x40,
				wasm.OpcodeLocalGet, 0x00, wasm.OpcodeBrTable, 0x02, 0x00, 0x01, 0x02,
				wasm.OpcodeEnd, wasm.OpcodeEnd, wasm.OpcodeEnd,
			},
			expected: code(OpLocalGet, u32(0),
				OpBrTable, u32(0), u32(2),
				u32(0), u32(38), // inner block
				u32(0), u32(38), // outer block
				u32(1), u32(ReturnTarget),
				OpReturn, u32(0), u32(1)),
		},
		{
			name: "return drops operands and locals",
			typ:  i32_i32,
			body: []byte{
				wasm.OpcodeI32Const, 0x01, wasm.OpcodeLocalGet, 0x00, wasm.OpcodeReturn, wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(1), OpLocalGet, u32(0), OpReturn, u32(1), u32(2)),
		},
		{
			name:     "unreachable code is not emitted",
			typ:      v_v,
			body:     []byte{wasm.OpcodeUnreachable, wasm.OpcodeI32Const, 0x01, wasm.OpcodeDrop, wasm.OpcodeEnd},
			expected: code(OpUnreachable),
		},
		{
			name:     "unreachable code is polymorphic",
			typ:      v_i32,
			body:     []byte{wasm.OpcodeUnreachable, wasm.OpcodeI32Add, wasm.OpcodeEnd},
			expected: code(OpUnreachable),
		},
		{
			name: "blocks opened in unreachable code",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeReturn,
				wasm.OpcodeBlock, 0x40, wasm.OpcodeI32Const, 0x01, wasm.OpcodeBrIf, 0x00, wasm.OpcodeEnd,
				wasm.OpcodeEnd,
			},
			expected: code(OpReturn, u32(0), u32(0)),
		},
		{
			name: "select",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeI32Const, 0x01, wasm.OpcodeI32Const, 0x02, wasm.OpcodeI32Const, 0x00,
				wasm.OpcodeSelect, wasm.OpcodeDrop, wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(1), OpConst32, u32(2), OpConst32, u32(0), OpSelect, OpDrop,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "typed select",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeI32Const, 0x01, wasm.OpcodeI32Const, 0x02, wasm.OpcodeI32Const, 0x00,
				wasm.OpcodeTypedSelect, 0x01, i32, wasm.OpcodeDrop, wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(1), OpConst32, u32(2), OpConst32, u32(0), OpSelect, OpDrop,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "call imported",
			typ:  v_v,
			body: []byte{wasm.OpcodeI32Const, 0x01, wasm.OpcodeCall, 0x00, wasm.OpcodeDrop, wasm.OpcodeEnd},
			expected: code(OpConst32, u32(1), OpCallImport, u32(0), OpDrop,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "call local",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeI32Const, 0x01, wasm.OpcodeI32Const, 0x02, wasm.OpcodeCall, 0x02, wasm.OpcodeDrop,
				wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(1), OpConst32, u32(2), OpCallLocal, u32(1), OpDrop,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "call_indirect",
			typ:  v_v,
			body: []byte{wasm.OpcodeI32Const, 0x00, wasm.OpcodeCallIndirect, 0x00, 0x00, wasm.OpcodeEnd},
			expected: code(OpConst32, u32(0), OpUseTable, local, u32(0), OpCallIndirect, u32(0),
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "global.get imported and global.set local",
			typ:  v_v,
			body: []byte{wasm.OpcodeGlobalGet, 0x00, wasm.OpcodeGlobalSet, 0x02, wasm.OpcodeEnd},
			expected: code(OpUseGlobal, imported, u32(0), OpGlobalGet32, OpUseGlobal, local, u32(1), OpGlobalSet32,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "global of 64 bits",
			typ:  v_v,
			body: []byte{wasm.OpcodeGlobalGet, 0x01, wasm.OpcodeGlobalSet, 0x01, wasm.OpcodeEnd},
			expected: code(OpUseGlobal, local, u32(0), OpGlobalGet64, OpGlobalSet64,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "memory is selected once",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeI32Const, 0x00, wasm.OpcodeI32Load, 0x02, 0x00, wasm.OpcodeDrop,
				wasm.OpcodeI32Const, 0x00, wasm.OpcodeI32Load, 0x02, 0x04, wasm.OpcodeDrop,
				wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(0), OpUseMemory, imported, u32(0), OpLoad32U, OpDrop,
				OpConst32, u32(0), OpLoad32UOffset, u32(4), OpDrop,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "call forgets the selected memory",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeI32Const, 0x00, wasm.OpcodeI32Load8S, 0x00, 0x00, wasm.OpcodeDrop,
				wasm.OpcodeCall, 0x01,
				wasm.OpcodeI32Const, 0x00, wasm.OpcodeI32Load8S, 0x00, 0x00, wasm.OpcodeDrop,
				wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(0), OpUseMemory, imported, u32(0), OpLoad8S32, OpDrop,
				OpCallLocal, u32(0),
				OpConst32, u32(0), OpUseMemory, imported, u32(0), OpLoad8S32, OpDrop,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "loop forgets the selected memory",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeI32Const, 0x00, wasm.OpcodeI64Load, 0x03, 0x00, wasm.OpcodeDrop,
				wasm.OpcodeLoop, 0x40,
				wasm.OpcodeI32Const, 0x00, wasm.OpcodeI64Load, 0x03, 0x00, wasm.OpcodeDrop,
				wasm.OpcodeEnd,
				wasm.OpcodeI32Const, 0x00, wasm.OpcodeI64Load, 0x03, 0x00, wasm.OpcodeDrop,
				wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(0), OpUseMemory, imported, u32(0), OpLoad64, OpDrop,
				OpConst32, u32(0), OpUseMemory, imported, u32(0), OpLoad64, OpDrop,
				OpConst32, u32(0), OpLoad64, OpDrop,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "memory.grow forgets the selected memory",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeI32Const, 0x01, wasm.OpcodeMemoryGrow, 0x00, wasm.OpcodeDrop,
				wasm.OpcodeMemorySize, 0x00, wasm.OpcodeDrop,
				wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(1), OpUseMemory, imported, u32(0), OpMemoryGrow, OpDrop,
				OpUseMemory, imported, u32(0), OpMemorySize, OpDrop,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "stores",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeI32Const, 0x00, wasm.OpcodeI64Const, 0x01, wasm.OpcodeI64Store32, 0x02, 0x08,
				wasm.OpcodeI32Const, 0x00, wasm.OpcodeI32Const, 0x01, wasm.OpcodeI32Store16, 0x01, 0x00,
				wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(0), OpConst64, u32(1), u32(0), OpUseMemory, imported, u32(0),
				OpStore32Offset, u32(8),
				OpConst32, u32(0), OpConst32, u32(1), OpStore16,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "memory.fill",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeI32Const, 0x00, wasm.OpcodeI32Const, 0x00, wasm.OpcodeI32Const, 0x00,
				wasm.OpcodeMiscPrefix, wasm.OpcodeMiscMemoryFill, 0x00,
				wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(0), OpConst32, u32(0), OpConst32, u32(0),
				OpUseMemory, imported, u32(0), OpMemoryFill,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "memory.copy",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeI32Const, 0x00, wasm.OpcodeI32Const, 0x00, wasm.OpcodeI32Const, 0x00,
				wasm.OpcodeMiscPrefix, wasm.OpcodeMiscMemoryCopy, 0x00, 0x00,
				wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(0), OpConst32, u32(0), OpConst32, u32(0),
				OpUseMemory, imported, u32(0), OpMemoryCopy,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "saturating truncation",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeF64Const, 0, 0, 0, 0, 0, 0, 0xf0, 0x3f,
				wasm.OpcodeMiscPrefix, wasm.OpcodeMiscI64TruncSatF64U, wasm.OpcodeDrop,
				wasm.OpcodeEnd,
			},
			expected: code(OpConst64, []byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}, OpI64TruncSatF64U, OpDrop,
				OpReturn, u32(0), u32(0)),
		},
		{
			name: "block type index",
			typ:  v_i32,
			body: []byte{
				wasm.OpcodeI32Const, 0x01, wasm.OpcodeBlock, 0x01, wasm.OpcodeEnd, wasm.OpcodeEnd,
			},
			expected: code(OpConst32, u32(1),
				OpReturn, u32(1), u32(0)),
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			f := &wasm.Function{Index: 1, Type: tc.typ, LocalTypes: tc.localTypes, Body: tc.body}
			err := Transpile(f, testIndex(t))
			require.NoError(t, err)
			require.True(t, f.Transpiled())
			require.Equal(t, tc.expected, f.Body, Format(f.Body))

			_, err = Disassemble(f.Body)
			require.NoError(t, err)
		})
	}
}

func TestTranspile_Errors(t *testing.T) {
	tests := []struct {
		name           string
		typ            *wasm.FunctionType
		body           []byte
		expectedErr    error
		expectedOffset uint64
	}{
		{
			name:        "stack underflow",
			typ:         v_v,
			body:        []byte{wasm.OpcodeI32Add, wasm.OpcodeEnd},
			expectedErr: ErrStackUnderflow,
		},
		{
			name:           "type mismatch",
			typ:            v_v,
			body:           []byte{wasm.OpcodeI32Const, 0x01, wasm.OpcodeI64Const, 0x01, wasm.OpcodeI32Add, wasm.OpcodeEnd},
			expectedErr:    ErrTypeMismatch,
			expectedOffset: 4,
		},
		{
			name:           "result left on the stack",
			typ:            v_v,
			body:           []byte{wasm.OpcodeI32Const, 0x01, wasm.OpcodeEnd},
			expectedErr:    ErrStackMismatch,
			expectedOffset: 2,
		},
		{
			name:           "missing result",
			typ:            v_i32,
			body:           []byte{wasm.OpcodeEnd},
			expectedErr:    ErrStackUnderflow,
			expectedOffset: 0,
		},
		{
			name:           "frames left open",
			typ:            v_v,
			body:           []byte{wasm.OpcodeBlock, 0x40, wasm.OpcodeEnd},
			expectedErr:    ErrMalformedControl,
			expectedOffset: 3,
		},
		{
			name:           "bytes after the end",
			typ:            v_v,
			body:           []byte{wasm.OpcodeEnd, wasm.OpcodeNop},
			expectedErr:    ErrMalformedControl,
			expectedOffset: 1,
		},
		{
			name:        "else without if",
			typ:         v_v,
			body:        []byte{wasm.OpcodeElse, wasm.OpcodeEnd},
			expectedErr: ErrMalformedControl,
		},
		{
			name:           "if without else has a result",
			typ:            v_i32,
			body:           []byte{wasm.OpcodeI32Const, 0x01, wasm.OpcodeIf, i32, wasm.OpcodeI32Const, 0x01, wasm.OpcodeEnd, wasm.OpcodeEnd},
			expectedErr:    ErrTypeMismatch,
			expectedOffset: 6,
		},
		{
			name:        "branch depth",
			typ:         v_v,
			body:        []byte{wasm.OpcodeBr, 0x01, wasm.OpcodeEnd},
			expectedErr: ErrBranchDepth,
		},
		{
			name: "br_table arity",
			typ:  v_v,
			body: []byte{
				wasm.OpcodeBlock, i32, wasm.OpcodeI32Const, 0x00, wasm.OpcodeI32Const, 0x00,
				wasm.OpcodeBrTable, 0x01, 0x00, 0x01, wasm.OpcodeEnd, wasm.OpcodeDrop, wasm.OpcodeEnd,
			},
			expectedErr:    ErrTypeMismatch,
			expectedOffset: 6,
		},
		{
			name:           "br_table length exceeds the body",
			typ:            v_v,
			body:           []byte{wasm.OpcodeI32Const, 0x00, wasm.OpcodeBrTable, 0xff, 0xff, 0x03, wasm.OpcodeEnd},
			expectedErr:    ErrMalformedImmediate,
			expectedOffset: 2,
		},
		{
			name:        "unknown function",
			typ:         v_v,
			body:        []byte{wasm.OpcodeCall, 0x09, wasm.OpcodeEnd},
			expectedErr: ErrInvalidCall,
		},
		{
			name:           "unknown type for call_indirect",
			typ:            v_v,
			body:           []byte{wasm.OpcodeI32Const, 0x00, wasm.OpcodeCallIndirect, 0x09, 0x00, wasm.OpcodeEnd},
			expectedErr:    ErrInvalidCall,
			expectedOffset: 2,
		},
		{
			name:           "unknown table for call_indirect",
			typ:            v_v,
			body:           []byte{wasm.OpcodeI32Const, 0x00, wasm.OpcodeCallIndirect, 0x00, 0x01, wasm.OpcodeEnd},
			expectedErr:    ErrInvalidCall,
			expectedOffset: 2,
		},
		{
			name:        "unknown local",
			typ:         i32_v,
			body:        []byte{wasm.OpcodeLocalGet, 0x01, wasm.OpcodeDrop, wasm.OpcodeEnd},
			expectedErr: ErrInvalidIndex,
		},
		{
			name:        "unknown global",
			typ:         v_v,
			body:        []byte{wasm.OpcodeGlobalGet, 0x03, wasm.OpcodeDrop, wasm.OpcodeEnd},
			expectedErr: ErrInvalidIndex,
		},
		{
			name:           "global.set on an immutable global",
			typ:            v_v,
			body:           []byte{wasm.OpcodeI32Const, 0x00, wasm.OpcodeGlobalSet, 0x00, wasm.OpcodeEnd},
			expectedErr:    ErrInvalidIndex,
			expectedOffset: 2,
		},
		{
			name:           "unknown memory",
			typ:            v_v,
			body:           []byte{wasm.OpcodeMemorySize, 0x01, wasm.OpcodeDrop, wasm.OpcodeEnd},
			expectedErr:    ErrInvalidIndex,
			expectedOffset: 0,
		},
		{
			name:           "alignment larger than natural",
			typ:            v_v,
			body:           []byte{wasm.OpcodeI32Const, 0x00, wasm.OpcodeI32Load, 0x03, 0x00, wasm.OpcodeDrop, wasm.OpcodeEnd},
			expectedErr:    ErrMalformedImmediate,
			expectedOffset: 2,
		},
		{
			name:        "truncated immediate",
			typ:         v_v,
			body:        []byte{wasm.OpcodeI32Const, 0x80},
			expectedErr: ErrMalformedImmediate,
		},
		{
			name:        "truncated f64.const",
			typ:         v_v,
			body:        []byte{wasm.OpcodeF64Const, 0x00, 0x00},
			expectedErr: ErrMalformedImmediate,
		},
		{
			name:        "negative block type",
			typ:         v_v,
			body:        []byte{wasm.OpcodeBlock, 0x50, wasm.OpcodeEnd, wasm.OpcodeEnd},
			expectedErr: ErrMalformedImmediate,
		},
		{
			name:        "unknown block type",
			typ:         v_v,
			body:        []byte{wasm.OpcodeBlock, 0x09, wasm.OpcodeEnd, wasm.OpcodeEnd},
			expectedErr: ErrInvalidIndex,
		},
		{
			name:        "typed select with two types",
			typ:         v_v,
			body:        []byte{wasm.OpcodeTypedSelect, 0x02, i32, i32, wasm.OpcodeEnd},
			expectedErr: ErrMalformedImmediate,
		},
		{
			name:        "ref.null",
			typ:         v_v,
			body:        []byte{0xd0, 0x70, wasm.OpcodeDrop, wasm.OpcodeEnd},
			expectedErr: ErrUnsupportedOpcode,
		},
		{
			name:        "table.init",
			typ:         v_v,
			body:        []byte{wasm.OpcodeMiscPrefix, 0x0c, 0x00, 0x00, wasm.OpcodeEnd},
			expectedErr: ErrUnsupportedOpcode,
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			body := append([]byte(nil), tc.body...)
			f := &wasm.Function{Index: 3, Type: tc.typ, Body: body}
			err := Transpile(f, testIndex(t))
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.expectedErr), err.Error())

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, wasm.Index(3), verr.FunctionIndex)
			require.Equal(t, tc.expectedOffset, verr.Offset)

			// Nothing was replaced.
			require.False(t, f.Transpiled())
			require.Equal(t, tc.body, f.Body)
		})
	}
}

func TestTranspile_ErrorMessage(t *testing.T) {
	f := &wasm.Function{Index: 2, Type: v_v, Body: []byte{
		wasm.OpcodeI32Const, 0x01, wasm.OpcodeI64Const, 0x01, wasm.OpcodeI32Add, wasm.OpcodeEnd,
	}}
	err := Transpile(f, testIndex(t))
	require.EqualError(t, err, "invalid function[2]: i32.add at offset 0x4: type mismatch: expected i32, but was i64")
}

func TestTranspile_AlreadyTranspiled(t *testing.T) {
	f := &wasm.Function{Type: v_v, Body: []byte{wasm.OpcodeEnd}}
	require.NoError(t, Transpile(f, testIndex(t)))
	require.Equal(t, wasm.ErrAlreadyTranspiled, Transpile(f, testIndex(t)))
}
