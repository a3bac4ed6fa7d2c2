package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstructionName(t *testing.T) {
	tests := []struct {
		opcode   Opcode
		expected string
	}{
		{opcode: OpcodeUnreachable, expected: "unreachable"},
		{opcode: OpcodeBrTable, expected: "br_table"},
		{opcode: OpcodeTypedSelect, expected: "select"},
		{opcode: OpcodeI64Load32U, expected: "i64.load32_u"},
		{opcode: OpcodeF32ConvertI32S, expected: "f32.convert_i32_s"},
		{opcode: OpcodeI64Extend32S, expected: "i64.extend32_s"},
		{opcode: 0x06, expected: "0x6"},
		{opcode: 0xff, expected: "0xff"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.expected, func(t *testing.T) {
			require.Equal(t, tc.expected, InstructionName(tc.opcode))
		})
	}
}

func TestMiscInstructionName(t *testing.T) {
	require.Equal(t, "i32.trunc_sat_f32_s", MiscInstructionName(OpcodeMiscI32TruncSatF32S))
	require.Equal(t, "memory.fill", MiscInstructionName(OpcodeMiscMemoryFill))
	require.Equal(t, "misc 0x8", MiscInstructionName(0x08))
	require.Equal(t, "misc 0x20", MiscInstructionName(0x20))
}
