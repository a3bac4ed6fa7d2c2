package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFunction_Replace(t *testing.T) {
	f := &Function{Type: &FunctionType{}, Body: []byte{OpcodeEnd}}
	require.False(t, f.Transpiled())

	require.NoError(t, f.Replace([]byte{1, 2}))
	require.True(t, f.Transpiled())
	require.Equal(t, []byte{1, 2}, f.Body)

	require.ErrorIs(t, f.Replace([]byte{3}), ErrAlreadyTranspiled)
	require.Equal(t, []byte{1, 2}, f.Body)
}

func TestFunction_LocalType(t *testing.T) {
	f := &Function{
		Type:       &FunctionType{Params: []ValueType{ValueTypeI32, ValueTypeF32}},
		LocalTypes: []ValueType{ValueTypeI64},
	}
	require.Equal(t, 3, f.LocalCount())

	tests := []struct {
		index    Index
		expected ValueType
		ok       bool
	}{
		{index: 0, expected: ValueTypeI32, ok: true},
		{index: 1, expected: ValueTypeF32, ok: true},
		{index: 2, expected: ValueTypeI64, ok: true},
		{index: 3},
	}

	for _, tc := range tests {
		vt, ok := f.LocalType(tc.index)
		require.Equal(t, tc.ok, ok, tc.index)
		require.Equal(t, tc.expected, vt, tc.index)
	}
}
