package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModule_BuildIndexTable(t *testing.T) {
	v_v := &FunctionType{}
	i32_i32 := &FunctionType{Params: []ValueType{ValueTypeI32}, Results: []ValueType{ValueTypeI32}}
	one := uint32(1)
	m := &Module{
		TypeSection: []*FunctionType{v_v, i32_i32},
		ImportSection: []*Import{
			{Type: ExternTypeFunc, Module: "env", Name: "f", DescFunc: 1},
			{Type: ExternTypeMemory, Module: "env", Name: "mem", DescMem: &Memory{Min: 1}},
			{Type: ExternTypeGlobal, Module: "env", Name: "g", DescGlobal: &GlobalType{ValType: ValueTypeI64}},
		},
		FunctionSection: []Index{0, 1},
		TableSection:    []*Table{{Min: 1, Max: &one}},
		MemorySection:   []*Memory{{Min: 2}},
		GlobalSection:   []*Global{{Type: &GlobalType{ValType: ValueTypeF32, Mutable: true}}},
	}

	index, err := m.BuildIndexTable()
	require.NoError(t, err)

	require.Equal(t, Index(1), index.ImportedFunctionCount())
	require.Equal(t, 3, index.FunctionCount())
	require.Equal(t, 2, index.GlobalCount())
	require.Equal(t, 2, index.MemoryCount())
	require.Equal(t, 1, index.TableCount())

	tests := []struct {
		name    string
		lookup  func() (Location, error)
		expLoc  Location
		expText string
	}{
		{
			name: "imported function",
			lookup: func() (Location, error) {
				loc, ft, err := index.Function(0)
				require.Equal(t, i32_i32, ft)
				return loc, err
			},
			expLoc:  Location{LocationKindImported, 0},
			expText: "imported[0]",
		},
		{
			name: "second local function",
			lookup: func() (Location, error) {
				loc, ft, err := index.Function(2)
				require.Equal(t, i32_i32, ft)
				return loc, err
			},
			expLoc:  Location{LocationKindLocal, 1},
			expText: "local[1]",
		},
		{
			name: "local memory",
			lookup: func() (Location, error) {
				loc, mem, err := index.Memory(1)
				require.Equal(t, uint32(2), mem.Min)
				return loc, err
			},
			expLoc:  Location{LocationKindLocal, 0},
			expText: "local[0]",
		},
		{
			name: "local global",
			lookup: func() (Location, error) {
				loc, gt, err := index.Global(1)
				require.True(t, gt.Mutable)
				return loc, err
			},
			expLoc:  Location{LocationKindLocal, 0},
			expText: "local[0]",
		},
		{
			name: "local table",
			lookup: func() (Location, error) {
				loc, table, err := index.Table(0)
				require.Equal(t, one, *table.Max)
				return loc, err
			},
			expLoc:  Location{LocationKindLocal, 0},
			expText: "local[0]",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			loc, err := tc.lookup()
			require.NoError(t, err)
			require.Equal(t, tc.expLoc, loc)
			require.Equal(t, tc.expText, loc.String())
		})
	}
}

func TestIndexTable_outOfRange(t *testing.T) {
	index, err := (&Module{}).BuildIndexTable()
	require.NoError(t, err)

	_, err = index.Type(0)
	require.EqualError(t, err, "index out of range: type[0]")
	_, _, err = index.Function(0)
	require.EqualError(t, err, "index out of range: function[0]")
	_, _, err = index.Global(0)
	require.EqualError(t, err, "index out of range: global[0]")
	_, _, err = index.Memory(0)
	require.EqualError(t, err, "index out of range: memory[0]")
	_, _, err = index.Table(0)
	require.EqualError(t, err, "index out of range: table[0]")
}

func TestIndexTableBuilder(t *testing.T) {
	t.Run("import after local", func(t *testing.T) {
		b := NewIndexTableBuilder([]*FunctionType{{}})
		require.NoError(t, b.AddGlobal(&GlobalType{ValType: ValueTypeI32}))
		err := b.AddImport(&Import{Type: ExternTypeGlobal, Module: "env", Name: "g", DescGlobal: &GlobalType{}})
		require.EqualError(t, err, "global import env.g after a defined global")
	})
	t.Run("unknown type", func(t *testing.T) {
		b := NewIndexTableBuilder(nil)
		require.EqualError(t, b.AddFunction(0), "index out of range: function[0] has type[0]")
		err := b.AddImport(&Import{Type: ExternTypeFunc, Module: "env", Name: "f", DescFunc: 3})
		require.EqualError(t, err, "index out of range: function import env.f has type[3]")
	})
	t.Run("sealed", func(t *testing.T) {
		b := NewIndexTableBuilder(nil)
		_, err := b.Build()
		require.NoError(t, err)

		require.ErrorIs(t, b.AddMemory(&Memory{}), ErrIndexTableBuilt)
		require.ErrorIs(t, b.AddTable(&Table{}), ErrIndexTableBuilt)
		require.ErrorIs(t, b.AddGlobal(&GlobalType{}), ErrIndexTableBuilt)
		require.ErrorIs(t, b.AddFunction(0), ErrIndexTableBuilt)
		require.ErrorIs(t, b.AddImport(&Import{}), ErrIndexTableBuilt)
		_, err = b.Build()
		require.ErrorIs(t, err, ErrIndexTableBuilt)
	})
	t.Run("invalid import type", func(t *testing.T) {
		b := NewIndexTableBuilder(nil)
		err := b.AddImport(&Import{Type: 9, Module: "env", Name: "x"})
		require.EqualError(t, err, "import env.x has invalid type 0x9")
	})
}
