package loadwasm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/loadwasm/loadwasm/api"
	"github.com/loadwasm/loadwasm/internal/leb128"
	"github.com/loadwasm/loadwasm/internal/transpiler"
	"github.com/loadwasm/loadwasm/internal/wasm"
	"github.com/loadwasm/loadwasm/internal/wasm/binary"
)

// testCtx is an arbitrary, non-default context. Non-nil also prevents linter errors.
var testCtx = context.WithValue(context.Background(), struct{}{}, "arbitrary")

var (
	i32, i64 = wasm.ValueTypeI32, wasm.ValueTypeI64
	i32_i32  = &wasm.FunctionType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}
	v_v      = &wasm.FunctionType{}
)

type hostFunc struct {
	params, results []api.ValueType
}

func (h *hostFunc) ParamTypes() []api.ValueType  { return h.params }
func (h *hostFunc) ResultTypes() []api.ValueType { return h.results }
func (h *hostFunc) Call(context.Context, []uint64) error {
	return nil
}

func i32Const(v int32) *wasm.ConstantExpression {
	return &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128.EncodeInt32(v)}
}

func globalGet(i byte) *wasm.ConstantExpression {
	return &wasm.ConstantExpression{Opcode: wasm.OpcodeGlobalGet, Data: []byte{i}}
}

func newObservedLoader(config *LoaderConfig) (*Loader, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewLoaderWithConfig(config.WithLogger(zap.New(core))), logs
}

// callImportModule has one imported function and a local function which calls it with its parameter.
func callImportModule() *wasm.Module {
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{i32_i32},
		ImportSection:   []*wasm.Import{{Module: "env", Name: "f", Type: wasm.ExternTypeFunc, DescFunc: 0}},
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{
			{Body: []byte{wasm.OpcodeLocalGet, 0, wasm.OpcodeCall, 0, wasm.OpcodeEnd}},
		},
		ExportSection: []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "run", Index: 1}},
	}
}

func TestLoader_Compile(t *testing.T) {
	l, logs := newObservedLoader(NewLoaderConfig())
	m := callImportModule()

	compiled, err := l.Compile(testCtx, m)
	require.NoError(t, err)
	require.Equal(t, 1, compiled.FunctionCount())

	f, ok := compiled.Function(0)
	require.True(t, ok)
	require.True(t, f.Transpiled())
	require.Equal(t, wasm.Index(1), f.Index)

	ins, err := transpiler.Disassemble(f.Body)
	require.NoError(t, err)
	var ops []transpiler.Opcode
	for _, in := range ins {
		ops = append(ops, in.Op)
	}
	require.Equal(t, []transpiler.Opcode{transpiler.OpLocalGet, transpiler.OpCallImport, transpiler.OpReturn}, ops)

	// The module itself keeps its raw bodies.
	require.Equal(t, []byte{wasm.OpcodeLocalGet, 0, wasm.OpcodeCall, 0, wasm.OpcodeEnd}, m.CodeSection[0].Body)

	_, ok = compiled.Function(1)
	require.False(t, ok)

	entries := logs.FilterMessage("transpiled function").All()
	require.Len(t, entries, 1)
	require.Equal(t, uint32(1), entries[0].ContextMap()["index"])
}

func TestLoader_Compile_ValidationError(t *testing.T) {
	l, logs := newObservedLoader(NewLoaderConfig())
	m := callImportModule()
	m.FunctionSection = append(m.FunctionSection, 0)
	m.CodeSection = append(m.CodeSection, &wasm.Code{
		Body: []byte{wasm.OpcodeI64Const, 1, wasm.OpcodeEnd}, // returns i64, not i32
	})

	_, err := l.Compile(testCtx, m)
	require.ErrorIs(t, err, ErrTypeMismatch)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, wasm.Index(2), verr.FunctionIndex)
	require.Equal(t, 1, logs.FilterMessage("transpiled function").Len())
}

func TestLoader_Compile_Errors(t *testing.T) {
	two := uint32(2)
	tests := []struct {
		name        string
		config      *LoaderConfig
		module      *wasm.Module
		expectedErr string
	}{
		{
			name:        "memory above the limit",
			config:      NewLoaderConfig().WithMemoryLimitPages(1),
			module:      &wasm.Module{MemorySection: []*wasm.Memory{{Min: 0, Max: &two}}},
			expectedErr: "memory[0]: memory max 2 exceeds the limit 1",
		},
		{
			name:   "function without code",
			config: NewLoaderConfig(),
			module: &wasm.Module{
				TypeSection:     []*wasm.FunctionType{v_v},
				FunctionSection: []wasm.Index{0},
			},
			expectedErr: "function and code section have inconsistent lengths: 1 != 0",
		},
		{
			name:   "imported global of invalid type",
			config: NewLoaderConfig(),
			module: &wasm.Module{
				TypeSection: []*wasm.FunctionType{v_v},
				ImportSection: []*wasm.Import{
					{Type: wasm.ExternTypeGlobal, Module: "m", Name: "g", DescGlobal: &wasm.GlobalType{ValType: 0x6f}},
				},
				FunctionSection: []wasm.Index{0},
				CodeSection: []*wasm.Code{{Body: []byte{
					wasm.OpcodeGlobalGet, 0, wasm.OpcodeDrop, wasm.OpcodeEnd,
				}}},
			},
			expectedErr: "import[0] m.g: invalid value type 0x6f",
		},
		{
			name:   "export of a missing function",
			config: NewLoaderConfig(),
			module: &wasm.Module{
				ExportSection: []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "run", Index: 0}},
			},
			expectedErr: `export "run": index out of range: function[0]`,
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				_, err = NewLoaderWithConfig(tc.config).Compile(testCtx, tc.module)
			})
			require.EqualError(t, err, tc.expectedErr)
		})
	}
}

func TestLoader_Compile_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(testCtx)
	cancel()

	_, err := NewLoader().Compile(ctx, callImportModule())
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoader_CompileModule(t *testing.T) {
	l := NewLoader()

	_, err := l.CompileModule(testCtx, nil)
	require.EqualError(t, err, "source == nil")

	_, err = l.CompileModule(testCtx, []byte("wasm\x01\x00\x00\x00"))
	require.ErrorIs(t, err, binary.ErrInvalidMagicNumber)

	compiled, err := l.CompileModule(testCtx, binary.EncodeModule(callImportModule()))
	require.NoError(t, err)
	require.Equal(t, 1, compiled.FunctionCount())
}

// instantiateModule imports a function, memory and global, and initializes its own table, memory and global.
func instantiateModule() *wasm.Module {
	return &wasm.Module{
		TypeSection: []*wasm.FunctionType{i32_i32, v_v},
		ImportSection: []*wasm.Import{
			{Module: "env", Name: "f", Type: wasm.ExternTypeFunc, DescFunc: 0},
			{Module: "env", Name: "mem", Type: wasm.ExternTypeMemory, DescMem: &wasm.Memory{Min: 1}},
			{Module: "env", Name: "base", Type: wasm.ExternTypeGlobal, DescGlobal: &wasm.GlobalType{ValType: i32}},
		},
		FunctionSection: []wasm.Index{1},
		CodeSection:     []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}},
		TableSection:    []*wasm.Table{{Min: 1}},
		MemorySection:   []*wasm.Memory{{Min: 1}},
		GlobalSection: []*wasm.Global{
			{Type: &wasm.GlobalType{ValType: i32, Mutable: true}, Init: globalGet(0)},
			{Type: &wasm.GlobalType{ValType: i64}, Init: &wasm.ConstantExpression{Opcode: wasm.OpcodeI64Const, Data: []byte{0x7f}}},
		},
		ExportSection: []*wasm.Export{
			{Type: wasm.ExternTypeFunc, Name: "run", Index: 1},
			{Type: wasm.ExternTypeFunc, Name: "f", Index: 0},
			{Type: wasm.ExternTypeMemory, Name: "memory", Index: 1},
			{Type: wasm.ExternTypeTable, Name: "table", Index: 0},
			{Type: wasm.ExternTypeGlobal, Name: "counter", Index: 1},
		},
		ElementSection: []*wasm.ElementSegment{
			{OffsetExpr: i32Const(0), Init: []wasm.Index{1}},
		},
		DataSection: []*wasm.DataSegment{
			{MemoryIndex: 1, OffsetExpression: globalGet(0), Init: []byte("hi")},
		},
	}
}

func instantiateImports(t *testing.T) *Imports {
	mem, err := NewMemory(1, nil)
	require.NoError(t, err)
	base, err := NewGlobal(i32, false, 8)
	require.NoError(t, err)
	return NewImports().
		WithFunction("env", "f", &hostFunc{params: []api.ValueType{i32}, results: []api.ValueType{i32}}).
		WithMemory("env", "mem", mem).
		WithGlobal("env", "base", base)
}

func TestLoader_Instantiate(t *testing.T) {
	l, logs := newObservedLoader(NewLoaderConfig())
	compiled, err := l.Compile(testCtx, instantiateModule())
	require.NoError(t, err)

	imports := instantiateImports(t)
	inst, err := l.Instantiate(testCtx, compiled, imports)
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("instantiated module").Len())
	require.Zero(t, logs.FilterMessage("grew store for segments").Len())

	t.Run("functions", func(t *testing.T) {
		f, ok := inst.Function(0)
		require.True(t, ok)
		require.True(t, f.Transpiled())

		host, ok := inst.HostFunction(0)
		require.True(t, ok)
		require.Equal(t, imports.functions[importKey{"env", "f"}], host)
		_, ok = inst.HostFunction(1)
		require.False(t, ok)

		loc, ok := inst.ExportedFunction("run")
		require.True(t, ok)
		require.Equal(t, Location{Kind: wasm.LocationKindLocal, Position: 0}, loc)
		loc, ok = inst.ExportedFunction("f")
		require.True(t, ok)
		require.Equal(t, Location{Kind: wasm.LocationKindImported, Position: 0}, loc)
		_, ok = inst.ExportedFunction("memory")
		require.False(t, ok)

		_, ok = inst.StartFunction()
		require.False(t, ok)
	})

	t.Run("memories", func(t *testing.T) {
		imported, ok := inst.Memory(Location{Kind: wasm.LocationKindImported, Position: 0})
		require.True(t, ok)
		require.Equal(t, imports.memories[importKey{"env", "mem"}], imported)
		require.Equal(t, make([]byte, wasm.MemoryPageSize), imported.Buffer)

		local, ok := inst.ExportedMemory("memory")
		require.True(t, ok)
		require.Equal(t, uint32(1), local.Pages())
		data, ok := local.Read(8, 2)
		require.True(t, ok)
		require.Equal(t, []byte("hi"), data)

		_, ok = inst.Memory(Location{Kind: wasm.LocationKindLocal, Position: 1})
		require.False(t, ok)
		_, ok = inst.Memory(Location{})
		require.False(t, ok)
	})

	t.Run("tables", func(t *testing.T) {
		table, ok := inst.ExportedTable("table")
		require.True(t, ok)
		require.Equal(t, uint32(1), table.Len())
		fn, ok := table.Get(0)
		require.True(t, ok)
		require.Equal(t, wasm.Index(1), fn)
	})

	t.Run("globals", func(t *testing.T) {
		counter, ok := inst.ExportedGlobal("counter")
		require.True(t, ok)
		require.Equal(t, uint64(8), counter.Get())
		require.True(t, counter.Type.Mutable)

		g, ok := inst.Global(Location{Kind: wasm.LocationKindLocal, Position: 1})
		require.True(t, ok)
		require.Equal(t, api.EncodeI64(-1), g.Get())
	})

	t.Run("instances don't share stores", func(t *testing.T) {
		other, err := l.Instantiate(testCtx, compiled, instantiateImports(t))
		require.NoError(t, err)

		counter, _ := inst.ExportedGlobal("counter")
		counter.Set(42)
		otherCounter, _ := other.ExportedGlobal("counter")
		require.Equal(t, uint64(8), otherCounter.Get())
	})
}

func TestLoader_Instantiate_Start(t *testing.T) {
	zero := wasm.Index(0)
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{v_v},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}},
		StartSection:    &zero,
	}
	l := NewLoader()
	compiled, err := l.Compile(testCtx, m)
	require.NoError(t, err)
	inst, err := l.Instantiate(testCtx, compiled, nil)
	require.NoError(t, err)

	loc, ok := inst.StartFunction()
	require.True(t, ok)
	require.Equal(t, Location{Kind: wasm.LocationKindLocal, Position: 0}, loc)
}

func TestLoader_Instantiate_ImportErrors(t *testing.T) {
	one := uint32(1)
	l := NewLoader()
	compiled, err := l.Compile(testCtx, instantiateModule())
	require.NoError(t, err)

	tests := []struct {
		name        string
		imports     func(*Imports)
		expected    error
		expectedErr string
	}{
		{
			name: "missing function",
			imports: func(i *Imports) {
				delete(i.functions, importKey{"env", "f"})
			},
			expected:    ErrImportMissing,
			expectedErr: "import func[env.f]: import not found",
		},
		{
			name: "function signature",
			imports: func(i *Imports) {
				i.WithFunction("env", "f", &hostFunc{params: []api.ValueType{i64}, results: []api.ValueType{i32}})
			},
			expected:    ErrImportMismatch,
			expectedErr: "import func[env.f]: import type mismatch: signature i64_i32 != i32_i32",
		},
		{
			name: "memory too small",
			imports: func(i *Imports) {
				mem, err := NewMemory(0, &one)
				require.NoError(t, err)
				i.WithMemory("env", "mem", mem)
			},
			expected:    ErrImportMismatch,
			expectedErr: "import memory[env.mem]: import type mismatch: size 0 < min 1",
		},
		{
			name: "global mutability",
			imports: func(i *Imports) {
				g, err := NewGlobal(i32, true, 8)
				require.NoError(t, err)
				i.WithGlobal("env", "base", g)
			},
			expected:    ErrImportMismatch,
			expectedErr: "import global[env.base]: import type mismatch: global mut i32 != i32",
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			imports := instantiateImports(t)
			tc.imports(imports)
			_, err := l.Instantiate(testCtx, compiled, imports)
			require.ErrorIs(t, err, tc.expected)
			require.EqualError(t, err, tc.expectedErr)
		})
	}
}

func TestLoader_Instantiate_MemoryMaxImport(t *testing.T) {
	one := uint32(1)
	m := &wasm.Module{
		ImportSection: []*wasm.Import{
			{Module: "env", Name: "mem", Type: wasm.ExternTypeMemory, DescMem: &wasm.Memory{Min: 1, Max: &one}},
		},
	}
	l := NewLoader()
	compiled, err := l.Compile(testCtx, m)
	require.NoError(t, err)

	unbounded, err := NewMemory(1, nil)
	require.NoError(t, err)
	_, err = l.Instantiate(testCtx, compiled, NewImports().WithMemory("env", "mem", unbounded))
	require.EqualError(t, err, "import memory[env.mem]: import type mismatch: max 65536 > max 1")

	bounded, err := NewMemory(1, &one)
	require.NoError(t, err)
	_, err = l.Instantiate(testCtx, compiled, NewImports().WithMemory("env", "mem", bounded))
	require.NoError(t, err)
}

func TestLoader_Instantiate_SegmentGrowth(t *testing.T) {
	two := uint32(2)
	// A data segment ending one byte into the second page of a memory which starts empty.
	m := &wasm.Module{
		MemorySection: []*wasm.Memory{{Min: 0, Max: &two}},
		DataSection: []*wasm.DataSegment{
			{OffsetExpression: i32Const(int32(wasm.MemoryPageSize) - 1), Init: []byte{1, 2}},
		},
		ExportSection: []*wasm.Export{{Type: wasm.ExternTypeMemory, Name: "memory", Index: 0}},
	}

	t.Run("grows", func(t *testing.T) {
		l, logs := newObservedLoader(NewLoaderConfig())
		compiled, err := l.Compile(testCtx, m)
		require.NoError(t, err)

		inst, err := l.Instantiate(testCtx, compiled, nil)
		require.NoError(t, err)
		mem, ok := inst.ExportedMemory("memory")
		require.True(t, ok)
		require.Equal(t, uint32(2), mem.Pages())
		data, ok := mem.Read(uint64(wasm.MemoryPageSize)-1, 2)
		require.True(t, ok)
		require.Equal(t, []byte{1, 2}, data)

		entries := logs.FilterMessage("grew store for segments").All()
		require.Len(t, entries, 1)
		require.Equal(t, "memory", entries[0].ContextMap()["kind"])
	})

	t.Run("growth disabled", func(t *testing.T) {
		l := NewLoaderWithConfig(NewLoaderConfig().WithSegmentGrowth(false))
		compiled, err := l.Compile(testCtx, m)
		require.NoError(t, err)

		_, err = l.Instantiate(testCtx, compiled, nil)
		require.ErrorIs(t, err, ErrSegmentOutOfBounds)
		require.EqualError(t, err, "segment out of bounds: memory[0] needs 65537 bytes, but has 0")
	})

	t.Run("past max", func(t *testing.T) {
		tableModule := &wasm.Module{
			TypeSection:     []*wasm.FunctionType{v_v},
			FunctionSection: []wasm.Index{0},
			CodeSection:     []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}},
			TableSection:    []*wasm.Table{{Min: 1, Max: &two}},
			ElementSection: []*wasm.ElementSegment{
				{OffsetExpr: i32Const(2), Init: []wasm.Index{0}},
			},
		}
		l := NewLoader()
		compiled, err := l.Compile(testCtx, tableModule)
		require.NoError(t, err)

		_, err = l.Instantiate(testCtx, compiled, nil)
		require.ErrorIs(t, err, ErrSegmentOutOfBounds)
		require.EqualError(t, err, "segment out of bounds: table[0] can't grow from 1 to 3: too large")
	})
}
