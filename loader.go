// Package loadwasm loads WebAssembly modules for an interpreter: it validates and transpiles function bodies into a
// flat instruction stream, then instantiates the module's memories, tables and globals as linear stores.
//
// Ex.
//
//	l := loadwasm.NewLoader()
//	compiled, _ := l.CompileModule(ctx, source)
//	instance, _ := l.Instantiate(ctx, compiled, loadwasm.NewImports())
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/
package loadwasm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/loadwasm/loadwasm/internal/transpiler"
	"github.com/loadwasm/loadwasm/internal/wasm"
	"github.com/loadwasm/loadwasm/internal/wasm/binary"
)

// Module is a decoded module whose function bodies haven't been validated yet.
type Module = wasm.Module

// Function is a function defined by a module. Once compiled, Body holds the transpiled instruction stream.
type Function = wasm.Function

// Location resolves an index into the imported or locally defined entities of its kind. Transpiled calls and store
// markers carry the Kind and Position of a Location.
type Location = wasm.Location

const (
	// LocationKindImported is the Kind of a Location supplied by Imports.
	LocationKindImported = wasm.LocationKindImported
	// LocationKindLocal is the Kind of a Location the module defines itself.
	LocationKindLocal = wasm.LocationKindLocal
)

// Loader compiles and instantiates modules. It holds no state besides its configuration, so it is safe for concurrent
// use.
type Loader struct {
	config *LoaderConfig
	logger *zap.Logger
}

// NewLoader returns a loader with the default configuration.
func NewLoader() *Loader {
	return NewLoaderWithConfig(NewLoaderConfig())
}

// NewLoaderWithConfig returns a loader with the given configuration.
func NewLoaderWithConfig(config *LoaderConfig) *Loader {
	return &Loader{config: config.clone(), logger: config.getLogger()}
}

// CompiledModule is a module whose functions were all validated and transpiled. It can be instantiated any number of
// times: instances share its functions, which are never modified again.
type CompiledModule struct {
	module    *wasm.Module
	index     *wasm.IndexTable
	functions []*wasm.Function
}

// Function returns the function defined at the given position, which is its index minus the count of imported
// functions. This is the immediate of a local call.
func (c *CompiledModule) Function(position uint32) (*Function, bool) {
	if position >= uint32(len(c.functions)) {
		return nil, false
	}
	return c.functions[position], true
}

// FunctionCount is the count of functions defined by the module.
func (c *CompiledModule) FunctionCount() int {
	return len(c.functions)
}

// CompileModule decodes the binary source and compiles it.
func (l *Loader) CompileModule(ctx context.Context, source []byte) (*CompiledModule, error) {
	if source == nil {
		return nil, errors.New("source == nil")
	}
	m, err := binary.DecodeModule(source)
	if err != nil {
		return nil, err
	}
	return l.Compile(ctx, m)
}

// Compile validates the module and transpiles each of its functions, in order. The first function that doesn't
// validate stops compilation with a *ValidationError. m itself is never modified.
func (l *Loader) Compile(ctx context.Context, m *Module) (*CompiledModule, error) {
	if err := m.Validate(l.config.memoryLimitPages); err != nil {
		return nil, err
	}
	index, err := m.BuildIndexTable()
	if err != nil {
		return nil, err
	}
	if err = m.ValidateReferences(index); err != nil {
		return nil, err
	}
	functions, err := m.Functions(index)
	if err != nil {
		return nil, err
	}

	for _, f := range functions {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		size := len(f.Body)
		if err = transpiler.Transpile(f, index); err != nil {
			return nil, err
		}
		l.logger.Debug("transpiled function",
			zap.Uint32("index", f.Index), zap.Int("raw", size), zap.Int("transpiled", len(f.Body)))
	}
	return &CompiledModule{module: m, index: index, functions: functions}, nil
}
