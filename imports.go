package loadwasm

import (
	"fmt"

	"github.com/loadwasm/loadwasm/api"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

// MemoryInstance is a memory a module defines or imports.
type MemoryInstance = wasm.MemoryInstance

// TableInstance is a funcref table a module defines or imports.
type TableInstance = wasm.TableInstance

// GlobalInstance is a global a module defines or imports.
type GlobalInstance = wasm.GlobalInstance

// NewMemory returns a memory to import, allocated at min pages. A nil max means it may grow to 65536 pages.
func NewMemory(min uint32, max *uint32) (*MemoryInstance, error) {
	return wasm.NewMemoryInstance(&wasm.Memory{Min: min, Max: max}, wasm.MemoryLimitPages)
}

// NewTable returns a table to import, with min null entries.
func NewTable(min uint32, max *uint32) (*TableInstance, error) {
	return wasm.NewTableInstance(&wasm.Table{Min: min, Max: max})
}

// NewGlobal returns a global to import holding value, encoded as in api.ValueType.
func NewGlobal(valType api.ValueType, mutable bool, value uint64) (*GlobalInstance, error) {
	switch valType {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64:
	default:
		return nil, fmt.Errorf("invalid value type: %#x", valType)
	}
	gt := &wasm.GlobalType{ValType: valType, Mutable: mutable}
	g := wasm.NewGlobalInstance(gt)
	if err := wasm.AllocateGlobal(g, wasm.NewGlobalInitializer(gt, value), nil); err != nil {
		return nil, err
	}
	return g, nil
}

// importKey is the two-level name of an import.
type importKey struct {
	module, name string
}

// Imports binds the imports of a module by name. Each binding is checked against the declared import once, when the
// module is instantiated.
type Imports struct {
	functions map[importKey]api.HostFunction
	memories  map[importKey]*MemoryInstance
	tables    map[importKey]*TableInstance
	globals   map[importKey]*GlobalInstance
}

// NewImports returns an empty set of bindings.
func NewImports() *Imports {
	return &Imports{
		functions: map[importKey]api.HostFunction{},
		memories:  map[importKey]*MemoryInstance{},
		tables:    map[importKey]*TableInstance{},
		globals:   map[importKey]*GlobalInstance{},
	}
}

// WithFunction binds the function import module.name.
func (i *Imports) WithFunction(module, name string, fn api.HostFunction) *Imports {
	i.functions[importKey{module, name}] = fn
	return i
}

// WithMemory binds the memory import module.name. The memory is shared, not copied.
func (i *Imports) WithMemory(module, name string, mem *MemoryInstance) *Imports {
	i.memories[importKey{module, name}] = mem
	return i
}

// WithTable binds the table import module.name. The table is shared, not copied.
func (i *Imports) WithTable(module, name string, table *TableInstance) *Imports {
	i.tables[importKey{module, name}] = table
	return i
}

// WithGlobal binds the global import module.name. The global is shared, not copied.
func (i *Imports) WithGlobal(module, name string, g *GlobalInstance) *Imports {
	i.globals[importKey{module, name}] = g
	return i
}

// resolve binds every import of m into inst, in order.
func (i *Imports) resolve(m *wasm.Module, index *wasm.IndexTable, inst *ModuleInstance) error {
	for _, im := range m.ImportSection {
		key := importKey{im.Module, im.Name}
		if err := i.resolveImport(im, key, index, inst); err != nil {
			return fmt.Errorf("import %s[%s.%s]: %w", api.ExternTypeName(im.Type), im.Module, im.Name, err)
		}
	}
	return nil
}

func (i *Imports) resolveImport(im *wasm.Import, key importKey, index *wasm.IndexTable, inst *ModuleInstance) error {
	switch im.Type {
	case wasm.ExternTypeFunc:
		fn, ok := i.functions[key]
		if !ok || fn == nil {
			return ErrImportMissing
		}
		expected, err := index.Type(im.DescFunc)
		if err != nil {
			return err
		}
		if !expected.EqualsSignature(fn.ParamTypes(), fn.ResultTypes()) {
			actual := &wasm.FunctionType{Params: fn.ParamTypes(), Results: fn.ResultTypes()}
			return fmt.Errorf("%w: signature %s != %s", ErrImportMismatch, actual, expected)
		}
		inst.hostFunctions = append(inst.hostFunctions, fn)
	case wasm.ExternTypeMemory:
		mem, ok := i.memories[key]
		if !ok || mem == nil {
			return ErrImportMissing
		}
		if err := checkLimits(&mem.LinearStore, im.DescMem); err != nil {
			return err
		}
		inst.importedMemories = append(inst.importedMemories, mem)
	case wasm.ExternTypeTable:
		table, ok := i.tables[key]
		if !ok || table == nil {
			return ErrImportMissing
		}
		if err := checkLimits(&table.LinearStore, im.DescTable); err != nil {
			return err
		}
		inst.importedTables = append(inst.importedTables, table)
	case wasm.ExternTypeGlobal:
		g, ok := i.globals[key]
		if !ok || g == nil {
			return ErrImportMissing
		}
		if g.Type.ValType != im.DescGlobal.ValType || g.Type.Mutable != im.DescGlobal.Mutable {
			return fmt.Errorf("%w: global %s != %s", ErrImportMismatch, globalTypeString(g.Type), globalTypeString(im.DescGlobal))
		}
		if g.Len() == 0 {
			return fmt.Errorf("%w: global isn't allocated", ErrImportMismatch)
		}
		inst.importedGlobals = append(inst.importedGlobals, g)
	default:
		return fmt.Errorf("invalid type %#x", im.Type)
	}
	return nil
}

// checkLimits ensures an imported store satisfies the declared limits: it is at least as large as min, and can't
// grow past max.
func checkLimits(s *wasm.LinearStore, declared *wasm.Limits) error {
	if size := s.Size(); size < declared.Min {
		return fmt.Errorf("%w: size %d < min %d", ErrImportMismatch, size, declared.Min)
	}
	if declared.Max != nil && s.Max > *declared.Max {
		return fmt.Errorf("%w: max %d > max %d", ErrImportMismatch, s.Max, *declared.Max)
	}
	return nil
}

func globalTypeString(gt *wasm.GlobalType) string {
	if gt.Mutable {
		return "mut " + wasm.ValueTypeName(gt.ValType)
	}
	return wasm.ValueTypeName(gt.ValType)
}
