package loadwasm

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/loadwasm/loadwasm/api"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

// ModuleInstance is an instantiated module: its functions plus the stores they access. Entities are addressed by
// Location, as in transpiled code.
type ModuleInstance struct {
	compiled *CompiledModule

	hostFunctions    []api.HostFunction
	importedMemories []*MemoryInstance
	memories         []*MemoryInstance
	importedTables   []*TableInstance
	tables           []*TableInstance
	importedGlobals  []*GlobalInstance
	globals          []*GlobalInstance
}

// Instantiate binds the imports of compiled, allocates its globals, tables and memories, and applies its element and
// data segments. A failure leaves no instance, though segments already applied to imported stores stay applied.
func (l *Loader) Instantiate(ctx context.Context, compiled *CompiledModule, imports *Imports) (*ModuleInstance, error) {
	if imports == nil {
		imports = NewImports()
	}
	m := compiled.module
	inst := &ModuleInstance{compiled: compiled}
	if err := imports.resolve(m, compiled.index, inst); err != nil {
		return nil, err
	}

	if err := inst.allocateGlobals(m); err != nil {
		return nil, err
	}
	for i, t := range m.TableSection {
		table, err := wasm.NewTableInstance(t)
		if err != nil {
			return nil, fmt.Errorf("table[%d]: %w", i, err)
		}
		inst.tables = append(inst.tables, table)
	}
	for i, mem := range m.MemorySection {
		memory, err := wasm.NewMemoryInstance(mem, l.config.memoryLimitPages)
		if err != nil {
			return nil, fmt.Errorf("memory[%d]: %w", i, err)
		}
		inst.memories = append(inst.memories, memory)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Elements are applied before data.
	tableSegments := make(map[wasm.Index][]*wasm.InitializerSegment, len(m.ElementSection))
	for i, e := range m.ElementSection {
		s, err := wasm.NewElementInitializer(e)
		if err != nil {
			return nil, fmt.Errorf("element[%d]: %w", i, err)
		}
		tableSegments[e.TableIndex] = append(tableSegments[e.TableIndex], s)
	}
	for i := 0; i < compiled.index.TableCount(); i++ {
		loc, _, _ := compiled.index.Table(wasm.Index(i))
		table, _ := inst.Table(loc)
		if err := l.applySegments("table", wasm.Index(i), &table.LinearStore, tableSegments[wasm.Index(i)], inst.readOffset); err != nil {
			return nil, err
		}
	}

	memorySegments := make(map[wasm.Index][]*wasm.InitializerSegment, len(m.DataSection))
	for i, d := range m.DataSection {
		s, err := wasm.NewDataInitializer(d)
		if err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
		memorySegments[d.MemoryIndex] = append(memorySegments[d.MemoryIndex], s)
	}
	for i := 0; i < compiled.index.MemoryCount(); i++ {
		loc, _, _ := compiled.index.Memory(wasm.Index(i))
		mem, _ := inst.Memory(loc)
		if err := l.applySegments("memory", wasm.Index(i), &mem.LinearStore, memorySegments[wasm.Index(i)], inst.readOffset); err != nil {
			return nil, err
		}
	}

	l.logger.Debug("instantiated module",
		zap.Int("functions", len(compiled.functions)), zap.Int("imports", len(m.ImportSection)),
		zap.Int("memories", len(inst.importedMemories)+len(inst.memories)),
		zap.Int("tables", len(inst.importedTables)+len(inst.tables)),
		zap.Int("globals", len(inst.importedGlobals)+len(inst.globals)))
	return inst, nil
}

// allocateGlobals evaluates each global's initializer and writes it as the global's default-value segment.
func (inst *ModuleInstance) allocateGlobals(m *wasm.Module) error {
	for i, g := range m.GlobalSection {
		v, err := wasm.EvaluateConstantExpression(g.Init, inst.readGlobal)
		if err != nil {
			return fmt.Errorf("global[%d]: %w", i, err)
		}
		global := wasm.NewGlobalInstance(g.Type)
		if err = wasm.AllocateGlobal(global, wasm.NewGlobalInitializer(g.Type, v), inst.readOffset); err != nil {
			return fmt.Errorf("global[%d]: %w", i, err)
		}
		inst.globals = append(inst.globals, global)
	}
	return nil
}

// applySegments writes segments into store. When they don't fit, the store is grown and they're applied again, unless
// segment growth is disabled.
func (l *Loader) applySegments(kind string, index wasm.Index, store *wasm.LinearStore, segments []*wasm.InitializerSegment, reader wasm.GlobalReader) error {
	if len(segments) == 0 {
		return nil
	}
	res, err := wasm.ApplySegments(store, segments, reader)
	if err != nil {
		return fmt.Errorf("%s[%d]: %w", kind, index, err)
	}
	if res.MinimumSizeNeeded == 0 {
		return nil
	}
	if !l.config.segmentGrowth {
		return fmt.Errorf("%w: %s[%d] needs %d bytes, but has %d",
			ErrSegmentOutOfBounds, kind, index, res.MinimumSizeNeeded, store.Len())
	}

	units := (res.MinimumSizeNeeded + uint64(store.Align) - 1) / uint64(store.Align)
	if units > math.MaxUint32 {
		return fmt.Errorf("%w: %s[%d] needs %d bytes", ErrSegmentOutOfBounds, kind, index, res.MinimumSizeNeeded)
	}
	previous := store.Size()
	if r := store.Grow(uint32(units)); r != wasm.GrowGrown {
		return fmt.Errorf("%w: %s[%d] can't grow from %d to %d: %s",
			ErrSegmentOutOfBounds, kind, index, previous, units, r)
	}
	l.logger.Debug("grew store for segments",
		zap.String("kind", kind), zap.Uint32("index", index),
		zap.Uint32("from", previous), zap.Uint64("to", units))

	if res, err = wasm.ApplySegments(store, segments, reader); err != nil {
		return fmt.Errorf("%s[%d]: %w", kind, index, err)
	} else if res.MinimumSizeNeeded != 0 {
		return fmt.Errorf("%w: %s[%d] needs %d bytes after growing", ErrSegmentOutOfBounds, kind, index, res.MinimumSizeNeeded)
	}
	return nil
}

// readGlobal is a wasm.GlobalValueReader over the globals allocated so far.
func (inst *ModuleInstance) readGlobal(index wasm.Index) (uint64, error) {
	loc, _, err := inst.compiled.index.Global(index)
	if err != nil {
		return 0, err
	}
	g, ok := inst.Global(loc)
	if !ok {
		return 0, fmt.Errorf("global[%d] isn't initialized yet", index)
	}
	return g.Get(), nil
}

// readOffset is a wasm.GlobalReader for segment offsets, which must be i32.
func (inst *ModuleInstance) readOffset(index wasm.Index) (uint32, error) {
	loc, gt, err := inst.compiled.index.Global(index)
	if err != nil {
		return 0, err
	}
	if gt.ValType != wasm.ValueTypeI32 {
		return 0, fmt.Errorf("offset must be i32, but was %s", wasm.ValueTypeName(gt.ValType))
	}
	g, ok := inst.Global(loc)
	if !ok {
		return 0, fmt.Errorf("global[%d] isn't initialized yet", index)
	}
	return uint32(g.Get()), nil
}

func locate[T any](loc Location, imported, local []T) (ret T, ok bool) {
	var list []T
	switch loc.Kind {
	case wasm.LocationKindImported:
		list = imported
	case wasm.LocationKindLocal:
		list = local
	default:
		return
	}
	if loc.Position >= uint32(len(list)) {
		return
	}
	return list[loc.Position], true
}

// Function returns the function defined at the given position. This is the immediate of a local call.
func (inst *ModuleInstance) Function(position uint32) (*Function, bool) {
	return inst.compiled.Function(position)
}

// HostFunction returns the function bound to the import at the given position. This is the immediate of an imported
// call.
func (inst *ModuleInstance) HostFunction(position uint32) (api.HostFunction, bool) {
	return locate(Location{Kind: wasm.LocationKindImported, Position: position}, inst.hostFunctions, nil)
}

// Memory returns the memory at loc, as in a memory use marker.
func (inst *ModuleInstance) Memory(loc Location) (*MemoryInstance, bool) {
	return locate(loc, inst.importedMemories, inst.memories)
}

// Table returns the table at loc, as in a table use marker.
func (inst *ModuleInstance) Table(loc Location) (*TableInstance, bool) {
	return locate(loc, inst.importedTables, inst.tables)
}

// Global returns the global at loc, as in a global use marker.
func (inst *ModuleInstance) Global(loc Location) (*GlobalInstance, bool) {
	return locate(loc, inst.importedGlobals, inst.globals)
}

// StartFunction returns the location of the start function, if the module declares one. The embedder runs it.
func (inst *ModuleInstance) StartFunction() (Location, bool) {
	start := inst.compiled.module.StartSection
	if start == nil {
		return Location{}, false
	}
	loc, _, err := inst.compiled.index.Function(*start)
	return loc, err == nil
}

// export returns the location of the export with the given name and type.
func (inst *ModuleInstance) export(name string, et api.ExternType) (Location, bool) {
	for _, e := range inst.compiled.module.ExportSection {
		if e.Name != name || e.Type != et {
			continue
		}
		var loc Location
		var err error
		switch et {
		case wasm.ExternTypeFunc:
			loc, _, err = inst.compiled.index.Function(e.Index)
		case wasm.ExternTypeMemory:
			loc, _, err = inst.compiled.index.Memory(e.Index)
		case wasm.ExternTypeTable:
			loc, _, err = inst.compiled.index.Table(e.Index)
		case wasm.ExternTypeGlobal:
			loc, _, err = inst.compiled.index.Global(e.Index)
		}
		return loc, err == nil
	}
	return Location{}, false
}

// ExportedFunction returns the location of the function exported as name. It is either a local function or an
// imported host function, re-exported.
func (inst *ModuleInstance) ExportedFunction(name string) (Location, bool) {
	return inst.export(name, wasm.ExternTypeFunc)
}

// ExportedMemory returns the memory exported as name.
func (inst *ModuleInstance) ExportedMemory(name string) (*MemoryInstance, bool) {
	if loc, ok := inst.export(name, wasm.ExternTypeMemory); ok {
		return inst.Memory(loc)
	}
	return nil, false
}

// ExportedTable returns the table exported as name.
func (inst *ModuleInstance) ExportedTable(name string) (*TableInstance, bool) {
	if loc, ok := inst.export(name, wasm.ExternTypeTable); ok {
		return inst.Table(loc)
	}
	return nil, false
}

// ExportedGlobal returns the global exported as name.
func (inst *ModuleInstance) ExportedGlobal(name string) (*GlobalInstance, bool) {
	if loc, ok := inst.export(name, wasm.ExternTypeGlobal); ok {
		return inst.Global(loc)
	}
	return nil, false
}
