package wasm

import (
	"errors"
	"fmt"
)

// LocationKind says where the entity behind an index lives.
type LocationKind byte

const (
	// LocationKindUnknown is the zero value. The transpiler uses it for "no store is known to be active".
	LocationKindUnknown LocationKind = iota
	// LocationKindImported means the entity was supplied by an import.
	LocationKindImported
	// LocationKindLocal means the entity is defined by the module itself.
	LocationKindLocal
)

// String implements fmt.Stringer
func (k LocationKind) String() string {
	switch k {
	case LocationKindImported:
		return "imported"
	case LocationKindLocal:
		return "local"
	}
	return "unknown"
}

// Location resolves an index into the list holding the concrete entity: the imported list or the locally defined list,
// at Position.
type Location struct {
	Kind     LocationKind
	Position uint32
}

// String implements fmt.Stringer
func (l Location) String() string {
	return fmt.Sprintf("%s[%d]", l.Kind, l.Position)
}

var (
	// ErrIndexOutOfRange is returned when an index doesn't exist in its namespace.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrIndexTableBuilt is returned when the builder is used after Build.
	ErrIndexTableBuilt = errors.New("index table already built")
)

type functionEntry struct {
	loc       Location
	typeIndex Index
}

type globalEntry struct {
	loc Location
	typ *GlobalType
}

type limitsEntry struct {
	loc    Location
	limits *Limits
}

// IndexTable maps every function, global, memory and table index of a module to its Location and declared type. It
// is immutable: build one with IndexTableBuilder.
type IndexTable struct {
	types     []*FunctionType
	functions []functionEntry
	globals   []globalEntry
	memories  []limitsEntry
	tables    []limitsEntry

	importedFunctions, importedGlobals, importedMemories, importedTables uint32
}

// Type returns the function type at the given index of the type section.
func (t *IndexTable) Type(index Index) (*FunctionType, error) {
	if index >= Index(len(t.types)) {
		return nil, fmt.Errorf("%w: type[%d]", ErrIndexOutOfRange, index)
	}
	return t.types[index], nil
}

// Function returns the location and signature of the function at the given index.
func (t *IndexTable) Function(index Index) (Location, *FunctionType, error) {
	if index >= Index(len(t.functions)) {
		return Location{}, nil, fmt.Errorf("%w: function[%d]", ErrIndexOutOfRange, index)
	}
	e := t.functions[index]
	return e.loc, t.types[e.typeIndex], nil
}

// Global returns the location and type of the global at the given index.
func (t *IndexTable) Global(index Index) (Location, *GlobalType, error) {
	if index >= Index(len(t.globals)) {
		return Location{}, nil, fmt.Errorf("%w: global[%d]", ErrIndexOutOfRange, index)
	}
	e := t.globals[index]
	return e.loc, e.typ, nil
}

// Memory returns the location and limits of the memory at the given index.
func (t *IndexTable) Memory(index Index) (Location, *Memory, error) {
	if index >= Index(len(t.memories)) {
		return Location{}, nil, fmt.Errorf("%w: memory[%d]", ErrIndexOutOfRange, index)
	}
	e := t.memories[index]
	return e.loc, e.limits, nil
}

// Table returns the location and limits of the table at the given index.
func (t *IndexTable) Table(index Index) (Location, *Table, error) {
	if index >= Index(len(t.tables)) {
		return Location{}, nil, fmt.Errorf("%w: table[%d]", ErrIndexOutOfRange, index)
	}
	e := t.tables[index]
	return e.loc, e.limits, nil
}

// ImportedFunctionCount is the count of functions supplied by imports. Defined functions are numbered after them.
func (t *IndexTable) ImportedFunctionCount() Index {
	return t.importedFunctions
}

// FunctionCount is the size of the function index namespace.
func (t *IndexTable) FunctionCount() int { return len(t.functions) }

// GlobalCount is the size of the global index namespace.
func (t *IndexTable) GlobalCount() int { return len(t.globals) }

// MemoryCount is the size of the memory index namespace.
func (t *IndexTable) MemoryCount() int { return len(t.memories) }

// TableCount is the size of the table index namespace.
func (t *IndexTable) TableCount() int { return len(t.tables) }

// IndexTableBuilder accumulates index namespaces while sections are read. Imports of a kind must be added before
// definitions of that kind, matching the index space order. Build seals the builder.
type IndexTableBuilder struct {
	t     *IndexTable
	built bool
}

// NewIndexTableBuilder starts an index table over the given type section.
func NewIndexTableBuilder(types []*FunctionType) *IndexTableBuilder {
	return &IndexTableBuilder{t: &IndexTable{types: types}}
}

// AddImport records an imported function, table, memory or global.
func (b *IndexTableBuilder) AddImport(im *Import) error {
	if b.built {
		return ErrIndexTableBuilt
	}
	t := b.t
	switch im.Type {
	case ExternTypeFunc:
		if len(t.functions) != int(t.importedFunctions) {
			return fmt.Errorf("function import %s.%s after a defined function", im.Module, im.Name)
		}
		if im.DescFunc >= Index(len(t.types)) {
			return fmt.Errorf("%w: function import %s.%s has type[%d]", ErrIndexOutOfRange, im.Module, im.Name, im.DescFunc)
		}
		t.functions = append(t.functions, functionEntry{Location{LocationKindImported, t.importedFunctions}, im.DescFunc})
		t.importedFunctions++
	case ExternTypeGlobal:
		if len(t.globals) != int(t.importedGlobals) {
			return fmt.Errorf("global import %s.%s after a defined global", im.Module, im.Name)
		}
		t.globals = append(t.globals, globalEntry{Location{LocationKindImported, t.importedGlobals}, im.DescGlobal})
		t.importedGlobals++
	case ExternTypeMemory:
		if len(t.memories) != int(t.importedMemories) {
			return fmt.Errorf("memory import %s.%s after a defined memory", im.Module, im.Name)
		}
		t.memories = append(t.memories, limitsEntry{Location{LocationKindImported, t.importedMemories}, im.DescMem})
		t.importedMemories++
	case ExternTypeTable:
		if len(t.tables) != int(t.importedTables) {
			return fmt.Errorf("table import %s.%s after a defined table", im.Module, im.Name)
		}
		t.tables = append(t.tables, limitsEntry{Location{LocationKindImported, t.importedTables}, im.DescTable})
		t.importedTables++
	default:
		return fmt.Errorf("import %s.%s has invalid type %#x", im.Module, im.Name, im.Type)
	}
	return nil
}

// AddFunction records a function defined in the module with the given type index.
func (b *IndexTableBuilder) AddFunction(typeIndex Index) error {
	if b.built {
		return ErrIndexTableBuilt
	}
	t := b.t
	if typeIndex >= Index(len(t.types)) {
		return fmt.Errorf("%w: function[%d] has type[%d]", ErrIndexOutOfRange, len(t.functions), typeIndex)
	}
	pos := uint32(len(t.functions)) - t.importedFunctions
	t.functions = append(t.functions, functionEntry{Location{LocationKindLocal, pos}, typeIndex})
	return nil
}

// AddGlobal records a global defined in the module.
func (b *IndexTableBuilder) AddGlobal(gt *GlobalType) error {
	if b.built {
		return ErrIndexTableBuilt
	}
	t := b.t
	pos := uint32(len(t.globals)) - t.importedGlobals
	t.globals = append(t.globals, globalEntry{Location{LocationKindLocal, pos}, gt})
	return nil
}

// AddMemory records a memory defined in the module.
func (b *IndexTableBuilder) AddMemory(mem *Memory) error {
	if b.built {
		return ErrIndexTableBuilt
	}
	t := b.t
	pos := uint32(len(t.memories)) - t.importedMemories
	t.memories = append(t.memories, limitsEntry{Location{LocationKindLocal, pos}, mem})
	return nil
}

// AddTable records a table defined in the module.
func (b *IndexTableBuilder) AddTable(table *Table) error {
	if b.built {
		return ErrIndexTableBuilt
	}
	t := b.t
	pos := uint32(len(t.tables)) - t.importedTables
	t.tables = append(t.tables, limitsEntry{Location{LocationKindLocal, pos}, table})
	return nil
}

// Build seals the builder and returns the finished table.
func (b *IndexTableBuilder) Build() (*IndexTable, error) {
	if b.built {
		return nil, ErrIndexTableBuilt
	}
	b.built = true
	return b.t, nil
}

// BuildIndexTable drives an IndexTableBuilder over the module's sections.
func (m *Module) BuildIndexTable() (*IndexTable, error) {
	b := NewIndexTableBuilder(m.TypeSection)
	for i, im := range m.ImportSection {
		if err := b.AddImport(im); err != nil {
			return nil, fmt.Errorf("import[%d]: %w", i, err)
		}
	}
	for _, typeIndex := range m.FunctionSection {
		if err := b.AddFunction(typeIndex); err != nil {
			return nil, err
		}
	}
	for _, g := range m.GlobalSection {
		if err := b.AddGlobal(g.Type); err != nil {
			return nil, err
		}
	}
	for _, mem := range m.MemorySection {
		if err := b.AddMemory(mem); err != nil {
			return nil, err
		}
	}
	for _, table := range m.TableSection {
		if err := b.AddTable(table); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
