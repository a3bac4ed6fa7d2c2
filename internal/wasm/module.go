package wasm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loadwasm/loadwasm/api"
)

// Module is a WebAssembly module after its binary container has been parsed. Instruction streams in CodeSection are
// still raw: they are validated and rewritten by the transpiler during loading.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#modules%E2%91%A8
type Module struct {
	// TypeSection contains the unique FunctionType of functions imported or defined in this module.
	TypeSection []*FunctionType

	// ImportSection contains imported functions, tables, memories or globals required for instantiation.
	//
	// Note: Imports are numbered before locally defined entries of the same kind. For example, if there are two
	// imported functions and one defined in this module, the defined function has index 2.
	ImportSection []*Import

	// FunctionSection contains the index in TypeSection of each function defined in this module.
	//
	// Note: The index of a function in this section is offset by the count of imported functions.
	FunctionSection []Index

	// TableSection contains each table defined in this module.
	TableSection []*Table

	// MemorySection contains each memory defined in this module.
	MemorySection []*Memory

	// GlobalSection contains each global defined in this module.
	GlobalSection []*Global

	// ExportSection contains each entity this module makes available to the embedder, by name.
	ExportSection []*Export

	// StartSection is the index of a function to call before returning from instantiation, or nil.
	StartSection *Index

	// ElementSection contains the table initializers.
	ElementSection []*ElementSegment

	// CodeSection is index-correlated with FunctionSection and contains each function's locals and body.
	CodeSection []*Code

	// DataSection contains the memory initializers.
	DataSection []*DataSegment
}

// Index is the offset in an index namespace, not necessarily an absolute position in a Module section. This is because
// index namespaces are often preceded by a corresponding type in the Module.ImportSection.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#syntax-index
type Index = uint32

// ValueType is an alias of api.ValueType defined to simplify imports.
type ValueType = api.ValueType

const (
	ValueTypeI32     = api.ValueTypeI32
	ValueTypeI64     = api.ValueTypeI64
	ValueTypeF32     = api.ValueTypeF32
	ValueTypeF64     = api.ValueTypeF64
	ValueTypeFuncref = api.ValueTypeFuncref
)

// ValueTypeName is an alias of api.ValueTypeName defined to simplify imports.
func ValueTypeName(t ValueType) string {
	return api.ValueTypeName(t)
}

// isNumericValueType reports whether t may appear on the operand stack.
func isNumericValueType(t ValueType) bool {
	switch t {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return true
	}
	return false
}

// FunctionType is a possibly empty function signature.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#function-types%E2%91%A0
type FunctionType struct {
	// Params are the possibly empty sequence of value types accepted by a function with this signature.
	Params []ValueType

	// Results are the possibly empty sequence of value types returned by a function with this signature.
	Results []ValueType
}

// EqualsSignature returns true if the function type has the same parameters and results.
func (t *FunctionType) EqualsSignature(params []ValueType, results []ValueType) bool {
	return valueTypesEqual(t.Params, params) && valueTypesEqual(t.Results, results)
}

func valueTypesEqual(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer, returning the text format of the signature. Ex. "i32i32_i64"
func (t *FunctionType) String() string {
	var ret strings.Builder
	for _, b := range t.Params {
		ret.WriteString(ValueTypeName(b))
	}
	if len(t.Params) == 0 {
		ret.WriteString("v")
	}
	ret.WriteByte('_')
	for _, b := range t.Results {
		ret.WriteString(ValueTypeName(b))
	}
	if len(t.Results) == 0 {
		ret.WriteString("v")
	}
	return ret.String()
}

// ExternType is an alias of api.ExternType defined to simplify imports.
type ExternType = api.ExternType

const (
	ExternTypeFunc   = api.ExternTypeFunc
	ExternTypeTable  = api.ExternTypeTable
	ExternTypeMemory = api.ExternTypeMemory
	ExternTypeGlobal = api.ExternTypeGlobal
)

// Import is the binary representation of an import indicated by Type
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-import
type Import struct {
	Type ExternType
	// Module is the possibly empty primary namespace of this import
	Module string
	// Module is the possibly empty secondary namespace of this import
	Name string
	// DescFunc is the index in Module.TypeSection when Type equals ExternTypeFunc
	DescFunc Index
	// DescTable is the inlined Table when Type equals ExternTypeTable
	DescTable *Table
	// DescMem is the inlined Memory when Type equals ExternTypeMemory
	DescMem *Memory
	// DescGlobal is the inlined GlobalType when Type equals ExternTypeGlobal
	DescGlobal *GlobalType
}

// Export is a named function, table, memory or global of a module, referenced by its index.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#exports%E2%91%A0
type Export struct {
	Type ExternType
	Name string
	// Index is in the namespace of Type, so it may refer to an import.
	Index Index
}

// Limits are the min and max of a memory (in pages) or table (in entries). Max is nil when unbounded.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#limits%E2%91%A6
type Limits struct {
	Min uint32
	Max *uint32
}

// MaxOr returns Max, or the given ceiling when unbounded.
func (l *Limits) MaxOr(ceiling uint32) uint32 {
	if l.Max == nil {
		return ceiling
	}
	return *l.Max
}

func (l *Limits) validate(what string, ceiling uint32) error {
	if l.Min > ceiling {
		return fmt.Errorf("%s min %d exceeds the limit %d", what, l.Min, ceiling)
	}
	if l.Max != nil {
		if *l.Max > ceiling {
			return fmt.Errorf("%s max %d exceeds the limit %d", what, *l.Max, ceiling)
		}
		if l.Min > *l.Max {
			return fmt.Errorf("%s min %d is greater than max %d", what, l.Min, *l.Max)
		}
	}
	return nil
}

// Memory describes the limits of pages (64KB) in a memory.
type Memory = Limits

// Table describes the limits of funcref elements in a table.
type Table = Limits

// GlobalType is the type of a global variable.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#global-types%E2%91%A0
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Global is a global variable defined in this module, with its initial value.
type Global struct {
	Type *GlobalType
	Init *ConstantExpression
}

// ElementSegment are initialization instructions for a TableInstance
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#syntax-elem
type ElementSegment struct {
	// TableIndex is the table to initialize. Zero in WebAssembly 1.0 (20191205).
	TableIndex Index
	// OffsetExpr returns the table element offset to apply to Init indices.
	OffsetExpr *ConstantExpression
	// Init indices are positions in the function index namespace.
	Init []Index
}

// DataSegment are initialization instructions for a MemoryInstance
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#data-segments%E2%91%A0
type DataSegment struct {
	// MemoryIndex is the memory to initialize. Zero in WebAssembly 1.0 (20191205).
	MemoryIndex      Index
	OffsetExpression *ConstantExpression
	Init             []byte
}

// Code is an entry in the Module.CodeSection containing the locals and body of the function.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-code
type Code struct {
	// LocalTypes are any function-scoped variables in insertion order.
	LocalTypes []ValueType

	// Body is a sequence of expressions ending in OpcodeEnd
	Body []byte
}

// Validate checks everything about the module that does not require reading function bodies: type references,
// limits and section correlation. memoryLimitPages caps memory declarations.
func (m *Module) Validate(memoryLimitPages uint32) error {
	for i, t := range m.TypeSection {
		if t == nil {
			return fmt.Errorf("type[%d] is missing", i)
		}
		for _, vts := range [][]ValueType{t.Params, t.Results} {
			for _, v := range vts {
				if !isNumericValueType(v) {
					return fmt.Errorf("type[%d] has invalid value type %#x", i, v)
				}
			}
		}
	}
	if len(m.FunctionSection) != len(m.CodeSection) {
		return fmt.Errorf("function and code section have inconsistent lengths: %d != %d",
			len(m.FunctionSection), len(m.CodeSection))
	}
	for i, c := range m.CodeSection {
		for _, v := range c.LocalTypes {
			if !isNumericValueType(v) {
				return fmt.Errorf("code[%d] has local of invalid value type %#x", i, v)
			}
		}
	}
	for i, im := range m.ImportSection {
		var err error
		switch im.Type {
		case ExternTypeMemory:
			if im.DescMem == nil {
				err = errors.New("missing memory type")
			} else {
				err = im.DescMem.validate("memory", memoryLimitPages)
			}
		case ExternTypeTable:
			if im.DescTable == nil {
				err = errors.New("missing table type")
			} else {
				err = im.DescTable.validate("table", TableLimitEntries)
			}
		case ExternTypeGlobal:
			if im.DescGlobal == nil {
				err = errors.New("missing global type")
			} else if !isNumericValueType(im.DescGlobal.ValType) {
				err = fmt.Errorf("invalid value type %#x", im.DescGlobal.ValType)
			}
		}
		if err != nil {
			return fmt.Errorf("import[%d] %s.%s: %w", i, im.Module, im.Name, err)
		}
	}
	for i, mem := range m.MemorySection {
		if err := mem.validate("memory", memoryLimitPages); err != nil {
			return fmt.Errorf("memory[%d]: %w", i, err)
		}
	}
	for i, t := range m.TableSection {
		if err := t.validate("table", TableLimitEntries); err != nil {
			return fmt.Errorf("table[%d]: %w", i, err)
		}
	}
	for i, g := range m.GlobalSection {
		if g.Type == nil {
			return fmt.Errorf("global[%d] is missing its type", i)
		}
		if !isNumericValueType(g.Type.ValType) {
			return fmt.Errorf("global[%d] has invalid value type %#x", i, g.Type.ValType)
		}
	}
	return nil
}

// Functions returns a Function record for each function defined in this module, numbered in the function index
// namespace. The records share nothing with CodeSection, so transpiling them leaves the module untouched.
func (m *Module) Functions(index *IndexTable) ([]*Function, error) {
	imported := index.ImportedFunctionCount()
	ret := make([]*Function, len(m.FunctionSection))
	for i, typeIndex := range m.FunctionSection {
		ft, err := index.Type(typeIndex)
		if err != nil {
			return nil, fmt.Errorf("function[%d]: %w", i, err)
		}
		code := m.CodeSection[i]
		body := make([]byte, len(code.Body))
		copy(body, code.Body)
		ret[i] = &Function{
			Index:      imported + Index(i),
			Type:       ft,
			LocalTypes: code.LocalTypes,
			Body:       body,
		}
	}
	return ret, nil
}

// ValidateReferences checks what Validate can't without index: every initializer expression, element, export and
// the start function must refer to an entity of the right type.
func (m *Module) ValidateReferences(index *IndexTable) error {
	for i, g := range m.GlobalSection {
		if err := ValidateConstantExpression(g.Init, g.Type.ValType, index); err != nil {
			return fmt.Errorf("global[%d]: %w", i, err)
		}
	}
	for i, e := range m.ElementSection {
		if _, _, err := index.Table(e.TableIndex); err != nil {
			return fmt.Errorf("element[%d]: %w", i, err)
		}
		if err := ValidateConstantExpression(e.OffsetExpr, ValueTypeI32, index); err != nil {
			return fmt.Errorf("element[%d]: %w", i, err)
		}
		for j, fn := range e.Init {
			if _, _, err := index.Function(fn); err != nil {
				return fmt.Errorf("element[%d].init[%d]: %w", i, j, err)
			}
		}
	}
	for i, d := range m.DataSection {
		if _, _, err := index.Memory(d.MemoryIndex); err != nil {
			return fmt.Errorf("data[%d]: %w", i, err)
		}
		if err := ValidateConstantExpression(d.OffsetExpression, ValueTypeI32, index); err != nil {
			return fmt.Errorf("data[%d]: %w", i, err)
		}
	}

	names := make(map[string]struct{}, len(m.ExportSection))
	for _, e := range m.ExportSection {
		if _, ok := names[e.Name]; ok {
			return fmt.Errorf("export %q declared twice", e.Name)
		}
		names[e.Name] = struct{}{}

		var err error
		switch e.Type {
		case ExternTypeFunc:
			_, _, err = index.Function(e.Index)
		case ExternTypeTable:
			_, _, err = index.Table(e.Index)
		case ExternTypeMemory:
			_, _, err = index.Memory(e.Index)
		case ExternTypeGlobal:
			_, _, err = index.Global(e.Index)
		default:
			err = fmt.Errorf("invalid type %#x", e.Type)
		}
		if err != nil {
			return fmt.Errorf("export %q: %w", e.Name, err)
		}
	}

	if m.StartSection != nil {
		_, ft, err := index.Function(*m.StartSection)
		if err != nil {
			return fmt.Errorf("start function: %w", err)
		}
		if len(ft.Params) > 0 || len(ft.Results) > 0 {
			return fmt.Errorf("start function must have an empty signature, but was %s", ft)
		}
	}
	return nil
}
