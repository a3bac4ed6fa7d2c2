package wasm

import (
	"encoding/binary"
	"fmt"
)

// OffsetKind says how an OffsetDescriptor is resolved.
type OffsetKind byte

const (
	// OffsetConst is a literal offset.
	OffsetConst OffsetKind = iota
	// OffsetGlobal reads the offset from an i32 global at instantiation time.
	OffsetGlobal
)

// OffsetDescriptor is where an InitializerSegment lands in its store.
type OffsetDescriptor struct {
	Kind OffsetKind

	// Const is the offset when Kind is OffsetConst.
	Const uint32

	// GlobalIndex is the global holding the offset when Kind is OffsetGlobal.
	GlobalIndex Index

	// Scale is the byte width of one offset unit: 1 for data, 4 for table elements.
	Scale uint32
}

// GlobalReader returns the i32 value of the global at the given index.
type GlobalReader func(globalIndex Index) (uint32, error)

// resolve returns the byte offset.
func (o *OffsetDescriptor) resolve(reader GlobalReader) (uint64, error) {
	v := o.Const
	if o.Kind == OffsetGlobal {
		var err error
		if v, err = reader(o.GlobalIndex); err != nil {
			return 0, fmt.Errorf("read offset from global[%d]: %w", o.GlobalIndex, err)
		}
	}
	scale := o.Scale
	if scale == 0 {
		scale = 1
	}
	return uint64(v) * uint64(scale), nil
}

// InitializerSegment is a payload written into a LinearStore when a module is instantiated. It is never mutated.
type InitializerSegment struct {
	Payload []byte
	Offset  OffsetDescriptor
}

// SegmentResult is the outcome of ApplySegments.
type SegmentResult struct {
	// MinimumSizeNeeded is zero when the segments were written. Otherwise, it is the byte length the store must have
	// before retrying, and nothing was written.
	MinimumSizeNeeded uint64
}

// ApplySegments writes each segment's payload at its resolved offset. If any segment doesn't fit, the store is left
// untouched and the result says how large it must grow. The error is only for failures of reader.
func ApplySegments(store *LinearStore, segments []*InitializerSegment, reader GlobalReader) (SegmentResult, error) {
	offsets := make([]uint64, len(segments))
	var end uint64
	for i, s := range segments {
		o, err := s.Offset.resolve(reader)
		if err != nil {
			return SegmentResult{}, err
		}
		offsets[i] = o
		if e := o + uint64(len(s.Payload)); e > end {
			end = e
		}
	}
	if end > store.Len() {
		return SegmentResult{MinimumSizeNeeded: end}, nil
	}
	for i, s := range segments {
		copy(store.Buffer[offsets[i]:], s.Payload)
	}
	return SegmentResult{}, nil
}

// offsetFromExpression converts a segment's offset expression. Only i32.const and global.get are valid offsets.
func offsetFromExpression(expr *ConstantExpression, scale uint32) (OffsetDescriptor, error) {
	if expr == nil {
		return OffsetDescriptor{}, fmt.Errorf("missing offset expression")
	}
	v, err := decodeConstantExpression(expr)
	if err != nil {
		return OffsetDescriptor{}, err
	}
	switch expr.Opcode {
	case OpcodeI32Const:
		return OffsetDescriptor{Kind: OffsetConst, Const: uint32(v), Scale: scale}, nil
	case OpcodeGlobalGet:
		return OffsetDescriptor{Kind: OffsetGlobal, GlobalIndex: Index(v), Scale: scale}, nil
	}
	return OffsetDescriptor{}, fmt.Errorf("offset expression must be i32.const or global.get, but was %s",
		InstructionName(expr.Opcode))
}

// NewDataInitializer returns the memory segment for a data segment.
func NewDataInitializer(d *DataSegment) (*InitializerSegment, error) {
	o, err := offsetFromExpression(d.OffsetExpression, 1)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	return &InitializerSegment{Payload: d.Init, Offset: o}, nil
}

// NewElementInitializer returns the table segment for an element segment.
func NewElementInitializer(e *ElementSegment) (*InitializerSegment, error) {
	o, err := offsetFromExpression(e.OffsetExpr, tableEntrySize)
	if err != nil {
		return nil, fmt.Errorf("element: %w", err)
	}
	return &InitializerSegment{Payload: encodeTableEntries(e.Init), Offset: o}, nil
}

// NewGlobalInitializer returns the default-value segment of a global, which holds value at offset zero.
func NewGlobalInitializer(gt *GlobalType, value uint64) *InitializerSegment {
	payload := make([]byte, ElementSize(gt.ValType))
	if len(payload) == 4 {
		binary.LittleEndian.PutUint32(payload, uint32(value))
	} else {
		binary.LittleEndian.PutUint64(payload, value)
	}
	return &InitializerSegment{Payload: payload, Offset: OffsetDescriptor{Kind: OffsetConst, Scale: 1}}
}
