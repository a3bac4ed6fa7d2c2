package wasm

import (
	"fmt"

	"github.com/loadwasm/loadwasm/api"
)

// GlobalInstance is a LinearStore holding exactly one scalar. Its size is always one unit of ElementSize.
type GlobalInstance struct {
	LinearStore
	Type *GlobalType
}

// NewGlobalInstance returns an empty global. It has no value until Grow(1), which AllocateGlobal does.
func NewGlobalInstance(gt *GlobalType) *GlobalInstance {
	return &GlobalInstance{LinearStore: LinearStore{Align: ElementSize(gt.ValType), Min: 1, Max: 1}, Type: gt}
}

// Get returns the value, encoded as in api.ValueType.
func (g *GlobalInstance) Get() uint64 {
	if g.Align == 4 {
		v, _ := g.ReadUint32Le(0)
		return uint64(v)
	}
	v, _ := g.ReadUint64Le(0)
	return v
}

// Set overwrites the value, encoded as in api.ValueType. Mutability is enforced when code is transpiled, not here.
func (g *GlobalInstance) Set(v uint64) {
	if g.Align == 4 {
		g.WriteUint32Le(0, uint32(v))
		return
	}
	g.WriteUint64Le(0, v)
}

// String implements fmt.Stringer
func (g *GlobalInstance) String() string {
	switch g.Type.ValType {
	case ValueTypeI32, ValueTypeI64:
		return fmt.Sprintf("global(%d)", g.Get())
	case ValueTypeF32:
		return fmt.Sprintf("global(%f)", api.DecodeF32(g.Get()))
	case ValueTypeF64:
		return fmt.Sprintf("global(%f)", api.DecodeF64(g.Get()))
	default:
		panic(fmt.Errorf("BUG: unknown value type %X", g.Type.ValType))
	}
}

// AllocateGlobal sizes g and writes its default-value segment. Any bounds failure here means the segment and the
// declared type disagree, so it is an error rather than a result.
func AllocateGlobal(g *GlobalInstance, init *InitializerSegment, reader GlobalReader) error {
	if err := g.GrowStrict(1, false); err != nil {
		return fmt.Errorf("global: %w", err)
	}
	res, err := ApplySegments(&g.LinearStore, []*InitializerSegment{init}, reader)
	if err != nil {
		return err
	}
	if res.MinimumSizeNeeded != 0 {
		return fmt.Errorf("global: default value needs %d bytes, have %d", res.MinimumSizeNeeded, g.Len())
	}
	return nil
}
