package transpiler

import "github.com/loadwasm/loadwasm/internal/wasm"

// storeKind selects a slot of storeTracker.
type storeKind byte

const (
	storeKindMemory storeKind = iota
	storeKindTable
	storeKindGlobal
	storeKindCount
)

// storeSlot is the store the emitted code assumes is active. The zero value is unknown.
type storeSlot struct {
	kind     wasm.LocationKind
	position uint32
}

// storeTracker records, per store kind, which store the interpreter has selected at the current output position.
// A use marker is only emitted when an access needs a different store than the slot holds.
type storeTracker struct {
	slots [storeKindCount]storeSlot
}

func (t *storeTracker) matches(k storeKind, loc wasm.Location) bool {
	s := t.slots[k]
	return s.kind != wasm.LocationKindUnknown && s.kind == loc.Kind && s.position == loc.Position
}

func (t *storeTracker) set(k storeKind, loc wasm.Location) {
	t.slots[k] = storeSlot{kind: loc.Kind, position: loc.Position}
}

func (t *storeTracker) invalidate(k storeKind) {
	t.slots[k] = storeSlot{}
}

// invalidateAll is needed after calls: the callee may grow any memory or table, and switch any store.
func (t *storeTracker) invalidateAll() {
	t.slots = [storeKindCount]storeSlot{}
}

// meet keeps the slots on which t and o agree and forgets the rest.
func (t *storeTracker) meet(o *storeTracker) {
	for i := range t.slots {
		if t.slots[i] != o.slots[i] {
			t.slots[i] = storeSlot{}
		}
	}
}
