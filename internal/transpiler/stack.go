package transpiler

import (
	"strings"

	"github.com/loadwasm/loadwasm/internal/wasm"
)

// valueTypeUnknown is the placeholder popped from the stack of an unreachable frame. It matches any type.
const valueTypeUnknown wasm.ValueType = 0

type controlKind byte

const (
	controlKindFunction controlKind = iota
	controlKindBlock
	controlKindLoop
	controlKindIf
	controlKindElse
)

func (k controlKind) String() string {
	switch k {
	case controlKindFunction:
		return "function"
	case controlKindBlock:
		return "block"
	case controlKindLoop:
		return "loop"
	case controlKindIf:
		return "if"
	case controlKindElse:
		return "else"
	}
	return "unknown"
}

// controlFrame is the state of one open structured instruction.
type controlFrame struct {
	kind        controlKind
	inputs      []wasm.ValueType
	outputs     []wasm.ValueType
	height      int
	unreachable bool

	// dead is set when the frame opened inside unreachable code. Nothing is emitted until it closes.
	dead bool

	// loopEntry is the output offset of the first instruction of a loop.
	loopEntry uint32
	// exitPatches are output positions of jump targets which resolve to the end of this frame.
	exitPatches []int
	// entryPatches are output positions of back edges. They are written with loopEntry as soon as they're queued.
	entryPatches []int
	// elsePatch is the output position of the jump over the then-branch of an if, or -1.
	elsePatch int

	// entryStores is the tracker when the frame opened. An if without else falls through with it.
	entryStores storeTracker
	// branchStores is the meet of the tracker at every branch to the end of this frame.
	branchStores    storeTracker
	hasBranchStores bool
}

// labelTypes are the types a branch to this frame carries.
func (f *controlFrame) labelTypes() []wasm.ValueType {
	if f.kind == controlKindLoop {
		return f.inputs
	}
	return f.outputs
}

// queueExitPatch records a jump target to resolve when the frame closes.
func (f *controlFrame) queueExitPatch(pos int) {
	f.exitPatches = append(f.exitPatches, pos)
}

// queueEntryPatch resolves a back edge to the loop entry right away.
func (f *controlFrame) queueEntryPatch(out []byte, pos int) {
	f.entryPatches = append(f.entryPatches, pos)
	putUint32(out[pos:], f.loopEntry)
}

// resolveExitPatches writes target into every queued exit patch.
func (f *controlFrame) resolveExitPatches(out []byte, target uint32) {
	for _, pos := range f.exitPatches {
		putUint32(out[pos:], target)
	}
	if f.elsePatch >= 0 {
		putUint32(out[f.elsePatch:], target)
		f.elsePatch = -1
	}
}

// mergeBranchStores folds the tracker state of a branch to this frame's end.
func (f *controlFrame) mergeBranchStores(t *storeTracker) {
	if !f.hasBranchStores {
		f.branchStores = *t
		f.hasBranchStores = true
		return
	}
	f.branchStores.meet(t)
}

// validationState is the abstract operand stack and control frame stack of the function being transpiled.
type validationState struct {
	values []wasm.ValueType
	frames []*controlFrame
}

func (s *validationState) top() *controlFrame {
	return s.frames[len(s.frames)-1]
}

// frame returns the frame a branch of the given depth targets.
func (s *validationState) frame(depth uint32) (*controlFrame, bool) {
	if uint64(depth) >= uint64(len(s.frames)) {
		return nil, false
	}
	return s.frames[len(s.frames)-1-int(depth)], true
}

func (s *validationState) push(t wasm.ValueType) {
	s.values = append(s.values, t)
}

func (s *validationState) pushAll(ts []wasm.ValueType) {
	s.values = append(s.values, ts...)
}

func (s *validationState) pop() (wasm.ValueType, error) {
	f := s.top()
	if len(s.values) == f.height {
		if f.unreachable {
			return valueTypeUnknown, nil
		}
		return 0, ErrStackUnderflow
	}
	t := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return t, nil
}

func (s *validationState) popExpect(expected wasm.ValueType) (wasm.ValueType, error) {
	actual, err := s.pop()
	if err != nil {
		return 0, err
	}
	if actual != expected && actual != valueTypeUnknown && expected != valueTypeUnknown {
		return 0, typeMismatchError(expected, actual)
	}
	return actual, nil
}

// popAll pops ts in reverse order, returning the popped types in stack order. Types popped from an unreachable frame
// are valueTypeUnknown.
func (s *validationState) popAll(ts []wasm.ValueType) ([]wasm.ValueType, error) {
	popped := make([]wasm.ValueType, len(ts))
	for i := len(ts) - 1; i >= 0; i-- {
		t, err := s.popExpect(ts[i])
		if err != nil {
			return nil, err
		}
		popped[i] = t
	}
	return popped, nil
}

// enterControl opens a frame at the current height and pushes its inputs, which the caller has already popped.
func (s *validationState) enterControl(kind controlKind, inputs, outputs []wasm.ValueType) *controlFrame {
	f := &controlFrame{kind: kind, inputs: inputs, outputs: outputs, height: len(s.values), elsePatch: -1}
	if len(s.frames) > 0 {
		parent := s.top()
		f.dead = parent.unreachable || parent.dead
	}
	s.frames = append(s.frames, f)
	s.pushAll(inputs)
	return f
}

// exitControl pops the outputs of the top frame, which must leave the stack at the frame's height, and closes it.
func (s *validationState) exitControl() (*controlFrame, error) {
	f := s.top()
	if _, err := s.popAll(f.outputs); err != nil {
		return nil, err
	}
	if len(s.values) != f.height {
		return nil, typeCountError(f.kind, len(f.outputs), len(s.values)-f.height+len(f.outputs))
	}
	s.frames = s.frames[:len(s.frames)-1]
	return f, nil
}

// markUnreachable drops the operands of the top frame after an unconditional transfer of control.
func (s *validationState) markUnreachable() {
	f := s.top()
	s.values = s.values[:f.height]
	f.unreachable = true
}

// live is true when code at the current position can run, so it is emitted.
func (s *validationState) live() bool {
	f := s.top()
	return !f.unreachable && !f.dead
}

// String is for debug logging.
func (s *validationState) String() string {
	var ret strings.Builder
	ret.WriteByte('[')
	for i, v := range s.values {
		if i > 0 {
			ret.WriteString(", ")
		}
		ret.WriteString(wasm.ValueTypeName(v))
	}
	ret.WriteByte(']')
	return ret.String()
}
