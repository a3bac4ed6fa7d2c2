// Package transpiler validates the raw instructions of a function and rewrites them into the form executed by the
// interpreter, in a single forward pass.
//
// Structured control flow is lowered to absolute jumps, patched as frames close. Operators that depend on a width,
// offset or store are specialized, and every access to a memory, table or global is preceded by a use marker whenever
// the store it needs may not be the one the interpreter has selected.
package transpiler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/loadwasm/loadwasm/internal/buildoptions"
	"github.com/loadwasm/loadwasm/internal/leb128"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

var (
	blockTypeEmpty = &wasm.FunctionType{}
	blockTypeI32   = &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	blockTypeI64   = &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI64}}
	blockTypeF32   = &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeF32}}
	blockTypeF64   = &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeF64}}
)

type transpiler struct {
	f     *wasm.Function
	index *wasm.IndexTable
	body  []byte
	pc    uint64

	state  validationState
	stores storeTracker
	out    []byte

	// localCount is the count of parameters and declared locals, which sit below the operands at runtime.
	localCount uint32
	// live is whether the current instruction is reachable, so emitted.
	live bool
}

// Transpile validates f against the module described by index and, on success, replaces its body with the transpiled
// form. On failure, the body is left untouched and the error is a *ValidationError.
func Transpile(f *wasm.Function, index *wasm.IndexTable) error {
	if f.Transpiled() {
		return wasm.ErrAlreadyTranspiled
	}
	c := &transpiler{
		f:          f,
		index:      index,
		body:       f.Body,
		out:        make([]byte, 0, len(f.Body)*2),
		localCount: uint32(f.LocalCount()),
	}
	if err := c.transpile(); err != nil {
		return err
	}
	if buildoptions.IsDebugMode {
		Logger().Debug("transpiled function",
			zap.Uint32("index", f.Index), zap.Int("in", len(f.Body)), zap.Int("out", len(c.out)),
			zap.String("code", Format(c.out)))
	}
	return f.Replace(c.out)
}

func (c *transpiler) transpile() error {
	// Parameters are pushed by the caller, so the function frame only accounts for operands.
	c.state.enterControl(controlKindFunction, nil, c.f.Type.Results)
	if n := len(c.f.LocalTypes); n > 0 {
		c.emitOp(OpLocals)
		c.emitU32(uint32(n))
	}

	for len(c.state.frames) > 0 {
		if c.pc >= uint64(len(c.body)) {
			return &ValidationError{
				FunctionIndex: c.f.Index, Offset: c.pc, Opcode: wasm.OpcodeEnd,
				Err: fmt.Errorf("%w: body ended with %d open frames", ErrMalformedControl, len(c.state.frames)),
			}
		}
		start := c.pc
		op := c.body[c.pc]
		c.pc++
		if err := c.handleInstruction(op); err != nil {
			return &ValidationError{FunctionIndex: c.f.Index, Offset: start, Opcode: op, Err: err}
		}
	}

	if c.pc != uint64(len(c.body)) {
		return &ValidationError{
			FunctionIndex: c.f.Index, Offset: c.pc, Opcode: c.body[c.pc],
			Err: fmt.Errorf("%w: %d bytes after the end of the function", ErrMalformedControl, uint64(len(c.body))-c.pc),
		}
	}
	return nil
}

func (c *transpiler) handleInstruction(op wasm.Opcode) error {
	c.live = c.state.live()
	if buildoptions.IsDebugMode {
		Logger().Debug("handling instruction",
			zap.String("op", wasm.InstructionName(op)), zap.Bool("live", c.live), zap.Stringer("stack", &c.state))
	}

	switch op {
	case wasm.OpcodeUnreachable:
		if c.live {
			c.emitOp(OpUnreachable)
		}
		c.state.markUnreachable()
	case wasm.OpcodeNop:
	case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
		return c.handleEnter(op)
	case wasm.OpcodeElse:
		return c.handleElse()
	case wasm.OpcodeEnd:
		return c.handleEnd()
	case wasm.OpcodeBr:
		return c.handleBr()
	case wasm.OpcodeBrIf:
		return c.handleBrIf()
	case wasm.OpcodeBrTable:
		return c.handleBrTable()
	case wasm.OpcodeReturn:
		return c.handleReturn()
	case wasm.OpcodeCall:
		return c.handleCall()
	case wasm.OpcodeCallIndirect:
		return c.handleCallIndirect()
	case wasm.OpcodeDrop:
		if _, err := c.state.pop(); err != nil {
			return err
		}
		if c.live {
			c.emitOp(OpDrop)
		}
	case wasm.OpcodeSelect:
		return c.handleSelect()
	case wasm.OpcodeTypedSelect:
		return c.handleTypedSelect()
	case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee:
		return c.handleLocal(op)
	case wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		return c.handleGlobal(op)
	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		return c.handleMemorySizeGrow(op)
	case wasm.OpcodeI32Const:
		v, err := c.readI32()
		if err != nil {
			return err
		}
		c.state.push(wasm.ValueTypeI32)
		if c.live {
			c.emitOp(OpConst32)
			c.emitU32(uint32(v))
		}
	case wasm.OpcodeI64Const:
		v, err := c.readI64()
		if err != nil {
			return err
		}
		c.state.push(wasm.ValueTypeI64)
		if c.live {
			c.emitOp(OpConst64)
			c.emitU64(uint64(v))
		}
	case wasm.OpcodeF32Const:
		raw, err := c.readRaw(4, "f32.const")
		if err != nil {
			return err
		}
		c.state.push(wasm.ValueTypeF32)
		if c.live {
			c.emitOp(OpConst32)
			c.out = append(c.out, raw...)
		}
	case wasm.OpcodeF64Const:
		raw, err := c.readRaw(8, "f64.const")
		if err != nil {
			return err
		}
		c.state.push(wasm.ValueTypeF64)
		if c.live {
			c.emitOp(OpConst64)
			c.out = append(c.out, raw...)
		}
	case wasm.OpcodeMiscPrefix:
		return c.handleMisc()
	default:
		if access, ok := memoryAccesses[op]; ok {
			return c.handleMemoryAccess(access)
		}
		sig, err := numericOpSignature(op)
		if err != nil {
			return err
		}
		if err = c.applySignature(sig); err != nil {
			return err
		}
		if c.live {
			c.emitOp(op)
		}
	}
	return nil
}

func (c *transpiler) applySignature(sig *signature) error {
	if _, err := c.state.popAll(sig.in); err != nil {
		return err
	}
	c.state.pushAll(sig.out)
	return nil
}

// handleEnter opens a block, loop or if.
func (c *transpiler) handleEnter(op wasm.Opcode) error {
	bt, err := c.readBlockType()
	if err != nil {
		return err
	}
	if op == wasm.OpcodeIf {
		if _, err = c.state.popExpect(wasm.ValueTypeI32); err != nil {
			return err
		}
	}
	if _, err = c.state.popAll(bt.Params); err != nil {
		return err
	}

	switch op {
	case wasm.OpcodeBlock:
		c.state.enterControl(controlKindBlock, bt.Params, bt.Results)
	case wasm.OpcodeLoop:
		// Back edges can arrive with any store selected.
		if c.live {
			c.stores.invalidateAll()
		}
		f := c.state.enterControl(controlKindLoop, bt.Params, bt.Results)
		f.loopEntry = uint32(len(c.out))
	case wasm.OpcodeIf:
		elsePatch := -1
		if c.live {
			c.emitOp(OpJumpUnless)
			elsePatch = c.emitPlaceholder()
		}
		f := c.state.enterControl(controlKindIf, bt.Params, bt.Results)
		f.elsePatch = elsePatch
		f.entryStores = c.stores
	}
	return nil
}

func (c *transpiler) handleElse() error {
	f := c.state.top()
	if f.kind != controlKindIf {
		return fmt.Errorf("%w: else without if", ErrMalformedControl)
	}
	if _, err := c.state.popAll(f.outputs); err != nil {
		return err
	}
	if len(c.state.values) != f.height {
		return typeCountError(f.kind, len(f.outputs), len(c.state.values)-f.height+len(f.outputs))
	}

	if c.live {
		c.emitOp(OpJump)
		f.queueExitPatch(c.emitPlaceholder())
		f.mergeBranchStores(&c.stores)
	}
	if f.elsePatch >= 0 {
		putUint32(c.out[f.elsePatch:], uint32(len(c.out)))
		f.elsePatch = -1
	}

	f.kind = controlKindElse
	f.unreachable = false
	c.state.pushAll(f.inputs)
	if !f.dead {
		c.stores = f.entryStores
	}
	return nil
}

func (c *transpiler) handleEnd() error {
	f := c.state.top()
	if f.kind == controlKindIf && !valueTypesEqual(f.inputs, f.outputs) {
		return fmt.Errorf("%w: if without else must have the same params and results", ErrTypeMismatch)
	}
	if _, err := c.state.exitControl(); err != nil {
		return err
	}

	if len(c.state.frames) == 0 {
		if c.live {
			c.emitOp(OpReturn)
			c.emitU32(uint32(len(f.outputs)))
			c.emitU32(c.localCount)
		}
		return nil
	}

	if !f.dead {
		c.stores = c.mergeAtEnd(f)
	}
	f.resolveExitPatches(c.out, uint32(len(c.out)))
	c.state.pushAll(f.outputs)
	return nil
}

// mergeAtEnd returns the stores known to be selected after f closes: those agreed on by every way into its end.
func (c *transpiler) mergeAtEnd(f *controlFrame) storeTracker {
	var merged storeTracker
	has := false
	fold := func(t *storeTracker) {
		if !has {
			merged, has = *t, true
		} else {
			merged.meet(t)
		}
	}
	if c.live {
		fold(&c.stores)
	}
	if f.hasBranchStores {
		fold(&f.branchStores)
	}
	if f.kind == controlKindIf {
		// The condition was false and there is no else.
		fold(&f.entryStores)
	}
	if !has {
		merged.invalidateAll()
	}
	return merged
}

func (c *transpiler) handleBr() error {
	target, err := c.readLabel()
	if err != nil {
		return err
	}
	labels := target.labelTypes()
	if _, err = c.state.popAll(labels); err != nil {
		return err
	}
	if c.live {
		c.emitBranch(OpBr, target, uint32(len(labels)), c.dropTo(target))
	}
	c.state.markUnreachable()
	return nil
}

func (c *transpiler) handleBrIf() error {
	target, err := c.readLabel()
	if err != nil {
		return err
	}
	if _, err = c.state.popExpect(wasm.ValueTypeI32); err != nil {
		return err
	}
	labels := target.labelTypes()
	if _, err = c.state.popAll(labels); err != nil {
		return err
	}
	drop := c.dropTo(target)
	c.state.pushAll(labels)
	if c.live {
		c.emitBranch(OpBrIf, target, uint32(len(labels)), drop)
	}
	return nil
}

func (c *transpiler) handleBrTable() error {
	n, err := c.readU32("br_table length")
	if err != nil {
		return err
	}
	// Each depth takes at least one byte.
	if uint64(n) >= uint64(len(c.body))-c.pc {
		return fmt.Errorf("%w: br_table length %d exceeds the body", ErrMalformedImmediate, n)
	}
	targets := make([]*controlFrame, n+1)
	for i := range targets {
		if targets[i], err = c.readLabel(); err != nil {
			return err
		}
	}
	if _, err = c.state.popExpect(wasm.ValueTypeI32); err != nil {
		return err
	}

	defaultLabels := targets[n].labelTypes()
	for _, target := range targets {
		labels := target.labelTypes()
		if len(labels) != len(defaultLabels) {
			return fmt.Errorf("%w: br_table targets have %d and %d values", ErrTypeMismatch, len(labels), len(defaultLabels))
		}
		popped, err := c.state.popAll(labels)
		if err != nil {
			return err
		}
		c.state.pushAll(popped)
	}
	if _, err = c.state.popAll(defaultLabels); err != nil {
		return err
	}

	if c.live {
		c.emitOp(OpBrTable)
		c.emitU32(uint32(len(defaultLabels)))
		c.emitU32(n)
		for _, target := range targets {
			drop := c.dropTo(target)
			if target.kind == controlKindFunction {
				c.emitU32(drop + c.localCount)
				c.emitU32(ReturnTarget)
				continue
			}
			c.emitU32(drop)
			c.emitTarget(target)
		}
	}
	c.state.markUnreachable()
	return nil
}

func (c *transpiler) handleReturn() error {
	results := c.f.Type.Results
	if _, err := c.state.popAll(results); err != nil {
		return err
	}
	if c.live {
		c.emitOp(OpReturn)
		c.emitU32(uint32(len(results)))
		c.emitU32(uint32(len(c.state.values)) + c.localCount)
	}
	c.state.markUnreachable()
	return nil
}

// dropTo is how many operands a branch to target discards once its label values are popped.
func (c *transpiler) dropTo(target *controlFrame) uint32 {
	if !c.live {
		return 0
	}
	return uint32(len(c.state.values) - target.height)
}

// emitBranch emits an unconditional (OpBr) or conditional (OpBrIf) branch, using the shortest form.
func (c *transpiler) emitBranch(op Opcode, target *controlFrame, keep, drop uint32) {
	if target.kind == controlKindFunction {
		skip := -1
		if op == OpBrIf {
			c.emitOp(OpJumpUnless)
			skip = c.emitPlaceholder()
		}
		c.emitOp(OpReturn)
		c.emitU32(keep)
		c.emitU32(drop + c.localCount)
		if skip >= 0 {
			putUint32(c.out[skip:], uint32(len(c.out)))
		}
		return
	}

	if drop == 0 {
		if op == OpBr {
			c.emitOp(OpJump)
		} else {
			c.emitOp(OpJumpIf)
		}
	} else {
		c.emitOp(op)
		c.emitU32(keep)
		c.emitU32(drop)
	}
	c.emitTarget(target)
}

// emitTarget emits the jump target for a branch to target: its loop entry or its end.
func (c *transpiler) emitTarget(target *controlFrame) {
	pos := c.emitPlaceholder()
	if target.kind == controlKindLoop {
		target.queueEntryPatch(c.out, pos)
		return
	}
	target.queueExitPatch(pos)
	target.mergeBranchStores(&c.stores)
}

func (c *transpiler) handleCall() error {
	idx, err := c.readU32("function index")
	if err != nil {
		return err
	}
	loc, ft, err := c.index.Function(idx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCall, err)
	}
	if err = c.applySignature(&signature{in: ft.Params, out: ft.Results}); err != nil {
		return err
	}
	if c.live {
		if loc.Kind == wasm.LocationKindImported {
			c.emitOp(OpCallImport)
		} else {
			c.emitOp(OpCallLocal)
		}
		c.emitU32(loc.Position)
		c.stores.invalidateAll()
	}
	return nil
}

func (c *transpiler) handleCallIndirect() error {
	typeIdx, err := c.readU32("type index")
	if err != nil {
		return err
	}
	tableIdx, err := c.readU32("table index")
	if err != nil {
		return err
	}
	ft, err := c.index.Type(typeIdx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCall, err)
	}
	loc, _, err := c.index.Table(tableIdx)
	if err != nil {
		return fmt.Errorf("%w: call_indirect needs a table: %w", ErrInvalidCall, err)
	}
	if _, err = c.state.popExpect(wasm.ValueTypeI32); err != nil {
		return err
	}
	if err = c.applySignature(&signature{in: ft.Params, out: ft.Results}); err != nil {
		return err
	}
	if c.live {
		c.useStore(storeKindTable, loc)
		c.emitOp(OpCallIndirect)
		c.emitU32(typeIdx)
		c.stores.invalidateAll()
	}
	return nil
}

func (c *transpiler) handleSelect() error {
	if _, err := c.state.popExpect(wasm.ValueTypeI32); err != nil {
		return err
	}
	t1, err := c.state.pop()
	if err != nil {
		return err
	}
	t2, err := c.state.popExpect(t1)
	if err != nil {
		return err
	}
	if t1 == valueTypeUnknown {
		t1 = t2
	}
	c.state.push(t1)
	if c.live {
		c.emitOp(OpSelect)
	}
	return nil
}

func (c *transpiler) handleTypedSelect() error {
	n, err := c.readU32("select type count")
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: select must have exactly one type, but has %d", ErrMalformedImmediate, n)
	}
	raw, err := c.readRaw(1, "select type")
	if err != nil {
		return err
	}
	vt := raw[0]
	if !isNumericValueType(vt) {
		return fmt.Errorf("%w: invalid select type %#x", ErrMalformedImmediate, vt)
	}
	if err = c.applySignature(&signature{in: []wasm.ValueType{vt, vt, wasm.ValueTypeI32}, out: []wasm.ValueType{vt}}); err != nil {
		return err
	}
	if c.live {
		c.emitOp(OpSelect)
	}
	return nil
}

func (c *transpiler) handleLocal(op wasm.Opcode) error {
	idx, err := c.readU32("local index")
	if err != nil {
		return err
	}
	vt, ok := c.f.LocalType(idx)
	if !ok {
		return fmt.Errorf("%w: local %d of %d", ErrInvalidIndex, idx, c.localCount)
	}
	var emitted Opcode
	switch op {
	case wasm.OpcodeLocalGet:
		c.state.push(vt)
		emitted = OpLocalGet
	case wasm.OpcodeLocalSet:
		if _, err = c.state.popExpect(vt); err != nil {
			return err
		}
		emitted = OpLocalSet
	case wasm.OpcodeLocalTee:
		if _, err = c.state.popExpect(vt); err != nil {
			return err
		}
		c.state.push(vt)
		emitted = OpLocalTee
	}
	if c.live {
		c.emitOp(emitted)
		c.emitU32(idx)
	}
	return nil
}

func (c *transpiler) handleGlobal(op wasm.Opcode) error {
	idx, err := c.readU32("global index")
	if err != nil {
		return err
	}
	loc, gt, err := c.index.Global(idx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	wide := wasm.ElementSize(gt.ValType) == 8
	var emitted Opcode
	if op == wasm.OpcodeGlobalGet {
		c.state.push(gt.ValType)
		emitted = OpGlobalGet32
		if wide {
			emitted = OpGlobalGet64
		}
	} else {
		if !gt.Mutable {
			return fmt.Errorf("%w: global[%d] is immutable", ErrInvalidIndex, idx)
		}
		if _, err = c.state.popExpect(gt.ValType); err != nil {
			return err
		}
		emitted = OpGlobalSet32
		if wide {
			emitted = OpGlobalSet64
		}
	}
	if c.live {
		c.useStore(storeKindGlobal, loc)
		c.emitOp(emitted)
	}
	return nil
}

func (c *transpiler) handleMemorySizeGrow(op wasm.Opcode) error {
	loc, err := c.readMemory()
	if err != nil {
		return err
	}
	emitted := OpMemorySize
	if op == wasm.OpcodeMemoryGrow {
		if _, err = c.state.popExpect(wasm.ValueTypeI32); err != nil {
			return err
		}
		emitted = OpMemoryGrow
	}
	c.state.push(wasm.ValueTypeI32)
	if c.live {
		c.useStore(storeKindMemory, loc)
		c.emitOp(emitted)
		if op == wasm.OpcodeMemoryGrow {
			// The buffer was reallocated.
			c.stores.invalidate(storeKindMemory)
		}
	}
	return nil
}

func (c *transpiler) handleMemoryAccess(a *memoryAccess) error {
	align, err := c.readU32("alignment")
	if err != nil {
		return err
	}
	var memIdx uint32
	if align&memArgHasMemoryIndex != 0 {
		align &^= memArgHasMemoryIndex
		if memIdx, err = c.readU32("memory index"); err != nil {
			return err
		}
	}
	offset, err := c.readU32("offset")
	if err != nil {
		return err
	}
	width := a.width()
	if align > 3 || uint32(1)<<align > width {
		return fmt.Errorf("%w: alignment 2^%d exceeds the natural alignment %d", ErrMalformedImmediate, align, width)
	}
	loc, _, err := c.index.Memory(memIdx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}

	if a.store {
		if _, err = c.state.popExpect(a.vt); err != nil {
			return err
		}
		if _, err = c.state.popExpect(wasm.ValueTypeI32); err != nil {
			return err
		}
	} else {
		if _, err = c.state.popExpect(wasm.ValueTypeI32); err != nil {
			return err
		}
		c.state.push(a.vt)
	}

	if c.live {
		c.useStore(storeKindMemory, loc)
		op := a.opcode()
		if offset == 0 {
			c.emitOp(op)
		} else {
			c.emitOp(op + 1)
			c.emitU32(offset)
		}
	}
	return nil
}

func (c *transpiler) handleMisc() error {
	sub, err := c.readU32("misc opcode")
	if err != nil {
		return err
	}
	if sub > 0xff {
		return fmt.Errorf("%w: misc %#x", ErrUnsupportedOpcode, sub)
	}
	switch op := wasm.OpcodeMisc(sub); op {
	case wasm.OpcodeMiscI32TruncSatF32S, wasm.OpcodeMiscI32TruncSatF32U,
		wasm.OpcodeMiscI32TruncSatF64S, wasm.OpcodeMiscI32TruncSatF64U,
		wasm.OpcodeMiscI64TruncSatF32S, wasm.OpcodeMiscI64TruncSatF32U,
		wasm.OpcodeMiscI64TruncSatF64S, wasm.OpcodeMiscI64TruncSatF64U:
		if err = c.applySignature(truncSatSignature(op)); err != nil {
			return err
		}
		if c.live {
			c.emitOp(OpI32TruncSatF32S + op)
		}
	case wasm.OpcodeMiscMemoryCopy:
		dst, err := c.readMemory()
		if err != nil {
			return err
		}
		src, err := c.readMemory()
		if err != nil {
			return err
		}
		if dst != src {
			return fmt.Errorf("%w: memory.copy between different memories", ErrUnsupportedOpcode)
		}
		if err = c.applySignature(signature_I32I32I32_None); err != nil {
			return err
		}
		if c.live {
			c.useStore(storeKindMemory, dst)
			c.emitOp(OpMemoryCopy)
		}
	case wasm.OpcodeMiscMemoryFill:
		loc, err := c.readMemory()
		if err != nil {
			return err
		}
		if err = c.applySignature(signature_I32I32I32_None); err != nil {
			return err
		}
		if c.live {
			c.useStore(storeKindMemory, loc)
			c.emitOp(OpMemoryFill)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOpcode, wasm.MiscInstructionName(op))
	}
	return nil
}

// useStore emits a use marker unless the store at loc is already selected.
func (c *transpiler) useStore(k storeKind, loc wasm.Location) {
	if c.stores.matches(k, loc) {
		return
	}
	switch k {
	case storeKindMemory:
		c.emitOp(OpUseMemory)
	case storeKindTable:
		c.emitOp(OpUseTable)
	case storeKindGlobal:
		c.emitOp(OpUseGlobal)
	}
	c.out = append(c.out, byte(loc.Kind))
	c.emitU32(loc.Position)
	c.stores.set(k, loc)
}

func (c *transpiler) emitOp(op Opcode) {
	c.out = append(c.out, op)
}

func (c *transpiler) emitU32(v uint32) {
	c.out = append(c.out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (c *transpiler) emitU64(v uint64) {
	c.emitU32(uint32(v))
	c.emitU32(uint32(v >> 32))
}

// emitPlaceholder reserves a jump target and returns its position.
func (c *transpiler) emitPlaceholder() int {
	pos := len(c.out)
	c.emitU32(0)
	return pos
}

func (c *transpiler) readU32(what string) (uint32, error) {
	v, n, err := leb128.LoadUint32(c.body[c.pc:])
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedImmediate, leb128.DecodeError(what, err))
	}
	c.pc += n
	return v, nil
}

func (c *transpiler) readI32() (int32, error) {
	v, n, err := leb128.LoadInt32(c.body[c.pc:])
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedImmediate, leb128.DecodeError("i32.const", err))
	}
	c.pc += n
	return v, nil
}

func (c *transpiler) readI64() (int64, error) {
	v, n, err := leb128.LoadInt64(c.body[c.pc:])
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedImmediate, leb128.DecodeError("i64.const", err))
	}
	c.pc += n
	return v, nil
}

func (c *transpiler) readRaw(n uint64, what string) ([]byte, error) {
	if uint64(len(c.body))-c.pc < n {
		return nil, fmt.Errorf("%w: read %s: unexpected end of immediate", ErrMalformedImmediate, what)
	}
	ret := c.body[c.pc : c.pc+n]
	c.pc += n
	return ret, nil
}

// readLabel reads a branch depth and returns the frame it targets.
func (c *transpiler) readLabel() (*controlFrame, error) {
	depth, err := c.readU32("label")
	if err != nil {
		return nil, err
	}
	f, ok := c.state.frame(depth)
	if !ok {
		return nil, fmt.Errorf("%w: %d with %d frames open", ErrBranchDepth, depth, len(c.state.frames))
	}
	return f, nil
}

// readMemory reads a memory index and resolves it.
func (c *transpiler) readMemory() (wasm.Location, error) {
	idx, err := c.readU32("memory index")
	if err != nil {
		return wasm.Location{}, err
	}
	loc, _, err := c.index.Memory(idx)
	if err != nil {
		return wasm.Location{}, fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	return loc, nil
}

// readBlockType reads the type of a block, loop or if.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-blocktype
func (c *transpiler) readBlockType() (*wasm.FunctionType, error) {
	if c.pc >= uint64(len(c.body)) {
		return nil, fmt.Errorf("%w: read block type: unexpected end of immediate", ErrMalformedImmediate)
	}
	switch c.body[c.pc] {
	case 0x40:
		c.pc++
		return blockTypeEmpty, nil
	case wasm.ValueTypeI32:
		c.pc++
		return blockTypeI32, nil
	case wasm.ValueTypeI64:
		c.pc++
		return blockTypeI64, nil
	case wasm.ValueTypeF32:
		c.pc++
		return blockTypeF32, nil
	case wasm.ValueTypeF64:
		c.pc++
		return blockTypeF64, nil
	}
	v, n, err := leb128.LoadInt33AsInt64(c.body[c.pc:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedImmediate, leb128.DecodeError("block type", err))
	}
	if v < 0 {
		return nil, fmt.Errorf("%w: invalid block type %d", ErrMalformedImmediate, v)
	}
	c.pc += n
	ft, err := c.index.Type(wasm.Index(v))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	return ft, nil
}

func isNumericValueType(vt wasm.ValueType) bool {
	switch vt {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64:
		return true
	}
	return false
}

func valueTypesEqual(a, b []wasm.ValueType) bool {
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
