package transpiler

import (
	"errors"
	"fmt"

	"github.com/loadwasm/loadwasm/internal/wasm"
)

// Validation failures. A ValidationError unwraps to exactly one of these.
var (
	// ErrStackUnderflow is returned when an instruction pops below the height of its enclosing frame.
	ErrStackUnderflow = errors.New("stack underflow")
	// ErrTypeMismatch is returned when an operand has the wrong type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrStackMismatch is returned when a frame closes with the wrong count of operands.
	ErrStackMismatch = errors.New("stack height mismatch")
	// ErrMalformedControl is returned for else without if, frames left open, or bytes after the final end.
	ErrMalformedControl = errors.New("malformed control")
	// ErrBranchDepth is returned when a branch targets more frames than are open.
	ErrBranchDepth = errors.New("branch depth out of range")
	// ErrInvalidCall is returned when a call or call_indirect has no valid callee or table.
	ErrInvalidCall = errors.New("invalid call")
	// ErrInvalidIndex is returned when a local, global or memory index doesn't exist, or a global isn't writable.
	ErrInvalidIndex = errors.New("invalid index")
	// ErrUnsupportedOpcode is returned for opcodes outside the supported instruction set.
	ErrUnsupportedOpcode = errors.New("unsupported opcode")
	// ErrMalformedImmediate is returned when an immediate can't be decoded or is out of range.
	ErrMalformedImmediate = errors.New("malformed immediate")
)

// ValidationError is the single error reported for a function that didn't validate. Loading the module must stop.
type ValidationError struct {
	// FunctionIndex is the position of the function in the function index namespace.
	FunctionIndex wasm.Index
	// Offset is the position in the raw body of the instruction that failed.
	Offset uint64
	// Opcode is the failing instruction.
	Opcode wasm.Opcode
	// Err wraps one of the sentinel errors of this package.
	Err error
}

// Error implements error
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid function[%d]: %s at offset %#x: %v",
		e.FunctionIndex, wasm.InstructionName(e.Opcode), e.Offset, e.Err)
}

// Unwrap allows errors.Is against the sentinel errors.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func typeMismatchError(expected, actual wasm.ValueType) error {
	return fmt.Errorf("%w: expected %s, but was %s", ErrTypeMismatch, wasm.ValueTypeName(expected), wasm.ValueTypeName(actual))
}

func typeCountError(kind controlKind, expected, actual int) error {
	return fmt.Errorf("%w: %s must leave %d values, but leaves %d", ErrStackMismatch, kind, expected, actual)
}
