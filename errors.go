package loadwasm

import (
	"github.com/loadwasm/loadwasm/internal/transpiler"
	"github.com/loadwasm/loadwasm/internal/wasm"
)

// ValidationError is returned by Loader.Compile for the first function which doesn't validate. It unwraps to one of
// the validation errors below.
type ValidationError = transpiler.ValidationError

// StoreBoundsError is returned when a store can't be allocated at the size its declaration requires.
type StoreBoundsError = wasm.StoreBoundsError

// Validation failures. Compare with errors.Is.
var (
	ErrStackUnderflow     = transpiler.ErrStackUnderflow
	ErrTypeMismatch       = transpiler.ErrTypeMismatch
	ErrStackMismatch      = transpiler.ErrStackMismatch
	ErrMalformedControl   = transpiler.ErrMalformedControl
	ErrBranchDepth        = transpiler.ErrBranchDepth
	ErrInvalidCall        = transpiler.ErrInvalidCall
	ErrInvalidIndex       = transpiler.ErrInvalidIndex
	ErrUnsupportedOpcode  = transpiler.ErrUnsupportedOpcode
	ErrMalformedImmediate = transpiler.ErrMalformedImmediate
)

// Instantiation failures. Compare with errors.Is.
var (
	ErrImportMissing      = wasm.ErrImportMissing
	ErrImportMismatch     = wasm.ErrImportMismatch
	ErrSegmentOutOfBounds = wasm.ErrSegmentOutOfBounds
)
