package wasm

import "errors"

// ErrAlreadyTranspiled is returned when a Function body is replaced twice.
var ErrAlreadyTranspiled = errors.New("function already transpiled")

// Function is the unit handed to the transpiler: a function defined in the module with its declared type, locals and
// instruction stream.
//
// Body starts as the raw binary-format instructions. Replace swaps it, exactly once, for the transpiled form. After
// that the raw form is gone: nothing else may keep reading it.
type Function struct {
	// Index is the position in the function index namespace, which counts imported functions first.
	Index Index

	// Type is the declared signature.
	Type *FunctionType

	// LocalTypes are the declared locals, not including parameters.
	LocalTypes []ValueType

	// Body is the instruction stream, raw before Replace and transpiled after.
	Body []byte

	transpiled bool
}

// Transpiled reports whether Body holds the transpiled form.
func (f *Function) Transpiled() bool {
	return f.transpiled
}

// Replace swaps Body for the transpiled instruction stream.
func (f *Function) Replace(body []byte) error {
	if f.transpiled {
		return ErrAlreadyTranspiled
	}
	f.Body = body
	f.transpiled = true
	return nil
}

// LocalType returns the type of the local at the given index, where parameters come first.
func (f *Function) LocalType(index Index) (ValueType, bool) {
	params := Index(len(f.Type.Params))
	if index < params {
		return f.Type.Params[index], true
	}
	index -= params
	if index < Index(len(f.LocalTypes)) {
		return f.LocalTypes[index], true
	}
	return 0, false
}

// LocalCount is the count of parameters plus declared locals.
func (f *Function) LocalCount() int {
	return len(f.Type.Params) + len(f.LocalTypes)
}
