package wasm

import "errors"

// Errors returned while binding and initializing a module. They are wrapped with details, so compare with errors.Is.
var (
	// ErrImportMissing is returned when an import has no binding.
	ErrImportMissing = errors.New("import not found")
	// ErrImportMismatch is returned when a binding doesn't match the import's declared type or limits.
	ErrImportMismatch = errors.New("import type mismatch")
	// ErrSegmentOutOfBounds is returned when a segment doesn't fit its store and growing is disabled or impossible.
	ErrSegmentOutOfBounds = errors.New("segment out of bounds")
)
