//go:build !loadwasm_debug

package buildoptions

// IsDebugMode true if the transpiler should trace every emitted instruction. This can be used to
// insert debug-only logging in the main code as `if buildoptions.IsDebugMode { ... }` block,
// which will be optimized out by the final binary of loadwasm users.
const IsDebugMode = false
