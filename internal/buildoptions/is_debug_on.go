//go:build loadwasm_debug

package buildoptions

// IsDebugMode is enabled by the loadwasm_debug build tag.
const IsDebugMode = true
