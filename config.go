package loadwasm

import (
	"go.uber.org/zap"

	"github.com/loadwasm/loadwasm/internal/wasm"
)

// LoaderConfig controls loader behavior, with the default implementation as NewLoaderConfig
type LoaderConfig struct {
	logger           *zap.Logger
	memoryLimitPages uint32
	segmentGrowth    bool
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &LoaderConfig{
	memoryLimitPages: wasm.MemoryLimitPages,
	segmentGrowth:    true,
}

// NewLoaderConfig returns the default configuration: no logging, memories up to 65536 pages (4GiB) and stores grown
// to fit their segments.
func NewLoaderConfig() *LoaderConfig {
	return defaultConfig.clone()
}

// clone ensures all fields are copied even if nil.
func (c *LoaderConfig) clone() *LoaderConfig {
	return &LoaderConfig{
		logger:           c.logger,
		memoryLimitPages: c.memoryLimitPages,
		segmentGrowth:    c.segmentGrowth,
	}
}

// WithLogger sets the logger used while compiling and instantiating modules. Defaults to zap.NewNop if nil.
//
// Messages are logged at debug level, so this is safe to share with the embedder's logger.
func (c *LoaderConfig) WithLogger(logger *zap.Logger) *LoaderConfig {
	ret := c.clone()
	ret.logger = logger
	return ret
}

// WithMemoryLimitPages reduces the maximum number of pages a module can define from 65536 pages (4GiB) to a lower
// value. Larger values are ignored.
//
// Notes:
//   - If a module defines no memory max limit, its memories can grow up to this value.
//   - If a module defines a memory min or max larger than this amount, it will fail to compile (Loader.Compile).
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#grow-mem
func (c *LoaderConfig) WithMemoryLimitPages(memoryLimitPages uint32) *LoaderConfig {
	ret := c.clone()
	if memoryLimitPages > wasm.MemoryLimitPages {
		memoryLimitPages = wasm.MemoryLimitPages
	}
	ret.memoryLimitPages = memoryLimitPages
	return ret
}

// WithSegmentGrowth controls what happens when a data or element segment doesn't fit the memory or table it
// initializes. When true, the default, the store grows to fit, within its maximum, and the segments are applied again.
// When false, Loader.Instantiate fails with ErrSegmentOutOfBounds.
func (c *LoaderConfig) WithSegmentGrowth(enabled bool) *LoaderConfig {
	ret := c.clone()
	ret.segmentGrowth = enabled
	return ret
}

func (c *LoaderConfig) getLogger() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}
