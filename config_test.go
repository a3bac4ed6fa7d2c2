package loadwasm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoaderConfig(t *testing.T) {
	logger := zap.NewExample()
	tests := []struct {
		name     string
		with     func(*LoaderConfig) *LoaderConfig
		expected *LoaderConfig
	}{
		{
			name: "WithLogger",
			with: func(c *LoaderConfig) *LoaderConfig {
				return c.WithLogger(logger)
			},
			expected: &LoaderConfig{logger: logger, memoryLimitPages: 65536, segmentGrowth: true},
		},
		{
			name: "WithMemoryLimitPages",
			with: func(c *LoaderConfig) *LoaderConfig {
				return c.WithMemoryLimitPages(1)
			},
			expected: &LoaderConfig{memoryLimitPages: 1, segmentGrowth: true},
		},
		{
			name: "WithMemoryLimitPages above the limit",
			with: func(c *LoaderConfig) *LoaderConfig {
				return c.WithMemoryLimitPages(70000)
			},
			expected: &LoaderConfig{memoryLimitPages: 65536, segmentGrowth: true},
		},
		{
			name: "WithSegmentGrowth",
			with: func(c *LoaderConfig) *LoaderConfig {
				return c.WithSegmentGrowth(false)
			},
			expected: &LoaderConfig{memoryLimitPages: 65536},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			input := NewLoaderConfig()
			rc := tc.with(input)
			require.Equal(t, tc.expected, rc)
			// The source wasn't modified
			require.Equal(t, NewLoaderConfig(), input)
		})
	}
}

func TestLoaderConfig_getLogger(t *testing.T) {
	require.NotNil(t, NewLoaderConfig().getLogger())

	logger := zap.NewExample()
	require.Equal(t, logger, NewLoaderConfig().WithLogger(logger).getLogger())
}
