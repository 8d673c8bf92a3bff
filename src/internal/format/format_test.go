// FILE: tracewisp/src/internal/format/format_test.go
package format

import (
	"testing"

	"tracewisp/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func TestNewFormatter(t *testing.T) {
	logger := newTestLogger()

	testCases := []struct {
		name        string
		cfg         *config.FormatConfig
		expected    string
		expectError bool
	}{
		{
			name:     "JSONFormatter",
			cfg:      &config.FormatConfig{Type: "json"},
			expected: "json",
		},
		{
			name:     "TextFormatter",
			cfg:      &config.FormatConfig{Type: "txt"},
			expected: "txt",
		},
		{
			name:     "RawFormatter",
			cfg:      &config.FormatConfig{Type: "raw"},
			expected: "raw",
		},
		{
			name:     "NilDefaultsToText",
			cfg:      nil,
			expected: "txt",
		},
		{
			name:        "UnknownFormatter",
			cfg:         &config.FormatConfig{Type: "xml"},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			formatter, err := NewFormatter(tc.cfg, logger)
			if tc.expectError {
				assert.Error(t, err)
				assert.Nil(t, formatter)
			} else {
				require.NoError(t, err)
				require.NotNil(t, formatter)
				assert.Equal(t, tc.expected, formatter.Name())
			}
		})
	}
}
