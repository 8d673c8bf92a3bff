// FILE: tracewisp/src/internal/format/raw_test.go
package format

import (
	"testing"

	"tracewisp/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawFormatter_Format(t *testing.T) {
	logger := newTestLogger()
	formatter, err := NewRawFormatter(logger)
	require.NoError(t, err)

	output, err := formatter.Format(core.NewRecord(core.CommandLog, "This is a raw trace line."))
	require.NoError(t, err)
	assert.Equal(t, "This is a raw trace line.\n", string(output))

	payloadOnly := core.NewRecord(core.CommandCustom, "")
	payloadOnly.Payload = []byte("opaque")
	output, err = formatter.Format(payloadOnly)
	require.NoError(t, err)
	assert.Equal(t, "opaque\n", string(output))
}
