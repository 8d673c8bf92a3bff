// FILE: tracewisp/src/internal/router/inline_test.go
package router

import (
	"testing"
	"time"

	"tracewisp/src/internal/core"
	"tracewisp/src/internal/sink"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInline_DeliversInOrder(t *testing.T) {
	r := newTestInline(core.DefaultSettings())
	mem := sink.NewMemorySink("mem", 0)
	require.NoError(t, r.AddSink(mem))

	want := enqueueBodies(t, r, "inline", 200)
	assert.Eventually(t, func() bool { return mem.Len() == len(want) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, mem.Bodies())

	// Every enqueue is its own batch
	for _, size := range mem.BatchSizes() {
		assert.Equal(t, 1, size)
	}

	assert.NoError(t, r.Flush(t.Context()))
	require.NoError(t, r.Shutdown(t.Context()))
	assert.True(t, mem.CleanedUp())
	assert.Equal(t, Stopped, r.State())
}

func TestInline_ShutdownWaitsForInflight(t *testing.T) {
	r := newTestInline(core.DefaultSettings())
	mem := sink.NewMemorySink("mem", 0)
	require.NoError(t, r.AddSink(mem))

	want := enqueueBodies(t, r, "pending", 50)
	require.NoError(t, r.Shutdown(t.Context()))

	assert.Equal(t, want, mem.Bodies())
	assert.NoError(t, r.Enqueue(core.NewRecord(core.CommandLog, "late")))
	assert.Equal(t, uint64(1), r.Stats().Dropped)
}

func TestInline_SinkFailures(t *testing.T) {
	r := newTestInline(settingsWith(func(s *core.Settings) { s.SuppressHandlerErrors = false }))
	bad := &failingSink{name: "bad"}
	good := sink.NewMemorySink("good", 0)
	require.NoError(t, r.AddSink(bad))
	require.NoError(t, r.AddSink(good))

	enqueueBodies(t, r, "x", 3)
	assert.Eventually(t, func() bool { return r.ErrorCount() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, good.Len())

	require.NoError(t, r.Shutdown(t.Context()))

	require.NoError(t, r.ReInitialise())
	assert.Zero(t, r.ErrorCount())
	assert.Empty(t, r.Sinks())
	assert.Equal(t, Running, r.State())
	shutdown(t, r)
}

func TestInline_WriteOnlyOnFailure(t *testing.T) {
	r := newTestInline(settingsWith(func(s *core.Settings) { s.WriteOnlyOnFailure = true }))
	mem := sink.NewMemorySink("mem", 0)
	require.NoError(t, r.AddSink(mem))
	defer shutdown(t, r)

	require.NoError(t, r.Enqueue(core.NewRecord(core.CommandLog, "held")))
	r.FlagFailure()
	require.NoError(t, r.Enqueue(core.NewRecord(core.CommandError, "failure")))
	require.NoError(t, r.Enqueue(core.NewRecord(core.CommandLog, "after")))

	assert.Eventually(t, func() bool { return mem.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"failure"}, mem.Bodies())
	assert.Equal(t, uint64(2), r.Stats().Dropped)
}
