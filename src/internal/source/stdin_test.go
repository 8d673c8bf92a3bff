// FILE: tracewisp/src/internal/source/stdin_test.go
package source

import (
	"context"
	"strings"
	"testing"
	"time"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"
	"tracewisp/src/internal/router"
	"tracewisp/src/internal/sink"
	"tracewisp/src/internal/trace"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSource(t *testing.T, cfg *config.SourceConfig, settings core.Settings, input string) (*StdinSource, *sink.MemorySink) {
	t.Helper()
	logger := log.NewLogger()
	r := router.NewThreaded(router.Config{Settings: settings}, logger)
	mem := sink.NewMemorySink("mem", 0)
	require.NoError(t, r.AddSink(mem))

	src, err := newStdinSource(cfg, trace.New(r, ""), strings.NewReader(input), logger)
	require.NoError(t, err)
	require.NoError(t, src.Start())

	select {
	case <-src.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("source did not reach end of input")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	return src, mem
}

func TestStdinSource_Lines(t *testing.T) {
	cfg := &config.SourceConfig{Context: "app", CommandType: "verbose", DetectCommand: true}
	input := "starting\r\n\n[WARN] disk low\nERROR: write failed\nlast line without newline"

	src, mem := runSource(t, cfg, core.DefaultSettings(), input)

	records := mem.Records()
	require.Len(t, records, 4)
	assert.Equal(t, "starting", records[0].Body)
	assert.Equal(t, core.CommandVerbose, records[0].CommandType)
	assert.Equal(t, core.CommandWarning, records[1].CommandType)
	assert.Equal(t, core.CommandError, records[2].CommandType)
	assert.Equal(t, "last line without newline", records[3].Body)
	for _, rec := range records {
		assert.Equal(t, "app", rec.Context)
	}

	stats := src.GetStats()
	assert.Equal(t, uint64(4), stats.TotalLines)
	assert.Zero(t, stats.FailedEnqueues)
}

func TestStdinSource_DetectionDisabled(t *testing.T) {
	cfg := &config.SourceConfig{CommandType: "log"}
	_, mem := runSource(t, cfg, core.DefaultSettings(), "[ERROR] looks bad\n")

	require.Equal(t, 1, mem.Len())
	assert.Equal(t, core.CommandLog, mem.Records()[0].CommandType)
}

func TestStdinSource_FailurePrefixReleasesHeldTrace(t *testing.T) {
	settings := core.DefaultSettings()
	settings.WriteOnlyOnFailure = true
	cfg := &config.SourceConfig{CommandType: "log", FailurePrefix: "!!"}

	src, mem := runSource(t, cfg, settings, "step one\nstep two\n!! crashed\n")

	assert.Equal(t, []string{"step one", "step two", "crashed"}, mem.Bodies())
	assert.Equal(t, core.CommandError, mem.Records()[2].CommandType)
	assert.Equal(t, uint64(1), src.GetStats().Failures)
}

func TestStdinSource_LongLinesAreSplit(t *testing.T) {
	cfg := &config.SourceConfig{CommandType: "log", MaxLineBytes: 8}
	src, mem := runSource(t, cfg, core.DefaultSettings(), "0123456789abcdef\nshort\n")

	assert.Equal(t, []string{"01234567", "89abcdef", "short"}, mem.Bodies())
	assert.Equal(t, uint64(2), src.GetStats().TruncatedLines)
}

func TestNewStdinSource_Validation(t *testing.T) {
	w := trace.New(router.NewInline(router.Config{}, log.NewLogger()), "")

	_, err := NewStdinSource(nil, w, log.NewLogger())
	assert.Error(t, err)

	_, err = NewStdinSource(&config.SourceConfig{CommandType: "shout"}, w, log.NewLogger())
	assert.Error(t, err)

	_, err = NewStdinSource(&config.SourceConfig{}, nil, log.NewLogger())
	assert.Error(t, err)
}
