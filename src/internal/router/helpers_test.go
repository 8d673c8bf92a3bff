// FILE: tracewisp/src/internal/router/helpers_test.go
package router

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"tracewisp/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/require"
)

var errSinkExploded = errors.New("sink exploded")

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func testEnv() *core.Environment {
	return &core.Environment{MachineName: "test-host", ProcessID: 1234, TimestampFormat: time.RFC3339}
}

func newTestThreaded(settings core.Settings) *Threaded {
	return NewThreaded(Config{Settings: settings, Environment: testEnv()}, newTestLogger())
}

func newTestInline(settings core.Settings) *Inline {
	return NewInline(Config{Mode: ModeInline, Settings: settings, Environment: testEnv()}, newTestLogger())
}

func shutdown(t *testing.T, r Router) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.Shutdown(ctx)
}

func flush(t *testing.T, r Router) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Flush(ctx)
}

func enqueueBodies(t *testing.T, r Router, prefix string, n int) []string {
	t.Helper()
	bodies := make([]string, n)
	for i := 0; i < n; i++ {
		bodies[i] = fmt.Sprintf("%s-%d", prefix, i)
		require.NoError(t, r.Enqueue(core.NewRecord(core.CommandLog, bodies[i])))
	}
	return bodies
}

func settingsWith(mod func(*core.Settings)) core.Settings {
	s := core.DefaultSettings()
	mod(&s)
	return s
}

// failingSink rejects every batch
type failingSink struct {
	name  string
	calls atomic.Int64
}

func (f *failingSink) Name() string { return f.name }

func (f *failingSink) Handle(context.Context, []*core.MessageRecord) error {
	f.calls.Add(1)
	return errSinkExploded
}

func (f *failingSink) Flush() error   { return nil }
func (f *failingSink) Status() string { return fmt.Sprintf("failing calls=%d", f.calls.Load()) }
func (f *failingSink) Cleanup() error { return nil }

// panickingSink panics on every batch
type panickingSink struct{}

func (panickingSink) Name() string { return "panicky" }

func (panickingSink) Handle(context.Context, []*core.MessageRecord) error {
	panic("handler bug")
}

func (panickingSink) Flush() error   { return nil }
func (panickingSink) Status() string { panic("status bug") }
func (panickingSink) Cleanup() error { return nil }

// slowSink counts records and sleeps per batch, holding no references
type slowSink struct {
	delay   time.Duration
	records atomic.Uint64
}

func (s *slowSink) Name() string { return "slow" }

func (s *slowSink) Handle(_ context.Context, batch []*core.MessageRecord) error {
	time.Sleep(s.delay)
	s.records.Add(uint64(len(batch)))
	return nil
}

func (s *slowSink) Flush() error   { return nil }
func (s *slowSink) Status() string { return fmt.Sprintf("slow records=%d", s.records.Load()) }
func (s *slowSink) Cleanup() error { return nil }
