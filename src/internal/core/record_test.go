// FILE: tracewisp/src/internal/core/record_test.go
package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord_IndexStrictlyIncreasing(t *testing.T) {
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	results := make([][]uint64, producers)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				results[p] = append(results[p], NewRecord(CommandLog, "x").Index)
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[uint64]bool, producers*perProducer)
	for _, indexes := range results {
		for i, idx := range indexes {
			assert.False(t, seen[idx], "index %d assigned twice", idx)
			seen[idx] = true
			if i > 0 {
				assert.Greater(t, idx, indexes[i-1], "indexes from one producer must increase")
			}
		}
	}
	assert.Len(t, seen, producers*perProducer)
}

func TestMessageRecord_Enrich(t *testing.T) {
	env := Environment{MachineName: "host-a", ProcessID: 4242, TimestampFormat: time.RFC3339}
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("FillsProcessFields", func(t *testing.T) {
		rec := NewRecord(CommandLog, "plain")
		rec.Enrich(env)

		assert.Equal(t, "host-a", rec.MachineName)
		assert.Equal(t, 4242, rec.ProcessID)
		assert.True(t, rec.Enriched())
	})

	t.Run("SubstitutesTokens", func(t *testing.T) {
		rec := NewRecord(CommandLog, "at %timestamp% in %method% on %machine%/%pid%")
		rec.Timestamp = ts
		rec.Method = "Handler.Serve"
		rec.FurtherDetails = "ctx=%context%"
		rec.Context = "worker-1"
		rec.Enrich(env)

		assert.Equal(t, "at 2024-05-01T10:00:00Z in Handler.Serve on host-a/4242", rec.Body)
		assert.Equal(t, "ctx=worker-1", rec.FurtherDetails)
	})

	t.Run("RunsOnce", func(t *testing.T) {
		rec := NewRecord(CommandLog, "%machine%")
		rec.Enrich(env)
		rec.Body = "%machine%"
		rec.Enrich(Environment{MachineName: "other"})

		assert.Equal(t, "%machine%", rec.Body, "second enrich must not substitute again")
		assert.Equal(t, "host-a", rec.MachineName)
	})

	t.Run("KeepsCallerSuppliedValues", func(t *testing.T) {
		rec := NewRecord(CommandLog, "x")
		rec.MachineName = "remote"
		rec.ProcessID = 7
		rec.Enrich(env)

		assert.Equal(t, "remote", rec.MachineName)
		assert.Equal(t, 7, rec.ProcessID)
	})
}

func TestMessageRecord_Clone(t *testing.T) {
	rec := NewRecord(CommandWarning, "original")
	rec.SetTag("k", "v")
	rec.Payload = []byte{1, 2, 3}

	c := rec.Clone()
	c.Tags["k"] = "changed"
	c.Payload[0] = 9
	c.Body = "changed"

	assert.Equal(t, "v", rec.Tags["k"])
	assert.Equal(t, byte(1), rec.Payload[0])
	assert.Equal(t, "original", rec.Body)
	assert.Equal(t, rec.Index, c.Index)
}

func TestCommandType(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  CommandType
		ok    bool
	}{
		{name: "Empty", input: "", want: CommandLog, ok: true},
		{name: "Warning", input: "warning", want: CommandWarning, ok: true},
		{name: "MixedCase", input: " Section_Start ", want: CommandSectionStart, ok: true},
		{name: "Unknown", input: "shout", want: CommandLog, ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseCommandType(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	assert.Equal(t, "ERROR", CommandExceptionBlock.Level())
	assert.Equal(t, "WARN", CommandAlert.Level())
	assert.Equal(t, "unknown", CommandType(99).String())
}

func TestSettings_BatchDue(t *testing.T) {
	testCases := []struct {
		name     string
		settings Settings
		depth    int
		since    time.Duration
		want     bool
	}{
		{name: "EmptyNeverDue", settings: DefaultSettings(), depth: 0, want: false},
		{name: "NoBatchingAlwaysDue", settings: DefaultSettings(), depth: 1, want: true},
		{name: "BelowCapacity", settings: Settings{BatchCapacity: 10, BatchDelayMS: 100000}, depth: 9, since: time.Second, want: false},
		{name: "AtCapacity", settings: Settings{BatchCapacity: 10, BatchDelayMS: 100000}, depth: 10, want: true},
		{name: "DelayElapsed", settings: Settings{BatchCapacity: 10, BatchDelayMS: 50}, depth: 1, since: 60 * time.Millisecond, want: true},
		{name: "DelayOnlyPending", settings: Settings{BatchDelayMS: 50}, depth: 100, since: time.Millisecond, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.settings.BatchDue(tc.depth, tc.since))
		})
	}
}
