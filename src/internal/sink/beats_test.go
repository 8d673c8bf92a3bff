// FILE: tracewisp/src/internal/sink/beats_test.go
package sink

import (
	"context"
	"net"
	"testing"
	"time"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"

	server "github.com/elastic/go-lumber/server/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeatsSink_DeliversAckedBatch(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv, err := server.NewWithListener(ln)
	require.NoError(t, err)
	defer srv.Close()

	s, err := NewBeatsSink("logstash", &config.BeatsSinkOptions{Address: ln.Addr().String(), TimeoutSeconds: 5}, newTestLogger())
	require.NoError(t, err)

	warn := core.NewRecord(core.CommandWarning, "disk low")
	warn.Context = "worker"
	warn.SetTag("team", "infra")
	batch := []*core.MessageRecord{core.NewRecord(core.CommandLog, "hello"), warn}

	received := make(chan []any, 1)
	go func() {
		b, ok := <-srv.ReceiveChan()
		if !ok {
			return
		}
		received <- b.Events
		b.ACK()
	}()

	require.NoError(t, s.Handle(context.Background(), batch))

	var events []any
	select {
	case events = <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("receiver got no batch")
	}
	require.Len(t, events, 2)

	second, ok := events[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "disk low", second["message"])
	assert.Equal(t, "WARN", second["log"].(map[string]any)["level"])
	assert.Equal(t, "worker", second["trace"].(map[string]any)["context"])
	assert.Equal(t, "infra", second["labels"].(map[string]any)["team"])

	stats := s.GetStats()
	assert.Equal(t, uint64(2), stats.TotalProcessed)
	assert.Equal(t, int64(1), stats.ActiveConnections)
	assert.Contains(t, s.Status(), "connected")
	require.NoError(t, s.Cleanup())
}

func TestBeatsSink_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s, err := NewBeatsSink("logstash", &config.BeatsSinkOptions{Address: addr, TimeoutSeconds: 1}, newTestLogger())
	require.NoError(t, err)

	err = s.Handle(context.Background(), records(core.CommandLog))
	require.Error(t, err)
	assert.Equal(t, uint64(1), s.GetStats().TotalFailed)
	assert.NotEmpty(t, s.GetStats().Details["last_error"])
	assert.Contains(t, s.Status(), "idle")
	require.NoError(t, s.Cleanup())
}

func TestBeatsSink_InvalidAddress(t *testing.T) {
	_, err := NewBeatsSink("logstash", &config.BeatsSinkOptions{Address: "logstash"}, newTestLogger())
	assert.Error(t, err)
	_, err = NewBeatsSink("logstash", nil, newTestLogger())
	assert.Error(t, err)
}
