// FILE: tracewisp/src/internal/sink/beats.go
package sink

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"
	"tracewisp/src/internal/version"

	lumberjack "github.com/elastic/go-lumber/client/v2"
	"github.com/google/uuid"
	"github.com/lixenwraith/log"
)

// BeatsSink ships record batches to a Logstash-compatible receiver over the
// lumberjack v2 protocol. A batch is written only once the receiver ACKs it.
type BeatsSink struct {
	name        string
	address     string
	timeout     time.Duration
	compression int
	ephemeralID string
	logger      *log.Logger

	mu     sync.Mutex
	client *lumberjack.SyncClient
	live   atomic.Bool

	*counters
	totalDials  atomic.Uint64
	lastSendErr atomic.Value // string
}

// NewBeatsSink creates the sink, the first Handle dials the receiver
func NewBeatsSink(name string, opts *config.BeatsSinkOptions, logger *log.Logger) (*BeatsSink, error) {
	if opts == nil {
		return nil, fmt.Errorf("beats sink options cannot be nil")
	}
	if _, _, err := net.SplitHostPort(opts.Address); err != nil {
		return nil, fmt.Errorf("invalid beats address (expected host:port): %w", err)
	}

	timeout := 30 * time.Second
	if opts.TimeoutSeconds > 0 {
		timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	}

	b := &BeatsSink{
		name:        name,
		address:     opts.Address,
		timeout:     timeout,
		compression: int(opts.CompressionLevel),
		ephemeralID: uuid.NewString(),
		logger:      logger,
		counters:    newCounters(),
	}
	b.lastSendErr.Store("")
	return b, nil
}

func (b *BeatsSink) Name() string {
	return b.name
}

// Handle sends the batch as one lumberjack window and waits for the ACK
func (b *BeatsSink) Handle(ctx context.Context, batch []*core.MessageRecord) error {
	if len(batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		client, err := lumberjack.SyncDial(b.address,
			lumberjack.Timeout(b.timeout),
			lumberjack.CompressionLevel(b.compression))
		if err != nil {
			b.fail(err)
			return fmt.Errorf("failed connection to beats server %s: %w", b.address, err)
		}
		b.client = client
		b.live.Store(true)
		b.totalDials.Add(1)
		b.logger.Info("msg", "Connected to beats server",
			"component", "beats_sink",
			"sink", b.name,
			"address", b.address)
	}

	events := make([]any, len(batch))
	for i, rec := range batch {
		events[i] = b.event(rec)
	}

	acked, err := b.client.Send(events)
	if err != nil {
		// Drop the connection, the next batch redials
		_ = b.client.Close()
		b.client = nil
		b.live.Store(false)
		b.fail(err)
		return fmt.Errorf("beats send failed after %d/%d events: %w", acked, len(events), err)
	}

	b.lastSendErr.Store("")
	b.processed(len(batch))
	return nil
}

func (b *BeatsSink) fail(err error) {
	b.totalFailed.Add(1)
	b.lastSendErr.Store(err.Error())
	b.logger.Debug("msg", "Beats delivery failed",
		"component", "beats_sink",
		"sink", b.name,
		"address", b.address,
		"error", err)
}

// event maps a record onto the field layout filebeat uses, so Logstash
// pipelines written for beats input accept it unchanged
func (b *BeatsSink) event(rec *core.MessageRecord) map[string]any {
	traceFields := map[string]any{
		"index":   rec.Index,
		"command": rec.CommandType.String(),
	}
	if rec.Context != "" {
		traceFields["context"] = rec.Context
	}
	if rec.FurtherDetails != "" {
		traceFields["details"] = rec.FurtherDetails
	}
	if rec.Method != "" {
		traceFields["method"] = rec.Method
	}
	if rec.File != "" {
		traceFields["file"] = rec.File
		traceFields["line"] = rec.Line
	}

	ev := map[string]any{
		"@timestamp": rec.Timestamp.UTC(),
		"message":    rec.Body,
		"log":        map[string]any{"level": rec.CommandType.Level()},
		"host":       map[string]any{"name": rec.MachineName, "hostname": rec.MachineName},
		"process": map[string]any{
			"pid":    rec.ProcessID,
			"thread": map[string]any{"id": rec.ThreadID},
		},
		"agent": map[string]any{
			"type":         "tracewisp",
			"version":      version.Short(),
			"ephemeral_id": b.ephemeralID,
		},
		"trace": traceFields,
	}
	if len(rec.Tags) > 0 {
		ev["labels"] = rec.Tags
	}
	return ev
}

// Flush is a no-op, Handle returns only after the receiver ACKs
func (b *BeatsSink) Flush() error {
	return nil
}

func (b *BeatsSink) Status() string {
	state := "idle"
	if b.live.Load() {
		state = "connected"
	}
	return fmt.Sprintf("beats(%s) %s processed=%d failed=%d",
		b.address, state, b.totalProcessed.Load(), b.totalFailed.Load())
}

// Cleanup closes the lumberjack connection
func (b *BeatsSink) Cleanup() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.client != nil {
		err = b.client.Close()
		b.client = nil
		b.live.Store(false)
	}

	b.logger.Info("msg", "Beats sink stopped",
		"component", "beats_sink",
		"sink", b.name,
		"total_processed", b.totalProcessed.Load(),
		"total_failed", b.totalFailed.Load())
	return err
}

func (b *BeatsSink) GetStats() SinkStats {
	lastErr, _ := b.lastSendErr.Load().(string)

	stats := b.stats("beats", b.name)
	if b.live.Load() {
		stats.ActiveConnections = 1
	}
	stats.Details = map[string]any{
		"address":      b.address,
		"compression":  b.compression,
		"ephemeral_id": b.ephemeralID,
		"total_dials":  b.totalDials.Load(),
		"last_error":   lastErr,
	}
	return stats
}
