// FILE: tracewisp/src/internal/sink/sink.go
package sink

import (
	"context"
	"sync/atomic"
	"time"

	"tracewisp/src/internal/core"
)

// MessageSink is an output destination registered with a router.
// Handle is called from the router's fan-out goroutine and may block on I/O;
// batches handed to one sink arrive in FIFO order and never overlap.
type MessageSink interface {
	// Name identifies the sink in logs and status output
	Name() string

	// Handle writes a batch of records
	Handle(ctx context.Context, batch []*core.MessageRecord) error

	// Flush forces buffered output out
	Flush() error

	// Status returns a one-line human readable state
	Status() string

	// Cleanup releases resources, called once when the router stops
	Cleanup() error
}

// StatsProvider is implemented by sinks that expose counters
type StatsProvider interface {
	GetStats() SinkStats
}

// SinkStats contains statistics about a sink
type SinkStats struct {
	Type              string         `json:"type"`
	Name              string         `json:"name"`
	TotalProcessed    uint64         `json:"total_processed"`
	TotalBatches      uint64         `json:"total_batches"`
	TotalFailed       uint64         `json:"total_failed"`
	ActiveConnections int64          `json:"active_connections"`
	StartTime         time.Time      `json:"start_time"`
	LastProcessed     time.Time      `json:"last_processed"`
	Details           map[string]any `json:"details,omitempty"`
}

// counters is the shared statistics block embedded by concrete sinks
type counters struct {
	startTime      time.Time
	totalProcessed atomic.Uint64
	totalBatches   atomic.Uint64
	totalFailed    atomic.Uint64
	lastProcessed  atomic.Value // time.Time
}

func newCounters() *counters {
	c := &counters{startTime: time.Now()}
	c.lastProcessed.Store(time.Time{})
	return c
}

func (c *counters) processed(n int) {
	c.totalBatches.Add(1)
	c.totalProcessed.Add(uint64(n))
	c.lastProcessed.Store(time.Now())
}

func (c *counters) stats(typ, name string) SinkStats {
	lastProc, _ := c.lastProcessed.Load().(time.Time)
	return SinkStats{
		Type:           typ,
		Name:           name,
		TotalProcessed: c.totalProcessed.Load(),
		TotalBatches:   c.totalBatches.Load(),
		TotalFailed:    c.totalFailed.Load(),
		StartTime:      c.startTime,
		LastProcessed:  lastProc,
	}
}
