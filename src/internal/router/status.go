// FILE: tracewisp/src/internal/router/status.go
package router

import (
	"fmt"
	"strings"

	"tracewisp/src/internal/sink"
)

// Stats is a point-in-time snapshot of router counters
type Stats struct {
	Variant    string           `json:"variant"`
	State      string           `json:"state"`
	QueueDepth int              `json:"queue_depth"`
	Enqueued   uint64           `json:"enqueued"`
	Delivered  uint64           `json:"delivered"`
	Batches    uint64           `json:"batches"`
	Dropped    uint64           `json:"dropped"`
	Evicted    uint64           `json:"evicted"`
	ErrorCount uint64           `json:"error_count"`
	SinkCount  int              `json:"sink_count"`
	Sinks      []sink.SinkStats `json:"sinks,omitempty"`
}

func (b *base) collectStats(depth int, evicted uint64) Stats {
	sinks := b.registry.Snapshot()
	stats := Stats{
		Variant:    b.variant,
		State:      b.State().String(),
		QueueDepth: depth,
		Enqueued:   b.enqueued.Load(),
		Delivered:  b.delivered.Load(),
		Batches:    b.batches.Load(),
		Dropped:    b.dropped.Load(),
		Evicted:    evicted,
		ErrorCount: b.errorCount.Load(),
		SinkCount:  len(sinks),
	}

	for _, s := range sinks {
		if sp, ok := s.(sink.StatsProvider); ok {
			stats.Sinks = append(stats.Sinks, sp.GetStats())
		}
	}
	return stats
}

// diagnosticStatus renders error count, queue depth and every sink's status line
func (b *base) diagnosticStatus(depth int, evicted uint64) string {
	sinks := b.registry.Snapshot()

	var sb strings.Builder
	fmt.Fprintf(&sb, "router: %s (%s)\n", b.variant, b.State())
	fmt.Fprintf(&sb, "queue depth: %d\n", depth)
	fmt.Fprintf(&sb, "error count: %d\n", b.errorCount.Load())
	fmt.Fprintf(&sb, "records: enqueued=%d delivered=%d batches=%d dropped=%d evicted=%d\n",
		b.enqueued.Load(), b.delivered.Load(), b.batches.Load(), b.dropped.Load(), evicted)
	fmt.Fprintf(&sb, "sinks: %d\n", len(sinks))
	for _, s := range sinks {
		fmt.Fprintf(&sb, "  %s: %s\n", s.Name(), sinkStatus(s))
	}
	return sb.String()
}

// sinkStatus guards against a sink panicking while reporting
func sinkStatus(s sink.MessageSink) (status string) {
	defer func() {
		if p := recover(); p != nil {
			status = fmt.Sprintf("status unavailable: %v", p)
		}
	}()
	return s.Status()
}
