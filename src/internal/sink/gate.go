// FILE: tracewisp/src/internal/sink/gate.go
package sink

import (
	"context"
	"fmt"
	"sync/atomic"

	"tracewisp/src/internal/core"
	"tracewisp/src/internal/filter"
)

// GatedSink drops records refused by a filter chain or rate limiter before
// handing the rest to the wrapped sink
type GatedSink struct {
	inner   MessageSink
	chain   *filter.Chain
	limiter *filter.RateLimiter
	gated   atomic.Uint64
}

// NewGatedSink wraps inner; chain and limiter may each be nil
func NewGatedSink(inner MessageSink, chain *filter.Chain, limiter *filter.RateLimiter) *GatedSink {
	return &GatedSink{inner: inner, chain: chain, limiter: limiter}
}

// Unwrap returns the wrapped sink
func (g *GatedSink) Unwrap() MessageSink {
	return g.inner
}

func (g *GatedSink) Name() string {
	return g.inner.Name()
}

func (g *GatedSink) Handle(ctx context.Context, batch []*core.MessageRecord) error {
	// The batch slice is shared across sinks, so passing records go to a new one
	passed := make([]*core.MessageRecord, 0, len(batch))
	for _, rec := range batch {
		if g.chain != nil && !g.chain.Apply(rec) {
			g.gated.Add(1)
			continue
		}
		if !g.limiter.Allow(rec) {
			g.gated.Add(1)
			continue
		}
		passed = append(passed, rec)
	}

	if len(passed) == 0 {
		return nil
	}
	return g.inner.Handle(ctx, passed)
}

func (g *GatedSink) Flush() error {
	return g.inner.Flush()
}

func (g *GatedSink) Status() string {
	return fmt.Sprintf("%s gated=%d", g.inner.Status(), g.gated.Load())
}

func (g *GatedSink) Cleanup() error {
	return g.inner.Cleanup()
}

// GetStats reports the wrapped sink's counters plus gate details
func (g *GatedSink) GetStats() SinkStats {
	var stats SinkStats
	if sp, ok := g.inner.(StatsProvider); ok {
		stats = sp.GetStats()
	} else {
		stats = SinkStats{Name: g.inner.Name()}
	}
	if stats.Details == nil {
		stats.Details = make(map[string]any)
	}
	stats.Details["gated"] = g.gated.Load()
	if g.chain != nil {
		stats.Details["filters"] = g.chain.GetStats()
	}
	stats.Details["rate_limit"] = g.limiter.GetStats()
	return stats
}
