// FILE: tracewisp/src/internal/filter/limiter.go
package filter

import (
	"sync/atomic"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// RateLimiter caps the records reaching one sink.
type RateLimiter struct {
	limiter *rate.Limiter
	policy  config.RateLimitPolicy
	logger  *log.Logger

	maxBodyBytes       int64
	droppedBySizeCount atomic.Uint64
	droppedCount       atomic.Uint64
}

// NewRateLimiter returns nil when no limit is configured.
func NewRateLimiter(cfg *config.SinkRateLimitConfig, logger *log.Logger) *RateLimiter {
	if cfg == nil || (cfg.Rate <= 0 && cfg.MaxBodyBytes <= 0) {
		return nil
	}

	l := &RateLimiter{
		policy:       cfg.ParsePolicy(),
		logger:       logger,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.Rate
		}
		l.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(1, int(burst)))
	}
	return l
}

// Allow reports whether a record may pass. Nil-safe.
func (l *RateLimiter) Allow(rec *core.MessageRecord) bool {
	if l == nil || l.policy == config.PolicyPass {
		return true
	}

	if l.maxBodyBytes > 0 && int64(len(rec.Body)) > l.maxBodyBytes {
		l.droppedBySizeCount.Add(1)
		return false
	}

	if l.limiter != nil && !l.limiter.Allow() {
		l.droppedCount.Add(1)
		return false
	}
	return true
}

// Dropped returns the number of records refused so far.
func (l *RateLimiter) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.droppedCount.Load() + l.droppedBySizeCount.Load()
}

func (l *RateLimiter) GetStats() map[string]any {
	if l == nil {
		return map[string]any{"enabled": false}
	}

	stats := map[string]any{
		"enabled":               true,
		"dropped_total":         l.droppedCount.Load(),
		"dropped_by_size_total": l.droppedBySizeCount.Load(),
		"policy":                policyString(l.policy),
		"max_body_bytes":        l.maxBodyBytes,
	}
	if l.limiter != nil {
		stats["tokens"] = l.limiter.Tokens()
	}
	return stats
}

func policyString(p config.RateLimitPolicy) string {
	switch p {
	case config.PolicyDrop:
		return "drop"
	case config.PolicyPass:
		return "pass"
	default:
		return "unknown"
	}
}
