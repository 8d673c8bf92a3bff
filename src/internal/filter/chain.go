// FILE: tracewisp/src/internal/filter/chain.go
package filter

import (
	"fmt"
	"sync/atomic"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"

	"github.com/lixenwraith/log"
)

// Chain applies filters in order; a record must pass all of them.
type Chain struct {
	filters []*Filter
	logger  *log.Logger

	totalProcessed atomic.Uint64
	totalPassed    atomic.Uint64
}

// NewChain builds a chain from filter configurations.
func NewChain(configs []config.FilterConfig, logger *log.Logger) (*Chain, error) {
	chain := &Chain{
		filters: make([]*Filter, 0, len(configs)),
		logger:  logger,
	}
	for i, cfg := range configs {
		f, err := NewFilter(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("filter[%d]: %w", i, err)
		}
		chain.filters = append(chain.filters, f)
	}
	return chain, nil
}

// Apply runs a record through every filter.
func (c *Chain) Apply(rec *core.MessageRecord) bool {
	c.totalProcessed.Add(1)

	for i, f := range c.filters {
		if !f.Apply(rec) {
			c.logger.Debug("msg", "Record filtered out",
				"component", "filter_chain",
				"filter_index", i,
				"filter_type", f.config.Type,
				"index", rec.Index)
			return false
		}
	}

	c.totalPassed.Add(1)
	return true
}

// Len returns the number of filters.
func (c *Chain) Len() int {
	return len(c.filters)
}

// GetStats returns chain and per-filter statistics.
func (c *Chain) GetStats() map[string]any {
	filterStats := make([]map[string]any, len(c.filters))
	for i, f := range c.filters {
		filterStats[i] = f.GetStats()
	}
	return map[string]any{
		"filter_count":    len(c.filters),
		"total_processed": c.totalProcessed.Load(),
		"total_passed":    c.totalPassed.Load(),
		"filters":         filterStats,
	}
}
