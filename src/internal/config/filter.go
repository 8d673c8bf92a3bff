// FILE: tracewisp/src/internal/config/filter.go
package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter types
const (
	FilterTypeInclude = "include"
	FilterTypeExclude = "exclude"
)

// Filter pattern logic
const (
	FilterLogicOr  = "or"
	FilterLogicAnd = "and"
)

// FilterConfig selects records for a sink by regex over level, context and body
type FilterConfig struct {
	// "include" passes matching records, "exclude" drops them
	Type string `toml:"type"`

	// "or" matches any pattern, "and" requires all
	Logic string `toml:"logic"`

	Patterns []string `toml:"patterns"`
}

// RateLimitPolicy defines the action taken when a sink rate limit is exceeded
type RateLimitPolicy int

const (
	// PolicyPass lets every record through, effectively disabling the limiter
	PolicyPass RateLimitPolicy = iota
	// PolicyDrop drops records above the rate
	PolicyDrop
)

// SinkRateLimitConfig caps the record rate reaching one sink
type SinkRateLimitConfig struct {
	// Records per second, 0 disables
	Rate float64 `toml:"rate"`

	// Burst size, defaults to the rate
	Burst float64 `toml:"burst"`

	// "pass" or "drop"
	Policy string `toml:"policy"`

	// Records with a longer body are dropped, 0 = no limit
	MaxBodyBytes int64 `toml:"max_body_bytes"`
}

// ParsePolicy resolves the configured policy, defaulting to pass
func (c *SinkRateLimitConfig) ParsePolicy() RateLimitPolicy {
	if strings.ToLower(c.Policy) == "drop" {
		return PolicyDrop
	}
	return PolicyPass
}

func validateFilter(sinkName string, filterIndex int, cfg *FilterConfig) error {
	switch cfg.Type {
	case FilterTypeInclude, FilterTypeExclude, "":
	default:
		return fmt.Errorf("sink '%s' filter[%d]: invalid type '%s' (must be 'include' or 'exclude')",
			sinkName, filterIndex, cfg.Type)
	}

	switch cfg.Logic {
	case FilterLogicOr, FilterLogicAnd, "":
	default:
		return fmt.Errorf("sink '%s' filter[%d]: invalid logic '%s' (must be 'or' or 'and')",
			sinkName, filterIndex, cfg.Logic)
	}

	for i, pattern := range cfg.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("sink '%s' filter[%d] pattern[%d] '%s': invalid regex: %w",
				sinkName, filterIndex, i, pattern, err)
		}
	}
	return nil
}

func validateSinkRateLimit(sinkName string, cfg *SinkRateLimitConfig) error {
	if cfg == nil {
		return nil
	}
	if cfg.Rate < 0 {
		return fmt.Errorf("sink '%s': rate limit rate cannot be negative", sinkName)
	}
	if cfg.Burst < 0 {
		return fmt.Errorf("sink '%s': rate limit burst cannot be negative", sinkName)
	}
	if cfg.MaxBodyBytes < 0 {
		return fmt.Errorf("sink '%s': max body bytes cannot be negative", sinkName)
	}

	switch strings.ToLower(cfg.Policy) {
	case "", "pass", "drop":
	default:
		return fmt.Errorf("sink '%s': invalid rate limit policy '%s' (must be 'pass' or 'drop')",
			sinkName, cfg.Policy)
	}
	return nil
}
