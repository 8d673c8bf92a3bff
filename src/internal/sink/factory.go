// FILE: tracewisp/src/internal/sink/factory.go
package sink

import (
	"fmt"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/filter"
	"tracewisp/src/internal/format"

	"github.com/lixenwraith/log"
)

// New builds and starts a sink from its configuration, gating it when
// filters or a rate limit are configured
func New(cfg config.SinkConfig, logger *log.Logger) (MessageSink, error) {
	chain, err := filter.NewChain(cfg.Filters, logger)
	if err != nil {
		return nil, fmt.Errorf("sink '%s': %w", cfg.Name, err)
	}
	limiter := filter.NewRateLimiter(cfg.RateLimit, logger)

	s, err := newSink(cfg, logger)
	if err != nil {
		return nil, err
	}
	if chain.Len() == 0 && limiter == nil {
		return s, nil
	}
	return NewGatedSink(s, chain, limiter), nil
}

func newSink(cfg config.SinkConfig, logger *log.Logger) (MessageSink, error) {
	formatter, err := format.NewFormatter(cfg.Format, logger)
	if err != nil {
		return nil, fmt.Errorf("sink '%s': %w", cfg.Name, err)
	}

	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}

	switch cfg.Type {
	case "console":
		return NewConsoleSink(name, cfg.Console, logger, formatter)
	case "file":
		return NewFileSink(name, cfg.File, logger, formatter)
	case "tcp":
		s, err := NewTCPSink(name, cfg.TCP, logger, formatter)
		if err != nil {
			return nil, err
		}
		if err := s.Start(); err != nil {
			return nil, err
		}
		return s, nil
	case "tcp_client":
		s, err := NewTCPClientSink(name, cfg.TCPClient, logger, formatter)
		if err != nil {
			return nil, err
		}
		if err := s.Start(); err != nil {
			return nil, err
		}
		return s, nil
	case "http_client":
		return NewHTTPClientSink(name, cfg.HTTPClient, logger, formatter)
	case "beats":
		return NewBeatsSink(name, cfg.Beats, logger)
	case "memory":
		capacity := 0
		if cfg.Memory != nil {
			capacity = int(cfg.Memory.Capacity)
		}
		return NewMemorySink(name, capacity), nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}

// NewAll builds every configured sink, cleaning up already built ones on failure
func NewAll(cfgs []config.SinkConfig, logger *log.Logger) ([]MessageSink, error) {
	sinks := make([]MessageSink, 0, len(cfgs))
	for _, cfg := range cfgs {
		s, err := New(cfg, logger)
		if err != nil {
			for _, built := range sinks {
				_ = built.Cleanup()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
