// FILE: tracewisp/src/internal/sink/console.go
package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"
	"tracewisp/src/internal/format"

	"github.com/lixenwraith/log"
)

// ConsoleSink writes formatted records to stdout, stderr, or both split by level
type ConsoleSink struct {
	name      string
	target    string
	stdout    io.Writer
	stderr    io.Writer
	mu        sync.Mutex
	logger    *log.Logger
	formatter format.Formatter

	*counters
}

// NewConsoleSink creates a console sink writing to the process standard streams
func NewConsoleSink(name string, opts *config.ConsoleSinkOptions, logger *log.Logger, formatter format.Formatter) (*ConsoleSink, error) {
	return newConsoleSink(name, opts, logger, formatter, os.Stdout, os.Stderr)
}

func newConsoleSink(name string, opts *config.ConsoleSinkOptions, logger *log.Logger, formatter format.Formatter, stdout, stderr io.Writer) (*ConsoleSink, error) {
	if formatter == nil {
		return nil, fmt.Errorf("console sink requires a formatter")
	}

	target := "stdout"
	if opts != nil && opts.Target != "" {
		target = opts.Target
	}
	switch target {
	case "stdout", "stderr", "split":
	default:
		return nil, fmt.Errorf("invalid console target: %s", target)
	}

	return &ConsoleSink{
		name:      name,
		target:    target,
		stdout:    stdout,
		stderr:    stderr,
		logger:    logger,
		formatter: formatter,
		counters:  newCounters(),
	}, nil
}

func (s *ConsoleSink) Name() string {
	return s.name
}

// Handle formats the batch and writes it with one call per stream
func (s *ConsoleSink) Handle(ctx context.Context, batch []*core.MessageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var outBuf, errBuf bytes.Buffer
	for _, rec := range batch {
		formatted, err := s.formatter.Format(rec)
		if err != nil {
			s.logger.Error("msg", "Failed to format record for console",
				"component", "console_sink",
				"sink", s.name,
				"index", rec.Index,
				"error", err)
			continue
		}

		switch s.target {
		case "stderr":
			errBuf.Write(formatted)
		case "split":
			// Split mode routes WARN/ERROR to stderr
			if level := rec.CommandType.Level(); level == "ERROR" || level == "WARN" {
				errBuf.Write(formatted)
			} else {
				outBuf.Write(formatted)
			}
		default:
			outBuf.Write(formatted)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if outBuf.Len() > 0 {
		if _, err := s.stdout.Write(outBuf.Bytes()); err != nil {
			s.totalFailed.Add(1)
			return fmt.Errorf("stdout write failed: %w", err)
		}
	}
	if errBuf.Len() > 0 {
		if _, err := s.stderr.Write(errBuf.Bytes()); err != nil {
			s.totalFailed.Add(1)
			return fmt.Errorf("stderr write failed: %w", err)
		}
	}

	s.processed(len(batch))
	return nil
}

// Flush is a no-op, console writes are unbuffered
func (s *ConsoleSink) Flush() error {
	return nil
}

func (s *ConsoleSink) Status() string {
	return fmt.Sprintf("console(%s) processed=%d failed=%d",
		s.target, s.totalProcessed.Load(), s.totalFailed.Load())
}

func (s *ConsoleSink) Cleanup() error {
	s.logger.Debug("msg", "Console sink cleaned up",
		"component", "console_sink",
		"sink", s.name,
		"total_processed", s.totalProcessed.Load())
	return nil
}

func (s *ConsoleSink) GetStats() SinkStats {
	stats := s.stats("console", s.name)
	stats.Details = map[string]any{
		"target": s.target,
	}
	return stats
}
