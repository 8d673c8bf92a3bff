// FILE: tracewisp/src/internal/source/stdin.go
package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"
	"tracewisp/src/internal/trace"

	"github.com/lixenwraith/log"
)

// StdinSource turns lines read from standard input into trace records
type StdinSource struct {
	config  *config.SourceConfig
	command core.CommandType
	writer  *trace.Writer
	reader  io.Reader
	logger  *log.Logger

	done     chan struct{} // closed when the input ends
	stopOnce sync.Once
	stop     chan struct{}

	// Statistics
	totalLines     atomic.Uint64
	failedEnqueues atomic.Uint64
	truncatedLines atomic.Uint64
	failures       atomic.Uint64
	startTime      time.Time
	lastLineTime   atomic.Value // time.Time
}

// SourceStats contains statistics about the source
type SourceStats struct {
	Type           string         `json:"type"`
	TotalLines     uint64         `json:"total_lines"`
	FailedEnqueues uint64         `json:"failed_enqueues"`
	TruncatedLines uint64         `json:"truncated_lines"`
	Failures       uint64         `json:"failures"`
	StartTime      time.Time      `json:"start_time"`
	LastLineTime   time.Time      `json:"last_line_time"`
	Details        map[string]any `json:"details,omitempty"`
}

func NewStdinSource(cfg *config.SourceConfig, writer *trace.Writer, logger *log.Logger) (*StdinSource, error) {
	return newStdinSource(cfg, writer, os.Stdin, logger)
}

func newStdinSource(cfg *config.SourceConfig, writer *trace.Writer, reader io.Reader, logger *log.Logger) (*StdinSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("source configuration required")
	}
	if writer == nil {
		return nil, fmt.Errorf("trace writer required")
	}
	command, ok := core.ParseCommandType(cfg.CommandType)
	if !ok {
		return nil, fmt.Errorf("unknown command type: %s", cfg.CommandType)
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 64 * 1024
	}

	s := &StdinSource{
		config:    cfg,
		command:   command,
		writer:    writer.WithContext(cfg.Context),
		reader:    reader,
		logger:    logger,
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
		startTime: time.Now(),
	}
	s.lastLineTime.Store(time.Time{})
	return s, nil
}

// Start begins reading in the background
func (s *StdinSource) Start() error {
	go s.readLoop()
	s.logger.Info("msg", "Stdin source started",
		"component", "stdin_source",
		"context", s.config.Context,
		"command_type", s.command.String())
	return nil
}

// Stop makes the source ignore any further input. A blocked read on stdin
// cannot be interrupted; the reader goroutine exits with the process.
func (s *StdinSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.logger.Info("msg", "Stdin source stopped",
			"component", "stdin_source",
			"lines", s.totalLines.Load())
	})
}

// Done is closed once the input reaches EOF or fails
func (s *StdinSource) Done() <-chan struct{} {
	return s.done
}

func (s *StdinSource) GetStats() SourceStats {
	lastLine, _ := s.lastLineTime.Load().(time.Time)

	return SourceStats{
		Type:           "stdin",
		TotalLines:     s.totalLines.Load(),
		FailedEnqueues: s.failedEnqueues.Load(),
		TruncatedLines: s.truncatedLines.Load(),
		Failures:       s.failures.Load(),
		StartTime:      s.startTime,
		LastLineTime:   lastLine,
		Details: map[string]any{
			"context":        s.config.Context,
			"failure_prefix": s.config.FailurePrefix,
			"max_line_bytes": s.config.MaxLineBytes,
		},
	}
}

func (s *StdinSource) readLoop() {
	defer close(s.done)

	maxLen := int(s.config.MaxLineBytes)
	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 0, min(maxLen, 4096)), maxLen)
	scanner.Split(s.splitLines(maxLen))

	for scanner.Scan() {
		select {
		case <-s.stop:
			return
		default:
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.handleLine(line)
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("msg", "Scanner error reading stdin",
			"component", "stdin_source",
			"error", err)
		return
	}
	s.logger.Info("msg", "Stdin reached end of input",
		"component", "stdin_source",
		"lines", s.totalLines.Load())
}

func (s *StdinSource) handleLine(line string) {
	s.totalLines.Add(1)
	s.lastLineTime.Store(time.Now())

	var err error
	if prefix := s.config.FailurePrefix; prefix != "" && strings.HasPrefix(line, prefix) {
		s.failures.Add(1)
		err = s.writer.Fail(strings.TrimSpace(strings.TrimPrefix(line, prefix)))
	} else {
		command := s.command
		if s.config.DetectCommand {
			if detected, ok := detectCommand(line); ok {
				command = detected
			}
		}
		err = s.writer.Emit(core.NewRecord(command, line))
	}

	if err != nil {
		s.failedEnqueues.Add(1)
		s.logger.Debug("msg", "Failed to enqueue stdin line",
			"component", "stdin_source",
			"error", err)
	}
}

// splitLines is bufio.ScanLines with over-long lines cut into maxLen chunks
// instead of failing the scan
func (s *StdinSource) splitLines(maxLen int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 && i <= maxLen {
			return i + 1, dropCR(data[:i]), nil
		}
		if len(data) >= maxLen {
			s.truncatedLines.Add(1)
			return maxLen, data[:maxLen], nil
		}
		if atEOF && len(data) > 0 {
			return len(data), dropCR(data), nil
		}
		return 0, nil, nil
	}
}

func dropCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[:len(data)-1]
	}
	return data
}

// detectCommand maps common level markers onto command types
func detectCommand(line string) (core.CommandType, bool) {
	patterns := []struct {
		patterns []string
		command  core.CommandType
	}{
		{[]string{"[FATAL]", "FATAL:", "PANIC:"}, core.CommandAlert},
		{[]string{"[ERROR]", "ERROR:", " ERROR ", "ERR:", "[ERR]"}, core.CommandError},
		{[]string{"[WARN]", "WARN:", " WARN ", "WARNING:", "[WARNING]"}, core.CommandWarning},
		{[]string{"[DEBUG]", "DEBUG:", " DEBUG ", "[DBG]", "DBG:", "[TRACE]", "TRACE:"}, core.CommandVerbose},
		{[]string{"[INFO]", "INFO:", " INFO ", "[INF]", "INF:"}, core.CommandLog},
	}

	upperLine := strings.ToUpper(line)
	for _, group := range patterns {
		for _, pattern := range group.patterns {
			if strings.Contains(upperLine, pattern) {
				return group.command, true
			}
		}
	}
	return core.CommandLog, false
}
