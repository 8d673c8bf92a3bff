// FILE: tracewisp/src/internal/sink/file.go
package sink

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"
	"tracewisp/src/internal/format"

	"github.com/lixenwraith/log"
)

// Writes records to files with size and retention based rotation
type FileSink struct {
	name      string
	opts      *config.FileSinkOptions
	writer    *log.Logger // Internal logger instance for file writing
	logger    *log.Logger // Application logger
	formatter format.Formatter
	closed    atomic.Bool

	*counters
}

// Creates a new file sink and starts its writer
func NewFileSink(name string, opts *config.FileSinkOptions, logger *log.Logger, formatter format.Formatter) (*FileSink, error) {
	if opts == nil {
		opts = &config.FileSinkOptions{}
	}
	if formatter == nil {
		return nil, fmt.Errorf("file sink requires a formatter")
	}

	directory := opts.Directory
	if directory == "" {
		directory = "./"
		logger.Warn("msg", "No directory provided, current directory will be used",
			"component", "file_sink",
			"sink", name)
	}

	fileName := opts.Name
	if fileName == "" {
		fileName = "tracewisp.output"
		logger.Warn("msg", fmt.Sprintf("No filename provided, %s will be used", fileName),
			"component", "file_sink",
			"sink", name)
	}

	// Create configuration for the internal log writer
	writerConfig := log.DefaultConfig()
	writerConfig.Directory = directory
	writerConfig.Name = fileName
	writerConfig.EnableConsole = false // File only
	writerConfig.ShowTimestamp = false // Formatter already renders timestamps
	writerConfig.ShowLevel = false     // Formatter already renders levels

	if opts.MaxSizeMB > 0 {
		writerConfig.MaxSizeKB = opts.MaxSizeMB * 1000
	}
	if opts.MaxTotalSizeMB >= 0 {
		writerConfig.MaxTotalSizeKB = opts.MaxTotalSizeMB * 1000
	}
	if opts.RetentionHours > 0 {
		writerConfig.RetentionPeriodHrs = opts.RetentionHours
	}
	if opts.MinDiskFreeMB > 0 {
		writerConfig.MinDiskFreeKB = opts.MinDiskFreeMB * 1000
	}

	writer := log.NewLogger()
	if err := writer.ApplyConfig(writerConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize file writer: %w", err)
	}
	if err := writer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start file writer: %w", err)
	}

	logger.Info("msg", "File sink started",
		"component", "file_sink",
		"sink", name,
		"directory", directory,
		"name", fileName)

	return &FileSink{
		name:      name,
		opts:      opts,
		writer:    writer,
		logger:    logger,
		formatter: formatter,
		counters:  newCounters(),
	}, nil
}

func (fs *FileSink) Name() string {
	return fs.name
}

func (fs *FileSink) Handle(ctx context.Context, batch []*core.MessageRecord) error {
	if fs.closed.Load() {
		return fmt.Errorf("file sink %s is closed", fs.name)
	}

	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		formatted, err := fs.formatter.Format(rec)
		if err != nil {
			fs.totalFailed.Add(1)
			fs.logger.Error("msg", "Failed to format record",
				"component", "file_sink",
				"sink", fs.name,
				"index", rec.Index,
				"error", err)
			continue
		}

		// Convert to string to prevent hex encoding of []byte by log package
		// Strip new line, writer adds it
		fs.writer.Message(string(bytes.TrimSuffix(formatted, []byte{'\n'})))
	}

	fs.processed(len(batch))
	return nil
}

// Flush is a no-op, the writer flushes on its own schedule and on shutdown
func (fs *FileSink) Flush() error {
	return nil
}

func (fs *FileSink) Status() string {
	state := "open"
	if fs.closed.Load() {
		state = "closed"
	}
	return fmt.Sprintf("file(%s/%s) %s processed=%d",
		fs.opts.Directory, fs.opts.Name, state, fs.totalProcessed.Load())
}

// Cleanup shuts the writer down with a timeout
func (fs *FileSink) Cleanup() error {
	if !fs.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := fs.writer.Shutdown(2 * time.Second); err != nil {
		fs.logger.Error("msg", "Error shutting down file writer",
			"component", "file_sink",
			"sink", fs.name,
			"error", err)
		return fmt.Errorf("file writer shutdown: %w", err)
	}

	fs.logger.Info("msg", "File sink stopped",
		"component", "file_sink",
		"sink", fs.name)
	return nil
}

func (fs *FileSink) GetStats() SinkStats {
	stats := fs.stats("file", fs.name)
	stats.Details = map[string]any{
		"directory": fs.opts.Directory,
		"name":      fs.opts.Name,
	}
	return stats
}
