// FILE: tracewisp/src/cmd/tracewisp/reporter.go
package main

import (
	"context"
	"time"
)

const statusReportInterval = 30 * time.Second

// statusReporter periodically logs router counters
func statusReporter(ctx context.Context, app *App) {
	ticker := time.NewTicker(statusReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if app == nil {
				logger.Warn("msg", "Status reporter: no running app",
					"component", "status_reporter")
				return
			}
			reportStatus(app)
		}
	}
}

func reportStatus(app *App) {
	// Sink status callbacks are third-party code paths
	defer func() {
		if r := recover(); r != nil {
			logger.Error("msg", "Panic in status reporter",
				"component", "status_reporter",
				"panic", r)
		}
	}()

	stats := app.Router().Stats()
	logger.Debug("msg", "Router status",
		"component", "status_reporter",
		"state", stats.State,
		"queue_depth", stats.QueueDepth,
		"enqueued", stats.Enqueued,
		"delivered", stats.Delivered,
		"dropped", stats.Dropped,
		"evicted", stats.Evicted,
		"error_count", stats.ErrorCount)

	for _, s := range stats.Sinks {
		logger.Debug("msg", "Sink status",
			"component", "status_reporter",
			"sink", s.Name,
			"type", s.Type,
			"processed", s.TotalProcessed,
			"active_connections", s.ActiveConnections)
	}

	if stats.ErrorCount > 0 {
		logger.Warn("msg", "Sink failures recorded",
			"component", "status_reporter",
			"error_count", stats.ErrorCount)
	}
}
