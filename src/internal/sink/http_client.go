// FILE: tracewisp/src/internal/sink/http_client.go
package sink

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"
	"tracewisp/src/internal/format"
	ltls "tracewisp/src/internal/tls"
	"tracewisp/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// HTTPClientSink posts each record batch to a remote HTTP endpoint.
type HTTPClientSink struct {
	name   string
	config *config.HTTPClientSinkOptions

	client      *fasthttp.Client
	tlsManager  *ltls.ClientManager
	contentType string

	formatter format.Formatter
	logger    *log.Logger

	// Statistics
	*counters
	failedBatches     atomic.Uint64
	lastBatchSent     atomic.Value // time.Time
	lastStatus        atomic.Int64
	activeConnections atomic.Int64
}

// NewHTTPClientSink creates a new HTTP client sink.
func NewHTTPClientSink(name string, opts *config.HTTPClientSinkOptions, logger *log.Logger, formatter format.Formatter) (*HTTPClientSink, error) {
	if opts == nil {
		return nil, fmt.Errorf("HTTP client sink options cannot be nil")
	}
	if formatter == nil {
		return nil, fmt.Errorf("http_client sink requires a formatter")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30
	}

	h := &HTTPClientSink{
		name:        name,
		config:      opts,
		contentType: "text/plain; charset=utf-8",
		formatter:   formatter,
		logger:      logger,
		counters:    newCounters(),
	}
	h.lastBatchSent.Store(time.Time{})
	if _, ok := formatter.(format.BatchFormatter); ok {
		h.contentType = "application/json"
	}

	h.client = &fasthttp.Client{
		MaxConnsPerHost:               10,
		MaxIdleConnDuration:           10 * time.Second,
		ReadTimeout:                   time.Duration(opts.Timeout) * time.Second,
		WriteTimeout:                  time.Duration(opts.Timeout) * time.Second,
		DisableHeaderNamesNormalizing: true,
	}

	if strings.HasPrefix(opts.URL, "https://") {
		tlsManager, err := ltls.NewClientManager(opts.TLS, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS client manager: %w", err)
		}
		h.tlsManager = tlsManager
		h.client.TLSConfig = tlsManager.GetConfig()
	}

	return h, nil
}

func (h *HTTPClientSink) Name() string {
	return h.name
}

// Handle formats the batch and posts it, retrying with backoff on 5xx and transport errors
func (h *HTTPClientSink) Handle(ctx context.Context, batch []*core.MessageRecord) error {
	body, err := h.encode(batch)
	if err != nil {
		h.failedBatches.Add(1)
		h.totalFailed.Add(uint64(len(batch)))
		return fmt.Errorf("failed to format batch: %w", err)
	}

	if err := h.send(ctx, body, len(batch)); err != nil {
		h.failedBatches.Add(1)
		h.totalFailed.Add(uint64(len(batch)))
		return err
	}

	h.processed(len(batch))
	return nil
}

// encode renders a JSON array for batch-capable formatters, otherwise concatenated lines
func (h *HTTPClientSink) encode(batch []*core.MessageRecord) ([]byte, error) {
	if bf, ok := h.formatter.(format.BatchFormatter); ok {
		return bf.FormatBatch(batch)
	}

	var buf bytes.Buffer
	for _, rec := range batch {
		data, err := h.formatter.Format(rec)
		if err != nil {
			h.logger.Error("msg", "Failed to format record in batch",
				"component", "http_client_sink",
				"index", rec.Index,
				"error", err)
			continue
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

func (h *HTTPClientSink) send(ctx context.Context, body []byte, count int) error {
	h.activeConnections.Add(1)
	defer h.activeConnections.Add(-1)
	h.lastBatchSent.Store(time.Now())

	var lastErr error
	timeout := time.Duration(h.config.Timeout) * time.Second
	retryDelay := time.Duration(h.config.RetryDelayMS) * time.Millisecond

	for attempt := int64(0); attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(retryDelay):
			}

			// Calculate new delay with overflow protection
			newDelay := time.Duration(float64(retryDelay) * h.config.RetryBackoff)
			if newDelay > timeout || newDelay < retryDelay {
				retryDelay = timeout
			} else {
				retryDelay = newDelay
			}
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()

		req.SetRequestURI(h.config.URL)
		req.Header.SetMethod("POST")
		req.Header.SetContentType(h.contentType)
		req.Header.Set("User-Agent", version.UserAgent())
		for k, v := range h.config.Headers {
			req.Header.Set(k, v)
		}
		req.SetBody(body)

		err := h.client.DoTimeout(req, resp, timeout)

		// Capture response before releasing
		statusCode := resp.StatusCode()
		responseBody := append([]byte(nil), resp.Body()...)

		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)

		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			h.logger.Warn("msg", "HTTP request failed",
				"component", "http_client_sink",
				"sink", h.name,
				"attempt", attempt+1,
				"max_retries", h.config.MaxRetries,
				"error", err)
			continue
		}

		h.lastStatus.Store(int64(statusCode))
		if statusCode >= 200 && statusCode < 300 {
			h.logger.Debug("msg", "Batch sent successfully",
				"component", "http_client_sink",
				"sink", h.name,
				"batch_size", count,
				"status_code", statusCode,
				"attempt", attempt+1)
			return nil
		}

		lastErr = fmt.Errorf("server returned status %d: %s", statusCode, responseBody)

		// Client errors are not retried
		if statusCode >= 400 && statusCode < 500 {
			h.logger.Error("msg", "Batch rejected by server",
				"component", "http_client_sink",
				"sink", h.name,
				"status_code", statusCode,
				"response", string(responseBody),
				"batch_size", count)
			return lastErr
		}

		h.logger.Warn("msg", "Server returned error status",
			"component", "http_client_sink",
			"sink", h.name,
			"attempt", attempt+1,
			"status_code", statusCode,
			"response", string(responseBody))
	}

	h.logger.Error("msg", "Failed to send batch after all retries",
		"component", "http_client_sink",
		"sink", h.name,
		"batch_size", count,
		"retries", h.config.MaxRetries,
		"last_error", lastErr)
	return lastErr
}

// Flush is a no-op, every batch is sent synchronously
func (h *HTTPClientSink) Flush() error {
	return nil
}

func (h *HTTPClientSink) Status() string {
	return fmt.Sprintf("http_client(%s) batches=%d failed=%d last_status=%d",
		h.config.URL, h.totalBatches.Load(), h.failedBatches.Load(), h.lastStatus.Load())
}

func (h *HTTPClientSink) Cleanup() error {
	h.client.CloseIdleConnections()
	h.logger.Info("msg", "HTTP client sink stopped",
		"component", "http_client_sink",
		"sink", h.name,
		"total_processed", h.totalProcessed.Load(),
		"total_batches", h.totalBatches.Load(),
		"failed_batches", h.failedBatches.Load())
	return nil
}

// GetStats returns the sink's statistics.
func (h *HTTPClientSink) GetStats() SinkStats {
	lastBatch, _ := h.lastBatchSent.Load().(time.Time)

	stats := h.stats("http_client", h.name)
	stats.ActiveConnections = h.activeConnections.Load()
	stats.Details = map[string]any{
		"url":             h.config.URL,
		"tls":             h.tlsManager.GetStats(),
		"failed_batches":  h.failedBatches.Load(),
		"last_batch_sent": lastBatch,
		"last_status":     h.lastStatus.Load(),
	}
	return stats
}
