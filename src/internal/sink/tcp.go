// FILE: tracewisp/src/internal/sink/tcp.go
package sink

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"
	"tracewisp/src/internal/format"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
)

// TCPSink broadcasts formatted record batches to every connected TCP client.
type TCPSink struct {
	name   string
	config *config.TCPSinkOptions

	// Network
	server   *tcpServer
	engine   *gnet.Engine
	engineMu sync.Mutex

	// Application
	formatter format.Formatter
	logger    *log.Logger

	// Runtime
	done    chan struct{}
	wg      sync.WaitGroup
	stopped atomic.Bool

	// Statistics
	activeConns atomic.Int64
	writeErrors atomic.Uint64
	*counters

	// Error tracking
	consecutiveWriteErrors map[gnet.Conn]int64
	errorMu                sync.Mutex
}

// NewTCPSink creates a new TCP broadcast sink. The server is not listening until Start.
func NewTCPSink(name string, opts *config.TCPSinkOptions, logger *log.Logger, formatter format.Formatter) (*TCPSink, error) {
	if opts == nil {
		return nil, fmt.Errorf("TCP sink options cannot be nil")
	}
	if formatter == nil {
		return nil, fmt.Errorf("tcp sink requires a formatter")
	}

	t := &TCPSink{
		name:                   name,
		config:                 opts,
		done:                   make(chan struct{}),
		logger:                 logger,
		formatter:              formatter,
		counters:               newCounters(),
		consecutiveWriteErrors: make(map[gnet.Conn]int64),
	}
	t.server = &tcpServer{
		sink:    t,
		clients: make(map[gnet.Conn]struct{}),
	}

	return t, nil
}

// Start launches the gnet server and, when enabled, the heartbeat loop.
func (t *TCPSink) Start() error {
	addr := fmt.Sprintf("tcp://%s:%d", t.config.Host, t.config.Port)

	// Create a gnet adapter using the existing logger instance
	gnetLogger := compat.NewGnetAdapter(t.logger)

	var opts []gnet.Option
	opts = append(opts,
		gnet.WithLogger(gnetLogger),
		gnet.WithMulticore(true),
		gnet.WithReusePort(true),
	)

	errChan := make(chan error, 1)
	go func() {
		t.logger.Info("msg", "Starting TCP server",
			"component", "tcp_sink",
			"sink", t.name,
			"port", t.config.Port)

		err := gnet.Run(t.server, addr, opts...)
		if err != nil {
			t.logger.Error("msg", "TCP server failed",
				"component", "tcp_sink",
				"sink", t.name,
				"port", t.config.Port,
				"error", err)
		}
		errChan <- err
	}()

	// Wait briefly for server to start or fail
	select {
	case err := <-errChan:
		return fmt.Errorf("tcp sink %s: %w", t.name, err)
	case <-time.After(100 * time.Millisecond):
	}

	if t.config.Heartbeat != nil && t.config.Heartbeat.Enabled {
		t.wg.Add(1)
		go t.heartbeatLoop()
	}

	t.logger.Info("msg", "TCP server started",
		"component", "tcp_sink",
		"sink", t.name,
		"port", t.config.Port)
	return nil
}

func (t *TCPSink) Name() string {
	return t.name
}

// Handle formats the batch into one buffer and writes it to every client
func (t *TCPSink) Handle(ctx context.Context, batch []*core.MessageRecord) error {
	if t.stopped.Load() {
		return fmt.Errorf("tcp sink %s is stopped", t.name)
	}

	var buf bytes.Buffer
	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := t.formatter.Format(rec)
		if err != nil {
			t.totalFailed.Add(1)
			t.logger.Error("msg", "Failed to format record",
				"component", "tcp_sink",
				"sink", t.name,
				"index", rec.Index,
				"error", err)
			continue
		}
		buf.Write(data)
	}

	if buf.Len() > 0 {
		t.broadcastData(buf.Bytes())
	}
	t.processed(len(batch))
	return nil
}

// Flush is a no-op, writes are handed to gnet immediately
func (t *TCPSink) Flush() error {
	return nil
}

func (t *TCPSink) Status() string {
	return fmt.Sprintf("tcp(:%d) clients=%d processed=%d write_errors=%d",
		t.config.Port, t.activeConns.Load(), t.totalProcessed.Load(), t.writeErrors.Load())
}

// Cleanup stops the heartbeat loop and the gnet engine.
func (t *TCPSink) Cleanup() error {
	if !t.stopped.CompareAndSwap(false, true) {
		return nil
	}
	t.logger.Info("msg", "Stopping TCP sink",
		"component", "tcp_sink",
		"sink", t.name)

	close(t.done)
	t.wg.Wait()

	t.engineMu.Lock()
	engine := t.engine
	t.engineMu.Unlock()

	var err error
	if engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = (*engine).Stop(ctx)
	}

	t.logger.Info("msg", "TCP sink stopped",
		"component", "tcp_sink",
		"sink", t.name,
		"total_processed", t.totalProcessed.Load())
	return err
}

// GetStats returns the sink's statistics.
func (t *TCPSink) GetStats() SinkStats {
	stats := t.stats("tcp", t.name)
	stats.ActiveConnections = t.activeConns.Load()
	stats.Details = map[string]any{
		"host":         t.config.Host,
		"port":         t.config.Port,
		"write_errors": t.writeErrors.Load(),
	}
	return stats
}

// tcpServer implements the gnet.EventHandler interface for the TCP sink.
type tcpServer struct {
	gnet.BuiltinEventEngine
	sink    *TCPSink
	clients map[gnet.Conn]struct{}
	mu      sync.RWMutex
}

// OnBoot is called when the server starts.
func (s *tcpServer) OnBoot(eng gnet.Engine) gnet.Action {
	// Store engine reference for shutdown
	s.sink.engineMu.Lock()
	s.sink.engine = &eng
	s.sink.engineMu.Unlock()

	s.sink.logger.Debug("msg", "TCP server booted",
		"component", "tcp_sink",
		"port", s.sink.config.Port)
	return gnet.None
}

// OnOpen is called when a new connection is established.
func (s *tcpServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	newCount := s.sink.activeConns.Add(1)
	s.sink.logger.Debug("msg", "TCP connection opened",
		"component", "tcp_sink",
		"remote_addr", c.RemoteAddr().String(),
		"active_connections", newCount)

	return nil, gnet.None
}

// OnClose is called when a connection is closed.
func (s *tcpServer) OnClose(c gnet.Conn, err error) gnet.Action {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()

	s.sink.errorMu.Lock()
	delete(s.sink.consecutiveWriteErrors, c)
	s.sink.errorMu.Unlock()

	newCount := s.sink.activeConns.Add(-1)
	s.sink.logger.Debug("msg", "TCP connection closed",
		"component", "tcp_sink",
		"remote_addr", c.RemoteAddr().String(),
		"active_connections", newCount,
		"error", err)
	return gnet.None
}

// OnTraffic discards anything clients send, the stream is one-way.
func (s *tcpServer) OnTraffic(c gnet.Conn) gnet.Action {
	c.Discard(-1)
	return gnet.None
}

// broadcastData sends a formatted byte slice to all connected clients.
func (t *TCPSink) broadcastData(data []byte) {
	t.server.mu.RLock()
	defer t.server.mu.RUnlock()

	for conn := range t.server.clients {
		conn.AsyncWrite(data, func(c gnet.Conn, err error) error {
			if err != nil {
				t.writeErrors.Add(1)
				t.handleWriteError(c, err)
			} else {
				t.errorMu.Lock()
				delete(t.consecutiveWriteErrors, c)
				t.errorMu.Unlock()
			}
			return nil
		})
	}
}

// handleWriteError closes a connection after repeated consecutive write errors.
func (t *TCPSink) handleWriteError(c gnet.Conn, err error) {
	t.errorMu.Lock()
	defer t.errorMu.Unlock()

	t.consecutiveWriteErrors[c]++
	errorCount := t.consecutiveWriteErrors[c]

	t.logger.Debug("msg", "AsyncWrite error",
		"component", "tcp_sink",
		"remote_addr", c.RemoteAddr().String(),
		"error", err,
		"consecutive_errors", errorCount)

	if errorCount >= t.config.MaxWriteErrors {
		t.logger.Warn("msg", "Closing connection due to repeated write errors",
			"component", "tcp_sink",
			"remote_addr", c.RemoteAddr().String(),
			"error_count", errorCount)
		delete(t.consecutiveWriteErrors, c)
		c.Close()
	}
}

func (t *TCPSink) heartbeatLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(time.Duration(t.config.Heartbeat.IntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			data, err := t.formatter.Format(t.heartbeatRecord())
			if err != nil {
				t.logger.Error("msg", "Failed to format heartbeat",
					"component", "tcp_sink",
					"error", err)
				continue
			}
			t.broadcastData(data)
		}
	}
}

// heartbeatRecord builds a verbose record outside the router's index sequence
func (t *TCPSink) heartbeatRecord() *core.MessageRecord {
	rec := &core.MessageRecord{
		Body:        "heartbeat",
		CommandType: core.CommandVerbose,
		Context:     "tracewisp-tcp",
		Timestamp:   time.Now(),
	}
	rec.SetTag("type", "heartbeat")
	if t.config.Heartbeat.IncludeStats {
		rec.SetTag("active_connections", fmt.Sprint(t.activeConns.Load()))
		rec.SetTag("uptime_seconds", fmt.Sprint(int64(time.Since(t.startTime).Seconds())))
	}
	return rec
}
