// FILE: tracewisp/src/internal/sink/tcp_client.go
package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"
	"tracewisp/src/internal/format"
	ltls "tracewisp/src/internal/tls"

	"github.com/lixenwraith/log"
)

// ErrNotConnected is returned by Handle while the client has no live connection
var ErrNotConnected = errors.New("not connected")

// TCPClientSink forwards record batches to a remote TCP endpoint
type TCPClientSink struct {
	name      string
	config    TCPClientConfig
	conn      net.Conn
	connMu    sync.RWMutex
	done      chan struct{}
	wg        sync.WaitGroup
	started   atomic.Bool
	stopped   atomic.Bool
	logger    *log.Logger
	formatter format.Formatter
	tlsConfig *tls.Config

	// Reconnection state
	reconnecting   atomic.Bool
	lastConnectErr atomic.Value // string
	connectTime    time.Time

	// Statistics
	*counters
	totalReconnects  atomic.Uint64
	connectionUptime atomic.Value // time.Duration
}

// TCPClientConfig holds TCP client sink configuration
type TCPClientConfig struct {
	Address      string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	KeepAlive    time.Duration

	// Reconnection settings
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ReconnectBackoff  float64
}

// NewTCPClientSink creates a new TCP client sink, it does not dial until Start
func NewTCPClientSink(name string, opts *config.TCPClientSinkOptions, logger *log.Logger, formatter format.Formatter) (*TCPClientSink, error) {
	if opts == nil {
		return nil, fmt.Errorf("tcp_client sink options cannot be nil")
	}
	if formatter == nil {
		return nil, fmt.Errorf("tcp_client sink requires a formatter")
	}

	if _, _, err := net.SplitHostPort(opts.Address); err != nil {
		return nil, fmt.Errorf("invalid address format (expected host:port): %w", err)
	}

	cfg := TCPClientConfig{
		Address:           opts.Address,
		DialTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		KeepAlive:         30 * time.Second,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReconnectBackoff:  1.5,
	}
	if opts.DialTimeout > 0 {
		cfg.DialTimeout = time.Duration(opts.DialTimeout) * time.Second
	}
	if opts.WriteTimeout > 0 {
		cfg.WriteTimeout = time.Duration(opts.WriteTimeout) * time.Second
	}
	if opts.KeepAlive > 0 {
		cfg.KeepAlive = time.Duration(opts.KeepAlive) * time.Second
	}
	if opts.ReconnectDelayMS > 0 {
		cfg.ReconnectDelay = time.Duration(opts.ReconnectDelayMS) * time.Millisecond
	}
	if opts.MaxReconnectDelayMS > 0 {
		cfg.MaxReconnectDelay = time.Duration(opts.MaxReconnectDelayMS) * time.Millisecond
	}
	if opts.ReconnectBackoff >= 1.0 {
		cfg.ReconnectBackoff = opts.ReconnectBackoff
	}

	t := &TCPClientSink{
		name:      name,
		config:    cfg,
		done:      make(chan struct{}),
		logger:    logger,
		formatter: formatter,
		counters:  newCounters(),
	}
	t.lastConnectErr.Store("")

	tlsManager, err := ltls.NewClientManager(opts.TLS, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS client manager: %w", err)
	}
	t.tlsConfig = tlsManager.GetConfig()
	t.connectionUptime.Store(time.Duration(0))

	return t, nil
}

// Start launches the connection manager
func (t *TCPClientSink) Start() error {
	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("tcp_client sink %s already started", t.name)
	}

	t.wg.Add(1)
	go t.connectionManager()

	t.logger.Info("msg", "TCP client sink started",
		"component", "tcp_client_sink",
		"sink", t.name,
		"address", t.config.Address)
	return nil
}

func (t *TCPClientSink) Name() string {
	return t.name
}

// Handle writes the formatted batch on the current connection, failing fast when disconnected
func (t *TCPClientSink) Handle(ctx context.Context, batch []*core.MessageRecord) error {
	t.connMu.RLock()
	conn := t.conn
	t.connMu.RUnlock()

	if conn == nil {
		t.totalFailed.Add(1)
		return fmt.Errorf("%s: %w", t.config.Address, ErrNotConnected)
	}

	var buf bytes.Buffer
	for _, rec := range batch {
		data, err := t.formatter.Format(rec)
		if err != nil {
			t.logger.Debug("msg", "Failed to format record",
				"component", "tcp_client_sink",
				"index", rec.Index,
				"error", err)
			continue
		}
		buf.Write(data)
	}

	deadline := time.Now().Add(t.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		t.totalFailed.Add(1)
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	n, err := conn.Write(buf.Bytes())
	if err != nil {
		// Connection error, the manager reconnects
		t.totalFailed.Add(1)
		return fmt.Errorf("write failed: %w", err)
	}
	if n != buf.Len() {
		t.totalFailed.Add(1)
		return fmt.Errorf("partial write: %d/%d bytes", n, buf.Len())
	}

	t.processed(len(batch))
	return nil
}

// Flush is a no-op, batches are written synchronously
func (t *TCPClientSink) Flush() error {
	return nil
}

func (t *TCPClientSink) Status() string {
	state := "disconnected"
	if t.connected() {
		state = "connected"
	} else if t.reconnecting.Load() {
		state = "connecting"
	}
	return fmt.Sprintf("tcp_client(%s) %s processed=%d failed=%d",
		t.config.Address, state, t.totalProcessed.Load(), t.totalFailed.Load())
}

// Cleanup stops the connection manager and closes the connection
func (t *TCPClientSink) Cleanup() error {
	if !t.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(t.done)

	t.connMu.Lock()
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.connMu.Unlock()

	t.wg.Wait()

	t.logger.Info("msg", "TCP client sink stopped",
		"component", "tcp_client_sink",
		"sink", t.name,
		"total_processed", t.totalProcessed.Load(),
		"total_failed", t.totalFailed.Load(),
		"total_reconnects", t.totalReconnects.Load())
	return nil
}

func (t *TCPClientSink) GetStats() SinkStats {
	uptime, _ := t.connectionUptime.Load().(time.Duration)
	lastErr, _ := t.lastConnectErr.Load().(string)

	stats := t.stats("tcp_client", t.name)
	if t.connected() {
		stats.ActiveConnections = 1
	}
	stats.Details = map[string]any{
		"address":           t.config.Address,
		"tls":               t.tlsConfig != nil,
		"reconnecting":      t.reconnecting.Load(),
		"total_reconnects":  t.totalReconnects.Load(),
		"connection_uptime": uptime.Seconds(),
		"last_error":        lastErr,
	}
	return stats
}

func (t *TCPClientSink) connected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.conn != nil
}

func (t *TCPClientSink) connectionManager() {
	defer t.wg.Done()

	reconnectDelay := t.config.ReconnectDelay

	for {
		select {
		case <-t.done:
			return
		default:
		}

		t.reconnecting.Store(true)
		conn, err := t.connect()
		t.reconnecting.Store(false)

		if err != nil {
			t.lastConnectErr.Store(err.Error())
			t.logger.Warn("msg", "Failed to connect to TCP server",
				"component", "tcp_client_sink",
				"address", t.config.Address,
				"error", err,
				"retry_delay", reconnectDelay)

			select {
			case <-t.done:
				return
			case <-time.After(reconnectDelay):
			}

			// Exponential backoff
			reconnectDelay = time.Duration(float64(reconnectDelay) * t.config.ReconnectBackoff)
			if reconnectDelay > t.config.MaxReconnectDelay {
				reconnectDelay = t.config.MaxReconnectDelay
			}
			continue
		}

		t.lastConnectErr.Store("")
		reconnectDelay = t.config.ReconnectDelay
		t.connectTime = time.Now()
		t.totalReconnects.Add(1)

		t.connMu.Lock()
		if t.stopped.Load() {
			t.connMu.Unlock()
			_ = conn.Close()
			return
		}
		t.conn = conn
		t.connMu.Unlock()

		t.logger.Info("msg", "Connected to TCP server",
			"component", "tcp_client_sink",
			"address", t.config.Address,
			"local_addr", conn.LocalAddr())

		t.monitorConnection(conn)

		t.connMu.Lock()
		t.conn = nil
		t.connMu.Unlock()
		_ = conn.Close()

		uptime := time.Since(t.connectTime)
		t.connectionUptime.Store(uptime)

		t.logger.Warn("msg", "Lost connection to TCP server",
			"component", "tcp_client_sink",
			"address", t.config.Address,
			"uptime", uptime)
	}
}

func (t *TCPClientSink) connect() (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   t.config.DialTimeout,
		KeepAlive: t.config.KeepAlive,
	}

	if t.tlsConfig != nil {
		return tls.DialWithDialer(dialer, "tcp", t.config.Address, t.tlsConfig)
	}
	return dialer.Dial("tcp", t.config.Address)
}

// monitorConnection returns when the peer closes or the sink stops
func (t *TCPClientSink) monitorConnection(conn net.Conn) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	buf := make([]byte, 1)
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
				t.logger.Debug("msg", "Failed to set read deadline", "error", err)
				return
			}

			// No data is expected, a timeout means the connection is alive
			_, err := conn.Read(buf)
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					continue
				}
				return
			}
		}
	}
}
