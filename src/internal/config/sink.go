// FILE: tracewisp/src/internal/config/sink.go
package config

// SinkConfig represents one output destination registered with the router
type SinkConfig struct {
	// Sink type: "console", "file", "tcp", "tcp_client", "http_client", "beats", "memory"
	Type string `toml:"type"`

	// Name shown in status output, defaults to the type
	Name string `toml:"name"`

	// Record formatting for this sink
	Format *FormatConfig `toml:"format"`

	Console    *ConsoleSinkOptions    `toml:"console"`
	File       *FileSinkOptions       `toml:"file"`
	TCP        *TCPSinkOptions        `toml:"tcp"`
	TCPClient  *TCPClientSinkOptions  `toml:"tcp_client"`
	HTTPClient *HTTPClientSinkOptions `toml:"http_client"`
	Beats      *BeatsSinkOptions      `toml:"beats"`
	Memory     *MemorySinkOptions     `toml:"memory"`

	// Records must pass every filter to reach the sink
	Filters []FilterConfig `toml:"filters"`

	RateLimit *SinkRateLimitConfig `toml:"rate_limit"`
}

// FormatConfig selects and tunes the record formatter
type FormatConfig struct {
	// Formatter type: "json", "txt", "raw"
	Type string `toml:"type"`

	JSONFormatOptions *JSONFormatterOptions `toml:"json"`
	TextFormatOptions *TextFormatterOptions `toml:"txt"`
}

type JSONFormatterOptions struct {
	Pretty         bool   `toml:"pretty"`
	TimestampField string `toml:"timestamp_field"`
	LevelField     string `toml:"level_field"`
	MessageField   string `toml:"message_field"`
	ContextField   string `toml:"context_field"`
}

type TextFormatterOptions struct {
	Template        string `toml:"template"`
	TimestampFormat string `toml:"timestamp_format"`
}

type ConsoleSinkOptions struct {
	// "stdout", "stderr", or "split"
	Target string `toml:"target"`
}

type FileSinkOptions struct {
	Directory      string  `toml:"directory"`
	Name           string  `toml:"name"`
	MaxSizeMB      int64   `toml:"max_size_mb"`
	MaxTotalSizeMB int64   `toml:"max_total_size_mb"`
	MinDiskFreeMB  int64   `toml:"min_disk_free_mb"`
	RetentionHours float64 `toml:"retention_hours"`
}

type TCPSinkOptions struct {
	Host string `toml:"host"`
	Port int64  `toml:"port"`

	// Consecutive write errors before a client is dropped
	MaxWriteErrors int64 `toml:"max_write_errors"`

	Heartbeat *HeartbeatConfig `toml:"heartbeat"`
}

type HeartbeatConfig struct {
	Enabled      bool  `toml:"enabled"`
	IntervalMS   int64 `toml:"interval_ms"`
	IncludeStats bool  `toml:"include_stats"`
}

type TCPClientSinkOptions struct {
	Address             string           `toml:"address"`
	DialTimeout         int64            `toml:"dial_timeout_seconds"`
	WriteTimeout        int64            `toml:"write_timeout_seconds"`
	KeepAlive           int64            `toml:"keep_alive_seconds"`
	ReconnectDelayMS    int64            `toml:"reconnect_delay_ms"`
	MaxReconnectDelayMS int64            `toml:"max_reconnect_delay_ms"`
	ReconnectBackoff    float64          `toml:"reconnect_backoff"`
	TLS                 *TLSClientConfig `toml:"tls"`
}

type HTTPClientSinkOptions struct {
	URL          string            `toml:"url"`
	Headers      map[string]string `toml:"headers"`
	Timeout      int64             `toml:"timeout_seconds"`
	MaxRetries   int64             `toml:"max_retries"`
	RetryDelayMS int64             `toml:"retry_delay_ms"`
	RetryBackoff float64           `toml:"retry_backoff"`
	TLS          *TLSClientConfig  `toml:"tls"`
}

// BeatsSinkOptions configures a lumberjack v2 client for Logstash or any
// beats-compatible receiver
type BeatsSinkOptions struct {
	Address        string `toml:"address"`
	TimeoutSeconds int64  `toml:"timeout_seconds"`

	// zlib level 0-9, 0 disables compression
	CompressionLevel int64 `toml:"compression_level"`
}

type MemorySinkOptions struct {
	// Maximum records retained, oldest evicted first (0 = unbounded)
	Capacity int64 `toml:"capacity"`
}
