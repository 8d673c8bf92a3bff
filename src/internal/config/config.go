// FILE: tracewisp/src/internal/config/config.go
package config

import "tracewisp/src/internal/core"

// Config is the root configuration of the tracewisp daemon
type Config struct {
	// Top-level flags for application control
	ShowVersion           bool `toml:"version"`
	Quiet                 bool `toml:"quiet"`
	DisableStatusReporter bool `toml:"disable_status_reporter"`
	ConfigAutoReload      bool `toml:"config_auto_reload"`

	// Path of the loaded configuration file, not persisted
	ConfigFile string `toml:"-"`

	Router  *RouterConfig `toml:"router"`
	Logging *LogConfig    `toml:"logging"`
	Source  *SourceConfig `toml:"source"`
	Sinks   []SinkConfig  `toml:"sinks"`
	Status  *StatusConfig `toml:"status"`
}

// RouterConfig holds the batching and queueing behaviour of the trace router
type RouterConfig struct {
	// Router variant: "threaded" or "inline"
	Mode string `toml:"mode"`

	// Maximum records held before a write is forced (0 = disabled)
	BatchCapacity int64 `toml:"batch_capacity"`

	// Maximum milliseconds between writes (0 = disabled)
	BatchDelayMS int64 `toml:"batch_delay_ms"`

	// Oldest-record eviction threshold (-1 = unbounded)
	MaxQueueDepth int64 `toml:"max_queue_depth"`

	// Hold trace until a failure is flagged
	WriteOnlyOnFailure bool `toml:"write_only_on_failure"`

	// Swallow sink errors instead of returning them from flush/shutdown
	SuppressHandlerErrors bool `toml:"suppress_handler_errors"`

	// Report late enqueues and other misuse as errors
	Strict bool `toml:"strict"`

	// Seconds to wait for the router to drain on shutdown
	ShutdownTimeoutSeconds int64 `toml:"shutdown_timeout_seconds"`
}

// Settings converts the router section into the router's runtime settings
func (r *RouterConfig) Settings() core.Settings {
	return core.Settings{
		BatchCapacity:         r.BatchCapacity,
		BatchDelayMS:          r.BatchDelayMS,
		MaxQueueDepth:         r.MaxQueueDepth,
		WriteOnlyOnFailure:    r.WriteOnlyOnFailure,
		SuppressHandlerErrors: r.SuppressHandlerErrors,
	}
}

// SourceConfig controls how the daemon turns stdin lines into trace records
type SourceConfig struct {
	// Read stdin lines as trace records
	Stdin bool `toml:"stdin"`

	// Context attached to every record
	Context string `toml:"context"`

	// Command type for plain lines, e.g. "log", "verbose"
	CommandType string `toml:"command_type"`

	// Derive the command type from level markers such as "[WARN]" or "ERROR:"
	DetectCommand bool `toml:"detect_command"`

	// Lines starting with this prefix flag a failure (write-only-on-failure)
	FailurePrefix string `toml:"failure_prefix"`

	// Maximum accepted line length in bytes
	MaxLineBytes int64 `toml:"max_line_bytes"`
}

func defaults() *Config {
	return &Config{
		Quiet:                 false,
		DisableStatusReporter: false,
		ConfigAutoReload:      false,
		Router: &RouterConfig{
			Mode:                   "threaded",
			BatchCapacity:          0,
			BatchDelayMS:           0,
			MaxQueueDepth:          -1,
			WriteOnlyOnFailure:     false,
			SuppressHandlerErrors:  true,
			Strict:                 false,
			ShutdownTimeoutSeconds: 10,
		},
		Logging: DefaultLogConfig(),
		Source: &SourceConfig{
			Stdin:         true,
			Context:       "stdin",
			CommandType:   "log",
			DetectCommand: true,
			MaxLineBytes:  64 * 1024,
		},
		Sinks: []SinkConfig{
			{
				Type: "console",
				Name: "console",
				Console: &ConsoleSinkOptions{
					Target: "stdout",
				},
				Format: &FormatConfig{
					Type: "txt",
				},
			},
		},
		Status: &StatusConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9480,
			Path:    "/status",
			Auth: &AuthConfig{
				Type: "none",
			},
		},
	}
}
