// FILE: tracewisp/src/internal/config/validation.go
package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"

	"tracewisp/src/internal/core"

	lconfig "github.com/lixenwraith/config"
)

// validateConfig is the centralized validator for the entire configuration.
// Validators also fill option defaults in place.
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := validateRouter(cfg.Router); err != nil {
		return fmt.Errorf("router config: %w", err)
	}

	if err := validateLogConfig(cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := validateSource(cfg.Source); err != nil {
		return fmt.Errorf("source config: %w", err)
	}

	// Track used ports across the status endpoint and TCP sinks
	allPorts := make(map[int64]string)
	if cfg.Status != nil && cfg.Status.Enabled {
		if err := validateStatus(cfg.Status); err != nil {
			return fmt.Errorf("status config: %w", err)
		}
		allPorts[cfg.Status.Port] = "status"
	}

	sinkNames := make(map[string]bool)
	for i := range cfg.Sinks {
		if err := validateSinkConfig(i, &cfg.Sinks[i], sinkNames, allPorts); err != nil {
			return err
		}
	}

	return nil
}

// ValidateRouter checks a router section on its own, used by hot reload
func ValidateRouter(r *RouterConfig) error {
	return validateRouter(r)
}

func validateRouter(r *RouterConfig) error {
	if r == nil {
		return fmt.Errorf("router section missing")
	}

	switch r.Mode {
	case "":
		r.Mode = "threaded"
	case "threaded", "inline":
	default:
		return fmt.Errorf("invalid router mode '%s' (must be 'threaded' or 'inline')", r.Mode)
	}

	if r.BatchCapacity < 0 {
		return fmt.Errorf("batch_capacity cannot be negative: %d", r.BatchCapacity)
	}
	if r.BatchDelayMS < 0 {
		return fmt.Errorf("batch_delay_ms cannot be negative: %d", r.BatchDelayMS)
	}
	if r.MaxQueueDepth < -1 {
		return fmt.Errorf("max_queue_depth must be -1 (unbounded) or non-negative: %d", r.MaxQueueDepth)
	}
	if r.ShutdownTimeoutSeconds <= 0 {
		r.ShutdownTimeoutSeconds = 10
	}

	return nil
}

func validateLogConfig(cfg *LogConfig) error {
	if cfg == nil {
		return fmt.Errorf("logging section missing")
	}

	validOutputs := map[string]bool{
		"file": true, "stdout": true, "stderr": true,
		"both": true, "none": true,
	}
	if !validOutputs[cfg.Output] {
		return fmt.Errorf("invalid log output mode: %s", cfg.Output)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	if cfg.Console != nil {
		validTargets := map[string]bool{
			"stdout": true, "stderr": true, "split": true,
		}
		if !validTargets[cfg.Console.Target] {
			return fmt.Errorf("invalid console target: %s", cfg.Console.Target)
		}

		validFormats := map[string]bool{
			"txt": true, "json": true, "": true,
		}
		if !validFormats[cfg.Console.Format] {
			return fmt.Errorf("invalid console format: %s", cfg.Console.Format)
		}
	}

	return nil
}

func validateSource(s *SourceConfig) error {
	if s == nil {
		return fmt.Errorf("source section missing")
	}
	if s.MaxLineBytes <= 0 {
		s.MaxLineBytes = 64 * 1024
	}
	if _, ok := core.ParseCommandType(s.CommandType); !ok {
		return fmt.Errorf("unknown command_type '%s'", s.CommandType)
	}
	return nil
}

func validateStatus(s *StatusConfig) error {
	if err := lconfig.Port(s.Port); err != nil {
		return err
	}

	if s.Host == "" {
		s.Host = "127.0.0.1"
	}
	if s.Host != "0.0.0.0" {
		if err := lconfig.IPAddress(s.Host); err != nil {
			return err
		}
	}

	if s.Path == "" {
		s.Path = "/status"
	}
	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("status path must start with /: %s", s.Path)
	}

	if s.RateLimit != nil {
		if s.RateLimit.RequestsPerSecond < 0 {
			return fmt.Errorf("rate limit requests_per_second cannot be negative")
		}
		if s.RateLimit.Burst < 0 {
			return fmt.Errorf("rate limit burst cannot be negative")
		}
		if s.RateLimit.Burst == 0 {
			s.RateLimit.Burst = int64(s.RateLimit.RequestsPerSecond)
			if s.RateLimit.Burst < 1 {
				s.RateLimit.Burst = 1
			}
		}
		if s.RateLimit.CleanupIntervalSeconds <= 0 {
			s.RateLimit.CleanupIntervalSeconds = 60
		}
	}

	if err := validateTLSServer(s.TLS); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return validateAuth(s.Auth)
}

func validateAuth(auth *AuthConfig) error {
	if auth == nil {
		return nil
	}

	switch auth.Type {
	case "", "none":
		return nil
	case "basic":
		if auth.BasicAuth == nil || len(auth.BasicAuth.Users) == 0 {
			return fmt.Errorf("basic auth type specified but no users configured")
		}
		for i, u := range auth.BasicAuth.Users {
			if err := lconfig.NonEmpty(u.Username); err != nil {
				return fmt.Errorf("basic auth user[%d]: missing username", i)
			}
			if !strings.HasPrefix(u.PasswordHash, "$argon2id$") {
				return fmt.Errorf("basic auth user '%s': password_hash must be an argon2id PHC string", u.Username)
			}
		}
		if auth.BasicAuth.Realm == "" {
			auth.BasicAuth.Realm = "tracewisp"
		}
	case "bearer":
		if auth.BearerAuth == nil {
			return fmt.Errorf("bearer auth type specified but config missing")
		}
		hasJWT := auth.BearerAuth.JWT != nil && auth.BearerAuth.JWT.SigningKey != ""
		if len(auth.BearerAuth.Tokens) == 0 && !hasJWT {
			return fmt.Errorf("bearer auth requires static tokens or a jwt signing_key")
		}
	default:
		return fmt.Errorf("invalid auth type: %s", auth.Type)
	}

	return nil
}

// validateSinkConfig validates typed sink configuration
func validateSinkConfig(index int, s *SinkConfig, sinkNames map[string]bool, allPorts map[int64]string) error {
	if err := lconfig.NonEmpty(s.Type); err != nil {
		return fmt.Errorf("sink[%d]: missing type", index)
	}

	if s.Name == "" {
		s.Name = fmt.Sprintf("%s-%d", s.Type, index)
	}
	if sinkNames[s.Name] {
		return fmt.Errorf("sink[%d]: duplicate name '%s'", index, s.Name)
	}
	sinkNames[s.Name] = true

	s.Format = ApplyFormatDefaults(s.Format)
	switch s.Format.Type {
	case "json", "txt", "raw":
	default:
		return fmt.Errorf("sink '%s': unknown format type '%s'", s.Name, s.Format.Type)
	}

	for i := range s.Filters {
		if err := validateFilter(s.Name, i, &s.Filters[i]); err != nil {
			return err
		}
	}
	if err := validateSinkRateLimit(s.Name, s.RateLimit); err != nil {
		return err
	}

	switch s.Type {
	case "console":
		if s.Console == nil {
			s.Console = &ConsoleSinkOptions{}
		}
		return validateConsoleSink(s.Name, s.Console)
	case "file":
		if s.File == nil {
			s.File = &FileSinkOptions{}
		}
		return validateFileSink(s.Name, s.File)
	case "tcp":
		if s.TCP == nil {
			return fmt.Errorf("sink '%s': tcp options missing", s.Name)
		}
		return validateTCPSink(s.Name, s.TCP, allPorts)
	case "tcp_client":
		if s.TCPClient == nil {
			return fmt.Errorf("sink '%s': tcp_client options missing", s.Name)
		}
		return validateTCPClientSink(s.Name, s.TCPClient)
	case "http_client":
		if s.HTTPClient == nil {
			return fmt.Errorf("sink '%s': http_client options missing", s.Name)
		}
		return validateHTTPClientSink(s.Name, s.HTTPClient)
	case "beats":
		if s.Beats == nil {
			return fmt.Errorf("sink '%s': beats options missing", s.Name)
		}
		return validateBeatsSink(s.Name, s.Beats)
	case "memory":
		if s.Memory == nil {
			s.Memory = &MemorySinkOptions{}
		}
		if s.Memory.Capacity < 0 {
			return fmt.Errorf("sink '%s': memory capacity cannot be negative", s.Name)
		}
		return nil
	default:
		return fmt.Errorf("sink[%d]: unknown type '%s'", index, s.Type)
	}
}

func validateConsoleSink(name string, opts *ConsoleSinkOptions) error {
	switch opts.Target {
	case "":
		opts.Target = "stdout"
	case "stdout", "stderr", "split":
	default:
		return fmt.Errorf("sink '%s': invalid console target '%s'", name, opts.Target)
	}
	return nil
}

func validateFileSink(name string, opts *FileSinkOptions) error {
	if opts.Directory == "" {
		opts.Directory = "./trace"
	}
	if strings.Contains(opts.Directory, "..") {
		return fmt.Errorf("sink '%s': directory contains traversal", name)
	}
	if opts.Name == "" {
		opts.Name = "tracewisp"
	}
	if filepath.Base(opts.Name) != opts.Name {
		return fmt.Errorf("sink '%s': file name contains path separators", name)
	}
	if opts.MaxSizeMB < 0 || opts.MaxTotalSizeMB < 0 || opts.MinDiskFreeMB < 0 {
		return fmt.Errorf("sink '%s': size limits cannot be negative", name)
	}
	if opts.RetentionHours < 0 {
		return fmt.Errorf("sink '%s': retention_hours cannot be negative", name)
	}
	return nil
}

func validateTCPSink(name string, opts *TCPSinkOptions, allPorts map[int64]string) error {
	if err := lconfig.Port(opts.Port); err != nil {
		return fmt.Errorf("sink '%s': %w", name, err)
	}
	if owner, used := allPorts[opts.Port]; used {
		return fmt.Errorf("sink '%s': port %d already used by %s", name, opts.Port, owner)
	}
	allPorts[opts.Port] = name

	if opts.Host == "" {
		opts.Host = "0.0.0.0"
	}
	if opts.Host != "0.0.0.0" {
		if err := lconfig.IPAddress(opts.Host); err != nil {
			return fmt.Errorf("sink '%s': %w", name, err)
		}
	}
	if opts.MaxWriteErrors <= 0 {
		opts.MaxWriteErrors = 3
	}
	if opts.Heartbeat != nil && opts.Heartbeat.Enabled && opts.Heartbeat.IntervalMS < 100 {
		return fmt.Errorf("sink '%s': heartbeat interval_ms must be at least 100", name)
	}
	return nil
}

func validateTCPClientSink(name string, opts *TCPClientSinkOptions) error {
	if err := lconfig.NonEmpty(opts.Address); err != nil {
		return fmt.Errorf("sink '%s': tcp_client requires 'address'", name)
	}
	if _, _, err := net.SplitHostPort(opts.Address); err != nil {
		return fmt.Errorf("sink '%s': invalid address format (expected host:port): %w", name, err)
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 30
	}
	if opts.ReconnectDelayMS <= 0 {
		opts.ReconnectDelayMS = 1000
	}
	if opts.MaxReconnectDelayMS <= 0 {
		opts.MaxReconnectDelayMS = 30000
	}
	if opts.ReconnectBackoff < 1.0 {
		opts.ReconnectBackoff = 1.5
	}
	return validateTLSClient(name, opts.TLS)
}

func validateHTTPClientSink(name string, opts *HTTPClientSinkOptions) error {
	u, err := url.Parse(opts.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("sink '%s': invalid url '%s'", name, opts.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("sink '%s': url scheme must be http or https", name)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30
	}
	if opts.MaxRetries < 0 {
		return fmt.Errorf("sink '%s': max_retries cannot be negative", name)
	}
	if opts.RetryDelayMS <= 0 {
		opts.RetryDelayMS = 1000
	}
	if opts.RetryBackoff < 1.0 {
		opts.RetryBackoff = 2.0
	}
	if opts.TLS != nil && opts.TLS.Enabled && u.Scheme != "https" {
		return fmt.Errorf("sink '%s': tls configured for a non-https url", name)
	}
	return validateTLSClient(name, opts.TLS)
}

func validateBeatsSink(name string, opts *BeatsSinkOptions) error {
	if _, _, err := net.SplitHostPort(opts.Address); err != nil {
		return fmt.Errorf("sink '%s': invalid beats address (expected host:port): %w", name, err)
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = 30
	}
	if opts.CompressionLevel < 0 || opts.CompressionLevel > 9 {
		return fmt.Errorf("sink '%s': compression_level must be between 0 and 9", name)
	}
	return nil
}
