// FILE: tracewisp/src/internal/config/tls.go
package config

import (
	"fmt"
	"strings"
)

// TLSServerConfig secures the status endpoint
type TLSServerConfig struct {
	Enabled  bool   `toml:"enabled"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`

	// Require client certificates signed by ClientCAFile
	ClientAuth   bool   `toml:"client_auth"`
	ClientCAFile string `toml:"client_ca_file"`

	// "TLS1.2" or "TLS1.3"
	MinVersion string `toml:"min_version"`
	MaxVersion string `toml:"max_version"`

	// Comma separated Go cipher suite names, empty for secure defaults
	CipherSuites string `toml:"cipher_suites"`
}

// TLSClientConfig secures outbound sink connections
type TLSClientConfig struct {
	Enabled bool `toml:"enabled"`

	// CA used to verify the server, system pool when empty
	ServerCAFile string `toml:"server_ca_file"`
	ServerName   string `toml:"server_name"`

	// Client certificate for mTLS
	ClientCertFile string `toml:"client_cert_file"`
	ClientKeyFile  string `toml:"client_key_file"`

	InsecureSkipVerify bool `toml:"insecure_skip_verify"`

	MinVersion   string `toml:"min_version"`
	MaxVersion   string `toml:"max_version"`
	CipherSuites string `toml:"cipher_suites"`
}

func validateTLSVersion(field, version string) error {
	switch strings.ToUpper(version) {
	case "", "TLS1.2", "TLS12", "TLS1.3", "TLS13":
		return nil
	default:
		return fmt.Errorf("tls %s '%s' not supported (use TLS1.2 or TLS1.3)", field, version)
	}
}

func validateTLSServer(cfg *TLSServerConfig) error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return fmt.Errorf("tls enabled but cert_file or key_file missing")
	}
	if cfg.ClientAuth && cfg.ClientCAFile == "" {
		return fmt.Errorf("tls client_auth requires client_ca_file")
	}
	if err := validateTLSVersion("min_version", cfg.MinVersion); err != nil {
		return err
	}
	return validateTLSVersion("max_version", cfg.MaxVersion)
}

func validateTLSClient(sinkName string, cfg *TLSClientConfig) error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if (cfg.ClientCertFile == "") != (cfg.ClientKeyFile == "") {
		return fmt.Errorf("sink '%s': both client_cert_file and client_key_file must be set for mTLS", sinkName)
	}
	if err := validateTLSVersion("min_version", cfg.MinVersion); err != nil {
		return fmt.Errorf("sink '%s': %w", sinkName, err)
	}
	if err := validateTLSVersion("max_version", cfg.MaxVersion); err != nil {
		return fmt.Errorf("sink '%s': %w", sinkName, err)
	}
	return nil
}
