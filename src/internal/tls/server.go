// FILE: tracewisp/src/internal/tls/server.go
package tls

import (
	"crypto/tls"
	"fmt"

	"tracewisp/src/internal/config"

	"github.com/lixenwraith/log"
)

// ServerManager holds the TLS configuration for the status endpoint.
type ServerManager struct {
	config    *config.TLSServerConfig
	tlsConfig *tls.Config
	logger    *log.Logger
}

// NewServerManager returns nil when TLS is not enabled.
func NewServerManager(cfg *config.TLSServerConfig, logger *log.Logger) (*ServerManager, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server cert/key: %w", err)
	}

	m := &ServerManager{
		config: cfg,
		logger: logger,
		tlsConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   parseTLSVersion(cfg.MinVersion, tls.VersionTLS12),
			MaxVersion:   parseTLSVersion(cfg.MaxVersion, tls.VersionTLS13),
			CipherSuites: defaultCipherSuites,
		},
	}

	if cfg.CipherSuites != "" {
		if m.tlsConfig.CipherSuites, err = parseCipherSuites(cfg.CipherSuites); err != nil {
			return nil, err
		}
	}

	if cfg.ClientAuth {
		if cfg.ClientCAFile == "" {
			return nil, fmt.Errorf("client_auth is enabled but client_ca_file is not specified")
		}
		if m.tlsConfig.ClientCAs, err = loadCertPool(cfg.ClientCAFile); err != nil {
			return nil, err
		}
		m.tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}

	logger.Info("msg", "Server TLS initialized",
		"component", "tls",
		"min_version", tlsVersionString(m.tlsConfig.MinVersion),
		"client_auth", cfg.ClientAuth)
	return m, nil
}

// GetConfig returns a copy of the server configuration.
func (m *ServerManager) GetConfig() *tls.Config {
	if m == nil {
		return nil
	}
	return m.tlsConfig.Clone()
}

func (m *ServerManager) GetStats() map[string]any {
	if m == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"enabled":       true,
		"min_version":   tlsVersionString(m.tlsConfig.MinVersion),
		"max_version":   tlsVersionString(m.tlsConfig.MaxVersion),
		"client_auth":   m.config.ClientAuth,
		"cipher_suites": len(m.tlsConfig.CipherSuites),
	}
}
