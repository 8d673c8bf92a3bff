// FILE: tracewisp/src/internal/config/status.go
package config

// StatusConfig configures the diagnostic status HTTP endpoint
type StatusConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int64  `toml:"port"`
	Path    string `toml:"path"`

	// Per-client request limiting (nil = disabled)
	RateLimit *RateLimitConfig `toml:"rate_limit"`

	Auth *AuthConfig `toml:"auth"`

	TLS *TLSServerConfig `toml:"tls"`
}

// RateLimitConfig defines per-IP request limiting for the status endpoint
type RateLimitConfig struct {
	// Requests allowed per second per client. 0 = disabled.
	RequestsPerSecond float64 `toml:"requests_per_second"`
	// Burst size. Defaults to the rate.
	Burst int64 `toml:"burst"`
	// Seconds after which idle client limiters are forgotten
	CleanupIntervalSeconds int64 `toml:"cleanup_interval_seconds"`
}

type AuthConfig struct {
	// Authentication type: "none", "basic", "bearer"
	Type string `toml:"type"`

	// Basic auth
	BasicAuth *BasicAuthConfig `toml:"basic_auth"`

	// Bearer token auth
	BearerAuth *BearerAuthConfig `toml:"bearer_auth"`
}

type BasicAuthConfig struct {
	Users []BasicAuthUser `toml:"users"`

	// Realm for WWW-Authenticate header
	Realm string `toml:"realm"`
}

type BasicAuthUser struct {
	Username string `toml:"username"`
	// Password hash (argon2id PHC string)
	PasswordHash string `toml:"password_hash"`
}

type BearerAuthConfig struct {
	// Static tokens
	Tokens []string `toml:"tokens"`

	// JWT validation
	JWT *JWTConfig `toml:"jwt"`
}

type JWTConfig struct {
	// HMAC signing key
	SigningKey string `toml:"signing_key"`

	// Expected issuer
	Issuer string `toml:"issuer"`

	// Expected audience
	Audience string `toml:"audience"`
}
