// FILE: tracewisp/src/internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracewisp.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("TRACEWISP_CONFIG_FILE", path)
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRACEWISP_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.toml"))

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "threaded", cfg.Router.Mode)
	assert.Equal(t, int64(-1), cfg.Router.MaxQueueDepth)
	assert.True(t, cfg.Router.SuppressHandlerErrors)
	assert.True(t, cfg.Source.Stdin)
	require.Len(t, cfg.Sinks, 1)
	assert.Equal(t, "console", cfg.Sinks[0].Type)
	assert.Equal(t, DefaultTextTemplate, cfg.Sinks[0].Format.TextFormatOptions.Template)
	assert.False(t, cfg.Status.Enabled)
}

func TestLoad_FileAndOverrides(t *testing.T) {
	path := writeConfig(t, `
[router]
batch_capacity = 100
batch_delay_ms = 250
write_only_on_failure = true

[[sinks]]
type = "memory"
name = "capture"

[[sinks.filters]]
type = "exclude"
patterns = ["heartbeat"]

[sinks.rate_limit]
rate = 50
policy = "drop"
`)

	cfg, err := Load([]string{"--router.batch_delay_ms=500"})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, int64(100), cfg.Router.BatchCapacity)
	assert.Equal(t, int64(500), cfg.Router.BatchDelayMS, "cli overrides the file")
	assert.True(t, cfg.Router.WriteOnlyOnFailure)

	require.Len(t, cfg.Sinks, 1)
	s := cfg.Sinks[0]
	assert.Equal(t, "capture", s.Name)
	require.Len(t, s.Filters, 1)
	assert.Equal(t, FilterTypeExclude, s.Filters[0].Type)
	require.NotNil(t, s.RateLimit)
	assert.Equal(t, PolicyDrop, s.RateLimit.ParsePolicy())

	settings := cfg.Router.Settings()
	assert.Equal(t, int64(100), settings.BatchCapacity)
	assert.True(t, settings.WriteOnlyOnFailure)
}

func TestLoad_EnvOverride(t *testing.T) {
	writeConfig(t, "[router]\nbatch_capacity = 5\n")
	t.Setenv("TRACEWISP_ROUTER_BATCH_CAPACITY", "7")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Router.BatchCapacity)
}

func TestValidateConfig(t *testing.T) {
	validMemory := func() SinkConfig { return SinkConfig{Type: "memory", Name: "m"} }

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "Defaults", mutate: func(c *Config) {}},
		{name: "BadMode", mutate: func(c *Config) { c.Router.Mode = "eager" }, wantErr: "invalid router mode"},
		{name: "NegativeCapacity", mutate: func(c *Config) { c.Router.BatchCapacity = -1 }, wantErr: "batch_capacity"},
		{name: "QueueDepthBelowUnbounded", mutate: func(c *Config) { c.Router.MaxQueueDepth = -2 }, wantErr: "max_queue_depth"},
		{name: "UnknownSinkType", mutate: func(c *Config) { c.Sinks = []SinkConfig{{Type: "pigeon"}} }, wantErr: "unknown type"},
		{name: "DuplicateSinkName", mutate: func(c *Config) { c.Sinks = []SinkConfig{validMemory(), validMemory()} }, wantErr: "duplicate name"},
		{name: "BadFormat", mutate: func(c *Config) {
			s := validMemory()
			s.Format = &FormatConfig{Type: "xml"}
			c.Sinks = []SinkConfig{s}
		}, wantErr: "unknown format type"},
		{name: "BadFilterRegex", mutate: func(c *Config) {
			s := validMemory()
			s.Filters = []FilterConfig{{Patterns: []string{"("}}}
			c.Sinks = []SinkConfig{s}
		}, wantErr: "invalid regex"},
		{name: "BadFilterLogic", mutate: func(c *Config) {
			s := validMemory()
			s.Filters = []FilterConfig{{Logic: "xor"}}
			c.Sinks = []SinkConfig{s}
		}, wantErr: "invalid logic"},
		{name: "BadRatePolicy", mutate: func(c *Config) {
			s := validMemory()
			s.RateLimit = &SinkRateLimitConfig{Rate: 1, Policy: "queue"}
			c.Sinks = []SinkConfig{s}
		}, wantErr: "invalid rate limit policy"},
		{name: "HTTPClientBadScheme", mutate: func(c *Config) {
			c.Sinks = []SinkConfig{{Type: "http_client", HTTPClient: &HTTPClientSinkOptions{URL: "ftp://x/y"}}}
		}, wantErr: "scheme"},
		{name: "HTTPClientTLSOnPlainURL", mutate: func(c *Config) {
			c.Sinks = []SinkConfig{{Type: "http_client", HTTPClient: &HTTPClientSinkOptions{
				URL: "http://x/y", TLS: &TLSClientConfig{Enabled: true},
			}}}
		}, wantErr: "non-https"},
		{name: "TCPClientHalfMTLS", mutate: func(c *Config) {
			c.Sinks = []SinkConfig{{Type: "tcp_client", TCPClient: &TCPClientSinkOptions{
				Address: "127.0.0.1:9000", TLS: &TLSClientConfig{Enabled: true, ClientCertFile: "c.crt"},
			}}}
		}, wantErr: "client_key_file"},
		{name: "BeatsBadCompression", mutate: func(c *Config) {
			c.Sinks = []SinkConfig{{Type: "beats", Beats: &BeatsSinkOptions{Address: "logstash:5044", CompressionLevel: 12}}}
		}, wantErr: "compression_level"},
		{name: "BeatsMissingOptions", mutate: func(c *Config) {
			c.Sinks = []SinkConfig{{Type: "beats"}}
		}, wantErr: "beats options missing"},
		{name: "StatusBasicWithoutUsers", mutate: func(c *Config) {
			c.Status.Enabled = true
			c.Status.Auth = &AuthConfig{Type: "basic", BasicAuth: &BasicAuthConfig{}}
		}, wantErr: "no users"},
		{name: "StatusPlainPassword", mutate: func(c *Config) {
			c.Status.Enabled = true
			c.Status.Auth = &AuthConfig{Type: "basic", BasicAuth: &BasicAuthConfig{
				Users: []BasicAuthUser{{Username: "u", PasswordHash: "hunter2"}},
			}}
		}, wantErr: "argon2id"},
		{name: "StatusTLSWithoutKey", mutate: func(c *Config) {
			c.Status.Enabled = true
			c.Status.TLS = &TLSServerConfig{Enabled: true, CertFile: "a.crt"}
		}, wantErr: "key_file"},
		{name: "StatusBadVersion", mutate: func(c *Config) {
			c.Status.Enabled = true
			c.Status.TLS = &TLSServerConfig{Enabled: true, CertFile: "a.crt", KeyFile: "a.key", MinVersion: "SSL3"}
		}, wantErr: "not supported"},
		{name: "DisabledStatusNotValidated", mutate: func(c *Config) {
			c.Status.Auth = &AuthConfig{Type: "kerberos"}
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			applySectionDefaults(cfg)
			tc.mutate(cfg)

			err := validateConfig(cfg)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestValidateRouter_FillsDefaults(t *testing.T) {
	r := &RouterConfig{MaxQueueDepth: -1}
	require.NoError(t, ValidateRouter(r))
	assert.Equal(t, "threaded", r.Mode)
	assert.Equal(t, int64(10), r.ShutdownTimeoutSeconds)

	assert.Error(t, ValidateRouter(nil))
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	writeConfig(t, "[router]\nbatch_capacity = 42\nmode = \"inline\"\n")
	cfg, err := Load(nil)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "effective.toml")
	require.NoError(t, cfg.SaveToFile(out))

	t.Setenv("TRACEWISP_CONFIG_FILE", out)
	reloaded, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), reloaded.Router.BatchCapacity)
	assert.Equal(t, "inline", reloaded.Router.Mode)

	assert.Error(t, cfg.SaveToFile(""))
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("TRACEWISP_CONFIG_FILE", "custom.toml")
	t.Setenv("TRACEWISP_CONFIG_DIR", "/etc/tracewisp")
	assert.Equal(t, filepath.Join("/etc/tracewisp", "custom.toml"), GetConfigPath())

	t.Setenv("TRACEWISP_CONFIG_FILE", "/abs/x.toml")
	assert.Equal(t, "/abs/x.toml", GetConfigPath())

	t.Setenv("TRACEWISP_CONFIG_FILE", "")
	assert.Equal(t, filepath.Join("/etc/tracewisp", "tracewisp.toml"), GetConfigPath())
}
