// FILE: tracewisp/src/internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

// Load builds the configuration from defaults, the TOML file, environment
// variables and CLI arguments, in increasing precedence
func Load(cliArgs []string) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix("TRACEWISP_").
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig, ""); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}
	finalConfig.ConfigFile = configPath

	applySectionDefaults(finalConfig)

	return finalConfig, validateConfig(finalConfig)
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	env = "TRACEWISP_" + env
	return env
}

// GetConfigPath resolves the config file from the environment, falling back
// to the user config directory
func GetConfigPath() string {
	if configFile := os.Getenv("TRACEWISP_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("TRACEWISP_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("TRACEWISP_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "tracewisp.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "tracewisp.toml")
	}

	return "tracewisp.toml"
}

// applySectionDefaults fills sections a config file may omit entirely
func applySectionDefaults(cfg *Config) {
	def := defaults()
	if cfg.Router == nil {
		cfg.Router = def.Router
	}
	if cfg.Logging == nil {
		cfg.Logging = def.Logging
	}
	if cfg.Source == nil {
		cfg.Source = def.Source
	}
	if cfg.Status == nil {
		cfg.Status = def.Status
	}
	if cfg.Status.Auth == nil {
		cfg.Status.Auth = &AuthConfig{Type: "none"}
	}

	for i := range cfg.Sinks {
		s := &cfg.Sinks[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("%s-%d", s.Type, i)
		}
		if s.Format == nil {
			s.Format = &FormatConfig{Type: "txt"}
		}
		applyFormatDefaults(s.Format)
	}
}

func applyFormatDefaults(f *FormatConfig) {
	if f.Type == "" {
		f.Type = "txt"
	}
	if f.JSONFormatOptions == nil {
		f.JSONFormatOptions = &JSONFormatterOptions{}
	}
	jf := f.JSONFormatOptions
	if jf.TimestampField == "" {
		jf.TimestampField = "timestamp"
	}
	if jf.LevelField == "" {
		jf.LevelField = "level"
	}
	if jf.MessageField == "" {
		jf.MessageField = "message"
	}
	if jf.ContextField == "" {
		jf.ContextField = "context"
	}

	if f.TextFormatOptions == nil {
		f.TextFormatOptions = &TextFormatterOptions{}
	}
	tf := f.TextFormatOptions
	if tf.Template == "" {
		tf.Template = DefaultTextTemplate
	}
	if tf.TimestampFormat == "" {
		tf.TimestampFormat = "2006-01-02T15:04:05.000Z07:00"
	}
}

// DefaultTextTemplate renders one record per line
const DefaultTextTemplate = "[{{.Timestamp | FmtTime}}] [{{.Level}}] #{{.Index}} {{if .Context}}{{.Context}} {{end}}{{.Body}}{{if .Details}} | {{.Details}}{{end}}"

// ApplyFormatDefaults fills zero-valued formatter options in place
func ApplyFormatDefaults(f *FormatConfig) *FormatConfig {
	if f == nil {
		f = &FormatConfig{}
	}
	applyFormatDefaults(f)
	return f
}
