// FILE: tracewisp/src/cmd/tracewisp/commands/config.go
package commands

import (
	"flag"
	"fmt"
	"io"
	"os"

	"tracewisp/src/internal/config"
)

// ConfigCommand validates the effective configuration and optionally writes it out
type ConfigCommand struct {
	output io.Writer
}

func (c *ConfigCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("config", flag.ContinueOnError)
	cmd.SetOutput(c.output)

	var (
		configPath     = cmd.String("c", "", "Configuration file to check")
		configPathLong = cmd.String("config", "", "Configuration file to check")
		outPath        = cmd.String("o", "", "Write the effective configuration to this path")
		outPathLong    = cmd.String("output", "", "Write the effective configuration to this path")
	)
	cmd.Usage = func() {
		fmt.Fprint(c.output, c.Help())
	}
	if err := cmd.Parse(args); err != nil {
		return err
	}

	if path := coalesceString(*configPath, *configPathLong); path != "" {
		os.Setenv("TRACEWISP_CONFIG_FILE", path)
	}

	// Remaining arguments are treated as configuration overrides
	cfg, err := config.Load(cmd.Args())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Fprintf(c.output, "Configuration valid: %s\n", cfg.ConfigFile)
	fmt.Fprintf(c.output, "  router: mode=%s batch_capacity=%d batch_delay_ms=%d max_queue_depth=%d write_only_on_failure=%t\n",
		cfg.Router.Mode, cfg.Router.BatchCapacity, cfg.Router.BatchDelayMS,
		cfg.Router.MaxQueueDepth, cfg.Router.WriteOnlyOnFailure)
	for _, s := range cfg.Sinks {
		fmt.Fprintf(c.output, "  sink: %s (%s, %s)\n", s.Name, s.Type, s.Format.Type)
	}
	if cfg.Status.Enabled {
		fmt.Fprintf(c.output, "  status: %s:%d%s auth=%s\n",
			cfg.Status.Host, cfg.Status.Port, cfg.Status.Path, cfg.Status.Auth.Type)
	}

	if out := coalesceString(*outPath, *outPathLong); out != "" {
		if err := cfg.SaveToFile(out); err != nil {
			return err
		}
		fmt.Fprintf(c.output, "Effective configuration written to %s\n", out)
	}
	return nil
}

func (c *ConfigCommand) Description() string {
	return "Validate the configuration and write the effective result"
}

func (c *ConfigCommand) Help() string {
	return `Config Command - Validate TraceWisp configuration

Usage:
  tracewisp config [-c <path>] [-o <path>] [-- overrides...]

Options:
  -c, --config <path>   Configuration file (default: TRACEWISP_CONFIG_FILE or ~/.config/tracewisp.toml)
  -o, --output <path>   Write the merged defaults, file, env and overrides as TOML

Examples:
  tracewisp config -c /etc/tracewisp/prod.toml
  tracewisp config -o effective.toml -- --router.batch_capacity=100
`
}
