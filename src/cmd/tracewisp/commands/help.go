// FILE: tracewisp/src/cmd/tracewisp/commands/help.go
package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

const generalHelpTemplate = `TraceWisp: diagnostic trace router and relay.

Reads trace lines from stdin and routes them, batched, to the configured sinks.

Usage:
  tracewisp [command] [options]
  tracewisp [options]

Commands:
%s

Application Options:
  -c, --config <path>          Path to configuration file (default: ~/.config/tracewisp.toml)
  -h, --help                   Display this help message and exit
  --version                    Display version information and exit
  --quiet                      Suppress all console output, including errors

Runtime Options:
  --disable-status-reporter    Disable the periodic status reporter
  --config-auto-reload         Apply [router] changes when the config file changes
  --router.mode <mode>         Router variant: threaded or inline
  --router.batch_capacity <n>  Dispatch once n records are pending
  --router.batch_delay_ms <n>  Dispatch once the oldest pending record is n ms old

For command-specific help:
  tracewisp help <command>
  tracewisp <command> --help

Configuration Sources (Precedence: CLI > Env > File > Defaults):
  - CLI flags override all other settings
  - Environment variables (TRACEWISP_ prefix) override file settings
  - TOML configuration file is the primary method

Examples:
  # Relay an application's output with a custom config
  ./app 2>&1 | tracewisp -c /etc/tracewisp/prod.toml

  # Send a SIGHUP to apply edited [router] settings
  kill -HUP $(pidof tracewisp)
`

// HelpCommand displays general or command-specific help
type HelpCommand struct {
	router *CommandRouter
	output io.Writer
}

func (c *HelpCommand) Execute(args []string) error {
	if len(args) > 0 && args[0] != "" {
		cmdName := args[0]
		if handler, exists := c.router.GetCommand(cmdName); exists {
			fmt.Fprint(c.output, handler.Help())
			return nil
		}
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Fprintf(c.output, generalHelpTemplate, c.formatCommandList())
	return nil
}

func (c *HelpCommand) Description() string {
	return "Display help information"
}

func (c *HelpCommand) Help() string {
	return `Help Command - Display help information

Usage:
  tracewisp help              Show general help
  tracewisp help <command>    Show help for a specific command

Examples:
  tracewisp help auth         # Show auth command help
  tracewisp auth --help       # Alternative way to get command help
`
}

// formatCommandList aligns command descriptions
func (c *HelpCommand) formatCommandList() string {
	commands := c.router.GetCommands()

	names := make([]string, 0, len(commands))
	maxLen := 0
	for name := range commands {
		names = append(names, name)
		maxLen = max(maxLen, len(name))
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		padding := strings.Repeat(" ", maxLen-len(name)+2)
		lines = append(lines, fmt.Sprintf("  %s%s%s", name, padding, commands[name].Description()))
	}
	return strings.Join(lines, "\n")
}
