// FILE: tracewisp/src/cmd/tracewisp/commands/router.go
package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// Handler defines the interface required for all subcommands.
type Handler interface {
	Execute(args []string) error
	Description() string
	Help() string
}

// CommandRouter routes CLI arguments to a subcommand handler.
type CommandRouter struct {
	commands map[string]Handler
	output   io.Writer
}

// NewCommandRouter creates the router with all available commands.
func NewCommandRouter() *CommandRouter {
	return newCommandRouter(os.Stdout, os.Stderr)
}

func newCommandRouter(output, errOut io.Writer) *CommandRouter {
	router := &CommandRouter{
		commands: make(map[string]Handler),
		output:   output,
	}

	router.commands["auth"] = &AuthCommand{output: output, errOut: errOut, readPassword: readTerminalPassword}
	router.commands["config"] = &ConfigCommand{output: output}
	router.commands["tls"] = &TLSCommand{output: output, errOut: errOut}
	router.commands["version"] = &VersionCommand{output: output}
	router.commands["help"] = &HelpCommand{router: router, output: output}

	return router
}

// Route executes a subcommand when args name one. It reports false when the
// arguments belong to the main application.
func (r *CommandRouter) Route(args []string) (bool, error) {
	if len(args) < 2 {
		return false, nil
	}

	cmdName := args[1]

	for _, arg := range args[1:] {
		if arg == "-h" || arg == "--help" {
			if handler, exists := r.commands[cmdName]; exists && cmdName != "help" {
				fmt.Fprint(r.output, handler.Help())
				return true, nil
			}
			return true, r.commands["help"].Execute(nil)
		}
	}

	handler, exists := r.commands[cmdName]
	if !exists {
		if cmdName != "" && cmdName[0] != '-' {
			return false, fmt.Errorf("unknown command: %s\n\nRun 'tracewisp help' for usage", cmdName)
		}
		return false, nil
	}

	return true, handler.Execute(args[2:])
}

// GetCommand returns a command handler by name.
func (r *CommandRouter) GetCommand(name string) (Handler, bool) {
	cmd, exists := r.commands[name]
	return cmd, exists
}

// GetCommands returns all registered commands.
func (r *CommandRouter) GetCommands() map[string]Handler {
	return r.commands
}

// ShowCommands lists the subcommands on w.
func (r *CommandRouter) ShowCommands(w io.Writer) {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, r.commands[name].Description())
	}
	fmt.Fprintln(w, "\nUse 'tracewisp <command> --help' for command-specific help")
}

func coalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func coalesceInt(primary, secondary, defaultVal int) int {
	if primary != defaultVal {
		return primary
	}
	if secondary != defaultVal {
		return secondary
	}
	return defaultVal
}

func coalesceBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
