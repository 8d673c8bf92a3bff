// FILE: tracewisp/src/cmd/tracewisp/commands/version.go
package commands

import (
	"fmt"
	"io"

	"tracewisp/src/internal/version"
)

// VersionCommand prints build information
type VersionCommand struct {
	output io.Writer
}

func (c *VersionCommand) Execute(args []string) error {
	fmt.Fprintln(c.output, version.String())
	return nil
}

func (c *VersionCommand) Description() string {
	return "Show version information"
}

func (c *VersionCommand) Help() string {
	return `Version Command - Show TraceWisp version information

Usage:
  tracewisp version
  tracewisp --version
`
}
