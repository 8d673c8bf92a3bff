// FILE: tracewisp/src/cmd/tracewisp/output.go
package main

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// OutputHandler writes user-facing messages unless quiet mode is on
type OutputHandler struct {
	quiet  bool
	mu     sync.RWMutex
	stdout io.Writer
	stderr io.Writer
}

var output *OutputHandler

func InitOutputHandler(quiet bool) {
	output = &OutputHandler{
		quiet:  quiet,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func (o *OutputHandler) write(w io.Writer, format string, args ...any) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.quiet {
		fmt.Fprintf(w, format, args...)
	}
}

func Print(format string, args ...any) {
	if output != nil {
		output.write(output.stdout, format, args...)
	}
}

func Error(format string, args ...any) {
	if output != nil {
		output.write(output.stderr, format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}

// FatalError reports and exits; config errors happen before quiet mode is known
func FatalError(code int, format string, args ...any) {
	Error(format, args...)
	os.Exit(code)
}
