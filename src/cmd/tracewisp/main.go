// FILE: tracewisp/src/cmd/tracewisp/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"tracewisp/src/cmd/tracewisp/commands"
	"tracewisp/src/internal/config"
	"tracewisp/src/internal/version"

	"github.com/lixenwraith/log"
)

var logger *log.Logger

func main() {
	// Subcommands run before any configuration is loaded
	handled, err := commands.NewCommandRouter().Route(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if handled {
		os.Exit(0)
	}

	configPath, args := extractConfigFlag(os.Args[1:])
	if configPath != "" {
		os.Setenv("TRACEWISP_CONFIG_FILE", configPath)
	}

	cfg, err := config.Load(args)
	if err != nil {
		if configPath != "" && strings.Contains(err.Error(), "not found") {
			FatalError(2, "Config file not found: %s\n", configPath)
		}
		FatalError(1, "Failed to load config: %v\n", err)
	}

	InitOutputHandler(cfg.Quiet)

	if cfg.ShowVersion {
		Print("%s\n", version.String())
		os.Exit(0)
	}

	if err := initializeLogger(cfg); err != nil {
		FatalError(1, "Failed to initialize logger: %v\n", err)
	}
	defer shutdownLogger()

	logger.Info("msg", "TraceWisp starting",
		"component", "main",
		"version", version.String(),
		"config_file", cfg.ConfigFile,
		"router_mode", cfg.Router.Mode,
		"sinks", len(cfg.Sinks))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rm := NewReloadManager(cfg, args, logger)
	if err := rm.Start(ctx); err != nil {
		logger.Error("msg", "Failed to start",
			"component", "main",
			"error", err)
		shutdownLogger()
		os.Exit(1)
	}

	sigHandler := NewSignalHandler(rm, logger)
	defer sigHandler.Stop()

	// Runs until a termination signal, or until stdin closes when it is the input
	var reason string
	select {
	case sig := <-sigHandler.Wait(ctx):
		reason = fmt.Sprintf("signal %v", sig)
	case <-rm.App().InputDone():
		reason = "end of input"
	}

	logger.Info("msg", "Shutdown initiated, draining router",
		"component", "main",
		"reason", reason)

	timeout := time.Duration(cfg.Router.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := rm.Shutdown(shutdownCtx); err != nil {
		logger.Error("msg", "Shutdown completed with errors",
			"component", "main",
			"error", err)
		shutdownLogger()
		os.Exit(1)
	}
	logger.Info("msg", "Shutdown complete", "component", "main")
}

func shutdownLogger() {
	if logger != nil {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			// Best effort, the logger cannot report its own shutdown
			Error("Logger shutdown error: %v\n", err)
		}
	}
}
