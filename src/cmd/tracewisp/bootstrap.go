// FILE: tracewisp/src/cmd/tracewisp/bootstrap.go
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/router"
	"tracewisp/src/internal/sink"
	"tracewisp/src/internal/source"
	"tracewisp/src/internal/status"
	"tracewisp/src/internal/trace"
	"tracewisp/src/internal/version"

	"github.com/lixenwraith/log"
)

// App is the running daemon: a router, its sinks and the components feeding
// and observing it
type App struct {
	router router.Router
	writer *trace.Writer
	status *status.Server
	source *source.StdinSource
	logger *log.Logger
}

// bootstrapApp builds and starts every component described by the configuration
func bootstrapApp(cfg *config.Config, logger *log.Logger) (*App, error) {
	r, err := router.New(router.Config{
		Mode:     cfg.Router.Mode,
		Settings: cfg.Router.Settings(),
		Strict:   cfg.Router.Strict,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	sinks, err := sink.NewAll(cfg.Sinks, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sinks: %w", err)
	}
	for _, s := range sinks {
		if err := r.AddSink(s); err != nil {
			return nil, fmt.Errorf("failed to register sink %s: %w", s.Name(), err)
		}
	}
	if err := r.Start(); err != nil {
		return nil, fmt.Errorf("failed to start router: %w", err)
	}
	displaySinkEndpoints(cfg.Sinks)

	app := &App{
		router: r,
		writer: trace.New(r, "tracewisp"),
		logger: logger,
	}

	if cfg.Status != nil && cfg.Status.Enabled {
		app.status, err = status.NewServer(cfg.Status, r, logger)
		if err == nil {
			err = app.status.Start()
		}
		if err != nil {
			app.abort()
			return nil, fmt.Errorf("failed to start status server: %w", err)
		}
	}

	if cfg.Source != nil && cfg.Source.Stdin {
		app.source, err = source.NewStdinSource(cfg.Source, app.writer, logger)
		if err != nil {
			app.abort()
			return nil, fmt.Errorf("failed to create stdin source: %w", err)
		}
		if err := app.source.Start(); err != nil {
			app.abort()
			return nil, err
		}
	}

	logger.Info("msg", "TraceWisp started",
		"component", "main",
		"version", version.Short(),
		"router", cfg.Router.Mode,
		"sinks", len(sinks),
		"status_enabled", app.status != nil,
		"stdin", app.source != nil)

	return app, nil
}

// InputDone is closed when stdin ends; nil (never ready) without a stdin source
func (a *App) InputDone() <-chan struct{} {
	if a == nil || a.source == nil {
		return nil
	}
	return a.source.Done()
}

func (a *App) Router() router.Router {
	return a.router
}

// Shutdown stops intake first, then drains the router, which cleans up sinks
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.source != nil {
		a.source.Stop()
	}
	if a.status != nil {
		if err := a.status.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("status server: %w", err))
		}
	}
	if err := a.router.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("router: %w", err))
	}

	a.logger.Info("msg", "Router drained",
		"component", "main",
		"error_count", a.router.ErrorCount())
	return errors.Join(errs...)
}

func (a *App) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultAbortTimeout)
	defer cancel()
	_ = a.Shutdown(ctx)
}

// initializeLogger sets up the daemon's own logger from the [logging] section
func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()
	router.SetDefaultLogger(logger)

	var configArgs []string

	if cfg.Quiet {
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=false",
			"level=255")
		return logger.InitWithDefaults(configArgs...)
	}

	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	switch cfg.Logging.Output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_stdout=false")
	case "stdout", "stderr":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target="+cfg.Logging.Output)
	case "file":
		configArgs = append(configArgs, "enable_stdout=false")
		configureFileLogging(&configArgs, cfg)
	case "both":
		configArgs = append(configArgs, "enable_stdout=true")
		configureFileLogging(&configArgs, cfg)
		configureConsoleTarget(&configArgs, cfg)
	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if cfg.Logging.Console != nil && cfg.Logging.Console.Format != "" {
		configArgs = append(configArgs, "format="+cfg.Logging.Console.Format)
	}

	return logger.InitWithDefaults(configArgs...)
}

func configureFileLogging(configArgs *[]string, cfg *config.Config) {
	if f := cfg.Logging.File; f != nil {
		*configArgs = append(*configArgs,
			fmt.Sprintf("directory=%s", f.Directory),
			fmt.Sprintf("name=%s", f.Name),
			fmt.Sprintf("max_size_mb=%d", f.MaxSizeMB),
			fmt.Sprintf("max_total_size_mb=%d", f.MaxTotalSizeMB))
		if f.RetentionHours > 0 {
			*configArgs = append(*configArgs,
				fmt.Sprintf("retention_period_hrs=%.1f", f.RetentionHours))
		}
	}
}

func configureConsoleTarget(configArgs *[]string, cfg *config.Config) {
	target := "stderr"
	if cfg.Logging.Console != nil && cfg.Logging.Console.Target != "" {
		target = cfg.Logging.Console.Target
	}
	if target == "split" {
		*configArgs = append(*configArgs, "stdout_split_mode=true")
	}
	*configArgs = append(*configArgs, "stdout_target="+target)
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}

// displaySinkEndpoints logs where trace output goes
func displaySinkEndpoints(sinks []config.SinkConfig) {
	for i, s := range sinks {
		fields := []any{
			"msg", "Sink configured",
			"component", "main",
			"sink_index", i,
			"name", s.Name,
			"type", s.Type,
		}
		switch s.Type {
		case "tcp":
			if s.TCP != nil {
				fields = append(fields, "listen", fmt.Sprintf("%s:%d", s.TCP.Host, s.TCP.Port))
			}
		case "tcp_client":
			if s.TCPClient != nil {
				fields = append(fields, "address", s.TCPClient.Address)
			}
		case "http_client":
			if s.HTTPClient != nil {
				fields = append(fields, "url", s.HTTPClient.URL)
			}
		case "beats":
			if s.Beats != nil {
				fields = append(fields, "address", s.Beats.Address)
			}
		case "file":
			if s.File != nil {
				fields = append(fields, "directory", s.File.Directory, "file", s.File.Name)
			}
		case "console":
			if s.Console != nil {
				fields = append(fields, "target", s.Console.Target)
			}
		}
		logger.Info(fields...)
	}
}
