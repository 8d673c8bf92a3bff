// FILE: tracewisp/src/cmd/tracewisp/reload.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"tracewisp/src/internal/config"

	lconfig "github.com/lixenwraith/config"
	"github.com/lixenwraith/log"
)

const defaultAbortTimeout = 5 * time.Second

// ReloadManager owns the running App and applies configuration changes.
// Router batching settings are applied in place; everything else is logged
// as requiring a restart, since rebuilding sinks would drop queued trace.
type ReloadManager struct {
	cfg         *config.Config
	cliArgs     []string
	app         *App
	lcfg        *lconfig.Config
	logger      *log.Logger
	mu          sync.RWMutex
	reloadingMu sync.Mutex
	isReloading bool
	shutdownCh  chan struct{}
	wg          sync.WaitGroup

	statusReporterCancel context.CancelFunc
	statusReporterMu     sync.Mutex
}

func NewReloadManager(initialCfg *config.Config, cliArgs []string, logger *log.Logger) *ReloadManager {
	return &ReloadManager{
		cfg:        initialCfg,
		cliArgs:    cliArgs,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}
}

// Start bootstraps the app and, when enabled, begins watching the config file
func (rm *ReloadManager) Start(ctx context.Context) error {
	app, err := bootstrapApp(rm.cfg, rm.logger)
	if err != nil {
		return fmt.Errorf("failed to bootstrap: %w", err)
	}

	rm.mu.Lock()
	rm.app = app
	rm.mu.Unlock()

	if !rm.cfg.DisableStatusReporter {
		rm.startStatusReporter(ctx)
	}

	if !rm.cfg.ConfigAutoReload {
		return nil
	}
	if _, err := os.Stat(rm.cfg.ConfigFile); err != nil {
		rm.logger.Warn("msg", "Config auto reload requested without a config file",
			"component", "reload",
			"config_file", rm.cfg.ConfigFile)
		return nil
	}

	// The watcher gets its own target so the running config is never written behind our back
	target := *rm.cfg
	lcfg, err := lconfig.NewBuilder().
		WithFile(rm.cfg.ConfigFile).
		WithTarget(&target).
		WithFileFormat("toml").
		WithSecurityOptions(lconfig.SecurityOptions{
			PreventPathTraversal: true,
			MaxFileSize:          10 * 1024 * 1024,
		}).
		Build()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	rm.lcfg = lcfg

	lcfg.AutoUpdateWithOptions(lconfig.WatchOptions{
		PollInterval:  time.Second,
		Debounce:      500 * time.Millisecond,
		ReloadTimeout: 30 * time.Second,
	})

	rm.wg.Add(1)
	go rm.watchLoop(ctx)

	rm.logger.Info("msg", "Configuration hot reload enabled",
		"component", "reload",
		"config_file", rm.cfg.ConfigFile)
	return nil
}

func (rm *ReloadManager) watchLoop(ctx context.Context) {
	defer rm.wg.Done()

	changeCh := rm.lcfg.Watch()
	for {
		select {
		case <-ctx.Done():
			return
		case <-rm.shutdownCh:
			return
		case changedPath, ok := <-changeCh:
			if !ok {
				return
			}
			switch changedPath {
			case "file_deleted":
				rm.logger.Error("msg", "Configuration file deleted",
					"component", "reload",
					"action", "keeping current configuration")
				continue
			case "permissions_changed":
				rm.logger.Error("msg", "Configuration file permissions changed",
					"component", "reload",
					"action", "reload blocked")
				continue
			case "reload_timeout":
				rm.logger.Error("msg", "Configuration reload timed out",
					"component", "reload",
					"action", "keeping current configuration")
				continue
			}
			if reason, isErr := strings.CutPrefix(changedPath, "reload_error:"); isErr {
				rm.logger.Error("msg", "Configuration reload error",
					"component", "reload",
					"error", reason,
					"action", "keeping current configuration")
				continue
			}

			if rm.shouldReload(changedPath) {
				rm.TriggerReload(ctx)
			}
		}
	}
}

// shouldReload reports whether a changed key can be applied without restart
func (rm *ReloadManager) shouldReload(path string) bool {
	switch {
	case strings.HasPrefix(path, "router."):
		return true
	case path == "disable_status_reporter":
		return true
	case path == "sinks", strings.HasPrefix(path, "sinks."),
		strings.HasPrefix(path, "status."),
		strings.HasPrefix(path, "source."),
		strings.HasPrefix(path, "logging."):
		rm.logger.Warn("msg", "Configuration change requires restart",
			"component", "reload",
			"key", path)
	}
	return false
}

// TriggerReload re-reads the configuration and applies what can change live
func (rm *ReloadManager) TriggerReload(ctx context.Context) {
	rm.reloadingMu.Lock()
	if rm.isReloading {
		rm.reloadingMu.Unlock()
		rm.logger.Debug("msg", "Reload already in progress, skipping",
			"component", "reload")
		return
	}
	rm.isReloading = true
	rm.reloadingMu.Unlock()

	defer func() {
		rm.reloadingMu.Lock()
		rm.isReloading = false
		rm.reloadingMu.Unlock()
	}()

	rm.logger.Info("msg", "Starting configuration reload", "component", "reload")

	newCfg, err := rm.loadConfig()
	if err == nil {
		err = rm.applyConfig(ctx, newCfg)
	}
	if err != nil {
		rm.logger.Error("msg", "Configuration reload failed",
			"component", "reload",
			"error", err,
			"action", "keeping current configuration")
		return
	}

	rm.logger.Info("msg", "Configuration reload completed", "component", "reload")
}

func (rm *ReloadManager) loadConfig() (*config.Config, error) {
	if rm.lcfg == nil {
		return config.Load(rm.cliArgs)
	}

	updated, err := rm.lcfg.AsStruct()
	if err != nil {
		return nil, fmt.Errorf("failed to get updated config: %w", err)
	}
	newCfg, ok := updated.(*config.Config)
	if !ok || newCfg.Router == nil {
		return nil, fmt.Errorf("updated config has no router section")
	}
	return newCfg, nil
}

// applyConfig hot-applies router settings and the status reporter toggle
func (rm *ReloadManager) applyConfig(ctx context.Context, newCfg *config.Config) error {
	if err := config.ValidateRouter(newCfg.Router); err != nil {
		return err
	}

	rm.mu.Lock()
	oldCfg := rm.cfg
	app := rm.app
	merged := *oldCfg
	merged.Router = newCfg.Router
	merged.DisableStatusReporter = newCfg.DisableStatusReporter
	rm.cfg = &merged
	rm.mu.Unlock()

	if newCfg.Router.Mode != oldCfg.Router.Mode || newCfg.Router.Strict != oldCfg.Router.Strict {
		rm.logger.Warn("msg", "Router mode and strictness change on restart only",
			"component", "reload",
			"current_mode", oldCfg.Router.Mode,
			"configured_mode", newCfg.Router.Mode)
	}

	settings := newCfg.Router.Settings()
	app.Router().Configure(settings)
	rm.logger.Info("msg", "Router settings applied",
		"component", "reload",
		"batch_capacity", settings.BatchCapacity,
		"batch_delay_ms", settings.BatchDelayMS,
		"max_queue_depth", settings.MaxQueueDepth,
		"write_only_on_failure", settings.WriteOnlyOnFailure,
		"suppress_handler_errors", settings.SuppressHandlerErrors)

	if newCfg.DisableStatusReporter != oldCfg.DisableStatusReporter {
		if newCfg.DisableStatusReporter {
			rm.stopStatusReporter()
		} else {
			rm.startStatusReporter(ctx)
		}
	}
	return nil
}

func (rm *ReloadManager) startStatusReporter(ctx context.Context) {
	rm.statusReporterMu.Lock()
	defer rm.statusReporterMu.Unlock()

	if rm.statusReporterCancel != nil {
		rm.statusReporterCancel()
	}
	reporterCtx, cancel := context.WithCancel(ctx)
	rm.statusReporterCancel = cancel

	go statusReporter(reporterCtx, rm.App())
	rm.logger.Debug("msg", "Started status reporter", "component", "reload")
}

func (rm *ReloadManager) stopStatusReporter() {
	rm.statusReporterMu.Lock()
	defer rm.statusReporterMu.Unlock()

	if rm.statusReporterCancel != nil {
		rm.statusReporterCancel()
		rm.statusReporterCancel = nil
		rm.logger.Debug("msg", "Stopped status reporter", "component", "reload")
	}
}

// App returns the running app
func (rm *ReloadManager) App() *App {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.app
}

// Shutdown stops watching and drains the app
func (rm *ReloadManager) Shutdown(ctx context.Context) error {
	rm.stopStatusReporter()

	close(rm.shutdownCh)
	rm.wg.Wait()
	if rm.lcfg != nil {
		rm.lcfg.StopAutoUpdate()
	}

	if app := rm.App(); app != nil {
		return app.Shutdown(ctx)
	}
	return nil
}
