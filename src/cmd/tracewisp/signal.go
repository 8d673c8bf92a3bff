// FILE: tracewisp/src/cmd/tracewisp/signal.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/log"
)

// SignalHandler turns SIGHUP/SIGUSR1 into reloads and reports termination signals
type SignalHandler struct {
	reloadManager *ReloadManager
	logger        *log.Logger
	sigChan       chan os.Signal
}

func NewSignalHandler(rm *ReloadManager, logger *log.Logger) *SignalHandler {
	sh := &SignalHandler{
		reloadManager: rm,
		logger:        logger,
		sigChan:       make(chan os.Signal, 1),
	}

	signal.Notify(sh.sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,  // Traditional reload signal
		syscall.SIGUSR1, // Alternative reload signal
	)
	return sh
}

// Wait handles reload signals in the background and delivers the first
// termination signal on the returned channel
func (sh *SignalHandler) Wait(ctx context.Context) <-chan os.Signal {
	term := make(chan os.Signal, 1)
	go func() {
		for {
			select {
			case sig := <-sh.sigChan:
				switch sig {
				case syscall.SIGHUP, syscall.SIGUSR1:
					sh.logger.Info("msg", "Reload signal received",
						"component", "signal",
						"signal", sig)
					go sh.reloadManager.TriggerReload(ctx)
				default:
					term <- sig
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return term
}

func (sh *SignalHandler) Stop() {
	signal.Stop(sh.sigChan)
}
