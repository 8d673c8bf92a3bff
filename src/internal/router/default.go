// FILE: tracewisp/src/internal/router/default.go
package router

import (
	"sync"

	"github.com/lixenwraith/log"
)

// Process-wide default router, a convenience for code that cannot carry a
// Router explicitly. Components should prefer an injected Router.
var (
	defaultMu     sync.Mutex
	defaultRouter Router
	defaultLogger *log.Logger
)

// Default returns the process-wide router, creating a threaded one on first access
func Default() Router {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRouter == nil {
		defaultRouter = NewThreaded(DefaultConfig(), defaultLogger)
	}
	return defaultRouter
}

// UseInline selects the variant of the default router and reports whether the
// inline variant is in effect. The first selection wins with two exceptions:
// a threaded default that has not started yet may still be switched to inline,
// and an inline default is never switched back.
func UseInline(inline bool) bool {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	cfg := DefaultConfig()
	switch r := defaultRouter.(type) {
	case nil:
		if inline {
			cfg.Mode = ModeInline
			defaultRouter = NewInline(cfg, defaultLogger)
		} else {
			defaultRouter = NewThreaded(cfg, defaultLogger)
		}
	case *Threaded:
		if inline && r.State() == Uninitialised {
			cfg.Mode = ModeInline
			defaultRouter = NewInline(cfg, defaultLogger)
		}
	}

	_, isInline := defaultRouter.(*Inline)
	return isInline
}

// SetDefaultLogger sets the logger used when the default router is created
func SetDefaultLogger(logger *log.Logger) {
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}
