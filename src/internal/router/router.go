// FILE: tracewisp/src/internal/router/router.go
package router

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"tracewisp/src/internal/core"
	"tracewisp/src/internal/sink"

	"github.com/lixenwraith/log"
)

// Router accepts trace records from any number of producers and delivers
// them to every registered sink.
type Router interface {
	// Start moves an uninitialised router to Running. Enqueue starts it implicitly.
	Start() error

	// Enqueue hands one record to the router without blocking on sink I/O
	Enqueue(rec *core.MessageRecord) error

	// EnqueueBatch hands several records to the router in order
	EnqueueBatch(recs []*core.MessageRecord) error

	// Flush forces pending records out and waits for in-flight sink calls
	Flush(ctx context.Context) error

	// Shutdown drains pending records, cleans up every sink and stops the router
	Shutdown(ctx context.Context) error

	// ReInitialise restarts a stopped router with no sinks and a zero error count
	ReInitialise() error

	AddSink(s sink.MessageSink) error
	Sinks() []sink.MessageSink
	ErrorCount() uint64

	// Configure replaces the runtime settings, effective immediately
	Configure(settings core.Settings)
	Settings() core.Settings

	// FlagFailure opens the write-only-on-failure gate for one drain
	FlagFailure()

	State() State
	Stats() Stats
	DiagnosticStatus() string
}

const (
	ModeThreaded = "threaded"
	ModeInline   = "inline"
)

// Config holds construction-time router options
type Config struct {
	// Variant: ModeThreaded (default) or ModeInline
	Mode string

	Settings core.Settings

	// Strict reports enqueues after shutdown as ErrRouterStopped instead of dropping them
	Strict bool

	// Environment used for record enrichment, resolved from the host when nil
	Environment *core.Environment
}

// DefaultConfig returns a threaded router with default settings
func DefaultConfig() Config {
	return Config{
		Mode:     ModeThreaded,
		Settings: core.DefaultSettings(),
	}
}

// New creates a router of the configured variant
func New(cfg Config, logger *log.Logger) (Router, error) {
	switch cfg.Mode {
	case "", ModeThreaded:
		return NewThreaded(cfg, logger), nil
	case ModeInline:
		return NewInline(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown router mode: %s", cfg.Mode)
	}
}

// base is the state shared by both router variants
type base struct {
	variant  string
	strict   bool
	env      core.Environment
	logger   *log.Logger
	registry *SinkRegistry
	settings atomic.Pointer[core.Settings]

	lifecycleMu sync.Mutex
	state       atomic.Int32

	failureFlag atomic.Bool
	errorCount  atomic.Uint64

	// Statistics
	enqueued  atomic.Uint64
	delivered atomic.Uint64
	batches   atomic.Uint64
	dropped   atomic.Uint64
}

func newBase(variant string, cfg Config, logger *log.Logger) *base {
	if logger == nil {
		logger = log.NewLogger()
	}

	b := &base{
		variant:  variant,
		strict:   cfg.Strict,
		logger:   logger,
		registry: NewSinkRegistry(),
	}
	if cfg.Environment != nil {
		b.env = *cfg.Environment
	} else {
		b.env = core.CurrentEnvironment()
	}

	settings := cfg.Settings
	b.settings.Store(&settings)
	return b
}

func (b *base) State() State {
	return State(b.state.Load())
}

func (b *base) setState(s State) {
	b.state.Store(int32(s))
}

// AddSink registers a sink. Sinks cannot be added once shutdown has begun.
func (b *base) AddSink(s sink.MessageSink) error {
	if s == nil {
		return ErrNilSink
	}
	if st := b.State(); st == ShutdownRequested || st == Stopped {
		return ErrRouterStopped
	}
	if err := b.registry.Add(s); err != nil {
		return err
	}

	b.logger.Info("msg", "Sink registered",
		"component", "router",
		"router", b.variant,
		"sink", s.Name(),
		"sink_count", b.registry.Len())
	return nil
}

func (b *base) Sinks() []sink.MessageSink {
	return b.registry.Snapshot()
}

func (b *base) ErrorCount() uint64 {
	return b.errorCount.Load()
}

func (b *base) Settings() core.Settings {
	return *b.settings.Load()
}

func (b *base) storeSettings(settings core.Settings) {
	b.settings.Store(&settings)
	b.logger.Debug("msg", "Router settings updated",
		"component", "router",
		"router", b.variant,
		"batch_capacity", settings.BatchCapacity,
		"batch_delay_ms", settings.BatchDelayMS,
		"max_queue_depth", settings.MaxQueueDepth,
		"write_only_on_failure", settings.WriteOnlyOnFailure,
		"suppress_handler_errors", settings.SuppressHandlerErrors)
}

// lateEnqueue handles records arriving after shutdown began
func (b *base) lateEnqueue(n int) error {
	b.dropped.Add(uint64(n))
	if b.strict {
		return ErrRouterStopped
	}
	return nil
}

// resetForReinit clears sinks and counters ahead of a restart
func (b *base) resetForReinit() {
	b.registry.Reset()
	b.errorCount.Store(0)
	b.failureFlag.Store(false)
}

func validateBatch(recs []*core.MessageRecord) error {
	for _, rec := range recs {
		if rec == nil {
			return ErrNilRecord
		}
	}
	return nil
}
