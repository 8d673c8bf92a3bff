// FILE: tracewisp/src/internal/router/inline.go
package router

import (
	"context"
	"fmt"
	"sync"

	"tracewisp/src/internal/core"

	"github.com/lixenwraith/log"
)

// Inline delivers every enqueue immediately on a detached goroutine with no
// queue, no batching and no dispatcher. Deliveries are chained so each sink
// still sees records in enqueue order.
type Inline struct {
	*base

	chainMu  sync.Mutex
	tail     chan struct{} // closed when the latest delivery completes
	inflight sync.WaitGroup
}

// NewInline creates an uninitialised inline router
func NewInline(cfg Config, logger *log.Logger) *Inline {
	tail := make(chan struct{})
	close(tail)
	return &Inline{
		base: newBase(ModeInline, cfg, logger),
		tail: tail,
	}
}

func (r *Inline) Start() error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	switch r.State() {
	case Running:
		return nil
	case Uninitialised:
		r.setState(Running)
		r.logger.Info("msg", "Router started",
			"component", "router",
			"router", r.variant)
		return nil
	default:
		return fmt.Errorf("start from %s: %w", r.State(), ErrInvalidTransition)
	}
}

func (r *Inline) Enqueue(rec *core.MessageRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	return r.dispatch([]*core.MessageRecord{rec})
}

func (r *Inline) EnqueueBatch(recs []*core.MessageRecord) error {
	if err := validateBatch(recs); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	return r.dispatch(append([]*core.MessageRecord(nil), recs...))
}

func (r *Inline) dispatch(batch []*core.MessageRecord) error {
	if r.State() == Uninitialised {
		if err := r.Start(); err != nil {
			return err
		}
	}
	if r.State() != Running {
		return r.lateEnqueue(len(batch))
	}
	if r.registry.IsEmpty() {
		r.dropped.Add(uint64(len(batch)))
		return nil
	}

	// Nothing is held, so write-only-on-failure passes only the first
	// enqueue after a flagged failure
	if r.Settings().WriteOnlyOnFailure && !r.failureFlag.CompareAndSwap(true, false) {
		r.dropped.Add(uint64(len(batch)))
		return nil
	}

	r.chainMu.Lock()
	if r.State() != Running {
		r.chainMu.Unlock()
		return r.lateEnqueue(len(batch))
	}
	r.enqueued.Add(uint64(len(batch)))
	prev := r.tail
	done := make(chan struct{})
	r.tail = done
	r.inflight.Add(1)
	r.chainMu.Unlock()

	go func() {
		defer r.inflight.Done()
		defer close(done)
		<-prev
		// Failures are already counted in ErrorCount by deliver
		_ = r.deliver(context.Background(), batch)
	}()
	return nil
}

// Flush is a no-op, nothing is ever queued
func (r *Inline) Flush(ctx context.Context) error {
	return nil
}

// Shutdown waits for in-flight deliveries, then flushes and cleans up every sink
func (r *Inline) Shutdown(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	switch r.State() {
	case Uninitialised, Stopped:
		return nil
	case Running:
		// Taken with chainMu so no delivery is added once waiting begins
		r.chainMu.Lock()
		r.setState(ShutdownRequested)
		r.chainMu.Unlock()
		r.logger.Info("msg", "Router shutdown requested",
			"component", "router",
			"router", r.variant)
	}

	idle := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(idle)
	}()

	select {
	case <-idle:
	case <-ctx.Done():
		return fmt.Errorf("router shutdown: %w", ctx.Err())
	}

	flushErrs := r.flushSinks()
	cleanupErrs := r.cleanupSinks()
	r.setState(Stopped)

	r.logger.Info("msg", "Router stopped",
		"component", "router",
		"router", r.variant,
		"delivered", r.delivered.Load(),
		"dropped", r.dropped.Load(),
		"errors", r.errorCount.Load())

	if r.Settings().SuppressHandlerErrors {
		return nil
	}
	return joinErrors(append(flushErrs, cleanupErrs...))
}

func (r *Inline) ReInitialise() error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if st := r.State(); st != Stopped {
		return fmt.Errorf("reinitialise from %s: %w", st, ErrInvalidTransition)
	}

	r.resetForReinit()
	r.setState(Running)
	r.logger.Info("msg", "Router reinitialised",
		"component", "router",
		"router", r.variant)
	return nil
}

func (r *Inline) Configure(settings core.Settings) {
	r.storeSettings(settings)
}

func (r *Inline) FlagFailure() {
	r.failureFlag.Store(true)
}

func (r *Inline) Stats() Stats {
	return r.collectStats(0, 0)
}

func (r *Inline) DiagnosticStatus() string {
	return r.diagnosticStatus(0, 0)
}
