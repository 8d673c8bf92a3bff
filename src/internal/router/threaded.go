// FILE: tracewisp/src/internal/router/threaded.go
package router

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"tracewisp/src/internal/core"

	"github.com/lixenwraith/log"
)

// Threaded decouples producers from sink I/O with an ingress queue drained by
// one background dispatcher goroutine.
type Threaded struct {
	*base

	queue    *ingressQueue
	wake     chan struct{}
	flushReq chan flushRequest

	loop             atomic.Pointer[loopHandle]
	dispatcherActive atomic.Bool
	lastWrite        atomic.Int64 // unix nanos of the last swap

	// Owned by the dispatcher goroutine
	pending    []*pendingOp
	unobserved []error
}

// loopHandle ties one dispatcher run to its stop and completion signals
type loopHandle struct {
	stop chan struct{}
	done chan struct{}
	err  error // set before done is closed
}

type flushRequest struct {
	reply chan error
}

// NewThreaded creates an uninitialised threaded router
func NewThreaded(cfg Config, logger *log.Logger) *Threaded {
	return &Threaded{
		base:     newBase(ModeThreaded, cfg, logger),
		queue:    newIngressQueue(),
		wake:     make(chan struct{}, 1),
		flushReq: make(chan flushRequest),
	}
}

// Start launches the dispatcher. It is a no-op on a running router.
func (r *Threaded) Start() error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	switch r.State() {
	case Running:
		return nil
	case Uninitialised:
		r.startDispatcher()
		r.setState(Running)
		r.logger.Info("msg", "Router started",
			"component", "router",
			"router", r.variant)
		return nil
	default:
		return fmt.Errorf("start from %s: %w", r.State(), ErrInvalidTransition)
	}
}

// startDispatcher panics with ErrDispatcherActive if a dispatcher is already running
func (r *Threaded) startDispatcher() {
	if !r.dispatcherActive.CompareAndSwap(false, true) {
		panic(ErrDispatcherActive)
	}

	h := &loopHandle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	r.lastWrite.Store(time.Now().UnixNano())
	r.loop.Store(h)
	go r.run(h)
}

// Enqueue queues a record and wakes the dispatcher when a batch is due
func (r *Threaded) Enqueue(rec *core.MessageRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	return r.enqueue([]*core.MessageRecord{rec})
}

// EnqueueBatch queues records in order, rejecting the whole batch if any is nil
func (r *Threaded) EnqueueBatch(recs []*core.MessageRecord) error {
	if err := validateBatch(recs); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	return r.enqueue(recs)
}

func (r *Threaded) enqueue(recs []*core.MessageRecord) error {
	if r.State() == Uninitialised {
		if err := r.Start(); err != nil {
			return err
		}
	}
	if r.State() != Running {
		return r.lateEnqueue(len(recs))
	}

	// Nowhere to deliver, records are dropped rather than held for later sinks
	if r.registry.IsEmpty() {
		r.dropped.Add(uint64(len(recs)))
		return nil
	}

	settings := r.Settings()
	var depth int
	if len(recs) == 1 {
		depth = r.queue.push(recs[0], settings.MaxQueueDepth)
	} else {
		depth = r.queue.pushBatch(recs, settings.MaxQueueDepth)
	}
	r.enqueued.Add(uint64(len(recs)))

	if settings.BatchDue(depth, r.sinceLastWrite()) {
		r.signal()
	}
	return nil
}

// Flush drains pending records regardless of batch thresholds, waits for all
// in-flight sink calls and flushes every sink. Sink failures observed since the
// last Flush are returned unless handler errors are suppressed.
func (r *Threaded) Flush(ctx context.Context) error {
	if r.State() != Running {
		return nil
	}
	h := r.loop.Load()
	if h == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, core.DefaultFlushTimeout)
		defer cancel()
	}

	req := flushRequest{reply: make(chan error, 1)}
	select {
	case r.flushReq <- req:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush: %w", ctx.Err())
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return fmt.Errorf("flush: %w", ctx.Err())
	}
}

// Shutdown requests a stop and waits for the dispatcher to drain, clean up
// sinks and exit. It is safe to call repeatedly; a call interrupted by ctx can
// be retried.
func (r *Threaded) Shutdown(ctx context.Context) error {
	r.lifecycleMu.Lock()
	switch r.State() {
	case Uninitialised, Stopped:
		r.lifecycleMu.Unlock()
		return nil
	case Running:
		r.setState(ShutdownRequested)
		close(r.loop.Load().stop)
		r.logger.Info("msg", "Router shutdown requested",
			"component", "router",
			"router", r.variant,
			"queue_depth", r.queue.len())
	}
	h := r.loop.Load()
	r.lifecycleMu.Unlock()

	select {
	case <-h.done:
	case <-ctx.Done():
		return fmt.Errorf("router shutdown: %w", ctx.Err())
	}

	r.logger.Info("msg", "Router stopped",
		"component", "router",
		"router", r.variant,
		"delivered", r.delivered.Load(),
		"dropped", r.dropped.Load(),
		"errors", r.errorCount.Load())
	return h.err
}

// ReInitialise restarts a stopped router with an empty registry and zero error count
func (r *Threaded) ReInitialise() error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if st := r.State(); st != Stopped {
		return fmt.Errorf("reinitialise from %s: %w", st, ErrInvalidTransition)
	}

	r.resetForReinit()
	r.queue.reset()
	r.pending = nil
	r.unobserved = nil

	r.startDispatcher()
	r.setState(Running)
	r.logger.Info("msg", "Router reinitialised",
		"component", "router",
		"router", r.variant)
	return nil
}

// Configure replaces the settings and wakes the dispatcher to re-evaluate thresholds
func (r *Threaded) Configure(settings core.Settings) {
	r.storeSettings(settings)
	r.signal()
}

// FlagFailure opens the write-only-on-failure gate for the next drain
func (r *Threaded) FlagFailure() {
	r.failureFlag.Store(true)
	r.signal()
}

func (r *Threaded) Stats() Stats {
	return r.collectStats(r.queue.len(), r.queue.evicted.Load())
}

func (r *Threaded) DiagnosticStatus() string {
	return r.diagnosticStatus(r.queue.len(), r.queue.evicted.Load())
}

func (r *Threaded) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Threaded) sinceLastWrite() time.Duration {
	return time.Duration(time.Now().UnixNano() - r.lastWrite.Load())
}

// joinErrors returns nil for an empty slice
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
