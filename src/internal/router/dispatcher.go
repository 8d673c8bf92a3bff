// FILE: tracewisp/src/internal/router/dispatcher.go
package router

import (
	"context"
	"time"

	"tracewisp/src/internal/core"
)

// pendingOp is one fan-out running on its own goroutine
type pendingOp struct {
	done chan struct{}
	err  error
	size int
}

// run is the dispatcher loop. Exactly one instance runs per router.
func (r *Threaded) run(h *loopHandle) {
	timer := time.NewTimer(core.DispatchIdleTimeout)
	defer timer.Stop()

	for !stopping(h) {
		r.prune()

		// A busy queue never reaches idle, so flush requests are polled here too
		r.pollFlush()

		depth := r.queue.len()
		if depth == 0 {
			r.idle(h, timer, core.DispatchIdleTimeout)
			continue
		}

		settings := r.Settings()
		forced := false
		if settings.WriteOnlyOnFailure {
			// Trace is held until a failure is flagged; the flag is consumed once
			if !r.failureFlag.CompareAndSwap(true, false) {
				r.idle(h, timer, core.DispatchIdleTimeout)
				continue
			}
			forced = true
		}

		if !forced {
			since := r.sinceLastWrite()
			if !settings.BatchDue(depth, since) {
				r.idle(h, timer, nextCheck(settings, since))
				continue
			}
		}

		r.drain(forced)
	}

	h.err = r.finish()

	// The dispatcher slot is released before Stopped becomes visible so a
	// ReInitialise observing Stopped can always start a new one
	r.dispatcherActive.Store(false)
	r.setState(Stopped)
	close(h.done)
}

func stopping(h *loopHandle) bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// pollFlush serves a waiting flush request without blocking
func (r *Threaded) pollFlush() {
	select {
	case req := <-r.flushReq:
		r.handleFlush(req)
	default:
	}
}

// idle blocks until woken, asked to flush, stopped or timed out
func (r *Threaded) idle(h *loopHandle, timer *time.Timer, timeout time.Duration) {
	timer.Reset(timeout)
	defer timer.Stop()

	select {
	case <-r.wake:
	case req := <-r.flushReq:
		r.handleFlush(req)
	case <-h.stop:
	case <-timer.C:
	}
}

// nextCheck returns how long until the delay threshold could fire
func nextCheck(settings core.Settings, since time.Duration) time.Duration {
	wait := core.DispatchIdleTimeout
	if settings.BatchDelayMS > 0 {
		if remaining := settings.BatchDelay() - since; remaining > 0 && remaining < wait {
			wait = remaining
		}
	}
	return wait
}

// drain swaps the queue out and fans it out, repeating while records remain
// and are due. A forced drain ignores batch thresholds. The previous fan-out
// is awaited before the next starts so every sink sees batches in FIFO order.
// An unforced drain yields to a pending flush between passes.
func (r *Threaded) drain(forced bool) {
	for pass := 0; pass < core.MaxDrainPasses; pass++ {
		r.awaitPending()

		if pass > 0 && !forced {
			select {
			case req := <-r.flushReq:
				// handleFlush drains with force, nothing is left for this pass
				r.handleFlush(req)
				return
			default:
			}
		}

		if pass > 0 && !forced && !r.Settings().BatchDue(r.queue.len(), r.sinceLastWrite()) {
			return
		}

		batch := r.queue.swap()
		if len(batch) == 0 {
			return
		}
		r.lastWrite.Store(time.Now().UnixNano())
		r.launch(batch)
	}
}

func (r *Threaded) launch(batch []*core.MessageRecord) {
	op := &pendingOp{
		done: make(chan struct{}),
		size: len(batch),
	}
	r.pending = append(r.pending, op)

	go func() {
		defer close(op.done)
		op.err = r.deliver(context.Background(), batch)
	}()
}

// prune drops completed operations, keeping their failures for the next Flush
func (r *Threaded) prune() {
	kept := r.pending[:0]
	for _, op := range r.pending {
		select {
		case <-op.done:
			r.observe(op)
		default:
			kept = append(kept, op)
		}
	}
	clear(r.pending[len(kept):])
	r.pending = kept
}

func (r *Threaded) awaitPending() {
	for _, op := range r.pending {
		<-op.done
		r.observe(op)
	}
	clear(r.pending)
	r.pending = r.pending[:0]
}

func (r *Threaded) observe(op *pendingOp) {
	if op.err == nil || r.Settings().SuppressHandlerErrors {
		return
	}
	if len(r.unobserved) < core.MaxUnobservedFailures {
		r.unobserved = append(r.unobserved, op.err)
	}
}

func (r *Threaded) takeUnobserved() []error {
	errs := r.unobserved
	r.unobserved = nil
	return errs
}

// handleFlush runs on the dispatcher: forced drain, wait, sink flush, report
func (r *Threaded) handleFlush(req flushRequest) {
	settings := r.Settings()
	if !settings.WriteOnlyOnFailure || r.failureFlag.CompareAndSwap(true, false) {
		r.drain(true)
	}
	r.awaitPending()

	flushErrs := r.flushSinks()
	errs := r.takeUnobserved()
	if !settings.SuppressHandlerErrors {
		errs = append(errs, flushErrs...)
	}
	req.reply <- joinErrors(errs)
}

// finish performs the final drain and cleans up every sink
func (r *Threaded) finish() error {
	settings := r.Settings()

	if settings.WriteOnlyOnFailure && !r.failureFlag.CompareAndSwap(true, false) {
		if discarded := r.queue.reset(); discarded > 0 {
			r.dropped.Add(uint64(discarded))
			r.logger.Debug("msg", "Discarded held trace, no failure flagged",
				"component", "router",
				"router", r.variant,
				"discarded", discarded)
		}
	} else {
		for {
			r.awaitPending()
			batch := r.queue.swap()
			if len(batch) == 0 {
				break
			}
			r.launch(batch)
		}
	}
	r.awaitPending()

	flushErrs := r.flushSinks()
	cleanupErrs := r.cleanupSinks()

	errs := r.takeUnobserved()
	if !settings.SuppressHandlerErrors {
		errs = append(errs, flushErrs...)
		errs = append(errs, cleanupErrs...)
	}

	// Records racing with shutdown are dropped
	if late := r.queue.reset(); late > 0 {
		r.dropped.Add(uint64(late))
	}
	return joinErrors(errs)
}
