// FILE: tracewisp/src/internal/router/fanout.go
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tracewisp/src/internal/core"
	"tracewisp/src/internal/sink"
)

// deliver enriches the batch once and hands it to every registered sink
// concurrently, waiting for all of them. Each failing sink increments the
// error count; the joined failures are returned for the caller to surface or
// discard.
func (b *base) deliver(ctx context.Context, batch []*core.MessageRecord) error {
	if len(batch) == 0 {
		return nil
	}

	for _, rec := range batch {
		rec.Enrich(b.env)
	}

	sinks := b.registry.Snapshot()
	if len(sinks) == 0 {
		b.dropped.Add(uint64(len(batch)))
		b.logger.Debug("msg", "No sinks registered, batch dropped",
			"component", "router",
			"router", b.variant,
			"batch_size", len(batch))
		return nil
	}

	errs := make([]error, len(sinks))
	if len(sinks) == 1 {
		errs[0] = b.invoke(ctx, sinks[0], batch)
	} else {
		var wg sync.WaitGroup
		for i, s := range sinks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = b.invoke(ctx, s, batch)
			}()
		}
		wg.Wait()
	}

	var failed []error
	for _, err := range errs {
		if err != nil {
			b.errorCount.Add(1)
			failed = append(failed, err)
		}
	}

	// A batch counts as delivered once any sink accepted it
	if len(failed) < len(sinks) {
		b.batches.Add(1)
		b.delivered.Add(uint64(len(batch)))
	}
	return errors.Join(failed...)
}

// invoke calls Handle, converting a panic into a SinkError
func (b *base) invoke(ctx context.Context, s sink.MessageSink, batch []*core.MessageRecord) (err error) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Warn("msg", "Sink panicked while handling batch",
				"component", "router",
				"router", b.variant,
				"sink", s.Name(),
				"panic", p)
			err = &SinkError{Sink: s.Name(), Op: "handle", Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	if herr := s.Handle(ctx, batch); herr != nil {
		b.logger.Debug("msg", "Sink failed to handle batch",
			"component", "router",
			"router", b.variant,
			"sink", s.Name(),
			"batch_size", len(batch),
			"error", herr)
		return &SinkError{Sink: s.Name(), Op: "handle", Err: herr}
	}
	return nil
}

// flushSinks calls Flush on every sink. Failures count as sink errors.
func (b *base) flushSinks() []error {
	var errs []error
	for _, s := range b.registry.Snapshot() {
		if err := b.callSafely(s, "flush", s.Flush); err != nil {
			b.errorCount.Add(1)
			errs = append(errs, err)
		}
	}
	return errs
}

// cleanupSinks releases every sink's resources
func (b *base) cleanupSinks() []error {
	var errs []error
	for _, s := range b.registry.Snapshot() {
		if err := b.callSafely(s, "cleanup", s.Cleanup); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (b *base) callSafely(s sink.MessageSink, op string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &SinkError{Sink: s.Name(), Op: op, Err: fmt.Errorf("panic: %v", p)}
		}
		if err != nil {
			b.logger.Warn("msg", "Sink call failed",
				"component", "router",
				"router", b.variant,
				"sink", s.Name(),
				"op", op,
				"error", err)
		}
	}()

	if ferr := fn(); ferr != nil {
		return &SinkError{Sink: s.Name(), Op: op, Err: ferr}
	}
	return nil
}
