// FILE: tracewisp/src/internal/router/registry.go
package router

import (
	"sync"
	"sync/atomic"

	"tracewisp/src/internal/sink"
)

// SinkRegistry holds the registered sinks as an immutable slice that is
// replaced, never modified, on every Add. Readers take the current slice
// without locking.
type SinkRegistry struct {
	mu    sync.Mutex // serialises writers only
	sinks atomic.Pointer[[]sink.MessageSink]
}

// NewSinkRegistry creates an empty registry
func NewSinkRegistry() *SinkRegistry {
	return &SinkRegistry{}
}

// Add publishes a new slice made of the current sinks plus s
func (r *SinkRegistry) Add(s sink.MessageSink) error {
	if s == nil {
		return ErrNilSink
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var current []sink.MessageSink
	if p := r.sinks.Load(); p != nil {
		current = *p
	}

	next := make([]sink.MessageSink, len(current), len(current)+1)
	copy(next, current)
	next = append(next, s)
	r.sinks.Store(&next)
	return nil
}

// Snapshot returns the published slice. Callers must not modify it.
func (r *SinkRegistry) Snapshot() []sink.MessageSink {
	if p := r.sinks.Load(); p != nil {
		return *p
	}
	return nil
}

// IsEmpty reports whether no sink is registered
func (r *SinkRegistry) IsEmpty() bool {
	return len(r.Snapshot()) == 0
}

// Len returns the number of registered sinks
func (r *SinkRegistry) Len() int {
	return len(r.Snapshot())
}

// Reset removes every sink and returns the slice that was published
func (r *SinkRegistry) Reset() []sink.MessageSink {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.Snapshot()
	r.sinks.Store(nil)
	return old
}
