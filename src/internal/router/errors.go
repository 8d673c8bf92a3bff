// FILE: tracewisp/src/internal/router/errors.go
package router

import (
	"errors"
	"fmt"
)

var (
	// ErrNilRecord is returned for nil records, the caller has a bug
	ErrNilRecord = errors.New("router: nil record")

	// ErrRouterStopped is returned for enqueues after shutdown began, only in strict mode
	ErrRouterStopped = errors.New("router: shutdown in progress or complete")

	// ErrNilSink is returned when registering a nil sink
	ErrNilSink = errors.New("router: nil sink")

	// ErrDispatcherActive is the panic value raised when a second dispatcher
	// is started for one router
	ErrDispatcherActive = errors.New("router: dispatcher already active")

	// ErrInvalidTransition is returned for lifecycle calls not allowed in the current state
	ErrInvalidTransition = errors.New("router: invalid lifecycle transition")
)

// SinkError carries the failure of one sink call
type SinkError struct {
	Sink string
	Op   string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s %s: %v", e.Sink, e.Op, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
