// FILE: tracewisp/src/internal/core/settings.go
package core

import "time"

// Settings are the router tuning values supplied by configuration loading.
// They are read on every enqueue and dispatch pass, so replacing them takes
// effect immediately.
type Settings struct {
	// Maximum records held before a write is forced (0 = no capacity trigger)
	BatchCapacity int64
	// Maximum milliseconds between writes (0 = no delay trigger)
	BatchDelayMS int64
	// Oldest-first eviction threshold (-1 or 0 = unbounded)
	MaxQueueDepth int64
	// Hold trace until a failure is flagged
	WriteOnlyOnFailure bool
	// Swallow sink errors instead of surfacing them to Flush/Shutdown callers
	SuppressHandlerErrors bool
}

// DefaultSettings returns immediate-signal mode with an unbounded queue
func DefaultSettings() Settings {
	return Settings{
		BatchCapacity:         0,
		BatchDelayMS:          0,
		MaxQueueDepth:         -1,
		WriteOnlyOnFailure:    false,
		SuppressHandlerErrors: true,
	}
}

// Batching reports whether either batch threshold is active
func (s Settings) Batching() bool {
	return s.BatchCapacity > 0 || s.BatchDelayMS > 0
}

// BatchDelay returns the delay threshold as a duration
func (s Settings) BatchDelay() time.Duration {
	return time.Duration(s.BatchDelayMS) * time.Millisecond
}

// BatchDue applies the capacity-or-delay rule. With no thresholds configured
// every pending record is due.
func (s Settings) BatchDue(depth int, sinceLastWrite time.Duration) bool {
	if depth <= 0 {
		return false
	}
	if !s.Batching() {
		return true
	}
	if s.BatchCapacity > 0 && int64(depth) >= s.BatchCapacity {
		return true
	}
	if s.BatchDelayMS > 0 && sinceLastWrite >= s.BatchDelay() {
		return true
	}
	return false
}
