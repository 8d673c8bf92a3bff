// FILE: tracewisp/src/internal/router/state.go
package router

// State is the router lifecycle state.
// Uninitialised -> Running -> ShutdownRequested -> Stopped, and Stopped -> Running
// only through ReInitialise.
type State int32

const (
	Uninitialised State = iota
	Running
	ShutdownRequested
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "uninitialised"
	case Running:
		return "running"
	case ShutdownRequested:
		return "shutdown_requested"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
