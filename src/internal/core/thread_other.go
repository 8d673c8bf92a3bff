//go:build !linux

// FILE: tracewisp/src/internal/core/thread_other.go
package core

// OS thread ids are only exposed on linux
func currentThreadID() int {
	return 0
}
