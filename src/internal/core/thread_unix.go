//go:build linux

// FILE: tracewisp/src/internal/core/thread_unix.go
package core

import "golang.org/x/sys/unix"

func currentThreadID() int {
	return unix.Gettid()
}
