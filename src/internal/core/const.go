// FILE: tracewisp/src/internal/core/const.go
package core

import "time"

// Argon2id parameters
const (
	Argon2Time    = 3
	Argon2Memory  = 64 * 1024 // 64 MB
	Argon2Threads = 4
	Argon2SaltLen = 16
	Argon2KeyLen  = 32
)

const DefaultTokenLength = 32

// Replacement tokens substituted into Body and FurtherDetails during enrichment
const (
	TokenTimestamp = "%timestamp%"
	TokenMethod    = "%method%"
	TokenMachine   = "%machine%"
	TokenProcess   = "%pid%"
	TokenThread    = "%thread%"
	TokenIndex     = "%index%"
	TokenContext   = "%context%"
)

// Router timing
const (
	// DispatchIdleTimeout bounds the dispatcher's wait on an empty queue so
	// shutdown flags are re-checked without traffic.
	DispatchIdleTimeout = 100 * time.Millisecond

	// MaxDrainPasses caps consecutive queue swaps before the dispatcher yields
	// back to its shutdown check.
	MaxDrainPasses = 64

	// MaxUnobservedFailures caps sink failures retained for the next Flush caller.
	MaxUnobservedFailures = 64

	// DefaultFlushTimeout bounds Flush when the caller's context has no deadline.
	DefaultFlushTimeout = 5 * time.Second
)

const DefaultTimestampFormat = time.RFC3339Nano
