// FILE: tracewisp/src/internal/status/host.go
package status

import (
	"runtime"

	"github.com/pbnjay/memory"
)

// HostStats describes memory pressure on the host and in the process.
// Zero system values mean the platform could not report them.
type HostStats struct {
	TotalMemoryBytes uint64 `json:"total_memory_bytes"`
	FreeMemoryBytes  uint64 `json:"free_memory_bytes"`
	HeapAllocBytes   uint64 `json:"heap_alloc_bytes"`
	Goroutines       int    `json:"goroutines"`
}

func collectHostStats() HostStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return HostStats{
		TotalMemoryBytes: memory.TotalMemory(),
		FreeMemoryBytes:  memory.FreeMemory(),
		HeapAllocBytes:   ms.HeapAlloc,
		Goroutines:       runtime.NumGoroutine(),
	}
}
