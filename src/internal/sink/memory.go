// FILE: tracewisp/src/internal/sink/memory.go
package sink

import (
	"context"
	"fmt"
	"sync"

	"tracewisp/src/internal/core"
)

// MemorySink keeps delivered records in memory, oldest evicted beyond capacity.
// It is used by tests and by embedders that inspect trace output directly.
type MemorySink struct {
	name     string
	capacity int

	mu      sync.RWMutex
	records []*core.MessageRecord
	batches [][]uint64 // record indexes per delivered batch
	flushes int
	cleaned bool

	*counters
}

// NewMemorySink creates a memory sink; capacity <= 0 keeps everything
func NewMemorySink(name string, capacity int) *MemorySink {
	return &MemorySink{
		name:     name,
		capacity: capacity,
		counters: newCounters(),
	}
}

func (m *MemorySink) Name() string {
	return m.name
}

func (m *MemorySink) Handle(_ context.Context, batch []*core.MessageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	indexes := make([]uint64, len(batch))
	for i, rec := range batch {
		indexes[i] = rec.Index
	}
	m.batches = append(m.batches, indexes)

	m.records = append(m.records, batch...)
	if m.capacity > 0 && len(m.records) > m.capacity {
		m.records = append([]*core.MessageRecord(nil), m.records[len(m.records)-m.capacity:]...)
	}

	m.processed(len(batch))
	return nil
}

func (m *MemorySink) Flush() error {
	m.mu.Lock()
	m.flushes++
	m.mu.Unlock()
	return nil
}

func (m *MemorySink) Status() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("memory held=%d batches=%d", len(m.records), len(m.batches))
}

func (m *MemorySink) Cleanup() error {
	m.mu.Lock()
	m.cleaned = true
	m.mu.Unlock()
	return nil
}

// Records returns a copy of the retained records in delivery order
func (m *MemorySink) Records() []*core.MessageRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*core.MessageRecord(nil), m.records...)
}

// Bodies returns the body of every retained record in delivery order
func (m *MemorySink) Bodies() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bodies := make([]string, len(m.records))
	for i, rec := range m.records {
		bodies[i] = rec.Body
	}
	return bodies
}

// Len returns the number of retained records
func (m *MemorySink) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// BatchSizes returns the size of every batch delivered so far
func (m *MemorySink) BatchSizes() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sizes := make([]int, len(m.batches))
	for i, b := range m.batches {
		sizes[i] = len(b)
	}
	return sizes
}

// CleanedUp reports whether Cleanup has been called
func (m *MemorySink) CleanedUp() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cleaned
}

// Reset drops everything retained
func (m *MemorySink) Reset() {
	m.mu.Lock()
	m.records = nil
	m.batches = nil
	m.mu.Unlock()
}

func (m *MemorySink) GetStats() SinkStats {
	stats := m.stats("memory", m.name)
	stats.Details = map[string]any{
		"held":     m.Len(),
		"capacity": m.capacity,
	}
	return stats
}
