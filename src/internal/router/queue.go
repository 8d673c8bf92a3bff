// FILE: tracewisp/src/internal/router/queue.go
package router

import (
	"sync"
	"sync/atomic"

	"tracewisp/src/internal/core"
)

// compactThreshold is the number of evicted head slots tolerated before the
// backing slice is compacted
const compactThreshold = 1024

// ingressQueue is the multi-producer FIFO feeding the dispatcher. Producers
// hold the lock only for an append; the dispatcher takes the whole backlog in
// one swap and leaves a fresh empty buffer behind.
type ingressQueue struct {
	mu    sync.Mutex
	items []*core.MessageRecord
	head  int // first live item, slots before it were evicted

	depth   atomic.Int64
	evicted atomic.Uint64
}

func newIngressQueue() *ingressQueue {
	return &ingressQueue{}
}

// push appends a record, first evicting the oldest records while the depth
// cap is reached. maxDepth <= 0 means unbounded. Returns the depth after push.
func (q *ingressQueue) push(rec *core.MessageRecord, maxDepth int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.evictLocked(maxDepth)
	q.items = append(q.items, rec)
	return q.syncDepthLocked()
}

// pushBatch appends records in order under one lock acquisition
func (q *ingressQueue) pushBatch(recs []*core.MessageRecord, maxDepth int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, rec := range recs {
		q.evictLocked(maxDepth)
		q.items = append(q.items, rec)
	}
	return q.syncDepthLocked()
}

func (q *ingressQueue) evictLocked(maxDepth int64) {
	if maxDepth <= 0 {
		return
	}
	for int64(len(q.items)-q.head) >= maxDepth {
		q.items[q.head] = nil
		q.head++
		q.evicted.Add(1)
	}
	if q.head >= compactThreshold && q.head*2 >= len(q.items) {
		live := copy(q.items, q.items[q.head:])
		clear(q.items[live:])
		q.items = q.items[:live]
		q.head = 0
	}
}

func (q *ingressQueue) syncDepthLocked() int {
	n := len(q.items) - q.head
	q.depth.Store(int64(n))
	return n
}

// swap takes every pending record in FIFO order and installs an empty buffer
func (q *ingressQueue) swap() []*core.MessageRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == q.head {
		return nil
	}

	batch := q.items[q.head:]
	q.items = make([]*core.MessageRecord, 0, min(cap(batch), compactThreshold))
	q.head = 0
	q.depth.Store(0)
	return batch
}

// len returns the pending depth without taking the lock
func (q *ingressQueue) len() int {
	return int(q.depth.Load())
}

// reset discards everything pending and returns how many records were dropped
func (q *ingressQueue) reset() int {
	return len(q.swap())
}
