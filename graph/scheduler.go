package graph

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// WorkItem is a schedulable unit of work in the execution frontier: a node
// ready to run, together with the provenance needed to explain why.
type WorkItem struct {
	NodeID       string
	ParentNodeID string
	EdgeIndex    int
	OrderKey     uint64
}

// ComputeOrderKey derives a deterministic provenance key from the parent
// node and the index of the edge that enabled this work item. It has no
// bearing on dequeue order (the Frontier is strict FIFO by edge insertion
// order, per the "fork with maxConcurrency=1 runs sequentially in edge
// order" requirement) — OrderKey exists purely so traces and logs can
// explain which edge produced a given node invocation without re-deriving
// it from the graph.
func ComputeOrderKey(parentNodeID string, edgeIndex int) uint64 {
	h := sha256.New()
	h.Write([]byte(parentNodeID))
	edgeBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(edgeBytes, uint32(edgeIndex))
	h.Write(edgeBytes)
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// Frontier is the unbounded FIFO work queue the Executor drains up to
// MaxConcurrency items at a time. Unlike a priority queue ordered by a
// hash-derived key, Frontier preserves the order work items were enqueued
// in, because the executor's scheduling contract guarantees nodes enabled
// earlier (by edge insertion order) run before nodes enabled later when
// concurrency is constrained.
//
// Frontier is safe for concurrent Enqueue/Dequeue from multiple
// goroutines.
type Frontier struct {
	mu    sync.Mutex
	items []WorkItem

	totalEnqueued atomic.Int64
	totalDequeued atomic.Int64
	peakDepth     atomic.Int32
}

// NewFrontier returns an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{}
}

// Enqueue appends item to the tail of the queue.
func (f *Frontier) Enqueue(item WorkItem) {
	f.mu.Lock()
	f.items = append(f.items, item)
	depth := int32(len(f.items))
	f.mu.Unlock()

	f.totalEnqueued.Add(1)
	for {
		peak := f.peakDepth.Load()
		if depth <= peak || f.peakDepth.CompareAndSwap(peak, depth) {
			break
		}
	}
}

// Dequeue removes and returns the item at the head of the queue. ok is
// false if the queue is empty.
func (f *Frontier) Dequeue() (WorkItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return WorkItem{}, false
	}
	item := f.items[0]
	f.items = f.items[1:]
	f.totalDequeued.Add(1)
	return item, true
}

// Len reports the current queue depth.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// SchedulerMetrics is a point-in-time snapshot of a Frontier's counters,
// exposed for PrometheusMetrics and RunTrace.
type SchedulerMetrics struct {
	QueueDepth    int32
	TotalEnqueued int64
	TotalDequeued int64
	PeakDepth     int32
}

// Metrics returns a snapshot of the frontier's counters.
func (f *Frontier) Metrics() SchedulerMetrics {
	return SchedulerMetrics{
		QueueDepth:    int32(f.Len()),
		TotalEnqueued: f.totalEnqueued.Load(),
		TotalDequeued: f.totalDequeued.Load(),
		PeakDepth:     f.peakDepth.Load(),
	}
}
