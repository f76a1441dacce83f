// Package buffer provides the bounded sample queue between the acquisition
// and logging tasks.
//
// The ring is the single point of backpressure in the pipeline: when it is
// full the producer sheds load (the sample is dropped and counted) rather
// than stalling, preserving the sampling cadence at the cost of
// completeness.
package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/openpony/ponylog/internal/telemetry"
)

// Ring is a thread-safe circular FIFO buffer of samples.
// It uses a simple mutex-based approach for correctness; at the pipeline's
// sampling rates lock contention is not a factor.
type Ring struct {
	mu       sync.RWMutex
	data     []telemetry.Sample
	head     int64 // Next write position
	tail     int64 // Oldest data position
	count    int64 // Current number of elements
	capacity int64

	// Statistics
	pushCount atomic.Int64
	popCount  atomic.Int64
	dropCount atomic.Int64
}

// New creates a new Ring with the given capacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 2048
	}
	return &Ring{
		data:     make([]telemetry.Sample, capacity),
		capacity: int64(capacity),
	}
}

// Push adds a sample to the buffer.
// Returns false if the buffer is full; the sample is dropped and the drop
// counter incremented. Push never blocks and the caller must not retry.
func (r *Ring) Push(sample telemetry.Sample) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count >= r.capacity {
		r.dropCount.Add(1)
		return false
	}

	idx := r.head % r.capacity
	r.data[idx] = sample
	r.head++
	r.count++
	r.pushCount.Add(1)

	return true
}

// Pop removes and returns the oldest sample in FIFO order.
// Returns false if the buffer is empty.
func (r *Ring) Pop() (telemetry.Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return telemetry.Sample{}, false
	}

	idx := r.tail % r.capacity
	sample := r.data[idx]
	r.data[idx] = telemetry.Sample{}
	r.tail++
	r.count--
	r.popCount.Add(1)

	return sample, true
}

// PopN removes and returns up to n oldest samples, preserving order.
// Used by the logging task to drain in batches.
func (r *Ring) PopN(n int) []telemetry.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 || n <= 0 {
		return nil
	}

	count := int64(n)
	if count > r.count {
		count = r.count
	}

	result := make([]telemetry.Sample, count)
	for i := int64(0); i < count; i++ {
		idx := (r.tail + i) % r.capacity
		result[i] = r.data[idx]
		r.data[idx] = telemetry.Sample{}
	}

	r.tail += count
	r.count -= count
	r.popCount.Add(count)

	return result
}

// Len returns the current number of samples in the buffer.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(r.count)
}

// Cap returns the capacity of the buffer.
func (r *Ring) Cap() int {
	return int(r.capacity)
}

// IsEmpty returns true if the buffer is empty.
func (r *Ring) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count == 0
}

// IsFull returns true if the buffer is full.
func (r *Ring) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count >= r.capacity
}

// UsageRatio returns the current usage as a ratio (0.0 - 1.0).
func (r *Ring) UsageRatio() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return float64(r.count) / float64(r.capacity)
}

// DropCount returns the number of samples rejected because the buffer was
// full. The counter is monotonic; session start/stop never resets it.
func (r *Ring) DropCount() int64 {
	return r.dropCount.Load()
}

// ResetCounters zeroes the push/pop/drop counters. This is an explicit
// operator action, never invoked implicitly.
func (r *Ring) ResetCounters() {
	r.pushCount.Store(0)
	r.popCount.Store(0)
	r.dropCount.Store(0)
}

// Stats returns buffer statistics.
func (r *Ring) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Capacity:   int(r.capacity),
		Count:      int(r.count),
		UsageRatio: float64(r.count) / float64(r.capacity),
		PushCount:  r.pushCount.Load(),
		PopCount:   r.popCount.Load(),
		DropCount:  r.dropCount.Load(),
	}
}

// Stats holds buffer statistics.
type Stats struct {
	Capacity   int
	Count      int
	UsageRatio float64
	PushCount  int64
	PopCount   int64
	DropCount  int64
}
