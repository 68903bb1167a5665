// Package queue defines the contract for enqueuing and consuming snapshot
// uploads.
//
// Implementations may use channels or more advanced structures; ingestion
// starts with an in-memory bounded queue.
package queue

import (
	"context"
	"sync"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
)

// Upload is the payload type flowing through the queue: one snapshot from an
// upload event, not yet appended to the sequence.
type Upload = model.Snapshot

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an upload to the queue.
	// Returns false if the queue is full or closed and the upload was dropped.
	Enqueue(ctx context.Context, u Upload) bool

	// Dequeue returns a channel that receives uploads as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Upload

	// Len returns the current number of queued uploads.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue. After closing, no new uploads
	// can be enqueued and the dequeue channel drains then closes.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	uploads  chan Upload
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.uploads = make(chan Upload, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds an upload to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, u Upload) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case q.uploads <- u:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return false
	}
}

// Dequeue returns a channel that receives uploads as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Upload {
	// Wrap the channel to track dequeue metrics.
	out := make(chan Upload)
	go func() {
		defer close(out)
		for u := range q.uploads {
			select {
			case out <- u:
				metrics.RecordQueueDequeue()
				q.updateGauges()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued uploads.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.uploads)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.uploads)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// updateGauges refreshes the size and utilization gauges.
func (q *InMemoryQueue) updateGauges() {
	size := len(q.uploads)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
