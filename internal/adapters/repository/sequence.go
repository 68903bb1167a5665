// Package repository defines the snapshot sequence and window stores.
package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/metrics"
)

// In-memory, append-only SequenceStore.
//
// Writers hold the mutex; readers load an atomically published slice header,
// so attribution runs read the sequence without blocking ingestion. The
// published slice only ever grows by re-publishing a longer header over the
// same backing array, which keeps earlier reads valid.

// InMemorySequence implements SequenceStore.
type InMemorySequence struct {
	mu      sync.Mutex
	seq     []model.Snapshot
	nextSeq uint64

	// published is the read view: a prefix header of seq.
	published atomic.Pointer[[]model.Snapshot]

	// Background metrics management
	metricsInterval time.Duration
	wg              sync.WaitGroup
	stopChan        chan struct{}
}

// NewInMemorySequence constructs a sequence store with configuration options.
func NewInMemorySequence(ctx context.Context, opts ...Option) *InMemorySequence {
	s := &InMemorySequence{
		metricsInterval: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	empty := make([]model.Snapshot, 0)
	s.published.Store(&empty)

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)

	return s
}

// Append implements SequenceStore.Append.
func (s *InMemorySequence) Append(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	if err := snap.Validate(); err != nil {
		return model.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.seq); n > 0 && snap.Timestamp.Before(s.seq[n-1].Timestamp) {
		return model.Snapshot{}, fmt.Errorf("%w: %s precedes sequence tail %s",
			ErrOutOfOrder, snap.Timestamp.Format(time.RFC3339), s.seq[n-1].Timestamp.Format(time.RFC3339))
	}

	snap.Seq = s.nextSeq
	s.nextSeq++
	s.seq = append(s.seq, snap)

	view := s.seq[:len(s.seq):len(s.seq)]
	s.published.Store(&view)

	metrics.UpdateSequenceLength(len(s.seq))
	return snap, nil
}

// All implements SequenceStore.All.
func (s *InMemorySequence) All(ctx context.Context) []model.Snapshot {
	return *s.published.Load()
}

// Latest implements SequenceStore.Latest.
func (s *InMemorySequence) Latest(ctx context.Context) (model.Snapshot, bool) {
	seq := *s.published.Load()
	if len(seq) == 0 {
		return model.Snapshot{}, false
	}
	return seq[len(seq)-1], true
}

// Len implements SequenceStore.Len.
func (s *InMemorySequence) Len(ctx context.Context) int {
	return len(*s.published.Load())
}

// Close stops the background metrics goroutine.
func (s *InMemorySequence) Close() error {
	select {
	case <-s.stopChan:
		// already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// startMetricsUpdater refreshes the sequence length gauge periodically.
func (s *InMemorySequence) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateSequenceLength(len(*s.published.Load()))
			}
		}
	}()
}
