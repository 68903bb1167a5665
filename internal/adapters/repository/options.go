// Package repository defines the snapshot sequence and window stores.
package repository

import (
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// Option applies a configuration option to the InMemorySequence.
type Option func(*InMemorySequence)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *InMemorySequence) {
		if interval > 0 {
			s.metricsInterval = interval
		}
	}
}

// WithCapacityHint pre-sizes the sequence for an expected snapshot count.
func WithCapacityHint(n int) Option {
	return func(s *InMemorySequence) {
		if n > 0 {
			s.seq = make([]model.Snapshot, 0, n)
		}
	}
}
