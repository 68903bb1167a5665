// Package baseline holds the zero-reference metric vector per entity.
package baseline

import "github.com/okian/tally/internal/domain/model"

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithCapacityHint pre-sizes the baseline maps for an expected roster size.
func WithCapacityHint(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.vectors = make(map[model.EntityID]model.MetricVector, n)
			m.names = make(map[model.EntityID]string, n)
		}
	}
}
