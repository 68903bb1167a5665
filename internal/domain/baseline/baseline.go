// Package baseline holds the zero-reference metric vector per entity.
//
// The manager is the only component with mutable shared state. Admission is
// the sole mutation and is atomic per entity: the read-check-write happens
// as one step under the lock, so a concurrent admission race for a
// never-seen entity yields exactly one winner and a single stored vector.
package baseline

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/tally/internal/domain/model"
)

// Admission reports the outcome of AdmitIfNew.
type Admission int

const (
	// AlreadyPresent means the entity was known and nothing changed.
	AlreadyPresent Admission = iota
	// NewlyAdmitted means the entity's baseline was set to the observed
	// vector in the same step.
	NewlyAdmitted
)

// Manager owns the baseline map. It grows via admission and never shrinks;
// existing entries are never rewritten.
type Manager struct {
	mu          sync.RWMutex
	initialized bool
	vectors     map[model.EntityID]model.MetricVector
	names       map[model.EntityID]string
	version     uint64
}

// New constructs an uninitialized Manager with configuration options.
func New(opts ...Option) *Manager {
	m := &Manager{
		vectors: make(map[model.EntityID]model.MetricVector),
		names:   make(map[model.EntityID]string),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Initialize sets the initial baseline map. It can be called exactly once;
// a second call fails with ErrAlreadyInitialized regardless of content.
func (m *Manager) Initialize(ctx context.Context, vectors map[model.EntityID]model.MetricVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return ErrAlreadyInitialized
	}
	for id, vec := range vectors {
		if err := vec.Validate(); err != nil {
			return err
		}
		m.vectors[id] = vec
	}
	m.initialized = true
	m.version++
	return nil
}

// Get returns the baseline vector for an entity.
func (m *Manager) Get(ctx context.Context, id model.EntityID) (model.MetricVector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return model.MetricVector{}, ErrUninitialized
	}
	vec, ok := m.vectors[id]
	if !ok {
		return model.MetricVector{}, ErrNotFound
	}
	return vec, nil
}

// AdmitIfNew admits an entity the first time it is observed, setting its
// baseline to the observed vector so the admitting delta is zero by
// construction. First successful admission wins; later attempts for the same
// entity are no-ops reporting AlreadyPresent.
func (m *Manager) AdmitIfNew(ctx context.Context, id model.EntityID, name string, observed model.MetricVector) (Admission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return AlreadyPresent, ErrUninitialized
	}
	if _, ok := m.vectors[id]; ok {
		if name != "" {
			m.names[id] = name // label refresh only, never the vector
		}
		return AlreadyPresent, nil
	}
	m.vectors[id] = observed
	if name != "" {
		m.names[id] = name
	}
	m.version++
	return NewlyAdmitted, nil
}

// Size returns the number of entities the baseline knows.
func (m *Manager) Size(ctx context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Initialized reports whether the one-time baseline has been set.
func (m *Manager) Initialized(ctx context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// View is an immutable copy of the baseline at a point in time. Pure
// computations take a View so a batch never observes a half-admitted state
// for any entity.
type View struct {
	Version uint64
	vectors map[model.EntityID]model.MetricVector
	names   map[model.EntityID]string
}

// View snapshots the current baseline once for a computation run.
func (m *Manager) View(ctx context.Context) (View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return View{}, ErrUninitialized
	}
	vectors := make(map[model.EntityID]model.MetricVector, len(m.vectors))
	for id, vec := range m.vectors {
		vectors[id] = vec
	}
	names := make(map[model.EntityID]string, len(m.names))
	for id, name := range m.names {
		names[id] = name
	}
	return View{Version: m.version, vectors: vectors, names: names}, nil
}

// Get returns the baseline vector for an entity within the view.
func (v View) Get(id model.EntityID) (model.MetricVector, bool) {
	vec, ok := v.vectors[id]
	return vec, ok
}

// Name returns the entity's display label, if one was ever observed.
func (v View) Name(id model.EntityID) string {
	return v.names[id]
}

// Size returns the number of entities in the view.
func (v View) Size() int {
	return len(v.vectors)
}

// EntityIDs returns the view's entity ids in ascending order.
func (v View) EntityIDs() []model.EntityID {
	ids := make([]model.EntityID, 0, len(v.vectors))
	for id := range v.vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
