// Package repository defines the snapshot sequence and window stores.
package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/tally/internal/domain/model"
)

// InMemoryWindows implements WindowStore with a mutex-guarded map keyed by
// window name.
type InMemoryWindows struct {
	mu      sync.RWMutex
	windows map[string]model.ActiveWindow
}

// NewInMemoryWindows constructs an empty window store.
func NewInMemoryWindows() *InMemoryWindows {
	return &InMemoryWindows{
		windows: make(map[string]model.ActiveWindow),
	}
}

// Put implements WindowStore.Put. Malformed windows are rejected here so a
// bad definition never reaches the attribution engine.
func (s *InMemoryWindows) Put(ctx context.Context, w model.ActiveWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[w.Name] = w
	return nil
}

// Delete implements WindowStore.Delete.
func (s *InMemoryWindows) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.windows[name]; !ok {
		return ErrWindowNotFound
	}
	delete(s.windows, name)
	return nil
}

// List implements WindowStore.List.
func (s *InMemoryWindows) List(ctx context.Context) []model.ActiveWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ActiveWindow, 0, len(s.windows))
	for _, w := range s.windows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
