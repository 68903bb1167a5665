// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// ActiveWindow is an admin-declared time interval during which metric
// changes are attributed separately from the remainder. A zero End means the
// window is open-ended. Windows are assumed disjoint by policy; the
// attribution engine does not enforce disjointness and double-counts
// overlaps rather than silently deduplicating them.
type ActiveWindow struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end,omitempty"` // zero = open-ended
}

// OpenEnded reports whether the window has no declared end.
func (w ActiveWindow) OpenEnded() bool {
	return w.End.IsZero()
}

// Validate rejects malformed windows before any computation starts.
func (w ActiveWindow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("%w: window name is empty", ErrInvalidWindow)
	}
	if w.Start.IsZero() {
		return fmt.Errorf("%w: window %q has no start", ErrInvalidWindow, w.Name)
	}
	if !w.OpenEnded() && w.End.Before(w.Start) {
		return fmt.Errorf("%w: window %q ends before it starts", ErrInvalidWindow, w.Name)
	}
	return nil
}

// BoundaryKind reports which data stood in for a window boundary, so
// downstream consumers can judge confidence in the attribution.
type BoundaryKind string

const (
	// BoundaryExact means a snapshot exactly at the boundary timestamp.
	BoundaryExact BoundaryKind = "exact"
	// BoundarySnapshot means the nearest earlier snapshot carrying the entity.
	BoundarySnapshot BoundaryKind = "snapshot"
	// BoundaryBaseline means no usable snapshot existed and the baseline
	// vector was used instead.
	BoundaryBaseline BoundaryKind = "baseline"
)

// WindowUsage records, per window and entity, the clamped contribution and
// which boundary data bracketed it.
type WindowUsage struct {
	Window        string       `json:"window"`
	StartBoundary BoundaryKind `json:"start_boundary"`
	EndBoundary   BoundaryKind `json:"end_boundary"`
	Contribution  MetricVector `json:"contribution"` // per-metric, clamped at zero
}

// AttributionResult splits one entity's total delta into the portion that
// occurred inside the union of active windows and the remainder outside.
// Invariant: InWindow + Outside == Total for every metric, exactly.
type AttributionResult struct {
	EntityID  EntityID      `json:"entity_id"`
	Name      string        `json:"name,omitempty"`
	Total     MetricVector  `json:"total"`     // signed
	InWindow  MetricVector  `json:"in_window"` // non-negative by clamping
	Outside   MetricVector  `json:"outside"`   // signed; absorbs clamped decreases
	Windows   []WindowUsage `json:"windows,omitempty"`
	Anomalies []Anomaly     `json:"anomalies,omitempty"`
}
