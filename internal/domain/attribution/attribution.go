// Package attribution splits each entity's total delta into the portion
// earned inside admin-declared active windows and the remainder outside.
//
// The engine is a pure function over immutable inputs: a baseline view, the
// ordered snapshot sequence, and a window list. It holds no state, takes no
// locks, and recomputes identically for unchanged inputs.
package attribution

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/tally/internal/domain/baseline"
	"github.com/okian/tally/internal/domain/delta"
	"github.com/okian/tally/internal/domain/model"
)

// bracket is the pre/post sequence index pair for one window, computed once
// per window and shared across entities. An index of -1 means no snapshot
// lies at or before that boundary.
type bracket struct {
	window  model.ActiveWindow
	preIdx  int
	postIdx int
}

// Attribute computes per-entity, per-metric in-window versus out-of-window
// totals. It fails only on malformed input: an invalid window or an
// unordered sequence is rejected with ErrConfiguration before any
// computation begins. Missing windows, empty sequences, and entities absent
// from late snapshots never error.
//
// Overlapping windows double-count the shared increase; keeping windows
// disjoint is the caller's responsibility.
func Attribute(ctx context.Context, view baseline.View, seq []model.Snapshot, windows []model.ActiveWindow) ([]model.AttributionResult, error) {
	if err := validate(seq, windows); err != nil {
		return nil, err
	}

	brackets := make([]bracket, len(windows))
	for i, w := range windows {
		b := bracket{window: w, preIdx: latestAtOrBefore(seq, w.Start)}
		if w.OpenEnded() {
			b.postIdx = len(seq) - 1
		} else {
			b.postIdx = latestAtOrBefore(seq, w.End)
		}
		brackets[i] = b
	}

	ids := view.EntityIDs()
	results := make([]model.AttributionResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, attributeEntity(view, seq, brackets, id))
	}
	return results, nil
}

// attributeEntity runs the window accounting for a single entity. Pure and
// side-effect free, so callers may fan entities out across goroutines.
func attributeEntity(view baseline.View, seq []model.Snapshot, brackets []bracket, id model.EntityID) model.AttributionResult {
	base, _ := view.Get(id)

	// Total delta is baseline -> latest observation of the entity. An entity
	// never observed after the baseline has a zero total.
	latest, _ := resolve(seq, len(seq)-1, id, base)
	total := latest.Sub(base)

	res := model.AttributionResult{
		EntityID:  id,
		Name:      view.Name(id),
		Total:     total,
		Anomalies: delta.Anomalies(id, total),
	}

	for _, b := range brackets {
		usage := model.WindowUsage{Window: b.window.Name}

		pre, preAt := resolve(seq, b.preIdx, id, base)
		usage.StartBoundary = boundaryKind(seq, preAt, b.window.Start)

		post, postAt := resolve(seq, b.postIdx, id, base)
		if b.window.OpenEnded() {
			usage.EndBoundary = boundaryKind(seq, postAt, time.Time{})
		} else {
			usage.EndBoundary = boundaryKind(seq, postAt, b.window.End)
		}

		if b.postIdx >= 0 {
			// Clamp each metric at zero: a window cannot retroactively
			// un-attribute a decrease. The discarded decrease is not lost;
			// Outside = Total - InWindow absorbs it below.
			diff := post.Sub(pre)
			for _, m := range model.Metrics() {
				if d := diff.Get(m); d > 0 {
					usage.Contribution.Set(m, d)
				}
			}
		}

		res.InWindow = res.InWindow.Add(usage.Contribution)
		res.Windows = append(res.Windows, usage)
	}

	// The subtraction, not an independent outside scan, is what makes
	// InWindow + Outside == Total hold even when clamping discarded a
	// decrease or overlapping windows double-counted an increase.
	res.Outside = res.Total.Sub(res.InWindow)
	return res
}

// latestAtOrBefore returns the index of the last snapshot whose timestamp is
// at or before t, or -1. Binary search over the ordered sequence.
func latestAtOrBefore(seq []model.Snapshot, t time.Time) int {
	// First index with timestamp strictly after t.
	i := sort.Search(len(seq), func(i int) bool { return seq[i].Timestamp.After(t) })
	return i - 1
}

// resolve walks back from idx to the nearest snapshot that carries the
// entity, returning its vector and index. When none exists (or idx < 0) the
// baseline vector stands in as the conservative, data-available boundary and
// the index is -1; nothing is ever interpolated.
func resolve(seq []model.Snapshot, idx int, id model.EntityID, base model.MetricVector) (model.MetricVector, int) {
	for i := idx; i >= 0; i-- {
		if vec, ok := seq[i].Entities[id]; ok {
			return vec, i
		}
	}
	return base, -1
}

// boundaryKind reports which data stood in for a boundary: the baseline, a
// nearby snapshot, or a snapshot exactly at the boundary timestamp.
func boundaryKind(seq []model.Snapshot, foundIdx int, t time.Time) model.BoundaryKind {
	switch {
	case foundIdx < 0:
		return model.BoundaryBaseline
	case !t.IsZero() && seq[foundIdx].Timestamp.Equal(t):
		return model.BoundaryExact
	default:
		return model.BoundarySnapshot
	}
}

// validate rejects malformed input before any computation begins.
func validate(seq []model.Snapshot, windows []model.ActiveWindow) error {
	for i := 1; i < len(seq); i++ {
		if seq[i].Before(seq[i-1]) {
			return fmt.Errorf("%w: snapshot sequence unordered at index %d", ErrConfiguration, i)
		}
	}
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	return nil
}
