// Package delta computes per-entity signed metric differences between the
// baseline and a snapshot, admitting newly observed entities along the way.
package delta

import (
	"context"
	"fmt"

	"github.com/okian/tally/internal/domain/baseline"
	"github.com/okian/tally/internal/domain/model"
)

// Admitter is the slice of the baseline manager the calculator needs.
// Admission must be atomic per entity id.
type Admitter interface {
	Get(ctx context.Context, id model.EntityID) (model.MetricVector, error)
	AdmitIfNew(ctx context.Context, id model.EntityID, name string, observed model.MetricVector) (baseline.Admission, error)
}

// Result carries everything one diff run produced. Anomalies are
// informational and never abort the batch: the calculator stays total per
// entity.
type Result struct {
	Deltas    []model.Delta
	Admitted  []model.EntityID
	Anomalies []model.Anomaly
}

// Compute diffs a snapshot against the baseline. Entities absent from the
// baseline are admitted with their first-seen vector and emit an all-zero
// delta (observed minus observed). Entities in the baseline but absent from the
// snapshot are left untouched. Output order is deterministic (entity id
// ascending).
func Compute(ctx context.Context, base Admitter, snap model.Snapshot) (Result, error) {
	var res Result

	for _, id := range snap.EntityIDs() {
		observed := snap.Entities[id]
		name := snap.Names[id]

		adm, err := base.AdmitIfNew(ctx, id, name, observed)
		if err != nil {
			return Result{}, fmt.Errorf("admit %s: %w", id, err)
		}
		if adm == baseline.NewlyAdmitted {
			res.Admitted = append(res.Admitted, id)
			res.Deltas = append(res.Deltas, model.Delta{EntityID: id, Name: name})
			continue
		}

		ref, err := base.Get(ctx, id)
		if err != nil {
			return Result{}, fmt.Errorf("baseline lookup %s: %w", id, err)
		}
		change := observed.Sub(ref)
		res.Deltas = append(res.Deltas, model.Delta{EntityID: id, Name: name, Change: change})
		res.Anomalies = append(res.Anomalies, Anomalies(id, change)...)
	}

	return res, nil
}

// Anomalies flags every monotonic metric that decreased in a signed change
// vector. The decrease is reported as observed, never clamped away.
func Anomalies(id model.EntityID, change model.MetricVector) []model.Anomaly {
	var out []model.Anomaly
	for _, m := range model.Metrics() {
		if !m.Monotonic() {
			continue
		}
		if d := change.Get(m); d < 0 {
			out = append(out, model.Anomaly{EntityID: id, Metric: m, Change: d})
		}
	}
	return out
}
