// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"sort"
	"time"
)

// EntityID is the stable identifier of a tracked player.
type EntityID string

// Entity pairs the stable identifier with its human-readable label.
type Entity struct {
	ID   EntityID `json:"id"`
	Name string   `json:"name"`
}

// Snapshot is one immutable, timestamped measurement of all entities'
// metrics, produced by an upload event. Seq is the arrival order assigned by
// the sequence store; snapshots sharing a timestamp are ordered by Seq.
type Snapshot struct {
	ID        string                    `json:"id"` // upload id, used for idempotency
	Seq       uint64                    `json:"seq"`
	Timestamp time.Time                 `json:"timestamp"`
	Entities  map[EntityID]MetricVector `json:"entities"`
	Names     map[EntityID]string       `json:"names,omitempty"`
}

// Validate checks the snapshot's measured vectors.
func (s Snapshot) Validate() error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: snapshot timestamp is zero", ErrInvalidSnapshot)
	}
	for id, vec := range s.Entities {
		if err := vec.Validate(); err != nil {
			return fmt.Errorf("%w: entity %s: %w", ErrInvalidSnapshot, id, err)
		}
	}
	return nil
}

// EntityIDs returns the snapshot's entity ids in ascending order, for
// deterministic iteration.
func (s Snapshot) EntityIDs() []EntityID {
	ids := make([]EntityID, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Before reports whether s precedes o in the sequence order:
// timestamp ascending, ties broken by arrival Seq ascending.
func (s Snapshot) Before(o Snapshot) bool {
	if !s.Timestamp.Equal(o.Timestamp) {
		return s.Timestamp.Before(o.Timestamp)
	}
	return s.Seq < o.Seq
}

// Delta is the total signed change of one entity's metrics from the baseline
// to a specific snapshot.
type Delta struct {
	EntityID EntityID     `json:"entity_id"`
	Name     string       `json:"name,omitempty"`
	Change   MetricVector `json:"change"` // signed
}

// Anomaly flags a supposedly-monotonic metric that decreased. Informational:
// it rides alongside results and never aborts a batch, so downstream policy
// can decide how to treat it.
type Anomaly struct {
	EntityID EntityID `json:"entity_id"`
	Metric   Metric   `json:"metric"`
	Change   int64    `json:"change"` // the negative delta observed
}
