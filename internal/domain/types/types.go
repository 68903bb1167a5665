// Package types contains common read-side types used across the application
package types

import "github.com/okian/tally/internal/domain/model"

// Entry represents a leaderboard row: one entity ranked by a single metric's
// in-window delta. Anomalous entities are flagged, never omitted.
type Entry struct {
	Rank      int            `json:"rank"`
	EntityID  model.EntityID `json:"entity_id"`
	Name      string         `json:"name,omitempty"`
	Metric    model.Metric   `json:"metric"`
	InWindow  int64          `json:"in_window"`
	Outside   int64          `json:"outside"`
	Total     int64          `json:"total"`
	Anomalous bool           `json:"anomalous"`
}

// DeltaView is the read shape for the latest computed delta of one entity.
type DeltaView struct {
	EntityID  model.EntityID     `json:"entity_id"`
	Name      string             `json:"name,omitempty"`
	Change    model.MetricVector `json:"change"`
	Anomalies []model.Anomaly    `json:"anomalies,omitempty"`
}
