// Package model contains domain models passed between layers.
package model

import "fmt"

// Metric names a tracked counter. The set is fixed; unknown names are
// rejected at the ingestion boundary, never inside the computation core.
type Metric string

// Known metrics.
const (
	MetricPower      Metric = "power"
	MetricKillsTier4 Metric = "kills_tier4"
	MetricKillsTier5 Metric = "kills_tier5"
	MetricLosses     Metric = "losses"
)

// Metrics lists every known metric in stable order.
func Metrics() []Metric {
	return []Metric{MetricPower, MetricKillsTier4, MetricKillsTier5, MetricLosses}
}

// ParseMetric validates a metric name supplied by an external layer.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricPower, MetricKillsTier4, MetricKillsTier5, MetricLosses:
		return Metric(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// Monotonic reports whether the metric is domain-guaranteed to only ever
// increase. Power can legitimately drop (troop reclassification); kills and
// losses cannot, so a negative delta on them is a data-quality anomaly.
func (m Metric) Monotonic() bool {
	switch m {
	case MetricKillsTier4, MetricKillsTier5, MetricLosses:
		return true
	case MetricPower:
		return false
	}
	return false
}

// MetricVector holds one value per known metric. Values are non-negative in
// snapshots and baselines; the same shape carries signed values when used as
// a delta.
type MetricVector struct {
	Power      int64 `json:"power"`
	KillsTier4 int64 `json:"kills_tier4"`
	KillsTier5 int64 `json:"kills_tier5"`
	Losses     int64 `json:"losses"`
}

// Get returns the value for the given metric. Unknown metrics read as zero;
// they cannot occur once input passed ParseMetric.
func (v MetricVector) Get(m Metric) int64 {
	switch m {
	case MetricPower:
		return v.Power
	case MetricKillsTier4:
		return v.KillsTier4
	case MetricKillsTier5:
		return v.KillsTier5
	case MetricLosses:
		return v.Losses
	}
	return 0
}

// Set assigns the value for the given metric.
func (v *MetricVector) Set(m Metric, val int64) {
	switch m {
	case MetricPower:
		v.Power = val
	case MetricKillsTier4:
		v.KillsTier4 = val
	case MetricKillsTier5:
		v.KillsTier5 = val
	case MetricLosses:
		v.Losses = val
	}
}

// Sub returns v - o per metric. The result is signed.
func (v MetricVector) Sub(o MetricVector) MetricVector {
	return MetricVector{
		Power:      v.Power - o.Power,
		KillsTier4: v.KillsTier4 - o.KillsTier4,
		KillsTier5: v.KillsTier5 - o.KillsTier5,
		Losses:     v.Losses - o.Losses,
	}
}

// Add returns v + o per metric.
func (v MetricVector) Add(o MetricVector) MetricVector {
	return MetricVector{
		Power:      v.Power + o.Power,
		KillsTier4: v.KillsTier4 + o.KillsTier4,
		KillsTier5: v.KillsTier5 + o.KillsTier5,
		Losses:     v.Losses + o.Losses,
	}
}

// IsZero reports whether every metric is zero.
func (v MetricVector) IsZero() bool {
	return v == MetricVector{}
}

// Validate rejects negative counters. Only measured vectors are validated;
// delta vectors carry signed values and skip this check.
func (v MetricVector) Validate() error {
	for _, m := range Metrics() {
		if v.Get(m) < 0 {
			return fmt.Errorf("%w: %s=%d", ErrNegativeMetric, m, v.Get(m))
		}
	}
	return nil
}
