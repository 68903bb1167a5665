// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// UploadQueueSize bounds the in-memory ingest queue.
	UploadQueueSize int `koanf:"queue_size"`

	// DedupeSize sets the size of the upload idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// SequenceCapacityHint pre-sizes the snapshot sequence store.
	SequenceCapacityHint int `koanf:"sequence_capacity_hint"`

	// RosterCapacityHint pre-sizes the baseline maps.
	RosterCapacityHint int `koanf:"roster_capacity_hint"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		UploadQueueSize:      10_000,
		DedupeSize:           50_000,
		SequenceCapacityHint: 4_096,
		RosterCapacityHint:   2_048,
		MaxLeaderboardLimit:  100,
	}
}
