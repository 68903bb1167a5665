package simfeed

import "time"

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusAccepted = 202
	StatusCreated  = 201
)

// Drain polling constants.
const (
	drainPollInterval = 200 * time.Millisecond
	drainTimeout      = 2 * time.Minute
)

// Run configuration constants.
const (
	PercentageMultiplier = 100
)
