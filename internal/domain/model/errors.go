package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrUnknownMetric   = errors.New("unknown metric")
	ErrNegativeMetric  = errors.New("negative metric value")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrInvalidWindow   = errors.New("invalid window")
)
