package metrics

import (
	"errors"
)

// Sentinel error kinds for this package.
var (
	ErrObserveFailed = errors.New("metrics observe failed")
)
