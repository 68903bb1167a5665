package attribution

import "errors"

// Sentinel kinds for attribution errors.
var (
	// ErrConfiguration marks malformed input: an invalid window or an
	// unordered snapshot sequence. Rejected before any computation begins.
	ErrConfiguration = errors.New("configuration error")
)
