package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrOutOfOrder     = errors.New("snapshot out of order")
	ErrWindowNotFound = errors.New("window not found")
)
