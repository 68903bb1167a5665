package baseline

import "errors"

// Sentinel kinds for baseline errors. These allow errors.Is/As from callers.
var (
	ErrUninitialized      = errors.New("baseline not initialized")
	ErrAlreadyInitialized = errors.New("baseline already initialized")
	ErrNotFound           = errors.New("entity not found in baseline")
)
