package api

import "errors"

// Stable error codes returned in JSON error envelopes.
const (
	codeBadRequest     = "bad_request"
	codeConflict       = "conflict"
	codeNotFound       = "not_found"
	codeBackpressure   = "backpressure"
	codeMethodNotAllow = "method_not_allowed"
	codeInternal       = "internal"
)

var (
	// ErrMethodNotAllowed is returned when a route receives an unsupported verb.
	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrQueueFull is returned when the ingestion queue rejects an upload.
	ErrQueueFull = errors.New("ingestion queue is full; retry later")
)
