package api

import "net/http"

// DeltasHandler serves the latest per-entity delta vectors.
type DeltasHandler struct {
	deps Dependencies
}

// NewDeltasHandler creates a new deltas handler.
func NewDeltasHandler(deps Dependencies) *DeltasHandler {
	return &DeltasHandler{deps: deps}
}

// HandleGetDeltas returns the delta computed at the most recent snapshot for
// every entity observed so far.
func (h *DeltasHandler) HandleGetDeltas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllow, ErrMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": h.deps.Deltas(r.Context())})
}
