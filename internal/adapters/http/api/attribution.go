package api

import (
	"errors"
	"net/http"

	"github.com/okian/tally/internal/domain/attribution"
	"github.com/okian/tally/internal/domain/baseline"
)

// AttributionHandler serves per-entity window attribution results.
type AttributionHandler struct {
	deps Dependencies
}

// NewAttributionHandler creates a new attribution handler.
func NewAttributionHandler(deps Dependencies) *AttributionHandler {
	return &AttributionHandler{deps: deps}
}

// HandleGetAttribution computes the attribution report over the current
// sequence and window set. The computation is pure; repeated calls with the
// same inputs return the same report.
func (h *AttributionHandler) HandleGetAttribution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllow, ErrMethodNotAllowed)
		return
	}

	results, err := h.deps.Attribute(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, baseline.ErrUninitialized):
			writeError(w, http.StatusConflict, codeConflict, err)
		case errors.Is(err, attribution.ErrConfiguration):
			writeError(w, http.StatusBadRequest, codeBadRequest, err)
		default:
			writeError(w, http.StatusInternalServerError, codeInternal, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entities": results})
}
