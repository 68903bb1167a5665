package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/tally/internal/domain/baseline"
	"github.com/okian/tally/internal/domain/model"
)

// BaselineHandler accepts the one-time baseline snapshot.
type BaselineHandler struct {
	deps Dependencies
}

// NewBaselineHandler creates a new baseline handler.
func NewBaselineHandler(deps Dependencies) *BaselineHandler {
	return &BaselineHandler{deps: deps}
}

type baselineRequest struct {
	Entities []entityMetrics `json:"entities"`
}

// HandlePostBaseline initializes the baseline roster. Repeated calls are
// rejected with a conflict since the baseline is immutable once set.
func (h *BaselineHandler) HandlePostBaseline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllow, ErrMethodNotAllowed)
		return
	}

	var req baselineRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	if len(req.Entities) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, errors.New("missing entities"))
		return
	}

	vectors := make(map[model.EntityID]model.MetricVector, len(req.Entities))
	for _, e := range req.Entities {
		if e.EntityID == "" {
			writeError(w, http.StatusBadRequest, codeBadRequest, errors.New("missing entity_id"))
			return
		}
		if err := e.Metrics.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, err)
			return
		}
		id := model.EntityID(e.EntityID)
		if _, dup := vectors[id]; dup {
			writeError(w, http.StatusBadRequest, codeBadRequest, errors.New("duplicate entity_id "+e.EntityID))
			return
		}
		vectors[id] = e.Metrics
	}

	if err := h.deps.SetBaseline(r.Context(), vectors); err != nil {
		if errors.Is(err, baseline.ErrAlreadyInitialized) {
			writeError(w, http.StatusConflict, codeConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"status": "initialized", "entities": len(vectors)})
}
