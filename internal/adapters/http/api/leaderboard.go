package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/tally/internal/domain/attribution"
	"github.com/okian/tally/internal/domain/baseline"
	"github.com/okian/tally/internal/domain/model"
)

const defaultLeaderboardLimit = 10

// LeaderboardHandler ranks entities by in-window contribution for one metric.
type LeaderboardHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies, maxLimit int) *LeaderboardHandler {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &LeaderboardHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetLeaderboard serves GET /leaderboard?metric=&limit=.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllow, ErrMethodNotAllowed)
		return
	}

	metric, err := model.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, errors.New("limit must be a positive integer"))
			return
		}
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	entries, err := h.deps.Leaderboard(r.Context(), metric, limit)
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

	writeJSON(w, http.StatusOK, map[string]any{
		"metric":  string(metric),
		"entries": entries,
	})
}
