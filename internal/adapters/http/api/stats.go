package api

import "net/http"

// StatsProvider reports runtime counters for operational visibility.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves runtime statistics.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats returns service counters as JSON.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllow, ErrMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.GetStats())
}
