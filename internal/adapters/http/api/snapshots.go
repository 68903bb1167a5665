package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/tally/pkg/metrics"
)

// SnapshotsHandler accepts measurement snapshots for async ingestion.
type SnapshotsHandler struct {
	deps Dependencies
}

// NewSnapshotsHandler creates a new snapshots handler.
func NewSnapshotsHandler(deps Dependencies) *SnapshotsHandler {
	return &SnapshotsHandler{deps: deps}
}

// HandlePostSnapshot validates an upload, deduplicates it by upload id and
// enqueues it for processing. Duplicates are acknowledged without re-ingesting.
func (h *SnapshotsHandler) HandlePostSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllow, ErrMethodNotAllowed)
		return
	}

	var req snapshotRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		metrics.RecordSnapshotRejected()
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	if err := req.validate(); err != nil {
		metrics.RecordSnapshotRejected()
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	snap := req.toModel()
	if h.deps.SeenAndRecord(r.Context(), snap.ID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", UploadID: snap.ID, Duplicate: true})
		return
	}

	if !h.deps.Enqueue(r.Context(), snap) {
		// Roll back the dedupe record so the client can retry the same id.
		h.deps.Unrecord(r.Context(), snap.ID)
		writeError(w, http.StatusTooManyRequests, codeBackpressure, ErrQueueFull)
		return
	}

	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", UploadID: snap.ID})
}
