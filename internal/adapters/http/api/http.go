// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/tally/internal/domain/dedupe"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes an upload for async ingestion. Returns false on backpressure.
	Enqueue(ctx context.Context, u model.Snapshot) bool

	// SetBaseline performs the one-time baseline initialization.
	SetBaseline(ctx context.Context, vectors map[model.EntityID]model.MetricVector) error

	// Read operations expose computed results.
	Attribute(ctx context.Context) ([]model.AttributionResult, error)
	Leaderboard(ctx context.Context, metric model.Metric, n int) ([]types.Entry, error)
	Deltas(ctx context.Context) []types.DeltaView

	// Window management.
	PutWindow(ctx context.Context, w model.ActiveWindow) error
	DeleteWindow(ctx context.Context, name string) error
	Windows(ctx context.Context) []model.ActiveWindow
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	snapshotsHandler   *SnapshotsHandler
	baselineHandler    *BaselineHandler
	windowsHandler     *WindowsHandler
	attributionHandler *AttributionHandler
	leaderboardHandler *LeaderboardHandler
	deltasHandler      *DeltasHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		snapshotsHandler:   NewSnapshotsHandler(deps),
		baselineHandler:    NewBaselineHandler(deps),
		windowsHandler:     NewWindowsHandler(deps),
		attributionHandler: NewAttributionHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		deltasHandler:      NewDeltasHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/baseline", MetricsMiddleware(s.baselineHandler.HandlePostBaseline, "baseline"))
	mux.HandleFunc("/snapshots", MetricsMiddleware(s.snapshotsHandler.HandlePostSnapshot, "snapshots"))
	mux.HandleFunc("/windows", MetricsMiddleware(s.windowsHandler.HandleWindows, "windows"))
	mux.HandleFunc("/windows/", MetricsMiddleware(s.windowsHandler.HandleDeleteWindow, "windows"))
	mux.HandleFunc("/attribution", MetricsMiddleware(s.attributionHandler.HandleGetAttribution, "attribution"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/deltas", MetricsMiddleware(s.deltasHandler.HandleGetDeltas, "deltas"))
}

// entityMetrics is the wire shape for one entity's measured vector. The
// typed MetricVector plus DisallowUnknownFields rejects unknown metric names
// at the boundary.
type entityMetrics struct {
	EntityID string             `json:"entity_id"`
	Name     string             `json:"name,omitempty"`
	Metrics  model.MetricVector `json:"metrics"`
}

// snapshotRequest mirrors the wire schema for POST /snapshots.
type snapshotRequest struct {
	UploadID string          `json:"upload_id,omitempty"`
	TS       string          `json:"ts"`
	Entities []entityMetrics `json:"entities"`
}

func (r snapshotRequest) validate() error {
	if strings.TrimSpace(r.TS) == "" {
		return errors.New("missing ts")
	}
	if _, err := time.Parse(time.RFC3339, r.TS); err != nil {
		return errors.New("invalid ts; must be RFC3339")
	}
	if len(r.Entities) == 0 {
		return errors.New("missing entities")
	}
	seen := make(map[string]struct{}, len(r.Entities))
	for _, e := range r.Entities {
		if strings.TrimSpace(e.EntityID) == "" {
			return errors.New("missing entity_id")
		}
		if _, dup := seen[e.EntityID]; dup {
			return errors.New("duplicate entity_id " + e.EntityID)
		}
		seen[e.EntityID] = struct{}{}
		if err := e.Metrics.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// toModel converts the request into a domain snapshot, generating an upload
// id when the client did not supply one.
func (r snapshotRequest) toModel() model.Snapshot {
	ts, _ := time.Parse(time.RFC3339, r.TS) // validated earlier
	snap := model.Snapshot{
		ID:        r.UploadID,
		Timestamp: ts,
		Entities:  make(map[model.EntityID]model.MetricVector, len(r.Entities)),
		Names:     make(map[model.EntityID]string, len(r.Entities)),
	}
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	for _, e := range r.Entities {
		id := model.EntityID(e.EntityID)
		snap.Entities[id] = e.Metrics
		if e.Name != "" {
			snap.Names[id] = e.Name
		}
	}
	return snap
}

// windowRequest mirrors the wire schema for PUT /windows.
type windowRequest struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end,omitempty"` // empty = open-ended
}

func (r windowRequest) toModel() (model.ActiveWindow, error) {
	w := model.ActiveWindow{Name: strings.TrimSpace(r.Name)}
	start, err := time.Parse(time.RFC3339, r.Start)
	if err != nil {
		return model.ActiveWindow{}, errors.New("invalid start; must be RFC3339")
	}
	w.Start = start
	if r.End != "" {
		end, err := time.Parse(time.RFC3339, r.End)
		if err != nil {
			return model.ActiveWindow{}, errors.New("invalid end; must be RFC3339")
		}
		w.End = end
	}
	return w, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	UploadID  string `json:"upload_id,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
