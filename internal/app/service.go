// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	uploadqueue "github.com/okian/tally/internal/adapters/mq/queue"
	workerpool "github.com/okian/tally/internal/adapters/mq/worker"
	repository "github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/attribution"
	"github.com/okian/tally/internal/domain/baseline"
	"github.com/okian/tally/internal/domain/dedupe"
	"github.com/okian/tally/internal/domain/delta"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// ingestAdapter adapts the Service to the worker.Applier interface.
type ingestAdapter struct {
	svc *Service
}

func (a *ingestAdapter) AdmitAndDiff(ctx context.Context, u workerpool.Upload) error {
	_, err := a.svc.AdmitAndDiff(ctx, u)
	if err != nil {
		// The upload never made it into the sequence; forget its id so the
		// client can retry it instead of being acknowledged as a duplicate.
		a.svc.Unrecord(ctx, u.ID)
	}
	return err
}

// Service implements the API dependencies for the tracking system.
type Service struct {
	mu sync.RWMutex

	// Core components
	sequence   repository.SequenceStore
	windows    repository.WindowStore
	baseline   *baseline.Manager
	deduper    dedupe.Deduper
	queue      uploadqueue.Queue
	workerPool *workerpool.Pool

	// Latest computed delta per entity, refreshed on every applied upload.
	// Guarded by its own lock so ingest workers never contend with Start/Stop.
	latestMu sync.RWMutex
	latest   map[model.EntityID]types.DeltaView

	// Configuration
	queueSize    int
	dedupeSize   int
	sequenceHint int
	rosterHint   int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the maximum size of the upload queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the upload idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSequenceCapacityHint pre-sizes the snapshot sequence store.
func WithSequenceCapacityHint(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sequenceHint = n
		}
	}
}

// WithRosterCapacityHint pre-sizes the baseline maps.
func WithRosterCapacityHint(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rosterHint = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:    10_000,
		dedupeSize:   50_000,
		sequenceHint: 4_096,
		rosterHint:   2_048,
		latest:       make(map[model.EntityID]types.DeltaView),
		logger:       nil, // Will be replaced when service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting tracking service...")

	s.sequence = repository.NewInMemorySequence(ctx,
		repository.WithCapacityHint(s.sequenceHint),
	)
	s.windows = repository.NewInMemoryWindows()
	s.baseline = baseline.New(
		baseline.WithCapacityHint(s.rosterHint),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = uploadqueue.NewInMemoryQueue(
		uploadqueue.WithCapacity(s.queueSize),
	)

	// Sequence application is order-sensitive: concurrent appliers racing to
	// Append would reject validly ordered uploads as out of order. A single
	// worker drains the queue in FIFO order.
	s.workerPool = workerpool.NewPool(1, s.queue, &ingestAdapter{svc: s})
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "tracking service started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping tracking service...")

	if s.queue != nil {
		_ = s.queue.Close()
	}

	if s.workerPool != nil {
		s.workerPool.Stop()
	}

	if closer, ok := s.sequence.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "tracking service stopped")
}

// SetBaseline performs the one-time baseline initialization.
func (s *Service) SetBaseline(ctx context.Context, vectors map[model.EntityID]model.MetricVector) error {
	if s.baseline == nil {
		return ErrNotStarted
	}
	if err := s.baseline.Initialize(ctx, vectors); err != nil {
		return err
	}
	metrics.UpdateBaselineSize(s.baseline.Size(ctx))
	s.logger.Info(ctx, "baseline initialized", logger.Int("entities", len(vectors)))
	return nil
}

// SeenAndRecord atomically checks if an upload id was seen and records it if
// not. Returns true if the upload was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	if s.deduper == nil {
		return false
	}
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordSnapshotDuplicate()
	}
	return seen
}

// Unrecord removes an upload id from the seen list, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	if s.deduper == nil {
		return
	}
	s.deduper.Unrecord(ctx, id)
}

// Enqueue submits an upload for asynchronous ingestion.
func (s *Service) Enqueue(ctx context.Context, u model.Snapshot) bool {
	if s.queue == nil {
		return false
	}
	ok := s.queue.Enqueue(ctx, u)
	if !ok {
		s.logger.Warn(ctx, "upload rejected by queue",
			logger.String("uploadID", u.ID),
			logger.Int("queueLength", s.queue.Len(ctx)),
		)
	}
	return ok
}

// AdmitAndDiff appends an upload to the sequence and diffs it against the
// baseline, admitting newly observed entities. Called once per measurement
// event.
func (s *Service) AdmitAndDiff(ctx context.Context, u model.Snapshot) (delta.Result, error) {
	if s.sequence == nil || s.baseline == nil {
		return delta.Result{}, ErrNotStarted
	}

	start := time.Now()
	defer func() {
		metrics.RecordDiffLatency(float64(time.Since(start).Milliseconds()))
	}()

	// An upload received before the baseline cannot be diffed, and appending
	// it first would leave an orphaned pre-baseline snapshot in the sequence.
	// Reject up front so the operation persists nothing.
	if !s.baseline.Initialized(ctx) {
		return delta.Result{}, fmt.Errorf("apply snapshot %s: %w", u.ID, baseline.ErrUninitialized)
	}

	snap, err := s.sequence.Append(ctx, u)
	if err != nil {
		return delta.Result{}, fmt.Errorf("append snapshot %s: %w", u.ID, err)
	}

	res, err := delta.Compute(ctx, &baselineAdmitter{s.baseline}, snap)
	if err != nil {
		return delta.Result{}, fmt.Errorf("diff snapshot %s: %w", u.ID, err)
	}

	s.recordLatest(res)

	metrics.RecordSnapshotIngested()
	metrics.RecordEntitiesAdmitted(len(res.Admitted))
	metrics.RecordMetricAnomalies(len(res.Anomalies))
	metrics.UpdateBaselineSize(s.baseline.Size(ctx))

	if len(res.Anomalies) > 0 {
		s.logger.Warn(ctx, "monotonic metrics decreased",
			logger.String("uploadID", snap.ID),
			logger.Int("anomalies", len(res.Anomalies)),
		)
	}
	s.logger.Debug(ctx, "snapshot applied",
		logger.String("uploadID", snap.ID),
		logger.Time("timestamp", snap.Timestamp),
		logger.Int("entities", len(snap.Entities)),
		logger.Int("admitted", len(res.Admitted)),
	)

	return res, nil
}

// baselineAdmitter narrows the baseline manager to the delta.Admitter
// interface.
type baselineAdmitter struct {
	m *baseline.Manager
}

func (a *baselineAdmitter) Get(ctx context.Context, id model.EntityID) (model.MetricVector, error) {
	return a.m.Get(ctx, id)
}

func (a *baselineAdmitter) AdmitIfNew(ctx context.Context, id model.EntityID, name string, observed model.MetricVector) (baseline.Admission, error) {
	return a.m.AdmitIfNew(ctx, id, name, observed)
}

// recordLatest refreshes the per-entity latest delta view. Entities absent
// from the upload keep their previous view untouched.
func (s *Service) recordLatest(res delta.Result) {
	anomaliesByEntity := make(map[model.EntityID][]model.Anomaly)
	for _, a := range res.Anomalies {
		anomaliesByEntity[a.EntityID] = append(anomaliesByEntity[a.EntityID], a)
	}

	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	for _, d := range res.Deltas {
		s.latest[d.EntityID] = types.DeltaView{
			EntityID:  d.EntityID,
			Name:      d.Name,
			Change:    d.Change,
			Anomalies: anomaliesByEntity[d.EntityID],
		}
	}
}

// Deltas returns the latest computed delta per entity, entity id ascending.
func (s *Service) Deltas(ctx context.Context) []types.DeltaView {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()

	out := make([]types.DeltaView, 0, len(s.latest))
	for _, v := range s.latest {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Attribute computes in-window versus out-of-window totals on demand. The
// baseline is snapshotted once for the whole run, so the computation never
// observes a half-admitted entity.
func (s *Service) Attribute(ctx context.Context) ([]model.AttributionResult, error) {
	if s.baseline == nil {
		return nil, ErrNotStarted
	}

	start := time.Now()
	defer func() {
		metrics.RecordAttributionLatency(float64(time.Since(start).Milliseconds()))
	}()

	view, err := s.baseline.View(ctx)
	if err != nil {
		return nil, err
	}
	seq := s.sequence.All(ctx)
	windows := s.windows.List(ctx)

	results, err := attribution.Attribute(ctx, view, seq, windows)
	if err != nil {
		return nil, err
	}

	metrics.RecordAttributionRun()
	return results, nil
}

// Leaderboard ranks entities by a single metric's in-window delta,
// descending, id ascending on ties. Anomalous entities are flagged, never
// omitted.
func (s *Service) Leaderboard(ctx context.Context, metric model.Metric, n int) ([]types.Entry, error) {
	results, err := s.Attribute(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]types.Entry, 0, len(results))
	for _, r := range results {
		anomalous := false
		for _, a := range r.Anomalies {
			if a.Metric == metric {
				anomalous = true
				break
			}
		}
		entries = append(entries, types.Entry{
			EntityID:  r.EntityID,
			Name:      r.Name,
			Metric:    metric,
			InWindow:  r.InWindow.Get(metric),
			Outside:   r.Outside.Get(metric),
			Total:     r.Total.Get(metric),
			Anomalous: anomalous,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].InWindow != entries[j].InWindow {
			return entries[i].InWindow > entries[j].InWindow
		}
		return entries[i].EntityID < entries[j].EntityID
	})

	if n < len(entries) {
		entries = entries[:n]
	}
	assignRanksWithTies(entries)
	return entries, nil
}

// assignRanksWithTies gives entities with the same value the same rank;
// ranks stay consecutive across groups.
func assignRanksWithTies(entries []types.Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].InWindow != entries[i-1].InWindow {
			rank++
		}
		entries[i].Rank = rank
	}
}

// PutWindow validates and upserts an active window.
func (s *Service) PutWindow(ctx context.Context, w model.ActiveWindow) error {
	if s.windows == nil {
		return ErrNotStarted
	}
	if err := s.windows.Put(ctx, w); err != nil {
		return err
	}
	s.logger.Info(ctx, "active window stored",
		logger.String("window", w.Name),
		logger.Time("start", w.Start),
		logger.Time("end", w.End),
	)
	return nil
}

// DeleteWindow removes an active window by name.
func (s *Service) DeleteWindow(ctx context.Context, name string) error {
	if s.windows == nil {
		return ErrNotStarted
	}
	return s.windows.Delete(ctx, name)
}

// Windows lists active windows sorted by start time.
func (s *Service) Windows(ctx context.Context) []model.ActiveWindow {
	if s.windows == nil {
		return nil
	}
	return s.windows.List(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":    s.started,
		"queueSize":  s.queueSize,
		"dedupeSize": s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["sequenceLength"] = s.sequence.Len(ctx)
		stats["baselineSize"] = s.baseline.Size(ctx)
		stats["windows"] = len(s.windows.List(ctx))

		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
