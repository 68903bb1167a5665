package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/baseline"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeDeps implements Dependencies with recording and scripted behavior.
type fakeDeps struct {
	seen map[string]bool

	enqueueOK bool
	enqueued  []model.Snapshot

	baselineErr error
	baselines   []map[model.EntityID]model.MetricVector

	attributeErr error
	attributed   []model.AttributionResult

	entries        []types.Entry
	leaderboardN   int
	leaderboardErr error

	deltas  []types.DeltaView
	windows []model.ActiveWindow
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{seen: make(map[string]bool), enqueueOK: true}
}

func (f *fakeDeps) SeenAndRecord(ctx context.Context, id string) bool {
	if f.seen[id] {
		return true
	}
	f.seen[id] = true
	return false
}

func (f *fakeDeps) Unrecord(ctx context.Context, id string) { delete(f.seen, id) }

func (f *fakeDeps) Size() int64 { return int64(len(f.seen)) }

func (f *fakeDeps) Enqueue(ctx context.Context, u model.Snapshot) bool {
	if !f.enqueueOK {
		return false
	}
	f.enqueued = append(f.enqueued, u)
	return true
}

func (f *fakeDeps) SetBaseline(ctx context.Context, vectors map[model.EntityID]model.MetricVector) error {
	if f.baselineErr != nil {
		return f.baselineErr
	}
	f.baselines = append(f.baselines, vectors)
	return nil
}

func (f *fakeDeps) Attribute(ctx context.Context) ([]model.AttributionResult, error) {
	return f.attributed, f.attributeErr
}

func (f *fakeDeps) Leaderboard(ctx context.Context, metric model.Metric, n int) ([]types.Entry, error) {
	f.leaderboardN = n
	if f.leaderboardErr != nil {
		return nil, f.leaderboardErr
	}
	if n < len(f.entries) {
		return f.entries[:n], nil
	}
	return f.entries, nil
}

func (f *fakeDeps) Deltas(ctx context.Context) []types.DeltaView { return f.deltas }

func (f *fakeDeps) PutWindow(ctx context.Context, w model.ActiveWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	f.windows = append(f.windows, w)
	return nil
}

func (f *fakeDeps) DeleteWindow(ctx context.Context, name string) error {
	for i, w := range f.windows {
		if w.Name == name {
			f.windows = append(f.windows[:i], f.windows[i+1:]...)
			return nil
		}
	}
	return repository.ErrWindowNotFound
}

func (f *fakeDeps) Windows(ctx context.Context) []model.ActiveWindow { return f.windows }

type fakeStats struct{ stats map[string]interface{} }

func (f *fakeStats) GetStats() map[string]interface{} { return f.stats }

func newTestMux(deps *fakeDeps) *http.ServeMux {
	server := NewServer(deps, &fakeStats{stats: map[string]interface{}{"started": true}}, 100)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newTestMux(newFakeDeps())

		Convey("Then the health endpoint responds", func() {
			w := serve(mux, "GET", "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("And the stats endpoint responds", func() {
			w := serve(mux, "GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started"`)
		})

		Convey("And unknown paths fall through to the mux", func() {
			w := serve(mux, "GET", "/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestSnapshotsHandler(t *testing.T) {
	Convey("Given the snapshots endpoint", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		validBody := `{
			"upload_id": "up-1",
			"ts": "2025-06-01T00:00:00Z",
			"entities": [{"entity_id": "e1", "name": "alice", "metrics": {"power": 100, "kills_tier4": 3}}]
		}`

		Convey("When posting a valid snapshot", func() {
			w := serve(mux, "POST", "/snapshots", validBody)

			Convey("Then it is accepted and enqueued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)

				var ack ackResponse
				So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Status, ShouldEqual, "accepted")
				So(ack.UploadID, ShouldEqual, "up-1")
				So(ack.Duplicate, ShouldBeFalse)

				So(deps.enqueued, ShouldHaveLength, 1)
				So(deps.enqueued[0].Entities[model.EntityID("e1")].Power, ShouldEqual, 100)
				So(deps.enqueued[0].Names[model.EntityID("e1")], ShouldEqual, "alice")
			})
		})

		Convey("When posting without an upload id", func() {
			body := `{"ts": "2025-06-01T00:00:00Z", "entities": [{"entity_id": "e1", "metrics": {"power": 1}}]}`
			w := serve(mux, "POST", "/snapshots", body)

			Convey("Then one is generated for the ack", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)

				var ack ackResponse
				So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.UploadID, ShouldNotBeEmpty)
			})
		})

		Convey("When posting the same upload id twice", func() {
			first := serve(mux, "POST", "/snapshots", validBody)
			So(first.Code, ShouldEqual, http.StatusAccepted)

			second := serve(mux, "POST", "/snapshots", validBody)

			Convey("Then the duplicate is acknowledged without re-ingesting", func() {
				So(second.Code, ShouldEqual, http.StatusOK)

				var ack ackResponse
				So(json.Unmarshal(second.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Duplicate, ShouldBeTrue)
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("When the queue rejects the upload", func() {
			deps.enqueueOK = false
			w := serve(mux, "POST", "/snapshots", validBody)

			Convey("Then the client gets backpressure and may retry the same id", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(deps.seen["up-1"], ShouldBeFalse)

				deps.enqueueOK = true
				retry := serve(mux, "POST", "/snapshots", validBody)
				So(retry.Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When posting malformed input", func() {
			cases := map[string]string{
				"invalid json":        `{`,
				"unknown field":       `{"ts": "2025-06-01T00:00:00Z", "bogus": 1, "entities": [{"entity_id": "e1", "metrics": {}}]}`,
				"unknown metric":      `{"ts": "2025-06-01T00:00:00Z", "entities": [{"entity_id": "e1", "metrics": {"mana": 5}}]}`,
				"missing ts":          `{"entities": [{"entity_id": "e1", "metrics": {}}]}`,
				"bad ts":              `{"ts": "yesterday", "entities": [{"entity_id": "e1", "metrics": {}}]}`,
				"no entities":         `{"ts": "2025-06-01T00:00:00Z", "entities": []}`,
				"missing entity id":   `{"ts": "2025-06-01T00:00:00Z", "entities": [{"metrics": {}}]}`,
				"duplicate entity id": `{"ts": "2025-06-01T00:00:00Z", "entities": [{"entity_id": "e1", "metrics": {}}, {"entity_id": "e1", "metrics": {}}]}`,
				"negative counter":    `{"ts": "2025-06-01T00:00:00Z", "entities": [{"entity_id": "e1", "metrics": {"kills_tier5": -1}}]}`,
			}
			for name, body := range cases {
				Convey(fmt.Sprintf("Then %s is rejected", name), func() {
					w := serve(mux, "POST", "/snapshots", body)
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(deps.enqueued, ShouldBeEmpty)
				})
			}
		})

		Convey("When using the wrong method", func() {
			w := serve(mux, "GET", "/snapshots", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestBaselineHandler(t *testing.T) {
	Convey("Given the baseline endpoint", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		validBody := `{"entities": [
			{"entity_id": "e1", "metrics": {"power": 100}},
			{"entity_id": "e2", "metrics": {"kills_tier4": 5}}
		]}`

		Convey("When posting a valid baseline", func() {
			w := serve(mux, "POST", "/baseline", validBody)

			Convey("Then the roster is initialized", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldContainSubstring, `"initialized"`)
				So(deps.baselines, ShouldHaveLength, 1)
				So(deps.baselines[0], ShouldHaveLength, 2)
			})
		})

		Convey("When the baseline is already set", func() {
			deps.baselineErr = baseline.ErrAlreadyInitialized
			w := serve(mux, "POST", "/baseline", validBody)

			So(w.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When the payload is invalid", func() {
			Convey("Then empty entities are rejected", func() {
				w := serve(mux, "POST", "/baseline", `{"entities": []}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("And duplicate ids are rejected", func() {
				body := `{"entities": [{"entity_id": "e1", "metrics": {}}, {"entity_id": "e1", "metrics": {}}]}`
				w := serve(mux, "POST", "/baseline", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("And negative counters are rejected", func() {
				body := `{"entities": [{"entity_id": "e1", "metrics": {"losses": -4}}]}`
				w := serve(mux, "POST", "/baseline", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When using the wrong method", func() {
			w := serve(mux, "DELETE", "/baseline", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestWindowsHandler(t *testing.T) {
	Convey("Given the windows endpoints", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("When upserting a closed window", func() {
			body := `{"name": "event", "start": "2025-06-01T00:00:00Z", "end": "2025-06-02T00:00:00Z"}`
			w := serve(mux, "PUT", "/windows", body)

			Convey("Then the stored window is echoed back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var view windowView
				So(json.Unmarshal(w.Body.Bytes(), &view), ShouldBeNil)
				So(view.Name, ShouldEqual, "event")
				So(view.End, ShouldEqual, "2025-06-02T00:00:00Z")
				So(deps.windows, ShouldHaveLength, 1)
			})
		})

		Convey("When upserting an open-ended window", func() {
			body := `{"name": "forever", "start": "2025-06-01T00:00:00Z"}`
			w := serve(mux, "PUT", "/windows", body)

			Convey("Then the view omits the end", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldNotContainSubstring, `"end"`)
			})
		})

		Convey("When the window is malformed", func() {
			Convey("Then a bad start is rejected", func() {
				w := serve(mux, "PUT", "/windows", `{"name": "x", "start": "soon"}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("And end before start is rejected", func() {
				body := `{"name": "x", "start": "2025-06-02T00:00:00Z", "end": "2025-06-01T00:00:00Z"}`
				w := serve(mux, "PUT", "/windows", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When listing windows", func() {
			deps.windows = []model.ActiveWindow{
				{Name: "event", Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
			}
			w := serve(mux, "GET", "/windows", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"event"`)
		})

		Convey("When deleting a window", func() {
			deps.windows = []model.ActiveWindow{
				{Name: "event", Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
			}

			Convey("Then an existing window is removed", func() {
				w := serve(mux, "DELETE", "/windows/event", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.windows, ShouldBeEmpty)
			})

			Convey("And an unknown name yields not found", func() {
				w := serve(mux, "DELETE", "/windows/ghost", "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("And a missing name is a bad request", func() {
				w := serve(mux, "DELETE", "/windows/", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When using the wrong method", func() {
			w := serve(mux, "POST", "/windows", `{}`)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestAttributionHandler(t *testing.T) {
	Convey("Given the attribution endpoint", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("When the report is available", func() {
			deps.attributed = []model.AttributionResult{
				{EntityID: "e1", InWindow: model.MetricVector{Power: 10}, Total: model.MetricVector{Power: 10}},
			}
			w := serve(mux, "GET", "/attribution", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"e1"`)
		})

		Convey("When the baseline is not initialized", func() {
			deps.attributeErr = baseline.ErrUninitialized
			w := serve(mux, "GET", "/attribution", "")

			So(w.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When using the wrong method", func() {
			w := serve(mux, "POST", "/attribution", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestLeaderboardHandler(t *testing.T) {
	Convey("Given the leaderboard endpoint", t, func() {
		deps := newFakeDeps()
		deps.entries = []types.Entry{
			{Rank: 1, EntityID: "e2", Metric: model.MetricPower, InWindow: 80},
			{Rank: 2, EntityID: "e1", Metric: model.MetricPower, InWindow: 50},
		}
		mux := newTestMux(deps)

		Convey("When querying with a valid metric", func() {
			w := serve(mux, "GET", "/leaderboard?metric=power", "")

			Convey("Then entries are returned with the default limit", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.leaderboardN, ShouldEqual, defaultLeaderboardLimit)
				So(w.Body.String(), ShouldContainSubstring, `"metric":"power"`)
				So(w.Body.String(), ShouldContainSubstring, `"e2"`)
			})
		})

		Convey("When passing an explicit limit", func() {
			w := serve(mux, "GET", "/leaderboard?metric=kills_tier4&limit=1", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.leaderboardN, ShouldEqual, 1)
		})

		Convey("When the limit exceeds the server maximum", func() {
			w := serve(mux, "GET", "/leaderboard?metric=power&limit=5000", "")

			Convey("Then it is capped", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.leaderboardN, ShouldEqual, 100)
			})
		})

		Convey("When the query is invalid", func() {
			Convey("Then an unknown metric is rejected", func() {
				w := serve(mux, "GET", "/leaderboard?metric=mana", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("And a missing metric is rejected", func() {
				w := serve(mux, "GET", "/leaderboard", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("And non-positive limits are rejected", func() {
				for _, raw := range []string{"0", "-3", "ten"} {
					w := serve(mux, "GET", "/leaderboard?metric=power&limit="+raw, "")
					So(w.Code, ShouldEqual, http.StatusBadRequest)
				}
			})
		})

		Convey("When the baseline is not initialized", func() {
			deps.leaderboardErr = baseline.ErrUninitialized
			w := serve(mux, "GET", "/leaderboard?metric=power", "")

			So(w.Code, ShouldEqual, http.StatusConflict)
		})
	})
}

func TestDeltasHandler(t *testing.T) {
	Convey("Given the deltas endpoint", t, func() {
		deps := newFakeDeps()
		deps.deltas = []types.DeltaView{
			{EntityID: "e1", Change: model.MetricVector{Power: 40}},
		}
		mux := newTestMux(deps)

		Convey("When fetching deltas", func() {
			w := serve(mux, "GET", "/deltas", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"power":40`)
		})

		Convey("When using the wrong method", func() {
			w := serve(mux, "PUT", "/deltas", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSnapshotRequestToModel(t *testing.T) {
	Convey("Given a snapshot request", t, func() {
		req := snapshotRequest{
			TS: "2025-06-01T12:00:00Z",
			Entities: []entityMetrics{
				{EntityID: "e1", Name: "alice", Metrics: model.MetricVector{Power: 5}},
				{EntityID: "e2", Metrics: model.MetricVector{Losses: 2}},
			},
		}

		Convey("When converting to the domain shape", func() {
			snap := req.toModel()

			Convey("Then an upload id is generated and fields carry over", func() {
				So(snap.ID, ShouldNotBeEmpty)
				So(snap.Timestamp.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(snap.Entities, ShouldHaveLength, 2)
				So(snap.Names, ShouldHaveLength, 1)
				So(snap.Names[model.EntityID("e1")], ShouldEqual, "alice")
			})
		})
	})
}
