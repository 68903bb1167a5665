package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/mq/queue"
	"github.com/okian/tally/internal/adapters/mq/worker"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// recordingApplier collects applied uploads and can fail on demand.
type recordingApplier struct {
	mu      sync.Mutex
	applied []string
	failOn  map[string]bool
}

func newRecordingApplier() *recordingApplier {
	return &recordingApplier{failOn: make(map[string]bool)}
}

func (a *recordingApplier) AdmitAndDiff(ctx context.Context, u worker.Upload) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failOn[u.ID] {
		return errors.New("apply failed")
	}
	a.applied = append(a.applied, u.ID)
	return nil
}

func (a *recordingApplier) appliedIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.applied...)
}

func upload(id string) worker.Upload {
	return worker.Upload{
		ID:        id,
		Timestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Entities: map[model.EntityID]model.MetricVector{
			"e1": {Power: 1},
		},
	}
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker draining a queue", t, func() {
		ctx := context.Background()

		Convey("When uploads flow through the queue", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(16))
			applier := newRecordingApplier()
			w := worker.NewInMemoryWorker(q, applier, worker.WithName("drain-test"))

			go w.Run(ctx)

			So(q.Enqueue(ctx, upload("up-1")), ShouldBeTrue)
			So(q.Enqueue(ctx, upload("up-2")), ShouldBeTrue)

			Convey("Then every upload is applied", func() {
				ok := waitFor(func() bool { return len(applier.appliedIDs()) == 2 }, time.Second)
				So(ok, ShouldBeTrue)
				So(applier.appliedIDs(), ShouldResemble, []string{"up-1", "up-2"})

				So(q.Close(), ShouldBeNil)
				So(w.Shutdown(ctx), ShouldBeNil)
			})
		})

		Convey("When an upload fails to apply", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(16))
			applier := newRecordingApplier()
			applier.failOn["poison"] = true
			w := worker.NewInMemoryWorker(q, applier)

			go w.Run(ctx)

			So(q.Enqueue(ctx, upload("poison")), ShouldBeTrue)
			So(q.Enqueue(ctx, upload("after")), ShouldBeTrue)

			Convey("Then the worker keeps draining past the failure", func() {
				ok := waitFor(func() bool { return len(applier.appliedIDs()) == 1 }, time.Second)
				So(ok, ShouldBeTrue)
				So(applier.appliedIDs(), ShouldResemble, []string{"after"})

				So(q.Close(), ShouldBeNil)
				So(w.Shutdown(ctx), ShouldBeNil)
			})
		})

		Convey("When the queue closes", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(16))
			applier := newRecordingApplier()
			w := worker.NewInMemoryWorker(q, applier)

			done := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(done)
			}()

			So(q.Close(), ShouldBeNil)

			Convey("Then the worker loop exits on its own", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("worker did not stop after queue close")
				}
			})
		})

		Convey("When shutdown is requested on an idle worker", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(16))
			w := worker.NewInMemoryWorker(q, newRecordingApplier())

			go w.Run(ctx)

			Convey("Then shutdown returns promptly", func() {
				shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
				defer cancel()

				So(w.Shutdown(shutdownCtx), ShouldBeNil)
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a worker pool", t, func() {
		ctx := context.Background()

		Convey("When uploads are spread across workers", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(128))
			applier := newRecordingApplier()
			pool := worker.NewPool(4, q, applier)

			pool.Start(ctx)

			const uploads = 50
			for i := 0; i < uploads; i++ {
				So(q.Enqueue(ctx, upload(fmt.Sprintf("up-%03d", i))), ShouldBeTrue)
			}

			Convey("Then the pool drains everything", func() {
				ok := waitFor(func() bool { return len(applier.appliedIDs()) == uploads }, 2*time.Second)
				So(ok, ShouldBeTrue)

				So(q.Close(), ShouldBeNil)
				pool.Stop()
			})
		})

		Convey("When the pool is created with a non-positive count", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(4))
			pool := worker.NewPool(0, q, newRecordingApplier())

			Convey("Then it falls back to a sane default and still stops cleanly", func() {
				So(pool, ShouldNotBeNil)
				pool.Start(ctx)
				So(q.Close(), ShouldBeNil)
				pool.Stop()
			})
		})
	})
}
