package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	repository "github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func snapAt(id string, ts time.Time) model.Snapshot {
	return model.Snapshot{
		ID:        id,
		Timestamp: ts,
		Entities: map[model.EntityID]model.MetricVector{
			"e1": {Power: 1},
		},
	}
}

func TestInMemorySequence(t *testing.T) {
	Convey("Given a new in-memory sequence store", t, func() {
		ctx := context.Background()
		base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

		s := repository.NewInMemorySequence(ctx, repository.WithCapacityHint(8))
		defer func() { _ = s.Close() }()

		Convey("When the store is empty", func() {
			So(s.Len(ctx), ShouldEqual, 0)
			So(s.All(ctx), ShouldBeEmpty)

			_, ok := s.Latest(ctx)
			So(ok, ShouldBeFalse)
		})

		Convey("When appending ordered snapshots", func() {
			first, err1 := s.Append(ctx, snapAt("up-1", base))
			second, err2 := s.Append(ctx, snapAt("up-2", base.Add(time.Hour)))

			Convey("Then sequence numbers are assigned in arrival order", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first.Seq, ShouldEqual, 0)
				So(second.Seq, ShouldEqual, 1)
				So(s.Len(ctx), ShouldEqual, 2)
			})

			Convey("And Latest returns the tail", func() {
				So(err2, ShouldBeNil)

				latest, ok := s.Latest(ctx)
				So(ok, ShouldBeTrue)
				So(latest.ID, ShouldEqual, "up-2")
			})
		})

		Convey("When appending a snapshot older than the tail", func() {
			_, err := s.Append(ctx, snapAt("up-1", base.Add(time.Hour)))
			So(err, ShouldBeNil)

			_, err = s.Append(ctx, snapAt("up-0", base))

			Convey("Then it is rejected and the sequence is untouched", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, repository.ErrOutOfOrder), ShouldBeTrue)
				So(s.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When appending a snapshot at exactly the tail timestamp", func() {
			_, err := s.Append(ctx, snapAt("up-1", base))
			So(err, ShouldBeNil)

			dup, err := s.Append(ctx, snapAt("up-2", base))

			Convey("Then it is accepted and ordered by arrival", func() {
				So(err, ShouldBeNil)
				So(dup.Seq, ShouldEqual, 1)
			})
		})

		Convey("When appending an invalid snapshot", func() {
			_, err := s.Append(ctx, model.Snapshot{ID: "bad"})

			So(err, ShouldNotBeNil)
			So(s.Len(ctx), ShouldEqual, 0)
		})

		Convey("When readers hold a view across later appends", func() {
			_, err := s.Append(ctx, snapAt("up-1", base))
			So(err, ShouldBeNil)

			view := s.All(ctx)
			_, err = s.Append(ctx, snapAt("up-2", base.Add(time.Minute)))
			So(err, ShouldBeNil)

			Convey("Then the earlier view is unaffected", func() {
				So(view, ShouldHaveLength, 1)
				So(s.All(ctx), ShouldHaveLength, 2)
			})
		})
	})
}

func TestInMemorySequenceConcurrency(t *testing.T) {
	Convey("Given concurrent appends and reads", t, func() {
		ctx := context.Background()
		base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

		s := repository.NewInMemorySequence(ctx)
		defer func() { _ = s.Close() }()

		const writers = 8
		const perWriter = 50

		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(2)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					// Shared timestamp keeps every append at or after the tail.
					_, _ = s.Append(ctx, snapAt(fmt.Sprintf("up-%d-%d", w, i), base))
				}
			}(w)
			go func() {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					seq := s.All(ctx)
					for j := 1; j < len(seq); j++ {
						if seq[j].Before(seq[j-1]) {
							t.Errorf("published view unordered at %d", j)
						}
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then every append landed with a unique sequence number", func() {
			So(s.Len(ctx), ShouldEqual, writers*perWriter)

			seen := make(map[uint64]struct{})
			for _, snap := range s.All(ctx) {
				_, dup := seen[snap.Seq]
				So(dup, ShouldBeFalse)
				seen[snap.Seq] = struct{}{}
			}
		})
	})
}

func TestInMemoryWindows(t *testing.T) {
	Convey("Given a new window store", t, func() {
		ctx := context.Background()
		base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		s := repository.NewInMemoryWindows()

		Convey("When the store is empty", func() {
			So(s.List(ctx), ShouldBeEmpty)
		})

		Convey("When putting windows", func() {
			So(s.Put(ctx, model.ActiveWindow{Name: "late", Start: base.Add(2 * time.Hour)}), ShouldBeNil)
			So(s.Put(ctx, model.ActiveWindow{Name: "early", Start: base, End: base.Add(time.Hour)}), ShouldBeNil)

			Convey("Then the list is sorted by start time", func() {
				wins := s.List(ctx)
				So(wins, ShouldHaveLength, 2)
				So(wins[0].Name, ShouldEqual, "early")
				So(wins[1].Name, ShouldEqual, "late")
			})

			Convey("And putting the same name replaces the definition", func() {
				So(s.Put(ctx, model.ActiveWindow{Name: "early", Start: base.Add(3 * time.Hour)}), ShouldBeNil)

				wins := s.List(ctx)
				So(wins, ShouldHaveLength, 2)
				So(wins[1].Name, ShouldEqual, "early")
				So(wins[1].OpenEnded(), ShouldBeTrue)
			})
		})

		Convey("When putting a malformed window", func() {
			err := s.Put(ctx, model.ActiveWindow{Name: "bad", Start: base, End: base.Add(-time.Hour)})

			Convey("Then it is rejected before it can reach attribution", func() {
				So(err, ShouldNotBeNil)
				So(s.List(ctx), ShouldBeEmpty)
			})
		})

		Convey("When deleting windows", func() {
			So(s.Put(ctx, model.ActiveWindow{Name: "w", Start: base}), ShouldBeNil)

			Convey("Then a known name is removed", func() {
				So(s.Delete(ctx, "w"), ShouldBeNil)
				So(s.List(ctx), ShouldBeEmpty)
			})

			Convey("And an unknown name reports not found", func() {
				err := s.Delete(ctx, "missing")
				So(errors.Is(err, repository.ErrWindowNotFound), ShouldBeTrue)
			})
		})

		Convey("When windows share a start time", func() {
			So(s.Put(ctx, model.ActiveWindow{Name: "b", Start: base}), ShouldBeNil)
			So(s.Put(ctx, model.ActiveWindow{Name: "a", Start: base}), ShouldBeNil)

			Convey("Then names break the tie", func() {
				wins := s.List(ctx)
				So(wins[0].Name, ShouldEqual, "a")
				So(wins[1].Name, ShouldEqual, "b")
			})
		})
	})
}
