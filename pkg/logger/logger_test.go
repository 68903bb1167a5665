package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given an uninitialized logger package", t, func() {
		Convey("When Init is called", func() {
			err := Init()

			Convey("Then the global logger should be available", func() {
				So(err, ShouldBeNil)
				So(Get(), ShouldNotBeNil)
			})

			Convey("And logging should not panic", func() {
				ctx := context.Background()
				So(func() {
					Get().Info(ctx, "info message", String("k", "v"))
					Get().Debug(ctx, "debug message", Int("n", 1))
					Get().Warn(ctx, "warn message", Int64("n64", 2))
					Get().Error(ctx, "error message", Error(errors.New("boom")))
				}, ShouldNotPanic)
			})
		})
	})
}

func TestNamedLogger(t *testing.T) {
	Convey("Given an initialized logger", t, func() {
		So(Init(), ShouldBeNil)

		Convey("When creating a named logger", func() {
			named := Named("attribution")

			Convey("Then it should be usable", func() {
				So(named, ShouldNotBeNil)
				So(func() {
					named.Info(context.Background(), "named message")
				}, ShouldNotPanic)
			})
		})
	})
}

func TestFieldConstructors(t *testing.T) {
	Convey("Given field constructors", t, func() {
		Convey("When constructing fields", func() {
			now := time.Now()
			fields := []Field{
				String("s", "v"),
				Int("i", 1),
				Int64("i64", 2),
				Float64("f", 3.5),
				Time("t", now),
				Any("a", struct{}{}),
			}

			Convey("Then keys and values should round-trip", func() {
				So(fields[0].Value, ShouldEqual, "v")
				So(fields[1].Value, ShouldEqual, 1)
				So(fields[2].Value, ShouldEqual, 2)
				So(fields[3].Value, ShouldEqual, 3.5)
				So(fields[4].Value, ShouldEqual, now)
				So(fields[5].Key, ShouldEqual, "a")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		Convey("When parsing known levels", func() {
			for _, lvl := range []string{"debug", "info", "warn", "warning", "error", ""} {
				So(SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("When parsing an unknown level", func() {
			So(SetLevelString("shout"), ShouldNotBeNil)
		})
	})
}
