package qkernel

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTimeline(t *testing.T) {
	Convey("Given a timeline", t, func() {
		tl := NewTimeline()
		ctx := context.Background()

		var order []string
		record := func(name string) Process {
			return Process{Owner: name, Activation: "test", Fn: func() error {
				order = append(order, name)
				return nil
			}}
		}

		Convey("Events should run in time order", func() {
			So(tl.Schedule(30, record("c")), ShouldBeNil)
			So(tl.Schedule(10, record("a")), ShouldBeNil)
			So(tl.Schedule(20, record("b")), ShouldBeNil)

			So(tl.Run(ctx), ShouldBeNil)
			So(order, ShouldResemble, []string{"a", "b", "c"})
			So(tl.Now(), ShouldEqual, SimTime(30))
			So(tl.Executed(), ShouldEqual, uint64(3))
		})

		Convey("Equal timestamps should run in scheduling order", func() {
			for _, name := range []string{"first", "second", "third"} {
				So(tl.Schedule(5, record(name)), ShouldBeNil)
			}

			So(tl.Run(ctx), ShouldBeNil)
			So(order, ShouldResemble, []string{"first", "second", "third"})
		})

		Convey("Scheduling in the past should fail", func() {
			So(tl.Schedule(10, record("a")), ShouldBeNil)
			So(tl.Run(ctx), ShouldBeNil)

			err := tl.Schedule(5, record("late"))
			So(errors.Is(err, ErrPastEvent), ShouldBeTrue)
		})

		Convey("Events may schedule further events", func() {
			So(tl.Schedule(0, Process{Owner: "root", Fn: func() error {
				return tl.After(Nanosecond, record("child"))
			}}), ShouldBeNil)

			So(tl.Run(ctx), ShouldBeNil)
			So(order, ShouldResemble, []string{"child"})
			So(tl.Now(), ShouldEqual, Nanosecond)
		})

		Convey("RunUntil should stop at the given time", func() {
			So(tl.Schedule(10, record("a")), ShouldBeNil)
			So(tl.Schedule(50, record("b")), ShouldBeNil)

			So(tl.RunUntil(ctx, 20), ShouldBeNil)
			So(order, ShouldResemble, []string{"a"})
			So(tl.Now(), ShouldEqual, SimTime(20))
			So(tl.Pending(), ShouldEqual, 1)
		})

		Convey("A failing process should stop the run with its owner", func() {
			boom := errors.New("boom")
			So(tl.Schedule(1, Process{Owner: "bad", Activation: "fire", Fn: func() error { return boom }}), ShouldBeNil)
			So(tl.Schedule(2, record("never")), ShouldBeNil)

			err := tl.Run(ctx)
			So(errors.Is(err, boom), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "bad.fire")
			So(order, ShouldBeEmpty)
		})

		Convey("A cancelled context should stop the run", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			So(tl.Schedule(1, record("a")), ShouldBeNil)
			So(errors.Is(tl.Run(cancelled), context.Canceled), ShouldBeTrue)
			So(order, ShouldBeEmpty)
		})
	})
}
