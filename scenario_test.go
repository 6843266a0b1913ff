package qkernel

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRunScenario(t *testing.T) {
	Convey("Given a two-node scenario at F = 0.9", t, func() {
		cfg := ScenarioConfig{
			Fidelity: 0.9,
			Delay:    Millisecond,
			Seed:     3,
		}
		ctx := context.Background()

		Convey("A forced success should purify in one attempt", func() {
			cfg.Force = OutcomeSuccess
			result, err := RunScenario(ctx, cfg)
			So(err, ShouldBeNil)

			So(result.Outcome, ShouldEqual, OutcomeSuccess)
			So(result.Attempts, ShouldEqual, 1)
			So(result.FinalFidelity, ShouldAlmostEqual, ImprovedFidelity(0.9), 1e-12)
			So(result.SimTime, ShouldEqual, Millisecond)
			So(result.PurifiedPair, ShouldHaveLength, 2)
			So(result.LiveKeys, ShouldEqual, 2)
		})

		Convey("A forced failure should use every attempt and back off", func() {
			cfg.Force = OutcomeFailure
			cfg.Retry = &RetryPolicy{MaxAttempts: 3, Strategy: &ExponentialBackoff{Initial: Millisecond}}

			result, err := RunScenario(ctx, cfg)
			So(err, ShouldBeNil)

			So(result.Outcome, ShouldEqual, OutcomeFailure)
			So(result.Attempts, ShouldEqual, 3)
			So(result.LiveKeys, ShouldEqual, 0)
			// three round trips plus backoffs of 1ms and 2ms
			So(result.SimTime, ShouldEqual, 3*Millisecond+3*Millisecond)
		})

		Convey("An early expiry should count as a failed attempt", func() {
			cfg.Force = OutcomeSuccess
			cfg.ExpireAfter = Millisecond / 2

			result, err := RunScenario(ctx, cfg)
			So(err, ShouldBeNil)
			So(result.Outcome, ShouldEqual, OutcomeFailure)
			So(result.Expired, ShouldEqual, 1)
		})

		Convey("Drawn outcomes should be reproducible from the seed", func() {
			first, err := RunScenario(ctx, cfg)
			So(err, ShouldBeNil)
			second, err := RunScenario(ctx, cfg)
			So(err, ShouldBeNil)

			So(second.Outcome, ShouldEqual, first.Outcome)
			So(second.Events, ShouldEqual, first.Events)
		})

		Convey("A fidelity at the threshold should be rejected", func() {
			cfg.Fidelity = 0.5
			_, err := RunScenario(ctx, cfg)
			So(errors.Is(err, ErrBelowThreshold), ShouldBeTrue)
		})

		Convey("A cancelled context should stop the trial", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := RunScenario(cancelled, cfg)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestExponentialBackoff(t *testing.T) {
	Convey("Given an exponential backoff", t, func() {
		backoff := &ExponentialBackoff{Initial: Microsecond}

		Convey("It should double per attempt", func() {
			So(backoff.NextDelay(1), ShouldEqual, Microsecond)
			So(backoff.NextDelay(2), ShouldEqual, 2*Microsecond)
			So(backoff.NextDelay(4), ShouldEqual, 8*Microsecond)
		})

		Convey("A nil policy should mean one attempt without delay", func() {
			var policy *RetryPolicy
			So(policy.attempts(), ShouldEqual, 1)
			So(policy.delay(1), ShouldEqual, SimTime(0))
		})
	})
}
