package qkernel

import "math"

/*
RetryPolicy decides how often a failed purification is attempted again. The
protocol itself never retries: each attempt re-entangles fresh memory pairs
and runs new protocol instances.
*/
type RetryPolicy struct {
	MaxAttempts int
	Strategy    RetryStrategy
}

// RetryStrategy defines the simulated wait before the next attempt.
type RetryStrategy interface {
	NextDelay(attempt int) SimTime
}

// ExponentialBackoff implements RetryStrategy
type ExponentialBackoff struct {
	Initial SimTime
}

func (eb *ExponentialBackoff) NextDelay(attempt int) SimTime {
	if attempt < 1 {
		attempt = 1
	}
	return eb.Initial * SimTime(math.Pow(2, float64(attempt-1)))
}

func (rp *RetryPolicy) attempts() int {
	if rp == nil || rp.MaxAttempts < 1 {
		return 1
	}
	return rp.MaxAttempts
}

func (rp *RetryPolicy) delay(attempt int) SimTime {
	if rp == nil || rp.Strategy == nil {
		return 0
	}
	return rp.Strategy.NextDelay(attempt)
}
