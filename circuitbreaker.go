package qkernel

import (
	"sync"
	"time"

	"github.com/theapemachine/errnie"
)

/*
CircuitState represents the state of the circuit breaker.
*/
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // trials are accepted
	CircuitOpen                         // too many invariant violations, trials are rejected
	CircuitHalfOpen                     // probation, a limited number of trials run
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

/*
CircuitBreaker stops a campaign from running more trials once they keep
failing with invariant violations. A purification failure is an ordinary
outcome and never counts against the breaker; an error returned by the
kernel does.

The breaker operates in three states:
  - Closed: every trial is allowed
  - Open: the failure threshold was reached, trials are rejected
  - Half-Open: after resetTimeout a limited number of trials run again

A resetTimeout of zero keeps the breaker open for good once tripped.
*/
type CircuitBreaker struct {
	mu               sync.RWMutex
	maxFailures      int
	resetTimeout     time.Duration
	halfOpenMax      int
	failureCount     int
	state            CircuitState
	openTime         time.Time
	halfOpenAttempts int
}

/*
NewCircuitBreaker creates a new circuit breaker instance with specified parameters.

Parameters:
  - maxFailures: Number of consecutive violations allowed before opening the circuit
  - resetTimeout: Duration to wait before probing again, zero for never
  - halfOpenMax: Number of successful trials needed to close the circuit
*/
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, halfOpenMax int) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	if halfOpenMax < 1 {
		halfOpenMax = 1
	}

	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  halfOpenMax,
		state:        CircuitClosed,
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

/*
RecordFailure records an invariant violation and opens the circuit once the
threshold is reached. A failure during probation reopens it immediately.
*/
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++

	switch {
	case cb.state == CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.openTime = time.Now()
		errnie.Info("CircuitBreaker - reopened from half-open after %d failures", cb.failureCount)
	case cb.state == CircuitClosed && cb.failureCount >= cb.maxFailures:
		cb.state = CircuitOpen
		cb.openTime = time.Now()
		errnie.Info("CircuitBreaker - opened after %d failures", cb.failureCount)
	}
}

/*
RecordSuccess records a trial that ran without violations. In half-open state
enough of them close the circuit; in closed state the failure count resets.
*/
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.halfOpenAttempts++
		if cb.halfOpenAttempts >= cb.halfOpenMax {
			cb.state = CircuitClosed
			cb.failureCount = 0
			cb.halfOpenAttempts = 0
			errnie.Info("CircuitBreaker - closed from half-open")
		}
	case CircuitClosed:
		cb.failureCount = 0
	}
}

// Allow reports whether the next trial may run.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.resetTimeout > 0 && time.Since(cb.openTime) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.halfOpenAttempts = 0
			return true
		}
		return false
	case CircuitHalfOpen:
		return cb.halfOpenAttempts < cb.halfOpenMax
	default:
		return false
	}
}
