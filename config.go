package qkernel

import (
	"fmt"
	"time"
)

// Config holds the parameters of a purification campaign.
type Config struct {
	Workers           int
	Trials            int
	Fidelity          float64
	Delay             SimTime
	ExpireAfter       SimTime
	MaxAttempts       int
	Backoff           SimTime
	Seed              uint64
	MaxViolations     int
	SchedulingTimeout time.Duration
}

func NewConfig() *Config {
	return &Config{
		Workers:           4,
		Trials:            100,
		Fidelity:          0.9,
		Delay:             Millisecond,
		MaxAttempts:       1,
		Backoff:           Millisecond,
		Seed:              1,
		MaxViolations:     3,
		SchedulingTimeout: 10 * time.Second,
	}
}

// Validate rejects parameters no campaign can run with.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.Trials < 0:
		return fmt.Errorf("trials must not be negative, got %d", c.Trials)
	case c.Fidelity <= 0.5 || c.Fidelity > 1:
		return fmt.Errorf("%w: initial fidelity %v must be in (0.5, 1]", ErrBelowThreshold, c.Fidelity)
	case c.Delay <= 0:
		return fmt.Errorf("channel delay must be positive, got %d", c.Delay)
	case c.ExpireAfter < 0:
		return fmt.Errorf("expiry must not be negative, got %d", c.ExpireAfter)
	case c.MaxAttempts < 1:
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}

// Scenario returns the per-trial scenario for trial index i.
func (c *Config) Scenario(i int) ScenarioConfig {
	return ScenarioConfig{
		Fidelity:    c.Fidelity,
		Delay:       c.Delay,
		ExpireAfter: c.ExpireAfter,
		Retry: &RetryPolicy{
			MaxAttempts: c.MaxAttempts,
			Strategy:    &ExponentialBackoff{Initial: c.Backoff},
		},
		Seed: c.Seed + uint64(i),
	}
}

func (c *Config) getSchedulingTimeout() time.Duration {
	if c.SchedulingTimeout > 0 {
		return c.SchedulingTimeout
	}
	return 5 * time.Second
}
