package qkernel

import (
	"context"
	"fmt"
	"time"
)

// Job is one campaign trial waiting for a worker.
type Job struct {
	ID        string
	Trial     int
	Fn        func(ctx context.Context) (*TrialResult, error)
	StartTime time.Time
}

// Result is what a worker reports for a job.
type Result struct {
	JobID    string
	Trial    int
	Value    *TrialResult
	Error    error
	Rejected bool
	Duration time.Duration
}

// NewTrialJob wraps a scenario run as a job.
func NewTrialJob(trial int, scenario ScenarioConfig) Job {
	return Job{
		ID:    fmt.Sprintf("trial-%d", trial),
		Trial: trial,
		Fn: func(ctx context.Context) (*TrialResult, error) {
			return RunScenario(ctx, scenario)
		},
	}
}
