package qkernel

import (
	"context"
	"fmt"
	"time"

	"github.com/theapemachine/errnie"
)

// Worker runs trials from the pool's job queue.
type Worker struct {
	id   int
	pool *Pool
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.pool.jobs:
			if !ok {
				return
			}

			result := w.processJob(ctx, job)

			select {
			case w.pool.results <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) processJob(ctx context.Context, job Job) Result {
	if !w.pool.breaker.Allow() {
		errnie.Info("Worker %d - %s rejected, circuit open", w.id, job.ID)
		w.pool.metrics.recordRejected()
		return Result{
			JobID:    job.ID,
			Trial:    job.Trial,
			Error:    fmt.Errorf("%w: %s", ErrCircuitOpen, job.ID),
			Rejected: true,
		}
	}

	startTime := time.Now()
	value, err := job.Fn(ctx)
	w.pool.metrics.recordTrial(startTime, value, err)

	if err != nil {
		errnie.Info("Worker %d - %s failed: %v", w.id, job.ID, err)
		w.pool.breaker.RecordFailure()
	} else {
		w.pool.breaker.RecordSuccess()
	}

	return Result{
		JobID:    job.ID,
		Trial:    job.Trial,
		Value:    value,
		Error:    err,
		Duration: time.Since(startTime),
	}
}
