package qkernel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/theapemachine/errnie"
)

/*
Pool runs campaign trials on a fixed set of workers. Every trial owns its
timeline and state store, so workers share nothing but the circuit breaker
and the metrics.
*/
type Pool struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	jobs    chan Job
	results chan Result
	breaker *CircuitBreaker
	metrics *Metrics
	config  *Config
	once    sync.Once
}

// NewPool starts config.Workers workers. A nil breaker never trips and nil
// metrics are collected unregistered.
func NewPool(ctx context.Context, config *Config, metrics *Metrics, breaker *CircuitBreaker) *Pool {
	ctx, cancel := context.WithCancel(ctx)

	if metrics == nil {
		// Unregistered collectors cannot fail.
		metrics, _ = NewMetrics(nil)
	}

	if breaker == nil {
		breaker = NewCircuitBreaker(int(^uint(0)>>1), 0, 1)
	}

	p := &Pool{
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(chan Job, config.Workers*10),
		results: make(chan Result, config.Workers*10),
		breaker: breaker,
		metrics: metrics,
		config:  config,
	}

	for i := 0; i < config.Workers; i++ {
		p.startWorker(i)
	}

	go func() {
		p.wg.Wait()
		close(p.results)
	}()

	return p
}

func (p *Pool) startWorker(id int) {
	worker := &Worker{id: id, pool: p}

	p.metrics.mu.Lock()
	p.metrics.WorkerCount++
	p.metrics.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		worker.run(p.ctx)
	}()
}

// Submit queues job, failing when no worker takes it within the scheduling
// timeout or the pool is shutting down.
func (p *Pool) Submit(job Job) error {
	job.StartTime = time.Now()

	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	case <-time.After(p.config.getSchedulingTimeout()):
		return fmt.Errorf("job scheduling timeout for %s", job.ID)
	}
}

// Results delivers every processed job; it closes once all workers stopped.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Breaker returns the pool's circuit breaker.
func (p *Pool) Breaker() *CircuitBreaker {
	return p.breaker
}

// Close stops accepting jobs. Queued jobs still run.
func (p *Pool) Close() {
	p.once.Do(func() {
		errnie.Info("Pool - closing job queue")
		close(p.jobs)
	})
}

// Stop cancels the pool; workers return without draining the queue.
func (p *Pool) Stop() {
	p.cancel()
}
