package qkernel

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/theapemachine/errnie"
)

// CampaignSummary is the aggregate of every trial in a campaign.
type CampaignSummary struct {
	Trials       int
	Successes    int
	Failures     int
	Violations   int
	Rejected     int
	SuccessRate  float64
	MeanFidelity float64

	// Expected is the success rate predicted for expiry-free trials.
	Expected float64
	Results  []Result
}

/*
RunCampaign runs cfg.Trials independent scenarios on a worker pool and
collects their results in trial order.

Trial i uses seed cfg.Seed+i, so a campaign is reproducible regardless of how
the trials are scheduled. Once cfg.MaxViolations trials in a row fail with a
kernel error the breaker opens, the remaining trials are rejected, and the
summary is returned together with ErrCircuitOpen.
*/
func RunCampaign(ctx context.Context, cfg *Config, metrics *Metrics) (*CampaignSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if metrics == nil {
		var err error
		if metrics, err = NewMetrics(nil); err != nil {
			return nil, err
		}
	}

	breaker := NewCircuitBreaker(cfg.MaxViolations, 0, 1)
	pool := NewPool(ctx, cfg, metrics, breaker)
	defer pool.Stop()

	submitErr := make(chan error, 1)
	go func() {
		defer pool.Close()
		for i := 0; i < cfg.Trials; i++ {
			if err := pool.Submit(NewTrialJob(i, cfg.Scenario(i))); err != nil {
				submitErr <- err
				return
			}
		}
		submitErr <- nil
	}()

	start := time.Now()
	results := make([]Result, 0, cfg.Trials)
	for result := range pool.Results() {
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Trial < results[j].Trial })

	summary := summarize(cfg, results)
	errnie.Info("Campaign - %d trials in %v, success rate %.3f, mean fidelity %.4f",
		summary.Trials, time.Since(start), summary.SuccessRate, summary.MeanFidelity)

	if err := <-submitErr; err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if breaker.State() == CircuitOpen {
		return summary, fmt.Errorf("%w: %d violations", ErrCircuitOpen, summary.Violations)
	}

	return summary, nil
}

func summarize(cfg *Config, results []Result) *CampaignSummary {
	summary := &CampaignSummary{
		Trials:   len(results),
		Expected: 1 - math.Pow(1-SuccessProbability(cfg.Fidelity), float64(cfg.MaxAttempts)),
		Results:  results,
	}

	var fidelitySum float64
	for _, result := range results {
		switch {
		case result.Rejected:
			summary.Rejected++
		case result.Error != nil:
			summary.Violations++
		case result.Value.Outcome == OutcomeSuccess:
			summary.Successes++
			fidelitySum += result.Value.FinalFidelity
		default:
			summary.Failures++
		}
	}

	if completed := summary.Successes + summary.Failures; completed > 0 {
		summary.SuccessRate = float64(summary.Successes) / float64(completed)
	}
	if summary.Successes > 0 {
		summary.MeanFidelity = fidelitySum / float64(summary.Successes)
	}

	return summary
}
