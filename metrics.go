package qkernel

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

/*
Metrics aggregates the results of a purification campaign. Plain fields back
ExportMetrics and the campaign summary; the prometheus collectors mirror them
for scraping and are registered on the registry passed to NewMetrics.
*/
type Metrics struct {
	mu sync.RWMutex

	WorkerCount  int
	TrialCount   int64
	Successes    int64
	Failures     int64
	Expirations  int64
	Violations   int64
	Rejected     int64
	AttemptCount int64
	FidelitySum  float64
	SimTimeTotal SimTime

	TotalTrialTime      time.Duration
	AverageTrialLatency time.Duration
	P95TrialLatency     time.Duration

	latencies  []time.Duration
	windowSize int

	attempts   *prometheus.CounterVec
	trials     *prometheus.CounterVec
	violations prometheus.Counter
	fidelity   prometheus.Histogram
}

// NewMetrics creates the campaign collectors and registers them on reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		latencies:  make([]time.Duration, 0, 1000),
		windowSize: 1000,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qkernel",
			Name:      "purification_attempts_total",
			Help:      "Purification attempts by outcome.",
		}, []string{"outcome"}),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qkernel",
			Name:      "trials_total",
			Help:      "Campaign trials by final outcome.",
		}, []string{"outcome"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qkernel",
			Name:      "invariant_violations_total",
			Help:      "Trials that ended with a kernel error.",
		}),
		fidelity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qkernel",
			Name:      "final_fidelity",
			Help:      "Fidelity of the kept pair after a successful trial.",
			Buckets:   prometheus.LinearBuckets(0.5, 0.05, 11),
		}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.attempts, m.trials, m.violations, m.fidelity} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register campaign metrics: %w", err)
		}
	}

	return m, nil
}

// recordTrial folds one finished trial into the metrics.
func (m *Metrics) recordTrial(startTime time.Time, result *TrialResult, err error) {
	duration := time.Since(startTime)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalTrialTime += duration
	m.TrialCount++
	m.updateLatencies(duration)

	if err != nil {
		m.Violations++
		m.violations.Inc()
		m.trials.WithLabelValues("violation").Inc()
		return
	}

	m.AttemptCount += int64(result.Attempts)
	m.Expirations += int64(result.Expired)
	m.SimTimeTotal += result.SimTime

	failed := result.Attempts
	if result.Outcome == OutcomeSuccess {
		failed--
		m.Successes++
		m.FidelitySum += result.FinalFidelity
		m.fidelity.Observe(result.FinalFidelity)
		m.attempts.WithLabelValues(OutcomeSuccess.String()).Inc()
	} else {
		m.Failures++
	}

	m.attempts.WithLabelValues(OutcomeFailure.String()).Add(float64(failed))
	m.trials.WithLabelValues(result.Outcome.String()).Inc()
}

func (m *Metrics) recordRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Rejected++
	m.trials.WithLabelValues("rejected").Inc()
}

func (m *Metrics) updateLatencies(duration time.Duration) {
	m.AverageTrialLatency = m.TotalTrialTime / time.Duration(m.TrialCount)

	m.latencies = append(m.latencies, duration)
	if len(m.latencies) > m.windowSize {
		m.latencies = m.latencies[1:]
	}

	sorted := append([]time.Duration(nil), m.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	m.P95TrialLatency = sorted[idx]
}

// SuccessRate is the share of completed trials that purified their pair.
func (m *Metrics) SuccessRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	completed := m.Successes + m.Failures
	if completed == 0 {
		return 0
	}
	return float64(m.Successes) / float64(completed)
}

// MeanFidelity is the average final fidelity over successful trials.
func (m *Metrics) MeanFidelity() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Successes == 0 {
		return 0
	}
	return m.FidelitySum / float64(m.Successes)
}

func (m *Metrics) ExportMetrics() map[string]interface{} {
	successRate := m.SuccessRate()
	meanFidelity := m.MeanFidelity()

	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"worker_count":         m.WorkerCount,
		"trial_count":          m.TrialCount,
		"successes":            m.Successes,
		"failures":             m.Failures,
		"expirations":          m.Expirations,
		"violations":           m.Violations,
		"rejected":             m.Rejected,
		"attempt_count":        m.AttemptCount,
		"success_rate":         successRate,
		"mean_fidelity":        meanFidelity,
		"sim_time_total_ps":    int64(m.SimTimeTotal),
		"avg_trial_latency_ms": m.AverageTrialLatency.Milliseconds(),
		"p95_trial_latency_ms": m.P95TrialLatency.Milliseconds(),
	}
}
