package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/theapemachine/qkernel"
	"github.com/theapemachine/qkernel/internal/results"
)

var flagJSON bool

var purifyCmd = &cobra.Command{
	Use:   "purify",
	Short: "Run a BBPSSW purification campaign between two nodes",
	Long: `Runs independent two-node BBPSSW trials on a worker pool and reports the
measured success rate and mean purified fidelity. Flags override qkernel.yaml
and QKERNEL_* environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := campaignConfig(cfg)

		registry := prometheus.NewRegistry()
		metrics, err := qkernel.NewMetrics(registry)
		if err != nil {
			return err
		}

		summary, runErr := qkernel.RunCampaign(cmd.Context(), c, metrics)
		if summary == nil {
			return runErr
		}

		if path := cfg.GetString(cfgKeyDB); path != "" {
			id, err := persist(path, c, summary)
			if err != nil {
				return errors.Join(runErr, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "campaign %s stored in %s\n", id, path)
		}

		if err := report(cmd.OutOrStdout(), summary, metrics, flagJSON); err != nil {
			return errors.Join(runErr, err)
		}

		return runErr
	},
}

func init() {
	defaults := qkernel.NewConfig()
	flags := purifyCmd.Flags()

	flags.Int(cfgKeyWorkers, defaults.Workers, "concurrent trial workers")
	flags.Int(cfgKeyTrials, defaults.Trials, "number of trials")
	flags.Float64(cfgKeyFidelity, defaults.Fidelity, "initial fidelity of every memory pair")
	flags.Duration(cfgKeyDelay, toDuration(defaults.Delay), "one-way classical channel delay")
	flags.Duration(cfgKeyExpire, toDuration(defaults.ExpireAfter), "measured-memory expiry after start, 0 for none")
	flags.Int(cfgKeyAttempts, defaults.MaxAttempts, "attempts per trial")
	flags.Duration(cfgKeyBackoff, toDuration(defaults.Backoff), "simulated wait before the second attempt, doubling after")
	flags.Uint64(cfgKeySeed, defaults.Seed, "seed of trial 0, trial i uses seed+i")
	flags.Int("max-violations", defaults.MaxViolations, "consecutive kernel errors before the campaign aborts")
	flags.String(cfgKeyDB, "", "SQLite database to store the campaign in")
	flags.BoolVar(&flagJSON, "json", false, "output as JSON")
}

func persist(path string, c *qkernel.Config, summary *qkernel.CampaignSummary) (string, error) {
	store, err := results.Open(path)
	if err != nil {
		return "", err
	}
	defer store.Close()

	id, err := store.CreateCampaign(results.Campaign{
		Fidelity:    c.Fidelity,
		Trials:      c.Trials,
		DelayPS:     int64(c.Delay),
		ExpirePS:    int64(c.ExpireAfter),
		MaxAttempts: c.MaxAttempts,
		Seed:        c.Seed,
	})
	if err != nil {
		return "", err
	}

	trials := make([]results.Trial, 0, len(summary.Results))
	for _, r := range summary.Results {
		trials = append(trials, trialRow(id, r))
	}

	return id, store.RecordTrials(trials...)
}

func trialRow(campaignID string, r qkernel.Result) results.Trial {
	row := results.Trial{CampaignID: campaignID, Index: r.Trial}

	switch {
	case r.Rejected:
		row.Outcome = results.OutcomeRejected
		row.Error = r.Error.Error()
	case r.Error != nil:
		row.Outcome = results.OutcomeViolation
		row.Error = r.Error.Error()
	default:
		row.Outcome = r.Value.Outcome.String()
		row.Attempts = r.Value.Attempts
		row.Expired = r.Value.Expired
		row.FinalFidelity = r.Value.FinalFidelity
		row.SimTimePS = int64(r.Value.SimTime)
	}

	return row
}

func report(w io.Writer, summary *qkernel.CampaignSummary, metrics *qkernel.Metrics, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"trials":        summary.Trials,
			"successes":     summary.Successes,
			"failures":      summary.Failures,
			"violations":    summary.Violations,
			"rejected":      summary.Rejected,
			"success_rate":  summary.SuccessRate,
			"expected_rate": summary.Expected,
			"mean_fidelity": summary.MeanFidelity,
			"metrics":       metrics.ExportMetrics(),
		})
	}

	_, err := fmt.Fprintf(w,
		"trials %d  success %d  failure %d  violation %d  rejected %d\n"+
			"success rate %.4f (expected %.4f)\n"+
			"mean purified fidelity %.4f\n",
		summary.Trials, summary.Successes, summary.Failures, summary.Violations, summary.Rejected,
		summary.SuccessRate, summary.Expected, summary.MeanFidelity,
	)
	return err
}
