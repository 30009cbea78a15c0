package trainer

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"gatelearn/internal/metrics"
)

// RunConfig captures the knobs required by an experiment run.
type RunConfig struct {
	Experiment    string
	Gate          string
	Runs          int
	Seed          int64
	Workers       int
	LogEvery      int
	Verbose       bool
	DataDir       string
	NoisyXOR      NoisySettings
	Perceptron    PerceptronSettings
	MLP           MLPSettings
	Search        SearchSettings
	Architectures []Architecture
}

// Run executes every trial group of the configured experiment and returns
// the aggregated report. Trial k of every group uses seed Seed+k, so groups
// are compared on the same seeds.
func Run(ctx context.Context, cfg RunConfig) (*Report, error) {
	if err := CheckSeeds(cfg.Seed, cfg.Runs); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	specs, err := cfg.plan()
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:      uuid.NewString(),
		Experiment: cfg.Experiment,
		Seed:       cfg.Seed,
		Runs:       cfg.Runs,
		Workers:    cfg.Workers,
		StartedAt:  time.Now().UTC(),
	}
	seeds := Seeds(cfg.Seed, cfg.Runs)
	var window metrics.Window

	for _, spec := range specs {
		results, err := RunTrials(ctx, spec, seeds, cfg.Workers)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			window.Record(r.Epochs, r.Duration, r.FinalLoss)
		}
		snap := window.Snapshot()
		group := Summarize(spec, results)
		report.Groups = append(report.Groups, group)

		log.Printf("group=%q trials=%d accuracy=%.3f±%.3f converged=%.2f epochs=%.1f epochs_per_sec=%.0f trial_ms=%.2f loss=%.4f",
			spec.Name,
			snap.Trials,
			group.Accuracy.Mean,
			group.Accuracy.Std,
			group.ConvergenceRate,
			group.Epochs.Mean,
			snap.EpochsPerSec,
			snap.AvgTrialMS,
			snap.LastLoss,
		)
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}
