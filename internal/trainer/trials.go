package trainer

import (
	"context"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"gatelearn/internal/dataset"
	"gatelearn/internal/metrics"
	"gatelearn/internal/model"
)

// TrialSpec describes one group of repeated trials: the same model
// configuration trained on the same data under different seeds.
type TrialSpec struct {
	Name   string
	Model  string
	Data   dataset.Dataset
	Epochs int
	Build  func(seed int64) (model.Classifier, error)
}

// TrialResult is the outcome of training one model instance.
type TrialResult struct {
	Seed      int64             `json:"seed"`
	Epochs    int               `json:"epochs"`
	Converged bool              `json:"converged"`
	FinalLoss float64           `json:"final_loss"`
	Confusion metrics.Confusion `json:"confusion"`
	Duration  time.Duration     `json:"duration_ns"`
}

// DefaultWorkers returns the number of logical CPUs, or 1 when it cannot be
// detected.
func DefaultWorkers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return 1
}

// CheckSeeds rejects seed ranges that contain 0, since a zero seed draws
// from the clock and that trial could not be reproduced.
func CheckSeeds(base int64, runs int) error {
	if runs <= 0 {
		return errors.Errorf("trainer: runs must be > 0 (got %d)", runs)
	}
	if last := base + int64(runs-1); base <= 0 && last >= 0 {
		return errors.Errorf("trainer: seeds %d..%d include 0, which seeds from the clock", base, last)
	}
	return nil
}

// Seeds returns runs consecutive seeds starting at base.
func Seeds(base int64, runs int) []int64 {
	out := make([]int64, runs)
	for i := range out {
		out[i] = base + int64(i)
	}
	return out
}

// RunTrials trains one independent model per seed, at most workers at a
// time. Results are returned in seed order. The first failing trial cancels
// the rest.
func RunTrials(ctx context.Context, spec TrialSpec, seeds []int64, workers int) ([]TrialResult, error) {
	if spec.Build == nil {
		return nil, errors.Errorf("trainer: %s has no model builder", spec.Name)
	}
	if spec.Epochs <= 0 {
		return nil, errors.Errorf("trainer: %s epochs must be > 0", spec.Name)
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	results := make([]TrialResult, len(seeds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, seed := range seeds {
		i, seed := i, seed
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := runTrial(spec, seed)
			if err != nil {
				return errors.Wrapf(err, "%s seed=%d", spec.Name, seed)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runTrial(spec TrialSpec, seed int64) (TrialResult, error) {
	mdl, err := spec.Build(seed)
	if err != nil {
		return TrialResult{}, err
	}
	start := time.Now()
	if err := mdl.Fit(spec.Data.X, spec.Data.Y, spec.Epochs); err != nil {
		return TrialResult{}, err
	}
	elapsed := time.Since(start)

	pred, err := mdl.Predict(spec.Data.X)
	if err != nil {
		return TrialResult{}, err
	}
	conf := metrics.Evaluate(pred, spec.Data.Y)
	h := mdl.History()
	loss, _ := h.Last()
	return TrialResult{
		Seed:      seed,
		Epochs:    h.Len(),
		Converged: conf.Accuracy == 1,
		FinalLoss: loss,
		Confusion: conf,
		Duration:  elapsed,
	}, nil
}

// GroupReport aggregates the trials of one TrialSpec.
type GroupReport struct {
	Name            string          `json:"name"`
	Model           string          `json:"model"`
	Dataset         string          `json:"dataset"`
	Separable       *bool           `json:"linearly_separable,omitempty"`
	Accuracy        metrics.Summary `json:"accuracy"`
	F1              metrics.Summary `json:"f1"`
	Epochs          metrics.Summary `json:"epochs"`
	TrainingMS      metrics.Summary `json:"training_ms"`
	ConvergenceRate float64         `json:"convergence_rate"`
	Trials          []TrialResult   `json:"trials"`
}

// Summarize aggregates results into a GroupReport.
func Summarize(spec TrialSpec, results []TrialResult) GroupReport {
	acc := make([]float64, len(results))
	f1 := make([]float64, len(results))
	epochs := make([]float64, len(results))
	ms := make([]float64, len(results))
	converged := make([]bool, len(results))
	for i, r := range results {
		acc[i] = r.Confusion.Accuracy
		f1[i] = r.Confusion.F1
		epochs[i] = float64(r.Epochs)
		ms[i] = r.Duration.Seconds() * 1000
		converged[i] = r.Converged
	}
	group := GroupReport{
		Name:            spec.Name,
		Model:           spec.Model,
		Dataset:         spec.Data.Name,
		Accuracy:        metrics.Summarize(acc),
		F1:              metrics.Summarize(f1),
		Epochs:          metrics.Summarize(epochs),
		TrainingMS:      metrics.Summarize(ms),
		ConvergenceRate: metrics.Rate(converged),
		Trials:          results,
	}
	if ok, err := dataset.LinearlySeparable(spec.Data.Name); err == nil {
		group.Separable = &ok
	}
	return group
}
