package metrics

import "time"

// Window accumulates throughput stats across training trials.
type Window struct {
	epochs   int
	elapsed  time.Duration
	trials   int
	lastLoss float64
}

// Record adds one finished trial to the window.
func (w *Window) Record(epochs int, elapsed time.Duration, loss float64) {
	w.epochs += epochs
	w.elapsed += elapsed
	w.trials++
	w.lastLoss = loss
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Trials: w.trials, Epochs: w.epochs}
	if w.elapsed > 0 {
		snap.EpochsPerSec = float64(w.epochs) / w.elapsed.Seconds()
	}
	if w.trials > 0 {
		snap.AvgTrialMS = (w.elapsed.Seconds() * 1000) / float64(w.trials)
	}
	snap.LastLoss = w.lastLoss

	w.epochs = 0
	w.elapsed = 0
	w.trials = 0
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Trials       int
	Epochs       int
	EpochsPerSec float64
	AvgTrialMS   float64
	LastLoss     float64
}
