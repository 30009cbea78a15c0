package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(1500, 20*time.Millisecond, 0.4)
	w.Record(500, 30*time.Millisecond, 0.02)
	snap := w.Snapshot()

	assert.InDelta(t, 40000.0, snap.EpochsPerSec, 1)
	assert.InDelta(t, 25.0, snap.AvgTrialMS, 1e-9)
	assert.Equal(t, 2, snap.Trials)
	assert.Equal(t, 2000, snap.Epochs)
	assert.Equal(t, 0.02, snap.LastLoss)
	assert.Zero(t, w.trials, "window was not reset")
	assert.Zero(t, w.epochs, "window was not reset")
}

func TestEmptyWindow(t *testing.T) {
	var w Window
	snap := w.Snapshot()
	assert.Zero(t, snap.EpochsPerSec)
	assert.Zero(t, snap.AvgTrialMS)
}
