package trainer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Report is the full outcome of one Run.
type Report struct {
	RunID      string        `json:"run_id"`
	Experiment string        `json:"experiment"`
	Seed       int64         `json:"seed"`
	Runs       int           `json:"runs"`
	Workers    int           `json:"workers"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Groups     []GroupReport `json:"groups"`
}

// WriteReport stores report as indented JSON at path, creating parent
// directories as needed.
func WriteReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create report dir")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(err, "write report")
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read report")
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.Wrapf(err, "decode report %s", path)
	}
	return &report, nil
}

// WriteMarkdown renders one table row per group.
func WriteMarkdown(w io.Writer, report *Report) error {
	if _, err := fmt.Fprintf(w, "## %s (run %s, %d runs, seed %d)\n\n", report.Experiment, report.RunID, report.Runs, report.Seed); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "| Group | Mean Accuracy | Std Dev | Max | Convergence Rate | Mean Epochs | Separable |"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "|-------|---------------|---------|-----|------------------|-------------|-----------|"); err != nil {
		return err
	}
	for _, g := range report.Groups {
		separable := "-"
		if g.Separable != nil {
			separable = "no"
			if *g.Separable {
				separable = "yes"
			}
		}
		_, err := fmt.Fprintf(w, "| %s | %.2f%% | %.2f%% | %.2f%% | %.2f%% | %.1f | %s |\n",
			g.Name,
			100*g.Accuracy.Mean,
			100*g.Accuracy.Std,
			100*g.Accuracy.Max,
			100*g.ConvergenceRate,
			g.Epochs.Mean,
			separable,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
