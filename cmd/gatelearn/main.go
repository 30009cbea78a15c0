package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/klauspost/cpuid/v2"

	"gatelearn/internal/config"
	"gatelearn/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (defaults are used when empty)")
	experiment := flag.String("experiment", "", "Experiment: compare, hidden, gates or search")
	gate := flag.String("gate", "", "Logic gate for single-gate experiments")
	runs := flag.Int("runs", 0, "Trials per configuration")
	seed := flag.Int64("seed", 0, "Base PRNG seed; trial k uses seed+k")
	workers := flag.Int("workers", 0, "Concurrent trials (0 = logical CPU count)")
	logEvery := flag.Int("log-every", 0, "Log every N epochs when verbose")
	output := flag.String("output", "", "Write the JSON report to this path")
	dataDir := flag.String("data-dir", "", "Directory of extra *.gate tables for the gates experiment")
	verbose := flag.Bool("verbose", false, "Log per-epoch training progress")
	markdown := flag.Bool("markdown", false, "Print a markdown summary table to stdout")

	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	cfg.ApplyOverrides(config.Overrides{
		Experiment: *experiment,
		Gate:       *gate,
		Runs:       *runs,
		Seed:       *seed,
		Workers:    *workers,
		LogEvery:   *logEvery,
		Output:     *output,
		DataDir:    *dataDir,
		Verbose:    *verbose,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	runCfg, err := cfg.RunConfig()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if runCfg.Workers == 0 {
		runCfg.Workers = trainer.DefaultWorkers()
	}
	log.Printf("experiment=%s gate=%s runs=%d seed=%d workers=%d cpu=%q",
		runCfg.Experiment, runCfg.Gate, runCfg.Runs, runCfg.Seed, runCfg.Workers, cpuid.CPU.BrandName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := trainer.Run(ctx, runCfg)
	if err != nil {
		log.Fatalf("experiment failed: %v", err)
	}
	log.Printf("run_id=%s groups=%d elapsed=%s", report.RunID, len(report.Groups), report.FinishedAt.Sub(report.StartedAt))

	if cfg.Output != "" {
		if err := trainer.WriteReport(cfg.Output, report); err != nil {
			log.Fatalf("write report: %v", err)
		}
		log.Printf("report=%s", cfg.Output)
	}
	if *markdown {
		if err := trainer.WriteMarkdown(os.Stdout, report); err != nil {
			log.Fatalf("write markdown: %v", err)
		}
	}
}
