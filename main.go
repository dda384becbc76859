package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pthm-cable/pogona/config"
	"github.com/pthm-cable/pogona/kernel"
	"github.com/pthm-cable/pogona/systems"
	"github.com/pthm-cable/pogona/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	resultsDir := flag.String("results-dir", "", "Results directory for sensor logs, telemetry and config snapshot (empty = use config)")
	simTimeLimit := flag.Float64("sim-time-limit", 0, "Simulated seconds to run (0 = use config)")
	seed := flag.Int64("seed", 0, "Shared RNG seed (0 = use config, -1 = time-based)")
	workers := flag.Int("workers", 0, "Goroutines advancing molecules (0 = use config)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")
	logStats := flag.Bool("log-stats", false, "Output telemetry windows via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	restorePath := flag.String("restore", "", "Snapshot JSON to continue from (empty = start empty)")
	listComponents := flag.Bool("list-components", false, "List the component types and exit")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q\n", *logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *listComponents {
		printComponents(systems.NewComponentRegistry())
		return
	}

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Paths in the config file are relative to it, CLI paths to the
	// working directory.
	cfg.Kernel.ResultsDir = cfg.ResolvePath(cfg.Kernel.ResultsDir)

	// CLI overrides
	if *resultsDir != "" {
		cfg.Kernel.ResultsDir = *resultsDir
	}
	if *simTimeLimit > 0 {
		cfg.Kernel.SimTimeLimit = *simTimeLimit
	}
	switch {
	case *seed == -1:
		cfg.Kernel.Seed = time.Now().UnixNano()
	case *seed != 0:
		cfg.Kernel.Seed = *seed
	}
	if *workers > 0 {
		cfg.Kernel.Workers = *workers
	}
	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}

	if err := run(cfg, *logStats, *restorePath); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logStats bool, restorePath string) error {
	output, err := telemetry.NewOutputManager(cfg.Kernel.ResultsDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := output.Close(); err != nil {
			slog.Error("failed to close output", "error", err)
		}
	}()
	if err := output.WriteConfig(cfg); err != nil {
		return err
	}

	opts := kernel.OptionsFromConfig(cfg)
	opts.ResultsDir = cfg.Kernel.ResultsDir
	opts.Output = output
	opts.LogStats = logStats

	k, err := kernel.Build(cfg, opts)
	if err != nil {
		return err
	}
	if restorePath != "" {
		snap, err := telemetry.LoadSnapshot(restorePath)
		if err != nil {
			return err
		}
		k.Restore(snap)
		slog.Info("snapshot restored", "path", restorePath, "step", snap.Step, "molecules", len(snap.Molecules))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	if err := k.Run(ctx); err != nil {
		return err
	}
	slog.Info("run complete",
		"steps", k.ElapsedSteps(),
		"sim_time", k.SimTime(),
		"wall_time", time.Since(start).Round(time.Millisecond).String(),
		"results_dir", output.Dir(),
	)
	return nil
}

func printComponents(reg *systems.ComponentRegistry) {
	for _, category := range reg.Categories() {
		fmt.Printf("%s:\n", category)
		for _, info := range reg.ByCategory(category) {
			fmt.Printf("  %-20s %-22s %s\n", info.Type, info.Name, info.Description)
		}
	}
}
