// Command optimize calibrates adaptive time stepping for a scene. It searches
// the safety factor and error threshold with CMA-ES, scoring each setting by
// how far test molecules end up from a fine fixed-step reference and by how
// many sub-steps they needed.
//
// Usage: go run ./cmd/optimize -config scene.yaml -output calibration/
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/pogona/config"
	"github.com/pthm-cable/pogona/telemetry"
)

// trial is one evaluated stepper setting, as logged to calibration.csv.
type trial struct {
	Eval            int     `csv:"eval"`
	SafetyFactor    float64 `csv:"safety_factor"`
	ErrorThreshold  float64 `csv:"error_threshold"`
	RelativeError   float64 `csv:"relative_error"`
	SubStepsPerMove float64 `csv:"sub_steps_per_move"`
	Fitness         float64 `csv:"fitness"`
}

func (t trial) attrs() []any {
	return []any{
		"eval", t.Eval,
		"safety_factor", t.SafetyFactor,
		"error_threshold", t.ErrorThreshold,
		"relative_error", t.RelativeError,
		"sub_steps_per_move", t.SubStepsPerMove,
		"fitness", t.Fitness,
	}
}

// calibration evaluates settings in search order and remembers the best.
type calibration struct {
	params    *ParamVector
	evaluator *FitnessEvaluator
	log       *telemetry.CSVLog
	report    *slog.Logger

	trials int
	best   trial
}

// evaluate scores raw parameter values, logs the trial and returns it.
func (c *calibration) evaluate(raw []float64) trial {
	v := c.params.Clamp(raw)
	fitness := c.evaluator.Evaluate(v)
	c.trials++

	t := trial{
		Eval:            c.trials,
		SafetyFactor:    v[0],
		ErrorThreshold:  math.Pow(10, v[1]),
		RelativeError:   c.evaluator.LastError(),
		SubStepsPerMove: c.evaluator.LastCost(),
		Fitness:         fitness,
	}
	if math.IsInf(fitness, 1) {
		t.RelativeError, t.SubStepsPerMove = math.NaN(), math.NaN()
	}
	if err := c.log.Append([]trial{t}); err != nil {
		c.report.Warn("calibration log write failed", "error", err)
	}
	if c.trials == 1 || t.Fitness < c.best.Fitness {
		c.best = t
	}
	c.report.Debug("trial", t.attrs()...)
	return t
}

func main() {
	configPath := flag.String("config", "", "Scene config YAML file with at least one object")
	probes := flag.Int("probes", 64, "Number of test molecules")
	subdivision := flag.Int("subdivision", 16, "Reference run steps per base time step")
	costWeight := flag.Float64("cost-weight", 0.01, "Fitness weight of sub-steps per move")
	maxEvals := flag.Int("max-evals", 100, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = gonum default)")
	outputDir := flag.String("output", "", "Output directory for calibration.csv and best_config.yaml")
	verbose := flag.Bool("v", false, "Report every trial")
	flag.Parse()

	// Every evaluation builds and runs a kernel; keep their start and stop
	// lines off the console.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	report := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := run(*configPath, *outputDir, *probes, *subdivision, *maxEvals, *population, *costWeight, report); err != nil {
		report.Error("calibration failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, outputDir string, probes, subdivision, maxEvals, population int, costWeight float64, report *slog.Logger) error {
	if configPath == "" || outputDir == "" {
		return errors.New("-config and -output are required")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	params := NewParamVector()
	evaluator, err := NewFitnessEvaluator(params, cfg, probes, subdivision, costWeight)
	if err != nil {
		return fmt.Errorf("setting up evaluation: %w", err)
	}
	log, err := telemetry.NewCSVLog(filepath.Join(outputDir, "calibration.csv"))
	if err != nil {
		return err
	}
	defer log.Close()

	c := &calibration{params: params, evaluator: evaluator, log: log, report: report}
	started := time.Now()

	initial := params.ExtractFromConfig(cfg)
	baseline := c.evaluate(initial)
	report.Info("scene setting scored",
		append(baseline.attrs(), "test_molecules", evaluator.Probes(), "reference_subdivision", subdivision)...)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return c.evaluate(params.Denormalize(x)).Fitness
		},
	}
	method := &optimize.CmaEsChol{InitStepSize: 0.3, Population: population}
	if _, err := optimize.Minimize(problem, params.Normalize(initial), &optimize.Settings{FuncEvaluations: maxEvals}, method); err != nil {
		report.Warn("search stopped early", "error", err)
	}

	best := c.best
	report.Info("calibrated",
		append(best.attrs(),
			"evaluations", c.trials,
			"elapsed", time.Since(started).Round(time.Second),
			"error_vs_scene", ratio(best.RelativeError, baseline.RelativeError),
			"sub_steps_vs_scene", ratio(best.SubStepsPerMove, baseline.SubStepsPerMove),
		)...)

	params.ApplyToConfig(cfg, []float64{best.SafetyFactor, math.Log10(best.ErrorThreshold)})
	path := filepath.Join(outputDir, "best_config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		return err
	}
	report.Info("best config written", "path", path)
	return nil
}

// ratio is a/b, or NaN when b does not allow a comparison.
func ratio(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}
