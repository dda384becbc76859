// Package kernel runs the simulation loop: it moves every molecule through
// the flow of the object it is in, dispatches sensors around each move and
// notifies scene components after every base time step.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/integrate"
	"github.com/pthm-cable/pogona/systems"
	"github.com/pthm-cable/pogona/telemetry"
)

// Options configures a Kernel.
type Options struct {
	SimTimeLimit  float64 // seconds
	BaseDeltaTime float64 // seconds per base time step
	Seed          int64
	ResultsDir    string

	Integration integrate.Integration
	// Adaptive enables error-controlled sub-stepping. BaseDeltaTime
	// overrides the value in the config. Nil moves every molecule by one
	// fixed step of BaseDeltaTime.
	Adaptive *integrate.AdaptiveConfig

	// Workers > 1 advances molecules on a pool of that many goroutines.
	Workers int

	StatsWindow   float64 // simulation seconds per telemetry window
	PerfWindow    int     // steps averaged by the perf collector
	LogStats      bool
	WriteSnapshot bool

	Output        *telemetry.OutputManager // nil disables CSV telemetry
	StatsCallback func(telemetry.WindowStats)
}

// moveResult is what advancing one molecule produced.
type moveResult struct {
	subSteps     int
	corrections  int
	exhausted    bool
	displacement float64
}

// Kernel owns the molecules and the scene and advances them in base time
// steps. It implements systems.Env for the components it notifies.
type Kernel struct {
	opts Options
	rng  *rand.Rand

	molecules  *systems.MoleculeManager
	scene      *systems.SceneManager
	sensors    *systems.SensorManager
	components []systems.Component

	predictor  *integrate.Predictor
	controller *integrate.Controller

	elapsed int
	simTime float64

	collector *telemetry.Collector
	perf      *telemetry.PerfCollector

	parallel *parallelState

	// Per-step scratch, indexed like batch.
	batch   []*components.Molecule
	results []moveResult
	dtOpts  []float64
}

// New creates a kernel for scene. Components are added with AddComponent
// before Run.
func New(opts Options, scene *systems.SceneManager, sensors *systems.SensorManager) (*Kernel, error) {
	if !(opts.BaseDeltaTime > 0) || math.IsInf(opts.BaseDeltaTime, 0) {
		return nil, fmt.Errorf("kernel: base delta time must be positive and finite, got %v", opts.BaseDeltaTime)
	}
	if scene == nil {
		return nil, errors.New("kernel: no scene")
	}
	if sensors == nil {
		sensors = systems.NewSensorManager(systems.SensorManagerOptions{})
	}

	pred, err := integrate.NewPredictor(opts.Integration, scene)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}

	k := &Kernel{
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		molecules: systems.NewMoleculeManager(),
		scene:     scene,
		sensors:   sensors,
		predictor: pred,
		collector: telemetry.NewCollector(opts.StatsWindow, opts.BaseDeltaTime),
		perf:      telemetry.NewPerfCollector(opts.PerfWindow),
	}

	if opts.Adaptive != nil {
		cfg := *opts.Adaptive
		cfg.BaseDeltaTime = opts.BaseDeltaTime
		ctrl, err := integrate.NewController(pred, cfg)
		if err != nil {
			return nil, fmt.Errorf("kernel: %w", err)
		}
		k.controller = ctrl
	}

	if opts.Workers > 1 {
		k.parallel = newParallelState(opts.Workers)
	}
	return k, nil
}

func (k *Kernel) SimTime() float64                        { return k.simTime }
func (k *Kernel) ElapsedSteps() int                       { return k.elapsed }
func (k *Kernel) BaseDeltaTime() float64                  { return k.opts.BaseDeltaTime }
func (k *Kernel) ResultsDir() string                      { return k.opts.ResultsDir }
func (k *Kernel) Molecules() *systems.MoleculeManager     { return k.molecules }
func (k *Kernel) Scene() *systems.SceneManager            { return k.scene }
func (k *Kernel) Sensors() *systems.SensorManager         { return k.sensors }
func (k *Kernel) Components() []systems.Component         { return k.components }
func (k *Kernel) Collector() *telemetry.Collector         { return k.collector }
func (k *Kernel) Predictor() *integrate.Predictor         { return k.predictor }
func (k *Kernel) Controller() *integrate.Controller       { return k.controller }
func (k *Kernel) Options() Options                        { return k.opts }
func (k *Kernel) PerfCollector() *telemetry.PerfCollector { return k.perf }

// RNG returns the shared generator components fall back to.
func (k *Kernel) RNG() *rand.Rand { return k.rng }

// AddComponent appends c to the notification order.
func (k *Kernel) AddComponent(c systems.Component) {
	k.components = append(k.components, c)
}

// Run notifies the components once at time zero, then steps until the
// simulation time reaches the limit or ctx is cancelled. Components are
// finalized on every exit path.
func (k *Kernel) Run(ctx context.Context) (err error) {
	defer k.stopWorkers()
	defer func() {
		if ferr := k.finalize(); ferr != nil && err == nil {
			err = ferr
		}
	}()

	k.sensors.BuildSubscriptions(k.scene)

	slog.Info("simulation started",
		"sim_time_limit", k.opts.SimTimeLimit,
		"base_delta_time", k.opts.BaseDeltaTime,
		"integration", k.predictor.Method(),
		"adaptive", k.controller != nil,
		"objects", len(k.scene.Objects()),
		"components", len(k.components),
		"workers", max(k.opts.Workers, 1),
	)

	if err := k.notify(); err != nil {
		return err
	}
	for k.simTime < k.opts.SimTimeLimit {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := k.Step(); err != nil {
			return err
		}
	}

	slog.Info("simulation finished",
		"sim_time", k.simTime,
		"steps", k.elapsed,
		"molecules", k.molecules.Count(),
	)
	k.saveSnapshot()
	return nil
}

// Step advances every molecule by one base time step, applies the buffered
// insertions and removals and notifies the components of the new time.
//
// Sensors see all before-move events of a step, then all after-move events,
// instead of both events per molecule in turn. This assumes a sensor keeps
// no state linking one molecule's events to another's within a step; the
// shipped sensors only count, buffer destroys or touch the molecule itself.
func (k *Kernel) Step() error {
	k.perf.StartStep()
	k.batch = k.molecules.Collect(k.batch[:0])

	k.perf.StartPhase(telemetry.PhaseBeforeMove)
	for _, mol := range k.batch {
		if err := k.sensors.BeforeMove(k, mol); err != nil {
			return fmt.Errorf("step %d: %w", k.elapsed, err)
		}
	}

	k.perf.StartPhase(telemetry.PhaseAdvance)
	if err := k.advanceAll(); err != nil {
		return fmt.Errorf("step %d: %w", k.elapsed, err)
	}

	k.perf.StartPhase(telemetry.PhaseAfterMove)
	for i, mol := range k.batch {
		r := &k.results[i]
		k.collector.RecordMove(r.subSteps, r.corrections, r.exhausted, r.displacement)
		if err := k.sensors.AfterMove(k, mol); err != nil {
			return fmt.Errorf("step %d: %w", k.elapsed, err)
		}
	}

	k.perf.StartPhase(telemetry.PhaseApplyChanges)
	added, destroyed := k.molecules.ApplyChanges()
	k.collector.RecordSpawned(added)
	k.collector.RecordDestroyed(destroyed)
	for n := k.scene.TakeTeleports(); n > 0; n-- {
		k.collector.RecordTeleport()
	}
	k.elapsed++
	k.simTime = float64(k.elapsed) * k.opts.BaseDeltaTime

	k.perf.StartPhase(telemetry.PhaseNotify)
	if err := k.notify(); err != nil {
		return err
	}

	k.perf.StartPhase(telemetry.PhaseTelemetry)
	k.flushTelemetry()

	k.perf.EndStep()
	return nil
}

// notify runs every stage over all components in insertion order.
func (k *Kernel) notify() error {
	for _, stage := range systems.Stages {
		for _, c := range k.components {
			if err := c.Process(k, stage); err != nil {
				return fmt.Errorf("%s at %s, t=%g: %w", c.Name(), stage, k.simTime, err)
			}
		}
	}
	return nil
}

// advanceAll moves every molecule in batch, on the worker pool when the
// batch is large enough.
func (k *Kernel) advanceAll() error {
	n := len(k.batch)
	if cap(k.results) < n {
		k.results = make([]moveResult, n)
	}
	k.results = k.results[:n]

	if k.parallel == nil || n < parallelThreshold {
		return k.advanceChunk(0, n)
	}
	return k.advanceParallel(n)
}

// advanceChunk moves batch[i0:i1]. It only touches those molecules and
// their results, so disjoint chunks may run concurrently.
func (k *Kernel) advanceChunk(i0, i1 int) error {
	for i := i0; i < i1; i++ {
		if err := k.advance(k.batch[i], &k.results[i]); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kernel) advance(mol *components.Molecule, r *moveResult) error {
	start := mol.Position
	*r = moveResult{}

	if k.controller != nil {
		report, err := k.controller.Advance(mol, k.simTime)
		if err != nil {
			return err
		}
		r.subSteps = report.SubSteps
		r.corrections = report.Corrections
		r.exhausted = report.Exhausted
	} else {
		if _, err := k.predictor.PredictAndCommit(mol, k.simTime, k.opts.BaseDeltaTime); err != nil {
			return err
		}
		r.subSteps = 1
	}

	r.displacement = r3.Norm(r3.Sub(mol.Position, start))
	return nil
}

// finalize lets every component close its files. All components are
// finalized even if some fail.
func (k *Kernel) finalize() error {
	var errs []error
	for _, c := range k.components {
		if err := c.Finalize(); err != nil {
			errs = append(errs, fmt.Errorf("finalize %s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close stops the worker pool. Run does this itself; Close is for callers
// driving the kernel with Step.
func (k *Kernel) Close() {
	k.stopWorkers()
}
