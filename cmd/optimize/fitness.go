package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/config"
	"github.com/pthm-cable/pogona/integrate"
	"github.com/pthm-cable/pogona/kernel"
	"github.com/pthm-cable/pogona/telemetry"
)

// probe is a test molecule's start in a given object.
type probe struct {
	objectID int
	pos      r3.Vec
}

// FitnessEvaluator runs the scene's objects with probe molecules and
// compares adaptive runs against a fine fixed-step reference.
type FitnessEvaluator struct {
	params     *ParamVector
	baseConfig *config.Config
	costWeight float64

	probes    []probe
	reference []r3.Vec
	scale     float64 // mean reference displacement, normalises errors

	mu        sync.Mutex
	lastError float64
	lastCost  float64
}

// NewFitnessEvaluator picks up to nProbes cell centres of the scene's
// objects as probe starts and computes the reference with RK4 at
// base_delta_time/subdivision.
func NewFitnessEvaluator(params *ParamVector, baseCfg *config.Config, nProbes, subdivision int, costWeight float64) (*FitnessEvaluator, error) {
	if nProbes < 1 || subdivision < 1 {
		return nil, errors.New("probes and subdivision must be positive")
	}
	fe := &FitnessEvaluator{
		params:     params,
		baseConfig: objectsOnly(baseCfg),
		costWeight: costWeight,
	}

	k, err := kernel.Build(fe.baseConfig, kernel.OptionsFromConfig(fe.baseConfig))
	if err != nil {
		return nil, err
	}
	for _, obj := range k.Scene().Objects() {
		if obj.Field() == nil {
			continue
		}
		centres := obj.Field().CellCentresGlobal()
		stride := max(len(centres)*len(k.Scene().Objects())/nProbes, 1)
		for i := 0; i < len(centres) && len(fe.probes) < nProbes; i += stride {
			if obj.Field().IsAtBoundary(i) {
				continue
			}
			fe.probes = append(fe.probes, probe{objectID: obj.ID(), pos: centres[i]})
		}
	}
	if len(fe.probes) == 0 {
		return nil, errors.New("config has no object cells to place probes in")
	}

	opts := kernel.OptionsFromConfig(fe.baseConfig)
	opts.Adaptive = nil
	opts.Integration = integrate.RungeKutta4
	opts.BaseDeltaTime /= float64(subdivision)
	reference, _, err := fe.runSimulation(fe.baseConfig, opts)
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}
	fe.reference = reference

	for i, p := range fe.probes {
		fe.scale += r3.Norm(r3.Sub(reference[i], p.pos))
	}
	fe.scale /= float64(len(fe.probes))
	if fe.scale == 0 {
		return nil, errors.New("probes do not move in the reference run")
	}
	return fe, nil
}

// Probes returns the number of probe molecules.
func (fe *FitnessEvaluator) Probes() int { return len(fe.probes) }

// LastError returns the normalised position error of the most recent evaluation.
func (fe *FitnessEvaluator) LastError() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastError
}

// LastCost returns the sub-steps per move of the most recent evaluation.
func (fe *FitnessEvaluator) LastCost() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastCost
}

// Evaluate computes fitness for a parameter vector (lower = better): the
// mean probe error relative to the mean displacement plus costWeight times
// the sub-steps needed per base step.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	positions, cost, err := fe.runSimulation(cfg, kernel.OptionsFromConfig(cfg))
	if err != nil {
		return math.Inf(1)
	}

	var errSum float64
	for i, pos := range positions {
		errSum += r3.Norm(r3.Sub(pos, fe.reference[i]))
	}
	relErr := errSum / float64(len(positions)) / fe.scale

	fe.mu.Lock()
	fe.lastError = relErr
	fe.lastCost = cost
	fe.mu.Unlock()

	return relErr + fe.costWeight*cost
}

// runSimulation moves the probes until the configured time limit and
// returns their final positions and the mean sub-steps per move.
func (fe *FitnessEvaluator) runSimulation(cfg *config.Config, opts kernel.Options) ([]r3.Vec, float64, error) {
	var moves, subSteps int
	opts.StatsCallback = func(s telemetry.WindowStats) {
		moves += s.Moves
		subSteps += s.SubSteps
	}
	// Flush every step so no partial window is lost at the end.
	opts.StatsWindow = opts.BaseDeltaTime

	k, err := kernel.Build(cfg, opts)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range fe.probes {
		k.Molecules().AddMolecule(components.NewMolecule(p.pos, r3.Vec{}, p.objectID))
	}
	k.Molecules().ApplyChanges()

	if err := k.Run(context.Background()); err != nil {
		return nil, 0, err
	}

	positions := make([]r3.Vec, len(fe.probes))
	for i := range fe.probes {
		mol := k.Molecules().Get(i)
		if mol == nil {
			return nil, 0, fmt.Errorf("probe %d left the scene", i)
		}
		positions[i] = mol.Position
	}

	var cost float64
	if moves > 0 {
		cost = float64(subSteps) / float64(moves)
	}
	return positions, cost, nil
}

// copyConfig returns a copy of the base config the evaluation may modify.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// objectsOnly strips every component but the objects so probes are the
// only molecules in the scene.
func objectsOnly(cfg *config.Config) *config.Config {
	out := *cfg
	out.Components = cfg.Components.OfType(config.TypeObject)
	return &out
}
