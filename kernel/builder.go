package kernel

import (
	"fmt"
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/config"
	"github.com/pthm-cable/pogona/flow"
	"github.com/pthm-cable/pogona/geom"
	"github.com/pthm-cable/pogona/integrate"
	"github.com/pthm-cable/pogona/systems"
)

// buildOrder lists component types so that every component is built after
// the components it is attached to. Notification order is the file order
// regardless.
var buildOrder = []string{
	config.TypeObject,
	config.TypePump,
	config.TypePumpPeristaltic,
	config.TypeSensorDestructing,
	config.TypeSensorCounting,
	config.TypeInjector,
	config.TypeSprayNozzle,
	config.TypeSensorTeleporting,
	config.TypeSensorFlowRate,
	config.TypeModulationOOK,
	config.TypeModulationPPM,
	config.TypeBitstreamGenerator,
	config.TypePlotterCSV,
}

// OptionsFromConfig returns the kernel options set in cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	k := cfg.Kernel
	opts := Options{
		SimTimeLimit:  k.SimTimeLimit,
		BaseDeltaTime: k.BaseDeltaTime,
		Seed:          k.Seed,
		ResultsDir:    k.ResultsDir,
		Integration:   cfg.Derived.Integration,
		Workers:       k.Workers,
		StatsWindow:   cfg.Telemetry.StatsWindow,
		PerfWindow:    cfg.Telemetry.PerfCollectorWindow,
		WriteSnapshot: cfg.Telemetry.WriteSnapshot,
	}
	if k.UseAdaptiveTimeStepping {
		opts.Adaptive = &integrate.AdaptiveConfig{
			BaseDeltaTime:     k.BaseDeltaTime,
			MaxErrorThreshold: k.AdaptiveTimeMaxErrorThreshold,
			SafetyFactor:      k.AdaptiveTimeSafetyFactor,
			CorrectionsLimit:  k.AdaptiveTimeCorrectionsLimit,
		}
	}
	return opts
}

// builder resolves the references between configured components.
type builder struct {
	cfg      *config.Config
	k        *Kernel
	registry *systems.ComponentRegistry

	sources     map[string]systems.MoleculeSource
	pumps       map[string]*systems.Pump
	destructors map[string]*systems.DestructingSensor
	modulations map[string]systems.Modulation
	built       map[string]any
}

// Build creates a kernel with the scene and components described by cfg.
func Build(cfg *config.Config, opts Options) (*Kernel, error) {
	scene := systems.NewSceneManager(cfg.Derived.Interpolation)
	sensors := systems.NewSensorManager(systems.SensorManagerOptions{
		DefaultUseSubscriptions: cfg.SensorManager.DefaultUseSensorSubscriptions,
		UseRangeQueries:         cfg.SensorManager.UseRangeQueries,
	})
	k, err := New(opts, scene, sensors)
	if err != nil {
		return nil, err
	}

	b := &builder{
		cfg:         cfg,
		k:           k,
		registry:    systems.NewComponentRegistry(),
		sources:     make(map[string]systems.MoleculeSource),
		pumps:       make(map[string]*systems.Pump),
		destructors: make(map[string]*systems.DestructingSensor),
		modulations: make(map[string]systems.Modulation),
		built:       make(map[string]any),
	}
	for _, typ := range buildOrder {
		for _, c := range cfg.Components.OfType(typ) {
			if err := b.build(c); err != nil {
				return nil, fmt.Errorf("component %s: %w", c.Name, err)
			}
			slog.Info("component built", "name", c.Name, "type", b.registry.GetName(typ))
		}
	}

	for _, c := range cfg.Components {
		if comp, ok := b.built[c.Name].(systems.Component); ok {
			k.AddComponent(comp)
		}
	}
	return k, nil
}

func (b *builder) build(c config.Component) error {
	scene := b.k.Scene()
	sensors := b.k.Sensors()

	switch s := c.Spec.(type) {
	case *config.ObjectSpec:
		obj, err := b.buildObject(s)
		if err != nil {
			return err
		}
		if _, err := scene.AddObject(obj); err != nil {
			return err
		}
		b.built[c.Name] = obj

	case *config.PumpSpec:
		p, err := systems.NewPump(c.Name, s.FlowRate, s.InjectionDuration, s.InjectionVolume)
		if err != nil {
			return err
		}
		b.pumps[c.Name] = p
		b.built[c.Name] = p

	case *config.PumpPeristalticSpec:
		p, err := systems.NewPeristalticPump(c.Name, s.FlowRate, s.InjectionVolume, s.RampDownSteps, s.RampDownTime)
		if err != nil {
			return err
		}
		b.pumps[c.Name] = p
		b.built[c.Name] = p

	case *config.SensorDestructingSpec:
		zone, err := zoneOf(s.Shape, s.Placement)
		if err != nil {
			return err
		}
		d := systems.NewDestructingSensor(c.Name, zone, s.TurnedOn)
		sensors.Register(d)
		b.destructors[c.Name] = d
		b.built[c.Name] = d

	case *config.SensorCountingSpec:
		zone, err := zoneOf(s.Shape, s.Placement)
		if err != nil {
			return err
		}
		cs := systems.NewCountingSensor(c.Name, zone, s.LogFolder)
		sensors.Register(cs)
		b.built[c.Name] = cs

	case *config.InjectorSpec:
		zone, err := zoneOf(s.Shape, s.Placement)
		if err != nil {
			return err
		}
		obj, err := b.object(s.AttachedObject)
		if err != nil {
			return err
		}
		seed, err := geom.ParseSeed(s.Seed)
		if err != nil {
			return err
		}
		inj, err := systems.NewInjector(c.Name, zone, obj, s.InjectionAmount, seed.Resolve(b.k.RNG()))
		if err != nil {
			return err
		}
		b.sources[c.Name] = inj
		b.built[c.Name] = inj

	case *config.SprayNozzleSpec:
		placement := s.Placement
		placement.Scale = [3]float64{1, 1, 1}
		tr, err := transformationOf(placement)
		if err != nil {
			return err
		}
		obj, err := b.object(s.AttachedObject)
		if err != nil {
			return err
		}
		seed, err := geom.ParseSeed(s.Seed)
		if err != nil {
			return err
		}
		n := systems.NewSprayNozzle(systems.SprayNozzleOptions{
			Name:              c.Name,
			Transformation:    tr,
			Object:            obj,
			Amount:            s.InjectionAmount,
			Velocity:          s.Velocity,
			VelocitySigma:     s.VelocitySigma,
			DistributionSigma: s.DistributionSigma,
		}, seed.Resolve(b.k.RNG()))
		b.sources[c.Name] = n
		b.built[c.Name] = n

	case *config.SensorTeleportingSpec:
		tp, err := systems.NewTeleportingSensor(c.Name, systems.TeleportLink{
			Source: s.SourceObject,
			Outlet: s.SourceOutletName,
			Target: s.TargetObject,
			Inlet:  s.TargetInletName,
		}, scene)
		if err != nil {
			return err
		}
		sensors.Register(tp)
		b.built[c.Name] = tp

	case *config.SensorFlowRateSpec:
		zone, err := zoneOf(s.Shape, s.Placement)
		if err != nil {
			return err
		}
		obj, err := b.object(s.AttachedObject)
		if err != nil {
			return err
		}
		seed, err := geom.ParseSeed(s.Seed)
		if err != nil {
			return err
		}
		custom := make([]r3.Vec, len(s.CustomSamplePointsGlobal))
		for i, p := range s.CustomSamplePointsGlobal {
			custom[i] = vec(p)
		}
		points, err := systems.FlowSamplePoints(zone, s.NumSamplePoints, custom, seed.Resolve(b.k.RNG()))
		if err != nil {
			return err
		}
		fs, err := systems.NewFlowRateSensor(c.Name, obj, points, s.LogFolder)
		if err != nil {
			return err
		}
		b.built[c.Name] = fs

	case *config.ModulationOOKSpec:
		m, err := systems.NewModulationOOK(b.ookOptions(c.Name, s))
		if err != nil {
			return err
		}
		b.modulations[c.Name] = m
		b.built[c.Name] = m

	case *config.ModulationPPMSpec:
		m, err := systems.NewModulationPPM(b.ookOptions(c.Name, &s.ModulationOOKSpec), s.ChipsPerSymbol)
		if err != nil {
			return err
		}
		b.modulations[c.Name] = m
		b.built[c.Name] = m

	case *config.BitstreamGeneratorSpec:
		m, ok := b.modulations[s.AttachedModulation]
		if !ok {
			return fmt.Errorf("modulation %q not built", s.AttachedModulation)
		}
		g, err := systems.NewBitstreamGenerator(c.Name, s.StartTime, s.Repetitions, s.BitSequence, s.ASCIISequence, m)
		if err != nil {
			return err
		}
		b.built[c.Name] = g

	case *config.PlotterCSVSpec:
		p, err := systems.NewPositionPlotter(c.Name, s.WriteInterval, s.Folder)
		if err != nil {
			return err
		}
		b.built[c.Name] = p

	default:
		return fmt.Errorf("unsupported component type %s", c.Type())
	}
	return nil
}

func (b *builder) buildObject(s *config.ObjectSpec) (*systems.Object, error) {
	tr, err := transformationOf(s.Placement)
	if err != nil {
		return nil, err
	}
	subs, err := systems.ParseSubscriptionUsage(s.UseSensorSubscriptions)
	if err != nil {
		return nil, err
	}

	outlets := make([]systems.Outlet, 0, len(s.Outlets)+1)
	for _, o := range s.Outlets {
		zone, err := zoneOf(o.Shape, o.Placement)
		if err != nil {
			return nil, fmt.Errorf("outlet %s: %w", o.Name, err)
		}
		outlets = append(outlets, systems.Outlet{Name: o.Name, Zone: zone})
	}

	opts := systems.ObjectOptions{
		Name:              s.Name,
		Transformation:    tr,
		FlowRate:          s.FlowRate,
		ReferenceFlowRate: s.ReferenceFlowRate,
		Inlets:            s.Inlets,
		Outlets:           outlets,
		Subscriptions:     subs,
	}
	switch {
	case s.AnalyticalTube != nil:
		err = tubeObject(&opts, s.AnalyticalTube)
	case s.Mesh != "":
		opts.Field, err = flow.LoadCache(b.cfg.ResolvePath(s.Mesh))
	default:
		opts.Field, err = syntheticField(s.Synthetic)
	}
	if err != nil {
		return nil, err
	}

	obj, err := systems.NewObject(opts)
	if err != nil {
		return nil, err
	}
	slog.Debug("object loaded", "name", s.Name, "cells", obj.Sampler().Len(), "active", obj.IsActive())
	return obj, nil
}

// tubeObject sets opts up for Poiseuille flow. The tube always has an inlet
// named "inlet" and, unless one is configured, an outlet named "outlet" at
// its end.
func tubeObject(opts *systems.ObjectOptions, s *config.TubeSpec) error {
	tube, err := flow.NewTube(s.Radius, s.Length, opts.Transformation)
	if err != nil {
		return err
	}
	opts.Sampler = tube
	opts.ReferenceFlowRate = flow.TubeReferenceFlowRate

	if !slices.Contains(opts.Inlets, "inlet") {
		opts.Inlets = append(slices.Clone(opts.Inlets), "inlet")
	}
	if slices.ContainsFunc(opts.Outlets, func(o systems.Outlet) bool { return o.Name == "outlet" }) {
		return nil
	}
	depth := s.OutletDepth
	if depth <= 0 {
		depth = s.Length / 10
	}
	zone, err := tube.OutletZone(depth)
	if err != nil {
		return err
	}
	opts.Outlets = append(opts.Outlets, systems.Outlet{Name: "outlet", Zone: zone})
	return nil
}

func syntheticField(s *config.SyntheticSpec) (*flow.VectorField, error) {
	fn, err := flow.Generator{
		Kind:      s.Kind,
		Velocity:  vec(s.Velocity),
		Omega:     s.Omega,
		MaxSpeed:  s.MaxSpeed,
		HalfWidth: s.HalfWidth,
	}.Func()
	if err != nil {
		return nil, err
	}
	return flow.Box{
		Min: vec(s.Min),
		Max: vec(s.Max),
		NX:  s.Cells[0], NY: s.Cells[1], NZ: s.Cells[2],
	}.Build(fn)
}

// object returns the named object, or nil for an empty name.
func (b *builder) object(name string) (*systems.Object, error) {
	if name == "" {
		return nil, nil
	}
	return b.k.Scene().ObjectByName(name)
}

func (b *builder) ookOptions(name string, s *config.ModulationOOKSpec) systems.OOKOptions {
	return systems.OOKOptions{
		Name:              name,
		InjectionDuration: s.InjectionDuration,
		PauseDuration:     s.PauseDuration,
		Injector:          b.sources[s.AttachedInjector],
		Destructor:        b.destructors[s.AttachedDestructor],
		Pump:              b.pumps[s.AttachedPump],
		UseBurst:          s.UseBurst,
	}
}

func zoneOf(shape string, p config.Placement) (geom.Zone, error) {
	sh, err := geom.ParseShape(shape)
	if err != nil {
		return geom.Zone{}, err
	}
	tr, err := transformationOf(p)
	if err != nil {
		return geom.Zone{}, err
	}
	return geom.Zone{Shape: sh, Transformation: tr}, nil
}

// transformationOf converts a placement. Rotations are in radians.
func transformationOf(p config.Placement) (*geom.Transformation, error) {
	order, err := geom.ParseRotationOrder(p.RotationOrder)
	if err != nil {
		return nil, err
	}
	return geom.NewTransformation(vec(p.Translation), vec(p.Rotation), vec(p.Scale), order)
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }
