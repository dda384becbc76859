package systems

import (
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/geom"
)

// SprayNozzleOptions configures NewSprayNozzle.
type SprayNozzleOptions struct {
	Name string
	// Transformation places the nozzle; it sprays along its local +y axis.
	// It should not scale.
	Transformation *geom.Transformation
	Object         *Object

	Amount            int
	Velocity          float64 // mean speed
	VelocitySigma     float64 // standard deviation of the speed
	DistributionSigma float64 // standard deviation of the spread angle, degrees
}

// SprayNozzle spawns molecules with their own velocity, spread around the
// nozzle axis and staggered along it across one base time step.
type SprayNozzle struct {
	opts SprayNozzleOptions
	tr   *geom.Transformation
	rng  *rand.Rand

	turnedOn bool
	burstOn  bool
}

func NewSprayNozzle(opts SprayNozzleOptions, rng *rand.Rand) *SprayNozzle {
	tr := opts.Transformation
	if tr == nil {
		tr = geom.Identity()
	}
	return &SprayNozzle{opts: opts, tr: tr, rng: rng}
}

func (n *SprayNozzle) Name() string { return n.opts.Name }

func (n *SprayNozzle) TurnOn()      { n.turnedOn = true }
func (n *SprayNozzle) TurnOff()     { n.turnedOn = false }
func (n *SprayNozzle) InjectBurst() { n.burstOn = true }

func (n *SprayNozzle) Process(env Env, stage Stage) error {
	if stage != StageSpawning || !(n.turnedOn || n.burstOn) {
		return nil
	}
	n.burstOn = false
	if n.opts.Amount <= 0 {
		return nil
	}

	objectID := components.NoObject
	if n.opts.Object != nil {
		objectID = n.opts.Object.ID()
	}
	origin := n.tr.ApplyToPoint(r3.Vec{})
	base := env.BaseDeltaTime()
	step := base / float64(n.opts.Amount)

	for i := 0; i < n.opts.Amount; i++ {
		delta := float64(i) * step
		speed := n.opts.VelocitySigma*n.rng.NormFloat64() + n.opts.Velocity
		azimuth := n.rng.Float64() * 2 * math.Pi
		spread := n.opts.DistributionSigma * n.rng.NormFloat64() * math.Pi / 180

		vel := n.tr.ApplyToDirection(r3.Vec{
			X: speed * math.Sin(spread) * math.Sin(azimuth),
			Y: speed * math.Cos(spread),
			Z: speed * math.Sin(spread) * math.Cos(azimuth),
		})
		spawn(env, components.NewMolecule(r3.Add(origin, r3.Scale(delta, vel)), vel, objectID))
	}
	slog.Debug("molecules sprayed", "nozzle", n.opts.Name, "count", n.opts.Amount, "sim_time", env.SimTime())
	return nil
}

func (n *SprayNozzle) Finalize() error { return nil }
