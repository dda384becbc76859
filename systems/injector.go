package systems

import (
	"fmt"
	"log/slog"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/geom"
)

// MoleculeSource is something a modulation can switch on and off.
type MoleculeSource interface {
	Name() string
	TurnOn()
	TurnOff()
	// InjectBurst makes the source spawn once in the next SPAWNING stage.
	InjectBurst()
}

// Injector spawns molecules at random points of its zone.
type Injector struct {
	name   string
	zone   geom.Zone
	object *Object // nil spawns molecules outside any flow field
	amount int
	rng    *rand.Rand

	turnedOn bool
	burstOn  bool
}

// NewInjector creates an injector that is turned off.
func NewInjector(name string, zone geom.Zone, object *Object, amount int, rng *rand.Rand) (*Injector, error) {
	switch zone.Shape {
	case geom.ShapePoint, geom.ShapeCube, geom.ShapeCylinder, geom.ShapeSphere:
	default:
		return nil, fmt.Errorf("injector %s: cannot spawn in shape %s", name, zone.Shape)
	}
	return &Injector{name: name, zone: zone, object: object, amount: amount, rng: rng}, nil
}

func (inj *Injector) Name() string { return inj.name }

func (inj *Injector) TurnOn()      { inj.turnedOn = true }
func (inj *Injector) TurnOff()     { inj.turnedOn = false }
func (inj *Injector) InjectBurst() { inj.burstOn = true }

func (inj *Injector) IsOn() bool { return inj.turnedOn }

func (inj *Injector) Process(env Env, stage Stage) error {
	if stage != StageSpawning || !(inj.turnedOn || inj.burstOn) {
		return nil
	}
	inj.burstOn = false

	local, err := inj.zone.Shape.RandomPoints(inj.amount, inj.rng)
	if err != nil {
		return fmt.Errorf("injector %s: %w", inj.name, err)
	}
	objectID := components.NoObject
	if inj.object != nil {
		objectID = inj.object.ID()
	}
	for _, p := range inj.zone.Transformation.ApplyToPoints(local) {
		spawn(env, components.NewMolecule(p, r3.Vec{}, objectID))
	}
	slog.Debug("molecules injected", "injector", inj.name, "count", inj.amount, "sim_time", env.SimTime())
	return nil
}

func (inj *Injector) Finalize() error { return nil }

// spawn queues a molecule with its closest cell already known.
func spawn(env Env, mol components.Molecule) {
	mol.CellID = env.Scene().ClosestCellID(mol.ObjectID, mol.Position)
	env.Molecules().AddMolecule(mol)
}
