package systems

import (
	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/geom"
)

// DestructingSensor removes every molecule that ends a move inside its zone
// while it is turned on.
type DestructingSensor struct {
	name     string
	zone     geom.Zone
	turnedOn bool
}

func NewDestructingSensor(name string, zone geom.Zone, turnedOn bool) *DestructingSensor {
	return &DestructingSensor{name: name, zone: zone, turnedOn: turnedOn}
}

func (s *DestructingSensor) Name() string    { return s.name }
func (s *DestructingSensor) Zone() geom.Zone { return s.zone }

func (s *DestructingSensor) TurnOn()    { s.turnedOn = true }
func (s *DestructingSensor) TurnOff()   { s.turnedOn = false }
func (s *DestructingSensor) IsOn() bool { return s.turnedOn }

func (s *DestructingSensor) BeforeMove(env Env, mol *components.Molecule) error { return nil }

func (s *DestructingSensor) AfterMove(env Env, mol *components.Molecule) error {
	if s.turnedOn && s.zone.Contains(mol.Position) {
		env.Molecules().DestroyMolecule(mol.ID)
	}
	return nil
}
