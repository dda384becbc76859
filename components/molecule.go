package components

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// NoObject marks a molecule that is not carried by any flow field.
const NoObject = -1

// NoCell marks a molecule whose closest cell is not known.
const NoCell = -1

// Molecule is a point particle advected by the flow of the object it is in.
type Molecule struct {
	Position r3.Vec // global position
	Velocity r3.Vec // own velocity, added on top of the flow

	ID       int // assigned when the molecule enters the world
	ObjectID int // object whose flow field moves this molecule
	CellID   int // closest cell of ObjectID, refreshed after every move

	// DeltaTimeOpt is the step size the adaptive controller suggests next.
	DeltaTimeOpt float64
}

// NewMolecule returns a molecule that has not been placed in the world yet.
func NewMolecule(pos, vel r3.Vec, objectID int) Molecule {
	return Molecule{
		Position:     pos,
		Velocity:     vel,
		ID:           -1,
		ObjectID:     objectID,
		CellID:       NoCell,
		DeltaTimeOpt: math.Inf(1),
	}
}
