package integrate

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/components"
)

// Scene resolves the flow field of the object a molecule is in.
type Scene interface {
	// FlowAt returns the global flow of object objectID at a global position.
	FlowAt(objectID int, pos r3.Vec, t float64) (r3.Vec, error)
	// ClosestCellID returns the cell of objectID closest to pos, or
	// components.NoCell if the object has no cells to offer.
	ClosestCellID(objectID int, pos r3.Vec) int
}

// Predictor moves single molecules by one step of a fixed size.
type Predictor struct {
	method  Integration
	tableau *Tableau
	scene   Scene
}

// NewPredictor returns a predictor using method to sample flow from scene.
func NewPredictor(method Integration, scene Scene) (*Predictor, error) {
	p := &Predictor{method: method, scene: scene}
	switch method {
	case Euler, RungeKutta4:
	case RungeKuttaFehlberg, RungeKuttaFehlberg4, RungeKuttaFehlberg45:
		p.tableau = &Fehlberg45
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownIntegration, method)
	}
	return p, nil
}

// Method returns the integration method.
func (p *Predictor) Method() Integration { return p.method }

// Order returns the order of the embedded method, or 0 for fixed-step ones.
func (p *Predictor) Order() int {
	if p.tableau == nil {
		return 0
	}
	return p.tableau.Order
}

// Predict computes where mol would be after dt starting at time t, without
// touching the molecule. The error norm is 0 for methods without an
// estimate and for molecules outside any object. The molecule's own
// velocity is always added on top of the flow displacement.
func (p *Predictor) Predict(mol *components.Molecule, t, dt float64) (r3.Vec, float64, error) {
	pos := mol.Position
	var errNorm float64

	if mol.ObjectID != components.NoObject {
		objectID := mol.ObjectID
		f := func(t float64, y r3.Vec) (r3.Vec, error) {
			return p.scene.FlowAt(objectID, y, t)
		}

		var err error
		switch p.method {
		case Euler:
			pos, err = StepEuler(f, t, pos, dt)
		case RungeKutta4:
			pos, err = StepRK4(f, t, pos, dt)
		case RungeKuttaFehlberg, RungeKuttaFehlberg45, RungeKuttaFehlberg4:
			var high, low, diff r3.Vec
			high, low, diff, err = p.tableau.Compute(f, t, pos, dt)
			pos = high
			if p.method == RungeKuttaFehlberg4 {
				pos = low
			}
			errNorm = r3.Norm(diff)
		default:
			err = fmt.Errorf("%w: %v", ErrUnknownIntegration, p.method)
		}
		if err != nil {
			return r3.Vec{}, 0, fmt.Errorf("molecule %d: %w", mol.ID, err)
		}
	}

	pos = r3.Add(pos, r3.Scale(dt, mol.Velocity))
	return pos, errNorm, nil
}

// Commit moves mol to pos and refreshes its closest cell.
func (p *Predictor) Commit(mol *components.Molecule, pos r3.Vec) {
	mol.Position = pos
	if mol.ObjectID == components.NoObject {
		mol.CellID = components.NoCell
		return
	}
	mol.CellID = p.scene.ClosestCellID(mol.ObjectID, pos)
}

// PredictAndCommit moves mol by one step of dt and returns the error norm.
func (p *Predictor) PredictAndCommit(mol *components.Molecule, t, dt float64) (float64, error) {
	pos, errNorm, err := p.Predict(mol, t, dt)
	if err != nil {
		return 0, err
	}
	p.Commit(mol, pos)
	return errNorm, nil
}
