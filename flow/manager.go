package flow

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/geom"
)

const (
	// exactMatchTolerance is the distance below which a query is treated as
	// sitting on a cell centre.
	exactMatchTolerance = 1e-10
	// shepardNeighbors is the neighbourhood size of modified Shepard.
	shepardNeighbors = 9
	// suspiciousSpeed flags decayed boundary flow above this speed in m/s.
	suspiciousSpeed = 2.0
)

// Sampler is a source of flow in scene coordinates. Cell ids index the
// sampler's own discretisation; samplers without cells report no centres,
// no ids and NoCell.
type Sampler interface {
	Sample(posGlobal r3.Vec, policy Interpolation) (r3.Vec, error)
	ClosestCellID(posGlobal r3.Vec) int
	CellIDsWithin(centre r3.Vec, radius float64) []int
	CellCentresGlobal() []r3.Vec
	Len() int
}

// NoCell is the cell id of positions a sampler has no cell for.
const NoCell = -1

var (
	_ Sampler = (*Manager)(nil)
	_ Sampler = (*Tube)(nil)
)

// Manager places a VectorField in the scene and samples it.
// The spatial index is built over global cell centres once at construction.
type Manager struct {
	field *VectorField
	tr    *geom.Transformation
	index *Index

	// centresGlobal is kept for the all-cells Shepard sum.
	centresGlobal []r3.Vec
}

// NewManager builds the global index for field under tr.
func NewManager(field *VectorField, tr *geom.Transformation) (*Manager, error) {
	global := tr.ApplyToPoints(field.centres)
	idx, err := NewIndex(global)
	if err != nil {
		return nil, err
	}
	if idx.Len() != field.Len() {
		return nil, fmt.Errorf("%w: %d indexed, %d cells", ErrIndexMismatch, idx.Len(), field.Len())
	}
	return &Manager{
		field:         field,
		tr:            tr,
		index:         idx,
		centresGlobal: global,
	}, nil
}

// Field returns the underlying vector field.
func (m *Manager) Field() *VectorField { return m.field }

// Transformation returns the placement of the field.
func (m *Manager) Transformation() *geom.Transformation { return m.tr }

// Len returns the number of cells.
func (m *Manager) Len() int { return m.field.Len() }

// Sample estimates the global flow vector at a global position.
func (m *Manager) Sample(posGlobal r3.Vec, policy Interpolation) (r3.Vec, error) {
	posLocal := m.tr.ApplyInverseToPoint(posGlobal)

	var local r3.Vec
	switch policy {
	case NearestNeighbor:
		local = m.field.flow[m.index.Nearest(posGlobal).ID]

	case Shepard:
		local = m.shepard(posGlobal)

	case ModifiedShepard, ModifiedShepardLinear, ModifiedShepardSquared,
		ModifiedShepardCubed, ModifiedShepardFourth:
		power, _ := policy.shepardPower()
		local = m.modifiedShepard(posGlobal, posLocal, power)

	default:
		return r3.Vec{}, fmt.Errorf("%w: %v", ErrUnknownInterpolation, policy)
	}

	global := m.tr.ApplyToDirection(local)
	if math.IsNaN(global.X) || math.IsNaN(global.Y) || math.IsNaN(global.Z) {
		return r3.Vec{}, fmt.Errorf("%w: at %v using %v", ErrNaNFlow, posGlobal, policy)
	}
	return global, nil
}

// shepard is inverse-distance weighting with exponent 4 over every cell.
func (m *Manager) shepard(posGlobal r3.Vec) r3.Vec {
	if nn := m.index.Nearest(posGlobal); nn.Distance <= exactMatchTolerance {
		return m.field.flow[nn.ID]
	}

	weights := make([]float64, len(m.centresGlobal))
	for i, c := range m.centresGlobal {
		d2 := r3.Norm2(r3.Sub(posGlobal, c))
		weights[i] = 1 / (d2 * d2)
	}
	return weightedSum(m.field.flow, nil, weights)
}

// modifiedShepard weights the nine closest cells by (1/d - 1/r)^p, where r
// is the largest of their distances. A closest cell on a wall switches to
// boundary decay instead.
func (m *Manager) modifiedShepard(posGlobal, posLocal r3.Vec, power float64) r3.Vec {
	nbrs := m.index.NearestK(posGlobal, shepardNeighbors)
	closest := nbrs[0]
	if closest.Distance <= exactMatchTolerance {
		return m.field.flow[closest.ID]
	}
	if m.field.atBoundary[closest.ID] {
		return m.boundaryFlow(closest.ID, posGlobal, posLocal)
	}

	radius := nbrs[len(nbrs)-1].Distance
	ids := make([]int, len(nbrs))
	weights := make([]float64, len(nbrs))
	for i, n := range nbrs {
		ids[i] = n.ID
		weights[i] = math.Pow(1/n.Distance-1/radius, power)
	}
	return weightedSum(m.field.flow, ids, weights)
}

// boundaryFlow scales the cell's flow by the smallest ratio of the query's
// distance to a wall face over the centre's distance to it. Outside the
// mesh the ratio is negative and the flow is zero.
func (m *Manager) boundaryFlow(id int, posGlobal, posLocal r3.Vec) r3.Vec {
	ratio := math.Inf(1)
	for _, f := range m.field.faces[id] {
		if r := f.SignedDistance(posLocal) / f.DistanceToCentre; r < ratio {
			ratio = r
		}
	}
	if ratio < 0 {
		return r3.Vec{}
	}
	decayed := r3.Scale(ratio, m.field.flow[id])
	if speed := r3.Norm(decayed); speed > suspiciousSpeed {
		slog.Debug("high flow speed near wall",
			"cell", id,
			"position", posGlobal,
			"ratio", ratio,
			"speed", speed,
		)
	}
	return decayed
}

// weightedSum normalises weights to sum 1 and averages the selected flow
// vectors. ids == nil selects every cell in order. Weights summing to zero
// (all neighbours equidistant) yield NaN, which Sample reports as
// ErrNaNFlow.
func weightedSum(flow []r3.Vec, ids []int, weights []float64) r3.Vec {
	floats.Scale(1/floats.Sum(weights), weights)

	var out r3.Vec
	for i, w := range weights {
		id := i
		if ids != nil {
			id = ids[i]
		}
		out = r3.Add(out, r3.Scale(w, flow[id]))
	}
	return out
}

// ClosestCellID returns the id of the cell whose centre is nearest to a
// global position.
func (m *Manager) ClosestCellID(posGlobal r3.Vec) int {
	return m.index.Nearest(posGlobal).ID
}

// CellIDsWithin returns the ids of all cells whose global centre lies within
// radius of centre.
func (m *Manager) CellIDsWithin(centre r3.Vec, radius float64) []int {
	nbrs := m.index.Within(centre, radius)
	ids := make([]int, len(nbrs))
	for i, n := range nbrs {
		ids[i] = n.ID
	}
	return ids
}

// IsAtBoundary reports whether cell id touches a wall.
func (m *Manager) IsAtBoundary(id int) bool { return m.field.atBoundary[id] }

// CellCentresLocal returns the cell centres in the field's frame.
func (m *Manager) CellCentresLocal() []r3.Vec { return m.field.Centres() }

// CellCentresGlobal returns a fresh slice of cell centres in scene coordinates.
func (m *Manager) CellCentresGlobal() []r3.Vec {
	return append([]r3.Vec(nil), m.centresGlobal...)
}
