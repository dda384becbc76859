package flow

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/geom"
)

// TubeReferenceFlowRate is the flow rate in ml/min that Tube.Sample returns
// the flow for. Objects scale it to their current rate.
const TubeReferenceFlowRate = 1.0

// MeanSpeed converts a volumetric flow rate in ml/min into the mean speed in
// m/s through a round pipe of the given radius in metres.
func MeanSpeed(flowRate, radius float64) float64 {
	return flowRate * 1e-6 / 60 / (math.Pi * radius * radius)
}

// Tube is laminar Hagen-Poiseuille flow through a straight round pipe. The
// pipe runs along the local z axis from z = 0 to z = length. The profile is
// parabolic, peaks on the axis at twice the mean speed and is zero at the
// wall and outside it. A Tube has no cells.
type Tube struct {
	radius    float64
	length    float64
	tr        *geom.Transformation
	peakSpeed float64 // on the axis at TubeReferenceFlowRate
}

// NewTube places a pipe of the given radius and length under tr.
func NewTube(radius, length float64, tr *geom.Transformation) (*Tube, error) {
	if !(radius > 0) || !(length > 0) {
		return nil, fmt.Errorf("%w: tube radius %g and length %g must be positive", ErrInvalidField, radius, length)
	}
	if tr == nil {
		tr = geom.Identity()
	}
	if s := tr.Scaling(); math.Abs(s.X-1) > 1e-9 || math.Abs(s.Y-1) > 1e-9 || math.Abs(s.Z-1) > 1e-9 {
		slog.Warn("analytical tube is scaled, its radius and length are scaled too", "scale", s)
	}
	return &Tube{
		radius:    radius,
		length:    length,
		tr:        tr,
		peakSpeed: 2 * MeanSpeed(TubeReferenceFlowRate, radius),
	}, nil
}

func (t *Tube) Radius() float64 { return t.radius }

func (t *Tube) Length() float64 { return t.length }

// Sample returns the flow at a global position. The policy is ignored.
func (t *Tube) Sample(posGlobal r3.Vec, _ Interpolation) (r3.Vec, error) {
	local := t.tr.ApplyInverseToPoint(posGlobal)
	r2 := (local.X*local.X + local.Y*local.Y) / (t.radius * t.radius)
	speed := max(t.peakSpeed*(1-r2), 0)
	return t.tr.ApplyToDirection(r3.Vec{Z: speed}), nil
}

func (t *Tube) ClosestCellID(r3.Vec) int { return NoCell }

func (t *Tube) CellIDsWithin(r3.Vec, float64) []int { return nil }

func (t *Tube) CellCentresGlobal() []r3.Vec { return nil }

func (t *Tube) Len() int { return 0 }

// OutletZone returns a cylinder of the tube's diameter that starts at the
// tube's end and reaches depth further along the axis, in the tube's local
// frame.
func (t *Tube) OutletZone(depth float64) (geom.Zone, error) {
	tr, err := geom.NewTransformation(
		r3.Vec{Z: t.length + depth/2},
		r3.Vec{},
		r3.Vec{X: 2 * t.radius, Y: 2 * t.radius, Z: depth},
		geom.OrderXYZ,
	)
	if err != nil {
		return geom.Zone{}, err
	}
	return geom.Zone{Shape: geom.ShapeCylinder, Transformation: tr}, nil
}
