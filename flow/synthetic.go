package flow

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// FieldFunc gives the flow at a local position.
type FieldFunc func(p r3.Vec) r3.Vec

// Uniform returns a constant field.
func Uniform(v r3.Vec) FieldFunc {
	return func(r3.Vec) r3.Vec { return v }
}

// SolidBodyRotation returns the field of a rigid rotation about the z axis
// with angular velocity omega in rad/s.
func SolidBodyRotation(omega float64) FieldFunc {
	return func(p r3.Vec) r3.Vec {
		return r3.Vec{X: -omega * p.Y, Y: omega * p.X}
	}
}

// ChannelFlow returns a plane Poiseuille profile along x between walls at
// y = ±halfWidth, peaking at vmax on the centre line.
func ChannelFlow(vmax, halfWidth float64) FieldFunc {
	return func(p r3.Vec) r3.Vec {
		s := p.Y / halfWidth
		if s < -1 || s > 1 {
			return r3.Vec{}
		}
		return r3.Vec{X: vmax * (1 - s*s)}
	}
}

// Generator names a synthetic field kind and its parameters.
type Generator struct {
	Kind      string // uniform, rotation or channel
	Velocity  r3.Vec
	Omega     float64
	MaxSpeed  float64
	HalfWidth float64
}

// Func returns the field function of the generator.
func (g Generator) Func() (FieldFunc, error) {
	switch g.Kind {
	case "uniform":
		return Uniform(g.Velocity), nil
	case "rotation":
		return SolidBodyRotation(g.Omega), nil
	case "channel":
		if !(g.HalfWidth > 0) {
			return nil, fmt.Errorf("%w: channel half width must be positive", ErrInvalidField)
		}
		return ChannelFlow(g.MaxSpeed, g.HalfWidth), nil
	}
	return nil, fmt.Errorf("%w: unknown synthetic field %q", ErrInvalidField, g.Kind)
}

// Box describes a regular grid of cells filling an axis-aligned box.
type Box struct {
	Min, Max   r3.Vec
	NX, NY, NZ int
}

// Build samples fn at every cell centre of the box. Cells on the outer
// layer are wall cells with inward-facing faces on each touching side.
func (b Box) Build(fn FieldFunc) (*VectorField, error) {
	if b.NX < 1 || b.NY < 1 || b.NZ < 1 {
		return nil, fmt.Errorf("%w: box resolution %dx%dx%d", ErrInvalidField, b.NX, b.NY, b.NZ)
	}
	size := r3.Sub(b.Max, b.Min)
	h := r3.Vec{X: size.X / float64(b.NX), Y: size.Y / float64(b.NY), Z: size.Z / float64(b.NZ)}
	if h.X <= 0 || h.Y <= 0 || h.Z <= 0 {
		return nil, fmt.Errorf("%w: empty box %v..%v", ErrInvalidField, b.Min, b.Max)
	}

	n := b.NX * b.NY * b.NZ
	centres := make([]r3.Vec, 0, n)
	flow := make([]r3.Vec, 0, n)
	atBoundary := make([]bool, 0, n)
	faces := make(map[int][]Face)

	for k := 0; k < b.NZ; k++ {
		for j := 0; j < b.NY; j++ {
			for i := 0; i < b.NX; i++ {
				c := r3.Vec{
					X: b.Min.X + (float64(i)+0.5)*h.X,
					Y: b.Min.Y + (float64(j)+0.5)*h.Y,
					Z: b.Min.Z + (float64(k)+0.5)*h.Z,
				}
				id := len(centres)
				centres = append(centres, c)
				flow = append(flow, fn(c))

				var fs []Face
				addWall := func(pos, normal r3.Vec, dist float64) {
					fs = append(fs, Face{Position: pos, Normal: normal, DistanceToCentre: dist})
				}
				if i == 0 {
					addWall(r3.Vec{X: b.Min.X, Y: c.Y, Z: c.Z}, r3.Vec{X: 1}, h.X/2)
				}
				if i == b.NX-1 {
					addWall(r3.Vec{X: b.Max.X, Y: c.Y, Z: c.Z}, r3.Vec{X: -1}, h.X/2)
				}
				if j == 0 {
					addWall(r3.Vec{X: c.X, Y: b.Min.Y, Z: c.Z}, r3.Vec{Y: 1}, h.Y/2)
				}
				if j == b.NY-1 {
					addWall(r3.Vec{X: c.X, Y: b.Max.Y, Z: c.Z}, r3.Vec{Y: -1}, h.Y/2)
				}
				if k == 0 {
					addWall(r3.Vec{X: c.X, Y: c.Y, Z: b.Min.Z}, r3.Vec{Z: 1}, h.Z/2)
				}
				if k == b.NZ-1 {
					addWall(r3.Vec{X: c.X, Y: c.Y, Z: b.Max.Z}, r3.Vec{Z: -1}, h.Z/2)
				}
				atBoundary = append(atBoundary, len(fs) > 0)
				if len(fs) > 0 {
					faces[id] = fs
				}
			}
		}
	}
	return NewVectorField(centres, flow, atBoundary, faces)
}
