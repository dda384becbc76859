package geom

import (
	"fmt"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Shape identifies a unit shape centred on the origin whose extent along
// every axis is at most 1.
type Shape uint8

const (
	ShapeNone Shape = iota
	ShapeCube
	ShapeCylinder
	ShapeSphere
	ShapePoint
)

var shapeNames = map[Shape]string{
	ShapeNone:     "NONE",
	ShapeCube:     "CUBE",
	ShapeCylinder: "CYLINDER",
	ShapeSphere:   "SPHERE",
	ShapePoint:    "POINT",
}

func (s Shape) String() string {
	if n, ok := shapeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Shape(%d)", uint8(s))
}

// ParseShape maps a shape name (case-insensitive) to a Shape.
func ParseShape(name string) (Shape, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for s, n := range shapeNames {
		if n == upper {
			return s, nil
		}
	}
	return ShapeNone, fmt.Errorf("geom: unknown shape %q", name)
}

// Contains reports whether a point in the shape's local frame lies inside it.
// Cylinders are aligned with the z axis. A point shape contains nothing.
func (s Shape) Contains(p r3.Vec) bool {
	if !inUnitBox(p) {
		return false
	}
	switch s {
	case ShapeCube:
		return true
	case ShapeCylinder:
		return p.X*p.X+p.Y*p.Y <= 0.25
	case ShapeSphere:
		return p.X*p.X+p.Y*p.Y+p.Z*p.Z <= 0.25
	default:
		return false
	}
}

func inUnitBox(p r3.Vec) bool {
	return p.X >= -0.5 && p.X <= 0.5 &&
		p.Y >= -0.5 && p.Y <= 0.5 &&
		p.Z >= -0.5 && p.Z <= 0.5
}

// RandomPoints draws n points uniformly from the shape in its local frame.
// A point shape yields n copies of the origin. Cubes are sampled directly,
// everything else by rejection from the unit box.
func (s Shape) RandomPoints(n int, rng *rand.Rand) ([]r3.Vec, error) {
	points := make([]r3.Vec, 0, n)
	switch s {
	case ShapePoint:
		for i := 0; i < n; i++ {
			points = append(points, r3.Vec{})
		}
	case ShapeCube:
		for i := 0; i < n; i++ {
			points = append(points, unitBoxPoint(rng))
		}
	case ShapeCylinder, ShapeSphere:
		for len(points) < n {
			p := unitBoxPoint(rng)
			if s.Contains(p) {
				points = append(points, p)
			}
		}
	default:
		return nil, fmt.Errorf("geom: cannot sample points from shape %s", s)
	}
	return points, nil
}

func unitBoxPoint(rng *rand.Rand) r3.Vec {
	return r3.Vec{
		X: rng.Float64() - 0.5,
		Y: rng.Float64() - 0.5,
		Z: rng.Float64() - 0.5,
	}
}

// Zone is a shape placed in the scene by a transformation.
type Zone struct {
	Shape          Shape
	Transformation *Transformation
}

// Contains reports whether a global point lies inside the placed shape.
func (z Zone) Contains(global r3.Vec) bool {
	return z.Shape.Contains(z.Transformation.ApplyInverseToPoint(global))
}

// BoundingRadius is the half-diagonal of the placed unit box, the radius of
// a sphere around the zone's translation that covers the whole zone.
func (z Zone) BoundingRadius() float64 {
	return 0.5 * r3.Norm(z.Transformation.Scaling())
}
