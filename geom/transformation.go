// Package geom provides rigid-body placement of scene objects and the unit
// shapes used for injectors, sensors and outlets.
package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrSingular is returned when a transformation cannot be inverted,
// e.g. because one of the scaling components is zero.
var ErrSingular = errors.New("geom: transformation is not invertible")

// RotationOrder names the axis order in which Euler angles are applied.
type RotationOrder string

// Supported rotation orders. XYZ matches Blender's default.
const (
	OrderXYZ RotationOrder = "XYZ"
	OrderYXZ RotationOrder = "YXZ"
	OrderXZY RotationOrder = "XZY"
	OrderZXY RotationOrder = "ZXY"
	OrderZYX RotationOrder = "ZYX"
	OrderYZX RotationOrder = "YZX"
)

// ParseRotationOrder validates a rotation order name. An empty name means XYZ.
func ParseRotationOrder(s string) (RotationOrder, error) {
	switch o := RotationOrder(s); o {
	case "":
		return OrderXYZ, nil
	case OrderXYZ, OrderYXZ, OrderXZY, OrderZXY, OrderZYX, OrderYZX:
		return o, nil
	}
	return "", fmt.Errorf("geom: unknown rotation order %q", s)
}

// affine is the upper 3x4 block of a homogeneous matrix, cached for the
// per-sample hot path.
type affine [3][4]float64

func affineFrom(m mat.Matrix) affine {
	var a affine
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			a[i][j] = m.At(i, j)
		}
	}
	return a
}

func (a *affine) apply(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: a[0][0]*v.X + a[0][1]*v.Y + a[0][2]*v.Z + a[0][3],
		Y: a[1][0]*v.X + a[1][1]*v.Y + a[1][2]*v.Z + a[1][3],
		Z: a[2][0]*v.X + a[2][1]*v.Y + a[2][2]*v.Z + a[2][3],
	}
}

// Transformation places a local frame in the global frame. Scaling is applied
// first, then rotation, then translation. Directions only see rotation and
// scaling. A Transformation is immutable once built.
type Transformation struct {
	translation r3.Vec
	rotation    r3.Vec
	scaling     r3.Vec
	order       RotationOrder
	fromMatrix  bool

	matrix    *mat.Dense
	direction *mat.Dense

	fwd    affine
	inv    affine
	dir    affine
	invDir affine
}

// Identity returns the transformation that leaves every point unchanged.
func Identity() *Transformation {
	t, err := NewTransformation(r3.Vec{}, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, OrderXYZ)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTransformation builds T·R·S from a translation, Euler angles in radians
// and per-axis scaling.
func NewTransformation(translation, rotation, scaling r3.Vec, order RotationOrder) (*Transformation, error) {
	if order == "" {
		order = OrderXYZ
	}
	rot, err := rotationMatrix(rotation, order)
	if err != nil {
		return nil, err
	}

	direction := mat.NewDense(4, 4, nil)
	direction.Mul(rot, scalingMatrix(scaling))

	matrix := mat.NewDense(4, 4, nil)
	matrix.Mul(translationMatrix(translation), direction)

	t := &Transformation{
		translation: translation,
		rotation:    rotation,
		scaling:     scaling,
		order:       order,
	}
	if err := t.setMatrices(matrix, direction); err != nil {
		return nil, err
	}
	return t, nil
}

// FromMatrices builds a transformation from a full homogeneous matrix and its
// direction-only counterpart. Translation and scaling are recovered from the
// matrices; the rotation angles are not.
func FromMatrices(matrix, direction mat.Matrix) (*Transformation, error) {
	if r, c := matrix.Dims(); r != 4 || c != 4 {
		return nil, fmt.Errorf("geom: matrix must be 4x4, got %dx%d", r, c)
	}
	if r, c := direction.Dims(); r != 4 || c != 4 {
		return nil, fmt.Errorf("geom: direction matrix must be 4x4, got %dx%d", r, c)
	}
	m := mat.DenseCopyOf(matrix)
	d := mat.DenseCopyOf(direction)

	t := &Transformation{
		translation: r3.Vec{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)},
		scaling:     columnNorms(m),
		order:       OrderXYZ,
		fromMatrix:  true,
	}
	if err := t.setMatrices(m, d); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transformation) setMatrices(matrix, direction *mat.Dense) error {
	var inv, invDir mat.Dense
	if err := inv.Inverse(matrix); err != nil {
		return fmt.Errorf("%w: %v", ErrSingular, err)
	}
	if err := invDir.Inverse(direction); err != nil {
		return fmt.Errorf("%w: %v", ErrSingular, err)
	}
	t.matrix = matrix
	t.direction = direction
	t.fwd = affineFrom(matrix)
	t.inv = affineFrom(&inv)
	t.dir = affineFrom(direction)
	t.invDir = affineFrom(&invDir)
	return nil
}

// Compose returns the transformation equivalent to applying other first and
// t afterwards.
func (t *Transformation) Compose(other *Transformation) (*Transformation, error) {
	var m, d mat.Dense
	m.Mul(t.matrix, other.matrix)
	d.Mul(t.direction, other.direction)
	return FromMatrices(&m, &d)
}

// ApplyToPoint maps a local point to the global frame.
func (t *Transformation) ApplyToPoint(p r3.Vec) r3.Vec { return t.fwd.apply(p) }

// ApplyToDirection maps a local direction (e.g. a flow vector) to the global
// frame. Translation is never applied.
func (t *Transformation) ApplyToDirection(v r3.Vec) r3.Vec { return t.dir.apply(v) }

// ApplyInverseToPoint maps a global point to the local frame.
func (t *Transformation) ApplyInverseToPoint(p r3.Vec) r3.Vec { return t.inv.apply(p) }

// ApplyInverseToDirection maps a global direction to the local frame.
func (t *Transformation) ApplyInverseToDirection(v r3.Vec) r3.Vec { return t.invDir.apply(v) }

// ApplyToPoints maps a batch of local points. The result is a fresh slice.
func (t *Transformation) ApplyToPoints(points []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(points))
	for i, p := range points {
		out[i] = t.fwd.apply(p)
	}
	return out
}

// ApplyInverseToPoints maps a batch of global points to the local frame.
func (t *Transformation) ApplyInverseToPoints(points []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(points))
	for i, p := range points {
		out[i] = t.inv.apply(p)
	}
	return out
}

func (t *Transformation) Translation() r3.Vec { return t.translation }
func (t *Transformation) Scaling() r3.Vec     { return t.scaling }

// Rotation returns the Euler angles the transformation was built from.
// The second result is false when it was built from matrices and the angles
// are unknown.
func (t *Transformation) Rotation() (r3.Vec, bool) { return t.rotation, !t.fromMatrix }

// Matrix returns a copy of the full homogeneous matrix.
func (t *Transformation) Matrix() *mat.Dense { return mat.DenseCopyOf(t.matrix) }

// DirectionMatrix returns a copy of the rotation-and-scaling matrix.
func (t *Transformation) DirectionMatrix() *mat.Dense { return mat.DenseCopyOf(t.direction) }

func (t *Transformation) String() string {
	return fmt.Sprintf("Transformation(translation=%v, rotation=%v, scaling=%v)",
		t.translation, t.rotation, t.scaling)
}

func translationMatrix(v r3.Vec) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, v.X,
		0, 1, 0, v.Y,
		0, 0, 1, v.Z,
		0, 0, 0, 1,
	})
}

func scalingMatrix(v r3.Vec) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		v.X, 0, 0, 0,
		0, v.Y, 0, 0,
		0, 0, v.Z, 0,
		0, 0, 0, 1,
	})
}

func rotationMatrix(angles r3.Vec, order RotationOrder) (*mat.Dense, error) {
	cx, sx := math.Cos(angles.X), math.Sin(angles.X)
	cy, sy := math.Cos(angles.Y), math.Sin(angles.Y)
	cz, sz := math.Cos(angles.Z), math.Sin(angles.Z)

	rx := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, cx, -sx, 0,
		0, sx, cx, 0,
		0, 0, 0, 1,
	})
	ry := mat.NewDense(4, 4, []float64{
		cy, 0, sy, 0,
		0, 1, 0, 0,
		-sy, 0, cy, 0,
		0, 0, 0, 1,
	})
	rz := mat.NewDense(4, 4, []float64{
		cz, -sz, 0, 0,
		sz, cz, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})

	// The first named axis is applied first, so it is the rightmost factor.
	var first, second, third *mat.Dense
	switch order {
	case OrderXYZ:
		first, second, third = rx, ry, rz
	case OrderYXZ:
		first, second, third = ry, rx, rz
	case OrderXZY:
		first, second, third = rx, rz, ry
	case OrderZXY:
		first, second, third = rz, rx, ry
	case OrderZYX:
		first, second, third = rz, ry, rx
	case OrderYZX:
		first, second, third = ry, rz, rx
	default:
		return nil, fmt.Errorf("geom: unknown rotation order %q", order)
	}

	out := mat.NewDense(4, 4, nil)
	out.Product(third, second, first)
	return out, nil
}

func columnNorms(m *mat.Dense) r3.Vec {
	col := func(j int) float64 {
		return math.Sqrt(m.At(0, j)*m.At(0, j) + m.At(1, j)*m.At(1, j) + m.At(2, j)*m.At(2, j))
	}
	return r3.Vec{X: col(0), Y: col(1), Z: col(2)}
}
