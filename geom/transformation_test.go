package geom

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func vecClose(a, b r3.Vec, eps float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= eps
}

func TestTransformation_RoundTrip(t *testing.T) {
	orders := []RotationOrder{OrderXYZ, OrderYXZ, OrderXZY, OrderZXY, OrderZYX, OrderYZX}
	rng := rand.New(rand.NewSource(7))

	for _, order := range orders {
		tr, err := NewTransformation(
			r3.Vec{X: 0.3, Y: -1.2, Z: 4},
			r3.Vec{X: 0.4, Y: 1.1, Z: -2.3},
			r3.Vec{X: 2, Y: 0.5, Z: 3},
			order,
		)
		if err != nil {
			t.Fatalf("order %s: %v", order, err)
		}
		for i := 0; i < 20; i++ {
			p := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
			back := tr.ApplyInverseToPoint(tr.ApplyToPoint(p))
			if !vecClose(back, p, tol) {
				t.Errorf("order %s point round trip wrong: got %v, want %v", order, back, p)
			}
			dback := tr.ApplyInverseToDirection(tr.ApplyToDirection(p))
			if !vecClose(dback, p, tol) {
				t.Errorf("order %s direction round trip wrong: got %v, want %v", order, dback, p)
			}
		}
	}
}

func TestTransformation_DirectionIgnoresTranslation(t *testing.T) {
	tr, err := NewTransformation(r3.Vec{X: 5, Y: 6, Z: 7}, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, OrderXYZ)
	if err != nil {
		t.Fatal(err)
	}
	v := r3.Vec{X: 1, Y: 2, Z: 3}
	if got := tr.ApplyToDirection(v); !vecClose(got, v, tol) {
		t.Errorf("direction wrong: got %v, want %v", got, v)
	}
	if got, want := tr.ApplyToPoint(v), (r3.Vec{X: 6, Y: 8, Z: 10}); !vecClose(got, want, tol) {
		t.Errorf("point wrong: got %v, want %v", got, want)
	}
}

func TestTransformation_ScaleRotateTranslateOrder(t *testing.T) {
	// Scale x by 2, rotate 90 degrees about z, then translate.
	tr, err := NewTransformation(
		r3.Vec{X: 1},
		r3.Vec{Z: math.Pi / 2},
		r3.Vec{X: 2, Y: 1, Z: 1},
		OrderXYZ,
	)
	if err != nil {
		t.Fatal(err)
	}
	got := tr.ApplyToPoint(r3.Vec{X: 1})
	want := r3.Vec{X: 1, Y: 2}
	if !vecClose(got, want, tol) {
		t.Errorf("point wrong: got %v, want %v", got, want)
	}
}

func TestTransformation_Compose(t *testing.T) {
	inner, _ := NewTransformation(r3.Vec{X: 1}, r3.Vec{Y: 0.3}, r3.Vec{X: 2, Y: 2, Z: 2}, OrderXYZ)
	outer, _ := NewTransformation(r3.Vec{Z: -3}, r3.Vec{X: 1.2}, r3.Vec{X: 1, Y: 0.5, Z: 1}, OrderZYX)

	composed, err := outer.Compose(inner)
	if err != nil {
		t.Fatal(err)
	}
	p := r3.Vec{X: 0.2, Y: -0.7, Z: 1.5}
	want := outer.ApplyToPoint(inner.ApplyToPoint(p))
	if got := composed.ApplyToPoint(p); !vecClose(got, want, tol) {
		t.Errorf("composed point wrong: got %v, want %v", got, want)
	}
	wantDir := outer.ApplyToDirection(inner.ApplyToDirection(p))
	if got := composed.ApplyToDirection(p); !vecClose(got, wantDir, tol) {
		t.Errorf("composed direction wrong: got %v, want %v", got, wantDir)
	}
	if _, known := composed.Rotation(); known {
		t.Error("expected rotation of a composed transformation to be unknown")
	}
}

func TestTransformation_Singular(t *testing.T) {
	_, err := NewTransformation(r3.Vec{}, r3.Vec{}, r3.Vec{X: 1, Y: 0, Z: 1}, OrderXYZ)
	if !errors.Is(err, ErrSingular) {
		t.Errorf("expected ErrSingular, got %v", err)
	}
}

func TestParseRotationOrder(t *testing.T) {
	if o, err := ParseRotationOrder(""); err != nil || o != OrderXYZ {
		t.Errorf("empty order wrong: got %q, %v", o, err)
	}
	if _, err := ParseRotationOrder("XXY"); err == nil {
		t.Error("expected error for unknown order")
	}
}
