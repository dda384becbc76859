package flow

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/geom"
)

func TestMeanSpeed(t *testing.T) {
	got := MeanSpeed(5, 0.00075)
	if want := 0.0471570201753764; math.Abs(got-want) > 1e-12 {
		t.Errorf("mean speed wrong: got %v, want %v", got, want)
	}
}

func TestTube_Profile(t *testing.T) {
	const radius, length = 0.001, 0.05
	tr, err := geom.NewTransformation(
		r3.Vec{X: 0.2, Y: -0.1, Z: 0.3},
		r3.Vec{X: math.Pi / 2, Y: 0, Z: 0.4},
		r3.Vec{X: 1, Y: 1, Z: 1},
		geom.OrderXYZ,
	)
	if err != nil {
		t.Fatal(err)
	}
	tube, err := NewTube(radius, length, tr)
	if err != nil {
		t.Fatal(err)
	}
	peak := 2 * MeanSpeed(TubeReferenceFlowRate, radius)

	tests := []struct {
		name  string
		local r3.Vec
		speed float64
	}{
		{"axis", r3.Vec{Z: 0.01}, peak},
		{"half radius", r3.Vec{X: radius / 2, Z: 0.02}, 0.75 * peak},
		{"off axis diagonal", r3.Vec{X: 0.6 * radius, Y: 0.6 * radius, Z: 0.03}, 0.28 * peak},
		{"wall", r3.Vec{Y: radius, Z: 0.01}, 0},
		{"outside", r3.Vec{X: 2 * radius, Z: 0.01}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tube.Sample(tr.ApplyToPoint(tt.local), ModifiedShepard)
			if err != nil {
				t.Fatal(err)
			}
			want := tr.ApplyToDirection(r3.Vec{Z: tt.speed})
			if d := r3.Norm(r3.Sub(got, want)); d > 1e-12 {
				t.Errorf("flow wrong: got %v, want %v", got, want)
			}
		})
	}
}

func TestTube_NoCells(t *testing.T) {
	tube, err := NewTube(0.001, 0.05, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tube.Len() != 0 {
		t.Errorf("cells wrong: got %d, want 0", tube.Len())
	}
	if id := tube.ClosestCellID(r3.Vec{Z: 0.01}); id != NoCell {
		t.Errorf("closest cell wrong: got %d, want %d", id, NoCell)
	}
	if ids := tube.CellIDsWithin(r3.Vec{}, 1); len(ids) != 0 {
		t.Errorf("cells within wrong: got %v, want none", ids)
	}
}

func TestNewTube_Invalid(t *testing.T) {
	for _, dims := range [][2]float64{{0, 0.05}, {0.001, 0}, {-1, 1}, {math.NaN(), 1}} {
		if _, err := NewTube(dims[0], dims[1], nil); !errors.Is(err, ErrInvalidField) {
			t.Errorf("NewTube(%v, %v) error wrong: got %v, want %v", dims[0], dims[1], err, ErrInvalidField)
		}
	}
}

func TestTube_OutletZone(t *testing.T) {
	const radius, length, depth = 0.001, 0.05, 0.005
	tube, err := NewTube(radius, length, nil)
	if err != nil {
		t.Fatal(err)
	}
	zone, err := tube.OutletZone(depth)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		p    r3.Vec
		want bool
	}{
		{r3.Vec{Z: length + depth/2}, true},
		{r3.Vec{X: 0.9 * radius, Z: length + 0.1*depth}, true},
		{r3.Vec{Z: length - 0.0001}, false},
		{r3.Vec{Z: length + 1.1*depth}, false},
		{r3.Vec{X: 1.1 * radius, Z: length + depth/2}, false},
	}
	for _, tt := range tests {
		if got := zone.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) wrong: got %v, want %v", tt.p, got, tt.want)
		}
	}
}
