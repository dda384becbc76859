package integrate

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/components"
)

// fieldScene serves a single analytic field for every object.
type fieldScene struct {
	fn    func(t float64, p r3.Vec) r3.Vec
	times []float64
}

func (s *fieldScene) FlowAt(_ int, p r3.Vec, t float64) (r3.Vec, error) {
	s.times = append(s.times, t)
	return s.fn(t, p), nil
}

func (s *fieldScene) ClosestCellID(int, r3.Vec) int { return 7 }

func constantScene(v r3.Vec) *fieldScene {
	return &fieldScene{fn: func(float64, r3.Vec) r3.Vec { return v }}
}

func rotationScene(omega float64) *fieldScene {
	return &fieldScene{fn: func(_ float64, p r3.Vec) r3.Vec {
		return r3.Vec{X: -omega * p.Y, Y: omega * p.X}
	}}
}

var allMethods = []Integration{Euler, RungeKutta4, RungeKuttaFehlberg, RungeKuttaFehlberg4, RungeKuttaFehlberg45}

func TestPredict_ZeroFlowMovesByVelocity(t *testing.T) {
	pos := r3.Vec{X: 1, Y: 2, Z: 3}
	vel := r3.Vec{X: 0.5, Y: -1, Z: 2}
	const dt = 0.1
	want := r3.Add(pos, r3.Scale(dt, vel))

	for _, m := range allMethods {
		p, err := NewPredictor(m, constantScene(r3.Vec{}))
		if err != nil {
			t.Fatal(err)
		}
		mol := components.NewMolecule(pos, vel, 0)
		got, errNorm, err := p.Predict(&mol, 0, dt)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%v position wrong: got %v, want %v", m, got, want)
		}
		if errNorm != 0 {
			t.Errorf("%v error wrong: got %g, want 0", m, errNorm)
		}
		if mol.Position != pos {
			t.Errorf("%v Predict modified the molecule", m)
		}
	}
}

func TestPredict_NoObjectIgnoresFlow(t *testing.T) {
	p, _ := NewPredictor(RungeKutta4, constantScene(r3.Vec{X: 100}))
	mol := components.NewMolecule(r3.Vec{}, r3.Vec{Y: 1}, components.NoObject)
	if _, err := p.PredictAndCommit(&mol, 0, 0.5); err != nil {
		t.Fatal(err)
	}
	if mol.Position != (r3.Vec{Y: 0.5}) {
		t.Errorf("position wrong: got %v, want (0, 0.5, 0)", mol.Position)
	}
	if mol.CellID != components.NoCell {
		t.Errorf("cell id wrong: got %d, want %d", mol.CellID, components.NoCell)
	}
}

func TestPredict_ConstantFlowHasNoError(t *testing.T) {
	v := r3.Vec{X: 0.3, Y: -0.2, Z: 0.9}
	for _, m := range []Integration{RungeKuttaFehlberg, RungeKuttaFehlberg4, RungeKuttaFehlberg45} {
		p, _ := NewPredictor(m, constantScene(v))
		mol := components.NewMolecule(r3.Vec{X: 1}, r3.Vec{}, 0)
		got, errNorm, err := p.Predict(&mol, 0, 0.01)
		if err != nil {
			t.Fatal(err)
		}
		if errNorm > 1e-15 {
			t.Errorf("%v error wrong: got %g, want 0", m, errNorm)
		}
		want := r3.Add(r3.Vec{X: 1}, r3.Scale(0.01, v))
		if r3.Norm(r3.Sub(got, want)) > 1e-15 {
			t.Errorf("%v position wrong: got %v, want %v", m, got, want)
		}
	}
}

func TestPredict_RK4SamplesAtStartTime(t *testing.T) {
	s := rotationScene(1)
	p, _ := NewPredictor(RungeKutta4, s)
	mol := components.NewMolecule(r3.Vec{X: 1}, r3.Vec{}, 0)
	if _, _, err := p.Predict(&mol, 2.5, 0.1); err != nil {
		t.Fatal(err)
	}
	if len(s.times) != 4 {
		t.Fatalf("stage count wrong: got %d, want 4", len(s.times))
	}
	for i, tm := range s.times {
		if tm != 2.5 {
			t.Errorf("stage %d time wrong: got %f, want 2.5", i, tm)
		}
	}
}

func TestPredict_RKFStageTimes(t *testing.T) {
	s := rotationScene(1)
	p, _ := NewPredictor(RungeKuttaFehlberg, s)
	mol := components.NewMolecule(r3.Vec{X: 1}, r3.Vec{}, 0)
	if _, _, err := p.Predict(&mol, 1, 0.8); err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 1.2, 1.3, 1 + 0.8*12.0/13, 1.8, 1.4}
	for i := range want {
		if math.Abs(s.times[i]-want[i]) > 1e-12 {
			t.Errorf("stage %d time wrong: got %f, want %f", i, s.times[i], want[i])
		}
	}
}

func TestPredict_Accuracy(t *testing.T) {
	// One quarter turn of a rigid rotation in 20 steps.
	const omega = 2.0
	const steps = 20
	dt := math.Pi / 2 / omega / steps
	want := r3.Vec{Y: 1}

	tests := []struct {
		method Integration
		tol    float64
	}{
		{Euler, 0.2},
		{RungeKutta4, 1e-5},
		{RungeKuttaFehlberg, 1e-6},
		{RungeKuttaFehlberg4, 1e-4},
	}
	for _, tt := range tests {
		p, _ := NewPredictor(tt.method, rotationScene(omega))
		mol := components.NewMolecule(r3.Vec{X: 1}, r3.Vec{}, 0)
		for i := 0; i < steps; i++ {
			if _, err := p.PredictAndCommit(&mol, float64(i)*dt, dt); err != nil {
				t.Fatal(err)
			}
		}
		if d := r3.Norm(r3.Sub(mol.Position, want)); d > tt.tol {
			t.Errorf("%v end position wrong: got %v, want %v (off by %g)", tt.method, mol.Position, want, d)
		}
		if mol.CellID != 7 {
			t.Errorf("%v cell id not refreshed: got %d", tt.method, mol.CellID)
		}
	}
}

func TestNewPredictor_Unknown(t *testing.T) {
	if _, err := NewPredictor(Integration(42), constantScene(r3.Vec{})); !errors.Is(err, ErrUnknownIntegration) {
		t.Errorf("expected ErrUnknownIntegration, got %v", err)
	}
}

func TestParseIntegration(t *testing.T) {
	for _, m := range allMethods {
		got, err := ParseIntegration(m.String())
		if err != nil || got != m {
			t.Errorf("ParseIntegration(%q) wrong: got %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseIntegration("RK45"); !errors.Is(err, ErrUnknownIntegration) {
		t.Errorf("expected ErrUnknownIntegration, got %v", err)
	}
	if !RungeKuttaFehlberg.SupportsTimeStepControl() || RungeKuttaFehlberg45.SupportsTimeStepControl() {
		t.Error("only RUNGE_KUTTA_FEHLBERG should support time step control")
	}
}
