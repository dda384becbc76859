package integrate

import "gonum.org/v1/gonum/spatial/r3"

// FlowFunc returns dy/dt at time t and position y.
type FlowFunc func(t float64, y r3.Vec) (r3.Vec, error)

// Tableau is the Butcher tableau of an embedded Runge-Kutta pair.
// B[0] gives the higher-order solution, B[1] the lower-order one.
type Tableau struct {
	A     [][]float64
	B     [2][]float64
	C     []float64
	Order int // order of the higher-order solution
}

// Fehlberg45 is the Runge-Kutta-Fehlberg 4(5) pair (Fehlberg 1969).
var Fehlberg45 = Tableau{
	A: [][]float64{
		{},
		{1.0 / 4},
		{3.0 / 32, 9.0 / 32},
		{1932.0 / 2197, -7200.0 / 2197, 7296.0 / 2197},
		{439.0 / 216, -8, 3680.0 / 513, -845.0 / 4104},
		{-8.0 / 27, 2, -3544.0 / 2565, 1859.0 / 4104, -11.0 / 40},
	},
	B: [2][]float64{
		{16.0 / 135, 0, 6656.0 / 12825, 28561.0 / 56430, -9.0 / 50, 2.0 / 55},
		{25.0 / 216, 0, 1408.0 / 2565, 2197.0 / 4104, -1.0 / 5, 0},
	},
	C:     []float64{0, 1.0 / 4, 3.0 / 8, 12.0 / 13, 1, 1.0 / 2},
	Order: 5,
}

// Compute takes one step of size dt from (t0, y0) and returns the
// higher-order result, the lower-order result and their difference.
func (tb *Tableau) Compute(f FlowFunc, t0 float64, y0 r3.Vec, dt float64) (high, low, diff r3.Vec, err error) {
	k := make([]r3.Vec, len(tb.C))
	var s, sLow r3.Vec
	for i := range tb.C {
		var sum r3.Vec
		for j, a := range tb.A[i] {
			sum = r3.Add(sum, r3.Scale(a, k[j]))
		}
		k[i], err = f(t0+tb.C[i]*dt, r3.Add(y0, r3.Scale(dt, sum)))
		if err != nil {
			return r3.Vec{}, r3.Vec{}, r3.Vec{}, err
		}
		s = r3.Add(s, r3.Scale(tb.B[0][i], k[i]))
		sLow = r3.Add(sLow, r3.Scale(tb.B[1][i], k[i]))
	}
	high = r3.Add(y0, r3.Scale(dt, s))
	low = r3.Add(y0, r3.Scale(dt, sLow))
	return high, low, r3.Sub(high, low), nil
}

// StepEuler is a single explicit Euler step.
func StepEuler(f FlowFunc, t0 float64, y0 r3.Vec, dt float64) (r3.Vec, error) {
	v, err := f(t0, y0)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Add(y0, r3.Scale(dt, v)), nil
}

// StepRK4 is a classical fourth-order Runge-Kutta step. Every stage samples
// the field at t0.
func StepRK4(f FlowFunc, t0 float64, y0 r3.Vec, dt float64) (r3.Vec, error) {
	v, err := f(t0, y0)
	if err != nil {
		return r3.Vec{}, err
	}
	k1 := r3.Scale(dt, v)

	if v, err = f(t0, r3.Add(y0, r3.Scale(0.5, k1))); err != nil {
		return r3.Vec{}, err
	}
	k2 := r3.Scale(dt, v)

	if v, err = f(t0, r3.Add(y0, r3.Scale(0.5, k2))); err != nil {
		return r3.Vec{}, err
	}
	k3 := r3.Scale(dt, v)

	if v, err = f(t0, r3.Add(y0, k3)); err != nil {
		return r3.Vec{}, err
	}
	k4 := r3.Scale(dt, v)

	y := y0
	y = r3.Add(y, r3.Scale(1.0/6, k1))
	y = r3.Add(y, r3.Scale(1.0/3, k2))
	y = r3.Add(y, r3.Scale(1.0/3, k3))
	y = r3.Add(y, r3.Scale(1.0/6, k4))
	return y, nil
}
