// Package integrate advances molecules through flow fields with fixed-step
// and embedded Runge-Kutta methods.
package integrate

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownIntegration is returned for integration values outside the enum.
	ErrUnknownIntegration = errors.New("integrate: unknown integration method")
	// ErrNotAdaptive is returned when adaptive stepping is requested with a
	// method that has no error estimate.
	ErrNotAdaptive = errors.New("integrate: integration method has no error estimate for adaptive stepping")
)

// Integration selects the numeric scheme used to move molecules.
type Integration uint8

const (
	Euler Integration = iota
	RungeKutta4
	// RungeKuttaFehlberg is the embedded 4(5) method with step-size control.
	RungeKuttaFehlberg
	// RungeKuttaFehlberg4 computes the embedded pair but moves with the
	// fourth-order result.
	RungeKuttaFehlberg4
	// RungeKuttaFehlberg45 moves with the fifth-order result.
	RungeKuttaFehlberg45
)

var integrationNames = [...]string{
	Euler:                "EULER",
	RungeKutta4:          "RUNGE_KUTTA_4",
	RungeKuttaFehlberg:   "RUNGE_KUTTA_FEHLBERG",
	RungeKuttaFehlberg4:  "RUNGE_KUTTA_FEHLBERG_4",
	RungeKuttaFehlberg45: "RUNGE_KUTTA_FEHLBERG_45",
}

func (m Integration) String() string {
	if int(m) < len(integrationNames) {
		return integrationNames[m]
	}
	return fmt.Sprintf("Integration(%d)", uint8(m))
}

// ParseIntegration maps a method name to its value.
func ParseIntegration(name string) (Integration, error) {
	for i, n := range integrationNames {
		if n == name {
			return Integration(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownIntegration, name)
}

// MarshalText implements encoding.TextMarshaler.
func (m Integration) MarshalText() ([]byte, error) {
	if int(m) >= len(integrationNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownIntegration, uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Integration) UnmarshalText(b []byte) error {
	v, err := ParseIntegration(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// IsEmbedded reports whether the method produces an error estimate.
func (m Integration) IsEmbedded() bool {
	switch m {
	case RungeKuttaFehlberg, RungeKuttaFehlberg4, RungeKuttaFehlberg45:
		return true
	}
	return false
}

// SupportsTimeStepControl reports whether the method is the one meant for
// adaptive stepping.
func (m Integration) SupportsTimeStepControl() bool {
	return m == RungeKuttaFehlberg
}
