package flow

import "fmt"

// Interpolation selects how flow is estimated between cell centres.
type Interpolation uint8

const (
	NearestNeighbor Interpolation = iota
	Shepard
	ModifiedShepard
	ModifiedShepardLinear
	ModifiedShepardSquared
	ModifiedShepardCubed
	ModifiedShepardFourth
)

var interpolationNames = [...]string{
	NearestNeighbor:        "NEAREST_NEIGHBOR",
	Shepard:                "SHEPARD",
	ModifiedShepard:        "MODIFIED_SHEPARD",
	ModifiedShepardLinear:  "MODIFIED_SHEPARD_LINEAR",
	ModifiedShepardSquared: "MODIFIED_SHEPARD_SQUARED",
	ModifiedShepardCubed:   "MODIFIED_SHEPARD_CUBED",
	ModifiedShepardFourth:  "MODIFIED_SHEPARD_FOURTH",
}

func (i Interpolation) String() string {
	if int(i) < len(interpolationNames) {
		return interpolationNames[i]
	}
	return fmt.Sprintf("Interpolation(%d)", uint8(i))
}

// ParseInterpolation maps a method name to its value.
func ParseInterpolation(name string) (Interpolation, error) {
	for i, n := range interpolationNames {
		if n == name {
			return Interpolation(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownInterpolation, name)
}

// MarshalText implements encoding.TextMarshaler.
func (i Interpolation) MarshalText() ([]byte, error) {
	if int(i) >= len(interpolationNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInterpolation, uint8(i))
	}
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Interpolation) UnmarshalText(b []byte) error {
	v, err := ParseInterpolation(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// shepardPower returns the weight exponent of the modified Shepard variants.
func (i Interpolation) shepardPower() (float64, bool) {
	switch i {
	case ModifiedShepard, ModifiedShepardLinear:
		return 1, true
	case ModifiedShepardSquared:
		return 2, true
	case ModifiedShepardCubed:
		return 3, true
	case ModifiedShepardFourth:
		return 4, true
	}
	return 0, false
}
