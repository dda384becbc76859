package flow

import "errors"

var (
	// ErrNaNFlow is returned when sampling produced a NaN component.
	ErrNaNFlow = errors.New("flow: sampled flow contains NaN")
	// ErrUnknownInterpolation is returned for interpolation values outside the enum.
	ErrUnknownInterpolation = errors.New("flow: unknown interpolation method")
	// ErrIndexMismatch is returned when the spatial index does not cover the
	// field one-to-one.
	ErrIndexMismatch = errors.New("flow: spatial index does not match vector field")
	// ErrInvalidField is returned by NewVectorField for inconsistent input.
	ErrInvalidField = errors.New("flow: invalid vector field")
)
