// Package main tunes the adaptive time stepping parameters of a scene.
package main

import (
	"math"

	"github.com/pthm-cable/pogona/config"
	"github.com/pthm-cable/pogona/integrate"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters. The
// error threshold is searched on a log10 scale.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "safety_factor", Path: "kernel.adaptive_time_safety_factor", Min: 0.3, Max: 0.98, Default: 0.85},
			{Name: "log10_error_threshold", Path: "kernel.adaptive_time_max_error_threshold", Min: -10, Max: -3, Default: -6},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig switches cfg to adaptive stepping with the given values. A
// method without an error estimate is replaced by Runge-Kutta-Fehlberg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	if !cfg.Derived.Integration.IsEmbedded() {
		cfg.Derived.Integration = integrate.RungeKuttaFehlberg
		cfg.MovementPredictor.IntegrationMethod = integrate.RungeKuttaFehlberg.String()
	}
	cfg.Kernel.UseAdaptiveTimeStepping = true
	cfg.Kernel.AdaptiveTimeSafetyFactor = clamped[0]
	cfg.Kernel.AdaptiveTimeMaxErrorThreshold = math.Pow(10, clamped[1])
}

// ExtractFromConfig extracts current parameter values from a Config struct.
// An unbounded threshold maps to the upper end of the search range.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	threshold := pv.Specs[1].Max
	if t := cfg.Kernel.AdaptiveTimeMaxErrorThreshold; t > 0 && !math.IsInf(t, 1) {
		threshold = math.Log10(t)
	}
	return pv.Clamp([]float64{
		cfg.Kernel.AdaptiveTimeSafetyFactor,
		threshold,
	})
}
