// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/pogona/flow"
	"github.com/pthm-cable/pogona/integrate"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds all simulation configuration parameters.
type Config struct {
	Kernel            KernelConfig            `yaml:"kernel"`
	MovementPredictor MovementPredictorConfig `yaml:"movement_predictor"`
	SensorManager     SensorManagerConfig     `yaml:"sensor_manager"`
	Telemetry         TelemetryConfig         `yaml:"telemetry"`
	Components        Components              `yaml:"components"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// KernelConfig holds the simulation loop parameters.
type KernelConfig struct {
	SimTimeLimit  float64 `yaml:"sim_time_limit"`  // seconds
	BaseDeltaTime float64 `yaml:"base_delta_time"` // seconds per base time step
	Seed          int64   `yaml:"seed"`
	ResultsDir    string  `yaml:"results_dir"`

	InterpolationMethod string `yaml:"interpolation_method"`

	UseAdaptiveTimeStepping       bool    `yaml:"use_adaptive_time_stepping"`
	AdaptiveTimeMaxErrorThreshold float64 `yaml:"adaptive_time_max_error_threshold"` // metres, .inf accepts every step
	AdaptiveTimeSafetyFactor      float64 `yaml:"adaptive_time_safety_factor"`
	AdaptiveTimeCorrectionsLimit  int     `yaml:"adaptive_time_corrections_limit"`

	// Workers > 1 advances molecules on a worker pool.
	Workers int `yaml:"workers"`
}

// MovementPredictorConfig selects the integration method.
type MovementPredictorConfig struct {
	IntegrationMethod string `yaml:"integration_method"`
}

// SensorManagerConfig holds sensor dispatch parameters.
type SensorManagerConfig struct {
	DefaultUseSensorSubscriptions bool `yaml:"default_use_sensor_subscriptions"`
	UseRangeQueries               bool `yaml:"use_range_queries"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // simulation seconds per stats window
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	WriteSnapshot       bool    `yaml:"write_snapshot"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Interpolation flow.Interpolation
	Integration   integrate.Integration
	BaseDir       string // directory relative paths in the config resolve against
	TimeSteps     int    // base time steps needed to reach SimTimeLimit
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// The file may name parent files under `inherit`; parents are applied first
// and the file itself overrides them. If path is empty, only embedded
// defaults are used.
func Load(path string) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(defaultsYAML, &root); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	baseDir := "."
	if path != "" {
		user, err := assemble(path, map[string]bool{})
		if err != nil {
			return nil, err
		}
		mergeNodes(documentBody(&root), user)
		clearUninherit(documentBody(&root))
		baseDir = filepath.Dir(path)
	}

	cfg := &Config{}
	if err := root.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Derived.BaseDir = baseDir

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration document on top of the embedded defaults.
// Inheritance is not available since there is no file to resolve against.
func Parse(data []byte) (*Config, error) {
	var root, user yaml.Node
	if err := yaml.Unmarshal(defaultsYAML, &root); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if body := documentBody(&user); body != nil {
		if inherit := popKey(body, "inherit"); inherit != nil {
			return nil, fmt.Errorf("%w: inherit needs a config file", ErrInvalid)
		}
		mergeNodes(documentBody(&root), body)
		clearUninherit(documentBody(&root))
	}

	cfg := &Config{}
	if err := root.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Derived.BaseDir = "."
	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived validates the configuration and calculates derived values.
func (c *Config) computeDerived() error {
	k := &c.Kernel
	if !(k.BaseDeltaTime > 0) || math.IsInf(k.BaseDeltaTime, 0) {
		return fmt.Errorf("%w: kernel.base_delta_time must be positive, got %v", ErrInvalid, k.BaseDeltaTime)
	}
	if k.SimTimeLimit < 0 || math.IsNaN(k.SimTimeLimit) || math.IsInf(k.SimTimeLimit, 0) {
		return fmt.Errorf("%w: kernel.sim_time_limit must be finite and >= 0, got %v", ErrInvalid, k.SimTimeLimit)
	}
	if k.Workers < 0 {
		return fmt.Errorf("%w: kernel.workers must be >= 0, got %d", ErrInvalid, k.Workers)
	}

	interp, err := flow.ParseInterpolation(k.InterpolationMethod)
	if err != nil {
		return fmt.Errorf("%w: kernel.interpolation_method: %w", ErrInvalid, err)
	}
	c.Derived.Interpolation = interp

	method, err := integrate.ParseIntegration(c.MovementPredictor.IntegrationMethod)
	if err != nil {
		return fmt.Errorf("%w: movement_predictor.integration_method: %w", ErrInvalid, err)
	}
	c.Derived.Integration = method

	if k.UseAdaptiveTimeStepping {
		if !method.IsEmbedded() {
			return fmt.Errorf("%w: adaptive time stepping needs an embedded method: %w", ErrInvalid, integrate.ErrNotAdaptive)
		}
		if !(k.AdaptiveTimeMaxErrorThreshold > 0) {
			return fmt.Errorf("%w: kernel.adaptive_time_max_error_threshold must be positive", ErrInvalid)
		}
		if !(k.AdaptiveTimeSafetyFactor > 0) || math.IsInf(k.AdaptiveTimeSafetyFactor, 0) {
			return fmt.Errorf("%w: kernel.adaptive_time_safety_factor must be positive", ErrInvalid)
		}
		if k.AdaptiveTimeCorrectionsLimit < 0 {
			return fmt.Errorf("%w: kernel.adaptive_time_corrections_limit must be >= 0", ErrInvalid)
		}
	}

	// Same step count as counting elapsed*base up to the limit.
	steps := int(math.Ceil(k.SimTimeLimit / k.BaseDeltaTime))
	for steps > 0 && float64(steps-1)*k.BaseDeltaTime >= k.SimTimeLimit {
		steps--
	}
	for float64(steps)*k.BaseDeltaTime < k.SimTimeLimit {
		steps++
	}
	c.Derived.TimeSteps = steps

	if err := c.Components.validate(); err != nil {
		return err
	}
	return nil
}

// ResolvePath returns p relative to the directory of the loaded config file.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Derived.BaseDir, p)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
