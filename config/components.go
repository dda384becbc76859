package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Component type names accepted under `components.<name>.type`.
const (
	TypeObject             = "object"
	TypeInjector           = "injector"
	TypeSprayNozzle        = "spray_nozzle"
	TypePump               = "pump"
	TypePumpPeristaltic    = "pump_peristaltic"
	TypeModulationOOK      = "modulation_ook"
	TypeModulationPPM      = "modulation_ppm"
	TypeBitstreamGenerator = "bitstream_generator"
	TypeSensorCounting     = "sensor_counting"
	TypeSensorDestructing  = "sensor_destructing"
	TypeSensorTeleporting  = "sensor_teleporting"
	TypeSensorFlowRate     = "sensor_flow_rate"
	TypePlotterCSV         = "plotter_csv"
)

// ComponentSpec is the typed configuration of one scene component.
type ComponentSpec interface {
	header() *Header
}

// Header carries the fields every component has.
type Header struct {
	Name string `yaml:"-"` // key under `components`
	Type string `yaml:"type"`
}

func (h *Header) header() *Header { return h }

// Placement positions a component in the scene. Rotation is in radians.
type Placement struct {
	Translation   [3]float64 `yaml:"translation"`
	Rotation      [3]float64 `yaml:"rotation"`
	Scale         [3]float64 `yaml:"scale"`
	RotationOrder string     `yaml:"rotation_order,omitempty"`
}

func unitPlacement() Placement {
	return Placement{Scale: [3]float64{1, 1, 1}}
}

// ObjectSpec configures an object carrying a flow field.
type ObjectSpec struct {
	Header    `yaml:",inline"`
	Placement `yaml:",inline"`

	Mesh           string         `yaml:"mesh,omitempty"` // gob vector-field cache
	Synthetic      *SyntheticSpec `yaml:"synthetic,omitempty"`
	AnalyticalTube *TubeSpec      `yaml:"analytical_tube,omitempty"`

	FlowRate          float64 `yaml:"flow_rate"`           // ml/min
	ReferenceFlowRate float64 `yaml:"reference_flow_rate"` // flow rate the mesh was computed for, 0 for a static field

	Inlets                 []string     `yaml:"inlets,omitempty"`
	Outlets                []OutletSpec `yaml:"outlets,omitempty"`
	UseSensorSubscriptions string       `yaml:"use_sensor_subscriptions"`
}

// OutletSpec places an outlet area in the object's local frame.
type OutletSpec struct {
	Name      string `yaml:"name"`
	Shape     string `yaml:"shape"`
	Placement `yaml:",inline"`
}

// SyntheticSpec generates a regular-grid vector field instead of loading one.
type SyntheticSpec struct {
	Kind      string     `yaml:"kind"` // uniform, rotation or channel
	Min       [3]float64 `yaml:"min"`
	Max       [3]float64 `yaml:"max"`
	Cells     [3]int     `yaml:"cells"`
	Velocity  [3]float64 `yaml:"velocity,omitempty"`
	Omega     float64    `yaml:"omega,omitempty"`
	MaxSpeed  float64    `yaml:"max_speed,omitempty"`
	HalfWidth float64    `yaml:"half_width,omitempty"`
}

// TubeSpec computes Poiseuille flow through a straight pipe along the
// object's local z axis instead of loading a mesh. The object gets an inlet
// named "inlet" and an outlet named "outlet" covering outlet_depth metres
// past the pipe's end.
type TubeSpec struct {
	Radius      float64 `yaml:"radius"`       // m
	Length      float64 `yaml:"length"`       // m
	OutletDepth float64 `yaml:"outlet_depth"` // m, 0 means a tenth of the length
}

// InjectorSpec configures an injector spawning molecules in a shape.
type InjectorSpec struct {
	Header    `yaml:",inline"`
	Placement `yaml:",inline"`

	Shape           string `yaml:"shape"`
	AttachedObject  string `yaml:"attached_object"`
	InjectionAmount int    `yaml:"injection_amount"`
	Seed            string `yaml:"seed"`
}

// SprayNozzleSpec configures an injector giving molecules a velocity along
// its local y axis.
type SprayNozzleSpec struct {
	Header    `yaml:",inline"`
	Placement `yaml:",inline"`

	AttachedObject    string  `yaml:"attached_object"`
	InjectionAmount   int     `yaml:"injection_amount"`
	Velocity          float64 `yaml:"velocity"`           // m/s
	VelocitySigma     float64 `yaml:"velocity_sigma"`     // m/s
	DistributionSigma float64 `yaml:"distribution_sigma"` // degrees
	Seed              string  `yaml:"seed"`
}

// PumpSpec configures a timed pump.
type PumpSpec struct {
	Header `yaml:",inline"`

	FlowRate          float64 `yaml:"flow_rate"`          // ml/min while injecting
	InjectionDuration float64 `yaml:"injection_duration"` // seconds, wins over injection_volume
	InjectionVolume   float64 `yaml:"injection_volume"`   // litres
}

// PumpPeristalticSpec configures a pump whose flow steps down to zero at
// the end of every injection.
type PumpPeristalticSpec struct {
	Header `yaml:",inline"`

	FlowRate        float64 `yaml:"flow_rate"`        // ml/min before the ramp
	InjectionVolume float64 `yaml:"injection_volume"` // litres
	RampDownSteps   int     `yaml:"ramp_down_steps"`
	RampDownTime    float64 `yaml:"ramp_down_time"` // seconds
}

// ModulationOOKSpec configures on-off keying.
type ModulationOOKSpec struct {
	Header `yaml:",inline"`

	InjectionDuration  float64 `yaml:"injection_duration"`
	PauseDuration      float64 `yaml:"pause_duration"`
	AttachedInjector   string  `yaml:"attached_injector"`
	AttachedDestructor string  `yaml:"attached_destructor"`
	AttachedPump       string  `yaml:"attached_pump"`
	UseBurst           bool    `yaml:"use_burst"`
}

// ModulationPPMSpec configures pulse-position modulation on top of OOK.
type ModulationPPMSpec struct {
	ModulationOOKSpec `yaml:",inline"`

	ChipsPerSymbol int `yaml:"chips_per_symbol"`
}

// BitstreamGeneratorSpec configures the bit source of a modulation.
type BitstreamGeneratorSpec struct {
	Header `yaml:",inline"`

	StartTime          float64 `yaml:"start_time"`
	Repetitions        int     `yaml:"repetitions"`
	BitSequence        string  `yaml:"bit_sequence"`
	ASCIISequence      string  `yaml:"ascii_sequence"`
	AttachedModulation string  `yaml:"attached_modulation"`
}

// SensorCountingSpec configures a counting sensor.
type SensorCountingSpec struct {
	Header    `yaml:",inline"`
	Placement `yaml:",inline"`

	Shape     string `yaml:"shape"`
	LogFolder string `yaml:"log_folder"`
}

// SensorDestructingSpec configures a sensor removing molecules.
type SensorDestructingSpec struct {
	Header    `yaml:",inline"`
	Placement `yaml:",inline"`

	Shape    string `yaml:"shape"`
	TurnedOn bool   `yaml:"turned_on"`
}

// SensorTeleportingSpec configures the link from an object's outlet to
// another object's inlet.
type SensorTeleportingSpec struct {
	Header `yaml:",inline"`

	SourceObject     string `yaml:"source_object"`
	SourceOutletName string `yaml:"source_outlet_name"`
	TargetObject     string `yaml:"target_object"`
	TargetInletName  string `yaml:"target_inlet_name"`
}

// SensorFlowRateSpec configures a sensor logging the flow of an object at
// fixed points.
type SensorFlowRateSpec struct {
	Header    `yaml:",inline"`
	Placement `yaml:",inline"`

	Shape                    string       `yaml:"shape"`
	LogFolder                string       `yaml:"log_folder"`
	NumSamplePoints          int          `yaml:"num_sample_points"` // drawn from shape
	CustomSamplePointsGlobal [][3]float64 `yaml:"custom_sample_points_global,omitempty"`
	Seed                     string       `yaml:"seed"`
	AttachedObject           string       `yaml:"attached_object"`
}

// PlotterCSVSpec configures the molecule position writer.
type PlotterCSVSpec struct {
	Header `yaml:",inline"`

	WriteInterval int    `yaml:"write_interval"`
	Folder        string `yaml:"folder"`
}

// newSpec returns the defaults for a component type.
func newSpec(typ string) (ComponentSpec, error) {
	switch typ {
	case TypeObject:
		return &ObjectSpec{Placement: unitPlacement(), UseSensorSubscriptions: "USE_DEFAULT"}, nil
	case TypeInjector:
		return &InjectorSpec{Placement: unitPlacement(), Shape: "POINT"}, nil
	case TypeSprayNozzle:
		return &SprayNozzleSpec{
			Placement:         unitPlacement(),
			InjectionAmount:   100,
			Velocity:          1000,
			VelocitySigma:     100,
			DistributionSigma: 2.5,
		}, nil
	case TypePump:
		return &PumpSpec{FlowRate: 10, InjectionVolume: 0.001}, nil
	case TypePumpPeristaltic:
		return &PumpPeristalticSpec{FlowRate: 10, InjectionVolume: 0.001, RampDownSteps: 1}, nil
	case TypeModulationOOK:
		return &ModulationOOKSpec{}, nil
	case TypeModulationPPM:
		return &ModulationPPMSpec{ChipsPerSymbol: 2}, nil
	case TypeBitstreamGenerator:
		return &BitstreamGeneratorSpec{Repetitions: 1, BitSequence: "1"}, nil
	case TypeSensorCounting:
		return &SensorCountingSpec{Placement: unitPlacement(), Shape: "CUBE", LogFolder: "sensor_data"}, nil
	case TypeSensorDestructing:
		return &SensorDestructingSpec{Placement: unitPlacement(), Shape: "CUBE", TurnedOn: true}, nil
	case TypeSensorTeleporting:
		return &SensorTeleportingSpec{}, nil
	case TypeSensorFlowRate:
		return &SensorFlowRateSpec{Placement: unitPlacement(), Shape: "NONE", LogFolder: "sensor_data", NumSamplePoints: 1}, nil
	case TypePlotterCSV:
		return &PlotterCSVSpec{WriteInterval: 1}, nil
	}
	return nil, fmt.Errorf("%w: unknown component type %q", ErrInvalid, typ)
}

// Component is one named entry under `components`.
type Component struct {
	Name string
	Spec ComponentSpec
}

// Type returns the component type name.
func (c Component) Type() string { return c.Spec.header().Type }

// Components keeps the configured components in file order, which is also
// the order they are built and notified in.
type Components []Component

// UnmarshalYAML decodes the `components` mapping, dispatching on `type`.
func (cs *Components) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*cs = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: components must be a mapping of name to definition", ErrInvalid)
	}
	out := make(Components, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, def := node.Content[i].Value, node.Content[i+1]
		var head Header
		if err := def.Decode(&head); err != nil {
			return fmt.Errorf("component %q: %w", name, err)
		}
		spec, err := newSpec(head.Type)
		if err != nil {
			return fmt.Errorf("component %q: %w", name, err)
		}
		if err := def.Decode(spec); err != nil {
			return fmt.Errorf("component %q: %w", name, err)
		}
		spec.header().Name = name
		out = append(out, Component{Name: name, Spec: spec})
	}
	*cs = out
	return nil
}

// MarshalYAML encodes the components back into an ordered mapping.
func (cs Components) MarshalYAML() (any, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, c := range cs {
		var def yaml.Node
		if err := def.Encode(c.Spec); err != nil {
			return nil, fmt.Errorf("component %q: %w", c.Name, err)
		}
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Name},
			&def,
		)
	}
	return m, nil
}

// Get returns the component with the given name.
func (cs Components) Get(name string) (Component, bool) {
	for _, c := range cs {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// OfType returns the components of one type in file order.
func (cs Components) OfType(typ string) []Component {
	var out []Component
	for _, c := range cs {
		if c.Type() == typ {
			out = append(out, c)
		}
	}
	return out
}

// validate checks that references between components resolve to a
// component of a fitting type.
func (cs Components) validate() error {
	ref := func(owner, field, name string, optional bool, types ...string) error {
		if name == "" {
			if optional {
				return nil
			}
			return fmt.Errorf("%w: component %q: %s is required", ErrInvalid, owner, field)
		}
		target, ok := cs.Get(name)
		if !ok {
			return fmt.Errorf("%w: component %q: %s %q not found", ErrInvalid, owner, field, name)
		}
		for _, t := range types {
			if target.Type() == t {
				return nil
			}
		}
		return fmt.Errorf("%w: component %q: %s %q is a %s, want one of %v", ErrInvalid, owner, field, name, target.Type(), types)
	}

	for _, c := range cs {
		var err error
		switch s := c.Spec.(type) {
		case *ObjectSpec:
			err = validateObject(c.Name, s)
		case *InjectorSpec:
			err = ref(c.Name, "attached_object", s.AttachedObject, true, TypeObject)
			if err == nil && s.InjectionAmount < 0 {
				err = fmt.Errorf("%w: injector %q: injection_amount must be >= 0", ErrInvalid, c.Name)
			}
		case *SprayNozzleSpec:
			err = ref(c.Name, "attached_object", s.AttachedObject, true, TypeObject)
			if err == nil && s.InjectionAmount < 0 {
				err = fmt.Errorf("%w: spray nozzle %q: injection_amount must be >= 0", ErrInvalid, c.Name)
			}
		case *ModulationOOKSpec:
			err = validateModulation(c.Name, s, ref)
		case *ModulationPPMSpec:
			err = validateModulation(c.Name, &s.ModulationOOKSpec, ref)
		case *BitstreamGeneratorSpec:
			err = ref(c.Name, "attached_modulation", s.AttachedModulation, false, TypeModulationOOK, TypeModulationPPM)
		case *SensorTeleportingSpec:
			err = ref(c.Name, "source_object", s.SourceObject, false, TypeObject, TypePump, TypePumpPeristaltic)
			if err == nil {
				err = ref(c.Name, "target_object", s.TargetObject, false, TypeObject)
			}
		case *SensorFlowRateSpec:
			err = ref(c.Name, "attached_object", s.AttachedObject, false, TypeObject)
			if err == nil && s.NumSamplePoints < 0 {
				err = fmt.Errorf("%w: flow rate sensor %q: num_sample_points must be >= 0", ErrInvalid, c.Name)
			}
		case *PumpPeristalticSpec:
			if s.FlowRate <= 0 || s.InjectionVolume <= 0 || s.RampDownSteps < 1 || s.RampDownTime < 0 {
				err = fmt.Errorf("%w: peristaltic pump %q: needs positive flow_rate and injection_volume, ramp_down_steps >= 1 and ramp_down_time >= 0", ErrInvalid, c.Name)
			}
		case *PlotterCSVSpec:
			if s.WriteInterval < 1 {
				err = fmt.Errorf("%w: plotter %q: write_interval must be >= 1", ErrInvalid, c.Name)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func validateModulation(name string, s *ModulationOOKSpec, ref func(owner, field, name string, optional bool, types ...string) error) error {
	if err := ref(name, "attached_injector", s.AttachedInjector, false, TypeInjector, TypeSprayNozzle); err != nil {
		return err
	}
	if err := ref(name, "attached_pump", s.AttachedPump, false, TypePump, TypePumpPeristaltic); err != nil {
		return err
	}
	if err := ref(name, "attached_destructor", s.AttachedDestructor, true, TypeSensorDestructing); err != nil {
		return err
	}
	if s.InjectionDuration+s.PauseDuration <= 0 {
		return fmt.Errorf("%w: modulation %q: injection_duration + pause_duration must be positive", ErrInvalid, name)
	}
	return nil
}

// validateObject requires exactly one source of flow.
func validateObject(name string, s *ObjectSpec) error {
	sources := 0
	if s.Mesh != "" {
		sources++
	}
	if s.Synthetic != nil {
		sources++
	}
	if s.AnalyticalTube != nil {
		sources++
		if s.AnalyticalTube.Radius <= 0 || s.AnalyticalTube.Length <= 0 || s.AnalyticalTube.OutletDepth < 0 {
			return fmt.Errorf("%w: object %q: analytical_tube needs positive radius and length", ErrInvalid, name)
		}
	}
	if sources != 1 {
		return fmt.Errorf("%w: object %q needs exactly one of mesh, synthetic or analytical_tube", ErrInvalid, name)
	}
	return nil
}
