package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/pogona/flow"
	"github.com/pthm-cable/pogona/integrate"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Kernel.BaseDeltaTime != 0.0025 {
		t.Errorf("BaseDeltaTime wrong: got %v, want 0.0025", cfg.Kernel.BaseDeltaTime)
	}
	if !math.IsInf(cfg.Kernel.AdaptiveTimeMaxErrorThreshold, 1) {
		t.Errorf("threshold wrong: got %v, want +Inf", cfg.Kernel.AdaptiveTimeMaxErrorThreshold)
	}
	if cfg.Derived.Interpolation != flow.ModifiedShepard {
		t.Errorf("Interpolation wrong: got %v, want %v", cfg.Derived.Interpolation, flow.ModifiedShepard)
	}
	if cfg.Derived.Integration != integrate.RungeKutta4 {
		t.Errorf("Integration wrong: got %v, want %v", cfg.Derived.Integration, integrate.RungeKutta4)
	}
	if cfg.Derived.TimeSteps != 400 {
		t.Errorf("TimeSteps wrong: got %d, want 400", cfg.Derived.TimeSteps)
	}
	if len(cfg.Components) != 0 {
		t.Errorf("Components wrong: got %d, want 0", len(cfg.Components))
	}
}

const sceneYAML = `
kernel:
  sim_time_limit: 0.8
  interpolation_method: SHEPARD
movement_predictor:
  integration_method: RUNGE_KUTTA_FEHLBERG
components:
  tube:
    type: object
    synthetic: {kind: uniform, min: [-1, -1, -1], max: [1, 1, 1], cells: [4, 4, 4], velocity: [0, 0, 0.01]}
    flow_rate: 5
    reference_flow_rate: 5
    outlets:
      - {name: outlet, shape: CYLINDER, translation: [0, 0, 0.9], scale: [2, 2, 0.2]}
  pump:
    type: pump
    injection_duration: 0.5
  injector:
    type: injector
    shape: SPHERE
    attached_object: tube
    injection_amount: 10
  ook:
    type: modulation_ook
    injection_duration: 0.1
    pause_duration: 0.1
    attached_injector: injector
    attached_pump: pump
  bits:
    type: bitstream_generator
    bit_sequence: "1011"
    attached_modulation: ook
  counter:
    type: sensor_counting
    translation: [0, 0, 0.5]
`

func TestParse_Components(t *testing.T) {
	cfg, err := Parse([]byte(sceneYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Derived.Interpolation != flow.Shepard {
		t.Errorf("Interpolation wrong: got %v, want %v", cfg.Derived.Interpolation, flow.Shepard)
	}

	wantOrder := []string{"tube", "pump", "injector", "ook", "bits", "counter"}
	if len(cfg.Components) != len(wantOrder) {
		t.Fatalf("component count wrong: got %d, want %d", len(cfg.Components), len(wantOrder))
	}
	for i, name := range wantOrder {
		if cfg.Components[i].Name != name {
			t.Errorf("component %d wrong: got %s, want %s", i, cfg.Components[i].Name, name)
		}
	}

	tube := cfg.Components[0].Spec.(*ObjectSpec)
	if tube.Scale != [3]float64{1, 1, 1} {
		t.Errorf("default scale wrong: got %v", tube.Scale)
	}
	if tube.UseSensorSubscriptions != "USE_DEFAULT" {
		t.Errorf("subscriptions default wrong: got %q", tube.UseSensorSubscriptions)
	}
	if len(tube.Outlets) != 1 || tube.Outlets[0].Scale != [3]float64{2, 2, 0.2} {
		t.Errorf("outlet wrong: got %+v", tube.Outlets)
	}

	pump := cfg.Components[1].Spec.(*PumpSpec)
	if pump.FlowRate != 10 || pump.InjectionDuration != 0.5 {
		t.Errorf("pump wrong: got %+v", pump)
	}

	bits := cfg.Components[4].Spec.(*BitstreamGeneratorSpec)
	if bits.Repetitions != 1 || bits.BitSequence != "1011" {
		t.Errorf("bitstream wrong: got %+v", bits)
	}

	counter := cfg.Components[5].Spec.(*SensorCountingSpec)
	if counter.LogFolder != "sensor_data" || counter.Name != "counter" {
		t.Errorf("counter wrong: got %+v", counter)
	}

	if got := len(cfg.Components.OfType(TypeObject)); got != 1 {
		t.Errorf("OfType wrong: got %d, want 1", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown interpolation", "kernel: {interpolation_method: CUBIC}"},
		{"unknown integration", "movement_predictor: {integration_method: LEAPFROG}"},
		{"adaptive with RK4", "kernel: {use_adaptive_time_stepping: true}"},
		{"zero delta", "kernel: {base_delta_time: 0}"},
		{"unknown component type", "components: {x: {type: laser}}"},
		{"missing reference", "components: {inj: {type: injector, attached_object: nowhere}}"},
		{"wrong reference type", `components:
  p: {type: pump}
  inj: {type: injector, attached_object: p}`},
		{"object without field", "components: {o: {type: object}}"},
		{"object with two fields", `components:
  o: {type: object, mesh: a.gob, analytical_tube: {radius: 0.001, length: 0.05}}`},
		{"tube without radius", "components: {o: {type: object, analytical_tube: {length: 0.05}}}"},
		{"flow sensor without object", "components: {f: {type: sensor_flow_rate}}"},
		{"peristaltic pump without ramp steps", "components: {p: {type: pump_peristaltic, ramp_down_steps: 0}}"},
		{"bad plotter interval", "components: {plot: {type: plotter_csv, write_interval: 0}}"},
		{"inherit without file", "inherit: base.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error wrong: got %v, want ErrInvalid", err)
			}
		})
	}
}

func TestParse_AnalyticalComponents(t *testing.T) {
	cfg, err := Parse([]byte(`components:
  tube:
    type: object
    flow_rate: 5
    analytical_tube: {radius: 0.00075, length: 0.05}
  pump: {type: pump_peristaltic, flow_rate: 5, ramp_down_steps: 4, ramp_down_time: 2}
  flow:
    type: sensor_flow_rate
    attached_object: tube
    custom_sample_points_global: [[0, 0, 0.01]]
  ook:
    type: modulation_ook
    injection_duration: 1
    attached_injector: inj
    attached_pump: pump
  inj: {type: injector, attached_object: tube}
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	tube := cfg.Components[0].Spec.(*ObjectSpec)
	if tube.AnalyticalTube == nil || tube.AnalyticalTube.Radius != 0.00075 || tube.AnalyticalTube.OutletDepth != 0 {
		t.Errorf("tube wrong: got %+v", tube.AnalyticalTube)
	}
	pump := cfg.Components[1].Spec.(*PumpPeristalticSpec)
	if pump.InjectionVolume != 0.001 || pump.RampDownSteps != 4 || pump.RampDownTime != 2 {
		t.Errorf("peristaltic pump wrong: got %+v", pump)
	}
	sensor := cfg.Components[2].Spec.(*SensorFlowRateSpec)
	if sensor.Shape != "NONE" || sensor.NumSamplePoints != 1 || sensor.LogFolder != "sensor_data" {
		t.Errorf("flow sensor defaults wrong: got %+v", sensor)
	}
	if len(sensor.CustomSamplePointsGlobal) != 1 || sensor.CustomSamplePointsGlobal[0] != [3]float64{0, 0, 0.01} {
		t.Errorf("custom points wrong: got %v", sensor.CustomSamplePointsGlobal)
	}
}

func TestParse_AdaptiveNeedsEmbedded(t *testing.T) {
	_, err := Parse([]byte("kernel: {use_adaptive_time_stepping: true}"))
	if !errors.Is(err, integrate.ErrNotAdaptive) {
		t.Errorf("error wrong: got %v, want ErrNotAdaptive", err)
	}
}

func TestLoad_InheritChain(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "scenes")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "base.yaml", `
kernel:
  seed: 7
  sim_time_limit: 2
components:
  plot:
    type: plotter_csv
    write_interval: 10
  kill:
    type: sensor_destructing
`)
	writeFile(t, dir, "rkf.yaml", `
movement_predictor:
  integration_method: RUNGE_KUTTA_FEHLBERG
`)
	path := writeFile(t, sub, "run.yaml", `
inherit: [../base.yaml, ../rkf.yaml]
kernel:
  sim_time_limit: 0.5
components:
  uninherit: kill
  plot:
    folder: positions
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Kernel.Seed != 7 {
		t.Errorf("inherited seed wrong: got %d, want 7", cfg.Kernel.Seed)
	}
	if cfg.Kernel.SimTimeLimit != 0.5 {
		t.Errorf("overridden limit wrong: got %v, want 0.5", cfg.Kernel.SimTimeLimit)
	}
	if cfg.Derived.Integration != integrate.RungeKuttaFehlberg {
		t.Errorf("second parent not applied: got %v", cfg.Derived.Integration)
	}
	if _, ok := cfg.Components.Get("kill"); ok {
		t.Error("uninherited component still present")
	}
	plot, ok := cfg.Components.Get("plot")
	if !ok {
		t.Fatal("inherited component missing")
	}
	ps := plot.Spec.(*PlotterCSVSpec)
	if ps.WriteInterval != 10 || ps.Folder != "positions" {
		t.Errorf("merged component wrong: got %+v", ps)
	}
	if cfg.Derived.BaseDir != sub {
		t.Errorf("BaseDir wrong: got %s, want %s", cfg.Derived.BaseDir, sub)
	}
	if got := cfg.ResolvePath("mesh.gob"); got != filepath.Join(sub, "mesh.gob") {
		t.Errorf("ResolvePath wrong: got %s", got)
	}
}

func TestLoad_InheritCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "inherit: b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "inherit: a.yaml\n")

	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("cycle error wrong: got %v, want ErrInvalid", err)
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(sceneYAML))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reloading written config failed: %v", err)
	}
	if len(again.Components) != len(cfg.Components) {
		t.Fatalf("component count wrong: got %d, want %d", len(again.Components), len(cfg.Components))
	}
	for i := range cfg.Components {
		if again.Components[i].Name != cfg.Components[i].Name || again.Components[i].Type() != cfg.Components[i].Type() {
			t.Errorf("component %d wrong: got %s/%s, want %s/%s", i,
				again.Components[i].Name, again.Components[i].Type(),
				cfg.Components[i].Name, cfg.Components[i].Type())
		}
	}
	if again.Kernel.SimTimeLimit != 0.8 {
		t.Errorf("SimTimeLimit wrong: got %v, want 0.8", again.Kernel.SimTimeLimit)
	}
}

func TestCfg_PanicsBeforeInit(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Cfg()
}

func TestInit(t *testing.T) {
	saved := global
	defer func() { global = saved }()

	MustInit("")
	if Cfg().Kernel.Seed != 1 {
		t.Errorf("seed wrong: got %d, want 1", Cfg().Kernel.Seed)
	}
}
