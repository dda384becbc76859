package systems

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/pthm-cable/pogona/geom"
)

func TestBitstreamToPPM(t *testing.T) {
	tests := []struct {
		chips int
		want  string
	}{
		{2, "011001011001"},
		{4, "001000010100"},
		{8, "0000010000000100"},
	}
	for _, tt := range tests {
		got, err := BitstreamToPPM("101101", tt.chips)
		if err != nil {
			t.Fatalf("%d-PPM: %v", tt.chips, err)
		}
		if got != tt.want {
			t.Errorf("%d-PPM wrong: got %s, want %s", tt.chips, got, tt.want)
		}
	}

	for _, chips := range []int{0, 1, 3, 6} {
		if _, err := BitstreamToPPM("1", chips); !errors.Is(err, ErrInvalidChips) {
			t.Errorf("chips=%d: error wrong: got %v", chips, err)
		}
	}
	if _, err := BitstreamToPPM("12", 2); err == nil {
		t.Error("expected error for a non-binary bitstream")
	}
}

func TestASCIIToBits(t *testing.T) {
	got, err := ASCIIToBits("HI")
	if err != nil {
		t.Fatal(err)
	}
	if want := "0100100001001001"; got != want {
		t.Errorf("bits wrong: got %s, want %s", got, want)
	}
	if _, err := ASCIIToBits("hi"); err == nil {
		t.Error("expected error for lower-case characters")
	}
}

// txRig is a pump, an injector and an OOK modulation driven by a bitstream
// generator. Times are multiples of 0.25 s so they are exact.
type txRig struct {
	env        *StaticEnv
	pump       *Pump
	injector   *Injector
	destructor *DestructingSensor
	ook        *ModulationOOK
	gen        *BitstreamGenerator
	comps      []Component
}

func newTxRig(t *testing.T, bits string, repetitions int, burst bool) *txRig {
	t.Helper()
	_, env := newTestScene(t)
	env.BaseDelta = 0.25

	pump, err := NewPump("pump", 10, 0.5, 0)
	if err != nil {
		t.Fatal(err)
	}
	inj, err := NewInjector("inj", geom.Zone{Shape: geom.ShapePoint, Transformation: geom.Identity()}, nil, 1, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	destructor := NewDestructingSensor("sink", geom.Zone{Shape: geom.ShapeNone, Transformation: geom.Identity()}, true)
	ook, err := NewModulationOOK(OOKOptions{
		Name:              "ook",
		InjectionDuration: 0.5,
		PauseDuration:     0.5,
		Injector:          inj,
		Destructor:        destructor,
		Pump:              pump,
		UseBurst:          burst,
	})
	if err != nil {
		t.Fatal(err)
	}
	gen, err := NewBitstreamGenerator("gen", 0, repetitions, bits, "", ook)
	if err != nil {
		t.Fatal(err)
	}
	return &txRig{
		env:        env,
		pump:       pump,
		injector:   inj,
		destructor: destructor,
		ook:        ook,
		gen:        gen,
		comps:      []Component{gen, ook, inj, pump},
	}
}

// run notifies every stage for steps base time steps and returns the times
// at which molecules were spawned.
func (r *txRig) run(t *testing.T, steps int, each func(step int)) []float64 {
	t.Helper()
	var spawned []float64
	for k := 0; k <= steps; k++ {
		r.env.Elapsed = k
		r.env.Time = float64(k) * r.env.BaseDelta
		for _, stage := range Stages {
			for _, c := range r.comps {
				if err := c.Process(r.env, stage); err != nil {
					t.Fatalf("step %d %v %s: %v", k, stage, c.Name(), err)
				}
			}
		}
		if added, _ := r.env.Molecules().ApplyChanges(); added > 0 {
			spawned = append(spawned, r.env.Time)
		}
		if each != nil {
			each(k)
		}
	}
	return spawned
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestModulationOOK_Timeline(t *testing.T) {
	rig := newTxRig(t, "101", 1, false)
	spawned := rig.run(t, 16, nil)

	want := []float64{0.25, 0.5, 0.75, 2.25, 2.5, 2.75}
	if !floatsEqual(spawned, want) {
		t.Errorf("spawn times wrong: got %v, want %v", spawned, want)
	}
	if rig.ook.IsTransmitting() {
		t.Error("transmission should have finished")
	}
	if rig.injector.IsOn() {
		t.Error("injector left on")
	}
	if rig.gen.Repetition() != 1 {
		t.Errorf("repetition wrong: got %d, want 1", rig.gen.Repetition())
	}
}

func TestModulationOOK_Repetitions(t *testing.T) {
	rig := newTxRig(t, "101", 2, false)
	spawned := rig.run(t, 32, nil)

	// The second transmission starts in the step where the first one ends
	// (3.5 s) and its first pulse begins right away.
	want := []float64{0.25, 0.5, 0.75, 2.25, 2.5, 2.75, 3.5, 3.75, 4.0, 5.5, 5.75, 6.0}
	if !floatsEqual(spawned, want) {
		t.Errorf("spawn times wrong: got %v, want %v", spawned, want)
	}
	if rig.gen.Repetition() != 2 {
		t.Errorf("repetition wrong: got %d, want 2", rig.gen.Repetition())
	}
	if rig.ook.IsTransmitting() {
		t.Error("transmission should have finished")
	}
}

func TestModulationOOK_Burst(t *testing.T) {
	rig := newTxRig(t, "11", 1, true)
	destructorOn := map[int]bool{}
	spawned := rig.run(t, 10, func(step int) {
		destructorOn[step] = rig.destructor.IsOn()
	})

	want := []float64{0.25, 1.25}
	if !floatsEqual(spawned, want) {
		t.Errorf("spawn times wrong: got %v, want %v", spawned, want)
	}
	if destructorOn[1] || destructorOn[2] {
		t.Error("destructor should be off during the first pulse")
	}
	if !destructorOn[4] {
		t.Error("destructor should be back on after the pump stopped")
	}
}

func TestModulationOOK_AlreadyTransmitting(t *testing.T) {
	rig := newTxRig(t, "1", 1, false)
	if err := rig.ook.TransmitBitstream(rig.env, "1", nil); err != nil {
		t.Fatal(err)
	}
	if err := rig.ook.TransmitBitstream(rig.env, "1", nil); !errors.Is(err, ErrAlreadyTransmitting) {
		t.Errorf("error wrong: got %v, want ErrAlreadyTransmitting", err)
	}
}

func TestModulationPPM_Chips(t *testing.T) {
	rig := newTxRig(t, "1", 1, false)
	ppm, err := NewModulationPPM(OOKOptions{
		Name:              "ppm",
		InjectionDuration: 0.5,
		PauseDuration:     0.5,
		Injector:          rig.injector,
		Pump:              rig.pump,
	}, 4)
	if err != nil {
		t.Fatal(err)
	}
	gen, err := NewBitstreamGenerator("gen", 0, 1, "10", "", ppm)
	if err != nil {
		t.Fatal(err)
	}
	rig.comps = []Component{gen, ppm, rig.injector, rig.pump}

	// "10" is symbol 2 of 4-PPM, a pulse in the third chip: 0.25 + 2 s.
	spawned := rig.run(t, 24, nil)
	want := []float64{2.25, 2.5, 2.75}
	if !floatsEqual(spawned, want) {
		t.Errorf("spawn times wrong: got %v, want %v", spawned, want)
	}

	if _, err := NewModulationPPM(OOKOptions{Name: "bad", InjectionDuration: 1, Injector: rig.injector, Pump: rig.pump}, 3); !errors.Is(err, ErrInvalidChips) {
		t.Errorf("error wrong: got %v, want ErrInvalidChips", err)
	}
}

func TestPump_VolumeDuration(t *testing.T) {
	// 1 ml at 60 ml/min takes one second.
	p, err := NewPump("p", 60, 0, 0.001)
	if err != nil {
		t.Fatal(err)
	}
	if d := p.InjectionDuration(); d < 1-1e-12 || d > 1+1e-12 {
		t.Errorf("duration wrong: got %v, want 1", d)
	}
	if _, err := NewPump("p", 0, 0, 0.001); err == nil {
		t.Error("expected error without flow rate or duration")
	}
}

func TestBitstreamGenerator_Invalid(t *testing.T) {
	rig := newTxRig(t, "1", 1, false)
	if _, err := NewBitstreamGenerator("g", 0, 1, "10x", "", rig.ook); err == nil {
		t.Error("expected error for invalid bits")
	}
	g, err := NewBitstreamGenerator("g", 0, 1, "1", "@", rig.ook)
	if err != nil {
		t.Fatal(err)
	}
	if g.Bits() != "01000000" {
		t.Errorf("ascii bits wrong: got %s", g.Bits())
	}
}
