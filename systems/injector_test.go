package systems

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/config"
	"github.com/pthm-cable/pogona/geom"
)

func TestInjector_SpawnsInZone(t *testing.T) {
	scene, env := newTestScene(t, ObjectOptions{Name: "tank", Field: boxField(t, r3.Vec{X: 1})})
	tank, _ := scene.ObjectByName("tank")

	zone := geom.Zone{Shape: geom.ShapeSphere, Transformation: placed(t, r3.Vec{X: 0.3}, r3.Vec{X: 0.4, Y: 0.4, Z: 0.4})}
	inj, err := NewInjector("inj", zone, tank, 25, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatal(err)
	}

	// Off: nothing happens.
	if err := inj.Process(env, StageSpawning); err != nil {
		t.Fatal(err)
	}
	if adds, _ := env.Molecules().Pending(); adds != 0 {
		t.Fatalf("switched-off injector spawned %d", adds)
	}

	inj.InjectBurst()
	for _, stage := range Stages {
		if err := inj.Process(env, stage); err != nil {
			t.Fatal(err)
		}
	}
	env.Molecules().ApplyChanges()
	if env.Molecules().Count() != 25 {
		t.Fatalf("burst count wrong: got %d, want 25", env.Molecules().Count())
	}
	for _, mol := range env.Molecules().Collect(nil) {
		if !zone.Contains(mol.Position) {
			t.Errorf("molecule %d outside the injector zone: %v", mol.ID, mol.Position)
		}
		if mol.ObjectID != tank.ID() {
			t.Errorf("molecule %d object wrong: got %d", mol.ID, mol.ObjectID)
		}
		if mol.CellID == components.NoCell {
			t.Errorf("molecule %d has no cell", mol.ID)
		}
		if mol.Velocity != (r3.Vec{}) {
			t.Errorf("molecule %d velocity wrong: got %v", mol.ID, mol.Velocity)
		}
	}

	// The burst was used up.
	if err := inj.Process(env, StageSpawning); err != nil {
		t.Fatal(err)
	}
	if adds, _ := env.Molecules().Pending(); adds != 0 {
		t.Errorf("burst spawned twice: %d pending", adds)
	}

	if _, err := NewInjector("bad", geom.Zone{Shape: geom.ShapeNone, Transformation: geom.Identity()}, nil, 1, nil); err == nil {
		t.Error("expected error for an empty shape")
	}
}

func TestSprayNozzle(t *testing.T) {
	_, env := newTestScene(t)
	env.BaseDelta = 0.01

	tr, err := geom.NewTransformation(r3.Vec{X: 1}, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, geom.OrderXYZ)
	if err != nil {
		t.Fatal(err)
	}
	n := NewSprayNozzle(SprayNozzleOptions{
		Name:              "nozzle",
		Transformation:    tr,
		Amount:            40,
		Velocity:          2,
		VelocitySigma:     0,
		DistributionSigma: 0,
	}, rand.New(rand.NewSource(5)))

	n.TurnOn()
	if err := n.Process(env, StageSpawning); err != nil {
		t.Fatal(err)
	}
	env.Molecules().ApplyChanges()

	mols := env.Molecules().Collect(nil)
	if len(mols) != 40 {
		t.Fatalf("count wrong: got %d, want 40", len(mols))
	}
	for i, mol := range mols {
		// Without spread every molecule leaves along +y at full speed.
		if math.Abs(mol.Velocity.Y-2) > 1e-12 || math.Abs(mol.Velocity.X) > 1e-12 || math.Abs(mol.Velocity.Z) > 1e-12 {
			t.Errorf("molecule %d velocity wrong: got %v", i, mol.Velocity)
		}
		wantY := 2 * float64(i) * env.BaseDelta / 40
		if math.Abs(mol.Position.X-1) > 1e-12 || math.Abs(mol.Position.Y-wantY) > 1e-12 {
			t.Errorf("molecule %d position wrong: got %v, want (1, %g, 0)", i, mol.Position, wantY)
		}
		if mol.ObjectID != components.NoObject {
			t.Errorf("molecule %d object wrong: got %d", i, mol.ObjectID)
		}
	}

	n.TurnOff()
	if err := n.Process(env, StageSpawning); err != nil {
		t.Fatal(err)
	}
	if adds, _ := env.Molecules().Pending(); adds != 0 {
		t.Errorf("switched-off nozzle spawned %d", adds)
	}
}

func TestPositionPlotter(t *testing.T) {
	_, env := newTestScene(t)
	env.Results = t.TempDir()
	addMolecules(env, components.NoObject, r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: -1})

	p, err := NewPositionPlotter("plot", 2, "positions")
	if err != nil {
		t.Fatal(err)
	}
	for step := 0; step <= 4; step++ {
		env.Elapsed = step
		if err := p.Process(env, StageLogging); err != nil {
			t.Fatal(err)
		}
	}
	if p.Written() != 3 {
		t.Errorf("files written wrong: got %d, want 3", p.Written())
	}

	data, err := os.ReadFile(filepath.Join(env.Results, "positions", "positions.csv.4"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{
		"id,x,y,z,cell_id,object_id",
		"0,1,2,3,-1,-1",
		"1,-1,0,0,-1,-1",
	}
	if len(lines) != len(want) {
		t.Fatalf("lines wrong: got %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d wrong: got %q, want %q", i, lines[i], want[i])
		}
	}
	if _, err := os.Stat(filepath.Join(env.Results, "positions", "positions.csv.1")); !os.IsNotExist(err) {
		t.Error("plotter wrote outside its interval")
	}

	if _, err := NewPositionPlotter("bad", 0, ""); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestComponentRegistry_CoversConfigTypes(t *testing.T) {
	reg := NewComponentRegistry()
	types := []string{
		config.TypeObject, config.TypeInjector, config.TypeSprayNozzle, config.TypePump,
		config.TypePumpPeristaltic, config.TypeModulationOOK, config.TypeModulationPPM,
		config.TypeBitstreamGenerator, config.TypeSensorCounting, config.TypeSensorDestructing,
		config.TypeSensorTeleporting, config.TypeSensorFlowRate, config.TypePlotterCSV,
	}
	for _, typ := range types {
		if _, ok := reg.Get(typ); !ok {
			t.Errorf("type %s not registered", typ)
		}
	}
	if len(reg.All()) != len(types) {
		t.Errorf("registry size wrong: got %d, want %d", len(reg.All()), len(types))
	}
	if got := reg.GetName("laser"); got != "laser" {
		t.Errorf("fallback name wrong: got %s", got)
	}
	if len(reg.ByCategory("sensor")) != 4 {
		t.Errorf("sensor category wrong: got %d", len(reg.ByCategory("sensor")))
	}
	if len(reg.Categories()) != 5 {
		t.Errorf("categories wrong: got %v", reg.Categories())
	}
}
