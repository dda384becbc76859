package telemetry

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/components"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	settled := components.NewMolecule(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{Y: 0.5}, 2)
	settled.ID = 17
	settled.CellID = 40
	settled.DeltaTimeOpt = 0.0004

	fresh := components.NewMolecule(r3.Vec{Z: -1}, r3.Vec{}, components.NoObject)
	fresh.ID = 18

	snapshot := &Snapshot{
		Version: SnapshotVersion,
		Seed:    42,
		Step:    1000,
		SimTime: 2.5,
		Molecules: []MoleculeState{
			NewMoleculeState(&settled),
			NewMoleculeState(&fresh),
		},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "snapshot_1000.json"); path != want {
		t.Errorf("Path mismatch: got %s, want %s", path, want)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Snapshot file not created at %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.Seed != 42 || loaded.Step != 1000 || loaded.SimTime != 2.5 {
		t.Errorf("header mismatch: got %+v", loaded)
	}
	if len(loaded.Molecules) != 2 {
		t.Fatalf("Molecules count mismatch: got %d, want 2", len(loaded.Molecules))
	}

	got := loaded.Molecules[0].Molecule()
	if got.Position != settled.Position || got.Velocity != settled.Velocity {
		t.Errorf("kinematics wrong: got %v %v, want %v %v", got.Position, got.Velocity, settled.Position, settled.Velocity)
	}
	if got.ID != 17 || got.ObjectID != 2 || got.CellID != 40 {
		t.Errorf("ids wrong: got %d/%d/%d, want 17/2/40", got.ID, got.ObjectID, got.CellID)
	}
	if got.DeltaTimeOpt != 0.0004 {
		t.Errorf("DeltaTimeOpt wrong: got %v, want 0.0004", got.DeltaTimeOpt)
	}

	restored := loaded.Molecules[1].Molecule()
	if !math.IsInf(restored.DeltaTimeOpt, 1) {
		t.Errorf("unbounded DeltaTimeOpt wrong: got %v, want +Inf", restored.DeltaTimeOpt)
	}
	if restored.ObjectID != components.NoObject {
		t.Errorf("ObjectID wrong: got %d, want %d", restored.ObjectID, components.NoObject)
	}
}

func TestLoadSnapshot_VersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Error("expected error for unknown snapshot version")
	}
}
