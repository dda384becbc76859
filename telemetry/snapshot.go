package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/components"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the molecule population at the end of a base time step.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`

	Step    int     `json:"step"`
	SimTime float64 `json:"sim_time"`

	Molecules []MoleculeState `json:"molecules"`
}

// MoleculeState holds one molecule's complete state.
type MoleculeState struct {
	ID       int        `json:"id"`
	ObjectID int        `json:"object_id"`
	CellID   int        `json:"cell_id"`
	Position [3]float64 `json:"position"`
	Velocity [3]float64 `json:"velocity"`

	// DeltaTimeOpt is omitted while still unbounded, JSON has no infinity.
	DeltaTimeOpt *float64 `json:"delta_time_opt,omitempty"`
}

// NewMoleculeState captures a molecule.
func NewMoleculeState(m *components.Molecule) MoleculeState {
	s := MoleculeState{
		ID:       m.ID,
		ObjectID: m.ObjectID,
		CellID:   m.CellID,
		Position: [3]float64{m.Position.X, m.Position.Y, m.Position.Z},
		Velocity: [3]float64{m.Velocity.X, m.Velocity.Y, m.Velocity.Z},
	}
	if !math.IsInf(m.DeltaTimeOpt, 0) && !math.IsNaN(m.DeltaTimeOpt) {
		dt := m.DeltaTimeOpt
		s.DeltaTimeOpt = &dt
	}
	return s
}

// Molecule converts the state back into a component. The ID is kept so
// callers can tell restored molecules apart; the molecule manager assigns
// fresh IDs on insertion.
func (s MoleculeState) Molecule() components.Molecule {
	m := components.NewMolecule(
		r3.Vec{X: s.Position[0], Y: s.Position[1], Z: s.Position[2]},
		r3.Vec{X: s.Velocity[0], Y: s.Velocity[1], Z: s.Velocity[2]},
		s.ObjectID,
	)
	m.ID = s.ID
	m.CellID = s.CellID
	if s.DeltaTimeOpt != nil {
		m.DeltaTimeOpt = *s.DeltaTimeOpt
	}
	return m
}

// SaveSnapshot writes a snapshot to dir.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", snapshot.Step))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
