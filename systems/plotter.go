package systems

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/telemetry"
)

// PositionRecord is one row of a position plot.
type PositionRecord struct {
	ID       int     `csv:"id"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
	Z        float64 `csv:"z"`
	CellID   int     `csv:"cell_id"`
	ObjectID int     `csv:"object_id"`
}

// PositionPlotter writes every molecule's position to
// <results>/<folder>/positions.csv.<step> every interval base time steps.
type PositionPlotter struct {
	name     string
	interval int
	folder   string

	records []PositionRecord
	buf     []*components.Molecule
	written int
}

func NewPositionPlotter(name string, interval int, folder string) (*PositionPlotter, error) {
	if interval < 1 {
		return nil, fmt.Errorf("plotter %s: write interval must be >= 1, got %d", name, interval)
	}
	return &PositionPlotter{name: name, interval: interval, folder: folder}, nil
}

func (p *PositionPlotter) Name() string { return p.name }

// Written returns the number of files written.
func (p *PositionPlotter) Written() int { return p.written }

func (p *PositionPlotter) Process(env Env, stage Stage) error {
	if stage != StageLogging || env.ElapsedSteps()%p.interval != 0 || env.ResultsDir() == "" {
		return nil
	}
	dir := filepath.Join(env.ResultsDir(), p.folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("plotter %s: %w", p.name, err)
	}

	p.buf = env.Molecules().Collect(p.buf[:0])
	p.records = p.records[:0]
	for _, mol := range p.buf {
		p.records = append(p.records, PositionRecord{
			ID:       mol.ID,
			X:        mol.Position.X,
			Y:        mol.Position.Y,
			Z:        mol.Position.Z,
			CellID:   mol.CellID,
			ObjectID: mol.ObjectID,
		})
	}

	path := filepath.Join(dir, fmt.Sprintf("positions.csv.%d", env.ElapsedSteps()))
	if err := telemetry.WriteCSV(path, &p.records); err != nil {
		return fmt.Errorf("plotter %s: %w", p.name, err)
	}
	p.written++
	return nil
}

func (p *PositionPlotter) Finalize() error { return nil }
