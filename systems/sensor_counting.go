package systems

import (
	"fmt"
	"path/filepath"

	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/geom"
	"github.com/pthm-cable/pogona/telemetry"
)

// CountRecord is one row of a counting sensor log.
type CountRecord struct {
	SimTime       float64 `csv:"sim_time"`
	MoleculeCount int     `csv:"molecule_count"`
}

// CountingSensor counts the molecules inside its zone after every base
// time step and logs the count.
type CountingSensor struct {
	name      string
	zone      geom.Zone
	logFolder string

	count   int
	log     *telemetry.CSVLog
	history []CountRecord
	keep    bool
}

// NewCountingSensor creates a counting sensor logging to
// <results>/<logFolder>/sensor[<name>].csv.
func NewCountingSensor(name string, zone geom.Zone, logFolder string) *CountingSensor {
	return &CountingSensor{name: name, zone: zone, logFolder: logFolder}
}

// KeepHistory makes the sensor retain every logged record in memory.
func (s *CountingSensor) KeepHistory() { s.keep = true }

// History returns the records logged so far, if KeepHistory was called.
func (s *CountingSensor) History() []CountRecord { return s.history }

func (s *CountingSensor) Name() string    { return s.name }
func (s *CountingSensor) Zone() geom.Zone { return s.zone }

// Count returns the molecules counted in the current step.
func (s *CountingSensor) Count() int { return s.count }

func (s *CountingSensor) BeforeMove(env Env, mol *components.Molecule) error { return nil }

func (s *CountingSensor) AfterMove(env Env, mol *components.Molecule) error {
	if s.zone.Contains(mol.Position) {
		s.count++
	}
	return nil
}

func (s *CountingSensor) Process(env Env, stage Stage) error {
	if stage != StageLogging {
		return nil
	}
	rec := CountRecord{SimTime: env.SimTime(), MoleculeCount: s.count}
	s.count = 0
	if s.keep {
		s.history = append(s.history, rec)
	}
	if env.ResultsDir() == "" {
		return nil
	}
	if s.log == nil {
		path := filepath.Join(env.ResultsDir(), s.logFolder, fmt.Sprintf("sensor[%s].csv", s.name))
		log, err := telemetry.NewCSVLog(path)
		if err != nil {
			return fmt.Errorf("sensor %s: %w", s.name, err)
		}
		s.log = log
	}
	return s.log.Append([]CountRecord{rec})
}

func (s *CountingSensor) Finalize() error {
	return s.log.Close()
}
