package systems

import (
	"fmt"
	"math/rand"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/geom"
	"github.com/pthm-cable/pogona/telemetry"
)

// FlowRecord is the flow at one sample point of a flow rate sensor.
type FlowRecord struct {
	SimTime float64 `csv:"sim_time"`
	Point   int     `csv:"point"`
	X       float64 `csv:"x"`
	Y       float64 `csv:"y"`
	Z       float64 `csv:"z"`
	FlowX   float64 `csv:"flow_x"`
	FlowY   float64 `csv:"flow_y"`
	FlowZ   float64 `csv:"flow_z"`
}

// FlowSamplePoints returns custom, which is already global, followed by n
// points drawn from zone and placed in the scene. A zone of shape NONE adds
// no points.
func FlowSamplePoints(zone geom.Zone, n int, custom []r3.Vec, rng *rand.Rand) ([]r3.Vec, error) {
	points := append([]r3.Vec(nil), custom...)
	if zone.Shape == geom.ShapeNone || n == 0 {
		return points, nil
	}
	local, err := zone.Shape.RandomPoints(n, rng)
	if err != nil {
		return nil, err
	}
	return append(points, zone.Transformation.ApplyToPoints(local)...), nil
}

// FlowRateSensor samples the flow of one object at fixed points after every
// base time step and logs it, one row per point. It does not look at
// molecules.
type FlowRateSensor struct {
	name      string
	object    *Object
	points    []r3.Vec
	logFolder string

	log     *telemetry.CSVLog
	last    []FlowRecord
	history []FlowRecord
	keep    bool
}

// NewFlowRateSensor creates a sensor logging the flow of object at global
// points to <results>/<logFolder>/sensor[<name>].csv.
func NewFlowRateSensor(name string, object *Object, points []r3.Vec, logFolder string) (*FlowRateSensor, error) {
	if object == nil {
		return nil, fmt.Errorf("flow rate sensor %s: %w", name, ErrUnknownObject)
	}
	return &FlowRateSensor{
		name:      name,
		object:    object,
		points:    points,
		logFolder: logFolder,
	}, nil
}

// KeepHistory makes the sensor retain every logged record in memory.
func (s *FlowRateSensor) KeepHistory() { s.keep = true }

// History returns the records logged so far, if KeepHistory was called.
func (s *FlowRateSensor) History() []FlowRecord { return s.history }

// Latest returns the records of the most recent step.
func (s *FlowRateSensor) Latest() []FlowRecord { return s.last }

// Points returns the global sample points.
func (s *FlowRateSensor) Points() []r3.Vec { return s.points }

func (s *FlowRateSensor) Name() string { return s.name }

func (s *FlowRateSensor) Process(env Env, stage Stage) error {
	if stage != StageLogging {
		return nil
	}
	policy := env.Scene().Interpolation()
	s.last = s.last[:0]
	for i, p := range s.points {
		v, err := s.object.FlowAt(p, policy)
		if err != nil {
			return fmt.Errorf("flow rate sensor %s: %w", s.name, err)
		}
		s.last = append(s.last, FlowRecord{
			SimTime: env.SimTime(),
			Point:   i,
			X:       p.X,
			Y:       p.Y,
			Z:       p.Z,
			FlowX:   v.X,
			FlowY:   v.Y,
			FlowZ:   v.Z,
		})
	}
	if s.keep {
		s.history = append(s.history, s.last...)
	}
	if env.ResultsDir() == "" || len(s.last) == 0 {
		return nil
	}
	if s.log == nil {
		path := filepath.Join(env.ResultsDir(), s.logFolder, fmt.Sprintf("sensor[%s].csv", s.name))
		log, err := telemetry.NewCSVLog(path)
		if err != nil {
			return fmt.Errorf("flow rate sensor %s: %w", s.name, err)
		}
		s.log = log
	}
	return s.log.Append(s.last)
}

func (s *FlowRateSensor) Finalize() error {
	return s.log.Close()
}
