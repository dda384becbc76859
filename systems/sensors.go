package systems

import (
	"log/slog"

	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/geom"
)

// Sensor observes molecules around every move.
type Sensor interface {
	Name() string
	Zone() geom.Zone
	BeforeMove(env Env, mol *components.Molecule) error
	AfterMove(env Env, mol *components.Molecule) error
}

// SensorManagerOptions configures NewSensorManager.
type SensorManagerOptions struct {
	// DefaultUseSubscriptions applies to objects set to USE_DEFAULT.
	DefaultUseSubscriptions bool
	// UseRangeQueries narrows the cells tested per sensor with a kd-tree
	// range query instead of testing every cell.
	UseRangeQueries bool
}

// SensorManager dispatches move events to sensors. With subscriptions, a
// molecule only reaches the sensors whose zone contains the centre of the
// molecule's current cell.
type SensorManager struct {
	opts    SensorManagerOptions
	sensors []Sensor

	// subscriptions[objectID][cellID] lists the sensors for that cell.
	subscriptions map[int][][]Sensor
}

// NewSensorManager creates a sensor manager without sensors.
func NewSensorManager(opts SensorManagerOptions) *SensorManager {
	return &SensorManager{
		opts:          opts,
		subscriptions: make(map[int][][]Sensor),
	}
}

// Register adds a sensor. Subscriptions must be rebuilt afterwards.
func (sm *SensorManager) Register(s Sensor) {
	sm.sensors = append(sm.sensors, s)
}

// Sensors returns every registered sensor in registration order.
func (sm *SensorManager) Sensors() []Sensor { return sm.sensors }

// wantsSubscriptions resolves the object's subscription setting.
func (sm *SensorManager) wantsSubscriptions(o *Object) bool {
	switch o.Subscriptions() {
	case SubscriptionsEnabled:
		return true
	case SubscriptionsDisabled:
		return false
	default:
		return sm.opts.DefaultUseSubscriptions
	}
}

// BuildSubscriptions computes the per-cell sensor lists of every object in
// the scene.
func (sm *SensorManager) BuildSubscriptions(scene *SceneManager) {
	sm.subscriptions = make(map[int][][]Sensor, len(scene.Objects()))
	for _, o := range scene.Objects() {
		if !sm.wantsSubscriptions(o) {
			continue
		}
		field := o.Sampler()
		if field.Len() == 0 {
			continue
		}
		cells := make([][]Sensor, field.Len())
		centres := field.CellCentresGlobal()
		total := 0
		for _, s := range sm.sensors {
			zone := s.Zone()
			if zone.Shape == geom.ShapeNone || zone.Transformation == nil {
				continue
			}
			var candidates []int
			if sm.opts.UseRangeQueries {
				candidates = field.CellIDsWithin(zone.Transformation.Translation(), zone.BoundingRadius())
			} else {
				candidates = make([]int, len(centres))
				for i := range candidates {
					candidates[i] = i
				}
			}
			for _, id := range candidates {
				if zone.Contains(centres[id]) {
					cells[id] = append(cells[id], s)
					total++
				}
			}
		}
		sm.subscriptions[o.ID()] = cells
		slog.Debug("sensor subscriptions built",
			"object", o.Name(),
			"cells", len(cells),
			"subscriptions", total,
		)
	}
}

// SensorsFor returns the sensors a molecule is dispatched to. Molecules
// outside any object, in an inactive object, or in an object without
// subscriptions reach every sensor.
func (sm *SensorManager) SensorsFor(scene *SceneManager, mol *components.Molecule) []Sensor {
	if mol.ObjectID == components.NoObject || mol.CellID == components.NoCell {
		return sm.sensors
	}
	if o := scene.Object(mol.ObjectID); o == nil || !o.IsActive() {
		return sm.sensors
	}
	cells, ok := sm.subscriptions[mol.ObjectID]
	if !ok || mol.CellID >= len(cells) {
		return sm.sensors
	}
	return cells[mol.CellID]
}

// BeforeMove notifies the molecule's sensors that it is about to move.
func (sm *SensorManager) BeforeMove(env Env, mol *components.Molecule) error {
	for _, s := range sm.SensorsFor(env.Scene(), mol) {
		if err := s.BeforeMove(env, mol); err != nil {
			return err
		}
	}
	return nil
}

// AfterMove notifies the molecule's sensors that it has moved.
func (sm *SensorManager) AfterMove(env Env, mol *components.Molecule) error {
	for _, s := range sm.SensorsFor(env.Scene(), mol) {
		if err := s.AfterMove(env, mol); err != nil {
			return err
		}
	}
	return nil
}
