package systems

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/flow"
)

// outletKey identifies an outlet of a flow source.
type outletKey struct {
	source string
	outlet string
}

// TeleportLink connects an outlet of a source (an object or a pump) to an
// inlet of a target object.
type TeleportLink struct {
	Source string
	Outlet string
	Target string
	Inlet  string
}

// SceneManager holds the objects of the scene and answers flow queries by
// object id.
type SceneManager struct {
	objects       []*Object
	byName        map[string]*Object
	interpolation flow.Interpolation

	links     map[outletKey][]TeleportLink
	teleports int
}

// NewSceneManager creates an empty scene sampling flow with the given
// interpolation policy.
func NewSceneManager(interpolation flow.Interpolation) *SceneManager {
	return &SceneManager{
		byName:        make(map[string]*Object),
		interpolation: interpolation,
		links:         make(map[outletKey][]TeleportLink),
	}
}

// AddObject assigns the next object id and adds the object to the scene.
func (s *SceneManager) AddObject(o *Object) (int, error) {
	if _, dup := s.byName[o.name]; dup {
		return components.NoObject, fmt.Errorf("scene: object %s added twice", o.name)
	}
	o.id = len(s.objects)
	s.objects = append(s.objects, o)
	s.byName[o.name] = o
	return o.id, nil
}

// Objects returns every object in id order.
func (s *SceneManager) Objects() []*Object { return s.objects }

// Object returns the object with the given id, or nil.
func (s *SceneManager) Object(id int) *Object {
	if id < 0 || id >= len(s.objects) {
		return nil
	}
	return s.objects[id]
}

// ObjectByName returns the named object.
func (s *SceneManager) ObjectByName(name string) (*Object, error) {
	o, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, name)
	}
	return o, nil
}

// Interpolation returns the policy used for flow queries.
func (s *SceneManager) Interpolation() flow.Interpolation { return s.interpolation }

// FlowAt returns the flow of object objectID at a global position. A
// molecule outside every object sees no flow.
func (s *SceneManager) FlowAt(objectID int, pos r3.Vec, t float64) (r3.Vec, error) {
	if objectID == components.NoObject {
		return r3.Vec{}, nil
	}
	o := s.Object(objectID)
	if o == nil {
		return r3.Vec{}, fmt.Errorf("%w: id %d", ErrUnknownObject, objectID)
	}
	v, err := o.FlowAt(pos, s.interpolation)
	if err != nil {
		return r3.Vec{}, err
	}
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) {
		return r3.Vec{}, fmt.Errorf("%w: object %s at %v, t=%g", flow.ErrNaNFlow, o.name, pos, t)
	}
	return v, nil
}

// ClosestCellID returns the cell of object objectID nearest to pos, or
// NoCell if there is no such object or it is inactive.
func (s *SceneManager) ClosestCellID(objectID int, pos r3.Vec) int {
	o := s.Object(objectID)
	if o == nil {
		return components.NoCell
	}
	return o.ClosestCellID(pos)
}

// RegisterTeleporter records that flow leaving link.Source through
// link.Outlet enters link.Target through link.Inlet.
func (s *SceneManager) RegisterTeleporter(link TeleportLink) {
	key := outletKey{source: link.Source, outlet: link.Outlet}
	s.links[key] = append(s.links[key], link)
}

// Teleporters returns the links leaving the given outlet.
func (s *SceneManager) Teleporters(source, outlet string) []TeleportLink {
	return s.links[outletKey{source: source, outlet: outlet}]
}

// Teleport moves a molecule into the target object's flow field.
func (s *SceneManager) Teleport(mol *components.Molecule, target *Object) {
	mol.ObjectID = target.id
	mol.CellID = target.ClosestCellID(mol.Position)
	s.teleports++
}

// TakeTeleports returns the number of teleports since the last call.
func (s *SceneManager) TakeTeleports() int {
	n := s.teleports
	s.teleports = 0
	return n
}

// ProcessChangedOutletFlowRate forwards a new flow rate leaving an outlet
// to every object connected to it. Each object is updated at most once per
// change, so looped pipes terminate.
func (s *SceneManager) ProcessChangedOutletFlowRate(source, outlet string, rate float64) error {
	return s.propagate(s.links[outletKey{source: source, outlet: outlet}], rate, map[string]bool{source: true})
}

// ProcessChangedSourceFlowRate forwards a new flow rate through every
// outlet of source. Pumps use this since all their outlets carry the same
// flow.
func (s *SceneManager) ProcessChangedSourceFlowRate(source string, rate float64) error {
	var links []TeleportLink
	for key, l := range s.links {
		if key.source == source {
			links = append(links, l...)
		}
	}
	return s.propagate(links, rate, map[string]bool{source: true})
}

func (s *SceneManager) propagate(links []TeleportLink, rate float64, visited map[string]bool) error {
	for _, link := range links {
		if visited[link.Target] {
			continue
		}
		visited[link.Target] = true
		target, err := s.ObjectByName(link.Target)
		if err != nil {
			return fmt.Errorf("teleporter %s/%s: %w", link.Source, link.Outlet, err)
		}
		target.setFlowRate(rate)
		for _, out := range target.outlets {
			if err := s.propagate(s.links[outletKey{source: target.name, outlet: out.Name}], rate, visited); err != nil {
				return err
			}
		}
	}
	return nil
}
