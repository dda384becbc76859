package systems

import (
	"fmt"

	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/geom"
)

// TeleportingSensor hands molecules that reach an outlet of one object over
// to the flow field of another object. Objects do not need to touch.
type TeleportingSensor struct {
	name   string
	link   TeleportLink
	zone   geom.Zone
	source *Object // nil when the source is a pump
	target *Object
}

// NewTeleportingSensor connects link.Source/link.Outlet to
// link.Target/link.Inlet and registers the link with the scene so flow
// rate changes follow it. A source that is not an object in the scene gets
// an empty zone. The target must declare link.Inlet.
func NewTeleportingSensor(name string, link TeleportLink, scene *SceneManager) (*TeleportingSensor, error) {
	target, err := scene.ObjectByName(link.Target)
	if err != nil {
		return nil, err
	}
	if !target.HasInlet(link.Inlet) {
		return nil, fmt.Errorf("%w: %q on object %s, has %v", ErrUnknownInlet, link.Inlet, link.Target, target.Inlets())
	}
	s := &TeleportingSensor{
		name:   name,
		link:   link,
		zone:   geom.Zone{Shape: geom.ShapeNone, Transformation: geom.Identity()},
		target: target,
	}
	if source, err := scene.ObjectByName(link.Source); err == nil {
		zone, err := source.OutletArea(link.Outlet)
		if err != nil {
			return nil, err
		}
		s.source = source
		s.zone = zone
	}
	scene.RegisterTeleporter(link)
	return s, nil
}

func (s *TeleportingSensor) Name() string       { return s.name }
func (s *TeleportingSensor) Zone() geom.Zone    { return s.zone }
func (s *TeleportingSensor) Link() TeleportLink { return s.link }

func (s *TeleportingSensor) BeforeMove(env Env, mol *components.Molecule) error {
	if s.source == nil || mol.ObjectID != s.source.ID() {
		return nil
	}
	if s.zone.Contains(mol.Position) {
		env.Scene().Teleport(mol, s.target)
	}
	return nil
}

func (s *TeleportingSensor) AfterMove(env Env, mol *components.Molecule) error { return nil }
