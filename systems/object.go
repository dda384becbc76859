package systems

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/components"
	"github.com/pthm-cable/pogona/flow"
	"github.com/pthm-cable/pogona/geom"
)

var (
	ErrUnknownObject = errors.New("systems: unknown object")
	ErrUnknownOutlet = errors.New("systems: unknown outlet")
	ErrUnknownInlet  = errors.New("systems: unknown inlet")
)

// flowRateEpsilon is the smallest flow rate that counts as flowing.
const flowRateEpsilon = 1e-20

// SubscriptionUsage decides whether an object restricts sensor dispatch to
// sensors near a molecule's cell.
type SubscriptionUsage uint8

const (
	SubscriptionsDefault SubscriptionUsage = iota
	SubscriptionsEnabled
	SubscriptionsDisabled
)

// ParseSubscriptionUsage maps USE_DEFAULT, ENABLED and DISABLED to their
// values. The empty string means USE_DEFAULT.
func ParseSubscriptionUsage(s string) (SubscriptionUsage, error) {
	switch s {
	case "", "USE_DEFAULT":
		return SubscriptionsDefault, nil
	case "ENABLED":
		return SubscriptionsEnabled, nil
	case "DISABLED":
		return SubscriptionsDisabled, nil
	}
	return 0, fmt.Errorf("systems: unknown sensor subscription setting %q", s)
}

// Outlet is a named area of an object, in the object's local frame.
type Outlet struct {
	Name string
	Zone geom.Zone
}

// ObjectOptions configures NewObject.
type ObjectOptions struct {
	Name           string
	Transformation *geom.Transformation

	// Field is a loaded vector field. Sampler computes flow instead and is
	// used when Field is nil; it is already placed in the scene.
	Field   *flow.VectorField
	Sampler flow.Sampler

	// FlowRate is the current inflow in ml/min. The field is scaled by
	// FlowRate/ReferenceFlowRate; a zero ReferenceFlowRate leaves the field
	// as loaded and FlowRate only switches it on or off.
	FlowRate          float64
	ReferenceFlowRate float64

	Inlets        []string
	Outlets       []Outlet
	Subscriptions SubscriptionUsage
}

// Object is a piece of the scene with its own flow field.
type Object struct {
	name string
	id   int

	sampler flow.Sampler
	field   *flow.Manager // nil for computed flow
	tr      *geom.Transformation

	flowRate  float64
	reference float64
	active    bool

	inlets        []string
	outlets       []Outlet
	outletGlobal  map[string]geom.Zone
	subscriptions SubscriptionUsage
}

// NewObject places a vector field, or a sampler, in the scene.
func NewObject(opts ObjectOptions) (*Object, error) {
	tr := opts.Transformation
	if tr == nil {
		tr = geom.Identity()
	}
	var (
		sampler flow.Sampler
		mgr     *flow.Manager
	)
	switch {
	case opts.Field != nil:
		var err error
		if mgr, err = flow.NewManager(opts.Field, tr); err != nil {
			return nil, fmt.Errorf("object %s: %w", opts.Name, err)
		}
		sampler = mgr
	case opts.Sampler != nil:
		sampler = opts.Sampler
	default:
		return nil, fmt.Errorf("object %s: no vector field", opts.Name)
	}

	o := &Object{
		name:          opts.Name,
		id:            components.NoObject,
		sampler:       sampler,
		field:         mgr,
		tr:            tr,
		flowRate:      opts.FlowRate,
		reference:     opts.ReferenceFlowRate,
		inlets:        append([]string(nil), opts.Inlets...),
		outlets:       append([]Outlet(nil), opts.Outlets...),
		outletGlobal:  make(map[string]geom.Zone, len(opts.Outlets)),
		subscriptions: opts.Subscriptions,
	}
	o.active = o.reference <= 0 || math.Abs(o.flowRate) > flowRateEpsilon

	for _, out := range o.outlets {
		global, err := tr.Compose(out.Zone.Transformation)
		if err != nil {
			return nil, fmt.Errorf("object %s outlet %s: %w", opts.Name, out.Name, err)
		}
		o.outletGlobal[out.Name] = geom.Zone{Shape: out.Zone.Shape, Transformation: global}
	}
	return o, nil
}

func (o *Object) Name() string { return o.name }

// ID returns the scene id, or NoObject before the object is added to a scene.
func (o *Object) ID() int { return o.id }

// Field returns the object's vector field manager, or nil when its flow is
// computed.
func (o *Object) Field() *flow.Manager { return o.field }

// Sampler returns the object's flow source.
func (o *Object) Sampler() flow.Sampler { return o.sampler }

func (o *Object) Transformation() *geom.Transformation { return o.tr }

func (o *Object) IsActive() bool { return o.active }

func (o *Object) FlowRate() float64 { return o.flowRate }

func (o *Object) Inlets() []string { return o.inlets }

// HasInlet reports whether the object declares the named inlet.
func (o *Object) HasInlet(name string) bool { return slices.Contains(o.inlets, name) }

func (o *Object) Outlets() []Outlet { return o.outlets }

func (o *Object) Subscriptions() SubscriptionUsage { return o.subscriptions }

// OutletArea returns the global zone of the named outlet.
func (o *Object) OutletArea(name string) (geom.Zone, error) {
	z, ok := o.outletGlobal[name]
	if !ok {
		return geom.Zone{}, fmt.Errorf("%w: %s on object %s", ErrUnknownOutlet, name, o.name)
	}
	return z, nil
}

// flowScale is the factor applied to the loaded field.
func (o *Object) flowScale() float64 {
	if o.reference > 0 {
		return o.flowRate / o.reference
	}
	return 1
}

// FlowAt returns the global flow vector at a global position. Inactive
// objects have no flow.
func (o *Object) FlowAt(pos r3.Vec, policy flow.Interpolation) (r3.Vec, error) {
	if !o.active {
		return r3.Vec{}, nil
	}
	v, err := o.sampler.Sample(pos, policy)
	if err != nil {
		return r3.Vec{}, fmt.Errorf("object %s: %w", o.name, err)
	}
	return r3.Scale(o.flowScale(), v), nil
}

// ClosestCellID returns the cell nearest to a global position, or NoCell
// while the object is inactive.
func (o *Object) ClosestCellID(pos r3.Vec) int {
	if !o.active {
		return components.NoCell
	}
	return o.sampler.ClosestCellID(pos)
}

// setFlowRate updates the flow rate. Any non-zero rate activates the object.
func (o *Object) setFlowRate(rate float64) {
	o.flowRate = rate
	o.active = math.Abs(rate) > flowRateEpsilon
}
