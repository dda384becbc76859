package systems

import (
	"sort"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/pogona/components"
)

// MoleculeManager owns every molecule in the simulation. Molecules live in
// an ECS world; additions and removals are queued and only take effect in
// ApplyChanges, so sensors and injectors may request them while molecules
// are being iterated.
type MoleculeManager struct {
	world  *ecs.World
	mapper *ecs.Map1[components.Molecule]
	filter *ecs.Filter1[components.Molecule]

	byID   map[int]ecs.Entity
	nextID int

	pendingAdd     []components.Molecule
	pendingDestroy []int
}

// NewMoleculeManager creates an empty molecule manager.
func NewMoleculeManager() *MoleculeManager {
	world := ecs.NewWorld()
	return &MoleculeManager{
		world:  world,
		mapper: ecs.NewMap1[components.Molecule](world),
		filter: ecs.NewFilter1[components.Molecule](world),
		byID:   make(map[int]ecs.Entity),
	}
}

// AddMolecule queues a molecule for insertion. Its ID is assigned when the
// queue is applied.
func (m *MoleculeManager) AddMolecule(mol components.Molecule) {
	m.pendingAdd = append(m.pendingAdd, mol)
}

// DestroyMolecule queues the molecule with the given id for removal.
func (m *MoleculeManager) DestroyMolecule(id int) {
	m.pendingDestroy = append(m.pendingDestroy, id)
}

// Pending returns the number of queued insertions and removals.
func (m *MoleculeManager) Pending() (adds, destroys int) {
	return len(m.pendingAdd), len(m.pendingDestroy)
}

// ApplyChanges performs all queued removals, then all queued insertions.
// Removing an id twice or an id that does not exist is a no-op.
func (m *MoleculeManager) ApplyChanges() (added, destroyed int) {
	for _, id := range m.pendingDestroy {
		e, ok := m.byID[id]
		if !ok {
			continue
		}
		m.world.RemoveEntity(e)
		delete(m.byID, id)
		destroyed++
	}
	m.pendingDestroy = m.pendingDestroy[:0]

	for i := range m.pendingAdd {
		mol := m.pendingAdd[i]
		mol.ID = m.nextID
		m.nextID++
		m.byID[mol.ID] = m.mapper.NewEntity(&mol)
		added++
	}
	m.pendingAdd = m.pendingAdd[:0]
	return added, destroyed
}

// Count returns the number of live molecules.
func (m *MoleculeManager) Count() int { return len(m.byID) }

// NextID returns the id the next inserted molecule will receive.
func (m *MoleculeManager) NextID() int { return m.nextID }

// Get returns the live molecule with the given id, or nil.
// The pointer is only valid until the next ApplyChanges.
func (m *MoleculeManager) Get(id int) *components.Molecule {
	e, ok := m.byID[id]
	if !ok {
		return nil
	}
	return m.mapper.Get(e)
}

// Each calls fn for every live molecule. Iteration stops at the first
// error, which is returned.
func (m *MoleculeManager) Each(fn func(mol *components.Molecule) error) error {
	query := m.filter.Query()
	for query.Next() {
		if err := fn(query.Get()); err != nil {
			query.Close()
			return err
		}
	}
	return nil
}

// Collect appends pointers to every live molecule to buf, ordered by id.
// The pointers stay valid until the next ApplyChanges.
func (m *MoleculeManager) Collect(buf []*components.Molecule) []*components.Molecule {
	start := len(buf)
	query := m.filter.Query()
	for query.Next() {
		buf = append(buf, query.Get())
	}
	sorted := buf[start:]
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return buf
}

// IDs returns the ids of all live molecules in ascending order.
func (m *MoleculeManager) IDs() []int {
	ids := make([]int, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
