package systems

// ComponentInfo describes a component type for listings and logs.
type ComponentInfo struct {
	Type        string // Config type name
	Name        string // Display name
	Description string // What this component does
	Category    string // Grouping (e.g., "scene", "source", "sensor")
}

// ComponentRegistry holds metadata about all component types.
// This centralizes naming so the CLI listing and the build log stay in sync.
type ComponentRegistry struct {
	components []ComponentInfo
	byType     map[string]ComponentInfo
}

// NewComponentRegistry creates a registry with all known component types.
func NewComponentRegistry() *ComponentRegistry {
	reg := &ComponentRegistry{
		byType: make(map[string]ComponentInfo),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds all known component types to the registry.
// Update this when adding new component types.
func (r *ComponentRegistry) registerDefaults() {
	// Scene
	r.Register(ComponentInfo{Type: "object", Name: "Object", Description: "Places a vector field or an analytical tube in the scene", Category: "scene"})
	r.Register(ComponentInfo{Type: "pump", Name: "Pump", Description: "Drives flow through connected objects for a fixed time", Category: "scene"})
	r.Register(ComponentInfo{Type: "pump_peristaltic", Name: "Peristaltic Pump", Description: "Pumps a fixed volume and ramps its flow down at the end", Category: "scene"})

	// Molecule sources
	r.Register(ComponentInfo{Type: "injector", Name: "Injector", Description: "Spawns molecules at random points of a shape", Category: "source"})
	r.Register(ComponentInfo{Type: "spray_nozzle", Name: "Spray Nozzle", Description: "Spawns molecules with a spread initial velocity", Category: "source"})

	// Communication
	r.Register(ComponentInfo{Type: "modulation_ook", Name: "OOK Modulation", Description: "On-off keying of a pump and injector", Category: "modulation"})
	r.Register(ComponentInfo{Type: "modulation_ppm", Name: "PPM Modulation", Description: "Pulse position modulation of a pump and injector", Category: "modulation"})
	r.Register(ComponentInfo{Type: "bitstream_generator", Name: "Bitstream Generator", Description: "Feeds a bit sequence to a modulation", Category: "modulation"})

	// Sensors
	r.Register(ComponentInfo{Type: "sensor_counting", Name: "Counting Sensor", Description: "Logs the molecule count in a zone", Category: "sensor"})
	r.Register(ComponentInfo{Type: "sensor_destructing", Name: "Destructing Sensor", Description: "Removes molecules entering a zone", Category: "sensor"})
	r.Register(ComponentInfo{Type: "sensor_teleporting", Name: "Teleporting Sensor", Description: "Moves molecules from an outlet to another object", Category: "sensor"})
	r.Register(ComponentInfo{Type: "sensor_flow_rate", Name: "Flow Rate Sensor", Description: "Logs an object's flow at fixed points", Category: "sensor"})

	// Output
	r.Register(ComponentInfo{Type: "plotter_csv", Name: "Position Plotter", Description: "Writes molecule positions to CSV", Category: "output"})
}

// Register adds a component type to the registry.
func (r *ComponentRegistry) Register(info ComponentInfo) {
	r.components = append(r.components, info)
	r.byType[info.Type] = info
}

// Get returns component info by type.
func (r *ComponentRegistry) Get(typ string) (ComponentInfo, bool) {
	info, ok := r.byType[typ]
	return info, ok
}

// GetName returns the display name for a component type.
// Falls back to the type itself if not found.
func (r *ComponentRegistry) GetName(typ string) string {
	if info, ok := r.byType[typ]; ok {
		return info.Name
	}
	return typ
}

// All returns all registered component types.
func (r *ComponentRegistry) All() []ComponentInfo {
	return r.components
}

// ByCategory returns component types filtered by category.
func (r *ComponentRegistry) ByCategory(category string) []ComponentInfo {
	var result []ComponentInfo
	for _, info := range r.components {
		if info.Category == category {
			result = append(result, info)
		}
	}
	return result
}

// Categories returns all unique categories.
func (r *ComponentRegistry) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, info := range r.components {
		if !seen[info.Category] {
			seen[info.Category] = true
			cats = append(cats, info.Category)
		}
	}
	return cats
}
