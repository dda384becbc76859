package telemetry

// Collector accumulates events within windows of base time steps and
// produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationSteps int
	dt                  float64

	// Current window tracking
	windowStartStep int

	// Event counters for current window
	spawned     int
	destroyed   int
	teleported  int
	moves       int
	subSteps    int
	corrections int
	exhausted   int
	speeds      []float64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per base time step (used for step-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	stepsPerWindow := 1
	if dt > 0 {
		stepsPerWindow = int(windowDurationSec/dt + 0.5)
	}
	if stepsPerWindow < 1 {
		stepsPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationSteps: stepsPerWindow,
		dt:                  dt,
	}
}

// RecordSpawned records molecules entering the world.
func (c *Collector) RecordSpawned(n int) {
	c.spawned += n
}

// RecordDestroyed records molecules leaving the world.
func (c *Collector) RecordDestroyed(n int) {
	c.destroyed += n
}

// RecordTeleport records a molecule handed over to another object.
func (c *Collector) RecordTeleport() {
	c.teleported++
}

// RecordMove records one molecule advanced over a base time step.
// displacement is the distance travelled in that step.
func (c *Collector) RecordMove(subSteps, corrections int, exhausted bool, displacement float64) {
	c.moves++
	c.subSteps += subSteps
	c.corrections += corrections
	if exhausted {
		c.exhausted++
	}
	if c.dt > 0 {
		c.speeds = append(c.speeds, displacement/c.dt)
	}
}

// ShouldFlush returns true if enough steps have passed to flush the window.
func (c *Collector) ShouldFlush(currentStep int) bool {
	return currentStep-c.windowStartStep >= c.windowDurationSteps
}

// Flush produces a WindowStats and resets counters for the next window.
// The caller must provide:
// - currentStep: the number of elapsed base time steps
// - molecules: current molecule count
// - dtOpts: suggested step sizes of the live molecules
func (c *Collector) Flush(currentStep, molecules int, dtOpts []float64) WindowStats {
	var rate float64
	if c.moves > 0 {
		rate = float64(c.subSteps) / float64(c.moves)
	}

	dtMean, dtP10, dtP50, dtP90 := ComputeStats(dtOpts)
	speedMean, speedStd, speedP90 := ComputeSpreadStats(c.speeds)

	stats := WindowStats{
		WindowStartStep: c.windowStartStep,
		WindowEndStep:   currentStep,
		SimTime:         float64(currentStep) * c.dt,

		Molecules: molecules,

		Spawned:    c.spawned,
		Destroyed:  c.destroyed,
		Teleported: c.teleported,

		Moves:       c.moves,
		SubSteps:    c.subSteps,
		Corrections: c.corrections,
		Exhausted:   c.exhausted,
		SubStepRate: rate,

		DtOptMean: dtMean,
		DtOptP10:  dtP10,
		DtOptP50:  dtP50,
		DtOptP90:  dtP90,

		SpeedMean: speedMean,
		SpeedStd:  speedStd,
		SpeedP90:  speedP90,
	}

	// Reset for next window
	c.windowStartStep = currentStep
	c.spawned = 0
	c.destroyed = 0
	c.teleported = 0
	c.moves = 0
	c.subSteps = 0
	c.corrections = 0
	c.exhausted = 0
	c.speeds = c.speeds[:0]

	return stats
}

// WindowDurationSteps returns the number of base time steps per window.
func (c *Collector) WindowDurationSteps() int {
	return c.windowDurationSteps
}
