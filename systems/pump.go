package systems

import (
	"fmt"
	"log/slog"
	"math"
)

// Pump pushes fluid through its outlets for a fixed time after every
// StartInjection. Objects connected to it by teleporters follow its flow
// rate. A peristaltic pump steps its rate down to zero over the last part
// of each injection.
type Pump struct {
	name     string
	flowRate float64 // ml/min while injecting
	duration float64 // seconds

	rampSteps int
	rampTime  float64 // seconds, 0 stops at once

	active    bool
	end       float64
	current   float64
	rampIndex int
}

// NewPump creates a pump. A positive injectionDuration sets how long each
// injection lasts; otherwise it lasts as long as pumping injectionVolume
// litres at flowRate takes.
func NewPump(name string, flowRate, injectionDuration, injectionVolume float64) (*Pump, error) {
	duration := injectionDuration
	if duration <= 0 {
		if flowRate <= 0 || injectionVolume <= 0 {
			return nil, fmt.Errorf("pump %s: needs an injection duration or a positive flow rate and volume", name)
		}
		duration = injectionVolume / (flowRate / 60000)
	}
	return &Pump{name: name, flowRate: flowRate, duration: duration, end: math.Inf(-1)}, nil
}

// NewPeristalticPump creates a pump that delivers injectionVolume litres per
// injection, the last rampDownTime seconds of it in rampDownSteps equal
// steps of falling flow rate. The injection lasts rampDownTime/2 longer than
// pumping the volume at the full rate would.
func NewPeristalticPump(name string, flowRate, injectionVolume float64, rampDownSteps int, rampDownTime float64) (*Pump, error) {
	if flowRate <= 0 || injectionVolume <= 0 {
		return nil, fmt.Errorf("pump %s: needs a positive flow rate and volume", name)
	}
	if rampDownSteps < 1 || rampDownTime < 0 {
		return nil, fmt.Errorf("pump %s: needs at least one ramp step and a non-negative ramp time", name)
	}
	static := injectionVolume / (flowRate / 60000)
	if rampDownTime > 2*static {
		slog.Warn("ramp down longer than twice the injection, the ramp starts before the injection",
			"pump", name,
			"ramp_down_time", rampDownTime,
			"injection", static,
		)
	}
	return &Pump{
		name:      name,
		flowRate:  flowRate,
		duration:  static + rampDownTime/2,
		rampSteps: rampDownSteps,
		rampTime:  rampDownTime,
		end:       math.Inf(-1),
	}, nil
}

func (p *Pump) Name() string { return p.name }

// IsActive reports whether an injection is running.
func (p *Pump) IsActive() bool { return p.active }

// InjectionDuration returns the length of one injection in seconds.
func (p *Pump) InjectionDuration() float64 { return p.duration }

// CurrentFlowRate returns the rate last passed on to connected objects.
func (p *Pump) CurrentFlowRate() float64 { return p.current }

// StartInjection starts pumping at the current simulation time.
func (p *Pump) StartInjection(env Env) error {
	p.end = env.SimTime() + p.duration
	p.active = true
	p.rampIndex = -1
	slog.Debug("pump started", "pump", p.name, "sim_time", env.SimTime(), "until", p.end)
	return p.setFlowRate(env, p.flowRate)
}

func (p *Pump) Process(env Env, stage Stage) error {
	if stage != StagePumping || !p.active {
		return nil
	}
	t := env.SimTime()
	if t >= p.end {
		p.active = false
		slog.Debug("pump stopped", "pump", p.name, "sim_time", t)
		return p.setFlowRate(env, 0)
	}
	if p.rampTime <= 0 || t < p.end-p.rampTime {
		return nil
	}
	step := int((t - (p.end - p.rampTime)) / p.rampTime * float64(p.rampSteps))
	if step <= p.rampIndex {
		return nil
	}
	p.rampIndex = step
	return p.setFlowRate(env, p.flowRate*float64(p.rampSteps-step)/float64(p.rampSteps+1))
}

func (p *Pump) setFlowRate(env Env, rate float64) error {
	p.current = rate
	return env.Scene().ProcessChangedSourceFlowRate(p.name, rate)
}

func (p *Pump) Finalize() error { return nil }
