package systems

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/bits"
	"strings"
)

var (
	ErrAlreadyTransmitting = errors.New("systems: modulation is already transmitting")
	ErrInvalidChips        = errors.New("systems: chips per symbol must be a power of 2 and at least 2")
)

// FinishFunc is called once a modulation has sent the last symbol of a
// bitstream.
type FinishFunc func(env Env) error

// Modulation turns a bitstream into injections over time.
type Modulation interface {
	Name() string
	TransmitBitstream(env Env, bitstream string, finish FinishFunc) error
	IsTransmitting() bool
}

// OOKOptions configures NewModulationOOK.
type OOKOptions struct {
	Name              string
	InjectionDuration float64 // seconds the pump runs per pulse
	PauseDuration     float64 // seconds between pulses

	Injector   MoleculeSource
	Destructor *DestructingSensor // optional, only used with bursts
	Pump       *Pump

	// UseBurst spawns once per pulse instead of on every step while the
	// pump runs. The destructor is switched off during the pulse.
	UseBurst bool
}

// ModulationOOK is on-off keying: a '1' symbol starts a pump injection at
// the start of its symbol slot, a '0' symbol does nothing.
type ModulationOOK struct {
	opts OOKOptions

	transmitting bool
	start        float64
	bitstream    string
	duration     float64
	finish       FinishFunc

	injecting bool
	lastPulse int
}

func NewModulationOOK(opts OOKOptions) (*ModulationOOK, error) {
	if opts.Injector == nil || opts.Pump == nil {
		return nil, fmt.Errorf("modulation %s: needs an injector and a pump", opts.Name)
	}
	if !(opts.InjectionDuration+opts.PauseDuration > 0) {
		return nil, fmt.Errorf("modulation %s: symbol duration must be positive", opts.Name)
	}
	return &ModulationOOK{opts: opts, start: math.Inf(1), lastPulse: -1}, nil
}

func (m *ModulationOOK) Name() string { return m.opts.Name }

// SymbolDuration is the length of one symbol slot in seconds.
func (m *ModulationOOK) SymbolDuration() float64 {
	return m.opts.InjectionDuration + m.opts.PauseDuration
}

func (m *ModulationOOK) IsTransmitting() bool { return m.transmitting }

// IsInjecting reports whether a pulse is in progress.
func (m *ModulationOOK) IsInjecting() bool { return m.injecting }

// TransmitBitstream starts sending bitstream at the current simulation time.
func (m *ModulationOOK) TransmitBitstream(env Env, bitstream string, finish FinishFunc) error {
	return m.transmit(env, bitstream, bitstream, finish)
}

// transmit starts sending the given symbol sequence. raw is what the
// caller asked for and only used for logging.
func (m *ModulationOOK) transmit(env Env, raw, symbols string, finish FinishFunc) error {
	if m.transmitting {
		return fmt.Errorf("%w: %s", ErrAlreadyTransmitting, m.opts.Name)
	}
	m.transmitting = true
	m.start = env.SimTime()
	m.bitstream = symbols
	m.duration = m.SymbolDuration() * float64(len(symbols))
	m.finish = finish
	m.lastPulse = -1
	slog.Info("transmitting bitstream",
		"modulation", m.opts.Name,
		"bitstream", raw,
		"symbols", symbols,
		"sim_time", m.start,
		"duration", m.duration,
	)
	return nil
}

func (m *ModulationOOK) Process(env Env, stage Stage) error {
	if stage != StageModulation {
		return nil
	}
	if m.injecting && !m.opts.Pump.IsActive() {
		m.stopInjecting()
	}
	if math.IsInf(m.start, 1) || !m.transmitting {
		return nil
	}

	t := env.SimTime()
	if t > m.start+m.duration {
		if err := m.finishTransmission(env); err != nil {
			return err
		}
		if !m.transmitting {
			return nil
		}
	}

	pulse := int(math.Floor((t - m.start) / m.SymbolDuration()))
	if pulse >= len(m.bitstream) || m.bitstream[pulse] == '0' {
		return nil
	}
	beginning := m.start + float64(pulse)*m.SymbolDuration()
	if beginning <= t && !m.injecting && pulse > m.lastPulse {
		m.lastPulse = pulse
		return m.startInjecting(env)
	}
	return nil
}

func (m *ModulationOOK) startInjecting(env Env) error {
	m.injecting = true
	if m.opts.UseBurst {
		m.opts.Injector.InjectBurst()
		if m.opts.Destructor != nil {
			m.opts.Destructor.TurnOff()
		}
	} else {
		m.opts.Injector.TurnOn()
	}
	return m.opts.Pump.StartInjection(env)
}

func (m *ModulationOOK) stopInjecting() {
	m.injecting = false
	if m.opts.UseBurst {
		if m.opts.Destructor != nil {
			m.opts.Destructor.TurnOn()
		}
		return
	}
	m.opts.Injector.TurnOff()
}

func (m *ModulationOOK) finishTransmission(env Env) error {
	m.transmitting = false
	m.start = math.Inf(1)
	slog.Debug("bitstream sent", "modulation", m.opts.Name, "sim_time", env.SimTime())
	if m.finish == nil {
		return nil
	}
	finish := m.finish
	m.finish = nil
	return finish(env)
}

func (m *ModulationOOK) Finalize() error { return nil }

// ModulationPPM is pulse position modulation: every group of log2(chips)
// bits becomes one symbol of chips slots with a single pulse at the
// position given by the group's value.
type ModulationPPM struct {
	*ModulationOOK
	chips int
}

func NewModulationPPM(opts OOKOptions, chipsPerSymbol int) (*ModulationPPM, error) {
	if chipsPerSymbol < 2 || bits.OnesCount(uint(chipsPerSymbol)) != 1 {
		return nil, fmt.Errorf("%w: modulation %s has %d", ErrInvalidChips, opts.Name, chipsPerSymbol)
	}
	ook, err := NewModulationOOK(opts)
	if err != nil {
		return nil, err
	}
	return &ModulationPPM{ModulationOOK: ook, chips: chipsPerSymbol}, nil
}

// ChipsPerSymbol returns the number of slots per symbol.
func (m *ModulationPPM) ChipsPerSymbol() int { return m.chips }

func (m *ModulationPPM) TransmitBitstream(env Env, bitstream string, finish FinishFunc) error {
	chips, err := BitstreamToPPM(bitstream, m.chips)
	if err != nil {
		return err
	}
	return m.transmit(env, bitstream, chips, finish)
}

// BitstreamToPPM converts a bitstream to PPM chips. The last group is
// padded with zeros. For 4-PPM, "101101" becomes "0010|0001|0100".
func BitstreamToPPM(bitstream string, chipsPerSymbol int) (string, error) {
	if chipsPerSymbol < 2 || bits.OnesCount(uint(chipsPerSymbol)) != 1 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidChips, chipsPerSymbol)
	}
	perSymbol := bits.TrailingZeros(uint(chipsPerSymbol))

	var sb strings.Builder
	for i := 0; i < len(bitstream); i += perSymbol {
		symbol := 0
		for j := 0; j < perSymbol; j++ {
			symbol <<= 1
			if i+j >= len(bitstream) {
				continue
			}
			switch bitstream[i+j] {
			case '1':
				symbol |= 1
			case '0':
			default:
				return "", fmt.Errorf("systems: invalid bit %q in bitstream", bitstream[i+j])
			}
		}
		sb.WriteString(strings.Repeat("0", symbol))
		sb.WriteByte('1')
		sb.WriteString(strings.Repeat("0", chipsPerSymbol-symbol-1))
	}
	return sb.String(), nil
}
