package systems

import (
	"fmt"
	"log/slog"
	"strings"
)

// BitstreamGenerator hands a fixed bit sequence to a modulation once the
// simulation passes its start time, and again after every finished
// transmission until it has been sent the configured number of times.
type BitstreamGenerator struct {
	name        string
	startTime   float64
	repetitions int
	bits        string
	modulation  Modulation

	repetition int
}

// NewBitstreamGenerator creates a generator. A non-empty asciiSequence
// replaces bitSequence with the 8-bit codes of its characters, which must
// lie between '@' (64) and '_' (95) so every byte starts with "010".
func NewBitstreamGenerator(name string, startTime float64, repetitions int, bitSequence, asciiSequence string, modulation Modulation) (*BitstreamGenerator, error) {
	bits := bitSequence
	if asciiSequence != "" {
		var err error
		bits, err = ASCIIToBits(asciiSequence)
		if err != nil {
			return nil, fmt.Errorf("bitstream generator %s: %w", name, err)
		}
		slog.Info("converted ascii sequence", "generator", name, "ascii", asciiSequence, "bits", bits)
	}
	if strings.Trim(bits, "01") != "" {
		return nil, fmt.Errorf("bitstream generator %s: bit sequence %q may only contain 0 and 1", name, bits)
	}
	return &BitstreamGenerator{
		name:        name,
		startTime:   startTime,
		repetitions: repetitions,
		bits:        bits,
		modulation:  modulation,
	}, nil
}

// ASCIIToBits encodes every character as 8 bits, most significant first.
func ASCIIToBits(s string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 64 || c > 95 {
			return "", fmt.Errorf("character %q (%d) is outside 64..95", c, c)
		}
		fmt.Fprintf(&sb, "%08b", c)
	}
	return sb.String(), nil
}

func (g *BitstreamGenerator) Name() string { return g.name }

// Bits returns the sequence being sent.
func (g *BitstreamGenerator) Bits() string { return g.bits }

// Repetition returns how many transmissions have been started.
func (g *BitstreamGenerator) Repetition() int { return g.repetition }

func (g *BitstreamGenerator) Process(env Env, stage Stage) error {
	if stage != StageBitstreaming {
		return nil
	}
	if env.SimTime() > g.startTime && g.repetition == 0 {
		return g.transmit(env)
	}
	return nil
}

func (g *BitstreamGenerator) transmit(env Env) error {
	g.repetition++
	return g.modulation.TransmitBitstream(env, g.bits, g.finished)
}

func (g *BitstreamGenerator) finished(env Env) error {
	if g.repetition < g.repetitions {
		return g.transmit(env)
	}
	return nil
}

func (g *BitstreamGenerator) Finalize() error { return nil }
