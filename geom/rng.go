package geom

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// SeedMode selects where a component's random number generator comes from.
type SeedMode uint8

const (
	// InheritShared uses the kernel's shared generator.
	InheritShared SeedMode = iota
	// OwnSeed creates a private generator from a fixed seed.
	OwnSeed
	// Random creates a private generator seeded from the clock.
	Random
)

// Seed is a parsed seed setting.
type Seed struct {
	Mode  SeedMode
	Value int64
}

// ParseSeed interprets a seed setting: "" inherits the shared generator,
// "random" seeds from the clock, anything else must be an integer.
func ParseSeed(s string) (Seed, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return Seed{Mode: InheritShared}, nil
	case "random":
		return Seed{Mode: Random}, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Seed{}, fmt.Errorf("geom: invalid seed %q: %w", s, err)
	}
	return Seed{Mode: OwnSeed, Value: v}, nil
}

// Resolve returns the generator a component should use.
func (s Seed) Resolve(shared *rand.Rand) *rand.Rand {
	switch s.Mode {
	case OwnSeed:
		return rand.New(rand.NewSource(s.Value))
	case Random:
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	default:
		return shared
	}
}
