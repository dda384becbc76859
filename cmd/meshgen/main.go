// Mesh generator - writes a synthetic vector field cache for object components.
//
// Usage: go run ./cmd/meshgen -kind channel -max-speed 0.2 -half-width 0.5 -out tube.gob
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pogona/flow"
)

func main() {
	kind := flag.String("kind", "uniform", "Field kind: uniform, rotation or channel")
	minCorner := flag.String("min", "-1,-1,-1", "Lower box corner x,y,z in metres")
	maxCorner := flag.String("max", "1,1,1", "Upper box corner x,y,z in metres")
	cells := flag.String("cells", "10,10,10", "Cells along x,y,z")
	velocity := flag.String("velocity", "1,0,0", "Velocity of a uniform field in m/s")
	omega := flag.Float64("omega", 1, "Angular velocity of a rotation field in rad/s")
	maxSpeed := flag.Float64("max-speed", 1, "Centre line speed of a channel field in m/s")
	halfWidth := flag.Float64("half-width", 1, "Half width of a channel field in metres")
	out := flag.String("out", "", "Output cache file (.gob)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if *out == "" {
		fmt.Fprintln(os.Stderr, "-out is required")
		os.Exit(2)
	}
	if err := run(*kind, *minCorner, *maxCorner, *cells, *velocity, *omega, *maxSpeed, *halfWidth, *out); err != nil {
		slog.Error("mesh generation failed", "error", err)
		os.Exit(1)
	}
}

func run(kind, minCorner, maxCorner, cells, velocity string, omega, maxSpeed, halfWidth float64, out string) error {
	lo, err := parseVec(minCorner)
	if err != nil {
		return fmt.Errorf("-min: %w", err)
	}
	hi, err := parseVec(maxCorner)
	if err != nil {
		return fmt.Errorf("-max: %w", err)
	}
	v, err := parseVec(velocity)
	if err != nil {
		return fmt.Errorf("-velocity: %w", err)
	}
	n, err := parseFloats(cells)
	if err != nil {
		return fmt.Errorf("-cells: %w", err)
	}

	gen := flow.Generator{Kind: kind, Velocity: v, Omega: omega, MaxSpeed: maxSpeed, HalfWidth: halfWidth}
	fn, err := gen.Func()
	if err != nil {
		return err
	}
	field, err := flow.Box{Min: lo, Max: hi, NX: int(n[0]), NY: int(n[1]), NZ: int(n[2])}.Build(fn)
	if err != nil {
		return err
	}
	if err := flow.SaveCache(out, field); err != nil {
		return err
	}
	slog.Info("vector field written", "path", out, "kind", kind, "cells", field.Len())
	return nil
}

// parseFloats parses exactly three comma-separated numbers.
func parseFloats(s string) ([3]float64, error) {
	var v [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("want three comma-separated values, got %q", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

func parseVec(s string) (r3.Vec, error) {
	v, err := parseFloats(s)
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, err
}
