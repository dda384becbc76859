package main

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/pogona/config"
)

const turntableScene = `
kernel:
  sim_time_limit: 0.05
  base_delta_time: 0.01
components:
  turntable:
    type: object
    synthetic:
      kind: rotation
      min: [-1, -1, -0.25]
      max: [1, 1, 0.25]
      cells: [8, 8, 3]
      omega: 3
`

func TestRun_WritesLogAndBestConfig(t *testing.T) {
	dir := t.TempDir()
	scene := filepath.Join(dir, "scene.yaml")
	if err := os.WriteFile(scene, []byte(turntableScene), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")
	report := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := run(scene, out, 64, 2, 6, 0, 0.01, report); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(out, "calibration.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if want := "eval,safety_factor,error_threshold,relative_error,sub_steps_per_move,fitness"; lines[0] != want {
		t.Errorf("header wrong: got %q, want %q", lines[0], want)
	}
	if len(lines) < 3 {
		t.Errorf("trials wrong: got %d rows, want the scene setting and at least one search step", len(lines)-1)
	}
	if !strings.HasPrefix(lines[1], "1,0.85,") {
		t.Errorf("first trial should score the scene setting: got %q", lines[1])
	}

	best, err := config.Load(filepath.Join(out, "best_config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !best.Kernel.UseAdaptiveTimeStepping {
		t.Error("best config should use adaptive stepping")
	}
	if th := best.Kernel.AdaptiveTimeMaxErrorThreshold; th < 1e-10 || th > 1e-3 {
		t.Errorf("error threshold out of range: got %v", th)
	}
}

func TestRun_RequiresPaths(t *testing.T) {
	report := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := run("", t.TempDir(), 8, 2, 1, 0, 0, report); err == nil {
		t.Error("expected error without a config")
	}
}

func TestRatio(t *testing.T) {
	if got := ratio(1, 4); got != 0.25 {
		t.Errorf("ratio wrong: got %v, want 0.25", got)
	}
	if got := ratio(1, 0); !math.IsNaN(got) {
		t.Errorf("ratio over zero wrong: got %v, want NaN", got)
	}
}
