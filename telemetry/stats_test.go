package telemetry

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	values := []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1, math.Inf(1)}
	mean, p10, p50, p90 := ComputeStats(values)

	if math.Abs(mean-0.55) > 0.001 {
		t.Errorf("mean = %v, want 0.55", mean)
	}
	if math.Abs(p10-0.19) > 0.01 {
		t.Errorf("p10 = %v, want ~0.19", p10)
	}
	if math.Abs(p50-0.55) > 0.01 {
		t.Errorf("p50 = %v, want ~0.55", p50)
	}
	if math.Abs(p90-0.91) > 0.01 {
		t.Errorf("p90 = %v, want ~0.91", p90)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	mean, p10, p50, p90 := ComputeStats([]float64{math.Inf(1), math.NaN()})
	if mean != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("non-finite values only should return all zeros")
	}
}

func TestComputeSpreadStats(t *testing.T) {
	mean, std, p90 := ComputeSpreadStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Errorf("mean wrong: got %v, want 5", mean)
	}
	if std != 2 {
		t.Errorf("std wrong: got %v, want 2", std)
	}
	if math.Abs(p90-7.6) > 1e-9 {
		t.Errorf("p90 wrong: got %v, want 7.6", p90)
	}
}

func TestCollector_Flush(t *testing.T) {
	c := NewCollector(0.01, 0.0025)
	if c.WindowDurationSteps() != 4 {
		t.Fatalf("WindowDurationSteps wrong: got %d, want 4", c.WindowDurationSteps())
	}

	c.RecordSpawned(10)
	c.RecordDestroyed(3)
	c.RecordTeleport()
	c.RecordMove(4, 1, false, 0.0025)
	c.RecordMove(2, 0, true, 0.005)

	if c.ShouldFlush(3) {
		t.Error("flushed too early")
	}
	if !c.ShouldFlush(4) {
		t.Error("expected flush at window end")
	}

	s := c.Flush(4, 7, []float64{math.Inf(1), 0.001})
	if s.Spawned != 10 || s.Destroyed != 3 || s.Teleported != 1 {
		t.Errorf("events wrong: got %d/%d/%d, want 10/3/1", s.Spawned, s.Destroyed, s.Teleported)
	}
	if s.Moves != 2 || s.SubSteps != 6 || s.Corrections != 1 || s.Exhausted != 1 {
		t.Errorf("effort wrong: got %+v", s)
	}
	if s.SubStepRate != 3 {
		t.Errorf("SubStepRate wrong: got %v, want 3", s.SubStepRate)
	}
	if s.Molecules != 7 {
		t.Errorf("Molecules wrong: got %d, want 7", s.Molecules)
	}
	if s.DtOptP50 != 0.001 {
		t.Errorf("DtOptP50 wrong: got %v, want 0.001", s.DtOptP50)
	}
	if math.Abs(s.SpeedMean-1.5) > 1e-12 {
		t.Errorf("SpeedMean wrong: got %v, want 1.5", s.SpeedMean)
	}
	if math.Abs(s.SimTime-0.01) > 1e-12 {
		t.Errorf("SimTime wrong: got %v, want 0.01", s.SimTime)
	}

	next := c.Flush(8, 7, nil)
	if next.WindowStartStep != 4 || next.Spawned != 0 || next.Moves != 0 {
		t.Errorf("counters not reset: got %+v", next)
	}
}
