package telemetry

import (
	"log/slog"
	"math"
	"sort"
)

// WindowStats holds aggregated statistics for a window of base time steps.
type WindowStats struct {
	WindowStartStep int     `csv:"-"`
	WindowEndStep   int     `csv:"window_end"`
	SimTime         float64 `csv:"sim_time"`

	// Population at window end
	Molecules int `csv:"molecules"`

	// Events during window
	Spawned    int `csv:"spawned"`
	Destroyed  int `csv:"destroyed"`
	Teleported int `csv:"teleported"`

	// Integration effort during window
	Moves       int     `csv:"moves"`
	SubSteps    int     `csv:"sub_steps"`
	Corrections int     `csv:"corrections"`
	Exhausted   int     `csv:"exhausted"`
	SubStepRate float64 `csv:"sub_steps_per_move"`

	// Suggested step size distribution (sampled at window end, finite only)
	DtOptMean float64 `csv:"dt_opt_mean"`
	DtOptP10  float64 `csv:"dt_opt_p10"`
	DtOptP50  float64 `csv:"dt_opt_p50"`
	DtOptP90  float64 `csv:"dt_opt_p90"`

	// Speed distribution of the flow seen by molecules (m/s)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP90  float64 `csv:"speed_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeStats calculates mean and percentiles, skipping non-finite values.
func ComputeStats(values []float64) (mean, p10, p50, p90 float64) {
	sorted := finiteSorted(values)
	n := len(sorted)
	if n == 0 {
		return 0, 0, 0, 0
	}

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean = sum / float64(n)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// ComputeSpreadStats calculates mean, standard deviation and the 90th
// percentile, skipping non-finite values.
func ComputeSpreadStats(values []float64) (mean, std, p90 float64) {
	sorted := finiteSorted(values)
	n := len(sorted)
	if n == 0 {
		return 0, 0, 0
	}

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean = sum / float64(n)

	var sqDiffSum float64
	for _, v := range sorted {
		d := v - mean
		sqDiffSum += d * d
	}
	std = math.Sqrt(sqDiffSum / float64(n))

	return mean, std, Percentile(sorted, 0.90)
}

func finiteSorted(values []float64) []float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		sorted = append(sorted, v)
	}
	sort.Float64s(sorted)
	return sorted
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartStep),
		slog.Int("window_end", s.WindowEndStep),
		slog.Float64("sim_time", s.SimTime),
		slog.Int("molecules", s.Molecules),
		slog.Int("spawned", s.Spawned),
		slog.Int("destroyed", s.Destroyed),
		slog.Int("teleported", s.Teleported),
		slog.Int("moves", s.Moves),
		slog.Int("sub_steps", s.SubSteps),
		slog.Int("corrections", s.Corrections),
		slog.Int("exhausted", s.Exhausted),
		slog.Float64("sub_steps_per_move", s.SubStepRate),
		slog.Float64("dt_opt_mean", s.DtOptMean),
		slog.Float64("dt_opt_p10", s.DtOptP10),
		slog.Float64("dt_opt_p50", s.DtOptP50),
		slog.Float64("dt_opt_p90", s.DtOptP90),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p90", s.SpeedP90),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndStep,
		"sim_time", s.SimTime,
		"molecules", s.Molecules,
		"spawned", s.Spawned,
		"destroyed", s.Destroyed,
		"teleported", s.Teleported,
		"sub_steps", s.SubSteps,
		"corrections", s.Corrections,
		"exhausted", s.Exhausted,
		"dt_opt_p50", s.DtOptP50,
		"speed_mean", s.SpeedMean,
	)
}
