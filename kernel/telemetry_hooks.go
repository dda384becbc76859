package kernel

import (
	"log/slog"

	"github.com/pthm-cable/pogona/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and writes it.
func (k *Kernel) flushTelemetry() {
	if !k.collector.ShouldFlush(k.elapsed) {
		return
	}

	// Sample suggested step sizes of the live molecules
	k.dtOpts = k.dtOpts[:0]
	k.batch = k.molecules.Collect(k.batch[:0])
	for _, mol := range k.batch {
		k.dtOpts = append(k.dtOpts, mol.DeltaTimeOpt)
	}

	// Flush the stats window
	stats := k.collector.Flush(k.elapsed, k.molecules.Count(), k.dtOpts)
	perfStats := k.perf.Stats()

	// Call stats callback if provided
	if k.opts.StatsCallback != nil {
		k.opts.StatsCallback(stats)
	}

	// Log stats if enabled (console output)
	if k.opts.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	// Write to CSV if output manager is enabled
	if k.opts.Output != nil {
		if err := k.opts.Output.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := k.opts.Output.WritePerf(perfStats, stats.WindowEndStep); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}

// saveSnapshot writes the molecule population to the output directory.
func (k *Kernel) saveSnapshot() {
	if !k.opts.WriteSnapshot || k.opts.Output == nil {
		return
	}

	path, err := k.opts.Output.WriteSnapshot(k.createSnapshot())
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}

	slog.Info("snapshot saved", "path", path, "step", k.elapsed)
}

// createSnapshot builds a snapshot from the current state.
func (k *Kernel) createSnapshot() *telemetry.Snapshot {
	snapshot := &telemetry.Snapshot{
		Version: telemetry.SnapshotVersion,
		Seed:    k.opts.Seed,
		Step:    k.elapsed,
		SimTime: k.simTime,
	}

	k.batch = k.molecules.Collect(k.batch[:0])
	snapshot.Molecules = make([]telemetry.MoleculeState, 0, len(k.batch))
	for _, mol := range k.batch {
		snapshot.Molecules = append(snapshot.Molecules, telemetry.NewMoleculeState(mol))
	}
	return snapshot
}

// Restore inserts the molecules of a snapshot and moves the clock to the
// snapshot's step. It must be called before Run. Molecules get fresh ids.
func (k *Kernel) Restore(s *telemetry.Snapshot) {
	for _, state := range s.Molecules {
		k.molecules.AddMolecule(state.Molecule())
	}
	k.molecules.ApplyChanges()
	k.elapsed = s.Step
	k.simTime = float64(s.Step) * k.opts.BaseDeltaTime
}
