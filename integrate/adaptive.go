package integrate

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/pogona/components"
)

// AdaptiveConfig holds the step-size control parameters.
type AdaptiveConfig struct {
	BaseDeltaTime     float64 // base step every molecule must reach
	MaxErrorThreshold float64 // largest accepted error norm per sub-step
	SafetyFactor      float64 // multiplier on the estimated optimal step
	CorrectionsLimit  int     // retries per sub-step before giving up
}

// DefaultAdaptiveConfig returns the usual control parameters for a base step.
func DefaultAdaptiveConfig(baseDeltaTime float64) AdaptiveConfig {
	return AdaptiveConfig{
		BaseDeltaTime:     baseDeltaTime,
		MaxErrorThreshold: math.Inf(1),
		SafetyFactor:      0.85,
		CorrectionsLimit:  100,
	}
}

// StepReport describes how one molecule reached the next base step.
type StepReport struct {
	SubSteps    int
	Corrections int
	Exhausted   bool      // at least one sub-step hit the corrections limit
	Committed   []float64 // sizes of the accepted sub-steps, in order
}

// Controller advances molecules by one base step in error-controlled
// sub-steps. The suggested next step size is kept on each molecule.
type Controller struct {
	pred  *Predictor
	cfg   AdaptiveConfig
	order float64
}

// NewController validates cfg and returns a controller. The predictor must
// use an embedded method.
func NewController(pred *Predictor, cfg AdaptiveConfig) (*Controller, error) {
	if !pred.Method().IsEmbedded() {
		return nil, fmt.Errorf("%w: %v", ErrNotAdaptive, pred.Method())
	}
	if !(cfg.BaseDeltaTime > 0) || math.IsInf(cfg.BaseDeltaTime, 0) {
		return nil, fmt.Errorf("integrate: base delta time must be positive and finite, got %v", cfg.BaseDeltaTime)
	}
	if !(cfg.MaxErrorThreshold > 0) {
		return nil, fmt.Errorf("integrate: error threshold must be positive, got %v", cfg.MaxErrorThreshold)
	}
	if !(cfg.SafetyFactor > 0) || math.IsInf(cfg.SafetyFactor, 0) {
		return nil, fmt.Errorf("integrate: safety factor must be positive, got %v", cfg.SafetyFactor)
	}
	if cfg.CorrectionsLimit < 0 {
		return nil, fmt.Errorf("integrate: corrections limit must not be negative, got %d", cfg.CorrectionsLimit)
	}
	if math.IsInf(cfg.MaxErrorThreshold, 1) {
		slog.Warn("adaptive time stepping without an error threshold; every step is accepted",
			"method", pred.Method())
	}
	if !pred.Method().SupportsTimeStepControl() {
		slog.Info("adaptive time stepping with a reporting variant of RKF",
			"method", pred.Method())
	}
	return &Controller{pred: pred, cfg: cfg, order: float64(pred.Order())}, nil
}

// Config returns the control parameters.
func (c *Controller) Config() AdaptiveConfig { return c.cfg }

// Advance moves mol from baseTime to baseTime + BaseDeltaTime.
func (c *Controller) Advance(mol *components.Molecule, baseTime float64) (StepReport, error) {
	var report StepReport
	next := baseTime + c.cfg.BaseDeltaTime
	sub := baseTime

	for sub < next && !isClose(sub, next, 1e-10, 1e-15) {
		dt, corrections, exhausted, err := c.subStep(mol, baseTime, sub)
		if err != nil {
			return report, err
		}
		report.SubSteps++
		report.Corrections += corrections
		report.Exhausted = report.Exhausted || exhausted
		report.Committed = append(report.Committed, dt)
		sub += dt
	}
	return report, nil
}

// subStep tries step sizes until the error is within the threshold or the
// corrections limit is reached, then commits the last attempt.
func (c *Controller) subStep(mol *components.Molecule, baseTime, sub float64) (dt float64, corrections int, exhausted bool, err error) {
	base := c.cfg.BaseDeltaTime
	thr := c.cfg.MaxErrorThreshold

	for attempt := 0; ; attempt++ {
		dt = min(mol.DeltaTimeOpt, base, math.Abs(base-(sub-baseTime)))

		pos, errNorm, err := c.pred.Predict(mol, sub, dt)
		if err != nil {
			return 0, attempt, false, err
		}

		exponent := 1 / c.order
		if errNorm >= thr {
			exponent = 1 / (c.order + 1)
		}
		if errNorm == 0 {
			mol.DeltaTimeOpt = math.Inf(1)
		} else {
			mol.DeltaTimeOpt = c.cfg.SafetyFactor * dt * math.Pow(thr/errNorm, exponent)
		}

		if errNorm <= thr || attempt >= c.cfg.CorrectionsLimit {
			if errNorm > thr {
				exhausted = true
				slog.Warn("corrections limit exceeded; accepting step over threshold",
					"molecule", mol.ID,
					"sub_time", sub,
					"dt", dt,
					"error", errNorm,
					"threshold", thr,
				)
			}
			c.pred.Commit(mol, pos)
			return dt, attempt, exhausted, nil
		}
	}
}

// isClose mirrors the usual |a-b| <= atol + rtol*|b| closeness test.
func isClose(a, b, rtol, atol float64) bool {
	return math.Abs(a-b) <= atol+rtol*math.Abs(b)
}
