package irt

import (
	"context"
	"fmt"
	"math"
)

// ScoredResponse pairs an observed score with the parameters of the item it
// was given to. The score is 0/1 for dichotomous models and the category
// index for GRM.
type ScoredResponse struct {
	Params ItemParams
	Score  int
}

// Estimator produces an ability estimate and its standard error from a
// response history. Implementations must be deterministic: the same history
// always yields the same estimate, which the session engine relies on for
// reproducible resume.
type Estimator interface {
	Estimate(ctx context.Context, responses []ScoredResponse, model Model) (theta, se float64, err error)
}

// ThetaRange bounds the reported ability scale.
type ThetaRange struct {
	Min float64
	Max float64
}

// DefaultThetaRange is the conventional reporting range for standardized
// ability scales.
var DefaultThetaRange = ThetaRange{Min: -4, Max: 4}

func (r ThetaRange) Clamp(theta float64) float64 {
	if theta < r.Min {
		return r.Min
	}
	if theta > r.Max {
		return r.Max
	}
	return theta
}

// EAPEstimator computes an expected a posteriori ability estimate by fixed
// quadrature over a normal prior. It is finite for degenerate histories
// (all correct, all incorrect) where maximum likelihood diverges.
type EAPEstimator struct {
	PriorMean float64
	PriorSD   float64
	Points    int
	Range     ThetaRange
}

// NewEAPEstimator returns an estimator with a standard normal prior and a
// quadrature grid dense enough that grid error is negligible against the
// reporting precision.
func NewEAPEstimator() *EAPEstimator {
	return &EAPEstimator{
		PriorMean: 0,
		PriorSD:   1,
		Points:    81,
		Range:     DefaultThetaRange,
	}
}

func (e *EAPEstimator) Estimate(_ context.Context, responses []ScoredResponse, model Model) (float64, float64, error) {
	if !model.Valid() {
		return 0, 0, fmt.Errorf("unknown model %q", model)
	}
	if len(responses) == 0 {
		return e.PriorMean, e.PriorSD, nil
	}

	points := e.Points
	if points < 3 {
		points = 81
	}
	sd := e.PriorSD
	if sd <= 0 {
		sd = 1
	}

	step := (e.Range.Max - e.Range.Min) / float64(points-1)

	// Accumulate log posterior on the grid, then exponentiate with a shift
	// so long histories do not underflow.
	logPost := make([]float64, points)
	maxLog := math.Inf(-1)
	for i := 0; i < points; i++ {
		theta := e.Range.Min + float64(i)*step
		z := (theta - e.PriorMean) / sd
		lp := -0.5 * z * z
		for _, r := range responses {
			prob := ResponseProbability(theta, r.Params, model, r.Score)
			if prob < 1e-10 {
				prob = 1e-10
			}
			lp += math.Log(prob)
		}
		logPost[i] = lp
		if lp > maxLog {
			maxLog = lp
		}
	}

	var norm, mean float64
	for i := 0; i < points; i++ {
		theta := e.Range.Min + float64(i)*step
		w := math.Exp(logPost[i] - maxLog)
		norm += w
		mean += w * theta
	}
	if norm == 0 {
		return 0, 0, fmt.Errorf("degenerate posterior: all quadrature weights underflowed")
	}
	mean /= norm

	var variance float64
	for i := 0; i < points; i++ {
		theta := e.Range.Min + float64(i)*step
		w := math.Exp(logPost[i] - maxLog)
		d := theta - mean
		variance += w * d * d
	}
	variance /= norm

	return mean, math.Sqrt(variance), nil
}

// ClampLogger is the logging surface the clamped estimator needs. It matches
// the repo-wide logger interface without importing it.
type ClampLogger interface {
	Warn(msg string, args ...any)
}

// ClampedEstimator wraps another estimator and guarantees finite, in-range
// output. Non-finite results from the delegate are replaced by the clamped
// prior midpoint and logged; they are never surfaced to the respondent.
type ClampedEstimator struct {
	Inner  Estimator
	Range  ThetaRange
	Logger ClampLogger
}

func NewClampedEstimator(inner Estimator, r ThetaRange, logger ClampLogger) *ClampedEstimator {
	if r.Max <= r.Min {
		r = DefaultThetaRange
	}
	return &ClampedEstimator{Inner: inner, Range: r, Logger: logger}
}

func (c *ClampedEstimator) Estimate(ctx context.Context, responses []ScoredResponse, model Model) (float64, float64, error) {
	theta, se, err := c.Inner.Estimate(ctx, responses, model)
	if err != nil {
		return 0, 0, err
	}

	if !isFinite(theta) {
		if c.Logger != nil {
			c.Logger.Warn("estimator returned non-finite ability, substituting range midpoint",
				"theta", theta, "responses", len(responses))
		}
		theta = (c.Range.Min + c.Range.Max) / 2
	}
	if !isFinite(se) || se < 0 {
		if c.Logger != nil {
			c.Logger.Warn("estimator returned invalid standard error, substituting range width",
				"se", se, "responses", len(responses))
		}
		se = c.Range.Max - c.Range.Min
	}

	clamped := c.Range.Clamp(theta)
	if clamped != theta && c.Logger != nil {
		c.Logger.Warn("ability estimate clamped to configured range",
			"theta", theta, "clamped", clamped)
	}
	return clamped, se, nil
}
