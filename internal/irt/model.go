package irt

import (
	"fmt"
	"math"
)

// Model identifies the item response model an item bank is calibrated under.
type Model string

const (
	Model1PL Model = "1PL"
	Model2PL Model = "2PL"
	Model3PL Model = "3PL"
	ModelGRM Model = "GRM"
)

func (m Model) Valid() bool {
	switch m {
	case Model1PL, Model2PL, Model3PL, ModelGRM:
		return true
	}
	return false
}

// Dichotomous reports whether the model scores responses as 0/1.
func (m Model) Dichotomous() bool {
	return m != ModelGRM
}

// ItemParams holds the calibrated parameters of a single item. Which fields
// are consulted depends on the model: 1PL uses Difficulty only, 2PL adds
// Discrimination, 3PL adds Guessing, and GRM uses Discrimination plus the
// ordered Thresholds (one per category boundary).
type ItemParams struct {
	Discrimination float64   `json:"discrimination"`
	Difficulty     float64   `json:"difficulty"`
	Guessing       float64   `json:"guessing"`
	Thresholds     []float64 `json:"thresholds,omitempty"`
}

// Categories returns the number of response categories the item supports
// under the given model.
func (p ItemParams) Categories(model Model) int {
	if model == ModelGRM {
		return len(p.Thresholds) + 1
	}
	return 2
}

// Validate checks the parameters against the constraints of the given model.
func (p ItemParams) Validate(model Model) error {
	if !model.Valid() {
		return fmt.Errorf("unknown model %q", model)
	}

	if !isFinite(p.Difficulty) {
		return fmt.Errorf("difficulty must be finite, got %v", p.Difficulty)
	}

	switch model {
	case Model1PL:
		// Discrimination is fixed at 1 and guessing at 0; reject values that
		// would silently be ignored.
		if p.Guessing != 0 {
			return fmt.Errorf("1PL items cannot carry a guessing parameter")
		}
	case Model2PL:
		if err := p.validateDiscrimination(); err != nil {
			return err
		}
		if p.Guessing != 0 {
			return fmt.Errorf("2PL items cannot carry a guessing parameter")
		}
	case Model3PL:
		if err := p.validateDiscrimination(); err != nil {
			return err
		}
		if !isFinite(p.Guessing) || p.Guessing < 0 || p.Guessing >= 1 {
			return fmt.Errorf("guessing must be in [0, 1), got %v", p.Guessing)
		}
	case ModelGRM:
		if err := p.validateDiscrimination(); err != nil {
			return err
		}
		if len(p.Thresholds) < 1 {
			return fmt.Errorf("GRM items need at least one threshold")
		}
		for i, th := range p.Thresholds {
			if !isFinite(th) {
				return fmt.Errorf("threshold %d must be finite, got %v", i, th)
			}
			if i > 0 && th <= p.Thresholds[i-1] {
				return fmt.Errorf("thresholds must be strictly increasing, got %v after %v", th, p.Thresholds[i-1])
			}
		}
	}

	return nil
}

func (p ItemParams) validateDiscrimination() error {
	if !isFinite(p.Discrimination) || p.Discrimination <= 0 {
		return fmt.Errorf("discrimination must be positive and finite, got %v", p.Discrimination)
	}
	return nil
}

// slope returns the effective discrimination for the model.
func (p ItemParams) slope(model Model) float64 {
	if model == Model1PL {
		return 1
	}
	return p.Discrimination
}

// guess returns the effective lower asymptote for the model.
func (p ItemParams) guess(model Model) float64 {
	if model == Model3PL {
		return p.Guessing
	}
	return 0
}

// Probability returns the probability of a correct response at ability theta
// for a dichotomous item. For GRM items use CategoryProbabilities.
func Probability(theta float64, p ItemParams, model Model) float64 {
	a := p.slope(model)
	c := p.guess(model)
	return c + (1-c)*logistic(a*(theta-p.Difficulty))
}

// CategoryProbabilities returns the probability of each response category at
// ability theta under the graded response model. For dichotomous models the
// result is {1-P, P}.
func CategoryProbabilities(theta float64, p ItemParams, model Model) []float64 {
	if model != ModelGRM {
		prob := Probability(theta, p, model)
		return []float64{1 - prob, prob}
	}

	// Cumulative boundary curves P*(k), with P*(0)=1 and P*(m)=0.
	cum := cumulativeBoundaries(theta, p)
	probs := make([]float64, len(cum)-1)
	for k := 0; k < len(probs); k++ {
		probs[k] = cum[k] - cum[k+1]
	}
	return probs
}

// ResponseProbability returns the likelihood of the observed score (0/1 for
// dichotomous models, category index for GRM) at ability theta.
func ResponseProbability(theta float64, p ItemParams, model Model, score int) float64 {
	if model != ModelGRM {
		prob := Probability(theta, p, model)
		if score > 0 {
			return prob
		}
		return 1 - prob
	}

	probs := CategoryProbabilities(theta, p, model)
	if score < 0 || score >= len(probs) {
		return 0
	}
	return probs[score]
}

// Information returns the Fisher information of the item at ability theta.
func Information(theta float64, p ItemParams, model Model) float64 {
	if model == ModelGRM {
		return gradedInformation(theta, p)
	}

	a := p.slope(model)
	c := p.guess(model)
	prob := Probability(theta, p, model)
	if prob <= 0 || prob >= 1 {
		return 0
	}
	q := 1 - prob
	ratio := (prob - c) / (1 - c)
	return a * a * (q / prob) * ratio * ratio
}

// gradedInformation sums category information under the GRM:
// I(theta) = a^2 * sum_k (P*_k q*_k - P*_{k+1} q*_{k+1})^2 / P_k.
func gradedInformation(theta float64, p ItemParams) float64 {
	cum := cumulativeBoundaries(theta, p)
	a := p.Discrimination

	var info float64
	for k := 0; k < len(cum)-1; k++ {
		pk := cum[k] - cum[k+1]
		if pk <= 0 {
			continue
		}
		w := cum[k]*(1-cum[k]) - cum[k+1]*(1-cum[k+1])
		info += w * w / pk
	}
	return a * a * info
}

func cumulativeBoundaries(theta float64, p ItemParams) []float64 {
	cum := make([]float64, len(p.Thresholds)+2)
	cum[0] = 1
	for i, th := range p.Thresholds {
		cum[i+1] = logistic(p.Discrimination * (theta - th))
	}
	cum[len(cum)-1] = 0
	return cum
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
