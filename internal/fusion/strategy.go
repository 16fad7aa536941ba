package fusion

import (
	"fmt"
	"strings"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// Strategy selects how effective weights and the final label are derived.
type Strategy string

const (
	// ConfidenceWeighted scales each base weight by the modality's confidence
	// before renormalizing. This is the default.
	ConfidenceWeighted Strategy = "confidence_weighted"
	// WeightedAverage renormalizes base weights over present modalities and
	// ignores confidence.
	WeightedAverage Strategy = "weighted_average"
	// SimpleAverage weights every present modality equally.
	SimpleAverage Strategy = "simple_average"
	// MajorityVote decides by per-modality vote; probability is the simple
	// average. A tied vote is negative.
	MajorityVote Strategy = "majority_vote"
)

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{ConfidenceWeighted, WeightedAverage, SimpleAverage, MajorityVote}
}

// ParseStrategy converts a configuration value into a Strategy. The empty
// string selects ConfidenceWeighted.
func ParseStrategy(s string) (Strategy, error) {
	if strings.TrimSpace(s) == "" {
		return ConfidenceWeighted, nil
	}
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", domain.NewConfigurationError("", fmt.Sprintf("unknown fusion strategy %q", s))
	}
	return st, nil
}

// IsValid reports whether s is a supported strategy.
func (s Strategy) IsValid() bool {
	switch s {
	case ConfidenceWeighted, WeightedAverage, SimpleAverage, MajorityVote:
		return true
	default:
		return false
	}
}

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	return string(s)
}

// weights returns the effective weight of every present modality.
func (s Strategy) weights(results []domain.ModalityResult, cfg domain.FusionConfig) (map[domain.Modality]float64, error) {
	switch s {
	case SimpleAverage, MajorityVote:
		equal := make(map[domain.Modality]float64, len(results))
		for _, r := range results {
			equal[r.Modality] = 1.0 / float64(len(results))
		}
		return equal, nil
	}

	base, err := baseWeightsFor(results, cfg)
	if err != nil {
		return nil, err
	}

	if s == ConfidenceWeighted {
		adjusted := make(map[domain.Modality]float64, len(results))
		for _, r := range results {
			adjusted[r.Modality] = base[r.Modality] * r.Confidence
		}
		if effective, ok := normalize(adjusted); ok {
			return effective, nil
		}
		// All confidences zero: fall back to the unadjusted base weights.
	}

	effective, ok := normalize(base)
	if !ok {
		return nil, domain.NewConfigurationError("", "base weights of present modalities sum to zero")
	}
	return effective, nil
}

// decide derives the fused label. Strictly greater than the threshold is
// positive, so a probability equal to the threshold is negative.
func (s Strategy) decide(results []domain.ModalityResult, probability, threshold float64) domain.Prediction {
	if s == MajorityVote {
		votes := 0
		for _, r := range results {
			if r.ProbabilityPositive > threshold {
				votes++
			}
		}
		if 2*votes > len(results) {
			return domain.POSITIVE
		}
		return domain.NEGATIVE
	}

	if probability > threshold {
		return domain.POSITIVE
	}
	return domain.NEGATIVE
}
