// Package fusion implements late fusion of per-modality screening predictions.
//
// Each external analyzer (voice, imaging, motor drawing) reports a binary
// prediction, a self-assessed confidence and calibrated class probabilities.
// The engine combines any non-empty subset of those results into a single
// decision by redistributing static base weights according to per-sample
// confidence, then selects a banded clinical narrative.
//
// The engine performs no I/O and holds no mutable state; an Engine value may
// be shared by any number of goroutines.
package fusion

import (
	"fmt"
	"math"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// Engine fuses modality results under a fixed configuration and strategy.
type Engine struct {
	config   domain.FusionConfig
	strategy Strategy
}

// NewEngine creates an engine. The configuration is copied, so later changes
// to the caller's weight map do not leak into fusion.
func NewEngine(cfg domain.FusionConfig, strategy Strategy) (*Engine, error) {
	if strategy == "" {
		strategy = ConfidenceWeighted
	}
	if !strategy.IsValid() {
		return nil, domain.NewConfigurationError("", fmt.Sprintf("unknown fusion strategy %q", strategy))
	}
	return &Engine{config: cfg.Clone(), strategy: strategy}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() domain.FusionConfig {
	return e.config.Clone()
}

// Strategy returns the engine's fusion strategy.
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// Fuse combines results into one outcome.
func (e *Engine) Fuse(results []domain.ModalityResult) (*domain.FusionOutcome, error) {
	return fuse(results, e.config, e.strategy)
}

// ComputeFusion combines results with confidence-weighted redistribution of
// the configured base weights. It fails with *domain.InvalidInputError for
// malformed results and *domain.ConfigurationError for missing or degenerate
// weights; no outcome is produced on failure.
func ComputeFusion(results []domain.ModalityResult, cfg domain.FusionConfig) (*domain.FusionOutcome, error) {
	return fuse(results, cfg, ConfidenceWeighted)
}

func fuse(results []domain.ModalityResult, cfg domain.FusionConfig, strategy Strategy) (*domain.FusionOutcome, error) {
	if err := ValidateResults(results); err != nil {
		return nil, err
	}
	if err := validateThreshold(cfg.PositiveThreshold); err != nil {
		return nil, err
	}

	weights, err := strategy.weights(results, cfg)
	if err != nil {
		return nil, err
	}

	var probability, confidence, processing float64
	used := make([]domain.Modality, 0, len(results))
	for _, r := range results {
		w := weights[r.Modality]
		probability += w * r.ProbabilityPositive
		confidence += w * r.Confidence
		processing += r.ProcessingTimeSeconds
		used = append(used, r.Modality)
	}
	probability = clamp01(probability)
	confidence = clamp01(confidence)

	prediction := strategy.decide(results, probability, cfg.PositiveThreshold)
	band := domain.RiskBandFor(probability)
	narrative := NarrativeFor(band)

	return domain.NewFusionOutcome(domain.FusionOutcomeParams{
		Prediction:                 prediction,
		Confidence:                 confidence,
		ProbabilityPositive:        probability,
		EffectiveWeights:           weights,
		ModalitiesUsed:             used,
		RiskBand:                   band,
		ClinicalSummary:            narrative.Summary,
		Recommendations:            narrative.Recommendations,
		Findings:                   Findings(results),
		Strategy:                   strategy.String(),
		TotalProcessingTimeSeconds: processing,
	}), nil
}

// ValidateResults checks the shape and ranges of a result set without
// consulting any configuration.
func ValidateResults(results []domain.ModalityResult) error {
	if len(results) == 0 {
		return domain.NewInvalidInputError("no modality results provided")
	}

	seen := make(map[domain.Modality]bool, len(results))
	for _, r := range results {
		if !r.Modality.IsValid() {
			return domain.NewFieldError(r.Modality, "modality", "unknown modality", string(r.Modality))
		}
		if seen[r.Modality] {
			return domain.NewFieldError(r.Modality, "modality", "modality reported more than once", string(r.Modality))
		}
		seen[r.Modality] = true

		if !r.Prediction.IsValid() {
			return domain.NewFieldError(r.Modality, "prediction", "unknown prediction label", string(r.Prediction))
		}
		if !inUnitInterval(r.Confidence) {
			return domain.NewFieldError(r.Modality, "confidence", "must lie in [0,1]", r.Confidence)
		}
		if !inUnitInterval(r.ProbabilityPositive) {
			return domain.NewFieldError(r.Modality, "probability_positive", "must lie in [0,1]", r.ProbabilityPositive)
		}
		if !inUnitInterval(r.ProbabilityNegative) {
			return domain.NewFieldError(r.Modality, "probability_negative", "must lie in [0,1]", r.ProbabilityNegative)
		}
		if sum := r.ProbabilityPositive + r.ProbabilityNegative; math.Abs(sum-1.0) > domain.ProbabilityTolerance {
			return domain.NewFieldError(r.Modality, "probability_negative",
				fmt.Sprintf("probabilities must sum to 1.0, got %.6f", sum), r.ProbabilityNegative)
		}
		if r.ProcessingTimeSeconds < 0 || math.IsNaN(r.ProcessingTimeSeconds) || math.IsInf(r.ProcessingTimeSeconds, 0) {
			return domain.NewFieldError(r.Modality, "processing_time_seconds", "must be a non-negative number", r.ProcessingTimeSeconds)
		}
	}
	return nil
}

func validateThreshold(threshold float64) error {
	if !inUnitInterval(threshold) {
		return domain.NewConfigurationError("", fmt.Sprintf("positive threshold must lie in [0,1], got %v", threshold))
	}
	return nil
}

// baseWeightsFor returns the configured base weight of every present modality.
func baseWeightsFor(results []domain.ModalityResult, cfg domain.FusionConfig) (map[domain.Modality]float64, error) {
	base := make(map[domain.Modality]float64, len(results))
	for _, r := range results {
		w, ok := cfg.Weight(r.Modality)
		if !ok {
			return nil, domain.NewConfigurationError(r.Modality, "no base weight configured")
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, domain.NewConfigurationError(r.Modality, fmt.Sprintf("base weight must be a non-negative number, got %v", w))
		}
		base[r.Modality] = w
	}
	return base, nil
}

// normalize scales raw weights to sum to one. It reports false when the raw
// weights sum to zero. Weights are divided by the largest one before summing
// so that finite weights near the float64 limit cannot overflow the total.
func normalize(raw map[domain.Modality]float64) (map[domain.Modality]float64, bool) {
	var largest float64
	for _, w := range raw {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, false
		}
		largest = math.Max(largest, w)
	}
	if largest <= 0 {
		return nil, false
	}

	var total float64
	for _, w := range raw {
		total += w / largest
	}
	out := make(map[domain.Modality]float64, len(raw))
	for m, w := range raw {
		out[m] = (w / largest) / total
	}
	return out, true
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1 && !math.IsNaN(v)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
