package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// WeightSumTolerance bounds how far configured base weights may drift from 1.0.
const WeightSumTolerance = 1e-6

// ProbabilityTolerance bounds p(positive)+p(negative) drift from 1.0.
const ProbabilityTolerance = 1e-6

// FusionConfig is the static, process-wide fusion configuration.
type FusionConfig struct {
	BaseWeights       map[Modality]float64 `json:"base_weights" yaml:"base_weights"`
	PositiveThreshold float64              `json:"positive_threshold" yaml:"positive_threshold"`
}

// DefaultFusionConfig returns the base weights that reflect average modality
// reliability: imaging is the strongest single signal, voice the weakest.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		BaseWeights: map[Modality]float64{
			VOICE:   0.20,
			IMAGING: 0.50,
			MOTOR:   0.30,
		},
		PositiveThreshold: 0.5,
	}
}

// Weight returns the configured base weight for m and whether one exists.
func (c FusionConfig) Weight(m Modality) (float64, bool) {
	w, ok := c.BaseWeights[m]
	return w, ok
}

// Clone returns a deep copy so callers can never share the weight map.
func (c FusionConfig) Clone() FusionConfig {
	weights := make(map[Modality]float64, len(c.BaseWeights))
	for m, w := range c.BaseWeights {
		weights[m] = w
	}
	return FusionConfig{BaseWeights: weights, PositiveThreshold: c.PositiveThreshold}
}

// Validate checks the full three-modality configuration: every modality
// weighted, no negative or non-finite weight, weights summing to 1.0, and a
// threshold inside [0,1].
func (c FusionConfig) Validate() error {
	sum := 0.0
	for _, m := range AllModalities() {
		w, ok := c.BaseWeights[m]
		if !ok {
			return NewConfigurationError(m, "no base weight configured")
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return NewConfigurationError(m, fmt.Sprintf("base weight must be a non-negative number, got %v", w))
		}
		sum += w
	}
	for m := range c.BaseWeights {
		if !m.IsValid() {
			return NewConfigurationError(m, "unknown modality in base weights")
		}
	}
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return NewConfigurationError("", fmt.Sprintf("base weights sum to %.6f, must sum to 1.0", sum))
	}
	if c.PositiveThreshold < 0 || c.PositiveThreshold > 1 || math.IsNaN(c.PositiveThreshold) {
		return NewConfigurationError("", fmt.Sprintf("positive threshold must lie in [0,1], got %v", c.PositiveThreshold))
	}
	return nil
}

// FusionOutcome is the combined screening decision. It is built once per
// fusion call and never mutated; map and slice accessors hand out copies.
type FusionOutcome struct {
	prediction           Prediction
	confidence           float64
	probabilityPositive  float64
	probabilityNegative  float64
	effectiveWeights     map[Modality]float64
	modalitiesUsed       []Modality
	riskBand             RiskBand
	clinicalSummary      string
	recommendations      []string
	findings             []string
	strategy             string
	totalProcessingTimeS float64
}

// FusionOutcomeParams carries the fields of a FusionOutcome at construction.
type FusionOutcomeParams struct {
	Prediction                 Prediction
	Confidence                 float64
	ProbabilityPositive        float64
	EffectiveWeights           map[Modality]float64
	ModalitiesUsed             []Modality
	RiskBand                   RiskBand
	ClinicalSummary            string
	Recommendations            []string
	Findings                   []string
	Strategy                   string
	TotalProcessingTimeSeconds float64
}

// NewFusionOutcome builds an immutable outcome. The negative probability is
// derived by subtraction so the pair always sums to exactly 1.
func NewFusionOutcome(p FusionOutcomeParams) *FusionOutcome {
	weights := make(map[Modality]float64, len(p.EffectiveWeights))
	for m, w := range p.EffectiveWeights {
		weights[m] = w
	}
	used := append([]Modality(nil), p.ModalitiesUsed...)
	sort.SliceStable(used, func(i, j int) bool { return used[i].Rank() < used[j].Rank() })

	return &FusionOutcome{
		prediction:           p.Prediction,
		confidence:           p.Confidence,
		probabilityPositive:  p.ProbabilityPositive,
		probabilityNegative:  1 - p.ProbabilityPositive,
		effectiveWeights:     weights,
		modalitiesUsed:       used,
		riskBand:             p.RiskBand,
		clinicalSummary:      p.ClinicalSummary,
		recommendations:      append([]string(nil), p.Recommendations...),
		findings:             append([]string(nil), p.Findings...),
		strategy:             p.Strategy,
		totalProcessingTimeS: p.TotalProcessingTimeSeconds,
	}
}

// Prediction returns the fused binary decision.
func (o *FusionOutcome) Prediction() Prediction { return o.prediction }

// Confidence returns the effective-weight average of input confidences.
func (o *FusionOutcome) Confidence() float64 { return o.confidence }

// ProbabilityPositive returns the fused probability of the positive class.
func (o *FusionOutcome) ProbabilityPositive() float64 { return o.probabilityPositive }

// ProbabilityNegative returns 1 - ProbabilityPositive.
func (o *FusionOutcome) ProbabilityNegative() float64 { return o.probabilityNegative }

// RiskBand returns the band that selected the narrative.
func (o *FusionOutcome) RiskBand() RiskBand { return o.riskBand }

// ClinicalSummary returns the banded narrative.
func (o *FusionOutcome) ClinicalSummary() string { return o.clinicalSummary }

// Strategy returns the name of the fusion strategy that produced the outcome.
func (o *FusionOutcome) Strategy() string { return o.strategy }

// TotalProcessingTimeSeconds returns the sum of per-modality analysis times.
func (o *FusionOutcome) TotalProcessingTimeSeconds() float64 { return o.totalProcessingTimeS }

// EffectiveWeights returns the renormalized weights actually used, keyed by
// present modality only.
func (o *FusionOutcome) EffectiveWeights() map[Modality]float64 {
	out := make(map[Modality]float64, len(o.effectiveWeights))
	for m, w := range o.effectiveWeights {
		out[m] = w
	}
	return out
}

// ModalitiesUsed returns the contributing modalities in canonical order.
func (o *FusionOutcome) ModalitiesUsed() []Modality {
	return append([]Modality(nil), o.modalitiesUsed...)
}

// Recommendations returns the banded recommendation list in order.
func (o *FusionOutcome) Recommendations() []string {
	return append([]string(nil), o.recommendations...)
}

// Findings returns the per-modality finding lines.
func (o *FusionOutcome) Findings() []string {
	return append([]string(nil), o.findings...)
}

// FusionOutcomeView is the serialized document form of a FusionOutcome.
type FusionOutcomeView struct {
	Prediction                 Prediction           `json:"prediction" yaml:"prediction"`
	PredictionLabel            string               `json:"prediction_label" yaml:"prediction_label"`
	Confidence                 float64              `json:"confidence" yaml:"confidence"`
	ProbabilityPositive        float64              `json:"probability_positive" yaml:"probability_positive"`
	ProbabilityNegative        float64              `json:"probability_negative" yaml:"probability_negative"`
	EffectiveWeights           map[Modality]float64 `json:"effective_weights" yaml:"effective_weights"`
	ModalitiesUsed             []Modality           `json:"modalities_used" yaml:"modalities_used"`
	RiskBand                   RiskBand             `json:"risk_band" yaml:"risk_band"`
	ClinicalSummary            string               `json:"clinical_summary" yaml:"clinical_summary"`
	Recommendations            []string             `json:"recommendations" yaml:"recommendations"`
	Findings                   []string             `json:"findings,omitempty" yaml:"findings,omitempty"`
	Strategy                   string               `json:"strategy" yaml:"strategy"`
	TotalProcessingTimeSeconds float64              `json:"total_processing_time_seconds" yaml:"total_processing_time_seconds"`
}

// View converts the outcome into its serializable document form.
func (o *FusionOutcome) View() FusionOutcomeView {
	return FusionOutcomeView{
		Prediction:                 o.prediction,
		PredictionLabel:            o.prediction.Label(),
		Confidence:                 o.confidence,
		ProbabilityPositive:        o.probabilityPositive,
		ProbabilityNegative:        o.probabilityNegative,
		EffectiveWeights:           o.EffectiveWeights(),
		ModalitiesUsed:             o.ModalitiesUsed(),
		RiskBand:                   o.riskBand,
		ClinicalSummary:            o.clinicalSummary,
		Recommendations:            o.Recommendations(),
		Findings:                   o.Findings(),
		Strategy:                   o.strategy,
		TotalProcessingTimeSeconds: o.totalProcessingTimeS,
	}
}

// Outcome rebuilds an immutable FusionOutcome from its document form, as
// read back from storage or a cache.
func (v FusionOutcomeView) Outcome() *FusionOutcome {
	return NewFusionOutcome(FusionOutcomeParams{
		Prediction:                 v.Prediction,
		Confidence:                 v.Confidence,
		ProbabilityPositive:        v.ProbabilityPositive,
		EffectiveWeights:           v.EffectiveWeights,
		ModalitiesUsed:             v.ModalitiesUsed,
		RiskBand:                   v.RiskBand,
		ClinicalSummary:            v.ClinicalSummary,
		Recommendations:            v.Recommendations,
		Findings:                   v.Findings,
		Strategy:                   v.Strategy,
		TotalProcessingTimeSeconds: v.TotalProcessingTimeSeconds,
	})
}

// MarshalJSON serializes the outcome through its view.
func (o *FusionOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.View())
}

// UnmarshalJSON restores an outcome from its view.
func (o *FusionOutcome) UnmarshalJSON(data []byte) error {
	var v FusionOutcomeView
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = *v.Outcome()
	return nil
}
