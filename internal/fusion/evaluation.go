package fusion

import (
	"fmt"
	"math/rand/v2"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// Metrics summarizes fused predictions against confirmed labels.
type Metrics struct {
	Total          int     `json:"total" yaml:"total"`
	TruePositives  int     `json:"true_positives" yaml:"true_positives"`
	TrueNegatives  int     `json:"true_negatives" yaml:"true_negatives"`
	FalsePositives int     `json:"false_positives" yaml:"false_positives"`
	FalseNegatives int     `json:"false_negatives" yaml:"false_negatives"`
	Accuracy       float64 `json:"accuracy" yaml:"accuracy"`
	Sensitivity    float64 `json:"sensitivity" yaml:"sensitivity"`
	Specificity    float64 `json:"specificity" yaml:"specificity"`
	Precision      float64 `json:"precision" yaml:"precision"`
	F1             float64 `json:"f1_score" yaml:"f1_score"`
}

// Better reports whether m beats other on accuracy, then F1.
func (m Metrics) Better(other Metrics) bool {
	if m.Accuracy != other.Accuracy {
		return m.Accuracy > other.Accuracy
	}
	return m.F1 > other.F1
}

// Evaluate fuses every labeled case with engine and scores the predictions.
// A case that fails to fuse aborts the evaluation.
func Evaluate(engine *Engine, cases []domain.LabeledCase) (Metrics, error) {
	if len(cases) == 0 {
		return Metrics{}, domain.NewInvalidInputError("no labeled cases provided")
	}

	var m Metrics
	for i, c := range cases {
		if !c.Label.IsValid() {
			return Metrics{}, domain.NewInvalidInputError(fmt.Sprintf("case %d: unknown label %q", i, c.Label))
		}
		outcome, err := engine.Fuse(c.Results)
		if err != nil {
			return Metrics{}, fmt.Errorf("case %d: %w", i, err)
		}

		predicted := outcome.Prediction()
		switch {
		case predicted == domain.POSITIVE && c.Label == domain.POSITIVE:
			m.TruePositives++
		case predicted == domain.NEGATIVE && c.Label == domain.NEGATIVE:
			m.TrueNegatives++
		case predicted == domain.POSITIVE:
			m.FalsePositives++
		default:
			m.FalseNegatives++
		}
	}

	m.Total = len(cases)
	m.Accuracy = ratio(m.TruePositives+m.TrueNegatives, m.Total)
	m.Sensitivity = ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
	m.Specificity = ratio(m.TrueNegatives, m.TrueNegatives+m.FalsePositives)
	m.Precision = ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
	if m.Precision+m.Sensitivity > 0 {
		m.F1 = 2 * m.Precision * m.Sensitivity / (m.Precision + m.Sensitivity)
	}
	return m, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// WeightRange bounds the raw weight sampled for one modality before the
// candidate is renormalized.
type WeightRange struct {
	Min float64 `json:"min" mapstructure:"min"`
	Max float64 `json:"max" mapstructure:"max"`
}

// DefaultWeightRanges returns the search ranges used when none are given.
func DefaultWeightRanges() map[domain.Modality]WeightRange {
	return map[domain.Modality]WeightRange{
		domain.VOICE:   {Min: 0.1, Max: 0.4},
		domain.IMAGING: {Min: 0.3, Max: 0.7},
		domain.MOTOR:   {Min: 0.1, Max: 0.5},
	}
}

// OptimizeOptions controls the weight search.
type OptimizeOptions struct {
	Trials   int
	Seed     uint64
	Ranges   map[domain.Modality]WeightRange
	Strategy Strategy
}

// OptimizationResult reports the best configuration found and how it compares
// to the configuration the search started from.
type OptimizationResult struct {
	BestConfig domain.FusionConfig `json:"best_config" yaml:"best_config"`
	Best       Metrics             `json:"best_metrics" yaml:"best_metrics"`
	Baseline   Metrics             `json:"baseline_metrics" yaml:"baseline_metrics"`
	Trials     int                 `json:"trials" yaml:"trials"`
	Improved   bool                `json:"improved" yaml:"improved"`
}

// DefaultTrials is the number of random candidates tried per search.
const DefaultTrials = 100

// OptimizeWeights runs a seeded random search over base weights. Each trial
// samples a raw weight per modality from its range and renormalizes the set
// to sum to one. The starting configuration is the baseline, so the result is
// never worse than it. The same seed and cases always give the same result.
func OptimizeWeights(start domain.FusionConfig, cases []domain.LabeledCase, opts OptimizeOptions) (*OptimizationResult, error) {
	if opts.Trials <= 0 {
		opts.Trials = DefaultTrials
	}
	if opts.Ranges == nil {
		opts.Ranges = DefaultWeightRanges()
	}
	for _, m := range domain.AllModalities() {
		r, ok := opts.Ranges[m]
		if !ok {
			return nil, domain.NewConfigurationError(m, "no weight search range configured")
		}
		if r.Min < 0 || r.Max < r.Min {
			return nil, domain.NewConfigurationError(m, fmt.Sprintf("invalid weight search range [%v,%v]", r.Min, r.Max))
		}
	}

	engine, err := NewEngine(start, opts.Strategy)
	if err != nil {
		return nil, err
	}
	baseline, err := Evaluate(engine, cases)
	if err != nil {
		return nil, err
	}

	result := &OptimizationResult{
		BestConfig: start.Clone(),
		Best:       baseline,
		Baseline:   baseline,
		Trials:     opts.Trials,
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	for i := 0; i < opts.Trials; i++ {
		candidate, ok := sampleConfig(rng, opts.Ranges, start.PositiveThreshold)
		if !ok {
			continue
		}
		engine, err := NewEngine(candidate, opts.Strategy)
		if err != nil {
			return nil, err
		}
		metrics, err := Evaluate(engine, cases)
		if err != nil {
			return nil, err
		}
		if metrics.Better(result.Best) {
			result.Best = metrics
			result.BestConfig = candidate
			result.Improved = true
		}
	}
	return result, nil
}

func sampleConfig(rng *rand.Rand, ranges map[domain.Modality]WeightRange, threshold float64) (domain.FusionConfig, bool) {
	raw := make(map[domain.Modality]float64, len(ranges))
	for _, m := range domain.AllModalities() {
		r := ranges[m]
		raw[m] = r.Min + rng.Float64()*(r.Max-r.Min)
	}
	weights, ok := normalize(raw)
	if !ok {
		return domain.FusionConfig{}, false
	}
	return domain.FusionConfig{BaseWeights: weights, PositiveThreshold: threshold}, true
}
