package fusion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

func labeled(label domain.Prediction, results ...domain.ModalityResult) domain.LabeledCase {
	return domain.LabeledCase{Results: results, Label: label}
}

// Imaging is decisive in these cases while voice points the wrong way, so a
// search that shifts weight toward imaging must improve accuracy.
func imagingDecisiveCases() []domain.LabeledCase {
	var cases []domain.LabeledCase
	for i := 0; i < 5; i++ {
		cases = append(cases,
			labeled(domain.POSITIVE,
				result(domain.VOICE, 0.9, 0.05, 1),
				result(domain.IMAGING, 0.9, 0.95, 1),
				result(domain.MOTOR, 0.9, 0.30, 1)),
			labeled(domain.NEGATIVE,
				result(domain.VOICE, 0.9, 0.95, 1),
				result(domain.IMAGING, 0.9, 0.05, 1),
				result(domain.MOTOR, 0.9, 0.60, 1)),
		)
	}
	return cases
}

func TestEvaluate(t *testing.T) {
	engine, err := NewEngine(domain.DefaultFusionConfig(), ConfidenceWeighted)
	require.NoError(t, err)

	cases := []domain.LabeledCase{
		labeled(domain.POSITIVE, result(domain.IMAGING, 0.9, 0.9, 1)),
		labeled(domain.POSITIVE, result(domain.IMAGING, 0.9, 0.2, 1)),
		labeled(domain.NEGATIVE, result(domain.IMAGING, 0.9, 0.1, 1)),
		labeled(domain.NEGATIVE, result(domain.IMAGING, 0.9, 0.8, 1)),
		labeled(domain.NEGATIVE, result(domain.IMAGING, 0.9, 0.3, 1)),
	}

	m, err := Evaluate(engine, cases)
	require.NoError(t, err)

	assert.Equal(t, 5, m.Total)
	assert.Equal(t, 1, m.TruePositives)
	assert.Equal(t, 2, m.TrueNegatives)
	assert.Equal(t, 1, m.FalsePositives)
	assert.Equal(t, 1, m.FalseNegatives)
	assert.InDelta(t, 0.6, m.Accuracy, 1e-12)
	assert.InDelta(t, 0.5, m.Sensitivity, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.Specificity, 1e-12)
	assert.InDelta(t, 0.5, m.Precision, 1e-12)
	assert.InDelta(t, 0.5, m.F1, 1e-12)
}

func TestEvaluate_Errors(t *testing.T) {
	engine, err := NewEngine(domain.DefaultFusionConfig(), ConfidenceWeighted)
	require.NoError(t, err)

	_, err = Evaluate(engine, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = Evaluate(engine, []domain.LabeledCase{labeled(domain.POSITIVE)})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Contains(t, err.Error(), "case 0")

	_, err = Evaluate(engine, []domain.LabeledCase{labeled("UNSURE", result(domain.VOICE, 0.5, 0.5, 1))})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestMetrics_NoPositivePredictions(t *testing.T) {
	engine, err := NewEngine(domain.DefaultFusionConfig(), ConfidenceWeighted)
	require.NoError(t, err)

	m, err := Evaluate(engine, []domain.LabeledCase{labeled(domain.NEGATIVE, result(domain.VOICE, 0.5, 0.1, 1))})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Precision)
	assert.Equal(t, 0.0, m.F1)
	assert.Equal(t, 1.0, m.Accuracy)
}

func TestOptimizeWeights_ImprovesOnBaseline(t *testing.T) {
	start := domain.FusionConfig{
		BaseWeights:       map[domain.Modality]float64{domain.VOICE: 0.6, domain.IMAGING: 0.2, domain.MOTOR: 0.2},
		PositiveThreshold: 0.5,
	}

	res, err := OptimizeWeights(start, imagingDecisiveCases(), OptimizeOptions{Trials: 50, Seed: 7})
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Baseline.Accuracy)
	assert.True(t, res.Improved)
	assert.Equal(t, 1.0, res.Best.Accuracy)
	assert.NoError(t, res.BestConfig.Validate())
	assert.Greater(t, res.BestConfig.BaseWeights[domain.IMAGING], res.BestConfig.BaseWeights[domain.VOICE])
	assert.Equal(t, 50, res.Trials)
}

func TestOptimizeWeights_Deterministic(t *testing.T) {
	opts := OptimizeOptions{Trials: 30, Seed: 42}

	a, err := OptimizeWeights(domain.DefaultFusionConfig(), imagingDecisiveCases(), opts)
	require.NoError(t, err)
	b, err := OptimizeWeights(domain.DefaultFusionConfig(), imagingDecisiveCases(), opts)
	require.NoError(t, err)

	assert.Equal(t, a.BestConfig, b.BestConfig)
	assert.Equal(t, a.Best, b.Best)
}

func TestOptimizeWeights_NeverWorseThanStart(t *testing.T) {
	res, err := OptimizeWeights(domain.DefaultFusionConfig(), imagingDecisiveCases(), OptimizeOptions{Trials: 5, Seed: 1})
	require.NoError(t, err)

	assert.False(t, res.Baseline.Better(res.Best))
	if !res.Improved {
		assert.Equal(t, domain.DefaultFusionConfig(), res.BestConfig)
	}
}

func TestOptimizeWeights_Errors(t *testing.T) {
	_, err := OptimizeWeights(domain.DefaultFusionConfig(), nil, OptimizeOptions{})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = OptimizeWeights(domain.DefaultFusionConfig(), imagingDecisiveCases(), OptimizeOptions{
		Ranges: map[domain.Modality]WeightRange{domain.VOICE: {Min: 0.1, Max: 0.2}},
	})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	ranges := DefaultWeightRanges()
	ranges[domain.MOTOR] = WeightRange{Min: 0.5, Max: 0.1}
	_, err = OptimizeWeights(domain.DefaultFusionConfig(), imagingDecisiveCases(), OptimizeOptions{Ranges: ranges})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
