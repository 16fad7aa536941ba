package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/service"
)

func testConfig(t *testing.T) *domain.Config {
	t.Helper()
	defaults := domain.DefaultFusionConfig()
	return &domain.Config{
		Fusion: domain.FusionSettings{
			Strategy:          "confidence_weighted",
			PositiveThreshold: defaults.PositiveThreshold,
			BaseWeights: domain.WeightSettings{
				Voice:   defaults.BaseWeights[domain.VOICE],
				Imaging: defaults.BaseWeights[domain.IMAGING],
				Motor:   defaults.BaseWeights[domain.MOTOR],
			},
		},
		Feedback: domain.FeedbackConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "feedback.db"),
		},
		Cache: domain.CacheConfig{
			Enabled:    true,
			Backend:    "memory",
			MaxItems:   10,
			DefaultTTL: time.Minute,
		},
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestNew_InProcessBackends(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), quietLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Empty(t, a.Checks, "no external backends to probe")
	require.NotNil(t, a.Service)

	record, err := a.Service.Assess(context.Background(), service.AssessRequest{
		Results: []domain.ModalityResult{{
			Modality: domain.MOTOR, Prediction: domain.POSITIVE,
			Confidence: 0.8, ProbabilityPositive: 0.7, ProbabilityNegative: 0.3,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.POSITIVE, record.Outcome.Prediction)

	_, err = a.Service.CollectAndAssess(context.Background(), service.AnalysisRequest{
		Inputs: map[domain.Modality]domain.AnalyzerInput{domain.VOICE: {ContentType: "audio/wav"}},
	})
	assert.ErrorIs(t, err, domain.ErrConfiguration, "no analyzers configured")
}

func TestNew_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"unknown strategy", func(c *domain.Config) { c.Fusion.Strategy = "median" }},
		{"weights off", func(c *domain.Config) { c.Fusion.BaseWeights.Voice = 0.9 }},
		{"unknown cache backend", func(c *domain.Config) { c.Cache.Backend = "memcached" }},
		{"unknown feedback driver", func(c *domain.Config) { c.Feedback.Driver = "mongo" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			_, err := New(context.Background(), cfg, quietLogger())
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), quietLogger())
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
