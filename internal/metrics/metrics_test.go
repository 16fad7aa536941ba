package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveFusion("confidence_weighted", "NEGATIVE", "LOW_MODERATE", 0.36, time.Millisecond)
	m.ObserveFusion("confidence_weighted", "NEGATIVE", "LOW_MODERATE", 0.41, time.Millisecond)
	m.FusionError("INVALID_INPUT")
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.AnalyzerCall("VOICE", nil, 20*time.Millisecond)
	m.AnalyzerCall("VOICE", errors.New("boom"), 5*time.Millisecond)
	m.EventPublished(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fusionRuns.WithLabelValues("confidence_weighted", "NEGATIVE", "LOW_MODERATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fusionErrors.WithLabelValues("INVALID_INPUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analyzerCalls.WithLabelValues("VOICE", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("ok")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFusion("simple_average", "POSITIVE", "HIGH", 0.9, time.Millisecond)
		m.FusionError("CONFIGURATION_ERROR")
		m.CacheLookup(true)
		m.AnalyzerCall("MOTOR", nil, time.Millisecond)
		m.EventPublished(nil)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveFusion("majority_vote", "POSITIVE", "HIGH", 0.8, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `neurofusion_fusion_runs_total{prediction="POSITIVE",risk_band="HIGH",strategy="majority_vote"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
