package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroscreen-fusion-server/internal/analyzer"
	"github.com/neuroscreen-fusion-server/internal/cache"
	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/events"
	"github.com/neuroscreen-fusion-server/internal/feedback"
	"github.com/neuroscreen-fusion-server/internal/fusion"
	"github.com/neuroscreen-fusion-server/internal/metrics"
	"github.com/neuroscreen-fusion-server/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.AssessmentCompleted
	err    error
}

func (p *recordingPublisher) PublishAssessmentCompleted(_ context.Context, e events.AssessmentCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type stubAnalyzer struct {
	modality domain.Modality
	result   *domain.ModalityResult
	err      error
}

func (s *stubAnalyzer) Modality() domain.Modality { return s.modality }

func (s *stubAnalyzer) Analyze(context.Context, domain.AnalyzerInput) (*domain.ModalityResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	return &r, nil
}

func result(m domain.Modality, confidence, pPositive float64) domain.ModalityResult {
	prediction := domain.NEGATIVE
	if pPositive > 0.5 {
		prediction = domain.POSITIVE
	}
	return domain.ModalityResult{
		Modality:              m,
		Prediction:            prediction,
		Confidence:            confidence,
		ProbabilityPositive:   pPositive,
		ProbabilityNegative:   1 - pPositive,
		ProcessingTimeSeconds: 1,
	}
}

func scenarioResults() []domain.ModalityResult {
	return []domain.ModalityResult{
		result(domain.VOICE, 0.75, 0.40),
		result(domain.IMAGING, 0.80, 0.30),
		result(domain.MOTOR, 0.70, 0.45),
	}
}

type fixture struct {
	svc       *AssessmentService
	repo      *repository.MemoryAssessmentRepository
	cache     *cache.MemoryCache
	publisher *recordingPublisher
	feedback  feedback.Store
}

func newFixture(t *testing.T, collector *analyzer.Collector) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	engine, err := fusion.NewEngine(domain.DefaultFusionConfig(), fusion.ConfidenceWeighted)
	require.NoError(t, err)

	store, err := feedback.NewSQLiteStore(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		repo:      repository.NewMemoryAssessmentRepository(),
		cache:     cache.NewMemoryCache(16, time.Minute),
		publisher: &recordingPublisher{},
		feedback:  store,
	}
	f.svc, err = NewAssessmentService(Dependencies{
		Logger:     logger,
		Engine:     engine,
		Repository: f.repo,
		Cache:      f.cache,
		CacheTTL:   time.Minute,
		Feedback:   store,
		Publisher:  f.publisher,
		Collector:  collector,
		Metrics:    metrics.New(),
	})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return f
}

func TestNewAssessmentService_RequiresDependencies(t *testing.T) {
	_, err := NewAssessmentService(Dependencies{})
	assert.Error(t, err)

	_, err = NewAssessmentService(Dependencies{Logger: logrus.New()})
	assert.Error(t, err)
}

func TestAssess_StoresAndPublishes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	record, err := f.svc.Assess(ctx, AssessRequest{
		RequestID: "req-42",
		Patient:   domain.PatientMetadata{PatientID: "P-7", Age: 68},
		Results:   scenarioResults(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, domain.NEGATIVE, record.Outcome.Prediction)
	assert.InDelta(t, 0.2745/0.76, record.Outcome.ProbabilityPositive, 1e-9)
	assert.Equal(t, domain.RiskLowModerate, record.Outcome.RiskBand)
	assert.Equal(t, domain.DefaultFusionConfig(), record.Config)

	stored, err := f.svc.GetAssessment(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Outcome, stored.Outcome)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, record.ID, f.publisher.events[0].AssessmentID)
	assert.Equal(t, "P-7", f.publisher.events[0].PatientID)
}

func TestAssess_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, nil)
	f.publisher.err = errors.New("broker down")

	record, err := f.svc.Assess(context.Background(), AssessRequest{Results: scenarioResults()})
	require.NoError(t, err)

	count, err := f.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.NotEmpty(t, record.ID)
}

func TestAssess_InvalidInputStoresNothing(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Assess(context.Background(), AssessRequest{})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	bad := scenarioResults()
	bad[0].Confidence = 2
	_, err = f.svc.Assess(context.Background(), AssessRequest{Results: bad})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = f.svc.Assess(context.Background(), AssessRequest{
		Patient: domain.PatientMetadata{Age: -1},
		Results: scenarioResults(),
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	count, _ := f.repo.Count(context.Background())
	assert.Zero(t, count)
	assert.Empty(t, f.publisher.events)
}

func TestFuse_UsesCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.Fuse(ctx, FuseRequest{Results: scenarioResults()})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Len())

	second, err := f.svc.Fuse(ctx, FuseRequest{Results: scenarioResults()})
	require.NoError(t, err)
	assert.Equal(t, first.View(), second.View())
	assert.Equal(t, 1, f.cache.Len())
}

func TestFuse_Overrides(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	outcome, err := f.svc.Fuse(ctx, FuseRequest{Results: scenarioResults(), Strategy: "simple_average"})
	require.NoError(t, err)
	assert.Equal(t, "simple_average", outcome.Strategy())
	assert.InDelta(t, (0.40+0.30+0.45)/3, outcome.ProbabilityPositive(), 1e-9)

	cfg := domain.FusionConfig{
		BaseWeights:       map[domain.Modality]float64{domain.VOICE: 1, domain.IMAGING: 0, domain.MOTOR: 0},
		PositiveThreshold: 0.35,
	}
	outcome, err = f.svc.Fuse(ctx, FuseRequest{Results: scenarioResults(), Config: &cfg})
	require.NoError(t, err)
	assert.InDelta(t, 0.40, outcome.ProbabilityPositive(), 1e-9)
	assert.Equal(t, domain.POSITIVE, outcome.Prediction())

	_, err = f.svc.Fuse(ctx, FuseRequest{Results: scenarioResults(), Strategy: "median"})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	assert.Equal(t, domain.DefaultFusionConfig(), f.svc.FusionConfig(), "overrides never change the active config")
}

func TestListAssessments(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		f.svc.now = func() time.Time { return at }
		record, err := f.svc.Assess(ctx, AssessRequest{Results: scenarioResults()})
		require.NoError(t, err)
		ids = append(ids, record.ID)
	}

	page, total, err := f.svc.ListAssessments(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)

	page, _, err = f.svc.ListAssessments(ctx, 0, -5)
	require.NoError(t, err)
	assert.Len(t, page, 3, "defaults apply to a zero limit and negative offset")
}

func TestRenderReport(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	record, err := f.svc.Assess(ctx, AssessRequest{
		Patient: domain.PatientMetadata{PatientID: "P-7", Name: "Jordan Doe", Age: 68},
		Results: scenarioResults(),
	})
	require.NoError(t, err)

	text, filename, err := f.svc.RenderReport(ctx, record.ID)
	require.NoError(t, err)
	assert.Contains(t, text, record.ID)
	assert.Contains(t, text, "Jordan Doe")
	assert.Contains(t, text, "RECOMMENDATIONS")
	assert.Equal(t, "parkinsons-screening-"+record.ID+"-20260314-093000.txt", filename)

	_, _, err = f.svc.RenderReport(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCollectAndAssess(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	voice := result(domain.VOICE, 0.75, 0.40)
	collector := analyzer.NewCollector(time.Second, logger,
		&stubAnalyzer{modality: domain.VOICE, result: &voice},
		&stubAnalyzer{modality: domain.IMAGING, err: errors.New("scanner offline")},
	)
	f := newFixture(t, collector)

	record, err := f.svc.CollectAndAssess(context.Background(), AnalysisRequest{
		Inputs: map[domain.Modality]domain.AnalyzerInput{
			domain.VOICE:   {ContentType: "audio/wav"},
			domain.IMAGING: {ContentType: "application/dicom"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Modality{domain.VOICE}, record.Outcome.ModalitiesUsed)
	assert.InDelta(t, 1.0, record.Outcome.EffectiveWeights[domain.VOICE], 1e-9)
	require.Len(t, record.AnalyzerNotes, 1)
	assert.Equal(t, "DaTscan Imaging: scanner offline", record.AnalyzerNotes[0])
}

func TestCollectAndAssess_NothingArrived(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	collector := analyzer.NewCollector(time.Second, logger,
		&stubAnalyzer{modality: domain.MOTOR, err: errors.New("timeout")},
	)
	f := newFixture(t, collector)

	_, err := f.svc.CollectAndAssess(context.Background(), AnalysisRequest{
		Inputs: map[domain.Modality]domain.AnalyzerInput{domain.MOTOR: {}},
	})
	assert.True(t, errors.Is(err, domain.ErrAnalysisUnavailable))

	count, _ := f.repo.Count(context.Background())
	assert.Zero(t, count)
}

func TestCollectAndAssess_NoCollector(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CollectAndAssess(context.Background(), AnalysisRequest{})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
