// Package service orchestrates screening assessments around the fusion
// engine: caching, persistence, analyzer fan-out, events and the clinician
// feedback loop.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/analyzer"
	"github.com/neuroscreen-fusion-server/internal/cache"
	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/events"
	"github.com/neuroscreen-fusion-server/internal/feedback"
	"github.com/neuroscreen-fusion-server/internal/fusion"
	"github.com/neuroscreen-fusion-server/internal/metrics"
	"github.com/neuroscreen-fusion-server/internal/report"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Dependencies wires an AssessmentService. Only Logger, Engine and
// Repository are required; the rest fall back to no-op implementations or
// disable the feature that needs them.
type Dependencies struct {
	Logger     *logrus.Logger
	Engine     *fusion.Engine
	Repository domain.AssessmentRepository
	Cache      cache.OutcomeCache
	CacheTTL   time.Duration
	Feedback   feedback.Store
	Publisher  events.Publisher
	Collector  *analyzer.Collector
	Metrics    *metrics.Metrics
}

// AssessmentService runs screening assessments.
type AssessmentService struct {
	logger    *logrus.Logger
	repo      domain.AssessmentRepository
	cache     cache.OutcomeCache
	cacheTTL  time.Duration
	feedback  feedback.Store
	publisher events.Publisher
	collector *analyzer.Collector
	metrics   *metrics.Metrics

	now   func() time.Time
	newID func() string

	mu     sync.RWMutex
	engine *fusion.Engine
}

// NewAssessmentService creates a new assessment service
func NewAssessmentService(deps Dependencies) (*AssessmentService, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("fusion engine is required")
	}
	if deps.Repository == nil {
		return nil, errors.New("assessment repository is required")
	}
	if deps.Cache == nil {
		deps.Cache = cache.NoopCache{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}

	return &AssessmentService{
		logger:    deps.Logger,
		repo:      deps.Repository,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		feedback:  deps.Feedback,
		publisher: deps.Publisher,
		collector: deps.Collector,
		metrics:   deps.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
		engine:    deps.Engine,
	}, nil
}

// Engine returns the engine currently in force.
func (s *AssessmentService) Engine() *fusion.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// FusionConfig returns a copy of the active fusion configuration.
func (s *AssessmentService) FusionConfig() domain.FusionConfig {
	return s.Engine().Config()
}

// SetFusionConfig validates cfg and swaps it in for subsequent assessments.
// The strategy is kept.
func (s *AssessmentService) SetFusionConfig(cfg domain.FusionConfig) error {
	_, err := s.replaceEngine(nil, cfg)
	return err
}

// replaceEngine installs cfg. When expected is non-nil the swap only happens
// if expected is still the active engine, and false is returned otherwise.
func (s *AssessmentService) replaceEngine(expected *fusion.Engine, cfg domain.FusionConfig) (bool, error) {
	if err := cfg.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expected != nil && s.engine != expected {
		return false, nil
	}
	engine, err := fusion.NewEngine(cfg, s.engine.Strategy())
	if err != nil {
		return false, err
	}
	s.engine = engine

	s.logger.WithFields(logrus.Fields{
		"weights":            cfg.BaseWeights,
		"positive_threshold": cfg.PositiveThreshold,
	}).Info("Fusion configuration updated")
	return true, nil
}

// FuseRequest is a stateless fusion call. Config and Strategy override the
// active engine when set.
type FuseRequest struct {
	Results  []domain.ModalityResult `json:"results"`
	Config   *domain.FusionConfig    `json:"config,omitempty"`
	Strategy string                  `json:"strategy,omitempty"`
}

// Fuse computes an outcome without storing anything.
func (s *AssessmentService) Fuse(ctx context.Context, req FuseRequest) (*domain.FusionOutcome, error) {
	engine := s.Engine()
	if req.Config != nil || req.Strategy != "" {
		cfg := engine.Config()
		if req.Config != nil {
			cfg = *req.Config
		}
		strategy := engine.Strategy()
		if req.Strategy != "" {
			parsed, err := fusion.ParseStrategy(req.Strategy)
			if err != nil {
				return nil, err
			}
			strategy = parsed
		}

		var err error
		engine, err = fusion.NewEngine(cfg, strategy)
		if err != nil {
			return nil, err
		}
	}
	return s.fuse(ctx, engine, req.Results)
}

func (s *AssessmentService) fuse(ctx context.Context, engine *fusion.Engine, results []domain.ModalityResult) (*domain.FusionOutcome, error) {
	strategy := engine.Strategy().String()

	key, keyErr := cache.Key(results, engine.Config(), strategy)
	if keyErr == nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.WithError(err).Warn("Outcome cache lookup failed")
		}
		if ok {
			s.metrics.CacheLookup(true)
			return cached, nil
		}
		s.metrics.CacheLookup(false)
	}

	start := time.Now()
	outcome, err := engine.Fuse(results)
	if err != nil {
		s.metrics.FusionError(domain.ErrorCode(err))
		s.logger.WithFields(logrus.Fields{
			"strategy": strategy,
			"error":    err,
		}).Warn("Fusion rejected")
		return nil, err
	}
	s.metrics.ObserveFusion(strategy, string(outcome.Prediction()), string(outcome.RiskBand()),
		outcome.ProbabilityPositive(), time.Since(start))

	if keyErr == nil {
		if err := s.cache.Set(ctx, key, outcome, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Outcome cache store failed")
		}
	}
	return outcome, nil
}

// AssessRequest carries the modality results of one screening visit.
type AssessRequest struct {
	RequestID string                  `json:"request_id,omitempty"`
	Patient   domain.PatientMetadata  `json:"patient"`
	Results   []domain.ModalityResult `json:"results"`
	Notes     []string                `json:"analyzer_notes,omitempty"`
}

// Assess fuses the results with the active configuration, stores the
// assessment and announces it.
func (s *AssessmentService) Assess(ctx context.Context, req AssessRequest) (*domain.AssessmentRecord, error) {
	if req.Patient.Age < 0 {
		return nil, domain.NewFieldError("", "patient.age", "age cannot be negative", req.Patient.Age)
	}

	engine := s.Engine()
	outcome, err := s.fuse(ctx, engine, req.Results)
	if err != nil {
		return nil, err
	}

	record := &domain.AssessmentRecord{
		ID:            s.newID(),
		RequestID:     req.RequestID,
		Patient:       req.Patient,
		Results:       append([]domain.ModalityResult(nil), req.Results...),
		Config:        engine.Config(),
		Outcome:       outcome.View(),
		AnalyzerNotes: req.Notes,
		CreatedAt:     s.now(),
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("storing assessment: %w", err)
	}

	err = s.publisher.PublishAssessmentCompleted(ctx, events.NewAssessmentCompleted(record))
	s.metrics.EventPublished(err)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"assessment_id": record.ID,
			"error":         err,
		}).Warn("Assessment stored but event was not published")
	}

	s.logger.WithFields(logrus.Fields{
		"assessment_id":        record.ID,
		"request_id":           record.RequestID,
		"prediction":           record.Outcome.Prediction,
		"probability_positive": record.Outcome.ProbabilityPositive,
		"risk_band":            record.Outcome.RiskBand,
		"modalities_used":      record.Outcome.ModalitiesUsed,
	}).Info("Assessment completed")

	return record, nil
}

// AnalysisRequest carries raw captures to be sent to the analyzers.
type AnalysisRequest struct {
	RequestID string                                    `json:"request_id,omitempty"`
	Patient   domain.PatientMetadata                    `json:"patient"`
	Inputs    map[domain.Modality]domain.AnalyzerInput `json:"inputs"`
}

// CollectAndAssess sends the captures to the configured analyzers, waits
// for whichever answer before the deadline and assesses those. It fails
// with domain.ErrAnalysisUnavailable when no analyzer produced a result.
func (s *AssessmentService) CollectAndAssess(ctx context.Context, req AnalysisRequest) (*domain.AssessmentRecord, error) {
	if s.collector == nil {
		return nil, domain.NewConfigurationError("", "no modality analyzers configured")
	}

	collection, err := s.collector.Collect(ctx, req.Inputs)
	if err != nil {
		return nil, err
	}
	if len(collection.Results) == 0 {
		return nil, fmt.Errorf("%w: no analyzer returned a result (%v)",
			domain.ErrAnalysisUnavailable, collection.Notes())
	}

	return s.Assess(ctx, AssessRequest{
		RequestID: req.RequestID,
		Patient:   req.Patient,
		Results:   collection.Results,
		Notes:     collection.Notes(),
	})
}

// GetAssessment retrieves a stored assessment.
func (s *AssessmentService) GetAssessment(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAssessments returns one page of assessments, newest first, and the
// total number stored.
func (s *AssessmentService) ListAssessments(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, int64, error) {
	limit, offset = clampPage(limit, offset)

	records, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// RenderReport renders the plain-text report of a stored assessment and
// returns it with its download filename.
func (s *AssessmentService) RenderReport(ctx context.Context, id string) (string, string, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", "", err
	}

	generatedAt := s.now()
	text, err := report.Render(report.FromRecord(record, generatedAt))
	if err != nil {
		return "", "", err
	}
	return text, report.Filename(record.ID, generatedAt), nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
