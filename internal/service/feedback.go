package service

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/feedback"
	"github.com/neuroscreen-fusion-server/internal/fusion"
)

// FeedbackRequest records the clinician-confirmed diagnosis for an
// assessment.
type FeedbackRequest struct {
	AssessmentID   string            `json:"assessment_id"`
	ConfirmedLabel domain.Prediction `json:"confirmed_label"`
	Clinician      string            `json:"clinician,omitempty"`
	Notes          string            `json:"notes,omitempty"`
}

// OptimizeRequest controls a weight search over stored feedback. When Apply
// is set and the search beat the active configuration, the new weights go
// into force immediately.
type OptimizeRequest struct {
	Trials int    `json:"trials,omitempty"`
	Seed   uint64 `json:"seed,omitempty"`
	Apply  bool   `json:"apply,omitempty"`
}

// OptimizeResponse is the search result plus whether it was applied.
type OptimizeResponse struct {
	*fusion.OptimizationResult
	Cases   int  `json:"cases"`
	Applied bool `json:"applied"`
}

func (s *AssessmentService) feedbackStore() (feedback.Store, error) {
	if s.feedback == nil {
		return nil, domain.NewConfigurationError("", "feedback store not configured")
	}
	return s.feedback, nil
}

// SubmitFeedback stores the confirmed label alongside the assessment's
// inputs so the case can be replayed when evaluating weights. Submitting
// again for the same assessment replaces the earlier entry.
func (s *AssessmentService) SubmitFeedback(ctx context.Context, req FeedbackRequest) (*feedback.Feedback, error) {
	store, err := s.feedbackStore()
	if err != nil {
		return nil, err
	}
	if !req.ConfirmedLabel.IsValid() {
		return nil, domain.NewFieldError("", "confirmed_label", "must be POSITIVE or NEGATIVE", req.ConfirmedLabel)
	}

	record, err := s.repo.GetByID(ctx, req.AssessmentID)
	if err != nil {
		return nil, err
	}

	fb := &feedback.Feedback{
		AssessmentID:        record.ID,
		PatientID:           record.Patient.PatientID,
		PredictedLabel:      record.Outcome.Prediction,
		ConfirmedLabel:      req.ConfirmedLabel,
		ProbabilityPositive: record.Outcome.ProbabilityPositive,
		Results:             record.Results,
		Clinician:           req.Clinician,
		Notes:               req.Notes,
	}
	if err := store.Save(ctx, fb); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"assessment_id":   fb.AssessmentID,
		"predicted_label": fb.PredictedLabel,
		"confirmed_label": fb.ConfirmedLabel,
		"agreed":          fb.Agreed,
	}).Info("Clinician feedback recorded")

	return fb, nil
}

// ListFeedback returns one page of feedback, newest first, and the total.
func (s *AssessmentService) ListFeedback(ctx context.Context, limit, offset int) ([]*feedback.Feedback, int64, error) {
	store, err := s.feedbackStore()
	if err != nil {
		return nil, 0, err
	}
	limit, offset = clampPage(limit, offset)

	entries, err := store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ExportFeedback writes every feedback entry as a versioned JSON document.
func (s *AssessmentService) ExportFeedback(ctx context.Context, w io.Writer) error {
	store, err := s.feedbackStore()
	if err != nil {
		return err
	}
	return store.ExportJSON(ctx, w)
}

// ImportFeedback loads an export produced by ExportFeedback. Entries for
// assessments that already have feedback are skipped and counted.
func (s *AssessmentService) ImportFeedback(ctx context.Context, r io.Reader) (int, int, error) {
	store, err := s.feedbackStore()
	if err != nil {
		return 0, 0, err
	}
	imported, skipped, err := store.ImportJSON(ctx, r)
	if err != nil {
		return imported, skipped, err
	}
	s.logger.WithFields(logrus.Fields{
		"imported": imported,
		"skipped":  skipped,
	}).Info("Feedback imported")
	return imported, skipped, nil
}

func (s *AssessmentService) labeledCases(ctx context.Context) ([]domain.LabeledCase, error) {
	store, err := s.feedbackStore()
	if err != nil {
		return nil, err
	}
	cases, err := store.Cases(ctx)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, domain.NewInvalidInputError("no clinician feedback recorded yet")
	}
	return cases, nil
}

// EvaluateWeights scores cfg, or the active configuration when cfg is nil,
// against every labeled case.
func (s *AssessmentService) EvaluateWeights(ctx context.Context, cfg *domain.FusionConfig) (fusion.Metrics, error) {
	cases, err := s.labeledCases(ctx)
	if err != nil {
		return fusion.Metrics{}, err
	}

	engine := s.Engine()
	if cfg != nil {
		engine, err = fusion.NewEngine(*cfg, engine.Strategy())
		if err != nil {
			return fusion.Metrics{}, err
		}
	}
	return fusion.Evaluate(engine, cases)
}

// OptimizeWeights searches for base weights that classify the labeled cases
// better than the active configuration. With Apply set, the best weights are
// installed only if the configuration the search started from is still
// active; a concurrent SetFusionConfig wins and Applied stays false.
func (s *AssessmentService) OptimizeWeights(ctx context.Context, req OptimizeRequest) (*OptimizeResponse, error) {
	cases, err := s.labeledCases(ctx)
	if err != nil {
		return nil, err
	}

	engine := s.Engine()
	result, err := fusion.OptimizeWeights(engine.Config(), cases, fusion.OptimizeOptions{
		Trials:   req.Trials,
		Seed:     req.Seed,
		Strategy: engine.Strategy(),
	})
	if err != nil {
		return nil, err
	}

	resp := &OptimizeResponse{OptimizationResult: result, Cases: len(cases)}
	if req.Apply && result.Improved {
		applied, err := s.replaceEngine(engine, result.BestConfig)
		if err != nil {
			return nil, err
		}
		if !applied {
			s.logger.Warn("Fusion configuration changed during optimisation, result not applied")
		}
		resp.Applied = applied
	}

	s.logger.WithFields(logrus.Fields{
		"cases":             len(cases),
		"trials":            result.Trials,
		"baseline_accuracy": result.Baseline.Accuracy,
		"best_accuracy":     result.Best.Accuracy,
		"improved":          result.Improved,
		"applied":           resp.Applied,
	}).Info("Weight optimisation finished")

	return resp, nil
}
