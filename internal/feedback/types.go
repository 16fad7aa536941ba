// Package feedback stores clinician-confirmed diagnoses for screening
// assessments. Confirmed cases are the ground truth used to evaluate and
// tune the fusion weights.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// Feedback represents a clinician's confirmed diagnosis for one assessment.
type Feedback struct {
	ID                  int64                   `json:"id,omitempty"`
	AssessmentID        string                  `json:"assessment_id"`
	PatientID           string                  `json:"patient_id,omitempty"`
	PredictedLabel      domain.Prediction       `json:"predicted_label"`      // Fused screening decision
	ConfirmedLabel      domain.Prediction       `json:"confirmed_label"`      // Clinician's diagnosis
	Agreed              bool                    `json:"agreed"`               // Did the clinician agree with the screen?
	ProbabilityPositive float64                 `json:"probability_positive"` // Fused probability at assessment time
	Results             []domain.ModalityResult `json:"results"`              // Modality inputs, replayed for evaluation
	Clinician           string                  `json:"clinician,omitempty"`
	Notes               string                  `json:"notes,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// Validate checks that a feedback entry can be stored and replayed.
func (f *Feedback) Validate() error {
	if f.AssessmentID == "" {
		return domain.NewInvalidInputError("assessment_id is required")
	}
	if !f.ConfirmedLabel.IsValid() {
		return domain.NewInvalidInputError(fmt.Sprintf("confirmed_label %q is not a valid label", f.ConfirmedLabel))
	}
	if len(f.Results) == 0 {
		return domain.NewInvalidInputError("feedback must carry the assessment's modality results")
	}
	return nil
}

// Case converts the entry into a labeled case.
func (f *Feedback) Case() domain.LabeledCase {
	return domain.LabeledCase{
		AssessmentID: f.AssessmentID,
		Results:      append([]domain.ModalityResult(nil), f.Results...),
		Label:        f.ConfirmedLabel,
	}
}

// Store defines the interface for feedback storage operations.
type Store interface {
	// Save stores or updates feedback. An existing entry for the same
	// assessment is overwritten.
	Save(ctx context.Context, feedback *Feedback) error

	// Get retrieves feedback for an assessment, or nil if there is none.
	Get(ctx context.Context, assessmentID string) (*Feedback, error)

	// List returns feedback entries, newest first.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	// Count returns the total number of feedback entries.
	Count(ctx context.Context) (int64, error)

	// Delete removes a feedback entry by ID.
	Delete(ctx context.Context, id int64) error

	// Cases returns every entry as a labeled case, oldest first.
	Cases(ctx context.Context) ([]domain.LabeledCase, error)

	// ExportJSON exports all feedback to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports feedback from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// FeedbackExport represents the JSON export format.
type FeedbackExport struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}

// ExportVersion is written into every export.
const ExportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

func exportJSON(ctx context.Context, store Store, writer io.Writer) error {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}

	export := &FeedbackExport{
		Version:    ExportVersion,
		ExportedAt: time.Now(),
		Count:      len(all),
		Feedback:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// importJSON saves entries whose assessment has no feedback yet. Existing
// entries are never overwritten by an import.
func importJSON(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export FeedbackExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, fb := range export.Feedback {
		existing, err := store.Get(ctx, fb.AssessmentID)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		fb.ID = 0
		if err := store.Save(ctx, fb); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// feedbackColumns is the column list shared by every SELECT.
const feedbackColumns = `id, assessment_id, patient_id, predicted_label, confirmed_label, agreed,
			probability_positive, results, clinician, notes, created_at, updated_at`

// scanFeedback scans a row into a Feedback struct.
func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	var predicted, confirmed string
	var results []byte

	err := s.Scan(
		&fb.ID, &fb.AssessmentID, &fb.PatientID, &predicted, &confirmed, &fb.Agreed,
		&fb.ProbabilityPositive, &results, &fb.Clinician, &fb.Notes, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	fb.PredictedLabel = domain.Prediction(predicted)
	fb.ConfirmedLabel = domain.Prediction(confirmed)
	if len(results) > 0 {
		if err := json.Unmarshal(results, &fb.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results for assessment %s: %w", fb.AssessmentID, err)
		}
	}
	return fb, nil
}

func marshalResults(results []domain.ModalityResult) ([]byte, error) {
	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	return data, nil
}

// Open creates the store selected by cfg. databaseURL is only used by the
// postgres driver.
func Open(cfg domain.FeedbackConfig, databaseURL string) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "data/feedback.db"
		}
		return NewSQLiteStore(path)
	case "postgres":
		return NewPostgresStoreFromURL(databaseURL)
	default:
		return nil, domain.NewConfigurationError("", fmt.Sprintf("unknown feedback driver %q", cfg.Driver))
	}
}
