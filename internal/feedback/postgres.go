package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL feedback store.
// It expects the database and schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL feedback store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

const pgSelectFeedback = `
		SELECT id, assessment_id, patient_id, predicted_label, confirmed_label, agreed,
			probability_positive, results, clinician, notes, created_at, updated_at
		FROM feedback`

// Save stores or updates clinician feedback for an assessment.
func (s *PostgresStore) Save(ctx context.Context, feedback *Feedback) error {
	if err := feedback.Validate(); err != nil {
		return err
	}
	results, err := marshalResults(feedback.Results)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	feedback.Agreed = feedback.PredictedLabel == feedback.ConfirmedLabel

	query := `
		INSERT INTO feedback (
			assessment_id, patient_id, predicted_label, confirmed_label, agreed,
			probability_positive, results, clinician, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (assessment_id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			predicted_label = EXCLUDED.predicted_label,
			confirmed_label = EXCLUDED.confirmed_label,
			agreed = EXCLUDED.agreed,
			probability_positive = EXCLUDED.probability_positive,
			results = EXCLUDED.results,
			clinician = EXCLUDED.clinician,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		feedback.AssessmentID,
		feedback.PatientID,
		string(feedback.PredictedLabel),
		string(feedback.ConfirmedLabel),
		feedback.Agreed,
		feedback.ProbabilityPositive,
		results,
		feedback.Clinician,
		feedback.Notes,
		now,
		now,
	).Scan(&feedback.ID, &feedback.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	feedback.UpdatedAt = now
	return nil
}

// Get retrieves feedback for an assessment.
func (s *PostgresStore) Get(ctx context.Context, assessmentID string) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx, pgSelectFeedback+`
		WHERE assessment_id = $1
		LIMIT 1
	`, assessmentID)

	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return fb, nil
}

// List returns feedback entries with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx, pgSelectFeedback+`
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var result []*Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, fb)
	}

	return result, rows.Err()
}

// Count returns the total number of feedback entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}

// Delete removes a feedback entry by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM feedback WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	return nil
}

// Cases returns every entry as a labeled case.
func (s *PostgresStore) Cases(ctx context.Context) ([]domain.LabeledCase, error) {
	rows, err := s.db.QueryContext(ctx, pgSelectFeedback+`
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []domain.LabeledCase
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		cases = append(cases, fb.Case())
	}
	return cases, rows.Err()
}

// ExportJSON exports all feedback to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports feedback from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
