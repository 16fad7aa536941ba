package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite feedback store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a clinician submission is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assessment_id TEXT NOT NULL UNIQUE,
		patient_id TEXT NOT NULL DEFAULT '',
		predicted_label TEXT NOT NULL,
		confirmed_label TEXT NOT NULL,
		agreed INTEGER NOT NULL DEFAULT 0,
		probability_positive REAL NOT NULL DEFAULT 0,
		results TEXT NOT NULL DEFAULT '[]',
		clinician TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_patient_id ON feedback(patient_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates clinician feedback for an assessment.
func (s *SQLiteStore) Save(ctx context.Context, feedback *Feedback) error {
	if err := feedback.Validate(); err != nil {
		return err
	}
	results, err := marshalResults(feedback.Results)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	feedback.Agreed = feedback.PredictedLabel == feedback.ConfirmedLabel

	var existingID int64
	var createdAt time.Time
	err = s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM feedback WHERE assessment_id = ?",
		feedback.AssessmentID,
	).Scan(&existingID, &createdAt)

	if err == nil {
		feedback.ID = existingID
		feedback.CreatedAt = createdAt
		feedback.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE feedback SET
				patient_id = ?,
				predicted_label = ?,
				confirmed_label = ?,
				agreed = ?,
				probability_positive = ?,
				results = ?,
				clinician = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			feedback.PatientID,
			string(feedback.PredictedLabel),
			string(feedback.ConfirmedLabel),
			feedback.Agreed,
			feedback.ProbabilityPositive,
			string(results),
			feedback.Clinician,
			feedback.Notes,
			now,
			existingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update: %w", err)
		}
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	feedback.CreatedAt = now
	feedback.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (
			assessment_id, patient_id, predicted_label, confirmed_label, agreed,
			probability_positive, results, clinician, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		feedback.AssessmentID,
		feedback.PatientID,
		string(feedback.PredictedLabel),
		string(feedback.ConfirmedLabel),
		feedback.Agreed,
		feedback.ProbabilityPositive,
		string(results),
		feedback.Clinician,
		feedback.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	feedback.ID = id

	return nil
}

// Get retrieves feedback for an assessment.
func (s *SQLiteStore) Get(ctx context.Context, assessmentID string) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback
		WHERE assessment_id = ?
		LIMIT 1
	`, assessmentID)

	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return fb, nil
}

// List returns feedback entries with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&count)
	return count, err
}

// Delete removes a feedback entry by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM feedback WHERE id = ?", id)
	return err
}

// Cases returns every entry as a labeled case.
func (s *SQLiteStore) Cases(ctx context.Context) ([]domain.LabeledCase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback
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
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports feedback from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
