package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// AssessmentRepository handles assessment persistence in PostgreSQL.
type AssessmentRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *pgxpool.Pool, logger *logrus.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a new assessment into the database
func (r *AssessmentRepository) Create(ctx context.Context, record *domain.AssessmentRecord) error {
	if _, err := uuid.Parse(record.ID); err != nil {
		return domain.NewInvalidInputError(fmt.Sprintf("assessment id %q is not a UUID", record.ID))
	}

	patientJSON, err := json.Marshal(record.Patient)
	if err != nil {
		return fmt.Errorf("marshaling patient: %w", err)
	}
	resultsJSON, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	configJSON, err := json.Marshal(record.Config)
	if err != nil {
		return fmt.Errorf("marshaling fusion config: %w", err)
	}
	outcomeJSON, err := json.Marshal(record.Outcome)
	if err != nil {
		return fmt.Errorf("marshaling outcome: %w", err)
	}
	notes := record.AnalyzerNotes
	if notes == nil {
		notes = []string{}
	}
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("marshaling analyzer notes: %w", err)
	}

	query := `
		INSERT INTO assessments (
			id, request_id, patient_id, patient, results, fusion_config, outcome,
			prediction, probability_positive, risk_band, analyzer_notes, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err = r.db.Exec(ctx, query,
		record.ID,
		record.RequestID,
		record.Patient.PatientID,
		patientJSON,
		resultsJSON,
		configJSON,
		outcomeJSON,
		string(record.Outcome.Prediction),
		record.Outcome.ProbabilityPositive,
		string(record.Outcome.RiskBand),
		notesJSON,
		record.CreatedAt,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": record.ID,
			"prediction":    record.Outcome.Prediction,
			"error":         err,
		}).Error("Failed to create assessment")
		return fmt.Errorf("creating assessment: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"assessment_id":        record.ID,
		"prediction":           record.Outcome.Prediction,
		"probability_positive": record.Outcome.ProbabilityPositive,
		"risk_band":            record.Outcome.RiskBand,
	}).Info("Assessment created successfully")

	return nil
}

const selectAssessment = `
		SELECT id, request_id, patient, results, fusion_config, outcome, analyzer_notes, created_at
		FROM assessments`

// GetByID retrieves an assessment by its ID
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	record, err := scanAssessment(r.db.QueryRow(ctx, selectAssessment+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting assessment: %w", err)
	}
	return record, nil
}

// List retrieves assessments, newest first
func (r *AssessmentRepository) List(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, error) {
	rows, err := r.db.Query(ctx, selectAssessment+`
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	defer rows.Close()

	var records []*domain.AssessmentRecord
	for rows.Next() {
		record, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning assessment: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessments: %w", err)
	}
	return records, nil
}

// Count returns the number of stored assessments
func (r *AssessmentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM assessments").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting assessments: %w", err)
	}
	return count, nil
}

func scanAssessment(row pgx.Row) (*domain.AssessmentRecord, error) {
	var record domain.AssessmentRecord
	var patientJSON, resultsJSON, configJSON, outcomeJSON, notesJSON []byte

	err := row.Scan(
		&record.ID,
		&record.RequestID,
		&patientJSON,
		&resultsJSON,
		&configJSON,
		&outcomeJSON,
		&notesJSON,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patientJSON, &record.Patient); err != nil {
		return nil, fmt.Errorf("unmarshaling patient: %w", err)
	}
	if err := json.Unmarshal(resultsJSON, &record.Results); err != nil {
		return nil, fmt.Errorf("unmarshaling results: %w", err)
	}
	if err := json.Unmarshal(configJSON, &record.Config); err != nil {
		return nil, fmt.Errorf("unmarshaling fusion config: %w", err)
	}
	if err := json.Unmarshal(outcomeJSON, &record.Outcome); err != nil {
		return nil, fmt.Errorf("unmarshaling outcome: %w", err)
	}
	if err := json.Unmarshal(notesJSON, &record.AnalyzerNotes); err != nil {
		return nil, fmt.Errorf("unmarshaling analyzer notes: %w", err)
	}
	if len(record.AnalyzerNotes) == 0 {
		record.AnalyzerNotes = nil
	}
	return &record, nil
}
