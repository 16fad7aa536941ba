package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// MemoryAssessmentRepository keeps assessments in process memory. It backs
// the lite server and tests; records do not survive a restart.
type MemoryAssessmentRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.AssessmentRecord
}

// NewMemoryAssessmentRepository creates an empty in-memory repository.
func NewMemoryAssessmentRepository() *MemoryAssessmentRepository {
	return &MemoryAssessmentRepository{records: make(map[string]*domain.AssessmentRecord)}
}

// Create stores a copy of record. IDs must be unique.
func (r *MemoryAssessmentRepository) Create(_ context.Context, record *domain.AssessmentRecord) error {
	if record.ID == "" {
		return domain.NewInvalidInputError("assessment id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; exists {
		return domain.NewInvalidInputError("assessment " + record.ID + " already exists")
	}
	r.records[record.ID] = cloneRecord(record)
	return nil
}

// GetByID returns a copy of the stored record.
func (r *MemoryAssessmentRepository) GetByID(_ context.Context, id string) (*domain.AssessmentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(record), nil
}

// List returns records newest first.
func (r *MemoryAssessmentRepository) List(_ context.Context, limit, offset int) ([]*domain.AssessmentRecord, error) {
	r.mu.RLock()
	all := make([]*domain.AssessmentRecord, 0, len(r.records))
	for _, record := range r.records {
		all = append(all, record)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) || limit <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	page := make([]*domain.AssessmentRecord, 0, end-offset)
	for _, record := range all[offset:end] {
		page = append(page, cloneRecord(record))
	}
	return page, nil
}

// Count returns the number of stored records.
func (r *MemoryAssessmentRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.records)), nil
}

func cloneRecord(record *domain.AssessmentRecord) *domain.AssessmentRecord {
	c := *record
	c.Results = append([]domain.ModalityResult(nil), record.Results...)
	c.Config = record.Config.Clone()
	c.Outcome = record.Outcome.Outcome().View()
	c.AnalyzerNotes = append([]string(nil), record.AnalyzerNotes...)
	return &c
}
