package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

func TestMemoryAssessmentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAssessmentRepository()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		record := newRecord(t, base.Add(time.Duration(i)*time.Minute))
		record.ID = fmt.Sprintf("id-%d", i)
		require.NoError(t, repo.Create(ctx, record))
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	tests := []struct {
		name   string
		limit  int
		offset int
		want   []string
	}{
		{"first page", 2, 0, []string{"id-4", "id-3"}},
		{"last partial page", 2, 4, []string{"id-0"}},
		{"past the end", 2, 10, nil},
		{"zero limit", 0, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.List(ctx, tt.limit, tt.offset)
			require.NoError(t, err)

			var got []string
			for _, r := range page {
				got = append(got, r.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryAssessmentRepository_Isolation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAssessmentRepository()

	record := newRecord(t, time.Now())
	require.NoError(t, repo.Create(ctx, record))

	record.Results[0].Confidence = 0
	record.AnalyzerNotes[0] = "changed"

	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.75, got.Results[0].Confidence)
	assert.Equal(t, "IMAGING: analysis unavailable", got.AnalyzerNotes[0])

	got.Results[0].Confidence = 0.1
	again, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.75, again.Results[0].Confidence)
}

func TestMemoryAssessmentRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAssessmentRepository()

	_, err := repo.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	record := newRecord(t, time.Now())
	require.NoError(t, repo.Create(ctx, record))
	assert.True(t, errors.Is(repo.Create(ctx, record), domain.ErrInvalidInput))

	record.ID = ""
	assert.True(t, errors.Is(repo.Create(ctx, record), domain.ErrInvalidInput))
}
