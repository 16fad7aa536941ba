package feedback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

func sampleResults() []domain.ModalityResult {
	return []domain.ModalityResult{
		{Modality: domain.VOICE, Prediction: domain.NEGATIVE, Confidence: 0.75, ProbabilityPositive: 0.40, ProbabilityNegative: 0.60, ProcessingTimeSeconds: 1.2},
		{Modality: domain.IMAGING, Prediction: domain.POSITIVE, Confidence: 0.85, ProbabilityPositive: 0.78, ProbabilityNegative: 0.22, ProcessingTimeSeconds: 3.1},
	}
}

func sampleFeedback(assessmentID string) *Feedback {
	return &Feedback{
		AssessmentID:        assessmentID,
		PatientID:           "P-001",
		PredictedLabel:      domain.POSITIVE,
		ConfirmedLabel:      domain.POSITIVE,
		ProbabilityPositive: 0.62,
		Results:             sampleResults(),
		Clinician:           "dr.chen",
		Notes:               "Confirmed after DaTscan review",
	}
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "feedback-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
	assert.Equal(t, dbPath, store.Path())
}

func TestSQLiteStore_Save(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	fb := sampleFeedback("a-1")
	fb.ConfirmedLabel = domain.NEGATIVE

	err := store.Save(ctx, fb)

	require.NoError(t, err)
	assert.NotZero(t, fb.ID, "ID should be assigned")
	assert.False(t, fb.CreatedAt.IsZero(), "CreatedAt should be set")
	assert.False(t, fb.UpdatedAt.IsZero(), "UpdatedAt should be set")
	assert.False(t, fb.Agreed, "Agreed is derived from the labels")
}

func TestSQLiteStore_Save_Validation(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	tests := []struct {
		name   string
		mutate func(f *Feedback)
	}{
		{"missing assessment", func(f *Feedback) { f.AssessmentID = "" }},
		{"invalid label", func(f *Feedback) { f.ConfirmedLabel = "UNSURE" }},
		{"no results", func(f *Feedback) { f.Results = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := sampleFeedback("a-1")
			tt.mutate(fb)
			err := store.Save(context.Background(), fb)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestSQLiteStore_Save_Update(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	fb := sampleFeedback("a-1")
	require.NoError(t, store.Save(ctx, fb))
	originalID := fb.ID

	updated := sampleFeedback("a-1")
	updated.ConfirmedLabel = domain.NEGATIVE
	updated.Notes = "Revised after follow-up"
	require.NoError(t, store.Save(ctx, updated))

	assert.Equal(t, originalID, updated.ID, "ID should remain the same")

	got, err := store.Get(ctx, "a-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.NEGATIVE, got.ConfirmedLabel)
	assert.False(t, got.Agreed)
	assert.Equal(t, "Revised after follow-up", got.Notes)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_Get(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleFeedback("a-1")))

	got, err := store.Get(ctx, "a-1")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "P-001", got.PatientID)
	assert.Equal(t, domain.POSITIVE, got.PredictedLabel)
	assert.Equal(t, domain.POSITIVE, got.ConfirmedLabel)
	assert.True(t, got.Agreed)
	assert.InDelta(t, 0.62, got.ProbabilityPositive, 1e-12)
	assert.Equal(t, sampleResults(), got.Results)
	assert.Equal(t, "dr.chen", got.Clinician)
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	got, err := store.Get(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_List_Pagination(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, sampleFeedback(fmt.Sprintf("a-%d", i))))
		time.Sleep(2 * time.Millisecond)
	}

	page1, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	page2, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	page3, err := store.List(ctx, 2, 4)
	require.NoError(t, err)

	assert.Len(t, page1, 2)
	assert.Len(t, page2, 2)
	assert.Len(t, page3, 1)
	assert.Equal(t, "a-4", page1[0].AssessmentID, "newest first")
	assert.Equal(t, "a-0", page3[0].AssessmentID)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	fb := sampleFeedback("a-1")
	require.NoError(t, store.Save(ctx, fb))

	require.NoError(t, store.Delete(ctx, fb.ID))

	got, err := store.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_Cases(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	first := sampleFeedback("a-1")
	second := sampleFeedback("a-2")
	second.ConfirmedLabel = domain.NEGATIVE
	require.NoError(t, store.Save(ctx, first))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, store.Save(ctx, second))

	cases, err := store.Cases(ctx)

	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "a-1", cases[0].AssessmentID, "oldest first")
	assert.Equal(t, domain.POSITIVE, cases[0].Label)
	assert.Equal(t, domain.NEGATIVE, cases[1].Label)
	assert.Equal(t, sampleResults(), cases[1].Results)
}

func TestSQLiteStore_ExportImportJSON(t *testing.T) {
	source := createTestStore(t)
	defer source.Close()

	ctx := context.Background()
	require.NoError(t, source.Save(ctx, sampleFeedback("a-1")))
	require.NoError(t, source.Save(ctx, sampleFeedback("a-2")))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))
	assert.True(t, strings.Contains(buf.String(), `"version": "1.0"`))
	assert.True(t, strings.Contains(buf.String(), `"count": 2`))

	target := createTestStore(t)
	defer target.Close()
	require.NoError(t, target.Save(ctx, sampleFeedback("a-2")))

	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))

	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	count, err := target.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_ImportJSON_InvalidDocument(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	_, _, err := store.ImportJSON(context.Background(), strings.NewReader("{not json"))
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	store, err := Open(domain.FeedbackConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "fb.db")}, "")
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &SQLiteStore{}, store)

	_, err = Open(domain.FeedbackConfig{Driver: "mongo"}, "")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "feedback-test-*")
	require.NoError(t, err)

	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	return store
}
