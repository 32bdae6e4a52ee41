package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
)

type fakeRepository struct {
	rows     [][]interface{}
	writeErr error
}

func (f *fakeRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.rows = append(f.rows, values)
	return nil
}

func (f *fakeRepository) ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	return f.rows, nil
}

func sampleSummary() models.DailySummary {
	return models.DailySummary{
		Day:           "2025-03-09",
		TotalCalories: 1850,
		TotalProtein:  102.5,
		TotalFat:      61,
		TotalCarbs:    210.25,
		MealCount:     3,
		LastUpdated:   time.Date(2025, 3, 9, 21, 15, 0, 123, time.UTC),
	}
}

func TestSummaryRow_RoundTrip(t *testing.T) {
	row := SummaryRow("alice", sampleSummary())
	assert.Len(t, row, len(summaryColumns))

	user, got, err := ParseSummaryRow(row)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Equal(t, sampleSummary(), got)
}

func TestParseSummaryRow_StringCells(t *testing.T) {
	row := []interface{}{"bob", "2025-03-10", "2000", "120.5", "70", "230", "4", "2025-03-10T20:00:00Z"}
	user, got, err := ParseSummaryRow(row)
	require.NoError(t, err)
	assert.Equal(t, "bob", user)
	assert.Equal(t, 2000, got.TotalCalories)
	assert.Equal(t, 120.5, got.TotalProtein)
	assert.Equal(t, 4, got.MealCount)
}

func TestParseSummaryRow_Rejects(t *testing.T) {
	_, _, err := ParseSummaryRow([]interface{}{"bob", "2025-03-10"})
	assert.Error(t, err)

	_, _, err = ParseSummaryRow(HeaderRow())
	assert.Error(t, err)

	_, _, err = ParseSummaryRow([]interface{}{"bob", "2025-03-10", "lots", "1", "1", "1", "1", "2025-03-10T20:00:00Z"})
	assert.Error(t, err)
}

func TestSummaryExporter(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{rows: [][]interface{}{HeaderRow()}}
	exporter := NewSummaryExporter(repo, "Summaries!A:H", nil)

	require.NoError(t, exporter.ExportSummary(ctx, "alice", sampleSummary()))
	other := sampleSummary()
	other.Day = "2025-03-10"
	require.NoError(t, exporter.ExportSummary(ctx, "bob", other))

	got, err := exporter.ReadSummaries(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-03-09", got[0].Day)

	repo.writeErr = errors.New("quota exhausted")
	err = exporter.ExportSummary(ctx, "alice", sampleSummary())
	assert.ErrorContains(t, err, "alice/2025-03-09")
}
