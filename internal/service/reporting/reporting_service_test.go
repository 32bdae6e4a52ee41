package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/repository/memory"
	"github.com/mamadbah2/nutritrack/internal/service/foodday"
	"github.com/mamadbah2/nutritrack/internal/service/profile"
	"github.com/mamadbah2/nutritrack/internal/service/records"
)

type fakeTargets struct {
	targets models.NutritionTargets
	err     error
}

func (f fakeTargets) Targets(ctx context.Context, userID string) (models.NutritionTargets, error) {
	return f.targets, f.err
}

type fakeExporter struct {
	exported map[string][]models.DailySummary
	failFor  string
}

func (f *fakeExporter) ExportSummary(ctx context.Context, userID string, summary models.DailySummary) error {
	if userID == f.failFor {
		return errors.New("sheet unavailable")
	}
	if f.exported == nil {
		f.exported = make(map[string][]models.DailySummary)
	}
	f.exported[userID] = append(f.exported[userID], summary)
	return nil
}

func newStore(t *testing.T) *records.Store {
	t.Helper()
	now := time.Date(2025, 5, 27, 12, 0, 0, 0, time.UTC)
	resolver, err := foodday.NewResolver(4, time.UTC, func() time.Time { return now })
	require.NoError(t, err)
	return records.NewStore(memory.NewStore(), resolver, nil)
}

func logMeal(t *testing.T, store *records.Store, userID string, at time.Time, calories int) {
	t.Helper()
	user, err := store.ForUser(userID)
	require.NoError(t, err)
	food, err := models.NewFoodEntry("meal", calories, 10, 5, 20, "1 plate", models.SourceManual)
	require.NoError(t, err)
	meal, err := models.NewMeal(models.MealLunch, []models.FoodEntry{food}, at)
	require.NoError(t, err)
	_, err = user.ImportMeal(context.Background(), meal)
	require.NoError(t, err)
}

func at(day int, hour int) time.Time {
	return time.Date(2025, 5, day, hour, 0, 0, 0, time.UTC)
}

func TestWeekly(t *testing.T) {
	store := newStore(t)
	logMeal(t, store, "alice", at(19, 12), 1000) // Monday
	logMeal(t, store, "alice", at(19, 19), 900)
	logMeal(t, store, "alice", at(21, 12), 1200) // Wednesday
	logMeal(t, store, "alice", at(26, 12), 3000) // next Monday
	logMeal(t, store, "bob", at(20, 12), 500)

	svc := NewService(store, fakeTargets{targets: models.NutritionTargets{Calories: 2000}}, nil, nil)
	report, err := svc.Weekly(context.Background(), "alice", "2025-05-22")
	require.NoError(t, err)

	assert.Equal(t, KindWeekly, report.Kind)
	assert.Equal(t, "2025-05-19", report.From)
	assert.Equal(t, "2025-05-25", report.To)
	assert.Equal(t, 7, report.DaysInRange)
	assert.Equal(t, 2, report.DaysLogged)
	assert.Equal(t, 3, report.MealCount)
	assert.Equal(t, 3100, report.Totals.Calories)
	assert.Equal(t, 1550, report.Average.Calories)
	assert.InDelta(t, 15.0, report.Average.Protein, 1e-9)
	require.NotNil(t, report.Targets)
	assert.Equal(t, 1, report.DaysOnTarget, "1900 kcal is on target, 1200 is not")

	text := Format(report)
	assert.Contains(t, text, "Weekly report 2025-05-19 to 2025-05-25")
	assert.Contains(t, text, "Days logged: 2/7 (3 meals)")
	assert.Contains(t, text, "on target 1 of 2 days")
}

func TestMonthly_WithoutProfile(t *testing.T) {
	store := newStore(t)
	logMeal(t, store, "alice", at(1, 12), 800)
	logMeal(t, store, "alice", at(31, 12), 1600)
	logMeal(t, store, "alice", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), 700)

	svc := NewService(store, fakeTargets{err: profile.ErrNotFound}, nil, nil)
	report, err := svc.Monthly(context.Background(), "alice", 2025, time.May)
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01", report.From)
	assert.Equal(t, "2025-05-31", report.To)
	assert.Equal(t, 31, report.DaysInRange)
	assert.Equal(t, 2400, report.Totals.Calories)
	assert.Nil(t, report.Targets)
	assert.NotContains(t, Format(report), "Target:")

	_, err = svc.Monthly(context.Background(), "alice", 2025, 13)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestRange_Errors(t *testing.T) {
	store := newStore(t)
	svc := NewService(store, fakeTargets{err: errors.New("boom")}, nil, nil)

	_, err := svc.Range(context.Background(), "alice", "2025-05-10", "2025-05-01")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Range(context.Background(), "alice", "2025-05-01", "2025-05-10")
	assert.EqualError(t, err, "boom")

	_, err = svc.Range(context.Background(), "a/b", "2025-05-01", "2025-05-10")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestFormat_Empty(t *testing.T) {
	svc := NewService(newStore(t), nil, nil, nil)
	report, err := svc.Range(context.Background(), "alice", "2025-05-01", "2025-05-03")
	require.NoError(t, err)
	assert.Equal(t, 0, report.DaysLogged)
	assert.Equal(t, models.Totals{}, report.Average)
	assert.Contains(t, Format(report), "No meals logged")
}

func TestParseMonth(t *testing.T) {
	year, month, err := ParseMonth("2025-02")
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, time.February, month)

	_, _, err = ParseMonth("02/2025")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	logMeal(t, store, "alice", at(20, 12), 600)
	logMeal(t, store, "bob", at(20, 13), 400)
	logMeal(t, store, "carol", at(21, 13), 400)

	assert.ErrorIs(t, NewService(store, nil, nil, nil).ExportDay(ctx, "alice", "2025-05-20"), ErrExportDisabled)

	exporter := &fakeExporter{failFor: "bob"}
	svc := NewService(store, nil, exporter, nil)

	done, err := svc.ExportAll(ctx, "2025-05-20")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export bob")
	assert.Equal(t, 2, done, "carol has nothing that day and is skipped without error")
	require.Len(t, exporter.exported["alice"], 1)
	assert.Equal(t, 600, exporter.exported["alice"][0].TotalCalories)
	assert.Empty(t, exporter.exported["carol"])
}
