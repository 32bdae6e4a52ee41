package analysis

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
	"github.com/mamadbah2/nutritrack/internal/service/quota"
	"github.com/mamadbah2/nutritrack/internal/service/records"
)

type fakeAnalyzer struct {
	foods []models.FoodEntry
	err   error
	calls int
}

func (f *fakeAnalyzer) AnalyzeText(ctx context.Context, text string) ([]models.FoodEntry, error) {
	f.calls++
	return f.foods, f.err
}

func (f *fakeAnalyzer) AnalyzePhoto(ctx context.Context, image []byte, mediaType string) ([]models.FoodEntry, error) {
	f.calls++
	return f.foods, f.err
}

var now = time.Date(2025, 5, 20, 13, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func newService(t *testing.T, analyzer Analyzer) (*Service, *quota.Tracker, *records.Store) {
	t.Helper()
	kv := memory.NewStore()
	resolver, err := foodday.NewResolver(4, time.UTC, clock)
	require.NoError(t, err)
	store := records.NewStore(kv, resolver, nil)
	plans := map[models.PlanID]models.Plan{models.PlanFree: {ID: models.PlanFree, Name: "Free", MonthlyLimit: 2}}
	tracker := quota.NewTracker(kv, plans, models.PlanFree, time.UTC, clock, nil)
	return NewService(analyzer, tracker, store, clock, nil), tracker, store
}

func banana() models.FoodEntry {
	return models.FoodEntry{Name: "banana", Calories: 105, Protein: 1.3, Fat: 0.4, Carbs: 27, Weight: "1 medium", Source: models.SourceTextAnalysis}
}

func TestAnalyzeText_RecordsUsageOnSuccess(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{foods: []models.FoodEntry{banana(), banana()}}
	svc, tracker, _ := newService(t, analyzer)

	result, err := svc.AnalyzeText(ctx, "alice", "two bananas")
	require.NoError(t, err)
	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, 210, result.Totals.Calories)
	assert.Equal(t, 1, result.Quota.Count)
	assert.Equal(t, 1, result.Quota.Remaining)

	_, err = svc.AnalyzePhoto(ctx, "alice", []byte{1}, "image/png")
	require.NoError(t, err)

	_, err = svc.AnalyzeText(ctx, "alice", "another banana")
	assert.ErrorIs(t, err, models.ErrQuotaExceeded)
	assert.Equal(t, 2, analyzer.calls, "analyzer not called once the quota is exhausted")

	snap, err := tracker.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count)
}

func TestAnalyzeText_FailureDoesNotCount(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{err: errors.New("upstream timeout")}
	svc, tracker, _ := newService(t, analyzer)

	_, err := svc.AnalyzeText(ctx, "bob", "soup")
	require.Error(t, err)

	snap, err := tracker.Snapshot(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Count)
}

func TestAnalyze_Disabled(t *testing.T) {
	svc, _, _ := newService(t, nil)
	assert.False(t, svc.Enabled())
	_, err := svc.AnalyzeText(context.Background(), "bob", "soup")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestLogAnalysis(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newService(t, nil)

	record, err := svc.LogAnalysis(ctx, "alice", models.MealBreakfast, []models.FoodEntry{banana()})
	require.NoError(t, err)
	assert.Equal(t, "2025-05-20", record.Day)
	assert.Equal(t, 105, record.Totals.Calories)

	alice, err := store.ForUser("alice")
	require.NoError(t, err)
	summary, err := alice.ReadSummary(ctx, "2025-05-20")
	require.NoError(t, err)
	assert.Equal(t, 105, summary.TotalCalories)

	_, err = svc.LogAnalysis(ctx, "alice", models.MealBreakfast, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSessions_DeliveryStates(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{err: errors.New("overloaded")}
	svc, _, _ := newService(t, analyzer)
	sessions := NewSessions(svc, 2, clock, nil)

	ex, err := sessions.Send(ctx, "alice", "a banana")
	require.Error(t, err)
	assert.Equal(t, models.DeliveryFailed, ex.Message.Delivery.State)
	assert.Equal(t, 0, ex.Message.Delivery.RetryCount)
	assert.True(t, ex.Message.Delivery.CanRetry())
	assert.Nil(t, ex.Reply)

	ex, err = sessions.Retry(ctx, "alice", ex.Message.ID)
	require.Error(t, err)
	assert.Equal(t, 1, ex.Message.Delivery.RetryCount)
	assert.True(t, ex.Message.Delivery.CanRetry())

	analyzer.err = nil
	analyzer.foods = []models.FoodEntry{banana()}
	ex, err = sessions.Retry(ctx, "alice", ex.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryDelivered, ex.Message.Delivery.State)
	require.NotNil(t, ex.Reply)
	assert.Equal(t, models.RoleAssistant, ex.Reply.Role)
	assert.Contains(t, ex.Reply.Content, "banana")

	history := sessions.History("alice")
	require.Len(t, history, 2)
	assert.Equal(t, models.DeliveryDelivered, history[0].Delivery.State)

	_, err = sessions.Retry(ctx, "alice", ex.Message.ID)
	assert.ErrorIs(t, err, ErrNotRetryable)
	_, err = sessions.Retry(ctx, "alice", "missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	sessions.Clear("alice")
	assert.Empty(t, sessions.History("alice"))
}

func TestSessions_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t, &fakeAnalyzer{err: errors.New("overloaded")})
	sessions := NewSessions(svc, 1, clock, nil)

	ex, _ := sessions.Send(ctx, "bob", "rice")
	ex, _ = sessions.Retry(ctx, "bob", ex.Message.ID)
	assert.Equal(t, 1, ex.Message.Delivery.RetryCount)
	assert.False(t, ex.Message.Delivery.CanRetry())

	_, err := sessions.Retry(ctx, "bob", ex.Message.ID)
	assert.ErrorIs(t, err, ErrNotRetryable)
}

func TestSessions_QuotaFailureIsNotRetryable(t *testing.T) {
	ctx := context.Background()
	svc, tracker, _ := newService(t, &fakeAnalyzer{foods: []models.FoodEntry{banana()}})
	sessions := NewSessions(svc, 3, clock, nil)

	for i := 0; i < 2; i++ {
		_, err := tracker.Record(ctx, "carol")
		require.NoError(t, err)
	}
	ex, err := sessions.Send(ctx, "carol", "banana")
	assert.ErrorIs(t, err, models.ErrQuotaExceeded)
	assert.Equal(t, models.DeliveryFailed, ex.Message.Delivery.State)
	assert.False(t, ex.Message.Delivery.CanRetry())
}
