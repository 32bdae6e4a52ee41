package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/repository/memory"
	"github.com/mamadbah2/nutritrack/internal/service/targets"
)

func sampleMetrics() models.UserMetrics {
	return models.UserMetrics{
		BirthDate: "1995-01-01",
		HeightCm:  180,
		WeightKg:  80,
		Sex:       models.SexMale,
		Activity:  models.ActivityModeratelyActive,
		Goal:      models.GoalLose,
	}
}

func TestService_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := NewService(memory.NewStore(), targets.NewCalculator(targets.DefaultConfig(), clock), clock, nil)

	_, err := svc.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := svc.Save(ctx, "alice", sampleMetrics())
	require.NoError(t, err)
	assert.Equal(t, 2136, p.Targets.Calories)
	assert.Equal(t, 30, p.Breakdown.Age)

	got, err := svc.Targets(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p.Targets, got)

	stored, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p.Metrics, stored.Metrics)
}

func TestService_CachesUntilMetricsChange(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := NewService(memory.NewStore(), targets.NewCalculator(targets.DefaultConfig(), clock), clock, nil)

	first, err := svc.Save(ctx, "alice", sampleMetrics())
	require.NoError(t, err)

	// A year later the age differs, but unchanged metrics keep the cached targets.
	now = now.AddDate(1, 0, 0)
	cached, err := svc.Save(ctx, "alice", sampleMetrics())
	require.NoError(t, err)
	assert.Equal(t, first.Breakdown.Age, cached.Breakdown.Age)
	assert.Equal(t, first.UpdatedAt, cached.UpdatedAt)

	changed := sampleMetrics()
	changed.WeightKg = 75
	updated, err := svc.Save(ctx, "alice", changed)
	require.NoError(t, err)
	assert.Equal(t, 31, updated.Breakdown.Age)
	assert.Less(t, updated.Targets.Calories, first.Targets.Calories)
}

func TestService_NormalizesBeforeComparing(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), targets.NewCalculator(targets.DefaultConfig(), nil), nil, nil)

	m := sampleMetrics()
	m.Activity = ""
	m.Goal = ""
	p, err := svc.Save(ctx, "bob", m)
	require.NoError(t, err)
	assert.Equal(t, models.ActivitySedentary, p.Metrics.Activity)
	assert.Equal(t, models.GoalMaintain, p.Metrics.Goal)
}

func TestService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), targets.NewCalculator(targets.DefaultConfig(), nil), nil, nil)

	bad := sampleMetrics()
	bad.HeightCm = 0
	_, err := svc.Save(ctx, "alice", bad)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "height_cm", verr.Field)

	_, err = svc.Save(ctx, "", sampleMetrics())
	assert.ErrorIs(t, err, models.ErrValidation)

	tooOld := sampleMetrics()
	tooOld.BirthDate = "1850-01-01"
	_, err = svc.Save(ctx, "alice", tooOld)
	assert.ErrorIs(t, err, models.ErrValidation)
}
