package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
)

func TestStatusFor_Precedence(t *testing.T) {
	tests := []struct {
		ratio   float64
		status  Status
		goalMet bool
	}{
		{0, StatusUnder, false},
		{0.45, StatusUnder, false},
		{0.5, StatusApproaching, false},
		{0.89, StatusApproaching, false},
		{0.9, StatusOn, true},
		{1.0, StatusOn, true},
		{1.1, StatusOn, true},
		{1.15, StatusApproaching, false},
		{1.2, StatusApproaching, false},
		{1.21, StatusOver, false},
		{3, StatusOver, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusFor(tt.ratio), "ratio %.2f", tt.ratio)
		assert.Equal(t, tt.goalMet, GoalMet(tt.ratio), "ratio %.2f", tt.ratio)
	}
}

func TestEvaluate(t *testing.T) {
	targets := models.NutritionTargets{Calories: 2000, Protein: 125, Fat: 67, Carbs: 224.25}
	totals := models.Totals{Calories: 2000, Protein: 150, Fat: 40, Carbs: 200}

	p := Evaluate(totals, targets)
	require.NotNil(t, p.CalorieRatio)
	assert.InDelta(t, 1.0, *p.CalorieRatio, 1e-9)
	assert.InDelta(t, 1.2, *p.ProteinRatio, 1e-9)
	assert.Equal(t, StatusOn, p.Status)
	assert.True(t, p.GoalMet)
	assert.Equal(t, 0, p.RemainingCalories)
	assert.InDelta(t, -25, p.RemainingProtein, 1e-9, "overconsumption stays negative")
	assert.InDelta(t, 27, p.RemainingFat, 1e-9)
	assert.InDelta(t, 24.25, p.RemainingCarbs, 1e-9)
}

func TestEvaluate_UnderAndOver(t *testing.T) {
	targets := models.NutritionTargets{Calories: 2000, Protein: 100, Fat: 60, Carbs: 250}

	under := Evaluate(models.Totals{Calories: 900}, targets)
	assert.Equal(t, StatusUnder, under.Status)
	assert.False(t, under.GoalMet)

	over := Evaluate(models.Totals{Calories: 2600}, targets)
	assert.Equal(t, StatusOver, over.Status)
	assert.Equal(t, -600, over.RemainingCalories)

	approaching := Evaluate(models.Totals{Calories: 2300}, targets)
	assert.Equal(t, StatusApproaching, approaching.Status)
}

func TestEvaluate_NonPositiveTargets(t *testing.T) {
	p := Evaluate(models.Totals{Calories: 500, Protein: 20}, models.NutritionTargets{Calories: 0, Protein: 100})
	assert.Nil(t, p.CalorieRatio)
	assert.Nil(t, p.FatRatio)
	assert.NotNil(t, p.ProteinRatio)
	assert.Equal(t, StatusNoTarget, p.Status)
	assert.False(t, p.GoalMet)
	assert.Equal(t, -500, p.RemainingCalories)
}
