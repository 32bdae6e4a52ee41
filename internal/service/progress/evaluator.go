// Package progress compares consumed totals against daily targets.
package progress

import "github.com/mamadbah2/nutritrack/internal/domain/models"

// Status is the qualitative calorie progress band.
type Status string

const (
	StatusUnder       Status = "UNDER_TARGET"
	StatusApproaching Status = "APPROACHING_TARGET"
	StatusOn          Status = "ON_TARGET"
	StatusOver        Status = "OVER_TARGET"
	// StatusNoTarget is reported when the calorie target is not positive.
	StatusNoTarget Status = "NO_TARGET"
)

const (
	underThreshold = 0.5
	overThreshold  = 1.2
	onLower        = 0.9
	onUpper        = 1.1
)

// Progress is the evaluation of one day. Ratios are nil when their target is not positive.
// Remaining values are target minus consumed and go negative on overconsumption.
type Progress struct {
	CalorieRatio      *float64 `json:"calorie_ratio,omitempty"`
	ProteinRatio      *float64 `json:"protein_ratio,omitempty"`
	FatRatio          *float64 `json:"fat_ratio,omitempty"`
	CarbRatio         *float64 `json:"carb_ratio,omitempty"`
	RemainingCalories int      `json:"remaining_calories"`
	RemainingProtein  float64  `json:"remaining_protein"`
	RemainingFat      float64  `json:"remaining_fat"`
	RemainingCarbs    float64  `json:"remaining_carbs"`
	Status            Status   `json:"status"`
	GoalMet           bool     `json:"goal_met"`
}

// Evaluate compares totals with targets.
func Evaluate(totals models.Totals, targets models.NutritionTargets) Progress {
	p := Progress{
		CalorieRatio:      ratio(float64(totals.Calories), float64(targets.Calories)),
		ProteinRatio:      ratio(totals.Protein, targets.Protein),
		FatRatio:          ratio(totals.Fat, targets.Fat),
		CarbRatio:         ratio(totals.Carbs, targets.Carbs),
		RemainingCalories: targets.Calories - totals.Calories,
		RemainingProtein:  targets.Protein - totals.Protein,
		RemainingFat:      targets.Fat - totals.Fat,
		RemainingCarbs:    targets.Carbs - totals.Carbs,
		Status:            StatusNoTarget,
	}
	if p.CalorieRatio != nil {
		p.Status = StatusFor(*p.CalorieRatio)
		p.GoalMet = GoalMet(*p.CalorieRatio)
	}
	return p
}

// StatusFor classifies a calorie ratio. UNDER and OVER are checked before the tighter
// ON band.
func StatusFor(calorieRatio float64) Status {
	switch {
	case calorieRatio < underThreshold:
		return StatusUnder
	case calorieRatio > overThreshold:
		return StatusOver
	case calorieRatio >= onLower && calorieRatio <= onUpper:
		return StatusOn
	default:
		return StatusApproaching
	}
}

// GoalMet reports whether the calorie ratio lies in the ON_TARGET band.
func GoalMet(calorieRatio float64) bool {
	return calorieRatio >= onLower && calorieRatio <= onUpper
}

func ratio(consumed, target float64) *float64 {
	if target <= 0 {
		return nil
	}
	r := consumed / target
	return &r
}
