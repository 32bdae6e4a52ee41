package models

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout used for birth dates and food-day keys.
const DateLayout = "2006-01-02"

// Sex selects the Mifflin-St Jeor constant.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexOther  Sex = "other"
)

// ActivityLevel scales BMR into daily energy expenditure.
type ActivityLevel string

const (
	ActivitySedentary        ActivityLevel = "sedentary"
	ActivityLightlyActive    ActivityLevel = "lightly_active"
	ActivityModeratelyActive ActivityLevel = "moderately_active"
	ActivityVeryActive       ActivityLevel = "very_active"
	ActivityExtremelyActive  ActivityLevel = "extremely_active"
)

// Goal adjusts the calorie target relative to expenditure.
type Goal string

const (
	GoalLose     Goal = "lose"
	GoalMaintain Goal = "maintain"
	GoalGain     Goal = "gain"
)

// UserMetrics is the body-metrics snapshot targets are derived from. It is replaced
// wholesale on every profile edit.
type UserMetrics struct {
	BirthDate string        `json:"birth_date" yaml:"birth_date"`
	HeightCm  float64       `json:"height_cm" yaml:"height_cm"`
	WeightKg  float64       `json:"weight_kg" yaml:"weight_kg"`
	Sex       Sex           `json:"sex" yaml:"sex"`
	Activity  ActivityLevel `json:"activity" yaml:"activity"`
	Goal      Goal          `json:"goal" yaml:"goal"`
}

// BirthTime parses the birth date as a calendar date in UTC.
func (m UserMetrics) BirthTime() (time.Time, error) {
	raw := strings.TrimSpace(m.BirthDate)
	if raw == "" {
		return time.Time{}, NewValidationError("birth_date", "is required")
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, NewValidationError("birth_date", "invalid date %q (expected YYYY-MM-DD)", m.BirthDate)
	}
	return t, nil
}

// Normalized fills the optional enums with their defaults: sedentary activity and maintain goal.
func (m UserMetrics) Normalized() UserMetrics {
	m.BirthDate = strings.TrimSpace(m.BirthDate)
	if m.Activity == "" {
		m.Activity = ActivitySedentary
	}
	if m.Goal == "" {
		m.Goal = GoalMaintain
	}
	return m
}

// Validate checks the shape of the metrics. Age bounds depend on the current date
// and are enforced by the target calculator.
func (m UserMetrics) Validate() error {
	if _, err := m.BirthTime(); err != nil {
		return err
	}
	if m.HeightCm <= 0 || m.HeightCm > 300 {
		return NewValidationError("height_cm", "must be within (0, 300]")
	}
	if m.WeightKg <= 0 || m.WeightKg > 500 {
		return NewValidationError("weight_kg", "must be within (0, 500]")
	}
	switch m.Sex {
	case SexMale, SexFemale, SexOther:
	case "":
		return NewValidationError("sex", "is required")
	default:
		return NewValidationError("sex", "unknown value %q", m.Sex)
	}
	switch m.Activity {
	case "", ActivitySedentary, ActivityLightlyActive, ActivityModeratelyActive, ActivityVeryActive, ActivityExtremelyActive:
	default:
		return NewValidationError("activity", "unknown activity level %q", m.Activity)
	}
	switch m.Goal {
	case "", GoalLose, GoalMaintain, GoalGain:
	default:
		return NewValidationError("goal", "unknown goal %q", m.Goal)
	}
	return nil
}

// NutritionTargets are the daily calorie and macro targets derived from UserMetrics.
type NutritionTargets struct {
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// MacroCalories returns the energy implied by the macro targets (4/9/4 kcal per gram).
func (t NutritionTargets) MacroCalories() float64 {
	return t.Protein*4 + t.Fat*9 + t.Carbs*4
}

// IsValidMacroDistribution reports whether the macro energy lies within tolerance
// (a fraction, e.g. 0.1) of the calorie target. A violation is a data-quality signal only.
func (t NutritionTargets) IsValidMacroDistribution(tolerance float64) bool {
	if t.Calories <= 0 {
		return false
	}
	target := float64(t.Calories)
	macro := t.MacroCalories()
	return macro >= target*(1-tolerance) && macro <= target*(1+tolerance)
}
