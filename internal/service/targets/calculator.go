// Package targets derives daily calorie and macro targets from body metrics.
package targets

import (
	"fmt"
	"math"
	"time"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
)

// Strategy selects the calorie formula.
type Strategy string

const (
	// StrategyTDEE computes BMR, scales it by the activity multiplier into TDEE and
	// applies the goal factor to TDEE.
	StrategyTDEE Strategy = "tdee"
	// StrategyLegacy applies legacy goal factors directly to BMR times the legacy
	// activity factor and reports no separate TDEE.
	StrategyLegacy Strategy = "legacy"
)

const (
	proteinKcalPerGram = 4
	fatKcalPerGram     = 9
	carbKcalPerGram    = 4

	minAge = 1
	maxAge = 120
)

// Config holds the constants of the calculation. Zero values are not usable; start
// from DefaultConfig.
type Config struct {
	Strategy            Strategy                         `yaml:"strategy"`
	ActivityMultipliers map[models.ActivityLevel]float64 `yaml:"activity_multipliers"`
	GoalFactors         map[models.Goal]float64          `yaml:"goal_factors"`
	LegacyActivity      map[models.ActivityLevel]float64 `yaml:"legacy_activity_factors"`
	LegacyGoalFactors   map[models.Goal]float64          `yaml:"legacy_goal_factors"`
	ProteinShare        float64                          `yaml:"protein_share"`
	FatShare            float64                          `yaml:"fat_share"`
	Tolerance           float64                          `yaml:"macro_tolerance"`
}

// DefaultConfig returns the canonical constants.
func DefaultConfig() Config {
	return Config{
		Strategy: StrategyTDEE,
		ActivityMultipliers: map[models.ActivityLevel]float64{
			models.ActivitySedentary:        1.2,
			models.ActivityLightlyActive:    1.375,
			models.ActivityModeratelyActive: 1.5,
			models.ActivityVeryActive:       1.75,
			models.ActivityExtremelyActive:  1.9,
		},
		GoalFactors: map[models.Goal]float64{
			models.GoalLose:     0.8,
			models.GoalMaintain: 1.0,
			models.GoalGain:     1.2,
		},
		LegacyActivity: map[models.ActivityLevel]float64{
			models.ActivitySedentary:        1.2,
			models.ActivityLightlyActive:    1.375,
			models.ActivityModeratelyActive: 1.55,
			models.ActivityVeryActive:       1.725,
			models.ActivityExtremelyActive:  1.9,
		},
		LegacyGoalFactors: map[models.Goal]float64{
			models.GoalLose:     0.85,
			models.GoalMaintain: 1.0,
			models.GoalGain:     1.15,
		},
		ProteinShare: 0.25,
		FatShare:     0.30,
		Tolerance:    0.10,
	}
}

// Validate checks that the constants describe a usable calculation.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyTDEE, StrategyLegacy:
	default:
		return fmt.Errorf("unknown target strategy %q", c.Strategy)
	}
	levels := []models.ActivityLevel{
		models.ActivitySedentary, models.ActivityLightlyActive, models.ActivityModeratelyActive,
		models.ActivityVeryActive, models.ActivityExtremelyActive,
	}
	for _, level := range levels {
		if c.ActivityMultipliers[level] <= 0 {
			return fmt.Errorf("activity multiplier for %s must be > 0", level)
		}
		if c.LegacyActivity[level] <= 0 {
			return fmt.Errorf("legacy activity factor for %s must be > 0", level)
		}
	}
	for _, goal := range []models.Goal{models.GoalLose, models.GoalMaintain, models.GoalGain} {
		if c.GoalFactors[goal] <= 0 {
			return fmt.Errorf("goal factor for %s must be > 0", goal)
		}
		if c.LegacyGoalFactors[goal] <= 0 {
			return fmt.Errorf("legacy goal factor for %s must be > 0", goal)
		}
	}
	if c.ProteinShare <= 0 || c.FatShare <= 0 || c.ProteinShare+c.FatShare >= 1 {
		return fmt.Errorf("macro shares must be positive and leave room for carbs (protein %.2f, fat %.2f)", c.ProteinShare, c.FatShare)
	}
	if c.Tolerance <= 0 || c.Tolerance >= 1 {
		return fmt.Errorf("macro tolerance must be within (0, 1), got %.2f", c.Tolerance)
	}
	return nil
}

// Breakdown exposes the intermediate values of a calculation.
type Breakdown struct {
	Strategy Strategy `json:"strategy"`
	Age      int      `json:"age"`
	BMR      float64  `json:"bmr"`
	TDEE     float64  `json:"tdee,omitempty"`
}

// Result is a successful calculation.
type Result struct {
	Targets   models.NutritionTargets `json:"targets"`
	Breakdown Breakdown               `json:"breakdown"`
}

// Calculator computes targets with a fixed configuration.
type Calculator struct {
	cfg Config
	now func() time.Time
}

// NewCalculator builds a calculator. A nil clock means time.Now.
func NewCalculator(cfg Config, now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{cfg: cfg, now: now}
}

// Config returns the calculator constants.
func (c *Calculator) Config() Config { return c.cfg }

// ComputeTargets validates metrics and derives the daily targets. Failures are always
// *models.ValidationError.
func (c *Calculator) ComputeTargets(metrics models.UserMetrics) (Result, error) {
	if err := metrics.Validate(); err != nil {
		return Result{}, err
	}
	metrics = metrics.Normalized()

	birth, _ := metrics.BirthTime()
	age := AgeAt(birth, c.now())
	if age < minAge || age > maxAge {
		return Result{}, models.NewValidationError("birth_date", "age %d is outside %d..%d", age, minAge, maxAge)
	}

	bmr := BMR(metrics.Sex, metrics.WeightKg, metrics.HeightCm, age)
	breakdown := Breakdown{Strategy: c.cfg.Strategy, Age: age, BMR: bmr}

	var calories float64
	switch c.cfg.Strategy {
	case StrategyLegacy:
		calories = bmr * c.cfg.LegacyActivity[metrics.Activity] * c.cfg.LegacyGoalFactors[metrics.Goal]
	default:
		tdee := bmr * c.cfg.ActivityMultipliers[metrics.Activity]
		breakdown.TDEE = tdee
		calories = tdee * c.cfg.GoalFactors[metrics.Goal]
	}

	targets := DefaultMacroSplit(int(math.Round(calories)), c.cfg.ProteinShare, c.cfg.FatShare)
	if targets.Calories <= 0 || !targets.IsValidMacroDistribution(c.cfg.Tolerance) {
		return Result{}, models.NewValidationError("metrics",
			"height %.0f cm and weight %.1f kg at age %d give no usable calorie target (%d kcal)",
			metrics.HeightCm, metrics.WeightKg, age, targets.Calories)
	}
	return Result{Targets: targets, Breakdown: breakdown}, nil
}

// AgeAt returns the whole years between birth and now.
func AgeAt(birth, now time.Time) int {
	by, bm, bd := birth.Date()
	ny, nm, nd := now.Date()
	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	return age
}

// BMR applies Mifflin-St Jeor. SexOther uses the mean of the male and female formulas.
func BMR(sex models.Sex, weightKg, heightCm float64, age int) float64 {
	base := 10*weightKg + 6.25*heightCm - 5*float64(age)
	switch sex {
	case models.SexMale:
		return base + 5
	case models.SexFemale:
		return base - 161
	default:
		return base + (5-161)/2.0
	}
}

// DefaultMacroSplit splits calories into protein and fat by share, rounding both to
// whole grams, and gives carbs the remainder so the three macros sum to calories exactly.
func DefaultMacroSplit(calories int, proteinShare, fatShare float64) models.NutritionTargets {
	kcal := float64(calories)
	protein := math.Round(kcal * proteinShare / proteinKcalPerGram)
	fat := math.Round(kcal * fatShare / fatKcalPerGram)
	carbs := (kcal - protein*proteinKcalPerGram - fat*fatKcalPerGram) / carbKcalPerGram
	if carbs < 0 {
		carbs = 0
	}
	return models.NutritionTargets{
		Calories: calories,
		Protein:  protein,
		Fat:      fat,
		Carbs:    carbs,
	}
}
