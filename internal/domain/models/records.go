package models

import "time"

// Totals are summed calories and macros.
type Totals struct {
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// DailyIntakeRecord holds the meals logged for one food day and their memoized totals.
type DailyIntakeRecord struct {
	Day       string    `json:"day"`
	Meals     []Meal    `json:"meals"`
	Totals    Totals    `json:"totals"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmptyRecord returns the zero record for day.
func EmptyRecord(day string) DailyIntakeRecord {
	return DailyIntakeRecord{Day: day, Meals: []Meal{}}
}

// Clone returns a deep copy of the record.
func (r DailyIntakeRecord) Clone() DailyIntakeRecord {
	meals := make([]Meal, len(r.Meals))
	for i, m := range r.Meals {
		meals[i] = m.Clone()
	}
	r.Meals = meals
	return r
}

// DailySummary is the derived, read-optimized view of a DailyIntakeRecord.
type DailySummary struct {
	Day           string    `json:"day"`
	TotalCalories int       `json:"total_calories"`
	TotalProtein  float64   `json:"total_protein"`
	TotalFat      float64   `json:"total_fat"`
	TotalCarbs    float64   `json:"total_carbs"`
	MealCount     int       `json:"meal_count"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Totals returns the summary figures as Totals.
func (s DailySummary) Totals() Totals {
	return Totals{
		Calories: s.TotalCalories,
		Protein:  s.TotalProtein,
		Fat:      s.TotalFat,
		Carbs:    s.TotalCarbs,
	}
}

// SummaryOf derives the summary for record at the given write time.
func SummaryOf(record DailyIntakeRecord, at time.Time) DailySummary {
	return DailySummary{
		Day:           record.Day,
		TotalCalories: record.Totals.Calories,
		TotalProtein:  record.Totals.Protein,
		TotalFat:      record.Totals.Fat,
		TotalCarbs:    record.Totals.Carbs,
		MealCount:     len(record.Meals),
		LastUpdated:   at,
	}
}
