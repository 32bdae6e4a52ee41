package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MealType tags the eating occasion a meal belongs to.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// Valid reports whether the meal type is one of the known tags.
func (t MealType) Valid() bool {
	switch t {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// Provenance records how a food entry entered the system.
type Provenance string

const (
	SourceManual        Provenance = "manual"
	SourcePhotoAnalysis Provenance = "photo_analysis"
	SourceTextAnalysis  Provenance = "text_analysis"
	SourceBarcode       Provenance = "barcode"
	SourceRecipe        Provenance = "recipe"
)

// Valid reports whether the provenance is one of the known tags.
func (p Provenance) Valid() bool {
	switch p {
	case SourceManual, SourcePhotoAnalysis, SourceTextAnalysis, SourceBarcode, SourceRecipe:
		return true
	}
	return false
}

// FoodEntry is a single logged food item. Entries are values; two entries with the
// same fields are the same entry.
type FoodEntry struct {
	Name     string     `json:"name"`
	Calories int        `json:"calories"`
	Protein  float64    `json:"protein"`
	Fat      float64    `json:"fat"`
	Carbs    float64    `json:"carbs"`
	Weight   string     `json:"weight"`
	Source   Provenance `json:"source"`
}

// NewFoodEntry trims the textual fields, defaults the provenance to manual and validates the result.
func NewFoodEntry(name string, calories int, protein, fat, carbs float64, weight string, source Provenance) (FoodEntry, error) {
	if source == "" {
		source = SourceManual
	}
	entry := FoodEntry{
		Name:     strings.TrimSpace(name),
		Calories: calories,
		Protein:  protein,
		Fat:      fat,
		Carbs:    carbs,
		Weight:   strings.TrimSpace(weight),
		Source:   source,
	}
	if err := entry.Validate(); err != nil {
		return FoodEntry{}, err
	}
	return entry, nil
}

// Validate checks the entry invariants.
func (f FoodEntry) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return NewValidationError("name", "must not be blank")
	}
	if f.Calories < 0 {
		return NewValidationError("calories", "must be >= 0")
	}
	if err := validateGrams("protein", f.Protein); err != nil {
		return err
	}
	if err := validateGrams("fat", f.Fat); err != nil {
		return err
	}
	if err := validateGrams("carbs", f.Carbs); err != nil {
		return err
	}
	if strings.TrimSpace(f.Weight) == "" {
		return NewValidationError("weight", "must not be blank")
	}
	if !f.Source.Valid() {
		return NewValidationError("source", "unknown provenance %q", f.Source)
	}
	return nil
}

func validateGrams(field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewValidationError(field, "must be a finite number")
	}
	if value < 0 {
		return NewValidationError(field, "must be >= 0")
	}
	return nil
}

// Meal is an ordered, non-empty list of food entries logged together.
type Meal struct {
	Type      MealType    `json:"type"`
	Foods     []FoodEntry `json:"foods"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewMeal builds a validated meal. The foods slice is copied.
func NewMeal(mealType MealType, foods []FoodEntry, createdAt time.Time) (Meal, error) {
	meal := Meal{
		Type:      mealType,
		Foods:     append([]FoodEntry(nil), foods...),
		CreatedAt: createdAt,
	}
	if err := meal.Validate(); err != nil {
		return Meal{}, err
	}
	return meal, nil
}

// Validate checks the meal invariants, including every contained entry.
func (m Meal) Validate() error {
	if !m.Type.Valid() {
		return NewValidationError("type", "unknown meal type %q", m.Type)
	}
	if len(m.Foods) == 0 {
		return NewValidationError("foods", "a meal needs at least one food entry")
	}
	for i, food := range m.Foods {
		if err := food.Validate(); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				return NewValidationError("foods["+strconv.Itoa(i)+"]."+ve.Field, "%s", ve.Reason)
			}
			return err
		}
	}
	if m.CreatedAt.IsZero() {
		return NewValidationError("created_at", "must be set")
	}
	return nil
}

// Clone returns a deep copy so stored records never share backing arrays with callers.
func (m Meal) Clone() Meal {
	m.Foods = append([]FoodEntry(nil), m.Foods...)
	return m
}
