// Package intake sums food entries into calorie and macro totals.
package intake

import (
	"slices"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
)

// Aggregate sums every food entry of every meal. An empty slice yields zero totals.
// Gram values are added in ascending order so the result does not depend on meal or
// entry order, even under floating-point rounding.
func Aggregate(meals []models.Meal) models.Totals {
	var foods []models.FoodEntry
	for _, meal := range meals {
		foods = append(foods, meal.Foods...)
	}
	return AggregateFoods(foods)
}

// AggregateFoods sums a flat list of food entries.
func AggregateFoods(foods []models.FoodEntry) models.Totals {
	var (
		calories int
		protein  = make([]float64, 0, len(foods))
		fat      = make([]float64, 0, len(foods))
		carbs    = make([]float64, 0, len(foods))
	)
	for _, food := range foods {
		calories += food.Calories
		protein = append(protein, food.Protein)
		fat = append(fat, food.Fat)
		carbs = append(carbs, food.Carbs)
	}
	return models.Totals{
		Calories: calories,
		Protein:  sortedSum(protein),
		Fat:      sortedSum(fat),
		Carbs:    sortedSum(carbs),
	}
}

// Combine adds already aggregated totals, e.g. daily summaries rolled into a week.
func Combine(totals ...models.Totals) models.Totals {
	var (
		calories int
		protein  = make([]float64, 0, len(totals))
		fat      = make([]float64, 0, len(totals))
		carbs    = make([]float64, 0, len(totals))
	)
	for _, t := range totals {
		calories += t.Calories
		protein = append(protein, t.Protein)
		fat = append(fat, t.Fat)
		carbs = append(carbs, t.Carbs)
	}
	return models.Totals{
		Calories: calories,
		Protein:  sortedSum(protein),
		Fat:      sortedSum(fat),
		Carbs:    sortedSum(carbs),
	}
}

// Equal compares totals exactly. Totals from the same inputs are bit-identical, so no
// epsilon is needed.
func Equal(a, b models.Totals) bool {
	return a.Calories == b.Calories && a.Protein == b.Protein && a.Fat == b.Fat && a.Carbs == b.Carbs
}

func sortedSum(values []float64) float64 {
	slices.Sort(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}
