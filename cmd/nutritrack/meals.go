package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/nutritrack/internal/app"
	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/service/records"
)

// mealFlags describe a single-food meal on the command line.
type mealFlags struct {
	mealType string
	name     string
	calories int
	protein  float64
	fat      float64
	carbs    float64
	weight   string
	source   string
	at       string
}

func (f *mealFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mealType, "type", "t", string(models.MealSnack), "Meal type: breakfast, lunch, dinner or snack")
	cmd.Flags().StringVar(&f.name, "name", "", "Food name")
	cmd.Flags().IntVar(&f.calories, "calories", 0, "Calories (kcal)")
	cmd.Flags().Float64Var(&f.protein, "protein", 0, "Protein grams")
	cmd.Flags().Float64Var(&f.fat, "fat", 0, "Fat grams")
	cmd.Flags().Float64Var(&f.carbs, "carbs", 0, "Carb grams")
	cmd.Flags().StringVar(&f.weight, "weight", "1 serving", "Portion description")
	cmd.Flags().StringVar(&f.source, "source", string(models.SourceManual), "Provenance tag")
	cmd.Flags().StringVar(&f.at, "at", "", "Eaten at (RFC3339); the meal goes to that instant's food day")
	_ = cmd.MarkFlagRequired("name")
}

func (f *mealFlags) meal(now time.Time) (models.Meal, error) {
	food, err := models.NewFoodEntry(f.name, f.calories, f.protein, f.fat, f.carbs, f.weight, models.Provenance(f.source))
	if err != nil {
		return models.Meal{}, err
	}
	createdAt := now
	if f.at != "" {
		createdAt, err = time.Parse(time.RFC3339, f.at)
		if err != nil {
			return models.Meal{}, fmt.Errorf("invalid --at %q (expected RFC3339)", f.at)
		}
	}
	return models.NewMeal(models.MealType(strings.ToLower(f.mealType)), []models.FoodEntry{food}, createdAt)
}

func newLogCmd(opts *options) *cobra.Command {
	flags := &mealFlags{}
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log a meal on the current food day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), opts, func(a *app.App, store *records.Store) error {
				meal, err := flags.meal(a.Now())
				if err != nil {
					return err
				}
				var record models.DailyIntakeRecord
				if flags.at != "" {
					record, err = store.ImportMeal(cmd.Context(), meal)
				} else {
					record, err = store.AppendMeal(cmd.Context(), meal)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged %s on %s (meal #%d)\n", meal.Foods[0].Name, record.Day, len(record.Meals)-1)
				printTotals(cmd.OutOrStdout(), record.Totals)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newDayCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "day [YYYY-MM-DD]",
		Short: "Show the meals of a food day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), opts, func(a *app.App, store *records.Store) error {
				var (
					record models.DailyIntakeRecord
					err    error
				)
				if len(args) == 0 {
					record, err = store.ReadToday(cmd.Context())
				} else {
					record, err = store.ReadDay(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				printRecord(cmd.OutOrStdout(), record)
				return nil
			})
		},
	}
}

func newEditCmd(opts *options) *cobra.Command {
	flags := &mealFlags{}
	cmd := &cobra.Command{
		Use:   "edit YYYY-MM-DD INDEX",
		Short: "Replace a meal of a day",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			return withUser(cmd.Context(), opts, func(a *app.App, store *records.Store) error {
				meal, err := flags.meal(a.Now())
				if err != nil {
					return err
				}
				changed, err := store.EditMeal(cmd.Context(), args[0], index, meal)
				if err != nil {
					return err
				}
				reportChange(cmd.OutOrStdout(), changed, "Updated", args[0], index)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete YYYY-MM-DD INDEX",
		Short: "Delete a meal of a day",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			return withUser(cmd.Context(), opts, func(a *app.App, store *records.Store) error {
				changed, err := store.DeleteMeal(cmd.Context(), args[0], index)
				if err != nil {
					return err
				}
				reportChange(cmd.OutOrStdout(), changed, "Deleted", args[0], index)
				return nil
			})
		},
	}
}

func newVerifyCmd(opts *options) *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "verify [YYYY-MM-DD]",
		Short: "Check that a day's summary matches its meals",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), opts, func(a *app.App, store *records.Store) error {
				day := dayArg(a, args)
				err := store.VerifyDay(cmd.Context(), day)
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: consistent\n", day)
					return nil
				}
				if !repair {
					return err
				}
				summary, err := store.RepairSummary(cmd.Context(), day)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: repaired (%d kcal, %d meals)\n", day, summary.TotalCalories, summary.MealCount)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "Rewrite the summary from the meals when it diverged")
	return cmd
}

func reportChange(w io.Writer, changed bool, verb, day string, index int) {
	if changed {
		fmt.Fprintf(w, "%s meal #%d on %s\n", verb, index, day)
		return
	}
	fmt.Fprintf(w, "No meal #%d on %s, nothing changed\n", index, day)
}

func printRecord(w io.Writer, record models.DailyIntakeRecord) {
	fmt.Fprintf(w, "Day: %s\n", record.Day)
	if len(record.Meals) == 0 {
		fmt.Fprintln(w, "No meals logged.")
		return
	}
	for i, meal := range record.Meals {
		fmt.Fprintf(w, "#%d %-9s %s\n", i, meal.Type, meal.CreatedAt.Format("15:04"))
		for _, f := range meal.Foods {
			fmt.Fprintf(w, "    %s (%s) %d kcal | P %.1fg | F %.1fg | C %.1fg\n", f.Name, f.Weight, f.Calories, f.Protein, f.Fat, f.Carbs)
		}
	}
	printTotals(w, record.Totals)
}

func printTotals(w io.Writer, t models.Totals) {
	fmt.Fprintf(w, "Total: %d kcal | P %.1fg | F %.1fg | C %.1fg\n", t.Calories, t.Protein, t.Fat, t.Carbs)
}
