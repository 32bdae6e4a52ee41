package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/nutritrack/internal/app"
	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/service/foodday"
	"github.com/mamadbah2/nutritrack/internal/service/profile"
	"github.com/mamadbah2/nutritrack/internal/service/progress"
	"github.com/mamadbah2/nutritrack/internal/service/quota"
	"github.com/mamadbah2/nutritrack/internal/service/records"
	"github.com/mamadbah2/nutritrack/internal/service/reporting"
)

func newTargetsCmd(opts *options) *cobra.Command {
	var (
		metrics models.UserMetrics
		sex     string
		act     string
		goal    string
		save    bool
	)
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Compute daily calorie and macro targets from body metrics",
		Long:  "Without metric flags the saved profile's targets are shown. With --save the metrics become the user's profile.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics.Sex = models.Sex(sex)
			metrics.Activity = models.ActivityLevel(act)
			metrics.Goal = models.Goal(goal)

			return withApp(cmd.Context(), opts, func(a *app.App) error {
				out := cmd.OutOrStdout()
				if metrics.BirthDate == "" && !save {
					p, err := a.Profiles.Get(cmd.Context(), opts.user)
					if errors.Is(err, profile.ErrNotFound) {
						return fmt.Errorf("no profile for %s; pass --birth-date, --height, --weight and --sex", opts.user)
					}
					if err != nil {
						return err
					}
					printTargets(cmd, p.Targets)
					fmt.Fprintf(out, "Age %d | BMR %.0f | strategy %s\n", p.Breakdown.Age, p.Breakdown.BMR, p.Breakdown.Strategy)
					return nil
				}

				if save {
					p, err := a.Profiles.Save(cmd.Context(), opts.user, metrics)
					if err != nil {
						return err
					}
					printTargets(cmd, p.Targets)
					fmt.Fprintf(out, "Saved profile for %s\n", opts.user)
					return nil
				}

				result, err := a.Calculator.ComputeTargets(metrics)
				if err != nil {
					return err
				}
				printTargets(cmd, result.Targets)
				fmt.Fprintf(out, "Age %d | BMR %.0f", result.Breakdown.Age, result.Breakdown.BMR)
				if result.Breakdown.TDEE > 0 {
					fmt.Fprintf(out, " | TDEE %.0f", result.Breakdown.TDEE)
				}
				fmt.Fprintf(out, " | strategy %s\n", result.Breakdown.Strategy)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&metrics.BirthDate, "birth-date", "", "Birth date YYYY-MM-DD")
	cmd.Flags().Float64Var(&metrics.HeightCm, "height", 0, "Height in cm")
	cmd.Flags().Float64Var(&metrics.WeightKg, "weight", 0, "Weight in kg")
	cmd.Flags().StringVar(&sex, "sex", "", "male, female or other")
	cmd.Flags().StringVar(&act, "activity", "", "sedentary, lightly_active, moderately_active, very_active or extremely_active")
	cmd.Flags().StringVar(&goal, "goal", "", "lose, maintain or gain")
	cmd.Flags().BoolVar(&save, "save", false, "Store the metrics as the user's profile")
	return cmd
}

func printTargets(cmd *cobra.Command, t models.NutritionTargets) {
	fmt.Fprintf(cmd.OutOrStdout(), "Targets: %d kcal | P %.1fg | F %.1fg | C %.1fg\n", t.Calories, t.Protein, t.Fat, t.Carbs)
}

func newProgressCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "progress [YYYY-MM-DD]",
		Short: "Compare a day's intake with the saved targets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), opts, func(a *app.App, store *records.Store) error {
				targets, err := a.Profiles.Targets(cmd.Context(), opts.user)
				if err != nil {
					return err
				}
				record, err := store.ReadDay(cmd.Context(), dayArg(a, args))
				if err != nil {
					return err
				}
				p := progress.Evaluate(record.Totals, targets)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Day: %s\n", record.Day)
				printTotals(out, record.Totals)
				printTargets(cmd, targets)
				fmt.Fprintf(out, "Remaining: %d kcal | P %.1fg | F %.1fg | C %.1fg\n", p.RemainingCalories, p.RemainingProtein, p.RemainingFat, p.RemainingCarbs)
				fmt.Fprintf(out, "Status: %s", p.Status)
				if p.CalorieRatio != nil {
					fmt.Fprintf(out, " (%.0f%% of calories)", *p.CalorieRatio*100)
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}
}

func newReportCmd(opts *options) *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Weekly and monthly reports",
	}

	var day string
	weekly := &cobra.Command{
		Use:   "weekly",
		Short: "Report on the Monday-to-Sunday week containing --day (default today)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				if day == "" {
					day = a.Resolver.Today()
				}
				r, err := a.Reports.Weekly(cmd.Context(), opts.user, day)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), reporting.Format(r))
				return nil
			})
		},
	}
	weekly.Flags().StringVar(&day, "day", "", "Any day of the week, YYYY-MM-DD")

	var month string
	monthly := &cobra.Command{
		Use:   "monthly",
		Short: "Report on --month (default the current month)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				var (
					year int
					mon  time.Month
				)
				if month != "" {
					var err error
					year, mon, err = reporting.ParseMonth(month)
					if err != nil {
						return err
					}
				} else {
					today, err := foodday.ParseDay(a.Resolver.Today())
					if err != nil {
						return err
					}
					year, mon = today.Year(), today.Month()
				}
				r, err := a.Reports.Monthly(cmd.Context(), opts.user, year, mon)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), reporting.Format(r))
				return nil
			})
		},
	}
	monthly.Flags().StringVar(&month, "month", "", "Month YYYY-MM")

	report.AddCommand(weekly, monthly)
	return report
}

func newQuotaCmd(opts *options) *cobra.Command {
	var plan string
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show AI analysis usage, or switch plan with --plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				var (
					snap quota.Snapshot
					err  error
				)
				if plan != "" {
					snap, err = a.Quota.SetPlan(cmd.Context(), opts.user, models.PlanID(plan))
				} else {
					snap, err = a.Quota.Snapshot(cmd.Context(), opts.user)
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Plan: %s\n", snap.Plan.Name)
				if snap.Unlimited {
					fmt.Fprintf(out, "Used: %d this month (unlimited)\n", snap.Count)
					return nil
				}
				fmt.Fprintf(out, "Used: %d of %d | remaining %d\n", snap.Count, snap.Plan.MonthlyLimit, snap.Remaining)
				fmt.Fprintf(out, "Resets: %s\n", snap.ResetsAt.Format(time.RFC1123))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "Switch to this plan (free, pro, premium)")
	return cmd
}
