package reporting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/service/foodday"
	"github.com/mamadbah2/nutritrack/internal/service/intake"
	"github.com/mamadbah2/nutritrack/internal/service/profile"
	"github.com/mamadbah2/nutritrack/internal/service/progress"
	"github.com/mamadbah2/nutritrack/internal/service/records"
)

// ErrExportDisabled is returned by exports when no exporter is configured.
var ErrExportDisabled = errors.New("summary export is not configured")

// Kind names the period a report covers.
type Kind string

const (
	KindRange   Kind = "range"
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
)

// TargetSource provides the cached targets of a user.
type TargetSource interface {
	Targets(ctx context.Context, userID string) (models.NutritionTargets, error)
}

// Exporter publishes a day's summary outside the store.
type Exporter interface {
	ExportSummary(ctx context.Context, userID string, summary models.DailySummary) error
}

// Report aggregates the daily summaries of a period.
type Report struct {
	UserID       string                   `json:"user_id"`
	Kind         Kind                     `json:"kind"`
	From         string                   `json:"from"`
	To           string                   `json:"to"`
	DaysInRange  int                      `json:"days_in_range"`
	DaysLogged   int                      `json:"days_logged"`
	MealCount    int                      `json:"meal_count"`
	Totals       models.Totals            `json:"totals"`
	Average      models.Totals            `json:"average"`
	Targets      *models.NutritionTargets `json:"targets,omitempty"`
	DaysOnTarget int                      `json:"days_on_target"`
	Days         []models.DailySummary    `json:"days"`
}

// Service builds reports over the daily summaries of each user.
type Service struct {
	records  *records.Store
	targets  TargetSource
	exporter Exporter
	logger   *zap.Logger
}

// NewService wires a new reporting service instance. targets and exporter may be nil.
func NewService(store *records.Store, targets TargetSource, exporter Exporter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{records: store, targets: targets, exporter: exporter, logger: logger}
}

// Range reports on from..to inclusive.
func (s *Service) Range(ctx context.Context, userID, from, to string) (Report, error) {
	return s.build(ctx, userID, KindRange, from, to)
}

// Weekly reports on the Monday-to-Sunday week containing day.
func (s *Service) Weekly(ctx context.Context, userID, day string) (Report, error) {
	monday, err := foodday.MondayOf(day)
	if err != nil {
		return Report{}, err
	}
	sunday, err := foodday.AddDays(monday, 6)
	if err != nil {
		return Report{}, err
	}
	return s.build(ctx, userID, KindWeekly, monday, sunday)
}

// Monthly reports on a calendar month.
func (s *Service) Monthly(ctx context.Context, userID string, year int, month time.Month) (Report, error) {
	if month < time.January || month > time.December {
		return Report{}, models.NewValidationError("month", "must be within 1..12, got %d", month)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return s.build(ctx, userID, KindMonthly, first.Format(models.DateLayout), last.Format(models.DateLayout))
}

// ParseMonth parses a "YYYY-MM" month.
func ParseMonth(value string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, models.NewValidationError("month", "invalid month %q (expected YYYY-MM)", value)
	}
	return t.Year(), t.Month(), nil
}

func (s *Service) build(ctx context.Context, userID string, kind Kind, from, to string) (Report, error) {
	store, err := s.records.ForUser(userID)
	if err != nil {
		return Report{}, err
	}
	span, err := foodday.DaysBetween(from, to)
	if err != nil {
		return Report{}, err
	}
	summaries, err := store.Summaries(ctx, from, to)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		UserID:      userID,
		Kind:        kind,
		From:        from,
		To:          to,
		DaysInRange: span + 1,
		Days:        make([]models.DailySummary, 0, len(summaries)),
	}

	totals := make([]models.Totals, 0, len(summaries))
	for _, summary := range summaries {
		if summary.MealCount == 0 {
			continue
		}
		report.Days = append(report.Days, summary)
		report.MealCount += summary.MealCount
		totals = append(totals, summary.Totals())
	}
	report.DaysLogged = len(report.Days)
	report.Totals = intake.Combine(totals...)
	report.Average = average(report.Totals, report.DaysLogged)

	if s.targets != nil {
		targets, err := s.targets.Targets(ctx, userID)
		switch {
		case err == nil:
			report.Targets = &targets
			for _, day := range report.Days {
				if progress.Evaluate(day.Totals(), targets).GoalMet {
					report.DaysOnTarget++
				}
			}
		case errors.Is(err, profile.ErrNotFound):
			s.logger.Debug("no profile, report without targets", zap.String("user_id", userID))
		default:
			return Report{}, err
		}
	}

	return report, nil
}

func average(t models.Totals, days int) models.Totals {
	if days == 0 {
		return models.Totals{}
	}
	n := float64(days)
	return models.Totals{
		Calories: int(math.Round(float64(t.Calories) / n)),
		Protein:  t.Protein / n,
		Fat:      t.Fat / n,
		Carbs:    t.Carbs / n,
	}
}

// Format renders a report as plain text.
func Format(r Report) string {
	var b strings.Builder
	title := strings.ToUpper(string(r.Kind[:1])) + string(r.Kind[1:])
	fmt.Fprintf(&b, "%s report %s to %s\n", title, r.From, r.To)

	if r.DaysLogged == 0 {
		b.WriteString("No meals logged in this period.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Days logged: %d/%d (%d meals)\n", r.DaysLogged, r.DaysInRange, r.MealCount)
	fmt.Fprintf(&b, "Total: %d kcal | P %.1fg | F %.1fg | C %.1fg\n", r.Totals.Calories, r.Totals.Protein, r.Totals.Fat, r.Totals.Carbs)
	fmt.Fprintf(&b, "Daily average: %d kcal | P %.1fg | F %.1fg | C %.1fg\n", r.Average.Calories, r.Average.Protein, r.Average.Fat, r.Average.Carbs)
	if r.Targets != nil {
		fmt.Fprintf(&b, "Target: %d kcal/day, on target %d of %d days\n", r.Targets.Calories, r.DaysOnTarget, r.DaysLogged)
	}
	for _, d := range r.Days {
		fmt.Fprintf(&b, "  %s  %5d kcal  %d meals\n", d.Day, d.TotalCalories, d.MealCount)
	}
	return b.String()
}

// ExportDay sends one day's summary of userID to the exporter.
func (s *Service) ExportDay(ctx context.Context, userID, day string) error {
	if s.exporter == nil {
		return ErrExportDisabled
	}
	store, err := s.records.ForUser(userID)
	if err != nil {
		return err
	}
	summary, err := store.ReadSummary(ctx, day)
	if err != nil {
		return err
	}
	if summary.MealCount == 0 {
		s.logger.Debug("nothing to export", zap.String("user_id", userID), zap.String("day", day))
		return nil
	}
	return s.exporter.ExportSummary(ctx, userID, summary)
}

// ExportAll exports day for every user and returns how many users were processed.
// It keeps going after a failed user and returns the joined errors.
func (s *Service) ExportAll(ctx context.Context, day string) (int, error) {
	if s.exporter == nil {
		return 0, ErrExportDisabled
	}
	users, err := s.records.Users(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	done := 0
	for _, userID := range users {
		if err := s.ExportDay(ctx, userID, day); err != nil {
			s.logger.Error("export failed", zap.String("user_id", userID), zap.String("day", day), zap.Error(err))
			errs = append(errs, fmt.Errorf("export %s: %w", userID, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}
