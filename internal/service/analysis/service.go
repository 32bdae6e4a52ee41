// Package analysis runs quota-metered AI food analysis and logs the results as meals.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/service/intake"
	"github.com/mamadbah2/nutritrack/internal/service/quota"
	"github.com/mamadbah2/nutritrack/internal/service/records"
)

// ErrDisabled is returned when no analyzer is configured.
var ErrDisabled = errors.New("ai analysis is not configured")

// Analyzer turns free text or a photo into food entry candidates.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) ([]models.FoodEntry, error)
	AnalyzePhoto(ctx context.Context, image []byte, mediaType string) ([]models.FoodEntry, error)
}

// Result is one successful analysis.
type Result struct {
	RequestID string             `json:"request_id"`
	Foods     []models.FoodEntry `json:"foods"`
	Totals    models.Totals      `json:"totals"`
	Quota     quota.Snapshot     `json:"quota"`
}

// Service gates analyzer calls behind the usage quota.
type Service struct {
	analyzer Analyzer
	tracker  *quota.Tracker
	records  *records.Store
	now      func() time.Time
	logger   *zap.Logger
}

// NewService wires the pipeline. A nil analyzer disables analysis but keeps LogAnalysis.
func NewService(analyzer Analyzer, tracker *quota.Tracker, store *records.Store, now func() time.Time, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{analyzer: analyzer, tracker: tracker, records: store, now: now, logger: logger}
}

// Enabled reports whether an analyzer is configured.
func (s *Service) Enabled() bool { return s.analyzer != nil }

// AnalyzeText analyzes a meal description for userID. Usage is recorded only when the
// analyzer succeeds and the context is still live.
func (s *Service) AnalyzeText(ctx context.Context, userID, text string) (Result, error) {
	return s.run(ctx, userID, "text", func(ctx context.Context) ([]models.FoodEntry, error) {
		return s.analyzer.AnalyzeText(ctx, text)
	})
}

// AnalyzePhoto analyzes a meal photo for userID.
func (s *Service) AnalyzePhoto(ctx context.Context, userID string, image []byte, mediaType string) (Result, error) {
	return s.run(ctx, userID, "photo", func(ctx context.Context) ([]models.FoodEntry, error) {
		return s.analyzer.AnalyzePhoto(ctx, image, mediaType)
	})
}

func (s *Service) run(ctx context.Context, userID, kind string, call func(context.Context) ([]models.FoodEntry, error)) (Result, error) {
	if s.analyzer == nil {
		return Result{}, ErrDisabled
	}
	requestID := uuid.NewString()
	log := s.logger.With(zap.String("request_id", requestID), zap.String("user_id", userID), zap.String("kind", kind))

	var foods []models.FoodEntry
	snapshot, err := s.tracker.Guard(ctx, userID, func(ctx context.Context) error {
		var err error
		foods, err = call(ctx)
		return err
	})
	if err != nil {
		log.Warn("analysis failed", zap.Error(err))
		return Result{}, err
	}

	log.Info("analysis completed", zap.Int("foods", len(foods)), zap.Int("remaining", snapshot.Remaining))
	return Result{
		RequestID: requestID,
		Foods:     foods,
		Totals:    intake.AggregateFoods(foods),
		Quota:     snapshot,
	}, nil
}

// LogAnalysis appends analyzed foods as a meal on the current food day of userID.
func (s *Service) LogAnalysis(ctx context.Context, userID string, mealType models.MealType, foods []models.FoodEntry) (models.DailyIntakeRecord, error) {
	store, err := s.records.ForUser(userID)
	if err != nil {
		return models.DailyIntakeRecord{}, err
	}
	meal, err := models.NewMeal(mealType, foods, s.now())
	if err != nil {
		return models.DailyIntakeRecord{}, err
	}
	return store.AppendMeal(ctx, meal)
}
