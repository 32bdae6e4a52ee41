// Package records persists per-day intake records together with their derived
// summaries. Every mutation re-derives the summary and writes both entries.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/repository"
	"github.com/mamadbah2/nutritrack/internal/service/foodday"
	"github.com/mamadbah2/nutritrack/internal/service/intake"
	"github.com/mamadbah2/nutritrack/pkg/keylock"
)

const (
	IntakePrefix  = "daily_intake_"
	SummaryPrefix = "daily_summary_"
	LastDayKey    = "last_intake_day"

	usersPrefix = "users/"
)

// IntakeKey is the persistence key of a day's record.
func IntakeKey(day string) string { return IntakePrefix + day }

// SummaryKey is the persistence key of a day's summary.
func SummaryKey(day string) string { return SummaryPrefix + day }

// UserNamespace returns the key prefix of userID's data.
func UserNamespace(userID string) (string, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return "", models.NewValidationError("user_id", "must not be blank")
	}
	if id != userID || strings.ContainsAny(id, "/\\") {
		return "", models.NewValidationError("user_id", "must not contain slashes or surrounding spaces")
	}
	return usersPrefix + id + "/", nil
}

// Store is the daily record store. The zero value is not usable; call NewStore.
type Store struct {
	kv        repository.Store
	namespace string
	resolver  *foodday.Resolver
	locks     *keylock.Table
	logger    *zap.Logger
}

// NewStore builds a store over kv. Keys are written unprefixed; use ForUser for
// per-user views.
func NewStore(kv repository.Store, resolver *foodday.Resolver, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kv:       kv,
		resolver: resolver,
		locks:    keylock.New(),
		logger:   logger,
	}
}

// ForUser returns a view of the store scoped to userID. Views share the lock table
// of their parent.
func (s *Store) ForUser(userID string) (*Store, error) {
	ns, err := UserNamespace(userID)
	if err != nil {
		return nil, err
	}
	return &Store{
		kv:        repository.WithNamespace(s.kv, ns),
		namespace: s.namespace + ns,
		resolver:  s.resolver,
		locks:     s.locks,
		logger:    s.logger.With(zap.String("user_id", userID)),
	}, nil
}

// Resolver returns the food-day resolver the store uses.
func (s *Store) Resolver() *foodday.Resolver { return s.resolver }

func (s *Store) lockDay(day string) func() {
	return s.locks.Lock(s.namespace + IntakeKey(day))
}

// AppendMeal adds meal to the current food day.
func (s *Store) AppendMeal(ctx context.Context, meal models.Meal) (models.DailyIntakeRecord, error) {
	return s.appendTo(ctx, s.resolver.Today(), meal)
}

// ImportMeal adds meal to the food day its creation time falls in.
func (s *Store) ImportMeal(ctx context.Context, meal models.Meal) (models.DailyIntakeRecord, error) {
	if meal.CreatedAt.IsZero() {
		return models.DailyIntakeRecord{}, models.NewValidationError("created_at", "must be set")
	}
	return s.appendTo(ctx, s.resolver.Resolve(meal.CreatedAt), meal)
}

func (s *Store) appendTo(ctx context.Context, day string, meal models.Meal) (models.DailyIntakeRecord, error) {
	if err := meal.Validate(); err != nil {
		return models.DailyIntakeRecord{}, err
	}

	unlock := s.lockDay(day)
	defer unlock()

	record, _, err := s.loadRecord(ctx, day)
	if err != nil {
		return models.DailyIntakeRecord{}, err
	}
	record.Meals = append(record.Meals, meal.Clone())
	record, err = s.writeDay(ctx, record)
	if err != nil {
		return models.DailyIntakeRecord{}, err
	}
	s.logger.Debug("meal appended",
		zap.String("day", day),
		zap.String("meal_type", string(meal.Type)),
		zap.Int("calories", record.Totals.Calories),
	)
	return record, nil
}

// EditMeal replaces the meal at index. A missing record or an out-of-range index is
// a no-op and reports false.
func (s *Store) EditMeal(ctx context.Context, day string, index int, meal models.Meal) (bool, error) {
	if _, err := foodday.ParseDay(day); err != nil {
		return false, err
	}
	if err := meal.Validate(); err != nil {
		return false, err
	}
	return s.mutate(ctx, day, index, func(r *models.DailyIntakeRecord) {
		r.Meals[index] = meal.Clone()
	})
}

// DeleteMeal removes the meal at index. A missing record or an out-of-range index is
// a no-op and reports false.
func (s *Store) DeleteMeal(ctx context.Context, day string, index int) (bool, error) {
	if _, err := foodday.ParseDay(day); err != nil {
		return false, err
	}
	return s.mutate(ctx, day, index, func(r *models.DailyIntakeRecord) {
		r.Meals = append(r.Meals[:index], r.Meals[index+1:]...)
	})
}

func (s *Store) mutate(ctx context.Context, day string, index int, apply func(*models.DailyIntakeRecord)) (bool, error) {
	unlock := s.lockDay(day)
	defer unlock()

	record, found, err := s.loadRecord(ctx, day)
	if err != nil {
		return false, err
	}
	if !found || index < 0 || index >= len(record.Meals) {
		s.logger.Debug("meal mutation skipped", zap.String("day", day), zap.Int("index", index), zap.Bool("record_found", found))
		return false, nil
	}
	apply(&record)
	if _, err := s.writeDay(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}

// ReadDay returns the record of day, or an empty record when nothing was logged.
func (s *Store) ReadDay(ctx context.Context, day string) (models.DailyIntakeRecord, error) {
	if _, err := foodday.ParseDay(day); err != nil {
		return models.DailyIntakeRecord{}, err
	}
	record, _, err := s.loadRecord(ctx, day)
	return record, err
}

// ReadToday performs the day rollover if needed and returns the current record.
func (s *Store) ReadToday(ctx context.Context) (models.DailyIntakeRecord, error) {
	if _, err := s.PerformResetIfNeeded(ctx); err != nil {
		return models.DailyIntakeRecord{}, err
	}
	return s.ReadDay(ctx, s.resolver.Today())
}

// ReadSummary returns the stored summary of day. A day without a summary yields a
// zero summary for that day.
func (s *Store) ReadSummary(ctx context.Context, day string) (models.DailySummary, error) {
	if _, err := foodday.ParseDay(day); err != nil {
		return models.DailySummary{}, err
	}
	summary, _, err := s.loadSummary(ctx, day)
	return summary, err
}

// VerifyDay compares the stored summary with a fresh aggregation of the record and
// returns an *models.InconsistentStateError on mismatch.
func (s *Store) VerifyDay(ctx context.Context, day string) error {
	if _, err := foodday.ParseDay(day); err != nil {
		return err
	}
	record, recordFound, err := s.loadRecord(ctx, day)
	if err != nil {
		return err
	}
	summary, summaryFound, err := s.loadSummary(ctx, day)
	if err != nil {
		return err
	}
	if !recordFound && !summaryFound {
		return nil
	}

	computed := intake.Aggregate(record.Meals)
	if !summaryFound || !intake.Equal(summary.Totals(), computed) || summary.MealCount != len(record.Meals) {
		s.logger.Warn("summary diverged from record",
			zap.String("day", day),
			zap.Bool("summary_found", summaryFound),
			zap.Int("summary_calories", summary.TotalCalories),
			zap.Int("computed_calories", computed.Calories),
		)
		return &models.InconsistentStateError{Day: day, Summary: summary.Totals(), Computed: computed}
	}
	return nil
}

// RepairSummary re-derives the totals and summary of day from its meals and writes
// both. Running it on a consistent day only refreshes timestamps.
func (s *Store) RepairSummary(ctx context.Context, day string) (models.DailySummary, error) {
	if _, err := foodday.ParseDay(day); err != nil {
		return models.DailySummary{}, err
	}
	unlock := s.lockDay(day)
	defer unlock()

	record, _, err := s.loadRecord(ctx, day)
	if err != nil {
		return models.DailySummary{}, err
	}
	record, err = s.writeDay(ctx, record)
	if err != nil {
		return models.DailySummary{}, err
	}
	s.logger.Info("summary repaired", zap.String("day", day), zap.Int("calories", record.Totals.Calories))
	return models.SummaryOf(record, record.UpdatedAt), nil
}

// PerformResetIfNeeded starts a new food day when the stored marker is absent or
// stale. An existing record for the new day is left untouched. It reports whether a
// rollover happened.
func (s *Store) PerformResetIfNeeded(ctx context.Context) (bool, error) {
	unlockMarker := s.locks.Lock(s.namespace + LastDayKey)
	defer unlockMarker()

	last, err := s.kv.Get(ctx, LastDayKey)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, models.NewStorageError("get", LastDayKey, err)
	}
	lastDay := string(last)
	if !s.resolver.ShouldReset(lastDay) {
		return false, nil
	}

	today := s.resolver.Today()
	unlockDay := s.lockDay(today)
	defer unlockDay()

	record, found, err := s.loadRecord(ctx, today)
	if err != nil {
		return false, err
	}
	if !found {
		if _, err := s.writeDay(ctx, record); err != nil {
			return false, err
		}
	}
	if err := s.kv.Set(ctx, LastDayKey, []byte(today)); err != nil {
		return false, models.NewStorageError("set", LastDayKey, err)
	}
	s.logger.Info("food day rolled over", zap.String("previous_day", lastDay), zap.String("day", today))
	return true, nil
}

// Summaries returns the stored summaries with from <= day <= to, ascending.
func (s *Store) Summaries(ctx context.Context, from, to string) ([]models.DailySummary, error) {
	if _, err := foodday.ParseDay(from); err != nil {
		return nil, err
	}
	if _, err := foodday.ParseDay(to); err != nil {
		return nil, err
	}
	if from > to {
		return nil, models.NewValidationError("from", "%s is after %s", from, to)
	}

	keys, err := s.kv.Keys(ctx, SummaryPrefix)
	if err != nil {
		return nil, models.NewStorageError("keys", SummaryPrefix, err)
	}
	out := make([]models.DailySummary, 0)
	for _, key := range keys {
		day := strings.TrimPrefix(key, SummaryPrefix)
		if day < from || day > to {
			continue
		}
		summary, found, err := s.loadSummary(ctx, day)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, summary)
		}
	}
	return out, nil
}

// Days lists the days that have a stored record, ascending.
func (s *Store) Days(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, IntakePrefix)
	if err != nil {
		return nil, models.NewStorageError("keys", IntakePrefix, err)
	}
	days := make([]string, 0, len(keys))
	for _, key := range keys {
		day := strings.TrimPrefix(key, IntakePrefix)
		if foodday.ValidDay(day) {
			days = append(days, day)
		}
	}
	return days, nil
}

// Users lists the user IDs with data under the store.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, usersPrefix)
	if err != nil {
		return nil, models.NewStorageError("keys", usersPrefix, err)
	}
	users := make([]string, 0)
	seen := make(map[string]struct{})
	for _, key := range keys {
		rest := strings.TrimPrefix(key, usersPrefix)
		id, _, ok := strings.Cut(rest, "/")
		if !ok || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		users = append(users, id)
	}
	return users, nil
}

// PurgeBefore deletes records and summaries of days strictly before cutoff in every
// namespace under the store and returns how many entries were removed.
func (s *Store) PurgeBefore(ctx context.Context, cutoff string) (int, error) {
	if _, err := foodday.ParseDay(cutoff); err != nil {
		return 0, err
	}
	keys, err := s.kv.Keys(ctx, "")
	if err != nil {
		return 0, models.NewStorageError("keys", "", err)
	}

	removed := 0
	for _, key := range keys {
		base := key[strings.LastIndex(key, "/")+1:]
		var day string
		switch {
		case strings.HasPrefix(base, IntakePrefix):
			day = strings.TrimPrefix(base, IntakePrefix)
		case strings.HasPrefix(base, SummaryPrefix):
			day = strings.TrimPrefix(base, SummaryPrefix)
		default:
			continue
		}
		if !foodday.ValidDay(day) || day >= cutoff {
			continue
		}
		if err := s.kv.Delete(ctx, key); err != nil {
			return removed, models.NewStorageError("delete", key, err)
		}
		removed++
	}
	s.logger.Info("retention purge finished", zap.String("cutoff", cutoff), zap.Int("removed", removed))
	return removed, nil
}

// loadRecord returns the stored record or an empty one, reporting whether it existed.
func (s *Store) loadRecord(ctx context.Context, day string) (models.DailyIntakeRecord, bool, error) {
	key := IntakeKey(day)
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return models.EmptyRecord(day), false, nil
	}
	if err != nil {
		return models.DailyIntakeRecord{}, false, models.NewStorageError("get", key, err)
	}
	var record models.DailyIntakeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return models.DailyIntakeRecord{}, false, models.NewStorageError("decode", key, err)
	}
	if record.Meals == nil {
		record.Meals = []models.Meal{}
	}
	record.Day = day
	return record, true, nil
}

func (s *Store) loadSummary(ctx context.Context, day string) (models.DailySummary, bool, error) {
	key := SummaryKey(day)
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return models.DailySummary{Day: day}, false, nil
	}
	if err != nil {
		return models.DailySummary{}, false, models.NewStorageError("get", key, err)
	}
	var summary models.DailySummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return models.DailySummary{}, false, models.NewStorageError("decode", key, err)
	}
	return summary, true, nil
}

// writeDay recomputes totals from scratch and persists record and summary. With a
// batch-capable backend both land atomically; otherwise the record goes first and a
// failed summary write is reported while the record stays written.
func (s *Store) writeDay(ctx context.Context, record models.DailyIntakeRecord) (models.DailyIntakeRecord, error) {
	now := s.resolver.Now().UTC()
	record.Totals = intake.Aggregate(record.Meals)
	record.UpdatedAt = now
	summary := models.SummaryOf(record, now)

	recordKey, summaryKey := IntakeKey(record.Day), SummaryKey(record.Day)
	recordData, err := json.Marshal(record)
	if err != nil {
		return models.DailyIntakeRecord{}, fmt.Errorf("encode record %s: %w", record.Day, err)
	}
	summaryData, err := json.Marshal(summary)
	if err != nil {
		return models.DailyIntakeRecord{}, fmt.Errorf("encode summary %s: %w", record.Day, err)
	}

	if bw, ok := s.kv.(repository.BatchWriter); ok {
		err := bw.SetMany(ctx, []repository.Entry{
			{Key: recordKey, Value: recordData},
			{Key: summaryKey, Value: summaryData},
		})
		if err != nil {
			// A namespaced view over a non-batch backend can still fail halfway.
			s.logger.Error("day write failed", zap.String("day", record.Day), zap.Error(err))
			return models.DailyIntakeRecord{}, models.NewStorageError("set", recordKey, err)
		}
		return record, nil
	}

	if err := s.kv.Set(ctx, recordKey, recordData); err != nil {
		s.logger.Error("record write failed", zap.String("day", record.Day), zap.Error(err))
		return models.DailyIntakeRecord{}, models.NewStorageError("set", recordKey, err)
	}
	if err := s.kv.Set(ctx, summaryKey, summaryData); err != nil {
		s.logger.Error("summary write failed; record saved, summary stale until repaired",
			zap.String("day", record.Day), zap.Error(err))
		return models.DailyIntakeRecord{}, models.NewStorageError("set", summaryKey, err)
	}
	return record, nil
}
