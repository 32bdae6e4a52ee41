// Package profile stores body metrics per user and caches the targets derived from them.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/repository"
	"github.com/mamadbah2/nutritrack/internal/service/targets"
	"github.com/mamadbah2/nutritrack/pkg/keylock"
)

// KeyPrefix prefixes the persisted profile of each user.
const KeyPrefix = "profile_"

// ErrNotFound is returned when a user has not saved a profile yet.
var ErrNotFound = errors.New("profile not found")

// Key is the persistence key of userID's profile.
func Key(userID string) string { return KeyPrefix + userID }

// Profile is a user's metrics with the targets computed from them.
type Profile struct {
	UserID    string                  `json:"user_id"`
	Metrics   models.UserMetrics      `json:"metrics"`
	Targets   models.NutritionTargets `json:"targets"`
	Breakdown targets.Breakdown       `json:"breakdown"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Service manages profiles.
type Service struct {
	kv     repository.Store
	calc   *targets.Calculator
	now    func() time.Time
	locks  *keylock.Table
	logger *zap.Logger
}

// NewService builds a profile service.
func NewService(kv repository.Store, calc *targets.Calculator, now func() time.Time, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{kv: kv, calc: calc, now: now, locks: keylock.New(), logger: logger}
}

// Save validates metrics and stores them with their targets. When the metrics and
// strategy match the stored profile, the cached targets are kept.
func (s *Service) Save(ctx context.Context, userID string, metrics models.UserMetrics) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, models.NewValidationError("user_id", "must not be blank")
	}
	if err := metrics.Validate(); err != nil {
		return Profile{}, err
	}
	metrics = metrics.Normalized()

	unlock := s.locks.Lock(userID)
	defer unlock()

	current, err := s.load(ctx, userID)
	if err == nil && current.Metrics == metrics && current.Breakdown.Strategy == s.calc.Config().Strategy {
		s.logger.Debug("metrics unchanged, keeping cached targets", zap.String("user_id", userID))
		return current, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Profile{}, err
	}

	result, err := s.calc.ComputeTargets(metrics)
	if err != nil {
		return Profile{}, err
	}
	if !result.Targets.IsValidMacroDistribution(s.calc.Config().Tolerance) {
		s.logger.Warn("macro distribution outside tolerance",
			zap.String("user_id", userID), zap.Int("calories", result.Targets.Calories))
	}

	p := Profile{
		UserID:    userID,
		Metrics:   metrics,
		Targets:   result.Targets,
		Breakdown: result.Breakdown,
		UpdatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Profile{}, models.NewStorageError("encode", Key(userID), err)
	}
	if err := s.kv.Set(ctx, Key(userID), data); err != nil {
		s.logger.Error("profile write failed", zap.String("user_id", userID), zap.Error(err))
		return Profile{}, models.NewStorageError("set", Key(userID), err)
	}
	s.logger.Info("profile saved",
		zap.String("user_id", userID),
		zap.String("strategy", string(result.Breakdown.Strategy)),
		zap.Int("calories", result.Targets.Calories),
	)
	return p, nil
}

// Get returns the stored profile or ErrNotFound.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	return s.load(ctx, userID)
}

// Targets returns the cached targets of userID.
func (s *Service) Targets(ctx context.Context, userID string) (models.NutritionTargets, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return models.NutritionTargets{}, err
	}
	return p.Targets, nil
}

func (s *Service) load(ctx context.Context, userID string) (Profile, error) {
	key := Key(userID)
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, models.NewStorageError("get", key, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, models.NewStorageError("decode", key, err)
	}
	return p, nil
}
