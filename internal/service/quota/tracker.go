package quota

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/repository"
	"github.com/mamadbah2/nutritrack/pkg/keylock"
)

// KeyPrefix prefixes the persisted quota of each user.
const KeyPrefix = "usage_quota_"

// Key is the persistence key of userID's quota.
func Key(userID string) string { return KeyPrefix + userID }

// Snapshot is the read model of a user's quota.
type Snapshot struct {
	UserID      string      `json:"user_id"`
	Plan        models.Plan `json:"plan"`
	Count       int         `json:"count"`
	// Remaining is models.Unlimited when Unlimited is set.
	Remaining   int         `json:"remaining"`
	Unlimited   bool        `json:"unlimited"`
	State       State       `json:"state"`
	WindowStart time.Time   `json:"window_start"`
	ResetsAt    time.Time   `json:"resets_at"`
}

// Tracker persists quotas and serializes every operation per user.
type Tracker struct {
	kv          repository.Store
	plans       map[models.PlanID]models.Plan
	defaultPlan models.PlanID
	loc         *time.Location
	now         func() time.Time
	locks       *keylock.Table
	logger      *zap.Logger
}

// NewTracker builds a tracker. A nil loc means UTC and a nil now means time.Now.
func NewTracker(kv repository.Store, plans map[models.PlanID]models.Plan, defaultPlan models.PlanID, loc *time.Location, now func() time.Time, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if len(plans) == 0 {
		plans = models.DefaultPlans()
	}
	return &Tracker{
		kv:          kv,
		plans:       plans,
		defaultPlan: defaultPlan,
		loc:         loc,
		now:         now,
		locks:       keylock.New(),
		logger:      logger,
	}
}

// Plans returns the plan catalog.
func (t *Tracker) Plans() map[models.PlanID]models.Plan { return t.plans }

// Check fails with *models.QuotaExceededError when userID cannot start another call.
func (t *Tracker) Check(ctx context.Context, userID string) (Snapshot, error) {
	unlock, err := t.lock(userID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()
	q, plan, err := t.current(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if !CanProceed(q, plan) {
		return t.snapshot(q, plan), t.exceeded(q, plan)
	}
	return t.snapshot(q, plan), nil
}

// Record counts one successful call.
func (t *Tracker) Record(ctx context.Context, userID string) (Snapshot, error) {
	unlock, err := t.lock(userID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()
	return t.record(ctx, userID)
}

// Guard runs fn as one metered call: it checks the quota, runs fn and records usage
// only when fn succeeds. The user stays locked for the whole call so concurrent
// calls cannot overshoot the limit.
func (t *Tracker) Guard(ctx context.Context, userID string, fn func(ctx context.Context) error) (Snapshot, error) {
	unlock, err := t.lock(userID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	q, plan, err := t.current(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if !CanProceed(q, plan) {
		return t.snapshot(q, plan), t.exceeded(q, plan)
	}
	if err := fn(ctx); err != nil {
		return t.snapshot(q, plan), err
	}
	if err := ctx.Err(); err != nil {
		return t.snapshot(q, plan), err
	}
	return t.record(ctx, userID)
}

// Snapshot returns the current quota, applying a pending monthly reset.
func (t *Tracker) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	unlock, err := t.lock(userID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()
	q, plan, err := t.current(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	return t.snapshot(q, plan), nil
}

// SetPlan moves userID to planID. The usage counter is kept.
func (t *Tracker) SetPlan(ctx context.Context, userID string, planID models.PlanID) (Snapshot, error) {
	plan, ok := t.plans[planID]
	if !ok {
		return Snapshot{}, models.NewValidationError("plan", "unknown plan %q", planID)
	}
	unlock, err := t.lock(userID)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()
	q, _, err := t.current(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	q.Plan = planID
	if err := t.save(ctx, q); err != nil {
		return Snapshot{}, err
	}
	t.logger.Info("plan changed", zap.String("user_id", userID), zap.String("plan", string(planID)))
	return t.snapshot(q, plan), nil
}

func (t *Tracker) lock(userID string) (func(), error) {
	if strings.TrimSpace(userID) == "" {
		return nil, models.NewValidationError("user_id", "must not be blank")
	}
	return t.locks.Lock(userID), nil
}

func (t *Tracker) record(ctx context.Context, userID string) (Snapshot, error) {
	q, plan, err := t.current(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	next, ok := RecordUsage(q, plan)
	if !ok {
		return t.snapshot(q, plan), t.exceeded(q, plan)
	}
	if next != q {
		if err := t.save(ctx, next); err != nil {
			return Snapshot{}, err
		}
	}
	t.logger.Debug("usage recorded", zap.String("user_id", userID), zap.Int("count", next.Count))
	return t.snapshot(next, plan), nil
}

// current loads the quota of userID and persists a monthly reset when one is due.
func (t *Tracker) current(ctx context.Context, userID string) (models.UsageQuota, models.Plan, error) {
	q, err := t.load(ctx, userID)
	if err != nil {
		return models.UsageQuota{}, models.Plan{}, err
	}
	plan, ok := t.plans[q.Plan]
	if !ok {
		t.logger.Warn("stored plan not in catalog, using default",
			zap.String("user_id", userID), zap.String("plan", string(q.Plan)))
		q.Plan = t.defaultPlan
		plan = t.plans[t.defaultPlan]
	}
	q, reset := CheckAndMaybeReset(q, t.now(), t.loc)
	if reset {
		if err := t.save(ctx, q); err != nil {
			return models.UsageQuota{}, models.Plan{}, err
		}
		t.logger.Info("usage window reset", zap.String("user_id", userID), zap.String("plan", string(q.Plan)))
	}
	return q, plan, nil
}

func (t *Tracker) load(ctx context.Context, userID string) (models.UsageQuota, error) {
	key := Key(userID)
	data, err := t.kv.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return models.UsageQuota{UserID: userID, Plan: t.defaultPlan}, nil
	}
	if err != nil {
		return models.UsageQuota{}, models.NewStorageError("get", key, err)
	}
	var q models.UsageQuota
	if err := json.Unmarshal(data, &q); err != nil {
		return models.UsageQuota{}, models.NewStorageError("decode", key, err)
	}
	q.UserID = userID
	return q, nil
}

func (t *Tracker) save(ctx context.Context, q models.UsageQuota) error {
	key := Key(q.UserID)
	data, err := json.Marshal(q)
	if err != nil {
		return models.NewStorageError("encode", key, err)
	}
	if err := t.kv.Set(ctx, key, data); err != nil {
		t.logger.Error("quota write failed", zap.String("user_id", q.UserID), zap.Error(err))
		return models.NewStorageError("set", key, err)
	}
	return nil
}

func (t *Tracker) snapshot(q models.UsageQuota, plan models.Plan) Snapshot {
	remaining := Remaining(q, plan)
	if plan.IsUnlimited() {
		remaining = models.Unlimited
	}
	return Snapshot{
		UserID:      q.UserID,
		Plan:        plan,
		Count:       q.Count,
		Remaining:   remaining,
		Unlimited:   plan.IsUnlimited(),
		State:       StateOf(q, plan),
		WindowStart: WindowStart(q).In(t.loc),
		ResetsAt:    NextReset(q, t.loc),
	}
}

func (t *Tracker) exceeded(q models.UsageQuota, plan models.Plan) error {
	t.logger.Info("quota exceeded", zap.String("user_id", q.UserID), zap.String("plan", string(plan.ID)))
	return &models.QuotaExceededError{
		UserID:   q.UserID,
		Plan:     plan.ID,
		Limit:    plan.MonthlyLimit,
		ResetsAt: NextReset(q, t.loc),
	}
}
