// Package quota meters AI analysis calls per user over calendar-month windows.
package quota

import (
	"math"
	"time"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
)

// State is the position of a user relative to the plan limit.
type State string

const (
	WithinLimit State = "within_limit"
	AtLimit     State = "at_limit"
)

// WindowStart returns the instant of the last reset.
func WindowStart(q models.UsageQuota) time.Time {
	return time.UnixMilli(q.LastResetMillis)
}

// CheckAndMaybeReset opens a fresh window when q has never been reset or its last
// reset lies in another calendar month (year and month in loc) than now. It reports
// whether a reset happened.
func CheckAndMaybeReset(q models.UsageQuota, now time.Time, loc *time.Location) (models.UsageQuota, bool) {
	if loc == nil {
		loc = time.UTC
	}
	if q.LastResetMillis > 0 {
		last := WindowStart(q).In(loc)
		current := now.In(loc)
		if last.Year() == current.Year() && last.Month() == current.Month() {
			return q, false
		}
	}
	q.Count = 0
	q.LastResetMillis = now.UnixMilli()
	return q, true
}

// CanProceed reports whether another metered call fits the plan. Unlimited plans
// always proceed.
func CanProceed(q models.UsageQuota, plan models.Plan) bool {
	if plan.IsUnlimited() {
		return true
	}
	return q.Count < plan.MonthlyLimit
}

// RecordUsage counts one successful call. It refuses, leaving q unchanged, when the
// plan does not allow it. Unlimited plans never touch the counter.
func RecordUsage(q models.UsageQuota, plan models.Plan) (models.UsageQuota, bool) {
	if plan.IsUnlimited() {
		return q, true
	}
	if !CanProceed(q, plan) {
		return q, false
	}
	q.Count++
	return q, true
}

// Remaining returns the calls left in the window, never negative. Unlimited plans
// report math.MaxInt.
func Remaining(q models.UsageQuota, plan models.Plan) int {
	if plan.IsUnlimited() {
		return math.MaxInt
	}
	return max(0, plan.MonthlyLimit-q.Count)
}

// StateOf classifies q against plan.
func StateOf(q models.UsageQuota, plan models.Plan) State {
	if CanProceed(q, plan) {
		return WithinLimit
	}
	return AtLimit
}

// NextReset returns the first instant of the month after the window start, in loc.
func NextReset(q models.UsageQuota, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	start := WindowStart(q).In(loc)
	return time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, loc)
}
