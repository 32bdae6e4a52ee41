// Package foodday maps wall-clock instants onto logical food days whose boundary
// sits at a fixed hour after midnight.
package foodday

import (
	"strings"
	"time"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
)

// DefaultBoundaryHour attributes anything eaten before 04:00 to the previous day.
const DefaultBoundaryHour = 4

// ResolveFoodDay returns the food-day key of instant, evaluated in the instant's own
// location. Instants strictly before boundaryHour:00 belong to the previous calendar day.
func ResolveFoodDay(instant time.Time, boundaryHour int) string {
	y, m, d := instant.Date()
	day := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	if instant.Hour() < boundaryHour {
		day = day.AddDate(0, 0, -1)
	}
	return day.Format(models.DateLayout)
}

// Resolver binds the boundary hour, the user's location and a clock.
type Resolver struct {
	boundaryHour int
	loc          *time.Location
	now          func() time.Time
}

// NewResolver validates the boundary and returns a resolver. A nil location means UTC
// and a nil clock means time.Now.
func NewResolver(boundaryHour int, loc *time.Location, now func() time.Time) (*Resolver, error) {
	if boundaryHour < 0 || boundaryHour > 23 {
		return nil, models.NewValidationError("boundary_hour", "must be within 0..23, got %d", boundaryHour)
	}
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{boundaryHour: boundaryHour, loc: loc, now: now}, nil
}

// BoundaryHour returns the configured boundary.
func (r *Resolver) BoundaryHour() int { return r.boundaryHour }

// Location returns the location food days are evaluated in.
func (r *Resolver) Location() *time.Location { return r.loc }

// Now returns the resolver clock's current instant in the resolver's location.
func (r *Resolver) Now() time.Time { return r.now().In(r.loc) }

// Resolve returns the food day of instant after converting it to the resolver's location.
func (r *Resolver) Resolve(instant time.Time) string {
	return ResolveFoodDay(instant.In(r.loc), r.boundaryHour)
}

// Today returns the current food day.
func (r *Resolver) Today() string {
	return r.Resolve(r.now())
}

// ShouldReset reports whether the stored day marker is absent or stale.
func (r *Resolver) ShouldReset(lastStoredDayKey string) bool {
	if strings.TrimSpace(lastStoredDayKey) == "" {
		return true
	}
	return lastStoredDayKey != r.Today()
}

// Start returns the instant the given food day begins in the resolver's location.
func (r *Resolver) Start(dayKey string) (time.Time, error) {
	day, err := ParseDay(dayKey)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, r.boundaryHour, 0, 0, 0, r.loc), nil
}

// ParseDay parses a food-day key.
func ParseDay(dayKey string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(dayKey))
	if err != nil {
		return time.Time{}, models.NewValidationError("day", "invalid day %q (expected YYYY-MM-DD)", dayKey)
	}
	return t, nil
}

// ValidDay reports whether dayKey is a well-formed food-day key.
func ValidDay(dayKey string) bool {
	_, err := ParseDay(dayKey)
	return err == nil
}

// AddDays shifts a day key by n calendar days.
func AddDays(dayKey string, n int) (string, error) {
	day, err := ParseDay(dayKey)
	if err != nil {
		return "", err
	}
	return day.AddDate(0, 0, n).Format(models.DateLayout), nil
}

// DaysBetween returns the number of calendar days from one key to another.
func DaysBetween(from, to string) (int, error) {
	start, err := ParseDay(from)
	if err != nil {
		return 0, err
	}
	end, err := ParseDay(to)
	if err != nil {
		return 0, err
	}
	return int(end.Sub(start).Hours() / 24), nil
}

// MondayOf returns the Monday that starts the week containing dayKey.
func MondayOf(dayKey string) (string, error) {
	day, err := ParseDay(dayKey)
	if err != nil {
		return "", err
	}
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset).Format(models.DateLayout), nil
}
