package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/config"
	"github.com/mamadbah2/nutritrack/internal/service/foodday"
	"github.com/mamadbah2/nutritrack/internal/service/records"
	"github.com/mamadbah2/nutritrack/internal/service/reporting"
)

const jobTimeout = 2 * time.Minute

// ErrDigestDisabled is returned by RunDigest when no digest sender is configured.
var ErrDigestDisabled = errors.New("weekly digest is not configured")

// DigestSender pushes the weekly report of the week containing day to users.
type DigestSender interface {
	SendWeeklyDigests(ctx context.Context, day string) (int, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron         *cron.Cron
	records      *records.Store
	reportingSvc *reporting.Service
	digest       DigestSender
	cfg          config.Config
	logger       *zap.Logger
}

// NewScheduler creates a new scheduler instance. Schedules are evaluated in the
// tracking location so the rollover job fires at the food-day boundary.
func NewScheduler(cfg config.Config, store *records.Store, reportingSvc *reporting.Service, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := cfg.Tracking.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		cron:         cron.New(cron.WithLocation(loc)),
		records:      store,
		reportingSvc: reportingSvc,
		cfg:          cfg,
		logger:       logger,
	}
}

// WithDigest enables the weekly digest job.
func (s *Scheduler) WithDigest(d DigestSender) *Scheduler {
	s.digest = d
	return s
}

// RolloverSpec is the cron expression of the rollover job.
func RolloverSpec(boundaryHour int) string {
	return fmt.Sprintf("0 %d * * *", boundaryHour)
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")

	if _, err := s.cron.AddFunc(s.cfg.Scheduler.PurgeCron, s.job("purge", s.RunPurge)); err != nil {
		s.logger.Error("failed to schedule retention purge", zap.String("spec", s.cfg.Scheduler.PurgeCron), zap.Error(err))
	}

	if s.cfg.Sheets.Enabled() {
		if _, err := s.cron.AddFunc(s.cfg.Scheduler.ExportCron, s.job("export", s.RunExport)); err != nil {
			s.logger.Error("failed to schedule summary export", zap.String("spec", s.cfg.Scheduler.ExportCron), zap.Error(err))
		}
	}

	if s.digest != nil {
		if _, err := s.cron.AddFunc(s.cfg.Scheduler.DigestCron, s.job("digest", s.RunDigest)); err != nil {
			s.logger.Error("failed to schedule weekly digest", zap.String("spec", s.cfg.Scheduler.DigestCron), zap.Error(err))
		}
	}

	spec := RolloverSpec(s.cfg.Tracking.BoundaryHour)
	if _, err := s.cron.AddFunc(spec, s.job("rollover", s.RunRollover)); err != nil {
		s.logger.Error("failed to schedule day rollover", zap.String("spec", spec), zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) job(name string, run func(ctx context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		started := time.Now()
		n, err := run(ctx)
		if err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Int("processed", n), zap.Error(err))
			return
		}
		s.logger.Info("scheduled job finished", zap.String("job", name), zap.Int("processed", n), zap.Duration("took", time.Since(started)))
	}
}

// RunPurge deletes records and summaries older than the retention window and
// returns how many entries were removed.
func (s *Scheduler) RunPurge(ctx context.Context) (int, error) {
	cutoff, err := foodday.AddDays(s.records.Resolver().Today(), -s.cfg.Tracking.RetentionDays)
	if err != nil {
		return 0, err
	}
	return s.records.PurgeBefore(ctx, cutoff)
}

// RunExport exports the previous food day of every user.
func (s *Scheduler) RunExport(ctx context.Context) (int, error) {
	if s.reportingSvc == nil {
		return 0, reporting.ErrExportDisabled
	}
	yesterday, err := foodday.AddDays(s.records.Resolver().Today(), -1)
	if err != nil {
		return 0, err
	}
	return s.reportingSvc.ExportAll(ctx, yesterday)
}

// RunDigest sends the digest of the current food day's week.
func (s *Scheduler) RunDigest(ctx context.Context) (int, error) {
	if s.digest == nil {
		return 0, ErrDigestDisabled
	}
	return s.digest.SendWeeklyDigests(ctx, s.records.Resolver().Today())
}

// RunRollover performs the day reset for every known user and returns how many
// users were reset.
func (s *Scheduler) RunRollover(ctx context.Context) (int, error) {
	users, err := s.records.Users(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	reset := 0
	for _, userID := range users {
		store, err := s.records.ForUser(userID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		done, err := store.PerformResetIfNeeded(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("rollover %s: %w", userID, err))
			continue
		}
		if done {
			reset++
		}
	}
	return reset, errors.Join(errs...)
}
