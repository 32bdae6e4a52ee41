// Package app wires configuration, storage and services for the server and the CLI.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/config"
	"github.com/mamadbah2/nutritrack/internal/repository"
	"github.com/mamadbah2/nutritrack/internal/repository/backend"
	"github.com/mamadbah2/nutritrack/internal/repository/sheets"
	"github.com/mamadbah2/nutritrack/internal/service/analysis"
	"github.com/mamadbah2/nutritrack/internal/service/foodday"
	"github.com/mamadbah2/nutritrack/internal/service/messaging"
	"github.com/mamadbah2/nutritrack/internal/service/profile"
	"github.com/mamadbah2/nutritrack/internal/service/quota"
	"github.com/mamadbah2/nutritrack/internal/service/records"
	"github.com/mamadbah2/nutritrack/internal/service/reporting"
	"github.com/mamadbah2/nutritrack/internal/service/targets"
	"github.com/mamadbah2/nutritrack/pkg/clients/anthropic"
	"github.com/mamadbah2/nutritrack/pkg/clients/whatsapp"
)

// App holds the wired services. Messaging is nil unless WhatsApp is configured.
type App struct {
	Config     *config.Config
	Store      repository.Store
	Resolver   *foodday.Resolver
	Calculator *targets.Calculator
	Records    *records.Store
	Profiles   *profile.Service
	Quota      *quota.Tracker
	Analysis   *analysis.Service
	Sessions   *analysis.Sessions
	Reports    *reporting.Service
	Messaging  *messaging.Service
	Now        func() time.Time

	logger *zap.Logger
}

// New opens the configured store and builds every service on top of it. A nil now
// means time.Now.
func New(ctx context.Context, cfg *config.Config, now func() time.Time, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}

	store, err := backend.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("store opened", zap.String("backend", cfg.Store.Backend))

	resolver, err := foodday.NewResolver(cfg.Tracking.BoundaryHour, cfg.Tracking.Location, now)
	if err != nil {
		_ = backend.Close(ctx, store)
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Store:      store,
		Resolver:   resolver,
		Calculator: targets.NewCalculator(cfg.Targets, now),
		Now:        now,
		logger:     logger,
	}
	a.Records = records.NewStore(store, resolver, logger.Named("svc.records"))
	a.Profiles = profile.NewService(store, a.Calculator, now, logger.Named("svc.profile"))
	a.Quota = quota.NewTracker(store, cfg.Plans, cfg.Tracking.DefaultPlan, cfg.Tracking.Location, now, logger.Named("svc.quota"))

	var analyzer analysis.Analyzer
	if cfg.AI.Enabled() {
		analyzer = anthropic.NewClient(cfg.AI.AnthropicKey,
			anthropic.WithBaseURL(cfg.AI.BaseURL),
			anthropic.WithModel(cfg.AI.Model),
			anthropic.WithLogger(logger.Named("client.anthropic")),
		)
		logger.Info("anthropic ai client enabled", zap.String("model", cfg.AI.Model))
	} else {
		logger.Warn("anthropic api key missing, ai analysis disabled")
	}
	a.Analysis = analysis.NewService(analyzer, a.Quota, a.Records, now, logger.Named("svc.analysis"))
	a.Sessions = analysis.NewSessions(a.Analysis, analysis.DefaultMaxRetries, now, logger.Named("svc.sessions"))

	var exporter reporting.Exporter
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named("repo.sheets"))
		if err != nil {
			_ = backend.Close(ctx, store)
			return nil, err
		}
		exporter = sheets.NewSummaryExporter(sheetsRepo, cfg.Sheets.Range, logger.Named("svc.export"))
	}
	a.Reports = reporting.NewService(a.Records, a.Profiles, exporter, logger.Named("svc.reporting"))

	if cfg.WhatsApp.Enabled() {
		client := whatsapp.NewClient(cfg.WhatsApp, logger.Named("client.whatsapp"))
		a.Messaging = messaging.NewService(cfg.WhatsApp, client, a.Sessions, a.Analysis, a.Records, a.Reports, logger.Named("svc.messaging"))
		logger.Info("whatsapp messaging enabled", zap.String("api_version", cfg.WhatsApp.APIVersion))
	}

	return a, nil
}

// Close releases the store connection.
func (a *App) Close(ctx context.Context) error {
	if err := backend.Close(ctx, a.Store); err != nil {
		a.logger.Error("failed to close store", zap.Error(err))
		return err
	}
	return nil
}
