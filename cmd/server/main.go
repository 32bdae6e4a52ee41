package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/app"
	"github.com/mamadbah2/nutritrack/internal/config"
	"github.com/mamadbah2/nutritrack/internal/scheduler"
	"github.com/mamadbah2/nutritrack/internal/server/handlers"
	"github.com/mamadbah2/nutritrack/internal/server/router"
	"github.com/mamadbah2/nutritrack/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("NUTRITRACK_ENV_FILE"))
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(startCtx, cfg, time.Now, baseLogger)
	cancelStart()
	if err != nil {
		baseLogger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Close(closeCtx)
	}()

	handler := handlers.NewHandler(handlers.Services{
		Records:  application.Records,
		Profiles: application.Profiles,
		Quota:    application.Quota,
		Analysis: application.Analysis,
		Sessions: application.Sessions,
		Reports:  application.Reports,
		Now:      application.Now,
	}, baseLogger.Named("handlers"))
	sched := scheduler.NewScheduler(*cfg, application.Records, application.Reports, baseLogger.Named("scheduler"))

	var webhook *handlers.WebhookHandler
	if application.Messaging != nil {
		webhook = handlers.NewWebhookHandler(application.Messaging, baseLogger.Named("webhook"))
		sched.WithDigest(application.Messaging)
	}
	engine := router.New(handler, webhook, baseLogger.Named("router"))

	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("timezone", cfg.Tracking.Timezone),
			zap.Int("day_boundary_hour", cfg.Tracking.BoundaryHour))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
