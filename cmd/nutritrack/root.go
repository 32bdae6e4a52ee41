package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/nutritrack/internal/app"
	"github.com/mamadbah2/nutritrack/internal/config"
	"github.com/mamadbah2/nutritrack/internal/service/records"
	"github.com/mamadbah2/nutritrack/pkg/logger"
)

// options are the persistent flags shared by every command.
type options struct {
	envFile string
	user    string
	verbose bool
	now     func() time.Time
}

func newRootCmd(now func() time.Time) *cobra.Command {
	opts := &options{now: now}

	root := &cobra.Command{
		Use:           "nutritrack",
		Short:         "nutritrack logs meals and tracks nutrition targets from your terminal",
		Long:          "nutritrack logs meals per food day, computes calorie and macro targets, and reports progress against them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to a .env file (default .env when present)")
	root.PersistentFlags().StringVarP(&opts.user, "user", "u", defaultUser(), "User ID the command acts on")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newTargetsCmd(opts),
		newLogCmd(opts),
		newDayCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newProgressCmd(opts),
		newReportCmd(opts),
		newQuotaCmd(opts),
		newVerifyCmd(opts),
	)
	return root
}

func defaultUser() string {
	if u := os.Getenv("NUTRITRACK_USER"); u != "" {
		return u
	}
	return "me"
}

// withApp loads configuration, opens the store and runs fn.
func withApp(ctx context.Context, opts *options, fn func(*app.App) error) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}
	log, err := logger.NewDevelopment(opts.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, opts.now, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()
	return fn(a)
}

// withUser is withApp scoped to the --user records view.
func withUser(ctx context.Context, opts *options, fn func(*app.App, *records.Store) error) error {
	return withApp(ctx, opts, func(a *app.App) error {
		store, err := a.Records.ForUser(opts.user)
		if err != nil {
			return err
		}
		return fn(a, store)
	})
}

func dayArg(a *app.App, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.Resolver.Today()
}
