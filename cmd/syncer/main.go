package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"blog_sync/internal/config"
	"blog_sync/internal/domain"
	"blog_sync/internal/scheduler"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "syncer",
		Short:         "Sync blog articles into Postgres and translate them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(newRunCmd(), newScheduleCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single sync and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				opts := domain.SyncOptions{Force: force || a.cfg.Sync.Force}
				return runOnce(ctx, a.sync, opts, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "process every article regardless of its update time")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Sync on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				a.serveMetrics(ctx)

				sched := scheduler.NewScheduler(a.sync, scheduler.Config{
					Interval:   a.cfg.Sync.Interval,
					RunTimeout: a.cfg.Sync.RunTimeout,
					Force:      a.cfg.Sync.Force,
				}, a.logger)

				a.logger.Info("starting blog syncer",
					"interval", a.cfg.Sync.Interval,
					"languages", a.cfg.Translation.TargetLanguages,
					"provider", a.cfg.LLM.ActiveProvider,
				)

				if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("scheduler: %w", err)
				}
				return nil
			})
		},
	}
}

// runOnce runs one sync and prints its summary, including the summary of a
// run that failed as a whole.
func runOnce(ctx context.Context, syncer scheduler.Syncer, opts domain.SyncOptions, w io.Writer) error {
	summary, syncErr := syncer.Sync(ctx, opts)
	if summary != nil {
		if err := writeSummary(w, summary); err != nil {
			return err
		}
	}
	if syncErr != nil {
		return syncErr
	}
	if summary != nil && !summary.Success {
		return fmt.Errorf("sync failed: %s", summary.Error)
	}
	return nil
}

// writeSummary prints the run summary as indented JSON.
func writeSummary(w io.Writer, summary *domain.SyncSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// withApp loads the config, wires the components and runs fn with a context
// that is cancelled on SIGINT or SIGTERM.
func withApp(parent context.Context, fn func(ctx context.Context, a *app) error) error {
	logger := setupLogger("info")

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}
	logger = setupLogger(cfg.LogLevel)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to release resources", "error", err)
		}
	}()

	if err := fn(ctx, a); err != nil {
		logger.Error("command failed", "error", err)
		return err
	}
	return nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}
