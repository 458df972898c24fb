package scheduler

import (
	"context"
	"log/slog"
	"time"

	"blog_sync/internal/domain"
)

// Syncer runs one reconciliation pass.
type Syncer interface {
	Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncSummary, error)
}

type Config struct {
	Interval   time.Duration
	RunTimeout time.Duration
	Force      bool
}

// Scheduler runs a sync at start and then on every tick. Runs never overlap.
type Scheduler struct {
	syncer Syncer
	cfg    Config
	logger *slog.Logger
}

func NewScheduler(syncer Syncer, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer: syncer,
		cfg:    cfg,
		logger: logger.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.cfg.Interval, "run_timeout", s.cfg.RunTimeout)

	s.runSync(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx := ctx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	summary, err := s.syncer.Sync(syncCtx, domain.SyncOptions{Force: s.cfg.Force})
	if err != nil {
		s.logger.Error("sync failed", "error", err)
		return
	}

	s.logger.Info("sync run finished",
		"no_op", summary.NoOp,
		"upserted", summary.Upserted,
		"failed", summary.Failed,
	)
}
