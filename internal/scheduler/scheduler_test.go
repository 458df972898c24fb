package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog_sync/internal/domain"
)

type countingSyncer struct {
	mu        sync.Mutex
	calls     int
	opts      []domain.SyncOptions
	deadlines []bool
	err       error
}

func (c *countingSyncer) Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	c.opts = append(c.opts, opts)
	_, hasDeadline := ctx.Deadline()
	c.deadlines = append(c.deadlines, hasDeadline)

	if c.err != nil {
		return nil, c.err
	}
	return &domain.SyncSummary{Success: true, NoOp: true}, nil
}

func (c *countingSyncer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	syncer := &countingSyncer{}
	s := NewScheduler(syncer, Config{Interval: 20 * time.Millisecond, RunTimeout: time.Second, Force: true}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return syncer.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	assert.True(t, syncer.opts[0].Force)
	assert.True(t, syncer.deadlines[0])
}

func TestScheduler_KeepsRunningAfterFailure(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("source down")}
	s := NewScheduler(syncer, Config{Interval: 10 * time.Millisecond}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return syncer.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	assert.False(t, syncer.deadlines[0])
}
