package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"blog_sync/internal/domain"
)

// Policy is a fixed-delay retry policy.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Retryable reports whether err is worth another attempt. Only failures
// marked with domain.ErrTransient are retried.
func Retryable(err error) bool {
	return errors.Is(err, domain.ErrTransient)
}

// Do runs op until it succeeds, fails permanently or the attempts are used
// up. The last error is returned wrapped with the attempt count.
func Do(ctx context.Context, policy Policy, logger *slog.Logger, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, policy, logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, policy Policy, logger *slog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	calls := 0
	operation := func() (T, error) {
		calls++
		value, err := op(ctx)
		if err != nil && !Retryable(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}

	notify := func(err error, next time.Duration) {
		if logger == nil {
			return
		}
		logger.Warn("operation failed, retrying",
			"attempt", calls,
			"max_attempts", attempts,
			"delay", next,
			"error", err,
		)
	}

	value, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(policy.Delay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}

		var zero T
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}
		return zero, fmt.Errorf("after %d attempts: %w", calls, err)
	}
	return value, nil
}
