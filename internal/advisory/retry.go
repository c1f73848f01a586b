package advisory

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// #region constants
const (
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
)

// #endregion constants

// #region retry
// retrying re-issues failed calls with exponential backoff.
type retrying struct {
	next     Advisor
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps next so a failed call is retried up to attempts times in
// total, waiting backoff·2^n before retry n+1. Context cancellation and
// Permanent errors stop immediately.
func WithRetry(next Advisor, attempts int, backoff time.Duration, logger *zap.Logger) Advisor {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if backoff < 0 {
		backoff = DefaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retrying{next: next, attempts: attempts, backoff: backoff, logger: logger, sleep: sleepCtx}
}

func (r *retrying) Advise(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			wait := r.backoff << (attempt - 1)
			if err := r.sleep(ctx, wait); err != nil {
				return "", errors.Join(lastErr, err)
			}
		}
		text, err := r.next.Advise(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || IsPermanent(err) {
			return "", err
		}
		r.logger.Warn("advisory attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.attempts),
			zap.Error(err))
	}
	return "", lastErr
}

func (r *retrying) Close() error { return r.next.Close() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion retry
