package reader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xmhha/usage-monitor/pkg/parser"
)

// backoff doubles the wait after each failed attempt, starting at base.
type backoff struct {
	base     time.Duration
	attempts int
}

// wait returns the pause before retry n (1-indexed).
func (b backoff) wait(n int) time.Duration {
	return b.base << (n - 1) // nolint:gosec // n is bounded by attempts
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// permanent reports whether a failed read cannot succeed by waiting.
// A missing log is retried because Claude Code may be about to create it.
func permanent(err error) bool {
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrInvalidOffset) ||
		errors.Is(err, parser.ErrFileTooLarge) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// tail reads path from offset, retrying transient failures.
func (r *reader) tail(ctx context.Context, path string, offset int64) ([]parser.Record, int64, error) {
	var err error

	for n := 0; n <= r.retry.attempts; n++ {
		if n > 0 {
			pause := r.retry.wait(n)
			r.logger.Debug("retrying session log", "path", path, "attempt", n, "pause", pause)
			if sleepErr := sleep(ctx, pause); sleepErr != nil {
				return nil, offset, sleepErr
			}
		}

		var (
			records []parser.Record
			next    int64
		)
		records, next, err = r.readSince(ctx, path, offset)
		if err == nil {
			return records, next, nil
		}
		if permanent(err) {
			return nil, offset, err
		}
		r.logger.Warn("session log read failed", "path", path, "attempt", n, "error", err)
	}

	return nil, offset, fmt.Errorf("gave up after %d retries: %w", r.retry.attempts, err)
}
