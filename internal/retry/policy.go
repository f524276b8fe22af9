// Package retry provides a single exponential backoff policy shared by every
// remote lookup (exchange search, web search, market-data API).
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
)

// ErrNotRetryable wraps the error returned by Do when the Retryable predicate rejected it.
var ErrNotRetryable = errors.New("not retryable")

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy retries an operation with delays of BaseDelay * 2^attempt.
type Policy struct {
	Name        string // Used in log lines only
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(err error) bool // nil retries every error
	Sleep       SleepFunc            // nil uses a context-aware timer
	Logger      arbor.ILogger
}

// Delay returns the backoff applied after the given zero-based attempt fails.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// Do runs fn until it succeeds, returns a non-retryable error, or MaxAttempts is reached.
// There is no sleep after the final attempt.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return fmt.Errorf("%w: %w", ErrNotRetryable, err)
		}

		if ctx.Err() != nil {
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		}

		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		if p.Logger != nil {
			p.Logger.Warn().
				Err(err).
				Str("operation", p.Name).
				Int("attempt", attempt+1).
				Int("max_attempts", attempts).
				Dur("backoff", delay).
				Msg("Remote call failed, backing off")
		}

		if err := p.sleep(ctx, delay); err != nil {
			return fmt.Errorf("context cancelled during backoff: %w", err)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", p.Name, attempts, lastErr)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsNotRetryable reports whether Do gave up because the predicate rejected the error.
func IsNotRetryable(err error) bool {
	return errors.Is(err, ErrNotRetryable)
}
