// Package retry runs an operation under a bounded attempt budget with backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy parameterizes Do. The zero value makes a single attempt.
type Policy struct {
	// MaxAttempts is the total number of attempts, first one included.
	MaxAttempts int
	// Backoff returns the delay after the failed attempt with the given 0-based index.
	Backoff func(attempt int) time.Duration
	// Retryable decides whether an error may be retried. Nil retries everything.
	Retryable func(err error) bool
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Exponential returns base * 2^attempt.
func Exponential(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		return base << uint(attempt)
	}
}

// Default is three attempts with 1s, 2s waits.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     Exponential(time.Second),
	}
}

// Do calls op until it succeeds, returns a non-retryable error, the attempt
// budget is spent or ctx is done. It returns the number of attempts made.
// Exhaustion is reported as *ExhaustedError wrapping the last failure.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return attempt, err
			}
			return attempt, errors.Join(err, lastErr)
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return attempt + 1, nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return attempt + 1, lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, lastErr)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return attempt + 1, errors.Join(err, lastErr)
		}
	}

	return maxAttempts, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
