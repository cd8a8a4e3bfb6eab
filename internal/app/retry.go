package app

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/tagship/internal/domain"
)

// Default retry configuration of the tap step.
const (
	DefaultRetryAttempts = 5
	DefaultRetryDelay    = 10 * time.Second
)

// Retry runs an operation up to Attempts times with a fixed Delay between
// attempts.
type Retry struct {
	Attempts int
	Delay    time.Duration

	// sleep is overridden in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetry returns a Retry. Attempts below 1 are raised to 1.
func NewRetry(attempts int, delay time.Duration) Retry {
	if attempts < 1 {
		attempts = 1
	}
	return Retry{Attempts: attempts, Delay: delay}
}

// Do calls fn until it returns nil or the attempts are used up, and returns
// the number of attempts made. fn receives the 1-based attempt number.
//
// When every attempt failed the error wraps domain.ErrRetriesExhausted and
// the last failure. Cancellation during the delay stops the loop early with
// the context error.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if last = fn(ctx, attempt); last == nil {
			return attempt, nil
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, r.Delay); err != nil {
			return attempt, fmt.Errorf("retry canceled after %d attempts: %w", attempt, err)
		}
	}
	return attempts, fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, attempts, last)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
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
