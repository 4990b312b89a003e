package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted marks an operation that failed on every allowed attempt.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds a retried operation. Delay is fixed between attempts.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// ShouldRetry filters errors; nil retries every error.
	ShouldRetry func(error) bool
}

// Default is 3 attempts one second apart.
var Default = Policy{MaxAttempts: 3, Delay: time.Second}

type exhaustedError struct {
	attempts int
	last     error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrExhausted, e.attempts, e.last)
}

func (e *exhaustedError) Unwrap() []error { return []error{ErrExhausted, e.last} }

// Do runs op until it succeeds, returns a non-retryable error, ctx is done or
// the attempts run out. attempt is 1-based.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.ShouldRetry != nil && !p.ShouldRetry(err) {
			return err
		}

		if attempt < attempts {
			if err := sleep(ctx, p.Delay); err != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
		}
	}

	return &exhaustedError{attempts: attempts, last: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
