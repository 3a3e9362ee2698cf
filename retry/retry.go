// Package retry runs an operation a bounded number of times with a fixed
// pause and a recovery step between attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds the attempts of an operation
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Sleep waits between attempts; tests replace it to avoid waiting.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is three attempts ten seconds apart
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 10 * time.Second}
}

// ExhaustedError is returned when every attempt failed
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do calls fn until it succeeds or MaxAttempts is reached. Attempts are
// numbered from 1. Before each retry, recovery is called (when non-nil)
// with the number of the attempt that just failed. Recovery errors are
// ignored. Context cancellation stops the loop immediately.
func Do(ctx context.Context, p Policy, fn func(attempt int) error, recovery func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = fn(attempt)
		if last == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return err
		}
		if recovery != nil {
			_ = recovery(attempt)
		}
	}
	return &ExhaustedError{Attempts: attempts, Last: last}
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
