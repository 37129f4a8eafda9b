// Package retry provides a single reusable retry-with-backoff policy
// for external collaborator calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrMaxAttempts indicates that all retry attempts have been exhausted.
var ErrMaxAttempts = errors.New("max attempts exceeded")

// Policy configures retry behavior. Zero values fall back to defaults.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Do executes the operation under the policy, backing off between
// attempts. Context cancellation wins over the backoff sleep.
func Do(ctx context.Context, p Policy, operation func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}

	delay := p.InitialDelay
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if attempt == p.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxAttempts, p.MaxAttempts, err)
		}

		slog.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * p.Multiplier)
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
	}

	return ErrMaxAttempts
}
