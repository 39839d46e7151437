// Package retry provides exponential-backoff retry logic for transient
// errors on short-lived remote calls (identity lookup, one-shot HTTP
// requests).  Long-running job polling deliberately does not use this
// package: the poll loop has its own fixed-interval schedule.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Policy controls the retry behaviour of Do.
type Policy struct {
	// Attempts is the total number of attempts, including the first.
	// Zero or negative means a single attempt (no retries).
	Attempts int
	// BaseDelay is the wait before the second attempt; each subsequent
	// delay doubles until MaxDelay is reached.
	BaseDelay time.Duration
	// MaxDelay caps the per-attempt wait.  Zero means no cap.
	MaxDelay time.Duration
	// Retryable optionally classifies errors.  When nil every non-nil
	// error is retried.
	Retryable func(err error) bool
}

const (
	defaultBaseDelay = 250 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
)

// Do calls fn until it succeeds, the policy is exhausted, or ctx is
// cancelled.  The error from the final attempt is returned; a context
// cancellation is joined onto it so callers can test for both.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(lastErr, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}

		if attempt < p.Attempts {
			slog.Debug("retry: attempt failed",
				"attempt", attempt, "of", p.Attempts,
				"err", lastErr, "next_delay", delay)

			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(delay):
			}

			delay *= 2
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
	}

	return lastErr
}
