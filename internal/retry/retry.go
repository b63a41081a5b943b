// Package retry provides a bounded retry policy with exponential backoff,
// shared by the price feed and claim confirmation paths. Every loop has a
// fixed attempt budget and per-attempt timeout, so callers always terminate.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, minimum 1.
	MaxAttempts int
	// Timeout bounds each attempt; zero means no per-attempt bound.
	Timeout time.Duration
	// Delay is the wait before the second attempt.
	Delay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
	// BackoffMult multiplies the delay after each failed attempt.
	BackoffMult float64
}

// permanentError marks an error as terminal: retrying cannot help.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so Do stops retrying immediately and returns
// the underlying error. Used for user cancellation and explicit on-chain
// program rejections.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn up to MaxAttempts times. Each attempt receives a context
// bounded by Timeout. Returns nil on the first success, the underlying
// error immediately for Permanent errors or a cancelled parent context,
// and the last attempt's error once the budget is exhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.Delay
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			if p.BackoffMult > 1 {
				delay = time.Duration(float64(delay) * p.BackoffMult)
			}
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		err := p.runOnce(ctx, fn)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
	}

	return fmt.Errorf("max attempts exceeded: %w", lastErr)
}

func (p Policy) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(attemptCtx)
}
