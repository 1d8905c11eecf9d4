// Package retry implements bounded retry with exponential backoff,
// used for RPC polling and transient network failures.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy controls how an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, counting the first one.
	Attempts int
	// Backoff is the delay before the first retry.
	Backoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// Factor scales the delay after each retry.
	Factor float64
}

// DefaultPolicy suits short RPC calls.
var DefaultPolicy = Policy{
	Attempts:   3,
	Backoff:    100 * time.Millisecond,
	MaxBackoff: 5 * time.Second,
	Factor:     2.0,
}

// Retryable reports whether an error is worth retrying. Returning false
// stops the loop and surfaces the error immediately.
type Retryable func(error) bool

// Always retries every error until attempts are exhausted.
func Always(error) bool { return true }

// Do runs fn under the policy, backing off between failures. Context
// cancellation aborts the loop both before an attempt and mid-backoff.
func Do[T any](ctx context.Context, p Policy, retryable Retryable, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := p.Backoff

	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}

		if attempt == p.Attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * p.Factor)
			if delay > p.MaxBackoff {
				delay = p.MaxBackoff
			}
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("retries exhausted after %d attempts: %w", p.Attempts, lastErr)
}
