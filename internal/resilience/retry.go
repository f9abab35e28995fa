package resilience

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior with exponential backoff. A single policy is
// shared by every API source; rate-limit reset hints flow through it rather
// than being handled inline at call sites.
type Policy struct {
	// MaxRetries is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxRetries int

	// BaseDelay is the delay before the first retry. Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps both the computed backoff and any server-provided
	// retry-after hint. Default: 60s.
	MaxDelay time.Duration

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the retry policy used for API ingestion.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 60 * time.Second
	}
	return p
}

// Backoff returns the delay after failed attempt number attempt (1-based):
// BaseDelay doubled per attempt, capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do executes fn against endpoint with retries per the policy. Every returned
// error is an *APIError; errors already classified pass through Classify
// untouched. Auth and unexpected failures end the loop on the first attempt.
// Context cancellation stops retries immediately.
func Do(ctx context.Context, p Policy, endpoint string, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, endpoint, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for operations returning a value.
func DoVal[T any](ctx context.Context, p Policy, endpoint string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr *APIError
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = Classify(err, endpoint)

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !lastErr.Retryable() {
			return zero, lastErr
		}
		if attempt == p.MaxRetries {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}

		delay := p.Backoff(attempt)
		if ra := retryAfterHint(lastErr); ra > delay {
			delay = ra
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr.terminal(p.MaxRetries)
}

// retryAfterHint extracts a server-provided reset delay, if any.
func retryAfterHint(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
