// Package retry runs a call repeatedly under an exponential backoff policy.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

// Policy bounds how often and how slowly a call is retried.
type Policy struct {
	MaxAttempts int // total calls, including the first
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2.0,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = time.Duration(math.MaxInt64)
	}
	return p
}

// Delay returns the wait before retry number attempt (1-based): BaseDelay *
// Multiplier^(attempt-1), capped at MaxDelay. It never decreases with attempt.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		return 0
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d >= float64(p.MaxDelay) || math.IsInf(d, 1) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// ExhaustedError is returned once every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

type options struct {
	onRetry func(attempt int, err error, delay time.Duration)
	sleep   func(ctx context.Context, d time.Duration) error
}

type Option func(*options)

// WithOnRetry registers a callback invoked before each wait.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(o *options) { o.onRetry = fn }
}

// WithSleep replaces the wait between attempts, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

// Do calls fn until it succeeds, returns an error rejected by retryable, or
// the policy runs out of attempts.
func Do[T any](ctx context.Context, policy Policy, retryable func(error) bool, fn func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	policy = policy.normalized()
	o := options{sleep: sleepContext}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := policy.Delay(attempt - 1)
			log.WithFields(log.Fields{
				"attempt":      attempt,
				"max_attempts": policy.MaxAttempts,
				"delay":        delay.String(),
			}).WithError(lastErr).Debug("retrying call")

			if o.onRetry != nil {
				o.onRetry(attempt, lastErr, delay)
			}
			if err := o.sleep(ctx, delay); err != nil {
				return zero, fmt.Errorf("retry cancelled: %w", err)
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if retryable == nil || !retryable(err) {
			return zero, err
		}
	}

	log.WithField("attempts", policy.MaxAttempts).WithError(lastErr).Warn("retries exhausted")
	return zero, &ExhaustedError{Attempts: policy.MaxAttempts, Err: lastErr}
}

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
