package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy represents a retry backoff strategy
type BackoffStrategy interface {
	// NextDelay returns the delay for the given attempt number (0-indexed)
	NextDelay(attempt int) time.Duration
}

// ConstantBackoff implements a constant backoff strategy
type ConstantBackoff struct {
	Delay time.Duration
}

// NewConstantBackoff creates a new constant backoff strategy
func NewConstantBackoff(delay time.Duration) *ConstantBackoff {
	return &ConstantBackoff{Delay: delay}
}

// NextDelay returns the constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	return cb.Delay
}

// LinearBackoff implements a linear backoff strategy
type LinearBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NewLinearBackoff creates a new linear backoff strategy
func NewLinearBackoff(baseDelay, maxDelay time.Duration) *LinearBackoff {
	return &LinearBackoff{
		BaseDelay: baseDelay,
		MaxDelay:  maxDelay,
	}
}

// NextDelay returns the linearly increasing delay
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	delay := lb.BaseDelay * time.Duration(attempt+1)
	if delay > lb.MaxDelay {
		return lb.MaxDelay
	}
	return delay
}

// ExponentialBackoff implements an exponential backoff strategy
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	Jitter     bool
}

// NewExponentialBackoff creates a new exponential backoff strategy
func NewExponentialBackoff(baseDelay, maxDelay time.Duration, multiplier float64, jitter bool) *ExponentialBackoff {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return &ExponentialBackoff{
		BaseDelay:  baseDelay,
		Multiplier: multiplier,
		MaxDelay:   maxDelay,
		Jitter:     jitter,
	}
}

// NextDelay returns the exponentially increasing delay
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))

	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.Jitter {
		// between 0.5*delay and 1.5*delay
		delay *= 0.5 + rand.Float64()
	}

	return time.Duration(delay)
}

// BackoffFromConfig creates a backoff strategy from config parameters
func BackoffFromConfig(backoffType string, baseMs int, maxMs int) BackoffStrategy {
	baseDelay := time.Duration(baseMs) * time.Millisecond
	maxDelay := time.Duration(maxMs) * time.Millisecond

	if maxDelay == 0 {
		maxDelay = 30 * time.Second
	}

	switch backoffType {
	case "constant":
		return NewConstantBackoff(baseDelay)
	case "linear":
		return NewLinearBackoff(baseDelay, maxDelay)
	default:
		return NewExponentialBackoff(baseDelay, maxDelay, 2.0, true)
	}
}

// Retry calls fn up to attempts times, sleeping according to strategy between
// failures. It stops early when ctx is done or fn returns a PermanentError.
func Retry(ctx context.Context, attempts int, strategy BackoffStrategy, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *PermanentError
		if errors.As(lastErr, &perm) {
			return perm.Err
		}
		if attempt == attempts-1 || strategy == nil {
			continue
		}
		timer := time.NewTimer(strategy.NextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

// PermanentError marks an error that Retry must not retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
