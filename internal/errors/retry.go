package errors

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls RetryWithBackoff.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first
	MaxRetries int
	// InitialBackoff is the delay before the first retry
	InitialBackoff time.Duration
	// MaxBackoff caps the exponentially growing delay
	MaxBackoff time.Duration
	// Multiplier grows the delay per attempt
	Multiplier float64
	// Jitter randomizes each delay by up to ±25% so parallel callers
	// hitting the same server do not retry in lockstep
	Jitter bool
	// RetryableErrors decides whether an error is worth another attempt.
	// nil retries only errors the taxonomy marks retryable.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig retries taxonomy-retryable errors three times with
// exponential backoff
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialBackoff:  1 * time.Second,
		MaxBackoff:      30 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		RetryableErrors: IsRetryable,
	}
}

// RetryWithBackoff runs fn until it succeeds, returns a non-retryable
// error, exhausts the attempt budget, or the context is cancelled.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	retryable := config.RetryableErrors
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return fmt.Errorf("non-retryable error: %w", err)
		}
		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(config.backoff(attempt)):
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", config.MaxRetries, lastErr)
}

// backoff computes the delay after the given zero-based attempt
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt))
	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	if c.Jitter {
		d *= 1 + 0.25*(2*rand.Float64()-1)
		if d > float64(c.MaxBackoff) {
			d = float64(c.MaxBackoff)
		}
	}
	if d < 0 {
		d = float64(c.InitialBackoff)
	}
	return time.Duration(d)
}
