package retry

import (
	"context"
	"math"
	"time"
)

// Config holds the configuration for retry logic
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns a sensible default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// ErrorChecker reports whether err should trigger another attempt
type ErrorChecker func(err error) bool

// RetryableFunc is a single attempt. attempt starts at 0.
type RetryableFunc[T any] func(attempt int) (T, error)

// Logger defines a function for logging retry attempts
type Logger func(message string, args ...interface{})

// Options configures retry behavior
type Options struct {
	Config       Config
	ErrorChecker ErrorChecker
	Logger       Logger
	APIName      string
}

// calculateDelay computes the delay for the given attempt using exponential backoff
func (c Config) calculateDelay(attempt int) time.Duration {
	multiple := c.BackoffMultiple
	if multiple <= 0 {
		multiple = 1
	}
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(multiple, float64(attempt)))
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

func (o Options) logf(message string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger(message, args...)
	}
}

// Execute runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. A nil ErrorChecker treats every error as final.
func Execute[T any](ctx context.Context, opts Options, fn RetryableFunc[T]) (T, error) {
	var zero T

	total := opts.Config.MaxRetries + 1

	for attempt := 0; attempt <= opts.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := ctx.Err(); err != nil {
				return zero, err
			}

			delay := opts.Config.calculateDelay(attempt - 1)
			opts.logf("%s retry attempt %d/%d after %v delay", opts.APIName, attempt+1, total, delay)

			if delay > 0 {
				select {
				case <-ctx.Done():
					return zero, ctx.Err()
				case <-time.After(delay):
				}
			}
		}

		result, err := fn(attempt)
		if err == nil {
			if attempt > 0 {
				opts.logf("%s request succeeded on attempt %d/%d", opts.APIName, attempt+1, total)
			}
			return result, nil
		}

		if opts.ErrorChecker == nil || !opts.ErrorChecker(err) || attempt == opts.Config.MaxRetries {
			return zero, err
		}

		opts.logf("%s retryable error (attempt %d/%d): %v", opts.APIName, attempt+1, total, err)
	}

	// Only reachable with a negative MaxRetries.
	return zero, &RetryExhaustedError{
		APIName:     opts.APIName,
		MaxAttempts: total,
	}
}

// RetryExhaustedError is returned when no attempt produced a result or an error
type RetryExhaustedError struct {
	APIName     string
	MaxAttempts int
}

func (e *RetryExhaustedError) Error() string {
	return "retry attempts exhausted for " + e.APIName
}
