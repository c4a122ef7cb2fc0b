// Package retry provides bounded-attempt retry helpers with pluggable
// backoff. It underlies spawn.Supervised, which restarts a worker's root
// fiber entry a bounded number of times if it panics.
package retry

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// BackoffStrategy defines how to calculate the wait duration between retries.
type BackoffStrategy func(attempt int) time.Duration

// Config holds common retry configuration.
type Config struct {
	// MaxAttempts is the maximum number of retry attempts (including initial attempt).
	// Default: 3
	MaxAttempts int

	// BackoffStrategy defines how to calculate wait time between retries.
	// If nil, uses ExponentialBackoff with default parameters.
	BackoffStrategy BackoffStrategy

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, lastErr error, nextWait time.Duration)

	// Timeout is the maximum total time allowed for all retry attempts.
	// If zero, no timeout is applied.
	Timeout time.Duration
}

// SyncOptions configures ExecuteSync.
type SyncOptions func(*Config)

// AsyncOptions configures ExecuteAsync.
type AsyncOptions func(*Config)

// NewRetryConfig returns a default Config.
func NewRetryConfig() *Config {
	return &Config{
		MaxAttempts:     3,
		BackoffStrategy: ExponentialBackoff(100*time.Millisecond, 1.5, 30*time.Second),
	}
}

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int) func(*Config) {
	return func(rc *Config) {
		if attempts > 0 {
			rc.MaxAttempts = attempts
		}
	}
}

// WithBackoffStrategy sets a custom backoff strategy.
func WithBackoffStrategy(strategy BackoffStrategy) func(*Config) {
	return func(rc *Config) {
		if strategy != nil {
			rc.BackoffStrategy = strategy
		}
	}
}

// WithOnRetry sets the retry callback.
func WithOnRetry(onRetry func(attempt int, lastErr error, nextWait time.Duration)) func(*Config) {
	return func(rc *Config) {
		rc.OnRetry = onRetry
	}
}

// WithTimeout sets the total timeout for retry operations.
func WithTimeout(timeout time.Duration) func(*Config) {
	return func(rc *Config) {
		if timeout > 0 {
			rc.Timeout = timeout
		}
	}
}

var (
	randSource = rand.NewSource(time.Now().UnixNano())
	randMutex  sync.Mutex
)

// ExponentialBackoff returns an exponential backoff strategy with jitter.
func ExponentialBackoff(initialDelay time.Duration, multiplier float64, maxDelay time.Duration) BackoffStrategy {
	return func(attempt int) time.Duration {
		if attempt == 0 {
			return 0
		}

		delay := time.Duration(float64(initialDelay) * math.Pow(multiplier, float64(attempt-1)))
		if delay > maxDelay {
			delay = maxDelay
		}

		randMutex.Lock()
		jitter := time.Duration(randSource.Int63() % int64(delay))
		randMutex.Unlock()

		return delay/2 + jitter/2
	}
}

// FixedBackoff returns a fixed backoff strategy.
func FixedBackoff(duration time.Duration) BackoffStrategy {
	return func(attempt int) time.Duration {
		if attempt == 0 {
			return 0
		}

		return duration
	}
}

// ExecuteSync executes fn synchronously with retry logic, respecting context
// cancellation and the configured timeout.
func ExecuteSync(ctx context.Context, fn func() error, opts ...SyncOptions) error {
	config := NewRetryConfig()
	for _, opt := range opts {
		opt(config)
	}

	return retryLoop(ctx, fn, config)
}

// ExecuteAsync executes fn asynchronously with retry logic. Exactly one of
// onSuccess and onFailure is called, once.
func ExecuteAsync(
	ctx context.Context,
	fn func() error,
	onSuccess func(),
	onFailure func(error),
	opts ...AsyncOptions,
) {
	config := NewRetryConfig()
	for _, opt := range opts {
		opt(config)
	}

	go func() {
		err := retryLoop(ctx, fn, config)
		if err == nil {
			if onSuccess != nil {
				onSuccess()
			}

			return
		}

		if onFailure != nil {
			onFailure(err)
		}
	}()
}

func retryLoop(ctx context.Context, fn func() error, config *Config) error {
	retryCtx := ctx

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		retryCtx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-retryCtx.Done():
			return retryCtx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt == config.MaxAttempts-1 {
			return lastErr
		}

		waitDuration := config.BackoffStrategy(attempt + 1)
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, lastErr, waitDuration)
		}

		select {
		case <-time.After(waitDuration):
		case <-retryCtx.Done():
			return retryCtx.Err()
		}
	}

	return lastErr
}
