package circulation

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3

	retryDelayMetric       = "circulation_retry_delay"
	retryAttemptsMetric    = "circulation_retries"
	retriesExhaustedMetric = "circulation_retries_exhausted"

	labelOperation     = "operation"
	labelAttemptNumber = "attempt_number"
	labelErrorType     = "final_error_type"
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithRetryMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// retryConfig holds configuration for exponential backoff retry logic.
type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector MetricsCollector
	operation        string
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// RetryUnitConflicts executes fn with exponential backoff retry logic,
// retrying only on ErrUnitConflict up to maxAttempts times. All other
// errors fail fast: business conflicts such as ErrCopyUnavailable are
// deterministic outcomes for the caller, not transient failures.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms, 160 ms
// (with 30% jitter), so a worst case of roughly 400 ms.
func RetryUnitConflicts(ctx context.Context, fn RetryableFunc, options ...RetryOption) error {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff: baseDelay * 2^(attempt-1)
			delay := config.baseDelay * time.Duration(1<<(attempt-1))

			// Add jitter to prevent thundering herd
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec //math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			config.recordRetryDelay(attempt, backoffDelay)

			select {
			case <-time.After(backoffDelay):
				// Continue with retry
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil // Success
		}

		if !errors.Is(lastErr, ErrUnitConflict) {
			return lastErr // Permanent failure
		}

		config.recordRetryAttempt(attempt)
	}

	config.recordRetriesExhausted(lastErr)

	return lastErr // Max attempts reached
}

func (c *retryConfig) recordRetryDelay(attempt int, backoffDelay time.Duration) {
	if c.metricsCollector == nil {
		return
	}

	c.metricsCollector.RecordDuration(retryDelayMetric, backoffDelay, map[string]string{
		labelOperation:     c.operation,
		labelAttemptNumber: strconv.Itoa(attempt),
	})
}

func (c *retryConfig) recordRetryAttempt(attempt int) {
	if c.metricsCollector == nil || attempt >= c.maxAttempts-1 {
		return
	}

	c.metricsCollector.IncrementCounter(retryAttemptsMetric, map[string]string{
		labelOperation:     c.operation,
		labelAttemptNumber: strconv.Itoa(attempt + 1),
	})
}

func (c *retryConfig) recordRetriesExhausted(lastErr error) {
	if c.metricsCollector == nil {
		return
	}

	errorType := "other"
	if errors.Is(lastErr, ErrUnitConflict) {
		errorType = "unit_conflict"
	}

	c.metricsCollector.IncrementCounter(retriesExhaustedMetric, map[string]string{
		labelOperation: c.operation,
		labelErrorType: errorType,
	})
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter factor to prevent thundering herd
// problems. Jitter is added as a percentage of the calculated backoff
// delay. Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithRetryMetrics sets the metrics collector for retry instrumentation.
// Requires the operation name to properly label metrics.
func WithRetryMetrics(collector MetricsCollector, operation string) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		config.metricsCollector = collector
		config.operation = operation

		return nil
	}
}
