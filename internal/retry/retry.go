// Package retry wraps fallible operations with bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts int
	// BaseDelay is the unit for the backoff schedule: attempt n sleeps
	// BaseDelay * 2^n. Tests shrink it; production uses one second.
	BaseDelay time.Duration
}

// DefaultConfig matches the classifier's transient-failure budget.
var DefaultConfig = Config{
	MaxAttempts: 5,
	BaseDelay:   time.Second,
}

// ExhaustedError reports that every attempt failed. It wraps the last
// underlying error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exhausted %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs op until it succeeds or cfg.MaxAttempts have failed. Failed
// attempts back off exponentially; the final failure returns immediately as
// an *ExhaustedError. Context cancellation aborts the wait.
func Do[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig.BaseDelay
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := cfg.BaseDelay << attempt
		slog.Warn("attempt failed, backing off", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, &ExhaustedError{Attempts: cfg.MaxAttempts, Err: lastErr}
}
