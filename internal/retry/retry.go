// Package retry wraps device setup steps in exponential backoff.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config controls the backoff schedule.
type Config struct {
	MaxRetries    int           // Retries after the first attempt; 0 disables retrying
	RetryDelay    time.Duration // Initial retry delay (default: 1 second)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultConfig returns the default backoff schedule
func DefaultConfig() Config {
	return Config{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// Func is one attempt. Returning nil ends the retry loop.
type Func func(ctx context.Context) error

// Do calls fn until it succeeds, the retries are exhausted or ctx is done.
//
// Schedule with the default config: 1s, 2s, 4s, 8s, 16s, then give up.
// The returned error wraps the last attempt's error. attempts reports how
// many times fn was called.
func Do(ctx context.Context, name string, cfg Config, fn Func) (attempts int, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempts++
		err = fn(ctx)
		if err == nil {
			if attempts > 1 {
				slog.Info("sensor-capture: retry succeeded", "op", name, "attempts", attempts)
			}
			return attempts, nil
		}

		if attempts > cfg.MaxRetries {
			if cfg.MaxRetries == 0 {
				return attempts, err
			}
			return attempts, fmt.Errorf("%s: giving up after %d attempts: %w", name, attempts, err)
		}

		delay := Backoff(attempts, cfg)
		slog.Warn("sensor-capture: retrying",
			"op", name,
			"attempt", attempts,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempts, fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), err)
		}
	}
}

// Backoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Cap the shift before it overflows
	if attempt > 30 {
		attempt = 30
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if cfg.MaxRetryDelay > 0 && (delay > cfg.MaxRetryDelay || delay < 0) {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
