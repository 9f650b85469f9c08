package resilience

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryConfig bounds how often a failing call is repeated.
type RetryConfig struct {
	// Retries is the number of additional attempts after the first. Zero
	// disables retrying.
	Retries uint64
	// Backoff is the delay before the first retry; it doubles every attempt.
	Backoff time.Duration
	// MaxBackoff caps a single delay. Zero means uncapped.
	MaxBackoff time.Duration
}

// DefaultRetryConfig performs no retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Retries: 0,
		Backoff: 200 * time.Millisecond,
	}
}

// Retry calls fn until it succeeds, returns an error that retryable rejects,
// the attempts are used up, or ctx is done. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, retryable func(error) bool, fn func(context.Context) error) error {
	if cfg.Retries == 0 {
		return fn(ctx)
	}

	base := cfg.Backoff
	if base <= 0 {
		base = DefaultRetryConfig().Backoff
	}
	b := retry.NewExponential(base)
	if cfg.MaxBackoff > 0 {
		b = retry.WithCappedDuration(cfg.MaxBackoff, b)
	}
	b = retry.WithMaxRetries(cfg.Retries, b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		log.WithField("attempt", attempt).WithError(err).Debug("retrying after failure")
		return retry.RetryableError(err)
	})
}
