package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // Exponential backoff
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// WithRetry runs fn at most MaxAttempts times. It never retries past ctx.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(config.Delay)
	if config.Backoff {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = config.Delay
		exp.MaxElapsedTime = 0
		b = exp
	}
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(config.MaxAttempts-1)), ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return fn()
	}, b)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}
