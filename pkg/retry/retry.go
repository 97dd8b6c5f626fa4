// Package retry runs a call a bounded number of times with exponential backoff.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Options configures Do. MaxAttempts counts the first call.
type Options struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// Retryable reports whether err is worth another attempt. Nil retries every error.
	Retryable func(err error) bool
}

// Do calls f until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. The last error is returned.
func Do[T any](ctx context.Context, opts Options, f func(context.Context) (T, error)) (T, error) {
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := opts.InitialWait

	var (
		result T
		err    error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		result, err = f(ctx)
		if err == nil {
			return result, nil
		}
		if opts.Retryable != nil && !opts.Retryable(err) {
			return result, err
		}
		if attempt == attempts-1 {
			break
		}

		sleep := wait
		if opts.Jitter && sleep > 0 {
			sleep = time.Duration(float64(sleep) * (0.5 + rand.Float64()))
		}
		if opts.MaxWait > 0 && sleep > opts.MaxWait {
			sleep = opts.MaxWait
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}

		wait *= 2
		if opts.MaxWait > 0 && wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
	return result, err
}
