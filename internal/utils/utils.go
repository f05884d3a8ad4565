package utils

import (
	"context"
	"time"
)

var sleep = time.Sleep

// WaitFor blocks for d or until ctx is done, whichever comes first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Retry calls fn up to attempts times, waiting delay between calls. It stops
// early when fn succeeds, when retryable reports false or when ctx is done.
// The last error is returned.
func Retry(ctx context.Context, attempts int, delay time.Duration, retryable func(error) bool, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if waitErr := WaitFor(ctx, delay); waitErr != nil {
				return waitErr
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}

	return err
}
