package oracle

import (
	"context"
	"errors"
	"time"
)

const maxRetryDelay = 10 * time.Second

// retryPolicy retries a feed read with doubling delays capped at maxRetryDelay.
type retryPolicy struct {
	attempts int
	delay    time.Duration
	// onFailure is called for every failed attempt before sleeping.
	onFailure func(attempt int, wait time.Duration, err error)
}

func newRetryPolicy(maxRetries int, backoff time.Duration) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return retryPolicy{attempts: maxRetries + 1, delay: backoff}
}

func (p retryPolicy) run(ctx context.Context, fn func(context.Context) error) error {
	wait := p.delay
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt == p.attempts {
			break
		}
		if p.onFailure != nil {
			p.onFailure(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, maxRetryDelay)
	}
	return err
}
