package retry

import (
	"context"
	"time"
)

// Policy describes how a fallible operation is retried: how many total
// attempts, and how long to wait after the n-th failure.
type Policy struct {
	Attempts int
	Backoff  func(attempt int) time.Duration
}

// Linear returns a backoff that grows by step after every attempt:
// step, 2*step, 3*step, ...
func Linear(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Do runs fn until it succeeds or the attempts are exhausted. A nil
// retryable treats every error as transient. Context cancellation cuts
// the backoff wait short and returns the last error.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	var last error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if retryable != nil && !retryable(last) {
			return last
		}
		if attempt == p.Attempts {
			break
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		select {
		case <-ctx.Done():
			return last
		case <-time.After(wait):
		}
	}
	return last
}
