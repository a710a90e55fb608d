package rostersync

import (
	"context"
	"time"
)

// RetryPolicy bounds the attempts of one page fetch, waiting attempt × BackoffUnit between attempts.
type RetryPolicy struct {
	MaxAttempts int
	BackoffUnit time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BackoffUnit: time.Second}
}

// Decision is either Retry after Delay, or give up.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Decide tells what to do after the failed `attempt` (1-based).
func (p RetryPolicy) Decide(attempt int) Decision {
	if attempt < 1 || attempt >= p.MaxAttempts {
		return Decision{}
	}
	return Decision{Retry: true, Delay: time.Duration(attempt) * p.BackoffUnit}
}

// sleepCtx waits for `d` unless ctx is done first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
