package task

import (
	"context"
	"time"
)

// RetryPolicy is the bounded retry policy the task runner applies to every
// task execution. A task is attempted at most MaxAttempts times; attempts
// are strictly sequential with a fixed Delay between them. When the ceiling
// is exhausted the last error is returned and no further automatic action
// occurs.
type RetryPolicy struct {
	// MaxAttempts is the total number of executions, counting the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Delay is the fixed wait between consecutive attempts.
	Delay time.Duration
}

// DefaultRetryPolicy returns the standard policy of three attempts with a
// two second pause between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
	}
}

// Execute runs fn under the policy. onRetry, if non-nil, is invoked after
// each failed attempt that will be retried, with the attempt number and its
// error. Execution stops early if the context is cancelled; the context
// error is returned in that case.
func (p RetryPolicy) Execute(
	ctx context.Context,
	fn func(ctx context.Context) error,
	onRetry func(attempt int, err error),
) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		if onRetry != nil {
			onRetry(attempt, err)
		}

		if p.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}
	}

	return err
}
