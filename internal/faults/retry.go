package faults

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	backoffBase   = 500 * time.Millisecond
	backoffJitter = 50 * time.Millisecond
)

// Do runs fn with exponential backoff, retrying transient faults up to
// maxRetries additional attempts. Each attempt gets its own timeout-bounded
// context. Fatal and ingest faults abort immediately; the error returned
// after exhaustion is the last classified fault.
func Do(ctx context.Context, op string, maxRetries uint64, timeout time.Duration, fn func(context.Context) error) error {
	backoff := retry.WithJitter(backoffJitter, retry.NewExponential(backoffBase))
	backoff = retry.WithMaxRetries(maxRetries, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := fn(callCtx); err != nil {
			f := FromService(op, err)
			if f.Kind == KindTransient {
				return retry.RetryableError(f)
			}
			return f
		}
		return nil
	})
}
