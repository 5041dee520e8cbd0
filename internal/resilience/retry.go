// internal/resilience/retry.go
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Policy controls the standard retry behavior of a call site.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts uint
	// BaseDelay is the fixed wait between attempts.
	BaseDelay time.Duration
}

// DefaultPolicy mirrors the defaults used across outbound clients.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Retrier wraps external calls with constant-delay retries and
// throttle-aware waits.
//
// Transient errors are retried up to MaxAttempts with BaseDelay between
// attempts; the last error propagates on exhaustion. Fatal and validation
// errors propagate immediately without consuming the budget. Throttle
// errors suspend for exactly the server-mandated duration and then restart
// the attempt budget, so a throttled call is never abandoned by the
// MaxAttempts ceiling.
type Retrier struct {
	policy Policy
	logger *zap.Logger
}

// NewRetrier creates a retrier with the given policy.
func NewRetrier(policy Policy, logger *zap.Logger) *Retrier {
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = 1
	}
	return &Retrier{policy: policy, logger: logger.Named("retry")}
}

// Do runs an operation with no result value.
func (r *Retrier) Do(ctx context.Context, name string, op func() error) error {
	_, err := Call(ctx, r, name, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Call runs op under the retrier's policy and returns its result.
func Call[T any](ctx context.Context, r *Retrier, name string, op func() (T, error)) (T, error) {
	var zero T

	attempt := func() (T, error) {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if k := Classify(err); k != KindTransient {
			// Throttle is handled by the outer loop; fatal and
			// validation errors must not burn retry budget either way.
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn("retrying after transient error",
			zap.String("op", name),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	for {
		v, err := backoff.Retry(ctx, attempt,
			backoff.WithBackOff(backoff.NewConstantBackOff(r.policy.BaseDelay)),
			backoff.WithMaxTries(r.policy.MaxAttempts),
			backoff.WithNotify(notify))
		if err == nil {
			return v, nil
		}

		var throttle *ThrottleError
		if !errors.As(err, &throttle) {
			return zero, err
		}

		r.logger.Warn("server requested wait, honoring it",
			zap.String("op", name),
			zap.Duration("retry_after", throttle.RetryAfter))

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(throttle.RetryAfter):
		}
	}
}
