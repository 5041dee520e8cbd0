// internal/resilience/classify.go
package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Kind partitions external-call failures into retry categories.
type Kind int

const (
	// KindTransient covers timeouts, disconnects and other flaky I/O.
	// Retried under the standard policy.
	KindTransient Kind = iota
	// KindThrottle is a server-signaled rate limit carrying an explicit
	// wait duration. Retried after exactly that wait, outside the normal
	// attempt budget.
	KindThrottle
	// KindFatal covers authorization failures. Never retried.
	KindFatal
	// KindInvalid covers malformed/rejected requests. Never retried.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindThrottle:
		return "throttle"
	case KindFatal:
		return "fatal"
	case KindInvalid:
		return "invalid"
	default:
		return "transient"
	}
}

// ThrottleError is returned when the server demands a wait before the
// next request (HTTP 429 with Retry-After, flood control, etc).
type ThrottleError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled, retry after %s: %v", e.RetryAfter, e.Err)
}

func (e *ThrottleError) Unwrap() error { return e.Err }

// AuthError marks an authorization failure. Surfaced immediately.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authorization failed: %v", e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError marks a request the server rejected as malformed.
// Retrying the same request cannot succeed.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("invalid request: %v", e.Err) }

func (e *ValidationError) Unwrap() error { return e.Err }

// Classify maps an error to its retry category. Anything that is not an
// explicitly typed failure is treated as transient, matching the policy
// of retrying unknown network-level problems.
func Classify(err error) Kind {
	var (
		throttle   *ThrottleError
		auth       *AuthError
		validation *ValidationError
	)
	switch {
	case errors.As(err, &throttle):
		return KindThrottle
	case errors.As(err, &auth):
		return KindFatal
	case errors.As(err, &validation):
		return KindInvalid
	default:
		return KindTransient
	}
}

// Retryable reports whether the standard retry policy may re-attempt
// after this error.
func Retryable(err error) bool {
	k := Classify(err)
	return k == KindTransient || k == KindThrottle
}
