// internal/resilience/limiter.go
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket applied in front of every outbound call to a
// single external service. The bucket starts full; tokens refill
// continuously at capacity/period. Wait suspends the caller until a token
// is available, releasing the goroutine (never busy-waiting) and waking
// exactly when the next token has accrued.
type Limiter struct {
	capacity int
	period   time.Duration
	bucket   *rate.Limiter
	logger   *zap.Logger
}

// NewLimiter creates a limiter allowing capacity requests per period.
func NewLimiter(capacity int, period time.Duration, logger *zap.Logger) *Limiter {
	refill := rate.Limit(float64(capacity) / period.Seconds())
	return &Limiter{
		capacity: capacity,
		period:   period,
		bucket:   rate.NewLimiter(refill, capacity),
		logger:   logger.Named("limiter"),
	}
}

// Wait blocks until a token can be consumed or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.bucket.Tokens() < 1 {
		l.logger.Debug("rate limit reached, waiting for token",
			zap.Float64("tokens", l.bucket.Tokens()))
	}
	return l.bucket.Wait(ctx)
}

// Tokens returns the currently available tokens. Observation only; the
// value is stale the moment it is read.
func (l *Limiter) Tokens() float64 { return l.bucket.Tokens() }

// Capacity returns the bucket capacity.
func (l *Limiter) Capacity() int { return l.capacity }
