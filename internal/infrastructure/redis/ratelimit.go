package redis

import (
	"context"
	"time"
)

// Window is the fixed rate-limit window.
const Window = time.Minute

const keyPrefix = "sensegrid:ratelimit:"

// Counter counts hits per key within a window. *Client implements it.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter allows up to limit requests per key per Window.
type RateLimiter struct {
	counter Counter
	limit   int
}

// NewRateLimiter returns a limiter allowing requestsPerMinute per key.
func NewRateLimiter(counter Counter, requestsPerMinute int) *RateLimiter {
	return &RateLimiter{counter: counter, limit: requestsPerMinute}
}

// Allow records a request for key. On counter errors the request is allowed
// and the error returned so the caller can log it.
func (l *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, resetIn, err := l.counter.Incr(ctx, keyPrefix+key, Window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, err
	}

	d := Decision{Limit: l.limit}
	if count <= int64(l.limit) {
		d.Allowed = true
		d.Remaining = l.limit - int(count)
		return d, nil
	}
	d.RetryAfter = resetIn
	return d, nil
}
