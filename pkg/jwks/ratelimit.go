package jwks

import (
	"time"

	"golang.org/x/time/rate"
)

// fetchLimiter caps outbound fetch attempts per minute. A nil limiter allows everything.
type fetchLimiter struct {
	limit   int
	limiter *rate.Limiter
}

func newFetchLimiter(enabled bool, perMinute int) *fetchLimiter {
	if !enabled {
		return nil
	}

	return &fetchLimiter{
		limit:   perMinute,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (l *fetchLimiter) Allow() error {
	if l == nil {
		return nil
	}

	if !l.limiter.Allow() {
		return &RateLimitError{Limit: l.limit}
	}

	return nil
}
