package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrNotConfigured = errors.New("ratelimit: limiter not configured")

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a token bucket: rate tokens per second refill up to
// burst capacity, one token per request.
type Limiter interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error)
}
