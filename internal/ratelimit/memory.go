package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/soloware/dealdesk/internal/clock"
)

type memoryBucket struct {
	tokens float64
	last   time.Time
}

// MemoryBucket is the in-process Limiter used when Redis is absent.
// State is per instance; horizontally scaled deployments should use
// the Redis bucket instead.
type MemoryBucket struct {
	mu      sync.Mutex
	clock   clock.Clock
	buckets map[string]*memoryBucket
}

func NewMemoryBucket(c clock.Clock) *MemoryBucket {
	return &MemoryBucket{clock: c, buckets: map[string]*memoryBucket{}}
}

func (m *MemoryBucket) Allow(_ context.Context, key string, rate float64, burst int) (*Result, error) {
	if key == "" || rate <= 0 || burst <= 0 {
		return nil, ErrNotConfigured
	}

	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.buckets[key]
	if !ok {
		bucket = &memoryBucket{tokens: float64(burst), last: now}
		m.buckets[key] = bucket
	} else {
		delta := now.Sub(bucket.last).Seconds()
		if delta > 0 {
			bucket.tokens = math.Min(float64(burst), bucket.tokens+delta*rate)
			bucket.last = now
		}
	}

	result := &Result{Limit: burst}
	if bucket.tokens >= 1 {
		bucket.tokens--
		result.Allowed = true
	} else {
		needed := 1.0 - bucket.tokens
		result.RetryAfter = time.Duration(needed / rate * float64(time.Second))
	}
	result.Remaining = int(bucket.tokens)
	return result, nil
}
