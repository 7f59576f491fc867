package cache

import (
	"context"
	"time"
)

// Cache is a bounded, time-windowed key-value capability. Webhook replay
// ids and coaching cooldowns go through this interface so a single-node
// in-memory map and a shared Redis are interchangeable at call sites.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Add stores the value only when the key is absent and reports
	// whether it was stored. This is the dedup primitive.
	Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}
