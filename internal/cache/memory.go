package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is the in-process Cache used when no Redis is configured.
// Expired entries are evicted on read; Set sweeps opportunistically once
// the map grows past sweepThreshold. Process-local only: replayed
// webhook ids are not shared across instances, which is an accepted
// scalability limit of the single-node deployment.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryEntry
}

const sweepThreshold = 4096

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryEntry)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if now.After(entry.expiresAt) {
		delete(m.items, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_ = ctx
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) >= sweepThreshold {
		m.sweepLocked(now)
	}
	m.items[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (m *Memory) Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	_ = ctx
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.items[key]
	if ok && now.Before(entry.expiresAt) {
		return false, nil
	}
	if len(m.items) >= sweepThreshold {
		m.sweepLocked(now)
	}
	m.items[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) sweepLocked(now time.Time) {
	for key, entry := range m.items {
		if now.After(entry.expiresAt) {
			delete(m.items, key)
		}
	}
}
