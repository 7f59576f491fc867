package service

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/copilot/domain"
)

const (
	memoryCap     = 200
	angleCooldown = 7 * 24 * time.Hour
	dedupWindow   = 14 * 24 * time.Hour
)

type memoryEntry struct {
	fingerprint string
	angle       domain.Angle
	issuedAt    time.Time
}

// recommendationMemory is the per-user rolling record of issued
// recommendations. Process-local, mutex-protected; oldest entries
// fall off once the cap is reached.
type recommendationMemory struct {
	mu      sync.Mutex
	byOwner map[snowflake.ID][]memoryEntry
}

func newRecommendationMemory() *recommendationMemory {
	return &recommendationMemory{byOwner: map[snowflake.ID][]memoryEntry{}}
}

func (m *recommendationMemory) angleUsedWithin(ownerID snowflake.ID, angle domain.Angle, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.byOwner[ownerID] {
		if entry.angle == angle && now.Sub(entry.issuedAt) < angleCooldown {
			return true
		}
	}
	return false
}

func (m *recommendationMemory) seenWithin(ownerID snowflake.ID, fingerprint string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.byOwner[ownerID] {
		if entry.fingerprint == fingerprint && now.Sub(entry.issuedAt) < dedupWindow {
			return true
		}
	}
	return false
}

func (m *recommendationMemory) record(ownerID snowflake.ID, fingerprint string, angle domain.Angle, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := append(m.byOwner[ownerID], memoryEntry{
		fingerprint: fingerprint,
		angle:       angle,
		issuedAt:    now,
	})
	if len(entries) > memoryCap {
		entries = entries[len(entries)-memoryCap:]
	}
	m.byOwner[ownerID] = entries
}
