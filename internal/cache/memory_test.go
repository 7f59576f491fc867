package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryAddDedup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	stored, err := m.Add(ctx, "webhook:mercadopago:req-1", "1", time.Minute)
	assert.NoError(t, err)
	assert.True(t, stored)

	stored, err = m.Add(ctx, "webhook:mercadopago:req-1", "1", time.Minute)
	assert.NoError(t, err)
	assert.False(t, stored)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	assert.NoError(t, m.Set(ctx, "k", "v", -time.Second))
	_, ok, err := m.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)

	// an expired key can be re-added
	stored, err := m.Add(ctx, "k", "v2", time.Minute)
	assert.NoError(t, err)
	assert.True(t, stored)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	assert.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	assert.NoError(t, m.Delete(ctx, "k"))
	_, ok, _ := m.Get(ctx, "k")
	assert.False(t, ok)
}
