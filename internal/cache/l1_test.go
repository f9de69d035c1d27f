package cache

import (
	"testing"
	"time"

	"logforensics/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL1StoreTTLExpiry(t *testing.T) {
	s := newL1Store(10)
	now := time.Now()
	s.set("k1", types.CacheEntry{CreatedAt: now, ValueBytes: []byte("v1"), TTL: 50 * time.Millisecond})

	_, ok := s.get("k1", now.Add(10*time.Millisecond))
	require.True(t, ok, "value should be readable before TTL elapses")

	_, ok = s.get("k1", now.Add(100*time.Millisecond))
	assert.False(t, ok, "value should be absent after TTL elapses")
}

func TestL1StoreLRUEviction(t *testing.T) {
	s := newL1Store(3)
	now := time.Now()

	s.set("k1", types.CacheEntry{CreatedAt: now, ValueBytes: []byte("1")})
	s.set("k2", types.CacheEntry{CreatedAt: now, ValueBytes: []byte("2")})
	s.set("k3", types.CacheEntry{CreatedAt: now, ValueBytes: []byte("3")})

	// Touch k1 so it's no longer the least-recently-used entry.
	_, ok := s.get("k1", now)
	require.True(t, ok)

	s.set("k4", types.CacheEntry{CreatedAt: now, ValueBytes: []byte("4")})

	_, ok = s.get("k1", now)
	assert.True(t, ok, "recently touched key should survive eviction")

	_, ok = s.get("k2", now)
	assert.False(t, ok, "least-recently-used key should be evicted")

	assert.Equal(t, 3, s.size())
}

func TestL1StoreClear(t *testing.T) {
	s := newL1Store(10)
	now := time.Now()
	s.set("k1", types.CacheEntry{CreatedAt: now, ValueBytes: []byte("1")})
	s.clear()
	assert.Equal(t, 0, s.size())
	_, ok := s.get("k1", now)
	assert.False(t, ok)
}
