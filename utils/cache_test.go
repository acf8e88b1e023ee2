package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPageCacheServesWithinWindow(t *testing.T) {
	now := time.Now()
	cache := NewMemoryPageCache()
	cache.now = func() time.Time { return now }

	cache.Set("/", []byte("rendered index"), 20*time.Second)

	got, ok := cache.Get("/")
	require.True(t, ok)
	assert.Equal(t, []byte("rendered index"), got)

	// Still inside the window: same bytes, no recompute.
	now = now.Add(19 * time.Second)
	got, ok = cache.Get("/")
	require.True(t, ok)
	assert.Equal(t, []byte("rendered index"), got)
}

func TestMemoryPageCacheExpires(t *testing.T) {
	now := time.Now()
	cache := NewMemoryPageCache()
	cache.now = func() time.Time { return now }

	cache.Set("/", []byte("stale"), 20*time.Second)

	now = now.Add(21 * time.Second)
	_, ok := cache.Get("/")
	assert.False(t, ok)
}

func TestMemoryPageCacheClearForcesFreshness(t *testing.T) {
	cache := NewMemoryPageCache()
	cache.Set("/", []byte("stale"), time.Hour)
	cache.Set("/?page=2", []byte("stale too"), time.Hour)

	cache.Clear()

	_, ok := cache.Get("/")
	assert.False(t, ok)
	_, ok = cache.Get("/?page=2")
	assert.False(t, ok)
}

func TestMemoryPageCacheIgnoresNonPositiveTTL(t *testing.T) {
	cache := NewMemoryPageCache()
	cache.Set("/", []byte("never stored"), 0)
	_, ok := cache.Get("/")
	assert.False(t, ok)
}
