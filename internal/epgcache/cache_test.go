// SPDX-License-Identifier: MIT

package epgcache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/log"
)

func sampleEntries() []content.EPGEntry {
	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	return []content.EPGEntry{
		{ChannelID: "tv.cnn", Title: "Evening News", Start: start, Stop: start.Add(time.Hour)},
		{ChannelID: "tv.cnn", Title: "Late Show", Start: start.Add(time.Hour), Stop: start.Add(2 * time.Hour)},
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(0)

	_, ok := c.Get("tv.cnn")
	assert.False(t, ok)

	c.Set("tv.cnn", sampleEntries(), time.Minute)
	got, ok := c.Get("tv.cnn")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "Evening News", got[0].Title)

	// Returned slice is a snapshot, not the stored backing array.
	got[0].Title = "mutated"
	again, ok := c.Get("tv.cnn")
	require.True(t, ok)
	assert.Equal(t, "Evening News", again[0].Title)

	c.Delete("tv.cnn")
	_, ok = c.Get("tv.cnn")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(0)
	c.Set("tv.cnn", sampleEntries(), -time.Second)

	_, ok := c.Get("tv.cnn")
	assert.False(t, ok, "expired entry must read as a miss")

	c.deleteExpired()
	assert.Equal(t, 0, c.Stats().CurrentSize)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryCacheJanitorStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCache(time.Millisecond)
	c.Set("tv.cnn", sampleEntries(), time.Minute)
	c.Stop()
}

func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()
	c.Set("tv.cnn", sampleEntries(), time.Minute)
	_, ok := c.Get("tv.cnn")
	assert.False(t, ok)
	assert.Equal(t, CacheStats{}, c.Stats())
}

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr()}, log.WithComponent("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, _ := newTestRedisCache(t)

	_, ok := c.Get("tv.cnn")
	assert.False(t, ok)

	c.Set("tv.cnn", sampleEntries(), time.Minute)
	got, ok := c.Get("tv.cnn")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "Late Show", got[1].Title)

	c.Delete("tv.cnn")
	_, ok = c.Get("tv.cnn")
	assert.False(t, ok)
}

func TestRedisCacheExpiry(t *testing.T) {
	c, mr := newTestRedisCache(t)

	c.Set("tv.cnn", sampleEntries(), time.Minute)
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get("tv.cnn")
	assert.False(t, ok)
}

func TestRedisCacheCorruptValueDropped(t *testing.T) {
	c, mr := newTestRedisCache(t)

	require.NoError(t, mr.Set(redisKeyPrefix+"tv.cnn", "not json"))
	_, ok := c.Get("tv.cnn")
	assert.False(t, ok)
	assert.False(t, mr.Exists(redisKeyPrefix+"tv.cnn"), "corrupt entry must be deleted")
}

func TestRedisCacheClear(t *testing.T) {
	c, mr := newTestRedisCache(t)

	c.Set("tv.cnn", sampleEntries(), time.Minute)
	c.Set("tv.bbc", sampleEntries(), time.Minute)
	require.NoError(t, mr.Set("unrelated", "keep"))

	c.Clear()
	_, ok := c.Get("tv.cnn")
	assert.False(t, ok)
	_, ok = c.Get("tv.bbc")
	assert.False(t, ok)
	assert.True(t, mr.Exists("unrelated"), "clear must only touch guide keys")
}
