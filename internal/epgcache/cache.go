// SPDX-License-Identifier: MIT

// Package epgcache owns the programme guide: a 24h freshness window per
// EPG source, range and now/next queries over stored entries, and a hot
// read cache in front of the store.
package epgcache

import (
	"sync"
	"time"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/metrics"
)

// ProgrammeCache is the hot read layer for guide queries. Entries are
// value snapshots, safe to return to concurrent readers.
type ProgrammeCache interface {
	// Get returns the cached entries for key, or false if absent or expired.
	Get(key string) ([]content.EPGEntry, bool)
	// Set stores entries under key for ttl.
	Set(key string, entries []content.EPGEntry, ttl time.Duration)
	// Delete removes one key.
	Delete(key string)
	// Clear drops everything, e.g. after a guide refresh.
	Clear()
	// Stats reports hit/miss counters.
	Stats() CacheStats
}

// CacheStats holds hot-cache counters.
type CacheStats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type cachedEntries struct {
	entries []content.EPGEntry
	expiry  time.Time
}

type memoryProgrammeCache struct {
	mu      sync.RWMutex
	entries map[string]cachedEntries
	stats   CacheStats

	stopJanitor chan struct{}
}

// NewMemoryCache returns an in-memory ProgrammeCache. A cleanupInterval
// above zero starts a janitor goroutine; call Stop to end it.
func NewMemoryCache(cleanupInterval time.Duration) *memoryProgrammeCache {
	c := &memoryProgrammeCache{
		entries: make(map[string]cachedEntries),
	}
	if cleanupInterval > 0 {
		c.stopJanitor = make(chan struct{})
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *memoryProgrammeCache) Get(key string) ([]content.EPGEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiry) {
		c.stats.Misses++
		metrics.CacheOpsTotal.WithLabelValues("epg", "miss").Inc()
		return nil, false
	}
	c.stats.Hits++
	metrics.CacheOpsTotal.WithLabelValues("epg", "hit").Inc()
	out := make([]content.EPGEntry, len(e.entries))
	copy(out, e.entries)
	return out, true
}

func (c *memoryProgrammeCache) Set(key string, entries []content.EPGEntry, ttl time.Duration) {
	stored := make([]content.EPGEntry, len(entries))
	copy(stored, entries)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedEntries{entries: stored, expiry: time.Now().Add(ttl)}
	c.stats.Sets++
}

func (c *memoryProgrammeCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryProgrammeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedEntries)
}

func (c *memoryProgrammeCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

func (c *memoryProgrammeCache) deleteExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if now.After(e.expiry) {
			delete(c.entries, key)
			c.stats.Evictions++
		}
	}
}

// Stop ends the janitor goroutine, if one was started.
func (c *memoryProgrammeCache) Stop() {
	if c.stopJanitor != nil {
		close(c.stopJanitor)
	}
}

func (c *memoryProgrammeCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stopJanitor:
			return
		}
	}
}

// noOpCache disables the hot layer; every read goes to the store.
type noOpCache struct{}

// NewNoOpCache returns a ProgrammeCache that never caches.
func NewNoOpCache() ProgrammeCache { return noOpCache{} }

func (noOpCache) Get(string) ([]content.EPGEntry, bool)             { return nil, false }
func (noOpCache) Set(string, []content.EPGEntry, time.Duration)     {}
func (noOpCache) Delete(string)                                     {}
func (noOpCache) Clear()                                            {}
func (noOpCache) Stats() CacheStats                                 { return CacheStats{} }
