// SPDX-License-Identifier: MIT

package streamcache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/metrics"
)

// MemoryStore keeps resume metadata in process memory. Used in tests
// and when no cache directory is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory resume store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) RecordAccess(_ context.Context, url string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[url]
	if !ok {
		e = Entry{
			StreamURL:       url,
			CacheIdentifier: uuid.NewString(),
			CachedAt:        now,
		}
	}
	e.LastAccessed = now
	e.ExpiresAt = now.Add(TTL)
	s.entries[url] = e
	return &e, nil
}

func (s *MemoryStore) Get(_ context.Context, url string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[url]
	if !ok || !e.ExpiresAt.After(s.now()) {
		result := "miss"
		if ok {
			result = "expired"
		}
		metrics.CacheOpsTotal.WithLabelValues("resume", result).Inc()
		return nil, nil
	}
	metrics.CacheOpsTotal.WithLabelValues("resume", "hit").Inc()
	out := e
	return &out, nil
}

func (s *MemoryStore) ClearExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for url, e := range s.entries {
		if !e.ExpiresAt.After(now) {
			delete(s.entries, url)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
