// SPDX-License-Identifier: MIT

// Package streamcache tracks per-stream access metadata for 24-hour
// resume semantics. It stores metadata only; byte caching of stream
// segments belongs to the transport-level HTTP cache this package
// merely configures.
package streamcache

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// TTL is the resume window. Every access slides the expiry forward to
// now+TTL, so the semantics are LRU-by-expiry, not fixed from creation.
const TTL = 24 * time.Hour

// Entry is one stream's resume metadata. StreamURL is the unique key.
type Entry struct {
	StreamURL       string
	CacheIdentifier string
	CachedAt        time.Time
	LastAccessed    time.Time
	ExpiresAt       time.Time
}

// Store persists resume metadata per stream URL.
type Store interface {
	// RecordAccess upserts the entry for url and slides its expiry to
	// now+TTL. CachedAt is set only on first sight.
	RecordAccess(ctx context.Context, url string) (*Entry, error)
	// Get returns the entry for url, or nil without error when absent
	// or expired. Expired rows stay on disk until ClearExpired.
	Get(ctx context.Context, url string) (*Entry, error)
	// ClearExpired deletes rows whose expiry has passed and reports how
	// many were removed.
	ClearExpired(ctx context.Context) (int64, error)
	Close() error
}

// NewStore creates a resume metadata store for the given backend.
// Supported backends are "sqlite" (the default) and "memory". A sqlite
// backend with no directory degrades to memory.
func NewStore(backend, dir string) (Store, error) {
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "sqlite":
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(filepath.Join(dir, "streams.sqlite"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown stream cache backend: %s (supported: sqlite, memory)", backend)
	}
}

// HTTPCacheConfig sizes the transport-level byte cache that serves the
// actual stream segments.
type HTTPCacheConfig struct {
	MemoryBudgetBytes int64
	DiskBudgetBytes   int64
	DiskPath          string
}

// DefaultHTTPCacheConfig returns the standard 50MB/200MB budgets.
func DefaultHTTPCacheConfig(dir string) HTTPCacheConfig {
	return HTTPCacheConfig{
		MemoryBudgetBytes: 50 << 20,
		DiskBudgetBytes:   200 << 20,
		DiskPath:          filepath.Join(dir, "http-cache"),
	}
}
