// SPDX-License-Identifier: MIT

package streamcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewStore("sqlite", t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func setClock(s Store, now func() time.Time) {
	switch v := s.(type) {
	case *MemoryStore:
		v.now = now
	case *SqliteStore:
		v.now = now
	}
}

func TestFactory(t *testing.T) {
	s, err := NewStore("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s, "sqlite backend without a directory degrades to memory")

	s, err = NewStore("sqlite", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &SqliteStore{}, s)
	require.NoError(t, s.Close())

	_, err = NewStore("bolt", t.TempDir())
	require.Error(t, err)
}

func TestRecordAccessSlidesExpiry(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			setClock(s, func() time.Time { return at })

			first, err := s.RecordAccess(ctx, "http://example.com/live.ts")
			require.NoError(t, err)
			assert.NotEmpty(t, first.CacheIdentifier)
			assert.Equal(t, at.Add(TTL), first.ExpiresAt)

			// A later access keeps CachedAt and the identifier but
			// slides the expiry forward.
			at = at.Add(10 * time.Hour)
			second, err := s.RecordAccess(ctx, "http://example.com/live.ts")
			require.NoError(t, err)
			assert.Equal(t, first.CacheIdentifier, second.CacheIdentifier)
			assert.Equal(t, first.CachedAt, second.CachedAt)
			assert.Equal(t, at.Add(TTL), second.ExpiresAt)

			got, err := s.Get(ctx, "http://example.com/live.ts")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, second.ExpiresAt, got.ExpiresAt)
		})
	}
}

func TestGetLogicalMissAfterExpiry(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			setClock(s, func() time.Time { return at })

			_, err := s.RecordAccess(ctx, "http://example.com/live.ts")
			require.NoError(t, err)

			at = at.Add(TTL + time.Minute)
			got, err := s.Get(ctx, "http://example.com/live.ts")
			require.NoError(t, err)
			assert.Nil(t, got, "expired entry reads as a miss")

			// The row still exists: a fresh access revives it with the
			// original identifier.
			revived, err := s.RecordAccess(ctx, "http://example.com/live.ts")
			require.NoError(t, err)
			assert.NotEmpty(t, revived.CacheIdentifier)
		})
	}
}

func TestGetUnknownURL(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Get(context.Background(), "http://example.com/nothing.ts")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestClearExpired(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			setClock(s, func() time.Time { return at })

			_, err := s.RecordAccess(ctx, "http://example.com/old.ts")
			require.NoError(t, err)

			at = at.Add(12 * time.Hour)
			_, err = s.RecordAccess(ctx, "http://example.com/new.ts")
			require.NoError(t, err)

			at = at.Add(13 * time.Hour)
			n, err := s.ClearExpired(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			got, err := s.Get(ctx, "http://example.com/new.ts")
			require.NoError(t, err)
			assert.NotNil(t, got)
		})
	}
}

func TestDefaultHTTPCacheConfig(t *testing.T) {
	cfg := DefaultHTTPCacheConfig("/var/cache/streamhaven")
	assert.Equal(t, int64(50<<20), cfg.MemoryBudgetBytes)
	assert.Equal(t, int64(200<<20), cfg.DiskBudgetBytes)
	assert.Contains(t, cfg.DiskPath, "http-cache")
}
