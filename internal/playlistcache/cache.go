// SPDX-License-Identifier: MIT

// Package playlistcache keeps raw downloaded feed bytes on disk so an
// unchanged playlist is not downloaded twice within its TTL. Entries
// are keyed by (URL, source ID); the file name is derived from the URL
// alone, so two sources sharing one URL share one file.
package playlistcache

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/log"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/metrics"
)

// TTL is how long a cached playlist counts as usable. Older entries
// read as logical misses and the caller re-fetches.
const TTL = 24 * time.Hour

type cacheKey struct {
	url      string
	sourceID string
}

type row struct {
	filePath      string
	lastRefreshed time.Time
	epgURL        string
}

// Cache is the on-disk playlist byte cache. File I/O must never run on
// an interactive execution context; callers mark the safe context with
// WithBackgroundIO, and both operations refuse to run without it.
type Cache struct {
	dir    string
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	rows map[cacheKey]row
}

// New creates the cache directory if needed and returns a Cache over it.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("playlist cache: create dir: %w", err)
	}
	return &Cache{
		dir:    dir,
		logger: log.WithComponent("playlistcache"),
		now:    time.Now,
		rows:   make(map[cacheKey]row),
	}, nil
}

type bgIOKey struct{}

// WithBackgroundIO marks ctx as safe for blocking file I/O. Cache
// operations called without this marker return ErrForegroundIO.
func WithBackgroundIO(ctx context.Context) context.Context {
	return context.WithValue(ctx, bgIOKey{}, true)
}

// ErrForegroundIO reports a cache call from an execution context not
// marked for background I/O. This is a caller bug, not a cache miss.
var ErrForegroundIO = fmt.Errorf("playlist cache: file I/O requires a background context (see WithBackgroundIO)")

func checkBackground(ctx context.Context) error {
	if ok, _ := ctx.Value(bgIOKey{}).(bool); !ok {
		return ErrForegroundIO
	}
	return nil
}

// fileName is collision-free by construction: the unpadded URL-safe
// base64 of the URL itself.
func fileName(url string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(url))
}

// Put writes the raw playlist bytes atomically and records the entry
// for (url, sourceID). epgURL may be empty.
func (c *Cache) Put(ctx context.Context, url, sourceID string, data []byte, epgURL string) error {
	if err := checkBackground(ctx); err != nil {
		return err
	}

	path := filepath.Join(c.dir, fileName(url))
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("playlist cache: create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			c.logger.Debug().Err(err).Msg("cleanup pending playlist file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("playlist cache: write: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("playlist cache: atomic replace: %w", err)
	}

	c.mu.Lock()
	c.rows[cacheKey{url, sourceID}] = row{
		filePath:      path,
		lastRefreshed: c.now(),
		epgURL:        epgURL,
	}
	c.mu.Unlock()

	c.logger.Debug().Str("url", url).Str("source_id", sourceID).Int("bytes", len(data)).Msg("playlist cached")
	return nil
}

// Get returns the cached bytes and the recorded EPG URL for
// (url, sourceID), or ok=false when there is no entry fresher than TTL.
func (c *Cache) Get(ctx context.Context, url, sourceID string) (data []byte, epgURL string, ok bool, err error) {
	if err := checkBackground(ctx); err != nil {
		return nil, "", false, err
	}

	c.mu.Lock()
	r, found := c.rows[cacheKey{url, sourceID}]
	c.mu.Unlock()

	if !found {
		metrics.CacheOpsTotal.WithLabelValues("playlist", "miss").Inc()
		return nil, "", false, nil
	}
	if c.now().Sub(r.lastRefreshed) >= TTL {
		metrics.CacheOpsTotal.WithLabelValues("playlist", "expired").Inc()
		return nil, "", false, nil
	}

	data, err = os.ReadFile(r.filePath)
	if err != nil {
		// The row outlived its file; treat as a miss and drop the row.
		c.logger.Warn().Err(err).Str("url", url).Msg("cached playlist file unreadable")
		c.mu.Lock()
		delete(c.rows, cacheKey{url, sourceID})
		c.mu.Unlock()
		metrics.CacheOpsTotal.WithLabelValues("playlist", "miss").Inc()
		return nil, "", false, nil
	}

	metrics.CacheOpsTotal.WithLabelValues("playlist", "hit").Inc()
	return data, r.epgURL, true, nil
}

// Invalidate drops the entry for (url, sourceID) and removes its file
// when no other source still references it.
func (c *Cache) Invalidate(ctx context.Context, url, sourceID string) error {
	if err := checkBackground(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	r, found := c.rows[cacheKey{url, sourceID}]
	if found {
		delete(c.rows, cacheKey{url, sourceID})
	}
	shared := false
	for k := range c.rows {
		if k.url == url {
			shared = true
			break
		}
	}
	c.mu.Unlock()

	if !found || shared {
		return nil
	}
	if err := os.Remove(r.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("playlist cache: remove: %w", err)
	}
	return nil
}
