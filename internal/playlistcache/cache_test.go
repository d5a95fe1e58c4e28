// SPDX-License-Identifier: MIT

package playlistcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()
	c, err := New(t.TempDir())
	require.NoError(t, err)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &at
	c.now = func() time.Time { return *clock }
	return c, clock
}

func TestPutGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := WithBackgroundIO(context.Background())
	payload := []byte("#EXTM3U\n#EXTINF:-1,CNN\nhttp://example.com/cnn.ts\n")

	require.NoError(t, c.Put(ctx, "http://example.com/list.m3u", "src-1", payload, "http://example.com/epg.xml"))

	data, epgURL, ok, err := c.Get(ctx, "http://example.com/list.m3u", "src-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, data)
	assert.Equal(t, "http://example.com/epg.xml", epgURL)

	// Same URL under another source is a distinct entry.
	_, _, ok, err = c.Get(ctx, "http://example.com/list.m3u", "src-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetExpiredIsLogicalMiss(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := WithBackgroundIO(context.Background())

	require.NoError(t, c.Put(ctx, "http://example.com/list.m3u", "src-1", []byte("#EXTM3U\n"), ""))

	*clock = clock.Add(25 * time.Hour)
	_, _, ok, err := c.Get(ctx, "http://example.com/list.m3u", "src-1")
	require.NoError(t, err)
	assert.False(t, ok, "stale entry must force a re-fetch")

	// The file itself is still there; only the row aged out.
	assert.FileExists(t, filepath.Join(c.dir, fileName("http://example.com/list.m3u")))
}

func TestForegroundContextRejected(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	err := c.Put(ctx, "http://example.com/list.m3u", "src-1", []byte("#EXTM3U\n"), "")
	assert.ErrorIs(t, err, ErrForegroundIO)

	_, _, _, err = c.Get(ctx, "http://example.com/list.m3u", "src-1")
	assert.ErrorIs(t, err, ErrForegroundIO)

	err = c.Invalidate(ctx, "http://example.com/list.m3u", "src-1")
	assert.ErrorIs(t, err, ErrForegroundIO)
}

func TestPutOverwritesAtomically(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := WithBackgroundIO(context.Background())

	require.NoError(t, c.Put(ctx, "http://example.com/list.m3u", "src-1", []byte("old"), ""))
	require.NoError(t, c.Put(ctx, "http://example.com/list.m3u", "src-1", []byte("new"), ""))

	data, _, ok, err := c.Get(ctx, "http://example.com/list.m3u", "src-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), data)

	// No temp files left behind.
	entries, err := os.ReadDir(c.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMissingFileDropsRow(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := WithBackgroundIO(context.Background())

	require.NoError(t, c.Put(ctx, "http://example.com/list.m3u", "src-1", []byte("#EXTM3U\n"), ""))
	require.NoError(t, os.Remove(filepath.Join(c.dir, fileName("http://example.com/list.m3u"))))

	_, _, ok, err := c.Get(ctx, "http://example.com/list.m3u", "src-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidateKeepsSharedFile(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := WithBackgroundIO(context.Background())
	url := "http://example.com/list.m3u"

	require.NoError(t, c.Put(ctx, url, "src-1", []byte("#EXTM3U\n"), ""))
	require.NoError(t, c.Put(ctx, url, "src-2", []byte("#EXTM3U\n"), ""))

	require.NoError(t, c.Invalidate(ctx, url, "src-1"))
	assert.FileExists(t, filepath.Join(c.dir, fileName(url)))

	require.NoError(t, c.Invalidate(ctx, url, "src-2"))
	assert.NoFileExists(t, filepath.Join(c.dir, fileName(url)))
}

func TestFileNameIsURLSafe(t *testing.T) {
	name := fileName("http://example.com/a?user=x&pass=y/z")
	assert.NotContains(t, name, "/")
	assert.NotContains(t, name, "+")
	assert.NotContains(t, name, "=")
}
