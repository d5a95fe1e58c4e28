// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/fetch"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/importer"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/playlistcache"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/store"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xerrors"
)

const playlistBody = `#EXTM3U url-tvg="http://example.com/epg.xml"
#EXTINF:-1 tvg-id="ch1" tvg-name="Ch 1",Channel One
http://example.com/ch1.ts
#EXTINF:-1 group-title="Movies",My Movie
http://example.com/movie.mp4
`

func newTestRunner(t *testing.T, srv *httptest.Server) (*Runner, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	plCache, err := playlistcache.New(t.TempDir())
	require.NoError(t, err)

	var fetcher *fetch.Client
	if srv != nil {
		fetcher = fetch.New(
			fetch.WithHTTPClient(srv.Client()),
			fetch.WithRetryPolicy(0, time.Millisecond, time.Millisecond),
		)
	} else {
		fetcher = fetch.New(fetch.WithRetryPolicy(0, time.Millisecond, time.Millisecond))
	}

	r := NewRunner(Options{
		Store:         s,
		Importer:      importer.New(s),
		Fetcher:       fetcher,
		PlaylistCache: plCache,
		MaxConcurrent: 2,
	})
	return r, s
}

func m3uSource(id, url string) content.PlaylistSource {
	return content.PlaylistSource{
		ID:       id,
		ProfileID: "prof-1",
		Name:     "Test Feed",
		Type:     content.SourceM3U,
		URL:      url,
		IsActive: true,
	}
}

func TestRefreshSourceM3U(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(playlistBody))
	}))
	defer srv.Close()

	r, s := newTestRunner(t, srv)
	ctx := context.Background()
	src := m3uSource("src-1", srv.URL+"/list.m3u")

	status, err := r.RefreshSource(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, status.Error)
	assert.Equal(t, 1, status.Report.ChannelsCreated)
	assert.Equal(t, 1, status.Report.MoviesCreated)

	// The source row carries the refresh outcome.
	sources, err := s.Sources(ctx, "prof-1")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.False(t, sources[0].LastRefreshed.IsZero())
	assert.Empty(t, sources[0].LastError)

	// Second refresh within the cache TTL serves bytes from disk.
	_, err = r.RefreshSource(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "cached playlist must not refetch")
}

func TestRefreshSourceRecordsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r, s := newTestRunner(t, srv)
	ctx := context.Background()

	status, err := r.RefreshSource(ctx, m3uSource("src-1", srv.URL+"/list.m3u"))
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrAuthenticationFailed)
	assert.NotEmpty(t, status.Error)

	sources, err := s.Sources(ctx, "prof-1")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.NotEmpty(t, sources[0].LastError)
}

func TestRefreshSourceNonM3UBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not a playlist</html>"))
	}))
	defer srv.Close()

	r, _ := newTestRunner(t, srv)
	_, err := r.RefreshSource(context.Background(), m3uSource("src-1", srv.URL+"/list.m3u"))
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrMalformedHeader)
}

func TestRefreshSourceXtreamUsesCatalog(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	r.catalog = func(_ context.Context, _ content.PlaylistSource) (*content.Batch, error) {
		return &content.Batch{Candidates: []content.Candidate{
			{Kind: content.KindChannel, Channel: &content.Channel{
				Name: "CNN",
				Variants: []content.ChannelVariant{{Name: "CNN", StreamURL: "http://example.com/1.ts"}},
			}},
		}}, nil
	}

	src := content.PlaylistSource{
		ID: "src-x", ProfileID: "prof-1", Type: content.SourceXtream,
		URL: "http://panel.example.com", Username: "u", Password: "p", IsActive: true,
	}
	status, err := r.RefreshSource(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Report.ChannelsCreated)
}

func TestRefreshSourceCancelled(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	r.catalog = func(ctx context.Context, _ content.PlaylistSource) (*content.Batch, error) {
		return &content.Batch{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := content.PlaylistSource{
		ID: "src-x", ProfileID: "prof-1", Type: content.SourceXtream,
		URL: "http://panel.example.com", IsActive: true,
	}
	status, err := r.RefreshSource(ctx, src)
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrCancelled)
	assert.NotEmpty(t, status.Error)
}

func TestRefreshAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.m3u" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(playlistBody))
	}))
	defer srv.Close()

	r, s := newTestRunner(t, srv)
	ctx := context.Background()

	good := m3uSource("src-good", srv.URL+"/good.m3u")
	bad := m3uSource("src-bad", srv.URL+"/bad.m3u")
	inactive := m3uSource("src-off", srv.URL+"/off.m3u")
	inactive.IsActive = false
	for i, src := range []content.PlaylistSource{good, bad, inactive} {
		src.DisplayOrder = i
		require.NoError(t, s.SaveSource(ctx, &src))
	}

	statuses, err := r.RefreshAll(ctx, "prof-1")
	require.NoError(t, err, "one bad source must not fail the sweep")
	require.Len(t, statuses, 3)

	byID := make(map[string]Status)
	for _, st := range statuses {
		byID[st.SourceID] = st
	}
	assert.Empty(t, byID["src-good"].Error)
	assert.Equal(t, 2, byID["src-good"].Report.Created())
	assert.NotEmpty(t, byID["src-bad"].Error)
	assert.True(t, byID["src-off"].Skipped)
	assert.Empty(t, byID["src-off"].Error)
}
