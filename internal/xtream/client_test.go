// SPDX-License-Identifier: MIT

package xtream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/fetch"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xerrors"
)

// mockPanel simulates an Xtream-Codes server with per-action payloads.
type mockPanel struct {
	auth       string
	live       string
	vod        string
	vodStatus  int
	series     string
	seriesInfo string
}

func (p *mockPanel) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "":
			_, _ = w.Write([]byte(p.auth))
		case "get_live_streams":
			_, _ = w.Write([]byte(p.live))
		case "get_vod_streams", "get_vod_categories":
			if p.vodStatus != 0 {
				w.WriteHeader(p.vodStatus)
				return
			}
			_, _ = w.Write([]byte(p.vod))
		case "get_series":
			_, _ = w.Write([]byte(p.series))
		case "get_series_info":
			_, _ = w.Write([]byte(p.seriesInfo))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return New(srv.URL, "user", "pass",
		WithRateLimit(rate.NewLimiter(rate.Inf, 1)),
		WithFetcher(fetch.New(fetch.WithRetryPolicy(0, time.Millisecond, time.Millisecond))),
	)
}

const activeAuth = `{"user_info":{"auth":1,"status":"Active"},"server_info":{"url":"example.com"}}`

func TestFetchAllFullCatalog(t *testing.T) {
	panel := &mockPanel{
		auth: activeAuth,
		// stream_id arrives as number on one entry, string on the other.
		live: `[
			{"stream_id":10,"name":"News One","epg_channel_id":"news1.uk","stream_icon":"http://x/n1.png","category_name":"News"},
			{"stream_id":"11","name":"Sports One"}
		]`,
		vod: `[
			{"stream_id":500,"name":"Inception (2010)","container_extension":"mkv","rating":"8.8","imdb_id":"tt1375666"}
		]`,
		series:     `[{"series_id":42,"name":"Breaking Bad (2008)","cover":"http://x/bb.jpg"}]`,
		seriesInfo: `{"episodes":{"1":[{"id":9001,"episode_num":1,"title":"Pilot","season":1,"container_extension":"mp4"},{"id":"9002","episode_num":"2","title":"Cat's in the Bag...","season":1}]}}`,
	}
	srv := httptest.NewServer(panel.handler())
	defer srv.Close()

	res, err := testClient(t, srv).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.EndpointErrors)

	require.Len(t, res.Channels, 2)
	assert.Equal(t, "News One", res.Channels[0].Name)
	assert.Equal(t, "news1.uk", res.Channels[0].TvgID)
	assert.Equal(t, srv.URL+"/live/user/pass/10.ts", res.Channels[0].Variants[0].StreamURL)
	assert.Equal(t, srv.URL+"/live/user/pass/11.ts", res.Channels[1].Variants[0].StreamURL)

	require.Len(t, res.Movies, 1)
	m := res.Movies[0]
	assert.Equal(t, "Inception", m.Title)
	assert.Equal(t, 2010, m.Year)
	assert.Equal(t, "tt1375666", m.IMDbID)
	assert.InDelta(t, 8.8, m.Rating, 0.001)
	assert.Equal(t, srv.URL+"/movie/user/pass/500.mkv", m.StreamURL)

	require.Len(t, res.Series, 1)
	s := res.Series[0]
	assert.Equal(t, "Breaking Bad", s.Title)
	assert.Equal(t, 2008, s.Year)
	require.Len(t, s.Seasons, 1)
	require.Len(t, s.Seasons[0].Episodes, 2)
	assert.Equal(t, 2, s.Seasons[0].Episodes[1].Number)
	assert.Equal(t, srv.URL+"/series/user/pass/9002.mp4", s.Seasons[0].Episodes[1].StreamURL)
}

func TestFetchAllAuthDeniedByPayload(t *testing.T) {
	panel := &mockPanel{auth: `{"user_info":{"auth":0,"status":"Expired"}}`}
	srv := httptest.NewServer(panel.handler())
	defer srv.Close()

	_, err := testClient(t, srv).FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrAuthenticationFailed))
}

func TestFetchAllAuthDeniedByStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(t, srv).FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrAuthenticationFailed))
}

func TestFetchAllVODFailureDoesNotBlockLive(t *testing.T) {
	panel := &mockPanel{
		auth:      activeAuth,
		live:      `[{"stream_id":1,"name":"Still Here"}]`,
		vodStatus: http.StatusInternalServerError,
		series:    `[]`,
	}
	srv := httptest.NewServer(panel.handler())
	defer srv.Close()

	res, err := testClient(t, srv).FetchAll(context.Background())
	require.NoError(t, err, "vod failure must not abort the whole fetch")

	require.Len(t, res.Channels, 1)
	assert.Equal(t, "Still Here", res.Channels[0].Name)
	require.Contains(t, res.EndpointErrors, "get_vod_streams")
	assert.True(t, errors.Is(res.EndpointErrors["get_vod_streams"], xerrors.ErrNetwork))
}

func TestFetchSeriesObjectShape(t *testing.T) {
	panel := &mockPanel{
		auth:       activeAuth,
		live:       `[]`,
		vod:        `[]`,
		series:     `{"0":{"series_id":"7","name":"Some Show"}}`,
		seriesInfo: `{"episodes":{"1":[{"id":1,"episode_num":1,"title":"Ep"}]}}`,
	}
	srv := httptest.NewServer(panel.handler())
	defer srv.Close()

	res, err := testClient(t, srv).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	assert.Equal(t, "Some Show", res.Series[0].Title)
}

func TestBatchTagsCandidates(t *testing.T) {
	panel := &mockPanel{
		auth: activeAuth,
		live: `[{"stream_id":1,"name":"Ch"}]`,
		vod:  `[{"stream_id":2,"name":"Mv"}]`,
		// No seasons resolve, so the series is dropped from candidates.
		series:     `[]`,
		seriesInfo: `{}`,
	}
	srv := httptest.NewServer(panel.handler())
	defer srv.Close()

	res, err := testClient(t, srv).FetchAll(context.Background())
	require.NoError(t, err)

	batch := res.Batch()
	require.Len(t, batch.Candidates, 2)
	assert.NotNil(t, batch.Candidates[0].Channel)
	assert.NotNil(t, batch.Candidates[1].Movie)
}

func TestFlexScalars(t *testing.T) {
	var v struct {
		S1 flexString `json:"s1"`
		S2 flexString `json:"s2"`
		S3 flexString `json:"s3"`
		I1 flexInt    `json:"i1"`
		I2 flexInt    `json:"i2"`
		F1 flexFloat  `json:"f1"`
		F2 flexFloat  `json:"f2"`
	}
	blob := `{"s1":"abc","s2":42,"s3":null,"i1":"7","i2":3.0,"f1":"8.8","f2":"n/a"}`
	require.NoError(t, json.Unmarshal([]byte(blob), &v))

	assert.Equal(t, flexString("abc"), v.S1)
	assert.Equal(t, flexString("42"), v.S2)
	assert.Equal(t, flexString(""), v.S3)
	assert.Equal(t, 7, v.I1.value)
	assert.True(t, v.I1.known)
	assert.Equal(t, 3, v.I2.value)
	assert.InDelta(t, 8.8, float64(v.F1), 0.001)
	assert.Zero(t, float64(v.F2))
}
