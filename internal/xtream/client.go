// SPDX-License-Identifier: MIT

// Package xtream fetches and decodes Xtream-Codes player_api catalogs
// into the same candidate record shapes the M3U parser produces.
//
// The wire schema is server-defined and sloppy: numeric IDs arrive as
// numbers on some panels and strings on others, the series list is
// sometimes an object keyed by index instead of an array, and entire
// categories can be missing. Decoding is therefore tolerant everywhere
// except authentication, which is fatal for the whole operation.
package xtream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/fetch"
	xlog "github.com/asrawiee-collab/StreamHaven-sub004/internal/log"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xerrors"
)

// pagedRequestRate limits category-paged calls so large panels do not
// rate-ban the account mid-index.
var pagedRequestRate = rate.Every(200 * time.Millisecond)

// Client talks to one Xtream-Codes server.
type Client struct {
	base    string
	user    string
	pass    string
	fetcher *fetch.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithFetcher replaces the transport collaborator.
func WithFetcher(f *fetch.Client) Option {
	return func(c *Client) { c.fetcher = f }
}

// WithRateLimit overrides the pacing between paged catalog calls.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New builds a client for the given server and credentials.
func New(base, user, pass string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimSuffix(base, "/"),
		user:    user,
		pass:    pass,
		fetcher: fetch.New(),
		limiter: rate.NewLimiter(pagedRequestRate, 1),
		logger:  xlog.WithComponent("xtream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the decoded catalog. Each category fails independently: a
// dead VOD endpoint must not block live channels already fetched, so
// per-endpoint errors are collected here instead of aborting.
type Result struct {
	Channels []content.Channel
	Movies   []content.Movie
	Series   []content.Series

	// EndpointErrors maps action name to its failure, when any.
	EndpointErrors map[string]error
	Warnings       []string
}

// Batch converts the result into the import coordinator's input shape.
func (r *Result) Batch() *content.Batch {
	b := &content.Batch{Warnings: r.Warnings}
	for i := range r.Channels {
		ch := r.Channels[i]
		b.Candidates = append(b.Candidates, content.Candidate{Kind: content.KindChannel, Channel: &ch})
	}
	for i := range r.Movies {
		m := r.Movies[i]
		b.Candidates = append(b.Candidates, content.Candidate{Kind: content.KindMovie, Movie: &m})
	}
	for i := range r.Series {
		s := r.Series[i]
		b.Candidates = append(b.Candidates, content.Candidate{Kind: content.KindSeries, Series: &s})
	}
	return b
}

// FetchAll authenticates, then pulls live, VOD and series catalogs.
// Authentication failure is fatal; any other endpoint failure is
// recorded in Result.EndpointErrors and the remaining categories still
// load.
func (c *Client) FetchAll(ctx context.Context) (*Result, error) {
	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	res := &Result{EndpointErrors: make(map[string]error)}

	if channels, err := c.fetchLive(ctx); err != nil {
		res.EndpointErrors["get_live_streams"] = err
		c.logger.Warn().Err(err).Msg("live streams endpoint failed")
	} else {
		res.Channels = channels
	}

	if movies, err := c.fetchVOD(ctx); err != nil {
		res.EndpointErrors["get_vod_streams"] = err
		c.logger.Warn().Err(err).Msg("vod endpoint failed")
	} else {
		res.Movies = movies
	}

	if series, warnings, err := c.fetchSeries(ctx); err != nil {
		res.EndpointErrors["get_series"] = err
		c.logger.Warn().Err(err).Msg("series endpoint failed")
	} else {
		res.Series = series
		res.Warnings = append(res.Warnings, warnings...)
	}

	return res, nil
}

func (c *Client) apiURL(action string, extra ...string) string {
	u := c.base + "/player_api.php?username=" + url.QueryEscape(c.user) +
		"&password=" + url.QueryEscape(c.pass)
	if action != "" {
		u += "&action=" + action
	}
	for _, kv := range extra {
		u += "&" + kv
	}
	return u
}

func (c *Client) get(ctx context.Context, action string, extra ...string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrCancelled, "xtream "+action, err)
	}
	return c.fetcher.Fetch(ctx, c.apiURL(action, extra...))
}

// authenticate verifies credentials via the bare player_api call. Panels
// signal bad credentials either with HTTP 401 or with user_info.auth=0
// in an otherwise successful response.
func (c *Client) authenticate(ctx context.Context) error {
	body, err := c.get(ctx, "")
	if err != nil {
		return err
	}
	var auth struct {
		UserInfo *struct {
			Auth   flexInt    `json:"auth"`
			Status flexString `json:"status"`
		} `json:"user_info"`
	}
	if err := json.Unmarshal(body, &auth); err != nil {
		return xerrors.Wrap(xerrors.ErrParse, "xtream auth", err)
	}
	if auth.UserInfo == nil {
		return xerrors.Wrap(xerrors.ErrAuthenticationFailed, "xtream auth",
			errors.New("no user_info in response"))
	}
	if auth.UserInfo.Auth.known && auth.UserInfo.Auth.value == 0 {
		return xerrors.Wrap(xerrors.ErrAuthenticationFailed, "xtream auth", nil)
	}
	if s := string(auth.UserInfo.Status); s != "" && !strings.EqualFold(s, "Active") {
		return &xerrors.IngestError{
			Sentinel:  xerrors.ErrAuthenticationFailed,
			Operation: "xtream auth",
			Detail:    "account status " + s,
		}
	}
	return nil
}

func (c *Client) fetchLive(ctx context.Context) ([]content.Channel, error) {
	body, err := c.get(ctx, "get_live_streams")
	if err != nil {
		return nil, err
	}
	var streams []struct {
		StreamID     flexString `json:"stream_id"`
		Name         string     `json:"name"`
		EPGChannelID flexString `json:"epg_channel_id"`
		StreamIcon   string     `json:"stream_icon"`
		CategoryName string     `json:"category_name"`
	}
	if err := json.Unmarshal(body, &streams); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrParse, "xtream get_live_streams", err)
	}

	channels := make([]content.Channel, 0, len(streams))
	for _, s := range streams {
		sid := string(s.StreamID)
		if sid == "" {
			continue
		}
		name := strings.TrimSpace(s.Name)
		if name == "" {
			name = "Channel " + sid
		}
		streamURL := fmt.Sprintf("%s/live/%s/%s/%s.ts",
			c.base, url.PathEscape(c.user), url.PathEscape(c.pass), url.PathEscape(sid))
		channels = append(channels, content.Channel{
			Name:    name,
			LogoURL: s.StreamIcon,
			TvgID:   string(s.EPGChannelID),
			Group:   s.CategoryName,
			Variants: []content.ChannelVariant{{
				Name:      name,
				StreamURL: streamURL,
			}},
			VariantCount: 1,
		})
	}
	return channels, nil
}

// fetchVOD asks for the full VOD catalog first; panels that refuse the
// unscoped call fall back to one request per category.
func (c *Client) fetchVOD(ctx context.Context) ([]content.Movie, error) {
	list, err := c.vodStreams(ctx, "")
	if err != nil || len(list) == 0 {
		byCat, catErr := c.vodByCategory(ctx)
		if catErr != nil {
			if err != nil {
				return nil, err
			}
			return nil, catErr
		}
		list = byCat
	}

	movies := make([]content.Movie, 0, len(list))
	for _, m := range list {
		sid := string(m.StreamID)
		if sid == "" {
			continue
		}
		ext := string(m.ContainerExtension)
		if ext == "" || len(ext) > 5 {
			ext = "mp4"
		}
		title, year := splitTitleYear(m.Name)
		if year == 0 && len(m.ReleaseDate) >= 4 {
			year, _ = strconv.Atoi(m.ReleaseDate[:4])
		}
		movies = append(movies, content.Movie{
			Title:     title,
			Year:      year,
			PosterURL: m.StreamIcon,
			IMDbID:    m.IMDbID,
			Rating:    float64(m.Rating),
			StreamURL: fmt.Sprintf("%s/movie/%s/%s/%s.%s",
				c.base, url.PathEscape(c.user), url.PathEscape(c.pass),
				url.PathEscape(sid), url.PathEscape(ext)),
		})
	}
	return movies, nil
}

type vodStream struct {
	StreamID           flexString `json:"stream_id"`
	Name               string     `json:"name"`
	ContainerExtension flexString `json:"container_extension"`
	StreamIcon         string     `json:"stream_icon"`
	ReleaseDate        string     `json:"releasedate"`
	IMDbID             string     `json:"imdb_id"`
	Rating             flexFloat  `json:"rating"`
}

func (c *Client) vodStreams(ctx context.Context, categoryID string) ([]vodStream, error) {
	var extra []string
	if categoryID != "" {
		extra = append(extra, "category_id="+url.QueryEscape(categoryID))
	}
	body, err := c.get(ctx, "get_vod_streams", extra...)
	if err != nil {
		return nil, err
	}
	var list []vodStream
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrParse, "xtream get_vod_streams", err)
	}
	return list, nil
}

func (c *Client) vodByCategory(ctx context.Context) ([]vodStream, error) {
	body, err := c.get(ctx, "get_vod_categories")
	if err != nil {
		return nil, err
	}
	var cats []struct {
		CategoryID flexString `json:"category_id"`
	}
	if err := json.Unmarshal(body, &cats); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrParse, "xtream get_vod_categories", err)
	}

	var out []vodStream
	seen := make(map[string]bool)
	for _, cat := range cats {
		id := string(cat.CategoryID)
		if id == "" {
			continue
		}
		part, err := c.vodStreams(ctx, id)
		if err != nil {
			// One dead category is not fatal for the rest.
			c.logger.Debug().Err(err).Str("category", id).Msg("vod category fetch failed")
			continue
		}
		for _, m := range part {
			sid := string(m.StreamID)
			if sid == "" || seen[sid] {
				continue
			}
			seen[sid] = true
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *Client) fetchSeries(ctx context.Context) ([]content.Series, []string, error) {
	body, err := c.get(ctx, "get_series")
	if err != nil {
		return nil, nil, err
	}

	type show struct {
		SeriesID flexString `json:"series_id"`
		Name     string     `json:"name"`
		Cover    string     `json:"cover"`
	}
	var list []show
	if json.Unmarshal(body, &list) != nil {
		// Some panels return an object keyed by arbitrary indexes.
		var m map[string]show
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, nil, xerrors.Wrap(xerrors.ErrParse, "xtream get_series", err)
		}
		for _, s := range m {
			list = append(list, s)
		}
	}

	var out []content.Series
	var warnings []string
	for _, s := range list {
		sid := string(s.SeriesID)
		if sid == "" {
			continue
		}
		seasons, err := c.seriesInfo(ctx, sid)
		if err != nil {
			warnings = append(warnings,
				fmt.Sprintf("series %q (%s): info fetch failed: %v", s.Name, sid, err))
			continue
		}
		if len(seasons) == 0 {
			continue
		}
		title, year := splitTitleYear(s.Name)
		out = append(out, content.Series{
			Title:     title,
			Year:      year,
			PosterURL: s.Cover,
			Seasons:   seasons,
		})
	}
	return out, warnings, nil
}

func (c *Client) seriesInfo(ctx context.Context, seriesID string) ([]content.Season, error) {
	body, err := c.get(ctx, "get_series_info", "series_id="+url.QueryEscape(seriesID))
	if err != nil {
		return nil, err
	}
	var info struct {
		Episodes map[string][]struct {
			ID                 flexString `json:"id"`
			EpisodeNum         flexInt    `json:"episode_num"`
			Title              string     `json:"title"`
			Season             flexInt    `json:"season"`
			ContainerExtension flexString `json:"container_extension"`
		} `json:"episodes"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrParse, "xtream get_series_info", err)
	}

	seasonMap := make(map[int]*content.Season)
	for seasonKey, eps := range info.Episodes {
		keyNum, _ := strconv.Atoi(seasonKey)
		for _, ep := range eps {
			eid := string(ep.ID)
			if eid == "" {
				continue
			}
			seasonNum := ep.Season.value
			if seasonNum < 1 {
				seasonNum = keyNum
			}
			if seasonNum < 1 {
				seasonNum = 1
			}
			if seasonMap[seasonNum] == nil {
				seasonMap[seasonNum] = &content.Season{Number: seasonNum}
			}
			epNum := ep.EpisodeNum.value
			if epNum < 1 {
				epNum = len(seasonMap[seasonNum].Episodes) + 1
			}
			ext := string(ep.ContainerExtension)
			if ext == "" || len(ext) > 5 {
				ext = "mp4"
			}
			seasonMap[seasonNum].Episodes = append(seasonMap[seasonNum].Episodes, content.Episode{
				Number: epNum,
				Title:  strings.TrimSpace(ep.Title),
				StreamURL: fmt.Sprintf("%s/series/%s/%s/%s.%s",
					c.base, url.PathEscape(c.user), url.PathEscape(c.pass),
					url.PathEscape(eid), url.PathEscape(ext)),
			})
		}
	}

	nums := make([]int, 0, len(seasonMap))
	for n := range seasonMap {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	seasons := make([]content.Season, 0, len(nums))
	for _, n := range nums {
		seasons = append(seasons, *seasonMap[n])
	}
	return seasons, nil
}

// splitTitleYear peels a trailing "(YYYY)" off a display name.
func splitTitleYear(s string) (string, int) {
	s = strings.TrimSpace(s)
	if len(s) < 6 || s[len(s)-1] != ')' {
		return s, 0
	}
	i := strings.LastIndex(s, "(")
	if i < 0 {
		return s, 0
	}
	year, err := strconv.Atoi(strings.TrimSpace(s[i+1 : len(s)-1]))
	if err != nil || year < 1900 || year > 2100 {
		return s, 0
	}
	return strings.TrimSpace(s[:i]), year
}
