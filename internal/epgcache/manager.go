// SPDX-License-Identifier: MIT

package epgcache

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/log"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/metrics"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/store"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xmltv"
)

// FreshnessTTL is how long one fetched guide counts as fresh.
const FreshnessTTL = 24 * time.Hour

// retentionWindow keeps programmes around for a day after they end.
const retentionWindow = 24 * time.Hour

// hotTTL bounds staleness of the read-through layer, not of the guide.
const hotTTL = 5 * time.Minute

// fuzzyMaxDist is the edit distance allowed when joining a channel to
// the guide by display name.
const fuzzyMaxDist = 2

// Fetcher downloads raw guide bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// State describes one EPG source's freshness.
type State string

const (
	StateFresh State = "fresh"
	StateStale State = "stale"
)

// Manager coordinates guide refreshes and serves guide queries.
// Queries always answer from whatever is stored; freshness governs only
// whether RefreshIfStale actually fetches.
type Manager struct {
	store   store.Store
	fetcher Fetcher
	hot     ProgrammeCache
	logger  zerolog.Logger
	now     func() time.Time

	mu        sync.Mutex
	lastFetch map[string]time.Time
}

// NewManager wires a Manager over the catalog store. A nil hot cache
// disables the read-through layer.
func NewManager(s store.Store, fetcher Fetcher, hot ProgrammeCache) *Manager {
	if hot == nil {
		hot = NewNoOpCache()
	}
	return &Manager{
		store:     s,
		fetcher:   fetcher,
		hot:       hot,
		logger:    log.WithComponent("epgcache"),
		now:       time.Now,
		lastFetch: make(map[string]time.Time),
	}
}

// SourceState reports fresh or stale for one guide URL. Unknown URLs
// are stale.
func (m *Manager) SourceState(url string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.lastFetch[url]; ok && m.now().Sub(t) < FreshnessTTL {
		return StateFresh
	}
	return StateStale
}

// RefreshIfStale fetches and stores the guide at url unless it is still
// fresh. force bypasses the freshness short-circuit. A failed fetch or
// parse keeps the previously stored guide untouched and leaves the
// source stale.
func (m *Manager) RefreshIfStale(ctx context.Context, url string, force bool) error {
	if !force && m.SourceState(url) == StateFresh {
		metrics.EPGRefreshTotal.WithLabelValues("skipped_fresh").Inc()
		m.logger.Debug().Str("url", url).Msg("guide still fresh, refresh skipped")
		return nil
	}

	raw, err := m.fetcher.Fetch(ctx, url)
	if err != nil {
		metrics.EPGRefreshTotal.WithLabelValues("failure").Inc()
		m.logger.Warn().Err(err).Str("url", url).Msg("guide fetch failed, keeping stored data")
		return err
	}

	parsed, err := xmltv.Parse(bytes.NewReader(raw))
	if err != nil {
		metrics.EPGRefreshTotal.WithLabelValues("failure").Inc()
		m.logger.Warn().Err(err).Str("url", url).Msg("guide parse failed, keeping stored data")
		return err
	}
	for _, w := range parsed.Warnings {
		metrics.ParseWarningsTotal.WithLabelValues("xmltv").Inc()
		m.logger.Warn().Str("url", url).Msg(w)
	}

	byChannel := make(map[string][]content.EPGEntry)
	for _, e := range parsed.Entries {
		byChannel[e.ChannelID] = append(byChannel[e.ChannelID], e)
	}

	refreshedAt := m.now()
	nameIndex := parsed.NameIndex()
	err = m.store.WithTx(ctx, func(tx store.Store) error {
		for channelID, entries := range byChannel {
			if err := tx.ReplaceProgrammes(ctx, channelID, entries); err != nil {
				return err
			}
		}
		return m.annotateChannels(ctx, tx, byChannel, nameIndex, refreshedAt)
	})
	if err != nil {
		metrics.EPGRefreshTotal.WithLabelValues("failure").Inc()
		return err
	}

	m.mu.Lock()
	m.lastFetch[url] = refreshedAt
	m.mu.Unlock()
	m.hot.Clear()

	metrics.EPGRefreshTotal.WithLabelValues("success").Inc()
	m.logger.Info().
		Str("url", url).
		Int("channels", len(byChannel)).
		Int("programmes", len(parsed.Entries)).
		Msg("guide refreshed")
	return nil
}

// annotateChannels updates the denormalized guide fields on channels
// covered by the fetched guide. Channels join by tvg-id first; those
// without one fall back to a fuzzy display-name match.
func (m *Manager) annotateChannels(ctx context.Context, tx store.Store, byChannel map[string][]content.EPGEntry, nameIndex map[string]string, refreshedAt time.Time) error {
	channels, err := tx.Channels(ctx)
	if err != nil {
		return err
	}
	for i := range channels {
		ch := &channels[i]
		entries, ok := byChannel[ch.TvgID]
		if ch.TvgID == "" || !ok {
			guideID, found := xmltv.FindBest(ch.Name, nameIndex, fuzzyMaxDist)
			if !found {
				continue
			}
			if entries, ok = byChannel[guideID]; !ok {
				continue
			}
			m.logger.Debug().
				Str("channel", ch.Name).
				Str("guide_id", guideID).
				Msg("guide joined by display name")
		}
		ch.HasEPG = true
		ch.EPGLastUpdated = refreshedAt
		if current := currentOf(entries, refreshedAt); current != nil {
			ch.CurrentProgramTitle = current.Title
		}
		if err := tx.SaveChannel(ctx, ch); err != nil {
			return err
		}
	}
	return nil
}

func currentOf(entries []content.EPGEntry, at time.Time) *content.EPGEntry {
	for i := range entries {
		if !entries[i].Start.After(at) && entries[i].Stop.After(at) {
			return &entries[i]
		}
	}
	return nil
}

// Programmes returns stored guide entries for channelID overlapping
// [from, to), sorted by start. Freshness never gates this read.
func (m *Manager) Programmes(ctx context.Context, channelID string, from, to time.Time) ([]content.EPGEntry, error) {
	return m.store.Programmes(ctx, channelID, from, to)
}

// NowNext returns the running programme and its successor for
// channelID. Either may be nil when the guide has no coverage.
func (m *Manager) NowNext(ctx context.Context, channelID string) (now, next *content.EPGEntry, err error) {
	at := m.now()

	entries, ok := m.hot.Get(channelID)
	if !ok {
		// One day of guide is plenty for now/next.
		entries, err = m.store.Programmes(ctx, channelID, at.Add(-6*time.Hour), at.Add(18*time.Hour))
		if err != nil {
			return nil, nil, err
		}
		m.hot.Set(channelID, entries, hotTTL)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Start.Before(entries[j].Start) })
	for i := range entries {
		e := entries[i]
		if !e.Start.After(at) && e.Stop.After(at) {
			now = &entries[i]
			if i+1 < len(entries) {
				next = &entries[i+1]
			}
			return now, next, nil
		}
		if e.Start.After(at) {
			return nil, &entries[i], nil
		}
	}
	return nil, nil, nil
}

// PurgeExpired deletes programmes that ended more than a day ago. This
// is explicit maintenance, never triggered by queries.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-retentionWindow)
	n, err := m.store.PurgeProgrammesBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.hot.Clear()
		metrics.CacheOpsTotal.WithLabelValues("epg", "expired").Add(float64(n))
	}
	m.logger.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("expired guide entries purged")
	return n, nil
}
