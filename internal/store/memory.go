// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xerrors"
)

type identity struct {
	stableID string
	sourceID string
}

// MemoryStore keeps everything in maps behind one mutex. Transactions
// hold the mutex end to end and restore a snapshot when fn fails, which
// gives the same all-or-nothing visibility the sqlite store provides.
type MemoryStore struct {
	mu sync.RWMutex

	channels map[identity]content.Channel
	movies   map[identity]content.Movie
	series   map[identity]content.Series
	epg      map[string][]content.EPGEntry
	sources  map[string]content.PlaylistSource

	inTx bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		channels: make(map[identity]content.Channel),
		movies:   make(map[identity]content.Movie),
		series:   make(map[identity]content.Series),
		epg:      make(map[string][]content.EPGEntry),
		sources:  make(map[string]content.PlaylistSource),
	}
}

func (s *MemoryStore) ChannelByIdentity(_ context.Context, stableID, sourceID string) (*content.Channel, error) {
	s.rlock()
	defer s.runlock()
	ch, ok := s.channels[identity{stableID, sourceID}]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	out := cloneChannel(ch)
	return &out, nil
}

func (s *MemoryStore) SaveChannel(_ context.Context, ch *content.Channel) error {
	s.lock()
	defer s.unlock()
	saved := cloneChannel(*ch)
	saved.VariantCount = len(saved.Variants)
	s.channels[identity{ch.StableID, ch.SourceID}] = saved
	ch.VariantCount = saved.VariantCount
	return nil
}

func (s *MemoryStore) Channels(_ context.Context, sourceIDs ...string) ([]content.Channel, error) {
	s.rlock()
	defer s.runlock()
	var out []content.Channel
	for id, ch := range s.channels {
		if matchesSource(id.sourceID, sourceIDs) {
			out = append(out, cloneChannel(ch))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

func (s *MemoryStore) MovieByIdentity(_ context.Context, stableID, sourceID string) (*content.Movie, error) {
	s.rlock()
	defer s.runlock()
	m, ok := s.movies[identity{stableID, sourceID}]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	out := cloneMovie(m)
	return &out, nil
}

func (s *MemoryStore) SaveMovie(_ context.Context, m *content.Movie) error {
	s.lock()
	defer s.unlock()
	s.movies[identity{m.StableID, m.SourceID}] = cloneMovie(*m)
	return nil
}

func (s *MemoryStore) Movies(_ context.Context, sourceIDs ...string) ([]content.Movie, error) {
	s.rlock()
	defer s.runlock()
	var out []content.Movie
	for id, m := range s.movies {
		if matchesSource(id.sourceID, sourceIDs) {
			out = append(out, cloneMovie(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

func (s *MemoryStore) SeriesByIdentity(_ context.Context, stableID, sourceID string) (*content.Series, error) {
	s.rlock()
	defer s.runlock()
	sr, ok := s.series[identity{stableID, sourceID}]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	out := cloneSeries(sr)
	return &out, nil
}

func (s *MemoryStore) SaveSeries(_ context.Context, sr *content.Series) error {
	s.lock()
	defer s.unlock()
	saved := cloneSeries(*sr)
	recountSeries(&saved)
	s.series[identity{sr.StableID, sr.SourceID}] = saved
	sr.SeasonCount = saved.SeasonCount
	sr.TotalEpisodeCount = saved.TotalEpisodeCount
	return nil
}

func (s *MemoryStore) AllSeries(_ context.Context, sourceIDs ...string) ([]content.Series, error) {
	s.rlock()
	defer s.runlock()
	var out []content.Series
	for id, sr := range s.series {
		if matchesSource(id.sourceID, sourceIDs) {
			out = append(out, cloneSeries(sr))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

func (s *MemoryStore) CountBySource(_ context.Context, sourceID string) (int, error) {
	s.rlock()
	defer s.runlock()
	n := 0
	for id := range s.channels {
		if id.sourceID == sourceID {
			n++
		}
	}
	for id := range s.movies {
		if id.sourceID == sourceID {
			n++
		}
	}
	for id := range s.series {
		if id.sourceID == sourceID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteSourceContent(_ context.Context, sourceID string) error {
	s.lock()
	defer s.unlock()
	for id := range s.channels {
		if id.sourceID == sourceID {
			delete(s.channels, id)
		}
	}
	for id := range s.movies {
		if id.sourceID == sourceID {
			delete(s.movies, id)
		}
	}
	for id := range s.series {
		if id.sourceID == sourceID {
			delete(s.series, id)
		}
	}
	return nil
}

func (s *MemoryStore) ReplaceProgrammes(_ context.Context, channelID string, entries []content.EPGEntry) error {
	s.lock()
	defer s.unlock()
	sorted := make([]content.EPGEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	s.epg[channelID] = sorted
	return nil
}

func (s *MemoryStore) Programmes(_ context.Context, channelID string, from, to time.Time) ([]content.EPGEntry, error) {
	s.rlock()
	defer s.runlock()
	var out []content.EPGEntry
	for _, e := range s.epg[channelID] {
		// Overlap query: any programme intersecting [from, to).
		if e.Stop.After(from) && e.Start.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) PurgeProgrammesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.lock()
	defer s.unlock()
	var purged int64
	for ch, entries := range s.epg {
		kept := entries[:0]
		for _, e := range entries {
			if e.Stop.Before(cutoff) {
				purged++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.epg, ch)
			continue
		}
		s.epg[ch] = kept
	}
	return purged, nil
}

func (s *MemoryStore) SaveSource(_ context.Context, src *content.PlaylistSource) error {
	s.lock()
	defer s.unlock()
	s.sources[src.ID] = *src
	return nil
}

func (s *MemoryStore) Sources(_ context.Context, profileID string) ([]content.PlaylistSource, error) {
	s.rlock()
	defer s.runlock()
	var out []content.PlaylistSource
	for _, src := range s.sources {
		if src.ProfileID == profileID {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (s *MemoryStore) DeleteSource(ctx context.Context, profileID, sourceID string) error {
	s.lock()
	src, ok := s.sources[sourceID]
	if !ok || src.ProfileID != profileID {
		s.unlock()
		return xerrors.ErrNotFound
	}
	delete(s.sources, sourceID)
	// Re-sequence remaining display orders without gaps.
	var remaining []content.PlaylistSource
	for _, other := range s.sources {
		if other.ProfileID == profileID {
			remaining = append(remaining, other)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].DisplayOrder < remaining[j].DisplayOrder })
	for i, other := range remaining {
		other.DisplayOrder = i
		s.sources[other.ID] = other
	}
	s.unlock()
	return s.DeleteSourceContent(ctx, sourceID)
}

// WithTx runs fn under the store mutex, held for the whole transaction.
// Transactions serialize against each other and against plain reads, so
// no caller observes partial writes and a rollback can only ever undo
// this transaction's own changes. Nested calls join the open
// transaction.
func (s *MemoryStore) WithTx(_ context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.snapshotLocked()
	tx := &MemoryStore{
		channels: s.channels,
		movies:   s.movies,
		series:   s.series,
		epg:      s.epg,
		sources:  s.sources,
		inTx:     true,
	}
	if err := fn(tx); err != nil {
		s.restoreLocked(snapshot)
		return err
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Transactional sub-stores share the parent maps and run under the
// parent's logical write exclusivity; they skip their own locking.
func (s *MemoryStore) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}
func (s *MemoryStore) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}
func (s *MemoryStore) rlock() {
	if !s.inTx {
		s.mu.RLock()
	}
}
func (s *MemoryStore) runlock() {
	if !s.inTx {
		s.mu.RUnlock()
	}
}

type memorySnapshot struct {
	channels map[identity]content.Channel
	movies   map[identity]content.Movie
	series   map[identity]content.Series
	epg      map[string][]content.EPGEntry
	sources  map[string]content.PlaylistSource
}

func (s *MemoryStore) snapshotLocked() memorySnapshot {
	snap := memorySnapshot{
		channels: make(map[identity]content.Channel, len(s.channels)),
		movies:   make(map[identity]content.Movie, len(s.movies)),
		series:   make(map[identity]content.Series, len(s.series)),
		epg:      make(map[string][]content.EPGEntry, len(s.epg)),
		sources:  make(map[string]content.PlaylistSource, len(s.sources)),
	}
	for k, v := range s.channels {
		snap.channels[k] = cloneChannel(v)
	}
	for k, v := range s.movies {
		snap.movies[k] = cloneMovie(v)
	}
	for k, v := range s.series {
		snap.series[k] = cloneSeries(v)
	}
	for k, v := range s.epg {
		entries := make([]content.EPGEntry, len(v))
		copy(entries, v)
		snap.epg[k] = entries
	}
	for k, v := range s.sources {
		snap.sources[k] = v
	}
	return snap
}

func (s *MemoryStore) restoreLocked(snap memorySnapshot) {
	clearMap(s.channels)
	clearMap(s.movies)
	clearMap(s.series)
	clearMap(s.epg)
	clearMap(s.sources)
	for k, v := range snap.channels {
		s.channels[k] = v
	}
	for k, v := range snap.movies {
		s.movies[k] = v
	}
	for k, v := range snap.series {
		s.series[k] = v
	}
	for k, v := range snap.epg {
		s.epg[k] = v
	}
	for k, v := range snap.sources {
		s.sources[k] = v
	}
}

func clearMap[K comparable, V any](m map[K]V) {
	for k := range m {
		delete(m, k)
	}
}

func matchesSource(sourceID string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if strings.EqualFold(f, sourceID) {
			return true
		}
	}
	return false
}

func cloneChannel(ch content.Channel) content.Channel {
	out := ch
	out.Variants = make([]content.ChannelVariant, len(ch.Variants))
	copy(out.Variants, ch.Variants)
	return out
}

func cloneMovie(m content.Movie) content.Movie {
	out := m
	out.Genres = append([]string(nil), m.Genres...)
	return out
}

func cloneSeries(sr content.Series) content.Series {
	out := sr
	out.Seasons = make([]content.Season, len(sr.Seasons))
	for i, season := range sr.Seasons {
		cloned := season
		cloned.Episodes = make([]content.Episode, len(season.Episodes))
		copy(cloned.Episodes, season.Episodes)
		out.Seasons[i] = cloned
	}
	return out
}

func recountSeries(sr *content.Series) {
	sr.SeasonCount = len(sr.Seasons)
	total := 0
	for _, season := range sr.Seasons {
		total += len(season.Episodes)
	}
	sr.TotalEpisodeCount = total
}
