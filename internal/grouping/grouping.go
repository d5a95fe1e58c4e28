// SPDX-License-Identifier: MIT

// Package grouping clusters stored content records that represent the
// same logical title across a profile's active sources. Grouping is a
// presentation-time join: it never mutates stored records and is
// recomputed on demand.
package grouping

import (
	"sort"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/normalize"
)

// Item is anything groupable: movies, series and channels all reduce to
// a display title and an owning source.
type Item interface {
	GroupTitle() string
	GroupSourceID() string
}

// MovieItem adapts a movie for grouping.
type MovieItem struct{ Movie content.Movie }

func (m MovieItem) GroupTitle() string    { return m.Movie.Title }
func (m MovieItem) GroupSourceID() string { return m.Movie.SourceID }

// SeriesItem adapts a series for grouping.
type SeriesItem struct{ Series content.Series }

func (s SeriesItem) GroupTitle() string    { return s.Series.Title }
func (s SeriesItem) GroupSourceID() string { return s.Series.SourceID }

// ChannelItem adapts a channel for grouping by name.
type ChannelItem struct{ Channel content.Channel }

func (c ChannelItem) GroupTitle() string    { return c.Channel.Name }
func (c ChannelItem) GroupSourceID() string { return c.Channel.SourceID }

// ContentGroup is one cluster: a primary item, its alternates from
// other sources, and the set of sources contributing to the group.
type ContentGroup struct {
	Key          string // normalized title; empty only in single mode
	Primary      Item
	Alternatives []Item
	SourceIDs    []string
}

// ItemCount returns primary plus alternates.
func (g ContentGroup) ItemCount() int {
	return 1 + len(g.Alternatives)
}

// Group partitions records per the profile's source mode. In single
// mode every record is its own group. In combined mode records sharing
// a normalized title merge; the first record encountered is the
// primary (callers wanting quality-based ranking re-rank alternates
// with normalize.AssessQuality themselves). Records whose title
// normalizes to the empty string never merge.
func Group(items []Item, mode content.SourceMode) []ContentGroup {
	if mode != content.SourceModeCombined {
		groups := make([]ContentGroup, 0, len(items))
		for _, it := range items {
			groups = append(groups, ContentGroup{
				Key:       normalize.Title(it.GroupTitle()),
				Primary:   it,
				SourceIDs: []string{it.GroupSourceID()},
			})
		}
		sortGroups(groups)
		return groups
	}

	var groups []ContentGroup
	index := make(map[string]int)
	for _, it := range items {
		key := normalize.Title(it.GroupTitle())
		if key == "" {
			// Unmergeable: garbage titles stay their own group.
			groups = append(groups, ContentGroup{
				Primary:   it,
				SourceIDs: []string{it.GroupSourceID()},
			})
			continue
		}
		if i, ok := index[key]; ok {
			g := &groups[i]
			g.Alternatives = append(g.Alternatives, it)
			g.SourceIDs = appendUnique(g.SourceIDs, it.GroupSourceID())
			continue
		}
		index[key] = len(groups)
		groups = append(groups, ContentGroup{
			Key:       key,
			Primary:   it,
			SourceIDs: []string{it.GroupSourceID()},
		})
	}
	sortGroups(groups)
	return groups
}

// GroupMovies is a convenience wrapper over Group.
func GroupMovies(movies []content.Movie, mode content.SourceMode) []ContentGroup {
	items := make([]Item, len(movies))
	for i := range movies {
		items[i] = MovieItem{Movie: movies[i]}
	}
	return Group(items, mode)
}

// GroupSeries is a convenience wrapper over Group.
func GroupSeries(series []content.Series, mode content.SourceMode) []ContentGroup {
	items := make([]Item, len(series))
	for i := range series {
		items[i] = SeriesItem{Series: series[i]}
	}
	return Group(items, mode)
}

// GroupChannels is a convenience wrapper over Group.
func GroupChannels(channels []content.Channel, mode content.SourceMode) []ContentGroup {
	items := make([]Item, len(channels))
	for i := range channels {
		items[i] = ChannelItem{Channel: channels[i]}
	}
	return Group(items, mode)
}

func sortGroups(groups []ContentGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		ki := groups[i].Key
		if ki == "" {
			ki = normalize.Title(groups[i].Primary.GroupTitle())
		}
		kj := groups[j].Key
		if kj == "" {
			kj = normalize.Title(groups[j].Primary.GroupTitle())
		}
		return ki < kj
	})
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
