// SPDX-License-Identifier: MIT

// Package content defines the canonical entities the ingestion pipeline
// produces and the transient candidate records the parsers emit.
package content

import "time"

// Channel is a live TV channel. StableID+SourceID uniquely identify a
// stored row; VariantCount must equal the number of live variant rows
// after any mutation.
type Channel struct {
	StableID string
	SourceID string

	Name    string
	LogoURL string
	TvgID   string
	Group   string

	VariantCount        int
	HasEPG              bool
	CurrentProgramTitle string
	EPGLastUpdated      time.Time

	Variants []ChannelVariant
}

// ChannelVariant is an alternate stream URL for the same channel, e.g. a
// different quality tier or mirror. Owned exclusively by one Channel.
type ChannelVariant struct {
	Name      string
	StreamURL string
	SourceID  string
}

// Movie is a VOD title.
type Movie struct {
	StableID string
	SourceID string

	Title      string
	PosterURL  string
	StreamURL  string
	PreviewURL string
	IMDbID     string
	Year       int
	Rating     float64
	Genres     []string

	Watched  bool
	Favorite bool
}

// Series is a show owning seasons which own episodes.
type Series struct {
	StableID string
	SourceID string

	Title     string
	PosterURL string
	Year      int

	TotalEpisodeCount     int
	SeasonCount           int
	UnwatchedEpisodeCount int

	Seasons []Season
}

// Season is uniquely identified by (series, Number).
type Season struct {
	Number   int
	Episodes []Episode
}

// Episode is uniquely identified by (season, Number).
type Episode struct {
	Number    int
	Title     string
	StreamURL string
	Airdate   string
}

// EPGEntry is one guide programme, owned by exactly one channel.
// Invariant: Start before Stop. Queries assume sorted-by-start ordering.
type EPGEntry struct {
	ChannelID string // raw guide channel attribute, joined against Channel.TvgID
	Title     string
	Desc      string
	Category  string
	Start     time.Time
	Stop      time.Time
}

// SourceType distinguishes the two supported feed wire formats.
type SourceType string

const (
	SourceM3U    SourceType = "m3u"
	SourceXtream SourceType = "xtream"
)

// PlaylistSource is one configured feed. DisplayOrder is unique per
// profile and re-sequenced on move or delete.
type PlaylistSource struct {
	ID        string // UUID
	ProfileID string
	Name      string
	Type      SourceType
	URL       string

	Username string
	Password string

	IsActive      bool
	DisplayOrder  int
	LastRefreshed time.Time
	LastError     string

	EPGURL string
}

// SourceMode governs whether grouping merges content across sources.
type SourceMode string

const (
	SourceModeCombined SourceMode = "combined"
	SourceModeSingle   SourceMode = "single"
)

// Profile owns playlist sources, favorites and watch history.
type Profile struct {
	ID         string
	Name       string
	SourceMode SourceMode
	Sources    []PlaylistSource
}

// Favorite marks a movie for a profile. At most one per (movie, profile).
type Favorite struct {
	ProfileID  string
	StableID   string
	SourceID   string
	ModifiedAt time.Time
}

// WatchHistory records playback progress. At most one per (movie, profile).
type WatchHistory struct {
	ProfileID  string
	StableID   string
	SourceID   string
	Position   time.Duration
	Duration   time.Duration
	ModifiedAt time.Time
}
