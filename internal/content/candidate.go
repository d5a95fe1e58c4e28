// SPDX-License-Identifier: MIT

package content

// CandidateKind tags the variant payload of a Candidate.
type CandidateKind string

const (
	KindChannel CandidateKind = "channel"
	KindMovie   CandidateKind = "movie"
	KindSeries  CandidateKind = "series"
	KindEpisode CandidateKind = "episode"
)

// Candidate is a parsed-but-not-yet-persisted feed entry. Exactly one of
// the payload fields matching Kind is set; the import coordinator
// switches on Kind rather than on concrete types.
type Candidate struct {
	Kind CandidateKind

	Channel *Channel
	Movie   *Movie
	Series  *Series

	// Episode payload carries its natural parent key because feed
	// ordering is not guaranteed: an episode may arrive before its
	// series or season exists.
	Episode     *Episode
	SeriesTitle string
	SeasonNum   int
}

// Batch is the complete output of parsing one source's feed.
type Batch struct {
	Candidates []Candidate
	EPGURL     string
	Warnings   []string
}

// ImportReport summarizes one import run of a single source.
type ImportReport struct {
	SourceID string

	ChannelsCreated int
	ChannelsUpdated int
	MoviesCreated   int
	MoviesUpdated   int
	SeriesCreated   int
	SeriesUpdated   int
	EpisodesLinked  int

	Warnings []string
}

// Created returns the total number of newly inserted rows.
func (r ImportReport) Created() int {
	return r.ChannelsCreated + r.MoviesCreated + r.SeriesCreated
}

// Updated returns the total number of rows updated in place.
func (r ImportReport) Updated() int {
	return r.ChannelsUpdated + r.MoviesUpdated + r.SeriesUpdated
}
