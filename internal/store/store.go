// SPDX-License-Identifier: MIT

// Package store is the persistent object store behind the ingestion
// pipeline. Two implementations exist: a sqlite-backed store for
// production and an in-memory store for tests and ephemeral use, built
// from the same conformance contract.
//
// Concurrency model: one logical writer per store instance. Mutations
// are serialized (sqlite: single write connection in WAL mode; memory:
// one mutex); readers may observe pre- or post-transaction state but
// never a partial import.
package store

import (
	"context"
	"time"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
)

// Store is the typed persistence surface the import coordinator, cache
// managers and grouping queries run against.
type Store interface {
	// Content rows, identified by (stable ID, source ID).
	ChannelByIdentity(ctx context.Context, stableID, sourceID string) (*content.Channel, error)
	SaveChannel(ctx context.Context, ch *content.Channel) error
	Channels(ctx context.Context, sourceIDs ...string) ([]content.Channel, error)

	MovieByIdentity(ctx context.Context, stableID, sourceID string) (*content.Movie, error)
	SaveMovie(ctx context.Context, m *content.Movie) error
	Movies(ctx context.Context, sourceIDs ...string) ([]content.Movie, error)

	SeriesByIdentity(ctx context.Context, stableID, sourceID string) (*content.Series, error)
	SaveSeries(ctx context.Context, s *content.Series) error
	AllSeries(ctx context.Context, sourceIDs ...string) ([]content.Series, error)

	// CountBySource reports stored channel+movie+series rows for one source.
	CountBySource(ctx context.Context, sourceID string) (int, error)
	// DeleteSourceContent removes every content row owned by sourceID.
	// Content reachable from other sources via grouping is untouched:
	// grouping is a presentation-time join, not a foreign key.
	DeleteSourceContent(ctx context.Context, sourceID string) error

	// Guide entries, keyed by the raw guide channel ID.
	ReplaceProgrammes(ctx context.Context, channelID string, entries []content.EPGEntry) error
	Programmes(ctx context.Context, channelID string, from, to time.Time) ([]content.EPGEntry, error)
	PurgeProgrammesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Playlist sources, ordered per profile.
	SaveSource(ctx context.Context, src *content.PlaylistSource) error
	Sources(ctx context.Context, profileID string) ([]content.PlaylistSource, error)
	// DeleteSource removes the source row, cascades to its content and
	// re-sequences the profile's display order without gaps.
	DeleteSource(ctx context.Context, profileID, sourceID string) error

	// WithTx runs fn inside one transaction; fn's store view commits
	// atomically or not at all. The per-source import runs here.
	WithTx(ctx context.Context, fn func(Store) error) error

	Close() error
}
