// SPDX-License-Identifier: MIT

// Package importer reconciles parsed feed batches against the catalog
// store. One import run covers exactly one source and commits as a
// single transaction.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/log"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/metrics"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/normalize"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/store"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xerrors"
)

// Importer writes parsed batches into a Store. Imports for the same
// source are mutually exclusive; different sources may run in parallel.
type Importer struct {
	store  store.Store
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an Importer backed by s.
func New(s store.Store) *Importer {
	return &Importer{
		store:  s,
		logger: log.WithComponent("importer"),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (im *Importer) sourceLock(sourceID string) *sync.Mutex {
	im.mu.Lock()
	defer im.mu.Unlock()
	l, ok := im.locks[sourceID]
	if !ok {
		l = &sync.Mutex{}
		im.locks[sourceID] = l
	}
	return l
}

// Import upserts every candidate of batch under sourceID. Existing rows
// matched by (stable ID, source) keep their identity and their watch and
// favorite state; unmatched candidates become new rows. The run is
// atomic: any unrecoverable error rolls every write back.
//
// Importing the same unchanged feed twice yields zero created rows.
func (im *Importer) Import(ctx context.Context, batch *content.Batch, sourceID string) (content.ImportReport, error) {
	report := content.ImportReport{SourceID: sourceID}
	if batch == nil {
		return report, errors.New("importer: nil batch")
	}

	lock := im.sourceLock(sourceID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return report, xerrors.Wrap(xerrors.ErrCancelled, "import "+sourceID, err)
	}

	logger := im.logger.With().Str("source_id", sourceID).Logger()
	start := time.Now()
	report.Warnings = append(report.Warnings, batch.Warnings...)

	err := im.store.WithTx(ctx, func(tx store.Store) error {
		return im.run(ctx, tx, batch, sourceID, &report)
	})
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("import failed, rolled back")
		return content.ImportReport{SourceID: sourceID}, err
	}

	metrics.ImportItemsTotal.WithLabelValues("channel", "created").Add(float64(report.ChannelsCreated))
	metrics.ImportItemsTotal.WithLabelValues("channel", "updated").Add(float64(report.ChannelsUpdated))
	metrics.ImportItemsTotal.WithLabelValues("movie", "created").Add(float64(report.MoviesCreated))
	metrics.ImportItemsTotal.WithLabelValues("movie", "updated").Add(float64(report.MoviesUpdated))
	metrics.ImportItemsTotal.WithLabelValues("series", "created").Add(float64(report.SeriesCreated))
	metrics.ImportItemsTotal.WithLabelValues("series", "updated").Add(float64(report.SeriesUpdated))

	logger.Info().
		Int("created", report.Created()).
		Int("updated", report.Updated()).
		Int("episodes", report.EpisodesLinked).
		Int("warnings", len(report.Warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("import committed")
	return report, nil
}

// pendingEpisode is an episode candidate whose series has not been seen
// yet. Feed ordering is not guaranteed, so these are buffered and
// retried once the whole batch has been walked.
type pendingEpisode struct {
	episode     content.Episode
	seriesTitle string
	seasonNum   int
}

func (im *Importer) run(ctx context.Context, tx store.Store, batch *content.Batch, sourceID string, report *content.ImportReport) error {
	seriesByKey := make(map[string]*content.Series)
	var pending []pendingEpisode

	for i := range batch.Candidates {
		if err := ctx.Err(); err != nil {
			return xerrors.Wrap(xerrors.ErrCancelled, "import "+sourceID, err)
		}
		cand := &batch.Candidates[i]
		switch cand.Kind {
		case content.KindChannel:
			if err := im.upsertChannel(ctx, tx, cand.Channel, sourceID, report); err != nil {
				return err
			}
		case content.KindMovie:
			if err := im.upsertMovie(ctx, tx, cand.Movie, sourceID, report); err != nil {
				return err
			}
		case content.KindSeries:
			sr, err := im.mergeSeries(ctx, tx, cand.Series, sourceID, report)
			if err != nil {
				return err
			}
			seriesByKey[normalize.Title(sr.Title)] = sr
		case content.KindEpisode:
			p := pendingEpisode{episode: *cand.Episode, seriesTitle: cand.SeriesTitle, seasonNum: cand.SeasonNum}
			if sr, ok := seriesByKey[normalize.Title(p.seriesTitle)]; ok {
				linkEpisode(sr, p)
				report.EpisodesLinked++
			} else {
				pending = append(pending, p)
			}
		default:
			report.Warnings = append(report.Warnings, fmt.Sprintf("unknown candidate kind %q skipped", cand.Kind))
		}
	}

	// Second pass: forward references resolve once every series of the
	// batch is known.
	for _, p := range pending {
		if sr, ok := seriesByKey[normalize.Title(p.seriesTitle)]; ok {
			linkEpisode(sr, p)
			report.EpisodesLinked++
			continue
		}
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("episode %d of unknown series %q dropped", p.episode.Number, p.seriesTitle))
	}

	for _, sr := range seriesByKey {
		sortSeasons(sr)
		if err := tx.SaveSeries(ctx, sr); err != nil {
			return err
		}
	}
	return nil
}

// sortSeasons fixes the stored ordering so re-importing a reshuffled
// feed converges to the same graph.
func sortSeasons(sr *content.Series) {
	sort.Slice(sr.Seasons, func(i, j int) bool { return sr.Seasons[i].Number < sr.Seasons[j].Number })
	for i := range sr.Seasons {
		eps := sr.Seasons[i].Episodes
		sort.Slice(eps, func(a, b int) bool { return eps[a].Number < eps[b].Number })
	}
}

func (im *Importer) upsertChannel(ctx context.Context, tx store.Store, cand *content.Channel, sourceID string, report *content.ImportReport) error {
	cand.SourceID = sourceID
	if cand.StableID == "" {
		cand.StableID = normalize.StableID(cand.Name, sourceID)
	}
	for i := range cand.Variants {
		if cand.Variants[i].SourceID == "" {
			cand.Variants[i].SourceID = sourceID
		}
	}

	existing, err := tx.ChannelByIdentity(ctx, cand.StableID, cand.SourceID)
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		sortVariants(cand.Variants)
		report.ChannelsCreated++
		return tx.SaveChannel(ctx, cand)
	case err != nil:
		return err
	}

	existing.Name = cand.Name
	existing.LogoURL = cand.LogoURL
	existing.TvgID = cand.TvgID
	existing.Group = cand.Group
	existing.Variants = mergeVariants(existing.Variants, cand.Variants)
	report.ChannelsUpdated++
	return tx.SaveChannel(ctx, existing)
}

// mergeVariants unions by stream URL, incoming values winning, and
// returns the union in canonical order so stored variant sets converge
// regardless of feed order across imports.
func mergeVariants(stored, incoming []content.ChannelVariant) []content.ChannelVariant {
	seen := make(map[string]int, len(incoming))
	var out []content.ChannelVariant
	for _, v := range incoming {
		if _, dup := seen[v.StreamURL]; dup {
			continue
		}
		seen[v.StreamURL] = len(out)
		out = append(out, v)
	}
	for _, v := range stored {
		if _, kept := seen[v.StreamURL]; !kept {
			seen[v.StreamURL] = len(out)
			out = append(out, v)
		}
	}
	sortVariants(out)
	return out
}

// sortVariants fixes the stored variant ordering, same reason as
// sortSeasons.
func sortVariants(variants []content.ChannelVariant) {
	sort.Slice(variants, func(i, j int) bool {
		if variants[i].Name != variants[j].Name {
			return variants[i].Name < variants[j].Name
		}
		return variants[i].StreamURL < variants[j].StreamURL
	})
}

func (im *Importer) upsertMovie(ctx context.Context, tx store.Store, cand *content.Movie, sourceID string, report *content.ImportReport) error {
	cand.SourceID = sourceID
	if cand.StableID == "" {
		cand.StableID = normalize.StableID(cand.Title, sourceID)
	}

	existing, err := tx.MovieByIdentity(ctx, cand.StableID, cand.SourceID)
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		report.MoviesCreated++
		return tx.SaveMovie(ctx, cand)
	case err != nil:
		return err
	}

	// Watched and favorite state belongs to the user, not the feed.
	cand.Watched = existing.Watched
	cand.Favorite = existing.Favorite
	report.MoviesUpdated++
	return tx.SaveMovie(ctx, cand)
}

// mergeSeries returns the working copy for this batch: the stored row
// refreshed from the candidate, or the candidate itself when new.
func (im *Importer) mergeSeries(ctx context.Context, tx store.Store, cand *content.Series, sourceID string, report *content.ImportReport) (*content.Series, error) {
	cand.SourceID = sourceID
	if cand.StableID == "" {
		cand.StableID = normalize.StableID(cand.Title, sourceID)
	}

	existing, err := tx.SeriesByIdentity(ctx, cand.StableID, cand.SourceID)
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		report.SeriesCreated++
		return cand, nil
	case err != nil:
		return nil, err
	}

	existing.Title = cand.Title
	existing.PosterURL = cand.PosterURL
	existing.Year = cand.Year
	for _, season := range cand.Seasons {
		for _, ep := range season.Episodes {
			linkEpisode(existing, pendingEpisode{episode: ep, seasonNum: season.Number})
		}
	}
	report.SeriesUpdated++
	return existing, nil
}

// linkEpisode places the episode under its season, creating the season
// on first use. An episode with the same number replaces the stored one
// so repeated imports stay idempotent.
func linkEpisode(sr *content.Series, p pendingEpisode) {
	var season *content.Season
	for i := range sr.Seasons {
		if sr.Seasons[i].Number == p.seasonNum {
			season = &sr.Seasons[i]
			break
		}
	}
	if season == nil {
		sr.Seasons = append(sr.Seasons, content.Season{Number: p.seasonNum})
		season = &sr.Seasons[len(sr.Seasons)-1]
	}
	for i := range season.Episodes {
		if season.Episodes[i].Number == p.episode.Number {
			season.Episodes[i] = p.episode
			return
		}
	}
	season.Episodes = append(season.Episodes, p.episode)
}
