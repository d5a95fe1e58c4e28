// SPDX-License-Identifier: MIT

// Package jobs orchestrates source refreshes: fetch, parse, import and
// guide refresh, phase by phase with cancellation checks in between.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/epgcache"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/fetch"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/log"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/m3u"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/metrics"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/playlistcache"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/store"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xerrors"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xtream"
)

// Status summarizes one source refresh.
type Status struct {
	SourceID string               `json:"source_id"`
	LastRun  time.Time            `json:"last_run"`
	Report   content.ImportReport `json:"report"`
	Error    string               `json:"error,omitempty"`
	Skipped  bool                 `json:"skipped,omitempty"`
}

// Importer is the batch import coordinator surface the runner needs.
type Importer interface {
	Import(ctx context.Context, batch *content.Batch, sourceID string) (content.ImportReport, error)
}

// Runner drives the refresh pipeline for one engine instance.
type Runner struct {
	store    store.Store
	importer Importer
	fetcher  *fetch.Client
	plCache  *playlistcache.Cache
	epg      *epgcache.Manager
	logger   zerolog.Logger

	epgEnabled    bool
	maxConcurrent int

	// catalog fetches an Xtream source's full catalog. Swappable in
	// tests to avoid a fake panel server.
	catalog func(ctx context.Context, src content.PlaylistSource) (*content.Batch, error)
}

// Options configures a Runner.
type Options struct {
	Store         store.Store
	Importer      Importer
	Fetcher       *fetch.Client
	PlaylistCache *playlistcache.Cache
	EPG           *epgcache.Manager
	EPGEnabled    bool
	MaxConcurrent int
}

// NewRunner wires the refresh pipeline.
func NewRunner(opts Options) *Runner {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	r := &Runner{
		store:         opts.Store,
		importer:      opts.Importer,
		fetcher:       opts.Fetcher,
		plCache:       opts.PlaylistCache,
		epg:           opts.EPG,
		logger:        log.WithComponent("jobs"),
		epgEnabled:    opts.EPGEnabled,
		maxConcurrent: opts.MaxConcurrent,
	}
	r.catalog = r.fetchXtream
	return r
}

// RefreshSource runs the full pipeline for one source: fetch (through
// the playlist cache for M3U), parse, import, then guide refresh.
// Cancellation is honored between phases; the import itself is atomic.
func (r *Runner) RefreshSource(ctx context.Context, src content.PlaylistSource) (*Status, error) {
	logger := r.logger.With().Str("source_id", src.ID).Str("type", string(src.Type)).Logger()
	logger.Info().Str("event", "refresh.start").Msg("starting source refresh")

	start := time.Now()
	status := &Status{SourceID: src.ID, LastRun: start}

	batch, err := r.loadBatch(ctx, src)
	if err != nil {
		return r.finish(ctx, src, status, err)
	}
	for range batch.Warnings {
		metrics.ParseWarningsTotal.WithLabelValues(string(src.Type)).Inc()
	}

	if err := ctx.Err(); err != nil {
		return r.finish(ctx, src, status, xerrors.Wrap(xerrors.ErrCancelled, "refresh "+src.ID, err))
	}

	report, err := r.importer.Import(ctx, batch, src.ID)
	if err != nil {
		return r.finish(ctx, src, status, err)
	}
	status.Report = report

	if err := ctx.Err(); err != nil {
		return r.finish(ctx, src, status, xerrors.Wrap(xerrors.ErrCancelled, "refresh "+src.ID, err))
	}

	if epgURL := pickEPGURL(src, batch); r.epgEnabled && r.epg != nil && epgURL != "" {
		if err := r.epg.RefreshIfStale(ctx, epgURL, false); err != nil {
			// A dead guide does not fail the import that already committed.
			logger.Warn().Err(err).Str("url", epgURL).Msg("guide refresh failed")
			status.Report.Warnings = append(status.Report.Warnings,
				fmt.Sprintf("guide refresh failed: %s", xerrors.UserMessage(err)))
		}
	}

	metrics.ImportDuration.WithLabelValues(string(src.Type)).Observe(time.Since(start).Seconds())
	logger.Info().
		Str("event", "refresh.done").
		Int("created", status.Report.Created()).
		Int("updated", status.Report.Updated()).
		Dur("elapsed", time.Since(start)).
		Msg("source refresh finished")
	return r.finish(ctx, src, status, nil)
}

// finish records the outcome on the source row and shapes the return.
func (r *Runner) finish(ctx context.Context, src content.PlaylistSource, status *Status, runErr error) (*Status, error) {
	outcome := "success"
	if runErr != nil {
		outcome = "failure"
		if xerrors.Categorize(runErr) == xerrors.CategoryCancelled {
			outcome = "canceled"
		}
		status.Error = xerrors.UserMessage(runErr)
	}
	metrics.ImportRunsTotal.WithLabelValues(string(src.Type), outcome).Inc()

	src.LastRefreshed = status.LastRun
	src.LastError = status.Error
	// Persist the outcome even when the run was canceled, on a context
	// that is still alive.
	saveCtx := ctx
	if saveCtx.Err() != nil {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := r.store.SaveSource(saveCtx, &src); err != nil {
		r.logger.Error().Err(err).Str("source_id", src.ID).Msg("failed to record refresh outcome")
	}
	return status, runErr
}

// loadBatch produces the candidate batch for one source, consulting the
// playlist byte cache for M3U feeds.
func (r *Runner) loadBatch(ctx context.Context, src content.PlaylistSource) (*content.Batch, error) {
	switch src.Type {
	case content.SourceM3U:
		raw, err := r.loadM3UBytes(ctx, src)
		if err != nil {
			return nil, err
		}
		res, err := m3u.ParseBytes(raw)
		if err != nil {
			return nil, err
		}
		return res.Batch(), nil
	case content.SourceXtream:
		return r.catalog(ctx, src)
	default:
		return nil, fmt.Errorf("jobs: unknown source type %q", src.Type)
	}
}

func (r *Runner) loadM3UBytes(ctx context.Context, src content.PlaylistSource) ([]byte, error) {
	ioCtx := playlistcache.WithBackgroundIO(ctx)
	if r.plCache != nil {
		if data, _, ok, err := r.plCache.Get(ioCtx, src.URL, src.ID); err == nil && ok {
			r.logger.Debug().Str("source_id", src.ID).Msg("playlist served from cache")
			return data, nil
		}
	}

	data, err := r.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	if r.plCache != nil {
		epgURL := src.EPGURL
		if epgURL == "" {
			if res, perr := m3u.ParseBytes(data); perr == nil {
				epgURL = res.EPGURL
			}
		}
		if err := r.plCache.Put(ioCtx, src.URL, src.ID, data, epgURL); err != nil {
			r.logger.Warn().Err(err).Str("source_id", src.ID).Msg("playlist cache write failed")
		}
	}
	return data, nil
}

func (r *Runner) fetchXtream(ctx context.Context, src content.PlaylistSource) (*content.Batch, error) {
	opts := []xtream.Option{}
	if r.fetcher != nil {
		opts = append(opts, xtream.WithFetcher(r.fetcher))
	}
	client := xtream.New(src.URL, src.Username, src.Password, opts...)
	res, err := client.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	batch := res.Batch()
	for action, endpointErr := range res.EndpointErrors {
		batch.Warnings = append(batch.Warnings,
			fmt.Sprintf("%s failed: %s", action, xerrors.UserMessage(endpointErr)))
	}
	return batch, nil
}

func pickEPGURL(src content.PlaylistSource, batch *content.Batch) string {
	if src.EPGURL != "" {
		return src.EPGURL
	}
	return batch.EPGURL
}

// RefreshAll refreshes every active source of the profile. Distinct
// sources run concurrently up to the configured limit; one failing
// source never aborts the others. The per-source outcome lands in the
// returned statuses and on each source row.
func (r *Runner) RefreshAll(ctx context.Context, profileID string) ([]Status, error) {
	sources, err := r.store.Sources(ctx, profileID)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)

	for i, src := range sources {
		i, src := i, src
		if !src.IsActive {
			statuses[i] = Status{SourceID: src.ID, Skipped: true}
			continue
		}
		g.Go(func() error {
			status, err := r.RefreshSource(gctx, src)
			if err != nil {
				// Recorded in the status; only cancellation propagates.
				if xerrors.Categorize(err) == xerrors.CategoryCancelled {
					statuses[i] = *status
					return err
				}
			}
			statuses[i] = *status
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return statuses, err
	}
	return statuses, nil
}
