// SPDX-License-Identifier: MIT

// streamhaven runs one refresh sweep over every active playlist source
// of a profile: fetch, parse, import, guide refresh. It is a thin shell
// around the internal packages; the same wiring embeds into a larger
// application.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/config"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/epgcache"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/fetch"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/importer"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/jobs"
	shlog "github.com/asrawiee-collab/StreamHaven-sub004/internal/log"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/playlistcache"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/store"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/streamcache"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	profileID := flag.String("profile", "default", "profile whose sources to refresh")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "streamhaven: %v\n", err)
		os.Exit(1)
	}

	shlog.Configure(shlog.Config{
		Level:   cfg.LogLevel,
		Service: "streamhaven",
	})
	logger := shlog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open catalog store")
	}
	defer func() { _ = st.Close() }()

	plCache, err := playlistcache.New(filepath.Join(cfg.DataDir, "playlists"))
	if err != nil {
		logger.Fatal().Err(err).Msg("open playlist cache")
	}

	fetcher := fetch.New(
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithTimeout(cfg.FetchTimeout()),
		fetch.WithRetryPolicy(cfg.Fetch.Retries, cfg.FetchBackoff(), cfg.FetchMaxBackoff()),
	)

	hot := buildHotCache(cfg, logger)
	epg := epgcache.NewManager(st, fetcher, hot)

	runner := jobs.NewRunner(jobs.Options{
		Store:         st,
		Importer:      importer.New(st),
		Fetcher:       fetcher,
		PlaylistCache: plCache,
		EPG:           epg,
		EPGEnabled:    cfg.EPGEnabled(),
		MaxConcurrent: cfg.Refresh.MaxConcurrent,
	})

	statuses, err := runner.RefreshAll(ctx, *profileID)
	if err != nil {
		logger.Error().Err(err).Msg("refresh sweep aborted")
		os.Exit(1)
	}
	failed := 0
	for _, status := range statuses {
		if status.Error != "" {
			failed++
		}
	}

	runMaintenance(ctx, cfg, epg, logger)

	logger.Info().
		Int("sources", len(statuses)).
		Int("failed", failed).
		Msg("refresh sweep finished")
	if failed > 0 {
		os.Exit(2)
	}
}

// runMaintenance drops guide entries past the retention window and
// expired stream resume rows. Failures are logged, never fatal.
func runMaintenance(ctx context.Context, cfg *config.Config, epg *epgcache.Manager, logger zerolog.Logger) {
	if n, err := epg.PurgeExpired(ctx); err != nil {
		logger.Warn().Err(err).Msg("guide purge failed")
	} else if n > 0 {
		logger.Info().Int64("entries", n).Msg("purged expired guide entries")
	}

	resume, err := streamcache.NewStore(cfg.Cache.StreamBackend, cfg.DataDir)
	if err != nil {
		logger.Warn().Err(err).Msg("open stream resume store")
		return
	}
	defer func() { _ = resume.Close() }()
	if n, err := resume.ClearExpired(ctx); err != nil {
		logger.Warn().Err(err).Msg("stream resume cleanup failed")
	} else if n > 0 {
		logger.Info().Int64("entries", n).Msg("cleared expired stream resume rows")
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Backend == "memory" {
		return store.NewMemoryStore(), nil
	}
	sqliteCfg := store.DefaultSQLiteConfig()
	sqliteCfg.BusyTimeout = cfg.StoreBusyTimeout()
	return store.OpenSQLite(filepath.Join(cfg.DataDir, "catalog.db"), sqliteCfg)
}

// buildHotCache picks the now/next cache layer: Redis when configured,
// otherwise an in-process cache with a background janitor.
func buildHotCache(cfg *config.Config, logger zerolog.Logger) epgcache.ProgrammeCache {
	if cfg.Redis.Addr == "" {
		return epgcache.NewMemoryCache(time.Minute)
	}
	rc, err := epgcache.NewRedisCache(epgcache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).
			Msg("redis unavailable, using in-memory guide cache")
		return epgcache.NewMemoryCache(time.Minute)
	}
	return rc
}
