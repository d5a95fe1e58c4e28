// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
	"github.com/asrawiee-collab/StreamHaven-sub004/internal/xerrors"
)

// SQLiteConfig defines operational parameters for the catalog database.
type SQLiteConfig struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultSQLiteConfig returns the recommended pool settings. WAL allows
// concurrent readers, so the pool is larger than one.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 25,
	}
}

// querier is the common surface of *sql.DB and *sql.Tx. All store
// methods go through it so a transactional sub-store reuses the same
// code paths.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore persists the catalog in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
	q  querier
}

// OpenSQLite opens (creating if missing) the catalog database and runs
// migrations. The mandatory PRAGMAs travel in the DSN so they apply to
// every connection in the pool.
func OpenSQLite(path string, cfg SQLiteConfig) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	s := &SQLiteStore{db: db, q: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS channels (
		stable_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		name TEXT NOT NULL,
		logo_url TEXT NOT NULL DEFAULT '',
		tvg_id TEXT NOT NULL DEFAULT '',
		group_title TEXT NOT NULL DEFAULT '',
		variant_count INTEGER NOT NULL DEFAULT 0,
		has_epg INTEGER NOT NULL DEFAULT 0,
		current_programme TEXT NOT NULL DEFAULT '',
		epg_updated_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (stable_id, source_id)
	);

	CREATE TABLE IF NOT EXISTS channel_variants (
		stable_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		stream_url TEXT NOT NULL,
		variant_source_id TEXT NOT NULL,
		PRIMARY KEY (stable_id, source_id, position),
		FOREIGN KEY (stable_id, source_id) REFERENCES channels(stable_id, source_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS movies (
		stable_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		title TEXT NOT NULL,
		poster_url TEXT NOT NULL DEFAULT '',
		stream_url TEXT NOT NULL DEFAULT '',
		preview_url TEXT NOT NULL DEFAULT '',
		imdb_id TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		rating REAL NOT NULL DEFAULT 0,
		genres TEXT NOT NULL DEFAULT '[]',
		watched INTEGER NOT NULL DEFAULT 0,
		favorite INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (stable_id, source_id)
	);

	CREATE TABLE IF NOT EXISTS series (
		stable_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		title TEXT NOT NULL,
		poster_url TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		episode_count INTEGER NOT NULL DEFAULT 0,
		season_count INTEGER NOT NULL DEFAULT 0,
		unwatched_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (stable_id, source_id)
	);

	CREATE TABLE IF NOT EXISTS episodes (
		stable_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		season INTEGER NOT NULL,
		episode INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		stream_url TEXT NOT NULL DEFAULT '',
		airdate TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (stable_id, source_id, season, episode),
		FOREIGN KEY (stable_id, source_id) REFERENCES series(stable_id, source_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS epg_entries (
		channel_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		start_at TEXT NOT NULL,
		stop_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_epg_channel_start ON epg_entries(channel_id, start_at);
	CREATE INDEX IF NOT EXISTS idx_epg_stop ON epg_entries(stop_at);

	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL CHECK(type IN ('m3u', 'xtream')),
		url TEXT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		password TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		display_order INTEGER NOT NULL DEFAULT 0,
		last_refreshed TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT '',
		epg_url TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_sources_profile ON sources(profile_id, display_order);
	CREATE INDEX IF NOT EXISTS idx_channels_source ON channels(source_id);
	CREATE INDEX IF NOT EXISTS idx_movies_source ON movies(source_id);
	CREATE INDEX IF NOT EXISTS idx_series_source ON series(source_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Timestamps are stored as fixed-width UTC text so lexicographic range
// comparisons in SQL match chronological order. RFC3339Nano would trim
// trailing zeros and break that ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(sqliteTime)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(sqliteTime, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *SQLiteStore) ChannelByIdentity(ctx context.Context, stableID, sourceID string) (*content.Channel, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT stable_id, source_id, name, logo_url, tvg_id, group_title,
		       variant_count, has_epg, current_programme, epg_updated_at
		FROM channels WHERE stable_id = ? AND source_id = ?`, stableID, sourceID)

	ch, err := scanChannel(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadVariants(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(r rowScanner) (*content.Channel, error) {
	var ch content.Channel
	var hasEPG int
	var updatedAt string
	err := r.Scan(&ch.StableID, &ch.SourceID, &ch.Name, &ch.LogoURL, &ch.TvgID, &ch.Group,
		&ch.VariantCount, &hasEPG, &ch.CurrentProgramTitle, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "scan channel", err)
	}
	ch.HasEPG = hasEPG != 0
	ch.EPGLastUpdated = decodeTime(updatedAt)
	return &ch, nil
}

func (s *SQLiteStore) loadVariants(ctx context.Context, ch *content.Channel) error {
	rows, err := s.q.QueryContext(ctx, `
		SELECT name, stream_url, variant_source_id
		FROM channel_variants
		WHERE stable_id = ? AND source_id = ?
		ORDER BY position`, ch.StableID, ch.SourceID)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "load variants", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v content.ChannelVariant
		if err := rows.Scan(&v.Name, &v.StreamURL, &v.SourceID); err != nil {
			return xerrors.Wrap(xerrors.ErrStorage, "scan variant", err)
		}
		ch.Variants = append(ch.Variants, v)
	}
	return rows.Err()
}

func (s *SQLiteStore) SaveChannel(ctx context.Context, ch *content.Channel) error {
	ch.VariantCount = len(ch.Variants)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO channels (stable_id, source_id, name, logo_url, tvg_id, group_title,
			variant_count, has_epg, current_programme, epg_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stable_id, source_id) DO UPDATE SET
			name = excluded.name,
			logo_url = excluded.logo_url,
			tvg_id = excluded.tvg_id,
			group_title = excluded.group_title,
			variant_count = excluded.variant_count,
			has_epg = excluded.has_epg,
			current_programme = excluded.current_programme,
			epg_updated_at = excluded.epg_updated_at`,
		ch.StableID, ch.SourceID, ch.Name, ch.LogoURL, ch.TvgID, ch.Group,
		ch.VariantCount, boolInt(ch.HasEPG), ch.CurrentProgramTitle, encodeTime(ch.EPGLastUpdated))
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "save channel", err)
	}

	// Variants are owned rows: replace wholesale so the stored set and
	// variant_count can never drift apart.
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM channel_variants WHERE stable_id = ? AND source_id = ?`,
		ch.StableID, ch.SourceID); err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "clear variants", err)
	}
	for i, v := range ch.Variants {
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO channel_variants (stable_id, source_id, position, name, stream_url, variant_source_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ch.StableID, ch.SourceID, i, v.Name, v.StreamURL, v.SourceID); err != nil {
			return xerrors.Wrap(xerrors.ErrStorage, "save variant", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Channels(ctx context.Context, sourceIDs ...string) ([]content.Channel, error) {
	query := `
		SELECT stable_id, source_id, name, logo_url, tvg_id, group_title,
		       variant_count, has_epg, current_programme, epg_updated_at
		FROM channels`
	where, args := sourceFilter("source_id", sourceIDs)
	rows, err := s.q.QueryContext(ctx, query+where+" ORDER BY name, source_id", args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "list channels", err)
	}
	defer rows.Close()

	var out []content.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "list channels", err)
	}
	for i := range out {
		if err := s.loadVariants(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) MovieByIdentity(ctx context.Context, stableID, sourceID string) (*content.Movie, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT stable_id, source_id, title, poster_url, stream_url, preview_url,
		       imdb_id, year, rating, genres, watched, favorite
		FROM movies WHERE stable_id = ? AND source_id = ?`, stableID, sourceID)
	return scanMovie(row)
}

func scanMovie(r rowScanner) (*content.Movie, error) {
	var m content.Movie
	var genres string
	var watched, favorite int
	err := r.Scan(&m.StableID, &m.SourceID, &m.Title, &m.PosterURL, &m.StreamURL, &m.PreviewURL,
		&m.IMDbID, &m.Year, &m.Rating, &genres, &watched, &favorite)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "scan movie", err)
	}
	if genres != "" && genres != "[]" {
		if err := json.Unmarshal([]byte(genres), &m.Genres); err != nil {
			return nil, xerrors.Wrap(xerrors.ErrStorage, "decode genres", err)
		}
	}
	m.Watched = watched != 0
	m.Favorite = favorite != 0
	return &m, nil
}

func (s *SQLiteStore) SaveMovie(ctx context.Context, m *content.Movie) error {
	genres, err := json.Marshal(m.Genres)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "encode genres", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO movies (stable_id, source_id, title, poster_url, stream_url, preview_url,
			imdb_id, year, rating, genres, watched, favorite)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stable_id, source_id) DO UPDATE SET
			title = excluded.title,
			poster_url = excluded.poster_url,
			stream_url = excluded.stream_url,
			preview_url = excluded.preview_url,
			imdb_id = excluded.imdb_id,
			year = excluded.year,
			rating = excluded.rating,
			genres = excluded.genres,
			watched = excluded.watched,
			favorite = excluded.favorite`,
		m.StableID, m.SourceID, m.Title, m.PosterURL, m.StreamURL, m.PreviewURL,
		m.IMDbID, m.Year, m.Rating, string(genres), boolInt(m.Watched), boolInt(m.Favorite))
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "save movie", err)
	}
	return nil
}

func (s *SQLiteStore) Movies(ctx context.Context, sourceIDs ...string) ([]content.Movie, error) {
	query := `
		SELECT stable_id, source_id, title, poster_url, stream_url, preview_url,
		       imdb_id, year, rating, genres, watched, favorite
		FROM movies`
	where, args := sourceFilter("source_id", sourceIDs)
	rows, err := s.q.QueryContext(ctx, query+where+" ORDER BY title, source_id", args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "list movies", err)
	}
	defer rows.Close()

	var out []content.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "list movies", err)
	}
	return out, nil
}

func (s *SQLiteStore) SeriesByIdentity(ctx context.Context, stableID, sourceID string) (*content.Series, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT stable_id, source_id, title, poster_url, year,
		       episode_count, season_count, unwatched_count
		FROM series WHERE stable_id = ? AND source_id = ?`, stableID, sourceID)

	sr, err := scanSeries(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadSeasons(ctx, sr); err != nil {
		return nil, err
	}
	return sr, nil
}

func scanSeries(r rowScanner) (*content.Series, error) {
	var sr content.Series
	err := r.Scan(&sr.StableID, &sr.SourceID, &sr.Title, &sr.PosterURL, &sr.Year,
		&sr.TotalEpisodeCount, &sr.SeasonCount, &sr.UnwatchedEpisodeCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "scan series", err)
	}
	return &sr, nil
}

func (s *SQLiteStore) loadSeasons(ctx context.Context, sr *content.Series) error {
	rows, err := s.q.QueryContext(ctx, `
		SELECT season, episode, title, stream_url, airdate
		FROM episodes
		WHERE stable_id = ? AND source_id = ?
		ORDER BY season, episode`, sr.StableID, sr.SourceID)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "load episodes", err)
	}
	defer rows.Close()

	var current *content.Season
	for rows.Next() {
		var season int
		var ep content.Episode
		if err := rows.Scan(&season, &ep.Number, &ep.Title, &ep.StreamURL, &ep.Airdate); err != nil {
			return xerrors.Wrap(xerrors.ErrStorage, "scan episode", err)
		}
		if current == nil || current.Number != season {
			sr.Seasons = append(sr.Seasons, content.Season{Number: season})
			current = &sr.Seasons[len(sr.Seasons)-1]
		}
		current.Episodes = append(current.Episodes, ep)
	}
	return rows.Err()
}

func (s *SQLiteStore) SaveSeries(ctx context.Context, sr *content.Series) error {
	recountSeries(sr)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO series (stable_id, source_id, title, poster_url, year,
			episode_count, season_count, unwatched_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stable_id, source_id) DO UPDATE SET
			title = excluded.title,
			poster_url = excluded.poster_url,
			year = excluded.year,
			episode_count = excluded.episode_count,
			season_count = excluded.season_count,
			unwatched_count = excluded.unwatched_count`,
		sr.StableID, sr.SourceID, sr.Title, sr.PosterURL, sr.Year,
		sr.TotalEpisodeCount, sr.SeasonCount, sr.UnwatchedEpisodeCount)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "save series", err)
	}

	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM episodes WHERE stable_id = ? AND source_id = ?`,
		sr.StableID, sr.SourceID); err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "clear episodes", err)
	}
	for _, season := range sr.Seasons {
		for _, ep := range season.Episodes {
			if _, err := s.q.ExecContext(ctx, `
				INSERT INTO episodes (stable_id, source_id, season, episode, title, stream_url, airdate)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				sr.StableID, sr.SourceID, season.Number, ep.Number, ep.Title, ep.StreamURL, ep.Airdate); err != nil {
				return xerrors.Wrap(xerrors.ErrStorage, "save episode", err)
			}
		}
	}
	return nil
}

func (s *SQLiteStore) AllSeries(ctx context.Context, sourceIDs ...string) ([]content.Series, error) {
	query := `
		SELECT stable_id, source_id, title, poster_url, year,
		       episode_count, season_count, unwatched_count
		FROM series`
	where, args := sourceFilter("source_id", sourceIDs)
	rows, err := s.q.QueryContext(ctx, query+where+" ORDER BY title, source_id", args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "list series", err)
	}
	defer rows.Close()

	var out []content.Series
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "list series", err)
	}
	for i := range out {
		if err := s.loadSeasons(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) CountBySource(ctx context.Context, sourceID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM channels WHERE source_id = ?)
		     + (SELECT COUNT(*) FROM movies WHERE source_id = ?)
		     + (SELECT COUNT(*) FROM series WHERE source_id = ?)`,
		sourceID, sourceID, sourceID).Scan(&n)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.ErrStorage, "count source content", err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteSourceContent(ctx context.Context, sourceID string) error {
	for _, stmt := range []string{
		`DELETE FROM channel_variants WHERE source_id = ?`,
		`DELETE FROM channels WHERE source_id = ?`,
		`DELETE FROM movies WHERE source_id = ?`,
		`DELETE FROM episodes WHERE source_id = ?`,
		`DELETE FROM series WHERE source_id = ?`,
	} {
		if _, err := s.q.ExecContext(ctx, stmt, sourceID); err != nil {
			return xerrors.Wrap(xerrors.ErrStorage, "delete source content", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ReplaceProgrammes(ctx context.Context, channelID string, entries []content.EPGEntry) error {
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM epg_entries WHERE channel_id = ?`, channelID); err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "clear programmes", err)
	}
	sorted := make([]content.EPGEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for _, e := range sorted {
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO epg_entries (channel_id, title, description, category, start_at, stop_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			channelID, e.Title, e.Desc, e.Category, encodeTime(e.Start), encodeTime(e.Stop)); err != nil {
			return xerrors.Wrap(xerrors.ErrStorage, "save programme", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Programmes(ctx context.Context, channelID string, from, to time.Time) ([]content.EPGEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT channel_id, title, description, category, start_at, stop_at
		FROM epg_entries
		WHERE channel_id = ? AND stop_at > ? AND start_at < ?
		ORDER BY start_at`,
		channelID, encodeTime(from), encodeTime(to))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "query programmes", err)
	}
	defer rows.Close()

	var out []content.EPGEntry
	for rows.Next() {
		var e content.EPGEntry
		var start, stop string
		if err := rows.Scan(&e.ChannelID, &e.Title, &e.Desc, &e.Category, &start, &stop); err != nil {
			return nil, xerrors.Wrap(xerrors.ErrStorage, "scan programme", err)
		}
		e.Start = decodeTime(start)
		e.Stop = decodeTime(stop)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "query programmes", err)
	}
	return out, nil
}

func (s *SQLiteStore) PurgeProgrammesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM epg_entries WHERE stop_at < ?`, encodeTime(cutoff))
	if err != nil {
		return 0, xerrors.Wrap(xerrors.ErrStorage, "purge programmes", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, xerrors.Wrap(xerrors.ErrStorage, "purge programmes", err)
	}
	return n, nil
}

func (s *SQLiteStore) SaveSource(ctx context.Context, src *content.PlaylistSource) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sources (id, profile_id, name, type, url, username, password,
			is_active, display_order, last_refreshed, last_error, epg_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			profile_id = excluded.profile_id,
			name = excluded.name,
			type = excluded.type,
			url = excluded.url,
			username = excluded.username,
			password = excluded.password,
			is_active = excluded.is_active,
			display_order = excluded.display_order,
			last_refreshed = excluded.last_refreshed,
			last_error = excluded.last_error,
			epg_url = excluded.epg_url`,
		src.ID, src.ProfileID, src.Name, string(src.Type), src.URL, src.Username, src.Password,
		boolInt(src.IsActive), src.DisplayOrder, encodeTime(src.LastRefreshed), src.LastError, src.EPGURL)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "save source", err)
	}
	return nil
}

func (s *SQLiteStore) Sources(ctx context.Context, profileID string) ([]content.PlaylistSource, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, profile_id, name, type, url, username, password,
		       is_active, display_order, last_refreshed, last_error, epg_url
		FROM sources WHERE profile_id = ? ORDER BY display_order`, profileID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "list sources", err)
	}
	defer rows.Close()

	var out []content.PlaylistSource
	for rows.Next() {
		var src content.PlaylistSource
		var typ, refreshed string
		var active int
		if err := rows.Scan(&src.ID, &src.ProfileID, &src.Name, &typ, &src.URL,
			&src.Username, &src.Password, &active, &src.DisplayOrder,
			&refreshed, &src.LastError, &src.EPGURL); err != nil {
			return nil, xerrors.Wrap(xerrors.ErrStorage, "scan source", err)
		}
		src.Type = content.SourceType(typ)
		src.IsActive = active != 0
		src.LastRefreshed = decodeTime(refreshed)
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStorage, "list sources", err)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteSource(ctx context.Context, profileID, sourceID string) error {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM sources WHERE id = ? AND profile_id = ?`, sourceID, profileID)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "delete source", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "delete source", err)
	}
	if n == 0 {
		return xerrors.ErrNotFound
	}

	// Close display-order gaps for the remaining sources of the profile.
	rows, err := s.q.QueryContext(ctx,
		`SELECT id FROM sources WHERE profile_id = ? ORDER BY display_order`, profileID)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "resequence sources", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return xerrors.Wrap(xerrors.ErrStorage, "resequence sources", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "resequence sources", err)
	}
	for i, id := range ids {
		if _, err := s.q.ExecContext(ctx,
			`UPDATE sources SET display_order = ? WHERE id = ?`, i, id); err != nil {
			return xerrors.Wrap(xerrors.ErrStorage, "resequence sources", err)
		}
	}

	return s.DeleteSourceContent(ctx, sourceID)
}

// WithTx runs fn against a transaction-scoped view of the store. Nested
// calls reuse the ambient transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "begin transaction", err)
	}
	txStore := &SQLiteStore{db: s.db, q: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return xerrors.Wrap(xerrors.ErrStorage, "commit transaction", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sourceFilter(column string, sourceIDs []string) (string, []any) {
	if len(sourceIDs) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(sourceIDs))
	args := make([]any, len(sourceIDs))
	for i, id := range sourceIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	return " WHERE " + column + " IN (" + strings.Join(placeholders, ", ") + ")", args
}
