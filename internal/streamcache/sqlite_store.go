// SPDX-License-Identifier: MIT

package streamcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/metrics"
)

const schemaVersion = 1

// Fixed-width UTC layout keeps SQL text comparisons chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SqliteStore implements Store on a SQLite file, so resume windows
// survive restarts.
type SqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSqliteStore opens the resume database at dbPath and migrates it.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("stream cache: open failed: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("stream cache: ping failed: %w", err)
	}

	s := &SqliteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("stream cache: migration failed: %w", err)
	}
	return s, nil
}

func (s *SqliteStore) migrate() error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS stream_entries (
		stream_url TEXT PRIMARY KEY,
		cache_identifier TEXT NOT NULL,
		cached_at TEXT NOT NULL,
		last_accessed TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stream_expires ON stream_entries(expires_at);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) RecordAccess(ctx context.Context, url string) (*Entry, error) {
	now := s.now().UTC()
	e := Entry{
		StreamURL:    url,
		LastAccessed: now,
		ExpiresAt:    now.Add(TTL),
	}

	var cachedAt, identifier string
	err := s.db.QueryRowContext(ctx,
		`SELECT cached_at, cache_identifier FROM stream_entries WHERE stream_url = ?`, url).
		Scan(&cachedAt, &identifier)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		e.CachedAt = now
		e.CacheIdentifier = uuid.NewString()
	case err != nil:
		return nil, fmt.Errorf("stream cache: lookup failed: %w", err)
	default:
		e.CachedAt, _ = time.Parse(timeLayout, cachedAt)
		e.CacheIdentifier = identifier
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stream_entries (stream_url, cache_identifier, cached_at, last_accessed, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(stream_url) DO UPDATE SET
			last_accessed = excluded.last_accessed,
			expires_at = excluded.expires_at`,
		url, e.CacheIdentifier,
		e.CachedAt.Format(timeLayout),
		e.LastAccessed.Format(timeLayout),
		e.ExpiresAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("stream cache: upsert failed: %w", err)
	}
	return &e, nil
}

func (s *SqliteStore) Get(ctx context.Context, url string) (*Entry, error) {
	var e Entry
	var cachedAt, accessed, expires string
	err := s.db.QueryRowContext(ctx, `
		SELECT stream_url, cache_identifier, cached_at, last_accessed, expires_at
		FROM stream_entries WHERE stream_url = ?`, url).
		Scan(&e.StreamURL, &e.CacheIdentifier, &cachedAt, &accessed, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.CacheOpsTotal.WithLabelValues("resume", "miss").Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stream cache: lookup failed: %w", err)
	}

	e.CachedAt, _ = time.Parse(timeLayout, cachedAt)
	e.LastAccessed, _ = time.Parse(timeLayout, accessed)
	e.ExpiresAt, _ = time.Parse(timeLayout, expires)

	// Logical miss past expiry; the row stays until ClearExpired.
	if !e.ExpiresAt.After(s.now()) {
		metrics.CacheOpsTotal.WithLabelValues("resume", "expired").Inc()
		return nil, nil
	}
	metrics.CacheOpsTotal.WithLabelValues("resume", "hit").Inc()
	return &e, nil
}

func (s *SqliteStore) ClearExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM stream_entries WHERE expires_at <= ?`,
		s.now().UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("stream cache: clear expired failed: %w", err)
	}
	return res.RowsAffected()
}

func (s *SqliteStore) Close() error { return s.db.Close() }
