package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/kebabalogue/kebabctl/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Writes go through
// immediately, so Flush is a no-op.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode,
// and applies the schema.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	lat       REAL NOT NULL,
	lon       REAL NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS geocode_runs (
	id          TEXT PRIMARY KEY,
	attempted   INTEGER NOT NULL,
	cache_hits  INTEGER NOT NULL,
	resolved    INTEGER NOT NULL,
	unresolved  INTEGER NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_runs_finished_at ON geocode_runs(finished_at);
`

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.Coordinate, error) {
	var c model.Coordinate
	err := s.db.QueryRowContext(ctx,
		`SELECT lat, lon FROM geocode_cache WHERE key = ?`, key,
	).Scan(&c.Lat, &c.Lon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s", key)
	}
	return &c, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, coord model.Coordinate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (key, lat, lon, cached_at) VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT (key) DO UPDATE SET
			lat = excluded.lat,
			lon = excluded.lon,
			cached_at = datetime('now')`,
		key, coord.Lat, coord.Lon,
	)
	return eris.Wrapf(err, "sqlite: put %s", key)
}

// Flush is a no-op: writes are durable as they happen.
func (s *SQLiteStore) Flush(_ context.Context) error {
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geocode_cache`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count")
}

func (s *SQLiteStore) All(ctx context.Context) (map[string]model.Coordinate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, lat, lon FROM geocode_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: all")
	}
	defer rows.Close()

	out := make(map[string]model.Coordinate)
	for rows.Next() {
		var key string
		var c model.Coordinate
		if err := rows.Scan(&key, &c.Lat, &c.Lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entry")
		}
		out[key] = c
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate entries")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run RunSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_runs (id, attempted, cache_hits, resolved, unresolved, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Attempted, run.CacheHits, run.Resolved, run.Unresolved,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: record run")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attempted, cache_hits, resolved, unresolved, started_at, finished_at
		FROM geocode_runs ORDER BY finished_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Attempted, &r.CacheHits, &r.Resolved, &r.Unresolved, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
