package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/kebabalogue/kebabctl/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock
// satisfies it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store on a shared Postgres database. Upsert
// semantics on the cache table make concurrent resolver processes safe:
// last write wins per key, which is acceptable for an append-only cache of
// equivalent values.
type PostgresStore struct {
	pool Pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	lat       DOUBLE PRECISION NOT NULL,
	lon       DOUBLE PRECISION NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS geocode_runs (
	id          TEXT PRIMARY KEY,
	attempted   INTEGER NOT NULL,
	cache_hits  INTEGER NOT NULL,
	resolved    INTEGER NOT NULL,
	unresolved  INTEGER NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_runs_finished_at ON geocode_runs(finished_at);
`

// NewPostgres connects a pool and applies the schema.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}

	s := &PostgresStore{pool: pool}
	if _, err := pool.Exec(ctx, postgresMigration); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: migrate")
	}
	return s, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*model.Coordinate, error) {
	var c model.Coordinate
	err := s.pool.QueryRow(ctx,
		`SELECT lat, lon FROM geocode_cache WHERE key = $1`, key,
	).Scan(&c.Lat, &c.Lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s", key)
	}
	return &c, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, coord model.Coordinate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geocode_cache (key, lat, lon, cached_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			cached_at = now()`,
		key, coord.Lat, coord.Lon,
	)
	return eris.Wrapf(err, "postgres: put %s", key)
}

// Flush is a no-op: writes are durable as they happen.
func (s *PostgresStore) Flush(_ context.Context) error {
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM geocode_cache`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count")
}

func (s *PostgresStore) All(ctx context.Context) (map[string]model.Coordinate, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, lat, lon FROM geocode_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: all")
	}
	defer rows.Close()

	out := make(map[string]model.Coordinate)
	for rows.Next() {
		var key string
		var c model.Coordinate
		if err := rows.Scan(&key, &c.Lat, &c.Lon); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entry")
		}
		out[key] = c
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate entries")
}

func (s *PostgresStore) RecordRun(ctx context.Context, run RunSummary) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geocode_runs (id, attempted, cache_hits, resolved, unresolved, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Attempted, run.CacheHits, run.Resolved, run.Unresolved,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: record run")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, attempted, cache_hits, resolved, unresolved, started_at, finished_at
		FROM geocode_runs ORDER BY finished_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Attempted, &r.CacheHits, &r.Resolved, &r.Unresolved, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
