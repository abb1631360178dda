package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebabalogue/kebabctl/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresGetHit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT lat, lon FROM geocode_cache`).
		WithArgs("Jasmin1-Yagoona").
		WillReturnRows(pgxmock.NewRows([]string{"lat", "lon"}).AddRow(-33.8839, 150.9245))

	got, err := s.Get(context.Background(), "Jasmin1-Yagoona")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, -33.8839, got.Lat, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetMiss(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT lat, lon FROM geocode_cache`).
		WithArgs("Nope-Nowhere").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.Get(context.Background(), "Nope-Nowhere")
	require.NoError(t, err, "a miss is not an error")
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPut(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO geocode_cache`).
		WithArgs("Jasmin1-Yagoona", -33.8839, 150.9245).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Put(context.Background(), "Jasmin1-Yagoona", model.Coordinate{Lat: -33.8839, Lon: 150.9245})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCount(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM geocode_cache`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAll(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT key, lat, lon FROM geocode_cache`).
		WillReturnRows(pgxmock.NewRows([]string{"key", "lat", "lon"}).
			AddRow("A-B", 1.0, 2.0).
			AddRow("C-D", 3.0, 4.0))

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]model.Coordinate{
		"A-B": {Lat: 1, Lon: 2},
		"C-D": {Lat: 3, Lon: 4},
	}, all)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunHistory(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	run := RunSummary{
		ID:         "run-1",
		Attempted:  10,
		CacheHits:  4,
		Resolved:   5,
		Unresolved: 1,
		StartedAt:  now,
		FinishedAt: now.Add(time.Minute),
	}

	mock.ExpectExec(`INSERT INTO geocode_runs`).
		WithArgs(run.ID, run.Attempted, run.CacheHits, run.Resolved, run.Unresolved, run.StartedAt, run.FinishedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.RecordRun(context.Background(), run))

	mock.ExpectQuery(`SELECT id, attempted, cache_hits, resolved, unresolved, started_at, finished_at`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "attempted", "cache_hits", "resolved", "unresolved", "started_at", "finished_at"}).
			AddRow(run.ID, run.Attempted, run.CacheHits, run.Resolved, run.Unresolved, run.StartedAt, run.FinishedAt))

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFlushIsNoOp(t *testing.T) {
	s, mock := newMockStore(t)
	require.NoError(t, s.Flush(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
