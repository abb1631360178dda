// Package store persists the geocode cache and batch run history behind a
// common interface with file, sqlite, and postgres backends.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kebabalogue/kebabctl/internal/config"
	"github.com/kebabalogue/kebabctl/internal/model"
)

// RunSummary is the aggregate outcome of one geocoding batch run.
type RunSummary struct {
	ID         string    `json:"id"`
	Attempted  int       `json:"attempted"`
	CacheHits  int       `json:"cache_hits"`
	Resolved   int       `json:"resolved"`
	Unresolved int       `json:"unresolved"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store is the durable geocode cache plus run bookkeeping. Get returns
// (nil, nil) on a miss. Entries accumulate monotonically across runs;
// nothing expires and nothing is removed. Flush marks a persist point for
// backends that buffer writes; write-through backends no-op it.
type Store interface {
	Get(ctx context.Context, key string) (*model.Coordinate, error)
	Put(ctx context.Context, key string, coord model.Coordinate) error
	Flush(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	All(ctx context.Context) (map[string]model.Coordinate, error)

	RecordRun(ctx context.Context, run RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	Close() error
}

// Open builds a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFile(cfg.Path)
	case "sqlite":
		return NewSQLite(ctx, cfg.Path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
