// Package geocode resolves catalogue listings to coordinates through a
// cached, rate-limited fallback chain: map-link extraction first, then
// progressively looser free-text lookups against a Nominatim-style provider.
package geocode

import (
	"context"

	"github.com/kebabalogue/kebabctl/internal/model"
)

// Client issues a single free-text lookup against a geocoding provider.
// An unmatched query is a normal result, not an error; errors mean the
// lookup itself failed (transport, malformed response).
type Client interface {
	Lookup(ctx context.Context, query string) (*Result, error)
}

// Result holds the outcome of one lookup or one full resolution.
type Result struct {
	Coord   model.Coordinate `json:"coord"`
	Source  string           `json:"source"` // cache, link, address, locality, name, suburb
	Matched bool             `json:"matched"`
}

// Cache is the durable key→coordinate store consulted before any network
// strategy. Get returns (nil, nil) on a miss. Flush marks a persist point
// for backends that buffer writes; write-through backends may no-op it.
type Cache interface {
	Get(ctx context.Context, key string) (*model.Coordinate, error)
	Put(ctx context.Context, key string, coord model.Coordinate) error
	Flush(ctx context.Context) error
}
