package geocode

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kebabalogue/kebabctl/internal/model"
)

// Stats aggregates resolution outcomes for one batch run.
type Stats struct {
	Attempted  int `json:"attempted"`
	CacheHits  int `json:"cache_hits"`
	Resolved   int `json:"resolved"` // fresh resolutions via network
	Unresolved int `json:"unresolved"`
}

// Resolver runs the per-record fallback chain: cache, link-embedded
// coordinate, then free-text lookups of decreasing precision down to the
// suburb centre. The first hit wins and is written back to the cache.
//
// A Resolver is built per run; the shared rate limiter lives inside the
// injected Client. Resolve is sequential by contract — the provider's rate
// policy forbids concurrent lookups — but PrefetchLinks may run ahead in
// parallel because links hit an unrelated host.
type Resolver struct {
	cache        Cache
	client       Client
	links        *LinkResolver
	country      string
	persistEvery int

	freshSinceFlush int
	stats           Stats

	mu         sync.Mutex
	prefetched map[string]*LinkResolution
}

// ResolverOption configures the Resolver.
type ResolverOption func(*Resolver)

// WithCountry sets the country suffix appended to every lookup query.
func WithCountry(country string) ResolverOption {
	return func(r *Resolver) {
		r.country = country
	}
}

// WithPersistEvery sets how many fresh resolutions may accumulate before
// the cache is flushed mid-run. Zero disables incremental flushing.
func WithPersistEvery(n int) ResolverOption {
	return func(r *Resolver) {
		r.persistEvery = n
	}
}

// WithLinkResolver enables map-link strategies. Without one, resolution
// starts at the free-text steps.
func WithLinkResolver(lr *LinkResolver) ResolverOption {
	return func(r *Resolver) {
		r.links = lr
	}
}

// NewResolver creates a Resolver over the given cache and lookup client.
func NewResolver(cache Cache, client Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache:        cache,
		client:       client,
		country:      "Australia",
		persistEvery: 5,
		prefetched:   make(map[string]*LinkResolution),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats returns a copy of the run counters.
func (r *Resolver) Stats() Stats {
	return r.stats
}

// Resolve runs the fallback chain for one record, short-circuiting on the
// first success. A cached record performs no network calls. Every lookup
// failure is downgraded to "no information gained"; only cancellation is
// surfaced as an error.
func (r *Resolver) Resolve(ctx context.Context, rec model.ListingRecord) (*Result, error) {
	r.stats.Attempted++
	key := rec.Key()

	cached, err := r.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("geocode: cache read failed", zap.String("key", key), zap.Error(err))
	} else if cached != nil {
		r.stats.CacheHits++
		return &Result{Coord: *cached, Source: "cache", Matched: true}, nil
	}

	searchName := rec.Name

	if rec.MapLink != "" && r.links != nil {
		linkRes := r.takePrefetched(key)
		if linkRes == nil {
			lr, linkErr := r.links.Resolve(ctx, rec.MapLink)
			if linkErr != nil {
				zap.L().Debug("geocode: link resolution failed",
					zap.String("key", key),
					zap.Error(linkErr),
				)
			} else {
				linkRes = lr
			}
		}
		if linkRes != nil {
			if linkRes.Coord != nil && linkRes.Coord.Valid() {
				return r.commit(ctx, key, *linkRes.Coord, "link"), nil
			}
			if linkRes.CanonicalName != "" {
				searchName = linkRes.CanonicalName
			}
		}
	}

	type step struct {
		query  string
		source string
	}
	var steps []step

	clean := CleanName(searchName)
	if clean != "" {
		steps = append(steps,
			step{fmt.Sprintf("%s, %s %s, %s", clean, rec.Suburb, rec.Postcode, r.country), "address"},
			step{fmt.Sprintf("%s, %s, %s", clean, rec.Suburb, r.country), "locality"},
		)
	}
	// A canonical name alone is worth a query only when the link actually
	// produced one; re-querying the already-failed raw name is pointless.
	if searchName != rec.Name {
		steps = append(steps, step{fmt.Sprintf("%s, %s", searchName, r.country), "name"})
	}
	if rec.Suburb != "" {
		steps = append(steps, step{fmt.Sprintf("%s, %s", rec.Suburb, r.country), "suburb"})
	}

	for _, s := range steps {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, eris.Wrap(ctxErr, "geocode: resolve cancelled")
		}
		res, lookupErr := r.client.Lookup(ctx, s.query)
		if lookupErr != nil {
			zap.L().Warn("geocode: lookup failed",
				zap.String("query", s.query),
				zap.Error(lookupErr),
			)
			continue
		}
		if res.Matched && res.Coord.Valid() {
			return r.commit(ctx, key, res.Coord, s.source), nil
		}
	}

	r.stats.Unresolved++
	zap.L().Info("geocode: unresolved", zap.String("key", key))
	return &Result{Matched: false}, nil
}

// PrefetchLinks resolves map links concurrently ahead of the sequential
// geocode pass and parks the results for Resolve to consume. The geocoding
// provider is never touched here.
func (r *Resolver) PrefetchLinks(ctx context.Context, recs []model.ListingRecord, concurrency int) {
	if r.links == nil {
		return
	}
	if concurrency < 1 {
		concurrency = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, rec := range recs {
		if rec.MapLink == "" {
			continue
		}
		key := rec.Key()
		g.Go(func() error {
			lr, err := r.links.Resolve(gCtx, rec.MapLink)
			if err != nil {
				zap.L().Debug("geocode: link prefetch failed",
					zap.String("key", key),
					zap.Error(err),
				)
				return nil //nolint:nilerr // individual link failures don't fail the prefetch
			}
			if lr == nil {
				return nil
			}
			r.mu.Lock()
			r.prefetched[key] = lr
			r.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// takePrefetched removes and returns a parked link resolution, if any.
func (r *Resolver) takePrefetched(key string) *LinkResolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	lr, ok := r.prefetched[key]
	if !ok {
		return nil
	}
	delete(r.prefetched, key)
	return lr
}

// commit records a fresh resolution: cache write, incremental flush at the
// configured persist point, counters. Cache failures are logged, never
// surfaced — the coordinate is still good for this run.
func (r *Resolver) commit(ctx context.Context, key string, coord model.Coordinate, source string) *Result {
	r.stats.Resolved++

	if err := r.cache.Put(ctx, key, coord); err != nil {
		zap.L().Warn("geocode: cache write failed", zap.String("key", key), zap.Error(err))
	} else {
		r.freshSinceFlush++
		if r.persistEvery > 0 && r.freshSinceFlush%r.persistEvery == 0 {
			if err := r.cache.Flush(ctx); err != nil {
				zap.L().Warn("geocode: cache flush failed", zap.Error(err))
			}
		}
	}

	zap.L().Debug("geocode: resolved",
		zap.String("key", key),
		zap.String("source", source),
		zap.Float64("lat", coord.Lat),
		zap.Float64("lon", coord.Lon),
	)
	return &Result{Coord: coord, Source: source, Matched: true}
}
