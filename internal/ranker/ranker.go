// Package ranker orders geocoded listings for a user location by a
// combined distance/rating score, with top-N badges.
package ranker

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/kebabalogue/kebabctl/internal/config"
	"github.com/kebabalogue/kebabctl/internal/geodist"
	"github.com/kebabalogue/kebabctl/internal/model"
	"github.com/kebabalogue/kebabctl/pkg/geocode"
)

// Resolver geocodes a single record on demand. The batch resolver
// satisfies this; it is optional and only used when the radius filter
// leaves too few results.
type Resolver interface {
	Resolve(ctx context.Context, rec model.ListingRecord) (*geocode.Result, error)
}

// Ranker applies the scoring policy from config.
type Ranker struct {
	cfg      config.RankConfig
	resolver Resolver
}

// Option configures the Ranker.
type Option func(*Ranker)

// WithResolver enables the widen-on-sparse path: when fewer listings than
// the sparse threshold survive the radius filter, up to the configured
// limit of high-rating unresolved listings are geocoded on demand.
func WithResolver(r Resolver) Option {
	return func(rk *Ranker) {
		rk.resolver = r
	}
}

// New creates a Ranker with the given policy.
func New(cfg config.RankConfig, opts ...Option) *Ranker {
	rk := &Ranker{cfg: cfg}
	for _, opt := range opts {
		opt(rk)
	}
	return rk
}

// Score combines a rating and a distance into the composite score.
// The defaults weigh one rating point as worth 5 km of travel.
func (rk *Ranker) Score(rating, distanceKm float64) float64 {
	return rating*rk.cfg.RatingWeight - distanceKm*rk.cfg.DistancePenalty
}

// Rank scores every listing with a resolved coordinate, filters by radius,
// sorts descending by score with catalogue order breaking ties, and badges
// the top N. The result is ephemeral; nothing is persisted.
func (rk *Ranker) Rank(ctx context.Context, listings []model.GeocodedListing, user model.Coordinate) []model.ScoredListing {
	scored := rk.withinRadius(listings, user)

	if len(scored) < rk.cfg.SparseThreshold && rk.resolver != nil {
		scored = append(scored, rk.widen(ctx, listings, user)...)
	}

	rk.order(scored)
	rk.badge(scored)
	return scored
}

// withinRadius builds scored entries for resolved listings inside the
// radius, in catalogue order.
func (rk *Ranker) withinRadius(listings []model.GeocodedListing, user model.Coordinate) []model.ScoredListing {
	var scored []model.ScoredListing
	for _, l := range listings {
		if l.Coord == nil {
			continue
		}
		d := geodist.Kilometers(user, *l.Coord)
		if d > rk.cfg.RadiusKm {
			continue
		}
		scored = append(scored, model.ScoredListing{
			ListingRecord: l.ListingRecord,
			Coord:         *l.Coord,
			DistanceKm:    d,
			Score:         rk.Score(l.RatingValue(), d),
		})
	}
	return scored
}

// widen geocodes a bounded number of high-rating unresolved listings on
// demand. Triggered by scarcity only; the resolution algorithm is the
// normal fallback chain, sequential as ever.
func (rk *Ranker) widen(ctx context.Context, listings []model.GeocodedListing, user model.Coordinate) []model.ScoredListing {
	var unresolved []model.GeocodedListing
	for _, l := range listings {
		if l.Coord == nil {
			unresolved = append(unresolved, l)
		}
	}
	sort.SliceStable(unresolved, func(i, j int) bool {
		return unresolved[i].RatingValue() > unresolved[j].RatingValue()
	})
	if rk.cfg.SparseLimit > 0 && len(unresolved) > rk.cfg.SparseLimit {
		unresolved = unresolved[:rk.cfg.SparseLimit]
	}

	var added []model.ScoredListing
	for _, l := range unresolved {
		if ctx.Err() != nil {
			break
		}
		res, err := rk.resolver.Resolve(ctx, l.ListingRecord)
		if err != nil {
			zap.L().Warn("ranker: on-demand resolve failed",
				zap.String("key", l.Key()),
				zap.Error(err),
			)
			continue
		}
		if !res.Matched {
			continue
		}
		d := geodist.Kilometers(user, res.Coord)
		if d > rk.cfg.RadiusKm {
			continue
		}
		added = append(added, model.ScoredListing{
			ListingRecord: l.ListingRecord,
			Coord:         res.Coord,
			DistanceKm:    d,
			Score:         rk.Score(l.RatingValue(), d),
		})
	}

	if len(added) > 0 {
		zap.L().Info("ranker: widened sparse results", zap.Int("added", len(added)))
	}
	return added
}

// order sorts descending by score. Catalogue order breaks ties: the sheet
// encodes a curated quality rank, so the pre-sort by SourceOrder plus a
// stable score sort gives exactly that tie-break.
func (rk *Ranker) order(scored []model.ScoredListing) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].SourceOrder < scored[j].SourceOrder
	})
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
}

// badge assigns 1..TopN in sorted order.
func (rk *Ranker) badge(scored []model.ScoredListing) {
	for i := range scored {
		if i < rk.cfg.TopN {
			scored[i].Badge = i + 1
		} else {
			scored[i].Badge = 0
		}
	}
}
