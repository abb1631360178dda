package ranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebabalogue/kebabctl/internal/config"
	"github.com/kebabalogue/kebabctl/internal/model"
	"github.com/kebabalogue/kebabctl/pkg/geocode"
)

func defaultRankConfig() config.RankConfig {
	return config.RankConfig{
		RatingWeight:    10,
		DistancePenalty: 2,
		RadiusKm:        100,
		TopN:            10,
		SparseThreshold: 5,
		SparseLimit:     5,
	}
}

// sydney is the reference user location for these tests.
var sydney = model.Coordinate{Lat: -33.8688, Lon: 151.2093}

// offsetKm places a coordinate roughly the given number of km north of base.
// One degree of latitude is ~111.2 km everywhere.
func offsetKm(base model.Coordinate, km float64) model.Coordinate {
	return model.Coordinate{Lat: base.Lat + km/111.2, Lon: base.Lon}
}

func listing(name, rating string, order int, coord *model.Coordinate) model.GeocodedListing {
	return model.GeocodedListing{
		ListingRecord: model.ListingRecord{
			Name:        name,
			Suburb:      "Testville",
			Rating:      rating,
			SourceOrder: order,
		},
		Coord: coord,
	}
}

func coordPtr(c model.Coordinate) *model.Coordinate { return &c }

func TestScore(t *testing.T) {
	rk := New(defaultRankConfig())
	assert.InDelta(t, 78.0, rk.Score(8, 1), 0.001)
	assert.InDelta(t, 50.0, rk.Score(9, 20), 0.001)
	assert.InDelta(t, -10.0, rk.Score(0, 5), 0.001)
}

func TestRankOrdersByScore(t *testing.T) {
	listings := []model.GeocodedListing{
		listing("Far But Great", "9", 0, coordPtr(offsetKm(sydney, 20))),
		listing("Near A", "8", 1, coordPtr(offsetKm(sydney, 1))),
		listing("Near B", "8", 2, coordPtr(offsetKm(sydney, 1))),
	}

	ranked := New(defaultRankConfig()).Rank(context.Background(), listings, sydney)
	require.Len(t, ranked, 3)

	// 8*10-2*2 = 78ish beats 9*10-20*2 = 50ish.
	assert.Equal(t, "Near A", ranked[0].Name)
	assert.Equal(t, "Near B", ranked[1].Name)
	assert.Equal(t, "Far But Great", ranked[2].Name)

	assert.Greater(t, ranked[0].Score, ranked[2].Score)
}

func TestRankTiesKeepCatalogueOrder(t *testing.T) {
	// Identical coordinates and ratings: scores tie exactly, so the
	// published sheet order must decide.
	at := coordPtr(offsetKm(sydney, 2))
	listings := []model.GeocodedListing{
		listing("Listed Third", "8", 2, at),
		listing("Listed First", "8", 0, at),
		listing("Listed Second", "8", 1, at),
	}

	ranked := New(defaultRankConfig()).Rank(context.Background(), listings, sydney)
	require.Len(t, ranked, 3)
	assert.Equal(t, "Listed First", ranked[0].Name)
	assert.Equal(t, "Listed Second", ranked[1].Name)
	assert.Equal(t, "Listed Third", ranked[2].Name)
}

func TestRankBadgesTopN(t *testing.T) {
	cfg := defaultRankConfig()
	cfg.TopN = 2
	cfg.SparseThreshold = 0

	listings := []model.GeocodedListing{
		listing("A", "9", 0, coordPtr(offsetKm(sydney, 1))),
		listing("B", "8", 1, coordPtr(offsetKm(sydney, 1))),
		listing("C", "7", 2, coordPtr(offsetKm(sydney, 1))),
	}

	ranked := New(cfg).Rank(context.Background(), listings, sydney)
	require.Len(t, ranked, 3)
	assert.Equal(t, 1, ranked[0].Badge)
	assert.Equal(t, 2, ranked[1].Badge)
	assert.Equal(t, 0, ranked[2].Badge, "outside top N carries no badge")
}

func TestRankFiltersByRadius(t *testing.T) {
	listings := []model.GeocodedListing{
		listing("Inside", "5", 0, coordPtr(offsetKm(sydney, 50))),
		listing("Outside", "10", 1, coordPtr(offsetKm(sydney, 150))),
		listing("Unresolved", "10", 2, nil),
	}

	cfg := defaultRankConfig()
	cfg.SparseThreshold = 0
	ranked := New(cfg).Rank(context.Background(), listings, sydney)
	require.Len(t, ranked, 1)
	assert.Equal(t, "Inside", ranked[0].Name)
}

func TestRankMissingRatingScoresAsZero(t *testing.T) {
	listings := []model.GeocodedListing{
		listing("Rated", "3", 0, coordPtr(offsetKm(sydney, 1))),
		listing("Unrated", "", 1, coordPtr(offsetKm(sydney, 1))),
		listing("Garbage", "great!", 2, coordPtr(offsetKm(sydney, 1))),
	}

	cfg := defaultRankConfig()
	cfg.SparseThreshold = 0
	ranked := New(cfg).Rank(context.Background(), listings, sydney)
	require.Len(t, ranked, 3)
	assert.Equal(t, "Rated", ranked[0].Name)
	// Both scored on distance alone, so catalogue order decides.
	assert.Equal(t, "Unrated", ranked[1].Name)
	assert.Equal(t, "Garbage", ranked[2].Name)
	assert.InDelta(t, ranked[1].Score, ranked[2].Score, 0.001)
}

// stubResolver is a scripted on-demand resolver for widen tests.
type stubResolver struct {
	coords map[string]model.Coordinate
	calls  []string
}

func (s *stubResolver) Resolve(_ context.Context, rec model.ListingRecord) (*geocode.Result, error) {
	s.calls = append(s.calls, rec.Name)
	if c, ok := s.coords[rec.Name]; ok {
		return &geocode.Result{Coord: c, Matched: true}, nil
	}
	return &geocode.Result{Matched: false}, nil
}

func TestRankWidensWhenSparse(t *testing.T) {
	resolver := &stubResolver{coords: map[string]model.Coordinate{
		"Hidden Gem": offsetKm(sydney, 5),
	}}

	listings := []model.GeocodedListing{
		listing("Known", "6", 0, coordPtr(offsetKm(sydney, 10))),
		listing("Hidden Gem", "9", 1, nil),
		listing("Still Missing", "7", 2, nil),
	}

	ranked := New(defaultRankConfig(), WithResolver(resolver)).Rank(context.Background(), listings, sydney)
	require.Len(t, ranked, 2)
	assert.Equal(t, "Hidden Gem", ranked[0].Name)
	assert.Equal(t, "Known", ranked[1].Name)

	// Highest rating goes first to the resolver.
	require.Len(t, resolver.calls, 2)
	assert.Equal(t, "Hidden Gem", resolver.calls[0])
	assert.Equal(t, "Still Missing", resolver.calls[1])
}

func TestRankWidenRespectsLimit(t *testing.T) {
	resolver := &stubResolver{}
	cfg := defaultRankConfig()
	cfg.SparseLimit = 2

	listings := []model.GeocodedListing{
		listing("U1", "9", 0, nil),
		listing("U2", "8", 1, nil),
		listing("U3", "7", 2, nil),
		listing("U4", "6", 3, nil),
	}

	New(cfg, WithResolver(resolver)).Rank(context.Background(), listings, sydney)
	assert.Equal(t, []string{"U1", "U2"}, resolver.calls)
}

func TestRankNoWidenWhenEnoughResults(t *testing.T) {
	resolver := &stubResolver{}
	cfg := defaultRankConfig()
	cfg.SparseThreshold = 1

	listings := []model.GeocodedListing{
		listing("Known", "6", 0, coordPtr(offsetKm(sydney, 10))),
		listing("Unresolved", "9", 1, nil),
	}

	New(cfg, WithResolver(resolver)).Rank(context.Background(), listings, sydney)
	assert.Empty(t, resolver.calls, "enough in-radius results means no on-demand geocoding")
}

func TestRankWidenResultOutsideRadiusIsDropped(t *testing.T) {
	resolver := &stubResolver{coords: map[string]model.Coordinate{
		"Too Far": offsetKm(sydney, 300),
	}}

	listings := []model.GeocodedListing{
		listing("Too Far", "9", 0, nil),
	}

	ranked := New(defaultRankConfig(), WithResolver(resolver)).Rank(context.Background(), listings, sydney)
	assert.Empty(t, ranked)
}

func TestRankEmptyInput(t *testing.T) {
	ranked := New(defaultRankConfig()).Rank(context.Background(), nil, sydney)
	assert.Empty(t, ranked)
}
