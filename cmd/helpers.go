package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kebabalogue/kebabctl/internal/config"
	"github.com/kebabalogue/kebabctl/internal/model"
	"github.com/kebabalogue/kebabctl/internal/store"
	"github.com/kebabalogue/kebabctl/pkg/geocode"
)

// newResolver wires the fallback-chain resolver from config: Nominatim
// client with the shared rate limiter, link resolver, and the cache store.
func newResolver(gc config.GeocodeConfig, st store.Store) (*geocode.Resolver, error) {
	client, err := geocode.NewNominatimClient(gc.UserAgent,
		geocode.WithBaseURL(gc.Endpoint),
		geocode.WithMinInterval(time.Duration(gc.IntervalMS)*time.Millisecond),
		geocode.WithHTTPClient(&http.Client{Timeout: time.Duration(gc.TimeoutSecs) * time.Second}),
	)
	if err != nil {
		return nil, eris.Wrap(err, "build nominatim client")
	}

	links := geocode.NewLinkResolver(
		geocode.WithLinkHTTPClient(&http.Client{Timeout: time.Duration(gc.LinkTimeoutSecs) * time.Second}),
	)

	return geocode.NewResolver(st, client,
		geocode.WithLinkResolver(links),
		geocode.WithCountry(gc.Country),
		geocode.WithPersistEvery(gc.PersistEvery),
	), nil
}

// loadGeocoded joins catalogue records with cached coordinates.
func loadGeocoded(ctx context.Context, st store.Store, records []model.ListingRecord) ([]model.GeocodedListing, error) {
	entries, err := st.All(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load cache entries")
	}

	geocoded := make([]model.GeocodedListing, 0, len(records))
	for _, rec := range records {
		gl := model.GeocodedListing{ListingRecord: rec}
		if c, ok := entries[rec.Key()]; ok {
			coord := c
			gl.Coord = &coord
		}
		geocoded = append(geocoded, gl)
	}
	return geocoded, nil
}
