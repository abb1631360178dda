// Package model defines the catalogue record types shared across the pipeline.
package model

import (
	"strconv"
	"strings"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies in the WGS84 range.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// ListingRecord is one row of the shop catalogue. Fields are immutable after
// ingestion; SourceOrder preserves the row position in the published sheet,
// which encodes the curated catalogue rank.
type ListingRecord struct {
	Name        string `json:"name"`
	Suburb      string `json:"suburb"`
	Postcode    string `json:"postcode"`
	MapLink     string `json:"map_link,omitempty"` // short link from the source sheet, may be empty
	Rating      string `json:"rating,omitempty"`   // raw rating text, may be empty or unparseable
	SourceOrder int    `json:"source_order"`
}

// Key returns the identity key used for caching and deduplication.
// Name+suburb pairs are not guaranteed globally unique; two distinct shops
// sharing both fields would collide. The source dataset does not address
// this and neither do we.
func (r ListingRecord) Key() string {
	return r.Name + "-" + r.Suburb
}

// RatingValue parses the raw rating, treating missing or unparseable
// ratings as 0.
func (r ListingRecord) RatingValue() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(r.Rating), 64)
	if err != nil {
		return 0
	}
	return v
}

// GeocodedListing pairs a record with its resolved coordinate, if any.
type GeocodedListing struct {
	ListingRecord
	Coord *Coordinate `json:"coord,omitempty"`
}

// ScoredListing is the ranked, ephemeral view of a geocoded listing.
// Badge is 1..topN for the top-scoring entries within radius, 0 otherwise.
type ScoredListing struct {
	ListingRecord
	Coord      Coordinate `json:"coord"`
	DistanceKm float64    `json:"distance_km"`
	Score      float64    `json:"score"`
	Badge      int        `json:"badge,omitempty"`
}
