// Package geodist computes great-circle distances on a spherical earth.
package geodist

import (
	"math"

	"github.com/kebabalogue/kebabctl/internal/model"
)

// Mean earth radius in kilometers.
const earthRadiusKm = 6371.0

// Kilometers returns the haversine distance between two coordinates.
// Symmetric, and zero for identical points.
func Kilometers(a, b model.Coordinate) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
