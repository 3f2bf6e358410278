// Package geo provides great-circle helpers for driver tracking.
//
// All distance calculations use the Haversine formula on WGS-84 coordinates.
// Travel time is estimated using a constant average road speed; the booking
// flow uses the OSRM route instead and only live tracking relies on these.
package geo

import (
	"math"

	"github.com/shiva/moveops/internal/model"
)

// ─── Constants ──────────────────────────────────────────────

const (
	// EarthRadiusKm is the mean radius of Earth in kilometers.
	EarthRadiusKm = 6371.0

	// KmPerMile converts statute miles to kilometers.
	KmPerMile = 1.609344

	// AverageSpeedMph is the assumed average speed of a loaded moving truck.
	AverageSpeedMph = 30.0
)

// Valid reports whether loc is a usable WGS-84 coordinate.
func Valid(loc model.Location) bool {
	return loc.Lat >= -90 && loc.Lat <= 90 && loc.Lng >= -180 && loc.Lng <= 180 &&
		!math.IsNaN(loc.Lat) && !math.IsNaN(loc.Lng)
}

// ─── Distance ───────────────────────────────────────────────

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(a, b model.Location) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(a.Lat))*math.Cos(degToRad(b.Lat))*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// HaversineMiles returns the great-circle distance between two points in miles.
func HaversineMiles(a, b model.Location) float64 {
	return HaversineKm(a, b) / KmPerMile
}

// ─── Trails ─────────────────────────────────────────────────

// TrailMiles returns the length of an ordered sequence of fixes in miles.
func TrailMiles(trail []model.Location) float64 {
	total := 0.0
	for i := 0; i < len(trail)-1; i++ {
		total += HaversineMiles(trail[i], trail[i+1])
	}
	return total
}

// EstimateMinutes returns the straight-line travel time between two points
// at AverageSpeedMph, rounded up to a whole minute.
func EstimateMinutes(a, b model.Location) int {
	return int(math.Ceil(HaversineMiles(a, b) / AverageSpeedMph * 60.0))
}

// ─── Helpers ────────────────────────────────────────────────

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
