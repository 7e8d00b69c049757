// Package geo provides great-circle distance calculations for login geolocation
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Haversine
const EarthRadiusKm = 6371.0

// Coordinate is a point in decimal degrees
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// NewCoordinate validates optional latitude and longitude. ok is false when either
// is missing, non-finite or out of range.
func NewCoordinate(lat, lon *float64) (Coordinate, bool) {
	if lat == nil || lon == nil {
		return Coordinate{}, false
	}
	c := Coordinate{Latitude: *lat, Longitude: *lon}
	if !finite(c.Latitude) || !finite(c.Longitude) {
		return Coordinate{}, false
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return Coordinate{}, false
	}
	return c, true
}

// Haversine returns the great-circle distance between a and b in kilometers.
// Inputs are assumed to be validated, finite decimal degrees.
func Haversine(a, b Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
