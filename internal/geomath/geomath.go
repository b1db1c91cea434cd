// Package geomath provides great-circle distance arithmetic over
// coordinate pairs. All functions are pure and deterministic.
package geomath

import "math"

const earthRadiusKm = 6371.0

// Coordinate is an immutable latitude/longitude pair
type Coordinate struct {
	Latitude  float64 `json:"latitude" binding:"latitude"`
	Longitude float64 `json:"longitude" binding:"longitude"`
}

// Valid reports whether the coordinate is within WGS84 bounds
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// DistanceKm calculates the great-circle distance between two coordinates
// in kilometers using the haversine formula
func DistanceKm(a, b Coordinate) float64 {
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180.0
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Latitude*math.Pi/180.0)*math.Cos(b.Latitude*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// PathLengthKm sums consecutive distances along an ordered coordinate path
func PathLengthKm(points []Coordinate) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += DistanceKm(points[i-1], points[i])
	}
	return total
}
