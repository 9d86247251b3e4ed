package domain

import "github.com/golang/geo/s2"

const earthRadiusKm = 6371.0

// GreatCircleKm returns the great-circle distance between two endpoints in
// kilometers, or 0 when either endpoint has no coordinates.
func GreatCircleKm(a, b Coord) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	p1 := s2.LatLngFromDegrees(a.Y, a.X)
	p2 := s2.LatLngFromDegrees(b.Y, b.X)
	return p1.Distance(p2).Radians() * earthRadiusKm
}
