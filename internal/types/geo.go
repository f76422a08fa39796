// README: Geographic value objects.
package types

import "github.com/golang/geo/s2"

const earthRadiusMeters = 6371008.8

type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// DistanceMeters returns the great-circle distance between p and o.
func (p Point) DistanceMeters(o Point) float64 {
	a := s2.LatLngFromDegrees(p.Lat, p.Lng)
	b := s2.LatLngFromDegrees(o.Lat, o.Lng)
	return a.Distance(b).Radians() * earthRadiusMeters
}
