package geo

import (
	"github.com/golang/geo/s2"
)

// CalculateS2Distance. great-circle distance in km from the s2 angle between the two points.
func CalculateS2Distance(latOne, longOne, latTwo, longTwo float64) float64 {
	p := s2.LatLngFromDegrees(latOne, longOne)
	q := s2.LatLngFromDegrees(latTwo, longTwo)
	return p.Distance(q).Radians() * earthRadiusKM
}
