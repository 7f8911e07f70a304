package roadlength

import (
	"fmt"

	"github.com/lintang-b-s/osmroadlength/pkg/geo"
	"github.com/paulmach/orb"
)

type LengthMethod string

const (
	HAVERSINE LengthMethod = "haversine"
	S2        LengthMethod = "s2"
	VINCENTY  LengthMethod = "vincenty"
)

func ParseLengthMethod(s string) (LengthMethod, error) {
	switch LengthMethod(s) {
	case HAVERSINE, S2, VINCENTY:
		return LengthMethod(s), nil
	case "":
		return HAVERSINE, nil
	}
	return "", fmt.Errorf("unknown length method %q", s)
}

// distanceFunc. distance in km between (lat1, lon1) and (lat2, lon2)
type distanceFunc func(lat1, lon1, lat2, lon2 float64) float64

func (m LengthMethod) distanceFunc() distanceFunc {
	switch m {
	case S2:
		return geo.CalculateS2Distance
	case VINCENTY:
		return func(lat1, lon1, lat2, lon2 float64) float64 {
			d, ok := geo.CalculateVincentyDistance(lat1, lon1, lat2, lon2)
			if !ok {
				return geo.CalculateHaversineDistance(lat1, lon1, lat2, lon2)
			}
			return d
		}
	default:
		return geo.CalculateHaversineDistance
	}
}

// Accumulator sums geodesic length (km) along polylines, vertex pair by vertex pair.
type Accumulator struct {
	dist distanceFunc
}

func NewAccumulator(method LengthMethod) *Accumulator {
	return &Accumulator{dist: method.distanceFunc()}
}

// LineLength. sum of the great-circle distances between consecutive vertices, points are (lon, lat).
func (a *Accumulator) LineLength(ls orb.LineString) float64 {
	total := 0.0
	for i := 1; i < len(ls); i++ {
		p, q := ls[i-1], ls[i]
		total += a.dist(p[1], p[0], q[1], q[0])
	}
	return total
}

func (a *Accumulator) Sum(lines []orb.LineString) float64 {
	total := 0.0
	for _, ls := range lines {
		total += a.LineLength(ls)
	}
	return total
}
