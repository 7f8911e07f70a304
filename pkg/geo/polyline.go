package geo

import (
	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"
)

// PolylineFromLine. google encoded polyline (precision 5) of a (lon, lat) line.
func PolylineFromLine(ls orb.LineString) string {
	coords := make([][]float64, len(ls))
	for i, p := range ls {
		coords[i] = []float64{p[1], p[0]}
	}
	return string(polyline.EncodeCoords(coords))
}
