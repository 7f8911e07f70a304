package geometry

import (
	"math"
	"strconv"
	"strings"

	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// all functions here work in raw (lon, lat) degree units, no projection.

// Centroid. arithmetic mean of the polyline vertices.
func Centroid(ls orb.LineString) orb.Point {
	var x, y float64
	for _, p := range ls {
		x += p[0]
		y += p[1]
	}
	n := float64(len(ls))
	return orb.Point{x / n, y / n}
}

// CentroidBox. square box of side size centered on c.
func CentroidBox(c orb.Point, size float64) orb.Bound {
	half := size / 2
	return orb.Bound{
		Min: orb.Point{c[0] - half, c[1] - half},
		Max: orb.Point{c[0] + half, c[1] + half},
	}
}

// RawLength. planar length of the polyline in degree units.
func RawLength(ls orb.LineString) float64 {
	return planar.Length(ls)
}

// Direction. end - start, the interior vertices are ignored.
func Direction(ls orb.LineString) orb.Point {
	if len(ls) == 0 {
		return orb.Point{}
	}
	start, end := ls[0], ls[len(ls)-1]
	return orb.Point{end[0] - start[0], end[1] - start[1]}
}

// DirectionCosine. cosine of the angle between the direction vectors of a and b,
// 0 when either vector has zero magnitude.
func DirectionCosine(a, b orb.LineString) float64 {
	va, vb := Direction(a), Direction(b)
	magA := math.Hypot(va[0], va[1])
	magB := math.Hypot(vb[0], vb[1])
	if magA*magB == 0 {
		return 0
	}
	return util.Clamp((va[0]*vb[0]+va[1]*vb[1])/(magA*magB), -1, 1)
}

// MinDistance. minimum planar distance between two polylines, 0 if they touch or cross.
func MinDistance(a, b orb.LineString) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}
	if len(a) == 1 && len(b) == 1 {
		return planar.Distance(a[0], b[0])
	}
	if len(a) == 1 {
		return pointLineDistance(a[0], b)
	}
	if len(b) == 1 {
		return pointLineDistance(b[0], a)
	}

	best := math.Inf(1)
	for i := 1; i < len(a); i++ {
		for j := 1; j < len(b); j++ {
			d := segmentDistance(a[i-1], a[i], b[j-1], b[j])
			if d < best {
				best = d
				if best == 0 {
					return 0
				}
			}
		}
	}
	return best
}

func pointLineDistance(p orb.Point, ls orb.LineString) float64 {
	best := math.Inf(1)
	for i := 1; i < len(ls); i++ {
		best = math.Min(best, planar.DistanceFromSegment(ls[i-1], ls[i], p))
	}
	return best
}

// segmentDistance. distance between segments (ab) and (pq).
func segmentDistance(a, b, p, q orb.Point) float64 {
	if properIntersect(a, b, p, q) {
		return 0
	}
	return math.Min(
		math.Min(planar.DistanceFromSegment(p, q, a), planar.DistanceFromSegment(p, q, b)),
		math.Min(planar.DistanceFromSegment(a, b, p), planar.DistanceFromSegment(a, b, q)),
	)
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func sign(x float64) int {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}

// properIntersect. segments (ab) and (pq) cross at a single interior point.
// touching and collinear cases are left to the endpoint distances.
func properIntersect(a, b, p, q orb.Point) bool {
	d1 := sign(cross(a, b, p))
	d2 := sign(cross(a, b, q))
	d3 := sign(cross(p, q, a))
	d4 := sign(cross(p, q, b))
	if d1 == 0 || d2 == 0 || d3 == 0 || d4 == 0 {
		return false
	}
	return d1 != d2 && d3 != d4
}

// Key. exact identity of the vertex sequence, two polylines share a key iff every coordinate is equal.
func Key(ls orb.LineString) string {
	var sb strings.Builder
	sb.Grow(len(ls) * 34)
	for _, p := range ls {
		sb.WriteString(strconv.FormatUint(math.Float64bits(p[0]), 16))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatUint(math.Float64bits(p[1]), 16))
		sb.WriteByte(',')
	}
	return sb.String()
}
