package dedup

import (
	"math"

	"github.com/lintang-b-s/osmroadlength/pkg"
	"github.com/lintang-b-s/osmroadlength/pkg/geometry"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type Thresholds struct {
	CentroidDistance  float64 // centroids closer than this
	MinDistance       float64 // 0 < min line distance < this
	ParallelTolerance float64 // 1 - |cos| < this
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CentroidDistance:  pkg.CENTROID_DISTANCE_THRESHOLD,
		MinDistance:       pkg.MIN_DISTANCE_THRESHOLD,
		ParallelTolerance: pkg.PARALLEL_TOLERANCE,
	}
}

// Classification. the decision plus the three scalars it was made from.
type Classification struct {
	Duplicate        bool
	CentroidDistance float64
	MinDistance      float64
	Cosine           float64
}

/*
Classifier decides whether two polylines are the same physical road digitized twice in
opposite directions. all four must hold:
 1. centroid distance < CentroidDistance
 2. 0 < minimum distance between the lines < MinDistance (exact overlaps are not duplicates)
 3. cosine of the (end - start) direction vectors < 0
 4. 1 - |cosine| < ParallelTolerance

a zero length direction vector gives cosine 0, so degenerate lines never match.
*/
type Classifier struct {
	th Thresholds
}

func NewClassifier(th Thresholds) *Classifier {
	return &Classifier{th: th}
}

func (c *Classifier) Thresholds() Thresholds {
	return c.th
}

func (c *Classifier) Classify(a, b orb.LineString) Classification {
	return c.classify(a, b, geometry.Centroid(a), geometry.Centroid(b))
}

func (c *Classifier) IsDuplicate(a, b orb.LineString) bool {
	return c.Classify(a, b).Duplicate
}

func (c *Classifier) classify(a, b orb.LineString, ca, cb orb.Point) Classification {
	res := Classification{
		CentroidDistance: planar.Distance(ca, cb),
		MinDistance:      geometry.MinDistance(a, b),
		Cosine:           geometry.DirectionCosine(a, b),
	}

	res.Duplicate = res.CentroidDistance < c.th.CentroidDistance &&
		1-math.Abs(res.Cosine) < c.th.ParallelTolerance &&
		res.Cosine < 0 &&
		res.MinDistance > 0 && res.MinDistance < c.th.MinDistance
	return res
}
