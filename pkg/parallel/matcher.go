package parallel

import (
	"math"

	"github.com/lintang-b-s/osmroadlength/pkg"
	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/geometry"
	"github.com/lintang-b-s/osmroadlength/pkg/spatialindex"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// Match is a road running alongside a road of another class.
type Match struct {
	ID         string  // identifier of the aligned road
	Class      string  // its base class
	MatchID    string  // the road it runs along
	MatchClass string  // base class of that road
	Cosine     float64 // direction cosine of the pair
	Geometry   string  // WKT of the aligned road as read
}

type Result struct {
	Matches []Match
	Skipped int // unparsable geometries
}

type candidate struct {
	seg   datastructure.RoadSegment
	class string
	line  orb.LineString
}

type Matcher struct {
	tolerance float64
	boxSize   float64
	log       *zap.Logger
}

func NewMatcher(tolerance, boxSize float64, log *zap.Logger) *Matcher {
	if tolerance <= 0 {
		tolerance = pkg.ALIGNMENT_TOLERANCE
	}
	if boxSize <= 0 {
		boxSize = pkg.INDEX_BOX_SIZE
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{tolerance: tolerance, boxSize: boxSize, log: log}
}

/*
Match finds, for every target class in order, the roads of the other listed classes whose centroid
lies within the proximity box of a target road and whose direction is within the alignment
tolerance (1 - |cos| < tolerance), either way round. only single-line geometries take part.

every unordered road pair is considered once per target class, and a road is reported once per
class (first match wins), so the output is deterministic for a given input order.
*/
func (m *Matcher) Match(classes []string, segments []datastructure.RoadSegment) Result {
	var res Result

	targets := make([]string, 0, len(classes))
	listed := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		c = pkg.BaseRoadClass(c)
		if _, ok := listed[c]; ok {
			continue
		}
		listed[c] = struct{}{}
		targets = append(targets, c)
	}

	cands := make([]candidate, 0, len(segments))
	boxes := make([]orb.Bound, 0, len(segments))
	for _, s := range segments {
		if geometry.IsPointText(s.GetGeometry()) {
			continue
		}
		g, err := geometry.Parse(s.GetGeometry())
		if err != nil {
			res.Skipped++
			continue
		}
		if g.IsMulti() {
			continue
		}
		cands = append(cands, candidate{seg: s, class: pkg.BaseRoadClass(s.GetClass()), line: g.Line()})
		boxes = append(boxes, geometry.CentroidBox(geometry.Centroid(g.Line()), m.boxSize))
	}

	rt := spatialindex.NewRtree()
	rt.Build(boxes)

	type roadClass struct{ id, class string }
	reported := make(map[roadClass]struct{})

	for _, target := range targets {
		seen := make(map[[2]string]struct{})
		for i, a := range cands {
			if a.class != target {
				continue
			}
			for _, j := range rt.Query(boxes[i]) {
				if j == i {
					continue
				}
				b := cands[j]
				if b.class == target {
					continue
				}
				if _, ok := listed[b.class]; !ok {
					continue
				}

				cos := geometry.DirectionCosine(a.line, b.line)
				if 1-math.Abs(cos) >= m.tolerance {
					continue
				}

				pair := [2]string{a.seg.GetIdentifier(), b.seg.GetIdentifier()}
				if pair[1] < pair[0] {
					pair[0], pair[1] = pair[1], pair[0]
				}
				if _, ok := seen[pair]; ok {
					continue
				}
				seen[pair] = struct{}{}

				key := roadClass{id: b.seg.GetIdentifier(), class: b.class}
				if _, ok := reported[key]; ok {
					continue
				}
				reported[key] = struct{}{}

				res.Matches = append(res.Matches, Match{
					ID:         b.seg.GetIdentifier(),
					Class:      b.class,
					MatchID:    a.seg.GetIdentifier(),
					MatchClass: target,
					Cosine:     cos,
					Geometry:   b.seg.GetGeometry(),
				})
			}
		}
	}

	if res.Skipped > 0 {
		m.log.Warn("parallel matching skipped unparsable geometries", zap.Int("skipped", res.Skipped))
	}
	return res
}
