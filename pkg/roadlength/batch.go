package roadlength

import (
	"github.com/lintang-b-s/osmroadlength/pkg"
	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/dedup"
	"github.com/lintang-b-s/osmroadlength/pkg/geometry"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

type Options struct {
	Thresholds   dedup.Thresholds
	IndexBoxSize float64
	Method       LengthMethod
}

func DefaultOptions() Options {
	return Options{
		Thresholds:   dedup.DefaultThresholds(),
		IndexBoxSize: pkg.INDEX_BOX_SIZE,
		Method:       HAVERSINE,
	}
}

// Diagnostic. a record skipped by the batch, the batch itself carries on.
type Diagnostic struct {
	Identifier string
	Err        error
}

type PairRecord struct {
	KeptID        string
	DiscardedID   string
	DiscardedLine orb.LineString
	Reactivated   bool // the discarded side survives too
	dedup.Classification
}

type BatchResult struct {
	Class    string
	LengthKm float64

	LineLengthKm  float64 // deduplicated single polylines
	MultiLengthKm float64 // every part of every multi-polyline, never deduplicated

	LineCount      int
	UniqueCount    int
	MultiCount     int
	MultiPartCount int
	SkippedPoints  int

	UniqueLines    []orb.LineString
	DuplicatePairs []PairRecord
	Diagnostics    []Diagnostic
}

// Calculator runs parse -> deduplicate -> geodesic sum for one road class of one (city, year) table.
// safe for concurrent use, every call builds its own index.
type Calculator struct {
	engine *dedup.Engine
	acc    *Accumulator
	log    *zap.Logger
}

func NewCalculator(opts Options, log *zap.Logger) *Calculator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Calculator{
		engine: dedup.NewEngine(dedup.NewClassifier(opts.Thresholds), opts.IndexBoxSize, log),
		acc:    NewAccumulator(opts.Method),
		log:    log,
	}
}

func (c *Calculator) Accumulator() *Accumulator {
	return c.acc
}

// ComputeBatch. total length (km) of the segments of class (its "_link" variant included).
// an empty batch yields 0.
func (c *Calculator) ComputeBatch(class string, segments []datastructure.RoadSegment) BatchResult {
	res := BatchResult{Class: class}

	lines := make([]orb.LineString, 0, len(segments))
	lineIDs := make([]string, 0, len(segments))
	multis := make([]orb.LineString, 0)

	for _, s := range segments {
		if !pkg.MatchRoadClass(s.GetClass(), class) {
			continue
		}
		if geometry.IsPointText(s.GetGeometry()) {
			res.SkippedPoints++
			continue
		}

		g, err := geometry.Parse(s.GetGeometry())
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Identifier: s.GetIdentifier(), Err: err})
			continue
		}

		if g.IsMulti() {
			res.MultiCount++
			res.MultiPartCount += len(g.Parts())
			multis = append(multis, g.Parts()...)
			continue
		}
		lines = append(lines, g.Line())
		lineIDs = append(lineIDs, s.GetIdentifier())
	}

	res.LineCount = len(lines)
	dd := c.engine.Deduplicate(lines)
	res.UniqueCount = len(dd.Unique)
	res.UniqueLines = dd.Lines
	for _, p := range dd.Pairs {
		res.DuplicatePairs = append(res.DuplicatePairs, PairRecord{
			KeptID:         lineIDs[p.Kept],
			DiscardedID:    lineIDs[p.Discarded],
			DiscardedLine:  lines[p.Discarded],
			Reactivated:    p.Reactivated,
			Classification: p.Classification,
		})
	}

	res.LineLengthKm = c.acc.Sum(dd.Lines)
	res.MultiLengthKm = c.acc.Sum(multis)
	res.LengthKm = res.LineLengthKm + res.MultiLengthKm
	return res
}
