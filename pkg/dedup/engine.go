package dedup

import (
	"github.com/lintang-b-s/osmroadlength/pkg/geometry"
	"github.com/lintang-b-s/osmroadlength/pkg/spatialindex"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// segmentRecord. one input polyline in the arena, addressed by its input index.
type segmentRecord struct {
	line      orb.LineString
	centroid  orb.Point
	box       orb.Bound
	rawLength float64
	slot      int
}

/*
arena holds the records of one batch plus one "active" flag per slot. records whose vertex
sequences are identical share a slot, so they are kept or dropped together and counted once.

a slot can be switched off by one resolution and switched back on by a later one,
the final state depends on the visiting order.
*/
type arena struct {
	records     []segmentRecord
	active      []bool
	firstRecord []int // slot -> first record index with that geometry
}

func newArena(lines []orb.LineString, boxSize float64) *arena {
	a := &arena{
		records: make([]segmentRecord, len(lines)),
	}
	slotOf := make(map[string]int, len(lines))
	for i, ls := range lines {
		key := geometry.Key(ls)
		slot, ok := slotOf[key]
		if !ok {
			slot = len(a.firstRecord)
			slotOf[key] = slot
			a.firstRecord = append(a.firstRecord, i)
		}
		c := geometry.Centroid(ls)
		a.records[i] = segmentRecord{
			line:      ls,
			centroid:  c,
			box:       geometry.CentroidBox(c, boxSize),
			rawLength: geometry.RawLength(ls),
			slot:      slot,
		}
	}
	a.active = make([]bool, len(a.firstRecord))
	return a
}

func (a *arena) activate(i int) {
	a.active[a.records[i].slot] = true
}

func (a *arena) deactivate(i int) {
	a.active[a.records[i].slot] = false
}

func (a *arena) isActive(i int) bool {
	return a.active[a.records[i].slot]
}

// DuplicatePair. Kept/Discarded follow the final active flags. when both sides end up active
// (the discarded one was switched back on by another neighbour) Reactivated is set and the
// orientation is that of the last resolution of the pair.
type DuplicatePair struct {
	Kept        int
	Discarded   int
	Reactivated bool
	Classification
}

type Result struct {
	// Unique holds input indices of the surviving polylines, one per distinct geometry, ascending.
	Unique []int
	Lines  []orb.LineString
	// Pairs. every classified duplicate pair once, in first-encounter order.
	Pairs []DuplicatePair
	// CandidatePairs. number of (i, j) index hits that were classified.
	CandidatePairs int
}

type Engine struct {
	classifier *Classifier
	boxSize    float64
	log        *zap.Logger
}

func NewEngine(classifier *Classifier, boxSize float64, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		classifier: classifier,
		boxSize:    boxSize,
		log:        log,
	}
}

/*
Deduplicate reduces the polylines of one (city, year, road class) batch to a unique set.

every segment i is visited in input order. i is switched on, then for each index hit j != i
(ascending j):
  - duplicate: the one with the larger raw (degree space) length is switched on and the other off,
    equal lengths keep j.
  - not duplicate: j is switched on.

this is a literal pairwise policy, not a transitive closure: for A-B and B-C duplicates with A-C not
a duplicate, a discarded segment can be switched back on by a later visit.
each call builds and owns its own spatial index.
*/
func (e *Engine) Deduplicate(lines []orb.LineString) *Result {
	ar := newArena(lines, e.boxSize)

	idx := spatialindex.NewRtree()
	for i := range ar.records {
		idx.Insert(i, ar.records[i].box)
	}

	res := &Result{}
	pairIdx := make(map[[2]int]int)
	for i := range ar.records {
		ri := &ar.records[i]
		ar.activate(i)

		for _, j := range idx.Query(ri.box) {
			if j == i {
				continue
			}
			rj := &ar.records[j]
			res.CandidatePairs++

			cls := e.classifier.classify(ri.line, rj.line, ri.centroid, rj.centroid)
			if !cls.Duplicate {
				ar.activate(j)
				continue
			}

			kept, discarded := j, i
			if ri.rawLength > rj.rawLength {
				kept, discarded = i, j
			}
			ar.deactivate(discarded)
			ar.activate(kept)

			key := [2]int{min(i, j), max(i, j)}
			if k, ok := pairIdx[key]; ok {
				res.Pairs[k].Kept, res.Pairs[k].Discarded = kept, discarded
				continue
			}
			pairIdx[key] = len(res.Pairs)
			res.Pairs = append(res.Pairs, DuplicatePair{Kept: kept, Discarded: discarded, Classification: cls})
		}
	}

	for k := range res.Pairs {
		p := &res.Pairs[k]
		keptOn, discardedOn := ar.isActive(p.Kept), ar.isActive(p.Discarded)
		if discardedOn && !keptOn {
			p.Kept, p.Discarded = p.Discarded, p.Kept
		}
		p.Reactivated = keptOn && discardedOn
	}

	for slot, on := range ar.active {
		if !on {
			continue
		}
		i := ar.firstRecord[slot]
		res.Unique = append(res.Unique, i)
		res.Lines = append(res.Lines, ar.records[i].line)
	}

	e.log.Debug("deduplicated batch",
		zap.Int("segments", len(lines)),
		zap.Int("distinctGeometries", len(ar.firstRecord)),
		zap.Int("unique", len(res.Unique)),
		zap.Int("duplicatePairs", len(res.Pairs)),
	)
	return res
}
