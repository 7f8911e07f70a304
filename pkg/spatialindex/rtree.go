package spatialindex

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// Rtree indexes segment keys by box. write-once, read-many: there is no delete.
// boxes are centroid proximity boxes (see geometry.CentroidBox), not the full line extent.
type Rtree struct {
	tr   *rtree.RTreeG[int]
	size int
}

func NewRtree() *Rtree {
	var tr rtree.RTreeG[int]
	return &Rtree{
		tr: &tr,
	}
}

func (rt *Rtree) Insert(key int, box orb.Bound) {
	rt.tr.Insert([2]float64{box.Min[0], box.Min[1]}, [2]float64{box.Max[0], box.Max[1]}, key)
	rt.size++
}

// Build. insert boxes[i] under key i.
func (rt *Rtree) Build(boxes []orb.Bound) {
	for i, box := range boxes {
		rt.Insert(i, box)
	}
}

// Query returns the keys of every stored box intersecting box (touching edges count), in ascending key order.
// candidates only, the exact check is the caller's job.
func (rt *Rtree) Query(box orb.Bound) []int {
	results := make([]int, 0, 8)
	rt.tr.Search([2]float64{box.Min[0], box.Min[1]}, [2]float64{box.Max[0], box.Max[1]},
		func(min, max [2]float64, key int) bool {
			results = append(results, key)
			return true
		})
	sort.Ints(results)
	return results
}

func (rt *Rtree) Len() int {
	return rt.size
}
