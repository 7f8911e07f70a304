package connectivity

import (
	"math/bits"

	"github.com/lintang-b-s/osmroadlength/pkg"
	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/geometry"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"github.com/paulmach/orb"
)

// classes are tracked per vertex in a uint64 bit set
const maxClasses = 64

/*
Matrix is the class-to-class connectivity of one road network. two classes are connected at a
vertex when polylines of both classes pass through exactly that coordinate.

Counts[a][b] is the number of such shared vertices (symmetric, zero diagonal), Ratios is Counts
with every row divided by its row sum (an all-zero row stays zero).
*/
type Matrix struct {
	Classes      []string
	Counts       [][]int
	Ratios       [][]float64
	VertexCounts []int // distinct vertices touched by each class
	Skipped      int   // segments whose geometry could not be parsed
}

func NewMatrix(classes []string) *Matrix {
	n := len(classes)
	m := &Matrix{
		Classes:      append([]string(nil), classes...),
		Counts:       make([][]int, n),
		Ratios:       make([][]float64, n),
		VertexCounts: make([]int, n),
	}
	for i := 0; i < n; i++ {
		m.Counts[i] = make([]int, n)
		m.Ratios[i] = make([]float64, n)
	}
	return m
}

func (m *Matrix) Index(class string) int {
	for i, c := range m.Classes {
		if c == class {
			return i
		}
	}
	return -1
}

/*
Build counts shared vertices between the requested classes. "_link" classes are folded into their
base class, segments of other classes are ignored. every vertex of a line or of a multi-line part
counts, point geometries are not road vertices.
*/
func Build(classes []string, segments []datastructure.RoadSegment) (*Matrix, error) {
	folded := make([]string, 0, len(classes))
	for _, c := range classes {
		c = pkg.BaseRoadClass(c)
		if !containsClass(folded, c) {
			folded = append(folded, c)
		}
	}
	if len(folded) > maxClasses {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "at most %d connectivity classes, got %d",
			maxClasses, len(folded))
	}

	m := NewMatrix(folded)
	classBit := make(map[string]uint64, len(folded))
	for i, c := range folded {
		classBit[c] = 1 << uint(i)
	}

	vertices := make(map[orb.Point]uint64, len(segments)*4)
	for _, s := range segments {
		bit, ok := classBit[pkg.BaseRoadClass(s.GetClass())]
		if !ok || geometry.IsPointText(s.GetGeometry()) {
			continue
		}
		g, err := geometry.Parse(s.GetGeometry())
		if err != nil {
			m.Skipped++
			continue
		}
		for _, ls := range g.Lines() {
			for _, p := range ls {
				vertices[p] |= bit
			}
		}
	}

	for _, set := range vertices {
		for a := set; a != 0; a &= a - 1 {
			i := bits.TrailingZeros64(a)
			m.VertexCounts[i]++
			for b := a & (a - 1); b != 0; b &= b - 1 {
				j := bits.TrailingZeros64(b)
				m.Counts[i][j]++
				m.Counts[j][i]++
			}
		}
	}

	m.normalize()
	return m, nil
}

func containsClass(classes []string, class string) bool {
	for _, c := range classes {
		if c == class {
			return true
		}
	}
	return false
}

func (m *Matrix) normalize() {
	for i, row := range m.Counts {
		sum := 0
		for _, c := range row {
			sum += c
		}
		for j, c := range row {
			if sum == 0 {
				m.Ratios[i][j] = 0
				continue
			}
			m.Ratios[i][j] = float64(c) / float64(sum)
		}
	}
}

// Merge folds class from into class into: its row and column are added, the self connection the
// merge creates is dropped and from disappears. false when either class is missing.
func (m *Matrix) Merge(from, into string) bool {
	fi, ti := m.Index(from), m.Index(into)
	if fi < 0 || ti < 0 || fi == ti {
		return false
	}

	for i := range m.Counts {
		m.Counts[i][ti] += m.Counts[i][fi]
	}
	for j := range m.Counts[ti] {
		m.Counts[ti][j] += m.Counts[fi][j]
	}
	m.Counts[ti][ti] = 0
	m.VertexCounts[ti] += m.VertexCounts[fi]

	m.Classes = removeAt(m.Classes, fi)
	m.VertexCounts = removeAt(m.VertexCounts, fi)
	m.Counts = removeAt(m.Counts, fi)
	m.Ratios = removeAt(m.Ratios, fi)
	for i := range m.Counts {
		m.Counts[i] = removeAt(m.Counts[i], fi)
		m.Ratios[i] = removeAt(m.Ratios[i], fi)
	}

	m.normalize()
	return true
}

func removeAt[T any](arr []T, i int) []T {
	out := make([]T, 0, len(arr)-1)
	out = append(out, arr[:i]...)
	return append(out, arr[i+1:]...)
}

// Mean averages the ratio matrices of several networks (e.g. every city of a year) and sums their
// counts. all matrices must have the same classes in the same order.
func Mean(ms []*Matrix) (*Matrix, error) {
	if len(ms) == 0 {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "no connectivity matrices to average")
	}
	mean := NewMatrix(ms[0].Classes)
	for _, m := range ms {
		if len(m.Classes) != len(mean.Classes) {
			return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "class count mismatch: %d vs %d",
				len(m.Classes), len(mean.Classes))
		}
		for i, c := range m.Classes {
			if c != mean.Classes[i] {
				return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "class mismatch at %d: %s vs %s",
					i, c, mean.Classes[i])
			}
		}
		for i := range m.Counts {
			mean.VertexCounts[i] += m.VertexCounts[i]
			for j := range m.Counts[i] {
				mean.Counts[i][j] += m.Counts[i][j]
				mean.Ratios[i][j] += m.Ratios[i][j]
			}
		}
		mean.Skipped += m.Skipped
	}

	n := float64(len(ms))
	for i := range mean.Ratios {
		for j := range mean.Ratios[i] {
			mean.Ratios[i][j] /= n
		}
	}
	return mean, nil
}
