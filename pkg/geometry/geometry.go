package geometry

import (
	"github.com/paulmach/orb"
)

type Kind uint8

const (
	KIND_UNKNOWN Kind = iota
	KIND_LINE
	KIND_MULTI_LINE
)

func (k Kind) String() string {
	switch k {
	case KIND_LINE:
		return "LINESTRING"
	case KIND_MULTI_LINE:
		return "MULTILINESTRING"
	}
	return "UNKNOWN"
}

// Geometry is a parsed road geometry, either a single polyline or the ordered parts of a multi-polyline.
// parts of a multi-polyline are never merged with each other.
type Geometry struct {
	kind  Kind
	line  orb.LineString
	parts orb.MultiLineString
}

func NewLineGeometry(line orb.LineString) Geometry {
	return Geometry{kind: KIND_LINE, line: line}
}

func NewMultiLineGeometry(parts orb.MultiLineString) Geometry {
	return Geometry{kind: KIND_MULTI_LINE, parts: parts}
}

func (g Geometry) Kind() Kind {
	return g.kind
}

func (g Geometry) IsMulti() bool {
	return g.kind == KIND_MULTI_LINE
}

func (g Geometry) Line() orb.LineString {
	return g.line
}

func (g Geometry) Parts() orb.MultiLineString {
	return g.parts
}

// Lines returns every polyline of the geometry in order.
func (g Geometry) Lines() []orb.LineString {
	if g.kind == KIND_LINE {
		return []orb.LineString{g.line}
	}
	return g.parts
}
