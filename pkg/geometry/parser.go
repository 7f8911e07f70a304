package geometry

import (
	"math"
	"regexp"
	"strings"

	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// IsPointText reports whether the serialized geometry is a point, those rows are dropped before parsing.
func IsPointText(s string) bool {
	return strings.Contains(strings.ToUpper(s), "POINT")
}

// Parse decodes a WKT line geometry ("LINESTRING (lon lat, ...)" or "MULTILINESTRING ((...), (...))").
// Malformed text returns an error with code util.ErrParseGeometry, any other geometry type
// util.ErrUnsupportedGeometry.
func Parse(s string) (Geometry, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return Geometry{}, util.WrapErrorf(nil, util.ErrParseGeometry, "empty geometry text")
	}

	g, err := wkt.Unmarshal(text)
	if err != nil {
		// orb only reads 2d coordinates, retry with z/m ordinates dropped
		flat, ok := dropExtraOrdinates(text)
		if !ok {
			return Geometry{}, util.WrapErrorf(err, util.ErrParseGeometry, "can't parse geometry %q", abbreviate(text))
		}
		if g, err = wkt.Unmarshal(flat); err != nil {
			return Geometry{}, util.WrapErrorf(err, util.ErrParseGeometry, "can't parse geometry %q", abbreviate(text))
		}
	}

	switch v := g.(type) {
	case orb.LineString:
		if err := checkLine(v); err != nil {
			return Geometry{}, err
		}
		return NewLineGeometry(v), nil
	case orb.MultiLineString:
		if len(v) == 0 {
			return Geometry{}, util.WrapErrorf(nil, util.ErrParseGeometry, "empty multilinestring")
		}
		for _, part := range v {
			if err := checkLine(part); err != nil {
				return Geometry{}, err
			}
		}
		return NewMultiLineGeometry(v), nil
	default:
		return Geometry{}, util.WrapErrorf(nil, util.ErrUnsupportedGeometry, "unsupported geometry type %s", g.GeoJSONType())
	}
}

var (
	dimensionTag   = regexp.MustCompile(`(?i)^(\w+)\s+(?:ZM|Z|M)\s*\(`)
	number         = `[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`
	extraOrdinates = regexp.MustCompile(`(` + number + `)\s+(` + number + `)(?:\s+` + number + `){1,2}`)
)

// dropExtraOrdinates rewrites "LINESTRING Z (1 2 3, 4 5 6)" to "LINESTRING (1 2, 4 5)".
// false when there was nothing to drop.
func dropExtraOrdinates(text string) (string, bool) {
	flat := dimensionTag.ReplaceAllString(text, "$1 (")
	flat = extraOrdinates.ReplaceAllString(flat, "$1 $2")
	return flat, flat != text
}

func checkLine(ls orb.LineString) error {
	if len(ls) == 0 {
		return util.WrapErrorf(nil, util.ErrParseGeometry, "empty linestring")
	}
	for _, p := range ls {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return util.WrapErrorf(nil, util.ErrParseGeometry, "non-finite coordinate %v", p)
		}
	}
	return nil
}

func abbreviate(s string) string {
	const maxLen = 80
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
