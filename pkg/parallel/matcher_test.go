package parallel

import (
	"testing"

	"github.com/lintang-b-s/osmroadlength/pkg"
	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMatch(t *testing.T) {
	segments := []datastructure.RoadSegment{
		datastructure.NewRoadSegment("primary", "LINESTRING (110 -7, 110.001 -7)", "p1"),
		datastructure.NewRoadSegment("residential", "LINESTRING (110 -7.0002, 110.001 -7.0002)", "r1"),
		datastructure.NewRoadSegment("residential", "LINESTRING (110.001 -7.0003, 110 -7.0003)", "r2"),
		datastructure.NewRoadSegment("footway", "LINESTRING (110.0005 -7.0005, 110.0005 -6.9995)", "f1"),
		datastructure.NewRoadSegment("secondary", "LINESTRING (110 -6.9998, 110.001 -6.9998)", "s1"),
		datastructure.NewRoadSegment("primary_link", "LINESTRING (110 -7.0001, 110.001 -7.0001)", "p2"),
		datastructure.NewRoadSegment("residential", "LINESTRING (111 -7, 111.001 -7)", "far"),
		datastructure.NewRoadSegment("residential", "MULTILINESTRING ((110 -7.0002, 110.001 -7.0002))", "multi"),
		datastructure.NewRoadSegment("residential", "POINT (110 -7)", "pt"),
		datastructure.NewRoadSegment("residential", "LINESTRING (abc def, 1 1)", "bad"),
	}

	m := NewMatcher(pkg.ALIGNMENT_TOLERANCE, pkg.INDEX_BOX_SIZE, zaptest.NewLogger(t))
	res := m.Match([]string{"primary", "residential", "footway"}, segments)

	type row struct{ id, class, matchID, matchClass string }
	got := make([]row, 0, len(res.Matches))
	for _, match := range res.Matches {
		got = append(got, row{match.ID, match.Class, match.MatchID, match.MatchClass})
	}
	assert.Equal(t, []row{
		{"r1", "residential", "p1", "primary"},
		{"r2", "residential", "p1", "primary"},
		{"p1", "primary", "r1", "residential"},
		{"p2", "primary", "r1", "residential"},
	}, got)
	assert.Equal(t, 1, res.Skipped)

	require.Len(t, res.Matches, 4)
	assert.InDelta(t, 1, res.Matches[0].Cosine, 1e-9)
	assert.InDelta(t, -1, res.Matches[1].Cosine, 1e-9)
	assert.Equal(t, "LINESTRING (110 -7.0001, 110.001 -7.0001)", res.Matches[3].Geometry)
}

func TestMatchTolerance(t *testing.T) {
	segments := []datastructure.RoadSegment{
		datastructure.NewRoadSegment("primary", "LINESTRING (110 -7, 110.001 -7)", "p"),
		// cos ~0.958 against p
		datastructure.NewRoadSegment("footway", "LINESTRING (110 -7.00015, 110.001 -6.99985)", "f"),
	}

	tests := []struct {
		name      string
		tolerance float64
		wantIDs   []string
	}{
		{
			name:      "default band accepts a slight angle",
			tolerance: pkg.ALIGNMENT_TOLERANCE,
			wantIDs:   []string{"f", "p"},
		},
		{
			name:      "tight band rejects it",
			tolerance: 0.01,
			wantIDs:   nil,
		},
		{
			name:      "zero falls back to the default",
			tolerance: 0,
			wantIDs:   []string{"f", "p"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewMatcher(tt.tolerance, 0, nil).Match([]string{"primary", "footway"}, segments)
			var ids []string
			for _, match := range res.Matches {
				ids = append(ids, match.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestMatchUnlistedClasses(t *testing.T) {
	segments := []datastructure.RoadSegment{
		datastructure.NewRoadSegment("primary", "LINESTRING (110 -7, 110.001 -7)", "p"),
		datastructure.NewRoadSegment("cycleway", "LINESTRING (110 -7.0001, 110.001 -7.0001)", "c"),
	}

	res := NewMatcher(0, 0, nil).Match([]string{"primary"}, segments)
	assert.Empty(t, res.Matches)

	res = NewMatcher(0, 0, nil).Match([]string{"primary", "cycleway"}, segments)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "c", res.Matches[0].ID)
	assert.Equal(t, "primary", res.Matches[0].MatchClass)
}
