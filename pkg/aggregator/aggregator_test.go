package aggregator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/parallel"
	"github.com/lintang-b-s/osmroadlength/pkg/roadlength"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingSource struct {
	mu       sync.Mutex
	calls    map[string]int
	failures int // transient failures returned before the first success
	segments []datastructure.RoadSegment
}

func (s *countingSource) Load(ctx context.Context, year int, city string) ([]datastructure.RoadSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[city]++
	if city == "Atlantis" {
		return nil, util.WrapErrorf(nil, util.ErrNotFound, "no table for %s", city)
	}
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("connection reset")
	}
	return s.segments, nil
}

func line(x1, y1, x2, y2 float64) orb.LineString {
	return orb.LineString{{x1, y1}, {x2, y2}}
}

func newCountingSource(failures int) *countingSource {
	return &countingSource{
		calls:    make(map[string]int),
		failures: failures,
		segments: []datastructure.RoadSegment{
			datastructure.NewRoadSegment("primary", "LINESTRING (116.3 39.9, 116.31 39.91)", "1"),
		},
	}
}

func TestTableCache(t *testing.T) {
	testCases := []struct {
		name         string
		failures     int
		city         string
		wantErr      bool
		wantNotFound bool
		wantCalls    int
	}{
		{name: "loaded once for repeated gets", city: "Beijing", wantCalls: 1},
		{name: "transient failure retried once", failures: 1, city: "Beijing", wantCalls: 2},
		{name: "two failures give up", failures: 2, city: "Beijing", wantErr: true, wantCalls: 2},
		{name: "missing table not retried", city: "Atlantis", wantErr: true, wantNotFound: true, wantCalls: 1},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			src := newCountingSource(tt.failures)
			cache, err := NewTableCache(src, 4, zaptest.NewLogger(t))
			require.NoError(t, err)

			_, err = cache.Get(context.Background(), 2020, tt.city)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantNotFound, errors.Is(err, util.ErrNotFound))
				assert.Equal(t, tt.wantCalls, src.calls[tt.city])
				return
			}
			require.NoError(t, err)

			segments, err := cache.Get(context.Background(), 2020, tt.city)
			require.NoError(t, err)
			assert.Len(t, segments, 1)
			assert.Equal(t, tt.wantCalls, src.calls[tt.city])
		})
	}
}

func TestDriverRun(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "{year}", "{city}.csv")
	writeTable(t, ExpandPattern(pattern, 2019, "Beijing"),
		"class,geometry,identifier\n"+
			"primary,\"LINESTRING (110 -7, 110.0008 -7)\",a\n"+
			"primary_link,\"LINESTRING (110.0009 -6.9999, 110 -6.9999)\",b\n"+
			"subway,\"MULTILINESTRING ((111 -7, 111.01 -7), (112 -7, 112.01 -7))\",c\n"+
			"footway,\"LINESTRING (110 abc)\",d\n")
	writeTable(t, ExpandPattern(pattern, 2019, "Xi'an"),
		"class,geometry,identifier\n"+
			"primary,\"LINESTRING (108.9 34.2, 108.91 34.2)\",x\n")
	writeTable(t, ExpandPattern(pattern, 2020, "Xi'an"),
		"class,geometry,identifier\n"+
			"subway,\"LINESTRING (108.9 34.2, 108.9 34.21)\",y\n")

	log := zaptest.NewLogger(t)
	tables, err := NewTableCache(NewCSVSource(pattern), 8, log)
	require.NoError(t, err)
	calc := roadlength.NewCalculator(roadlength.DefaultOptions(), log)
	acc := calc.Accumulator()

	cfg := DriverConfig{
		Years:   []int{2019, 2020},
		Cities:  []string{"Beijing", "Xi'an"},
		Classes: []string{"primary", "subway", "footway"},
		Workers: 3,
	}
	driver := NewDriver(cfg, tables, calc, log)

	report, err := driver.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Tables, 2)

	y2019 := report.Tables[0]
	assert.Equal(t, 2019, y2019.Year)
	require.Len(t, y2019.Rows, 2)
	assert.Equal(t, "Beijing", y2019.Rows[0].City)
	assert.Equal(t, "Xian", y2019.Rows[1].City)

	beijing := y2019.Rows[0].LengthsKm
	assert.InDelta(t, acc.LineLength(line(110.0009, -6.9999, 110, -6.9999)), beijing[0], 1e-9)
	assert.InDelta(t, acc.LineLength(line(111, -7, 111.01, -7))+acc.LineLength(line(112, -7, 112.01, -7)),
		beijing[1], 1e-9)
	assert.Zero(t, beijing[2])

	// Beijing 2020 is missing and has no row
	y2020 := report.Tables[1]
	require.Len(t, y2020.Rows, 1)
	assert.Equal(t, "Xian", y2020.Rows[0].City)
	assert.Zero(t, y2020.Rows[0].LengthsKm[0])
	assert.Greater(t, y2020.Rows[0].LengthsKm[1], 1.0)

	// 2019 Beijing, 2019 Xian, 2020 Xian, three classes each
	assert.Len(t, report.Batches, 9)

	again, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Tables, again.Tables)
}

func TestDriverFoldsLinkClasses(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "{year}", "{city}.csv")
	writeTable(t, ExpandPattern(pattern, 2021, "Beijing"),
		"class,geometry,identifier\n"+
			"primary,\"LINESTRING (108.9 34.2, 108.91 34.2)\",a\n"+
			"primary_link,\"LINESTRING (108.9 34.3, 108.91 34.3)\",b\n")

	log := zaptest.NewLogger(t)
	tables, err := NewTableCache(NewCSVSource(pattern), 4, log)
	require.NoError(t, err)
	calc := roadlength.NewCalculator(roadlength.DefaultOptions(), log)
	acc := calc.Accumulator()

	tests := []struct {
		name       string
		classes    []string
		wantHeader []string
	}{
		{
			name:       "link class becomes its base column",
			classes:    []string{"primary_link", "subway"},
			wantHeader: []string{"City", "Primary", "Subway"},
		},
		{
			name:       "base and link listed together share one column",
			classes:    []string{"primary_link", "primary", "subway"},
			wantHeader: []string{"City", "Primary", "Subway"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := NewDriver(DriverConfig{
				Years: []int{2021}, Cities: []string{"Beijing"}, Classes: tt.classes, Workers: 2,
			}, tables, calc, log)

			report, err := driver.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, report.Tables, 1)
			assert.Equal(t, tt.wantHeader, report.Tables[0].Header())
			require.Len(t, report.Tables[0].Rows, 1)

			want := acc.LineLength(line(108.9, 34.2, 108.91, 34.2)) + acc.LineLength(line(108.9, 34.3, 108.91, 34.3))
			assert.InDelta(t, want, report.Tables[0].Rows[0].LengthsKm[0], 1e-9)
			assert.Zero(t, report.Tables[0].Rows[0].LengthsKm[1])
		})
	}
}

func TestDriverRunAnalyses(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "{year}", "{city}.csv")
	writeTable(t, ExpandPattern(pattern, 2020, "Beijing"),
		"class,geometry,identifier\n"+
			"primary,\"LINESTRING (110 -7, 110.001 -7)\",a\n"+
			"residential,\"LINESTRING (110.001 -7, 110.001 -6.999)\",b\n"+
			"residential,\"LINESTRING (110 -7.0002, 110.001 -7.0002)\",c\n")

	log := zaptest.NewLogger(t)
	tables, err := NewTableCache(NewCSVSource(pattern), 4, log)
	require.NoError(t, err)

	driver := NewDriver(DriverConfig{
		Years:   []int{2020},
		Cities:  []string{"Beijing", "Atlantis"},
		Classes: []string{"primary"},
		Workers: 2,
		Analyses: AnalysisConfig{
			Connectivity:        true,
			ConnectivityClasses: []string{"primary", "residential", "service"},
			ConnectivityMerge:   map[string]string{"service": "residential"},
			Parallel:            true,
			ParallelClasses:     []string{"primary", "residential"},
		},
	}, tables, roadlength.NewCalculator(roadlength.DefaultOptions(), log), log)

	report, err := driver.Run(context.Background())
	require.NoError(t, err)

	// Atlantis has no table and no analyses
	require.Len(t, report.Cities, 1)
	beijing := report.Cities[0]
	assert.Equal(t, 2020, beijing.Year)
	assert.Equal(t, "Beijing", beijing.City)

	require.NotNil(t, beijing.Connectivity)
	assert.Equal(t, []string{"primary", "residential"}, beijing.Connectivity.Classes)
	assert.Equal(t, [][]float64{{0, 1}, {1, 0}}, beijing.Connectivity.Ratios)

	ids := make([]string, 0, len(beijing.Parallel))
	for _, m := range beijing.Parallel {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"c", "a"}, ids)

	require.Len(t, report.Connectivity, 1)
	assert.Equal(t, 1, report.Connectivity[0].Cities)
	assert.Equal(t, beijing.Connectivity.Ratios, report.Connectivity[0].Mean.Ratios)

	out := filepath.Join(t.TempDir(), "out")
	paths, err := WriteAnalysisFiles(out, report)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "2020_Beijing_connectivity.csv"),
		filepath.Join(out, "2020_Beijing_parallel.csv"),
		filepath.Join(out, "2020_connectivity_mean.csv"),
	}, paths)

	got, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "Class,Primary,Residential\nPrimary,0,1\nResidential,1,0\n", string(got))
}

func TestDriverRunWithoutAnalyses(t *testing.T) {
	src := newCountingSource(0)
	log := zaptest.NewLogger(t)
	tables, err := NewTableCache(src, 4, log)
	require.NoError(t, err)

	driver := NewDriver(DriverConfig{
		Years: []int{2020}, Cities: []string{"Beijing"}, Classes: []string{"primary"},
	}, tables, roadlength.NewCalculator(roadlength.DefaultOptions(), log), log)
	report, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Cities)
	assert.Empty(t, report.Connectivity)
}

func TestWriteParallelCSV(t *testing.T) {
	tests := []struct {
		name    string
		matches []parallel.Match
		want    string
	}{
		{
			name:    "no matches",
			matches: []parallel.Match{},
			want:    "osm_id,match_type,type,match_osm_id,cosine,geometry\n",
		},
		{
			name: "one aligned road",
			matches: []parallel.Match{{
				ID: "c", Class: "residential", MatchID: "a", MatchClass: "primary", Cosine: -1,
				Geometry: "LINESTRING (110 -7.0002, 110.001 -7.0002)",
			}},
			want: "osm_id,match_type,type,match_osm_id,cosine,geometry\n" +
				"c,primary,residential,a,-1,\"LINESTRING (110 -7.0002, 110.001 -7.0002)\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteParallelCSV(&buf, tt.matches))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestDriverRunCancelled(t *testing.T) {
	src := newCountingSource(0)
	log := zaptest.NewLogger(t)
	tables, err := NewTableCache(src, 4, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	driver := NewDriver(DriverConfig{
		Years: []int{2020}, Cities: []string{"Beijing"}, Classes: []string{"primary"},
	}, tables, roadlength.NewCalculator(roadlength.DefaultOptions(), log), log)
	_, err = driver.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteCSV(t *testing.T) {
	table := NewYearTable(2021, []string{"motorway", "light_rail"})
	table.Rows = append(table.Rows,
		CityRow{City: "Beijing", LengthsKm: []float64{1234.5678901234, 0}},
		CityRow{City: "Xian", LengthsKm: []float64{0.1, 17}},
	)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))
	want := "City,Motorway,Light Rail\n" +
		"Beijing,1234.5678901234,0\n" +
		"Xian,0.1,17\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, "2021_road_lengths.csv", TableFileName(2021))

	path, err := WriteTableFile(filepath.Join(t.TempDir(), "out"), table)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "2021_road_lengths.csv"))
}

func TestWriteAudit(t *testing.T) {
	calc := roadlength.NewCalculator(roadlength.DefaultOptions(), nil)
	res := calc.ComputeBatch("primary", []datastructure.RoadSegment{
		datastructure.NewRoadSegment("primary", "LINESTRING (110 -7, 110.0008 -7)", "a"),
		datastructure.NewRoadSegment("primary", "LINESTRING (110.0009 -6.9999, 110 -6.9999)", "b"),
	})

	var buf bytes.Buffer
	err := WriteAudit(&buf, []JobResult{{Job: Job{Year: 2020, City: "Beijing", Class: "primary"}, Result: res}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "2020,Beijing,primary,b,a,"))
}
