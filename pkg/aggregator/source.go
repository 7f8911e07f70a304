package aggregator

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/osmroadlength/pkg/datastructure"
	"github.com/lintang-b-s/osmroadlength/pkg/geometry"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"github.com/pkg/errors"
)

// Source hands the core one (year, city) table of road segments.
// a missing table returns an error with code util.ErrNotFound.
type Source interface {
	Load(ctx context.Context, year int, city string) ([]datastructure.RoadSegment, error)
}

// ExpandPattern fills "{year}" and "{city}" of a path template.
func ExpandPattern(pattern string, year int, city string) string {
	return strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{city}", util.CleanCityName(city),
	).Replace(pattern)
}

var (
	classColumns      = []string{"class", "fclass"}
	geometryColumns   = []string{"geometry"}
	identifierColumns = []string{"identifier", "osm_id", "id"}
)

// CSVSource reads the per-(year, city) tables written by the clipping step.
// "<path>.bz2" is used when the plain file is absent.
type CSVSource struct {
	pattern string
}

func NewCSVSource(pattern string) *CSVSource {
	return &CSVSource{pattern: pattern}
}

func (s *CSVSource) Load(ctx context.Context, year int, city string) ([]datastructure.RoadSegment, error) {
	path := ExpandPattern(s.pattern, year, city)

	f, compressed, err := openTable(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		bz, err := bzip2.NewReader(f, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "can't open bzip2 stream %s", path)
		}
		defer bz.Close()
		r = bz
	}

	return ReadSegments(ctx, r)
}

func openTable(path string) (*os.File, bool, error) {
	f, err := os.Open(path)
	if err == nil {
		return f, strings.HasSuffix(path, ".bz2"), nil
	}
	if !os.IsNotExist(err) {
		return nil, false, errors.Wrapf(err, "can't open %s", path)
	}

	f, err = os.Open(path + ".bz2")
	if err == nil {
		return f, true, nil
	}
	if os.IsNotExist(err) {
		return nil, false, util.WrapErrorf(err, util.ErrNotFound, "input table %s not found", path)
	}
	return nil, false, errors.Wrapf(err, "can't open %s.bz2", path)
}

// ReadSegments parses a segment table. columns are located by header name, extra columns are ignored.
// point geometries are dropped here, before the core sees them.
func ReadSegments(ctx context.Context, r io.Reader) ([]datastructure.RoadSegment, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "can't read header")
	}
	classIdx := findColumn(header, classColumns)
	geomIdx := findColumn(header, geometryColumns)
	idIdx := findColumn(header, identifierColumns)
	if classIdx < 0 || geomIdx < 0 {
		return nil, errors.Errorf("table header %v has no class/geometry column", header)
	}

	segments := make([]datastructure.RoadSegment, 0, 1024)
	lineNum := 1
	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, errors.Wrapf(readErr, "line %d", lineNum+1)
		}
		lineNum++

		if lineNum%50000 == 0 && util.StopConcurrentOperation(ctx) {
			return nil, ctx.Err()
		}

		if geomIdx >= len(record) || classIdx >= len(record) {
			continue
		}
		geom := record[geomIdx]
		if geometry.IsPointText(geom) {
			continue
		}
		id := strconv.Itoa(lineNum)
		if idIdx >= 0 && idIdx < len(record) {
			id = record[idIdx]
		}
		segments = append(segments, datastructure.NewRoadSegment(record[classIdx], geom, id))
	}

	return segments, nil
}

func findColumn(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), name) {
				return i
			}
		}
	}
	return -1
}
