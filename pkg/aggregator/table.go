package aggregator

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lintang-b-s/osmroadlength/pkg/geo"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"github.com/pkg/errors"
)

type CityRow struct {
	City      string
	LengthsKm []float64 // same order as YearTable.Classes
}

// YearTable. one row per city, one column per requested road class.
type YearTable struct {
	Year    int
	Classes []string
	Rows    []CityRow
}

func NewYearTable(year int, classes []string) YearTable {
	return YearTable{
		Year:    year,
		Classes: classes,
		Rows:    make([]CityRow, 0),
	}
}

// Header. "City" then the class names in title case, "light_rail" -> "Light Rail".
func (t YearTable) Header() []string {
	header := make([]string, 0, len(t.Classes)+1)
	header = append(header, "City")
	for _, c := range t.Classes {
		header = append(header, util.TitleRoadClass(c))
	}
	return header
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes the table with full float precision, no rounding.
func WriteCSV(w io.Writer, t YearTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	for _, row := range t.Rows {
		record := make([]string, 0, len(row.LengthsKm)+1)
		record = append(record, row.City)
		for _, v := range row.LengthsKm {
			record = append(record, formatFloat(v))
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "Can't write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "Can't flush table")
}

func TableFileName(year int) string {
	return fmt.Sprintf("%d_road_lengths.csv", year)
}

// WriteTableFile writes t to dir/<year>_road_lengths.csv and returns the path.
func WriteTableFile(dir string, t YearTable) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "Can't create output dir")
	}
	path := filepath.Join(dir, TableFileName(t.Year))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "Can't create file")
	}
	defer f.Close()

	if err := WriteCSV(f, t); err != nil {
		return "", err
	}
	return path, nil
}

var auditHeader = []string{
	"year", "city", "class", "kept_id", "discarded_id",
	"centroid_distance", "min_distance", "cosine", "discarded_polyline", "discarded_survives",
}

// WriteAudit lists every resolved duplicate pair, the discarded geometry as an encoded polyline (precision 5).
func WriteAudit(w io.Writer, batches []JobResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(auditHeader); err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	for _, b := range batches {
		for _, p := range b.Result.DuplicatePairs {
			record := []string{
				strconv.Itoa(b.Year), b.City, b.Class, p.KeptID, p.DiscardedID,
				formatFloat(p.CentroidDistance), formatFloat(p.MinDistance), formatFloat(p.Cosine),
				geo.PolylineFromLine(p.DiscardedLine), strconv.FormatBool(p.Reactivated),
			}
			if err := cw.Write(record); err != nil {
				return errors.Wrap(err, "Can't write audit row")
			}
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "Can't flush audit")
}
