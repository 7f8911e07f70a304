package aggregator

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/lintang-b-s/osmroadlength/pkg/concurrent"
	"github.com/lintang-b-s/osmroadlength/pkg/connectivity"
	"github.com/lintang-b-s/osmroadlength/pkg/parallel"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	perrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// AnalysisConfig. the per-city network analyses run after the length tables.
type AnalysisConfig struct {
	Connectivity        bool
	ConnectivityClasses []string
	ConnectivityMerge   map[string]string // class -> class it is folded into
	Parallel            bool
	ParallelClasses     []string
	AlignmentTolerance  float64
	IndexBoxSize        float64
}

func (c AnalysisConfig) enabled() bool {
	return c.Connectivity || c.Parallel
}

// CityAnalysis. results for one (year, city) table, nil for an analysis that is off.
type CityAnalysis struct {
	Year         int
	City         string
	Connectivity *connectivity.Matrix
	Parallel     []parallel.Match

	yearIdx, cityIdx int
	err              error
}

// YearConnectivity. mean connectivity of the cities analysed for a year.
type YearConnectivity struct {
	Year   int
	Cities int
	Mean   *connectivity.Matrix
}

type cityJob struct {
	Year int
	City string

	yearIdx, cityIdx int
}

func (d *Driver) analyseCity(ctx context.Context, matcher *parallel.Matcher, job cityJob) CityAnalysis {
	res := CityAnalysis{Year: job.Year, City: job.City, yearIdx: job.yearIdx, cityIdx: job.cityIdx}

	segments, err := d.tables.Get(ctx, job.Year, job.City)
	if err != nil {
		res.err = err
		return res
	}

	if d.cfg.Analyses.Connectivity {
		m, err := connectivity.Build(d.cfg.Analyses.ConnectivityClasses, segments)
		if err != nil {
			res.err = err
			return res
		}
		froms := make([]string, 0, len(d.cfg.Analyses.ConnectivityMerge))
		for from := range d.cfg.Analyses.ConnectivityMerge {
			froms = append(froms, from)
		}
		sort.Strings(froms)
		for _, from := range froms {
			m.Merge(from, d.cfg.Analyses.ConnectivityMerge[from])
		}
		res.Connectivity = m
	}

	if d.cfg.Analyses.Parallel {
		res.Parallel = matcher.Match(d.cfg.Analyses.ParallelClasses, segments).Matches
		if res.Parallel == nil {
			res.Parallel = []parallel.Match{}
		}
	}

	d.log.Debug("city analysed", zap.Int("year", job.Year), zap.String("city", job.City),
		zap.Int("parallelMatches", len(res.Parallel)))
	return res
}

// runAnalyses runs the enabled analyses per (year, city) on a worker pool, the tables come from the
// same cache the length batches used.
func (d *Driver) runAnalyses(ctx context.Context, report *Report) error {
	jobs := make([]cityJob, 0, len(d.cfg.Years)*len(d.cfg.Cities))
	for yi, year := range d.cfg.Years {
		for ci, city := range d.cfg.Cities {
			jobs = append(jobs, cityJob{Year: year, City: util.CleanCityName(city), yearIdx: yi, cityIdx: ci})
		}
	}

	matcher := parallel.NewMatcher(d.cfg.Analyses.AlignmentTolerance, d.cfg.Analyses.IndexBoxSize, d.log)

	pool := concurrent.NewWorkerPool[cityJob, CityAnalysis](d.cfg.Workers, len(jobs)).WithContext(ctx)
	for _, job := range jobs {
		pool.AddJob(job)
	}
	pool.Close()

	d.log.Info("running network analyses", zap.Int("cities", len(jobs)),
		zap.Bool("connectivity", d.cfg.Analyses.Connectivity), zap.Bool("parallel", d.cfg.Analyses.Parallel))
	pool.Start(func(job cityJob) CityAnalysis {
		return d.analyseCity(ctx, matcher, job)
	})
	pool.Wait()

	nCities := len(d.cfg.Cities)
	ordered := make([]CityAnalysis, len(jobs))
	done := make([]bool, len(jobs))
	for r := range pool.CollectResults() {
		pos := r.yearIdx*nCities + r.cityIdx
		ordered[pos] = r
		done[pos] = true
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for yi, year := range d.cfg.Years {
		var matrices []*connectivity.Matrix
		for ci := 0; ci < nCities; ci++ {
			pos := yi*nCities + ci
			if !done[pos] {
				continue
			}
			r := ordered[pos]
			if r.err != nil {
				if errors.Is(r.err, util.ErrNotFound) {
					d.log.Warn("input table not found, skipping analyses", zap.Int("year", r.Year),
						zap.String("city", r.City), zap.Error(r.err))
				} else {
					d.log.Warn("city analyses failed, skipping", zap.Int("year", r.Year),
						zap.String("city", r.City), zap.Error(r.err))
				}
				continue
			}
			report.Cities = append(report.Cities, r)
			if r.Connectivity != nil {
				matrices = append(matrices, r.Connectivity)
			}
		}

		if len(matrices) == 0 {
			continue
		}
		mean, err := connectivity.Mean(matrices)
		if err != nil {
			return err
		}
		report.Connectivity = append(report.Connectivity, YearConnectivity{Year: year, Cities: len(matrices), Mean: mean})
	}
	return nil
}

// WriteConnectivityCSV writes the ratio matrix, first column and header are the class titles.
func WriteConnectivityCSV(w io.Writer, m *connectivity.Matrix) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(m.Classes)+1)
	header = append(header, "Class")
	for _, c := range m.Classes {
		header = append(header, util.TitleRoadClass(c))
	}
	if err := cw.Write(header); err != nil {
		return perrors.Wrap(err, "Can't write header")
	}
	for i, c := range m.Classes {
		record := make([]string, 0, len(m.Classes)+1)
		record = append(record, util.TitleRoadClass(c))
		for _, v := range m.Ratios[i] {
			record = append(record, formatFloat(v))
		}
		if err := cw.Write(record); err != nil {
			return perrors.Wrap(err, "Can't write row")
		}
	}
	cw.Flush()
	return perrors.Wrap(cw.Error(), "Can't flush connectivity")
}

var parallelHeader = []string{"osm_id", "match_type", "type", "match_osm_id", "cosine", "geometry"}

// WriteParallelCSV writes one row per aligned road. no match leaves only the header.
func WriteParallelCSV(w io.Writer, matches []parallel.Match) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(parallelHeader); err != nil {
		return perrors.Wrap(err, "Can't write header")
	}
	for _, m := range matches {
		record := []string{m.ID, m.MatchClass, m.Class, m.MatchID, formatFloat(m.Cosine), m.Geometry}
		if err := cw.Write(record); err != nil {
			return perrors.Wrap(err, "Can't write row")
		}
	}
	cw.Flush()
	return perrors.Wrap(cw.Error(), "Can't flush parallel matches")
}

func ConnectivityFileName(year int, city string) string {
	return fmt.Sprintf("%d_%s_connectivity.csv", year, city)
}

func MeanConnectivityFileName(year int) string {
	return fmt.Sprintf("%d_connectivity_mean.csv", year)
}

func ParallelFileName(year int, city string) string {
	return fmt.Sprintf("%d_%s_parallel.csv", year, city)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return perrors.Wrap(err, "Can't create file")
	}
	defer f.Close()
	return write(f)
}

// WriteAnalysisFiles writes every analysis result of report under dir and returns the paths in
// report order: per city connectivity then parallel, then the yearly means.
func WriteAnalysisFiles(dir string, report *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perrors.Wrap(err, "Can't create output dir")
	}

	var paths []string
	for _, c := range report.Cities {
		if c.Connectivity != nil {
			path := filepath.Join(dir, ConnectivityFileName(c.Year, c.City))
			m := c.Connectivity
			if err := writeFile(path, func(w io.Writer) error { return WriteConnectivityCSV(w, m) }); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
		if c.Parallel != nil {
			path := filepath.Join(dir, ParallelFileName(c.Year, c.City))
			matches := c.Parallel
			if err := writeFile(path, func(w io.Writer) error { return WriteParallelCSV(w, matches) }); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	for _, y := range report.Connectivity {
		path := filepath.Join(dir, MeanConnectivityFileName(y.Year))
		m := y.Mean
		if err := writeFile(path, func(w io.Writer) error { return WriteConnectivityCSV(w, m) }); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
