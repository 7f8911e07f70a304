package aggregator

import (
	"context"
	"errors"

	"github.com/lintang-b-s/osmroadlength/pkg"
	"github.com/lintang-b-s/osmroadlength/pkg/concurrent"
	"github.com/lintang-b-s/osmroadlength/pkg/roadlength"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"go.uber.org/zap"
)

type DriverConfig struct {
	Years   []int
	Cities  []string
	Classes []string
	Workers int // 0 = one per cpu

	Analyses AnalysisConfig
}

// Job. one (year, city, road class) batch.
type Job struct {
	Year  int
	City  string
	Class string

	yearIdx, cityIdx, classIdx int
}

type JobResult struct {
	Job
	Result roadlength.BatchResult
	Err    error
}

// Report. per-year output tables plus every batch result, in job order.
// Cities and Connectivity are only filled when an analysis is enabled.
type Report struct {
	Tables       []YearTable
	Batches      []JobResult
	Cities       []CityAnalysis
	Connectivity []YearConnectivity
}

type Driver struct {
	cfg    DriverConfig
	tables *TableCache
	calc   *roadlength.Calculator
	log    *zap.Logger
}

// NewDriver folds the configured classes to their base class ("primary_link" -> "primary"), a
// class listed twice after folding keeps its first column.
func NewDriver(cfg DriverConfig, tables *TableCache, calc *roadlength.Calculator, log *zap.Logger) *Driver {
	cfg.Classes = foldClasses(cfg.Classes)
	return &Driver{
		cfg:    cfg,
		tables: tables,
		calc:   calc,
		log:    log,
	}
}

func foldClasses(classes []string) []string {
	folded := make([]string, 0, len(classes))
	seen := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		c = pkg.BaseRoadClass(c)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		folded = append(folded, c)
	}
	return folded
}

func (d *Driver) jobs() []Job {
	jobs := make([]Job, 0, len(d.cfg.Years)*len(d.cfg.Cities)*len(d.cfg.Classes))
	for yi, year := range d.cfg.Years {
		for ci, city := range d.cfg.Cities {
			for ki, class := range d.cfg.Classes {
				jobs = append(jobs, Job{
					Year: year, City: util.CleanCityName(city), Class: class,
					yearIdx: yi, cityIdx: ci, classIdx: ki,
				})
			}
		}
	}
	return jobs
}

func (d *Driver) runJob(ctx context.Context, job Job) JobResult {
	segments, err := d.tables.Get(ctx, job.Year, job.City)
	if err != nil {
		return JobResult{Job: job, Err: err}
	}

	res := d.calc.ComputeBatch(job.Class, segments)
	for _, diag := range res.Diagnostics {
		d.log.Warn("skipping road segment",
			zap.Int("year", job.Year), zap.String("city", job.City), zap.String("class", job.Class),
			zap.String("identifier", diag.Identifier), zap.Error(diag.Err))
	}
	d.log.Debug("batch done",
		zap.Int("year", job.Year), zap.String("city", job.City), zap.String("class", job.Class),
		zap.Float64("lengthKm", res.LengthKm), zap.Int("unique", res.UniqueCount),
		zap.Int("duplicatePairs", len(res.DuplicatePairs)))
	return JobResult{Job: job, Result: res}
}

/*
Run computes every (year, city, class) batch on a worker pool and collates the results.
batches are independent, the collation after the pool drains is the only serialization point.

a (year, city) whose table is missing or unreadable is skipped with a warning and has no row.
cancelling ctx stops dispatching batches, Run then returns ctx.Err().
*/
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	jobs := d.jobs()

	pool := concurrent.NewWorkerPool[Job, JobResult](d.cfg.Workers, len(jobs)).WithContext(ctx)
	for _, job := range jobs {
		pool.AddJob(job)
	}
	pool.Close()

	d.log.Info("computing road lengths",
		zap.Int("batches", len(jobs)), zap.Int("workers", pool.NumWorkers()))
	pool.Start(func(job Job) JobResult {
		return d.runJob(ctx, job)
	})
	pool.Wait()

	ordered := make([]JobResult, len(jobs))
	done := make([]bool, len(jobs))
	nCities, nClasses := len(d.cfg.Cities), len(d.cfg.Classes)
	for r := range pool.CollectResults() {
		pos := (r.yearIdx*nCities+r.cityIdx)*nClasses + r.classIdx
		ordered[pos] = r
		done[pos] = true
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Tables: make([]YearTable, 0, len(d.cfg.Years))}
	for yi, year := range d.cfg.Years {
		table := NewYearTable(year, d.cfg.Classes)
		for ci := range d.cfg.Cities {
			base := (yi*nCities + ci) * nClasses
			row, ok := d.collectRow(ordered[base:base+nClasses], done[base:base+nClasses])
			if !ok {
				continue
			}
			table.Rows = append(table.Rows, row)
			d.log.Info("city done", zap.Int("year", year), zap.String("city", row.City),
				zap.Float64s("lengthsKm", row.LengthsKm))
		}
		report.Tables = append(report.Tables, table)
	}

	for i := range ordered {
		if done[i] && ordered[i].Err == nil {
			report.Batches = append(report.Batches, ordered[i])
		}
	}

	if d.cfg.Analyses.enabled() {
		if err := d.runAnalyses(ctx, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// collectRow. one city row of a year table, false when the city has to be skipped.
func (d *Driver) collectRow(results []JobResult, done []bool) (CityRow, bool) {
	row := CityRow{LengthsKm: make([]float64, len(results))}
	for k, r := range results {
		if !done[k] {
			return CityRow{}, false
		}
		if r.Err != nil {
			if errors.Is(r.Err, util.ErrNotFound) {
				d.log.Warn("input table not found, skipping", zap.Int("year", r.Year), zap.String("city", r.City),
					zap.Error(r.Err))
			} else {
				d.log.Warn("input table unreadable, skipping", zap.Int("year", r.Year), zap.String("city", r.City),
					zap.Error(r.Err))
			}
			return CityRow{}, false
		}
		row.City = r.City
		row.LengthsKm[k] = r.Result.LengthKm
	}
	return row, true
}
