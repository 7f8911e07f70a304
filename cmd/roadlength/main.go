package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lintang-b-s/osmroadlength/pkg/aggregator"
	"github.com/lintang-b-s/osmroadlength/pkg/dedup"
	"github.com/lintang-b-s/osmroadlength/pkg/logger"
	"github.com/lintang-b-s/osmroadlength/pkg/osmparser"
	"github.com/lintang-b-s/osmroadlength/pkg/roadlength"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"go.uber.org/zap"
)

var (
	configDir = flag.String("config_dir", "./data", "directory holding config.yaml")
	source    = flag.String("source", "csv", "input table format: csv (clipped WKT tables) or pbf (raw OSM extracts)")
	audit     = flag.Bool("audit", false, "also write the resolved duplicate pairs to <output_dir>/duplicate_audit.csv")

	connectivityOn = flag.Bool("connectivity", false, "also write per city class connectivity matrices (overrides analyses.connectivity)")
	parallelOn     = flag.Bool("parallel", false, "also write per city parallel road matches (overrides analyses.parallel)")
)

func main() {
	flag.Parse()
	if err := util.ReadConfig(*configDir); err != nil {
		panic(err)
	}
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := util.LoadRunConfig()
	if err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	method, err := roadlength.ParseLengthMethod(cfg.LengthMethod)
	if err != nil {
		logger.Fatal("invalid length method", zap.Error(err))
	}

	calc := roadlength.NewCalculator(roadlength.Options{
		Thresholds: dedup.Thresholds{
			CentroidDistance:  cfg.Thresholds.CentroidDistance,
			MinDistance:       cfg.Thresholds.MinDistance,
			ParallelTolerance: cfg.Thresholds.ParallelTolerance,
		},
		IndexBoxSize: cfg.Thresholds.IndexBoxSize,
		Method:       method,
	}, logger)

	var tableSource aggregator.Source
	switch *source {
	case "csv":
		tableSource = aggregator.NewCSVSource(cfg.InputPattern)
	case "pbf":
		tableSource = osmparser.NewPBFSource(cfg.InputPattern, cfg.Workers, logger)
	default:
		logger.Fatal("unknown source", zap.String("source", *source))
	}

	tables, err := aggregator.NewTableCache(tableSource, cfg.TableCacheSize, logger)
	if err != nil {
		logger.Fatal("can't create table cache", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := aggregator.NewDriver(aggregator.DriverConfig{
		Years:   cfg.Years,
		Cities:  cfg.Cities,
		Classes: cfg.RoadClasses,
		Workers: cfg.Workers,
		Analyses: aggregator.AnalysisConfig{
			Connectivity:        cfg.Analyses.Connectivity || *connectivityOn,
			ConnectivityClasses: cfg.Analyses.ConnectivityClasses,
			ConnectivityMerge:   cfg.Analyses.ConnectivityMerge,
			Parallel:            cfg.Analyses.Parallel || *parallelOn,
			ParallelClasses:     cfg.Analyses.ParallelClasses,
			AlignmentTolerance:  cfg.Analyses.AlignmentTolerance,
			IndexBoxSize:        cfg.Thresholds.IndexBoxSize,
		},
	}, tables, calc, logger)

	report, err := driver.Run(ctx)
	if err != nil {
		logger.Fatal("road length run stopped", zap.Error(err))
	}

	for _, table := range report.Tables {
		path, err := aggregator.WriteTableFile(cfg.OutputDir, table)
		if err != nil {
			logger.Fatal("can't write year table", zap.Int("year", table.Year), zap.Error(err))
		}
		logger.Info("year table written", zap.Int("year", table.Year), zap.String("path", path),
			zap.Int("cities", len(table.Rows)))
	}

	if len(report.Cities) > 0 {
		paths, err := aggregator.WriteAnalysisFiles(cfg.OutputDir, report)
		if err != nil {
			logger.Fatal("can't write analysis files", zap.Error(err))
		}
		logger.Info("network analyses written", zap.Int("files", len(paths)), zap.String("dir", cfg.OutputDir))
	}

	if *audit {
		path := filepath.Join(cfg.OutputDir, "duplicate_audit.csv")
		f, err := os.Create(path)
		if err != nil {
			logger.Fatal("can't create audit file", zap.Error(err))
		}
		defer f.Close()
		if err := aggregator.WriteAudit(f, report.Batches); err != nil {
			logger.Fatal("can't write audit file", zap.Error(err))
		}
		logger.Info("duplicate audit written", zap.String("path", path))
	}
}
