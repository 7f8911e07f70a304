package main

import (
	"context"
	"flag"

	"github.com/lintang-b-s/osmroadlength/pkg/http"
	"github.com/lintang-b-s/osmroadlength/pkg/http/usecases"
	"github.com/lintang-b-s/osmroadlength/pkg/logger"
	"github.com/lintang-b-s/osmroadlength/pkg/roadlength"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	lengthMethod = flag.String("length_method", "haversine", "geodesic segment length: haversine, s2 or vincenty")
	rateLimit    = flag.Bool("rate_limit", true, "limit requests per second (RATE_LIMIT_RPS, RATE_LIMIT_BURST)")
)

func main() {
	flag.Parse()
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	viper.AutomaticEnv()

	method, err := roadlength.ParseLengthMethod(*lengthMethod)
	if err != nil {
		panic(err)
	}
	opts := roadlength.DefaultOptions()
	opts.Method = method

	api := http.NewServer(logger)
	roadLengthService := usecases.NewRoadLengthService(roadlength.NewCalculator(opts, logger), logger)

	ctx, cleanup, err := NewContext()
	if err != nil {
		panic(err)
	}
	api.Use(ctx, logger, *rateLimit, roadLengthService)

	signal := http.GracefulShutdown()

	logger.Info("road length server stopped", zap.String("signal", signal.String()))
	cleanup()
	if err := api.Wait(); err != nil {
		logger.Error("API stopped with error", zap.Error(err))
	}
}

func NewContext() (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	cb := func() {
		cancel()
	}

	return ctx, cb, nil
}
