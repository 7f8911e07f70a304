package http

import (
	"context"

	http_router "github.com/lintang-b-s/osmroadlength/pkg/http/router"
	"github.com/lintang-b-s/osmroadlength/pkg/http/router/controllers"
	http_server "github.com/lintang-b-s/osmroadlength/pkg/http/server"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	Log *zap.Logger
	g   *errgroup.Group
}

func NewServer(log *zap.Logger) *Server {
	return &Server{Log: log, g: &errgroup.Group{}}
}

// Use starts the API in the background, Wait blocks until it stops.
func (s *Server) Use(
	ctx context.Context,
	log *zap.Logger,

	useRateLimit bool,
	roadLengthService controllers.RoadLengthService,
) (*Server, error) {
	viper.SetDefault("API_PORT", 6060)
	viper.SetDefault("API_TIMEOUT", "300s")
	viper.SetDefault("RATE_LIMIT_RPS", 20.0)
	viper.SetDefault("RATE_LIMIT_BURST", 40)

	config := http_server.Config{
		Port:    viper.GetInt("API_PORT"),
		Timeout: viper.GetDuration("API_TIMEOUT"),
	}
	limit := http_router.RateLimit{
		Enabled: useRateLimit,
		RPS:     viper.GetFloat64("RATE_LIMIT_RPS"),
		Burst:   viper.GetInt("RATE_LIMIT_BURST"),
	}

	server := http_router.NewAPI(log)

	s.g.Go(func() error {
		return server.Run(ctx, config, roadLengthService, limit)
	})

	return s, nil
}

func (s *Server) Wait() error {
	return s.g.Wait()
}
