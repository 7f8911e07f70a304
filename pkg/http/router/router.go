package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/lintang-b-s/osmroadlength/pkg/http/router/controllers"
	router_helper "github.com/lintang-b-s/osmroadlength/pkg/http/router/routerhelper"
	http_server "github.com/lintang-b-s/osmroadlength/pkg/http/server"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type API struct {
	log *zap.Logger
}

func NewAPI(log *zap.Logger) *API {
	return &API{log: log}
}

type RateLimit struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// Handler. router wrapped in the middleware chain, without a listener.
func (api *API) Handler(roadLengthService controllers.RoadLengthService, limit RateLimit) http.Handler {
	router := httprouter.New()

	corsHandler := cors.New(cors.Options{ //nolint:gocritic // ignore
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300, //nolint:mnd // ignore
	})

	group := router_helper.NewRouteGroup(router, "/api")
	controllers.New(roadLengthService, api.log).Routes(group)

	mwChain := []alice.Constructor{corsHandler.Handler, api.recoverPanic, Heartbeat("api/healthz"),
		Logger(api.log)}
	if limit.Enabled {
		mwChain = append(mwChain, Limit(limit.RPS, limit.Burst))
	}
	mwChain = append(mwChain, EnforceJSONHandler)

	return alice.New(mwChain...).Then(router)
}

func (api *API) Run(
	ctx context.Context,
	config http_server.Config,
	roadLengthService controllers.RoadLengthService,
	limit RateLimit,
) error {
	api.log.Info("Run httprouter API")

	srv := http_server.New(ctx, api.Handler(roadLengthService, limit), config)
	api.log.Info(fmt.Sprintf("API run on port %d", config.Port))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		api.log.Info("HTTP server stopped", zap.Error(err))
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		api.log.Info("Context canceled, shutting down server")
		_ = srv.Shutdown(context.Background())
		return nil
	}
}
