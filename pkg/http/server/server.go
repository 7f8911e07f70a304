package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

type Config struct {
	Port    int
	Timeout time.Duration

	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
}

func New(ctx context.Context, handler http.Handler, config Config) *http.Server {
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: http.TimeoutHandler(handler, config.Timeout, "request timed out"),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.Timeout + config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
}
