// Package server assembles the fern HTTP API.
package server

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/session"
)

type Options struct {
	ServiceName string
	Manager     *session.Manager
	Journal     handlers.JournalReader
	Health      *health.Checker
	Logger      ectologger.Logger
}

// New returns the echo instance serving the session API, health checks and
// metrics.
func New(opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(opts.Logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(opts.ServiceName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(opts.Logger))

	opts.Health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	handlers.NewSessionHandler(opts.Manager, opts.Journal, opts.Logger).Register(api.Group("/sessions"))

	return e
}
