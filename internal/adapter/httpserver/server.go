// Package httpserver exposes the bus over HTTP: the message API, the overlay websocket,
// health probes and metrics.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/streambus/internal/bus"
	"github.com/pscheid92/streambus/internal/platform/config"
)

type appService interface {
	Publish(ctx context.Context, m bus.Message)
	Latest() map[string]bus.Message
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app    appService
	stream http.Handler

	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

// NewServer wires the routes. stream serves GET /ws and may be nil to disable the overlay stream.
func NewServer(cfg *config.Config, app appService, stream http.Handler, healthChecks []HealthCheck, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		stream:       stream,
		healthChecks: healthChecks,
		clock:        clock,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting HTTP server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
