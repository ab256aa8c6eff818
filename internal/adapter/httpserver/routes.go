package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/streambus/internal/metrics"
	apperrors "github.com/pscheid92/streambus/internal/platform/errors"
)

const messageBodyLimit = "64K"

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(metricsMiddleware())
	s.echo.Use(apperrors.Middleware())

	s.registerHealthRoutes()
	s.registerAPIRoutes()

	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	if s.stream != nil {
		s.echo.GET("/ws", echo.WrapHandler(s.stream))
	}
}

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api")
	api.GET("/latest", s.handleLatest)
	api.POST("/messages", s.handleSendMessage,
		middleware.BodyLimit(messageBodyLimit),
		newMessageLimiter(s.config.MessageRate, s.config.MessageBurst),
	)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		Skipper: func(c echo.Context) bool {
			// probes and scrapes would drown everything else
			switch c.Path() {
			case "/health/live", "/health/ready", "/metrics":
				return true
			}
			return false
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
