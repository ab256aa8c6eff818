package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/streambus/internal/metrics"
	"golang.org/x/time/rate"
)

// idle producers are forgotten after this long
const producerLimitExpiry = 5 * time.Minute

// newMessageLimiter caps how fast one producer IP may push messages onto the bus.
// Denied submissions become a 429 through the error middleware.
func newMessageLimiter(perSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: producerLimitExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, producer string, err error) error {
			metrics.MessagesRateLimited.Inc()
			slog.WarnContext(c.Request().Context(), "Producer exceeded message rate", "producer_ip", producer)
			return echo.NewHTTPError(http.StatusTooManyRequests, "message rate exceeded").SetInternal(err)
		},
	})
}
