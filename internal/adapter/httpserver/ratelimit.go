package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	apperrors "github.com/thomaswerner858/DinnerMatch/internal/platform/errors"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter throttles per user, falling back to the client IP on routes without one.
// limited counts rejections and may be nil.
func newRateLimiter(ratePerSecond float64, burst int, limited prometheus.Counter) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if userID := c.Param("userID"); userID != "" {
				return "user:" + userID, nil
			}
			return "ip:" + c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if limited != nil {
				limited.Inc()
			}
			return apperrors.RateLimitedError("rate limit exceeded").WithField("identifier", identifier)
		},
	})
}
