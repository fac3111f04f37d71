package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/thomaswerner858/DinnerMatch/internal/platform/correlation"
	apperrors "github.com/thomaswerner858/DinnerMatch/internal/platform/errors"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlation.Middleware())
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(apperrors.Middleware(s.errorsTotal()))
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000, // 2 years; only sent over HTTPS
		HSTSPreloadEnabled: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	s.registerHealthRoutes()
	s.registerAPIRoutes()

	if s.websocketHandler != nil {
		s.echo.GET("/connection/websocket", echo.WrapHandler(s.websocketHandler))
	}
	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}
}

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api")

	api.GET("/recipes", s.handleListRecipes)
	api.POST("/recipes", s.handleAddRecipe)
	api.GET("/recipes/:recipeID", s.handleGetRecipe)

	user := api.Group("/users/:userID")
	user.GET("/candidate", s.handleCandidate)
	user.POST("/votes", s.handleCastVote, s.voteRateLimiter())
	user.POST("/votes/retry", s.handleRetryPending)
	user.GET("/decided", s.handleDecided)
	user.GET("/matches", s.handleMatches)
	user.GET("/pairing", s.handleGetPairing)
	user.PUT("/pairing", s.handleSetPairing)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
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

func (s *Server) voteRateLimiter() echo.MiddlewareFunc {
	var limited prometheus.Counter
	if s.httpMetrics != nil {
		limited = s.httpMetrics.RateLimited
	}
	return newRateLimiter(s.config.VoteRateLimit, s.config.VoteRateBurst, limited)
}

func (s *Server) errorsTotal() *prometheus.CounterVec {
	if s.httpMetrics == nil {
		return nil
	}
	return s.httpMetrics.ErrorsTotal
}
