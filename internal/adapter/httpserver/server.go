package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/thomaswerner858/DinnerMatch/internal/adapter/metrics"
	"github.com/thomaswerner858/DinnerMatch/internal/app"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
	"github.com/thomaswerner858/DinnerMatch/internal/platform/config"
)

type matchService interface {
	CastVote(ctx context.Context, userID, recipeID string, kind domain.VoteKind, day string) (domain.Vote, error)
	RetryPending(ctx context.Context, userID string) (int, error)
	HasDecidedToday(ctx context.Context, userID, day string) (bool, error)
	MatchesForDay(ctx context.Context, userID, day string) ([]string, error)
	DayState(ctx context.Context, userID, day string) (domain.DayState, error)
	Pairing(ctx context.Context, userID string) (domain.Pairing, error)
	SetPartner(ctx context.Context, userID, partnerID string) (domain.Pairing, error)
}

type candidateService interface {
	Candidate(ctx context.Context, day string) (app.Candidate, error)
	Recipes(ctx context.Context) ([]domain.Recipe, error)
	Recipe(ctx context.Context, id string) (domain.Recipe, error)
	AddRecipe(ctx context.Context, recipe domain.Recipe) (domain.Recipe, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	matches    matchService
	candidates candidateService

	websocketHandler http.Handler
	metricsHandler   http.Handler
	httpMetrics      *metrics.HTTPMetrics
	voteMetrics      *metrics.VoteMetrics

	healthChecks []HealthCheck
	startTime    time.Time
}

// Deps bundles the collaborators a Server needs beyond its services.
type Deps struct {
	WebsocketHandler http.Handler
	MetricsHandler   http.Handler
	HTTPMetrics      *metrics.HTTPMetrics
	VoteMetrics      *metrics.VoteMetrics
	HealthChecks     []HealthCheck
}

func NewServer(cfg *config.Config, matches matchService, candidates candidateService, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		config:           cfg,
		matches:          matches,
		candidates:       candidates,
		websocketHandler: deps.WebsocketHandler,
		metricsHandler:   deps.MetricsHandler,
		httpMetrics:      deps.HTTPMetrics,
		voteMetrics:      deps.VoteMetrics,
		healthChecks:     deps.HealthChecks,
		startTime:        time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
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

// ServeHTTP lets tests drive the full middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
