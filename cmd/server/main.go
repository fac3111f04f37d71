package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/thomaswerner858/DinnerMatch/internal/adapter/httpserver"
	"github.com/thomaswerner858/DinnerMatch/internal/adapter/metrics"
	"github.com/thomaswerner858/DinnerMatch/internal/adapter/postgres"
	"github.com/thomaswerner858/DinnerMatch/internal/adapter/redis"
	"github.com/thomaswerner858/DinnerMatch/internal/adapter/websocket"
	"github.com/thomaswerner858/DinnerMatch/internal/app"
	"github.com/thomaswerner858/DinnerMatch/internal/platform/config"
	"github.com/thomaswerner858/DinnerMatch/internal/platform/logging"
	"github.com/thomaswerner858/DinnerMatch/internal/platform/version"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, dbMetrics *metrics.DBMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, metrics.NewQueryTracer(dbMetrics))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupCentrifuge(cfg *config.Config, rdb *goredis.Client, wsMetrics *metrics.WebSocketMetrics) (*centrifuge.Node, http.Handler) {
	node, err := websocket.NewNode(wsMetrics, cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create centrifuge node", "error", err)
		os.Exit(1)
	}
	if err := websocket.SetupRedis(node, rdb.Options().Addr); err != nil {
		slog.Error("Failed to set up centrifuge redis broker", "error", err)
		os.Exit(1)
	}
	if err := node.Run(); err != nil {
		slog.Error("Failed to start centrifuge node", "error", err)
		os.Exit(1)
	}

	wsHandler := centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		CheckOrigin: websocket.NewCheckOrigin(websocket.OriginPolicy{
			AppURL:      cfg.AppURL,
			Allowed:     cfg.AllowedOrigins,
			Development: cfg.IsDevelopment(),
		}, wsMetrics),
	})
	return node, websocket.Authenticate(wsHandler)
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	reg := metrics.NewRegistry(version.Get())
	dbMetrics := metrics.NewDBMetrics(reg)
	voteMetrics := metrics.NewVoteMetrics(reg)
	cacheMetrics := metrics.NewRecipeCacheMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)
	wsMetrics := metrics.NewWebSocketMetrics(reg)

	pool := setupDB(cfg, dbMetrics)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	node, wsHandler := setupCentrifuge(cfg, redisClient, wsMetrics)

	// Stores
	recipes := redis.NewRecipeCache(redisClient, postgres.NewRecipeRepo(pool), cfg.RecipeCacheTTL, clock, cacheMetrics)
	votes := postgres.NewBreakerVoteStore(postgres.NewVoteRepo(pool), cfg.BreakerFailures, cfg.BreakerOpenFor, dbMetrics)
	voteFeed := postgres.NewVoteListener(pool, votes, clock, voteMetrics)
	pairings := postgres.NewPairingRepo(pool)
	pairingFeed := redis.NewPairingFeed(redisClient)

	// Match events: count, deduplicate across instances, then push to the browser.
	publisher := websocket.NewMatchPublisher(node, wsMetrics)
	guard := redis.NewCelebrationGuard(redisClient, publisher, cfg.CelebrationTTL, voteMetrics)
	notifier := metrics.NewMatchCounter(guard, voteMetrics)

	candidates := app.NewCandidateService(recipes, clock)
	appSvc := app.NewService(votes, voteFeed, pairings, pairingFeed, notifier, clock, app.SessionOptions{
		CommandTimeout: cfg.CommandTimeout,
		IdleTimeout:    cfg.IdleTimeout,
	})

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}

	srv := httpserver.NewServer(cfg, appSvc, candidates, httpserver.Deps{
		WebsocketHandler: wsHandler,
		MetricsHandler:   metrics.Handler(reg),
		HTTPMetrics:      httpMetrics,
		VoteMetrics:      voteMetrics,
		HealthChecks:     healthChecks,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return appSvc.Run(gctx)
	})
	g.Go(func() error {
		recipes.Start(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		appSvc.Stop()
		if err := node.Shutdown(shutdownCtx); err != nil {
			slog.Error("Centrifuge shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
