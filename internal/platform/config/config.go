package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	AppURL      string `env:"APP_URL" default:"http://localhost:8080"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// Extra browser origins allowed on the match socket, space separated.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`

	RecipeCacheTTL  time.Duration `env:"RECIPE_CACHE_TTL" default:"5m"`
	VoteRateLimit   float64       `env:"VOTE_RATE_LIMIT" default:"2"`
	VoteRateBurst   int           `env:"VOTE_RATE_BURST" default:"10"`
	CelebrationTTL  time.Duration `env:"CELEBRATION_TTL" default:"48h"`
	CommandTimeout  time.Duration `env:"SESSION_COMMAND_TIMEOUT" default:"5s"`
	IdleTimeout     time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"30m"`
	BreakerFailures uint32        `env:"STORE_BREAKER_FAILURES" default:"5"`
	BreakerOpenFor  time.Duration `env:"STORE_BREAKER_OPEN_FOR" default:"30s"`
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"REDIS_URL", cfg.RedisURL},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if !slices.Contains([]string{"text", "json"}, cfg.LogFormat) {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.VoteRateLimit <= 0 || cfg.VoteRateBurst < 1 {
		return errors.New("VOTE_RATE_LIMIT must be positive and VOTE_RATE_BURST at least 1")
	}
	if cfg.CelebrationTTL < 24*time.Hour {
		return errors.New("CELEBRATION_TTL must cover at least one day")
	}
	if cfg.CommandTimeout <= 0 {
		return errors.New("SESSION_COMMAND_TIMEOUT must be positive")
	}
	if cfg.IdleTimeout < time.Minute {
		return errors.New("SESSION_IDLE_TIMEOUT must be at least 1m")
	}
	for _, origin := range cfg.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("ALLOWED_ORIGINS entry %q must be an http(s) origin", origin)
		}
	}
	if cfg.BreakerFailures == 0 {
		return errors.New("STORE_BREAKER_FAILURES must be at least 1")
	}

	return nil
}
