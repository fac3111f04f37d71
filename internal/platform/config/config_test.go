package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
}

func TestLoad_AllRequiredVarsSet(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		skipEnv string
		wantErr string
	}{
		{"missing DATABASE_URL", "DATABASE_URL", "DATABASE_URL is required"},
		{"missing REDIS_URL", "REDIS_URL", "REDIS_URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.skipEnv, "")

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 5*time.Minute, cfg.RecipeCacheTTL)
	assert.Equal(t, 2.0, cfg.VoteRateLimit)
	assert.Equal(t, 10, cfg.VoteRateBurst)
	assert.Equal(t, 48*time.Hour, cfg.CelebrationTTL)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, uint32(5), cfg.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.BreakerOpenFor)
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("RECIPE_CACHE_TTL", "30s")
	t.Setenv("STORE_BREAKER_OPEN_FOR", "1m")
	t.Setenv("ALLOWED_ORIGINS", "https://kitchen.example.org http://tablet.local:3000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.RecipeCacheTTL)
	assert.Equal(t, time.Minute, cfg.BreakerOpenFor)
	assert.Equal(t, []string{"https://kitchen.example.org", "http://tablet.local:3000"}, cfg.AllowedOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown log format", "LOG_FORMAT", "xml"},
		{"zero rate", "VOTE_RATE_LIMIT", "0"},
		{"zero burst", "VOTE_RATE_BURST", "0"},
		{"short celebration ttl", "CELEBRATION_TTL", "1h"},
		{"zero breaker failures", "STORE_BREAKER_FAILURES", "0"},
		{"idle timeout below a minute", "SESSION_IDLE_TIMEOUT", "10s"},
		{"not a duration", "RECIPE_CACHE_TTL", "soon"},
		{"allowed origin without scheme", "ALLOWED_ORIGINS", "kitchen.example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
