package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/thomaswerner858/DinnerMatch/internal/adapter/metrics"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

// CelebrationGuard forwards a match to the next notifier at most once per
// viewer, recipe and day, across every instance sharing the Redis.
type CelebrationGuard struct {
	rdb     *goredis.Client
	next    domain.MatchNotifier
	ttl     time.Duration
	metrics *metrics.VoteMetrics
}

func NewCelebrationGuard(rdb *goredis.Client, next domain.MatchNotifier, ttl time.Duration, m *metrics.VoteMetrics) *CelebrationGuard {
	return &CelebrationGuard{rdb: rdb, next: next, ttl: ttl, metrics: m}
}

func (g *CelebrationGuard) NotifyMatch(ctx context.Context, match domain.Match) error {
	first, err := g.claim(ctx, match)
	if err != nil {
		// Redis down: a duplicate celebration beats a lost one.
		slog.Warn("Celebration marker unavailable, notifying anyway", "user_id", match.UserID, "recipe_id", match.RecipeID, "error", err)
		g.record("unguarded")
		return g.next.NotifyMatch(ctx, match)
	}
	if !first {
		g.record("duplicate")
		return nil
	}

	if err := g.next.NotifyMatch(ctx, match); err != nil {
		// Release the marker so a later replay can try again.
		if delErr := g.rdb.Del(ctx, celebrationKey(match)).Err(); delErr != nil {
			slog.Warn("Failed to release celebration marker", "user_id", match.UserID, "error", delErr)
		}
		g.record("failed")
		return err
	}

	g.record("delivered")
	return nil
}

func (g *CelebrationGuard) claim(ctx context.Context, match domain.Match) (bool, error) {
	args := goredis.SetArgs{TTL: g.ttl, Mode: "NX"}
	_, err := g.rdb.SetArgs(ctx, celebrationKey(match), "1", args).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to set celebration marker: %w", err)
	}
	return true, nil
}

func (g *CelebrationGuard) record(outcome string) {
	if g.metrics != nil {
		g.metrics.Celebrations.WithLabelValues(outcome).Inc()
	}
}

func celebrationKey(match domain.Match) string {
	return "celebrated:" + match.UserID + ":" + match.RecipeID + ":" + match.Day
}
