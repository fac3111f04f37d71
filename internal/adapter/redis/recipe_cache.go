package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/thomaswerner858/DinnerMatch/internal/adapter/metrics"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

const (
	recipeListKey             = "recipes:list"
	recipeInvalidationChannel = "recipes:invalidate"
)

// RecipeCache decorates a RecipeStore with an in-memory layer and a shared Redis layer.
// Inserts go straight to the store and drop both layers on every instance.
type RecipeCache struct {
	rdb     *goredis.Client
	recipes domain.RecipeStore
	mem     *memoryCache
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *metrics.RecipeCacheMetrics
}

func NewRecipeCache(rdb *goredis.Client, recipes domain.RecipeStore, ttl time.Duration, clock clockwork.Clock, m *metrics.RecipeCacheMetrics) *RecipeCache {
	return &RecipeCache{
		rdb:     rdb,
		recipes: recipes,
		mem:     newMemoryCache(ttl, clock),
		ttl:     ttl,
		clock:   clock,
		metrics: m,
	}
}

func (c *RecipeCache) List(ctx context.Context) ([]domain.Recipe, error) {
	// Layer 1: in-memory cache
	recipes, ok := c.mem.get()
	c.metrics.Lookup("memory", ok)
	if ok {
		return recipes, nil
	}

	// Layer 2: Redis cache
	recipes, ok = c.getCached(ctx)
	c.metrics.Lookup("redis", ok)
	if ok {
		c.mem.set(recipes)
		return recipes, nil
	}

	// Layer 3: PostgreSQL
	start := c.clock.Now()
	recipes, err := c.recipes.List(ctx)
	if err != nil {
		return nil, err
	}
	c.metrics.Loaded(len(recipes), c.clock.Since(start))

	c.mem.set(recipes)
	c.writeCache(ctx, recipes)
	return recipes, nil
}

func (c *RecipeCache) Insert(ctx context.Context, recipe domain.Recipe) error {
	if err := c.recipes.Insert(ctx, recipe); err != nil {
		return err
	}

	if err := c.Invalidate(ctx); err != nil {
		slog.Warn("Failed to invalidate recipe cache", "recipe_id", recipe.ID, "error", err)
	}
	if err := c.rdb.Publish(ctx, recipeInvalidationChannel, recipe.ID).Err(); err != nil {
		slog.Warn("Failed to publish recipe invalidation", "recipe_id", recipe.ID, "error", err)
	}
	return nil
}

// Invalidate drops the cached list from both layers.
func (c *RecipeCache) Invalidate(ctx context.Context) error {
	c.mem.invalidate()
	c.metrics.Invalidated("local")

	if err := c.rdb.Del(ctx, recipeListKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate recipe cache: %w", err)
	}
	return nil
}

// Start listens for invalidations published by other instances until ctx is done.
// The Redis layer is already gone by then, so only memory is dropped.
func (c *RecipeCache) Start(ctx context.Context) {
	pubsub := c.rdb.Subscribe(ctx, recipeInvalidationChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			c.mem.invalidate()
			c.metrics.Invalidated("remote")
			slog.Debug("Recipe cache invalidated via pub/sub", "recipe_id", msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (c *RecipeCache) writeCache(ctx context.Context, recipes []domain.Recipe) {
	encoded, err := json.Marshal(recipes)
	if err != nil {
		slog.Warn("Failed to marshal recipes for Redis cache", "error", err)
		return
	}

	if err := c.rdb.Set(ctx, recipeListKey, encoded, c.ttl).Err(); err != nil {
		slog.Warn("Failed to populate Redis recipe cache", "error", err)
	}
}

func (c *RecipeCache) getCached(ctx context.Context) ([]domain.Recipe, bool) {
	data, err := c.rdb.Get(ctx, recipeListKey).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Warn("Redis recipe cache GET failed", "error", err)
		}
		return nil, false
	}

	var recipes []domain.Recipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		slog.Warn("Failed to unmarshal cached recipes", "error", err)
		return nil, false
	}
	return recipes, true
}

// memoryCache holds a single recipe list with TTL-based expiry.
type memoryCache struct {
	mu        sync.RWMutex
	recipes   []domain.Recipe
	expiresAt time.Time
	valid     bool
	ttl       time.Duration
	clock     clockwork.Clock
}

func newMemoryCache(ttl time.Duration, clock clockwork.Clock) *memoryCache {
	return &memoryCache{ttl: ttl, clock: clock}
}

func (c *memoryCache) get() ([]domain.Recipe, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid || c.clock.Now().After(c.expiresAt) {
		return nil, false
	}
	return append([]domain.Recipe(nil), c.recipes...), true
}

func (c *memoryCache) set(recipes []domain.Recipe) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recipes = append([]domain.Recipe(nil), recipes...)
	c.expiresAt = c.clock.Now().Add(c.ttl)
	c.valid = true
}

func (c *memoryCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recipes = nil
	c.valid = false
}
