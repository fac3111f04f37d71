package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

type RecipeRepo struct {
	pool *pgxpool.Pool
}

func NewRecipeRepo(pool *pgxpool.Pool) *RecipeRepo {
	return &RecipeRepo{pool: pool}
}

const listRecipes = `
SELECT id, title, body, image_ref, owner_id, created_at
FROM recipes
ORDER BY created_at DESC, id ASC`

// List returns every recipe in the order all clients index into.
func (r *RecipeRepo) List(ctx context.Context) ([]domain.Recipe, error) {
	rows, err := r.pool.Query(ctx, listRecipes)
	if err != nil {
		return nil, storeError("list recipes", err)
	}

	recipes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Recipe, error) {
		var rec domain.Recipe
		err := row.Scan(&rec.ID, &rec.Title, &rec.Body, &rec.ImageRef, &rec.OwnerID, &rec.CreatedAt)
		rec.CreatedAt = rec.CreatedAt.UTC()
		return rec, err
	})
	if err != nil {
		return nil, storeError("list recipes", err)
	}
	return recipes, nil
}

const insertRecipe = `
INSERT INTO recipes (id, title, body, image_ref, owner_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

func (r *RecipeRepo) Insert(ctx context.Context, recipe domain.Recipe) error {
	if err := recipe.Validate(); err != nil {
		return err
	}
	createdAt := recipe.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, insertRecipe, recipe.ID, recipe.Title, recipe.Body, recipe.ImageRef, recipe.OwnerID, createdAt)
	if err != nil {
		return storeError("insert recipe", err)
	}
	return nil
}
