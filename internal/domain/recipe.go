package domain

import (
	"context"
	"strings"
	"time"
)

// Recipe is a candidate meal. It is immutable once stored.
type Recipe struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ImageRef  string    `json:"imageRef"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the fields a store insert needs.
func (r Recipe) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return NewValidationError("id", "recipe id is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return NewValidationError("title", "recipe title is required")
	}
	return nil
}

// RecipeStore lists and inserts recipes.
// List must return the same order on every client: created_at descending, ties by id.
type RecipeStore interface {
	List(ctx context.Context) ([]Recipe, error)
	Insert(ctx context.Context, recipe Recipe) error
}
