package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DaySeed folds a calendar date into the selector seed. The positional weights
// keep e.g. 2024-01-11 and 2024-11-01 apart.
func DaySeed(day time.Time) int {
	return day.Year()*1000 + int(day.Month())*100 + day.Day()
}

// SelectCandidate picks the recipe every paired user sees on day. Callers must
// pass the list in the store's stable order. An empty list yields false.
func SelectCandidate(recipes []domain.Recipe, day time.Time) (domain.Recipe, bool) {
	if len(recipes) == 0 {
		return domain.Recipe{}, false
	}
	return recipes[DaySeed(day)%len(recipes)], true
}

// Candidate is the card shown for a day. Recipe is nil when there is nothing to vote on.
type Candidate struct {
	Recipe *domain.Recipe `json:"recipe"`
	Day    string         `json:"day"`
}

func (c Candidate) HasCandidate() bool {
	return c.Recipe != nil
}

type CandidateService struct {
	recipes domain.RecipeStore
	clock   clockwork.Clock
	loads   singleflight.Group
}

func NewCandidateService(recipes domain.RecipeStore, clock clockwork.Clock) *CandidateService {
	return &CandidateService{recipes: recipes, clock: clock}
}

// Today returns the current UTC calendar date.
func (s *CandidateService) Today() string {
	return domain.DayOf(s.clock.Now())
}

// Candidate resolves the candidate for day. An empty day means today.
func (s *CandidateService) Candidate(ctx context.Context, day string) (Candidate, error) {
	if day == "" {
		day = s.Today()
	}
	date, err := domain.ParseDay(day)
	if err != nil {
		return Candidate{}, domain.NewValidationError("day", "must be a calendar date (YYYY-MM-DD)")
	}

	recipes, err := s.Recipes(ctx)
	if err != nil {
		return Candidate{}, err
	}

	recipe, ok := SelectCandidate(recipes, date)
	if !ok {
		return Candidate{Day: day}, nil
	}
	return Candidate{Recipe: &recipe, Day: day}, nil
}

// Recipes loads the ordered recipe list. Concurrent callers share one store round-trip.
func (s *CandidateService) Recipes(ctx context.Context) ([]domain.Recipe, error) {
	v, err, _ := s.loads.Do("recipes", func() (any, error) {
		return s.recipes.List(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return v.([]domain.Recipe), nil
}

// AddRecipe validates and stores a new recipe, filling in ID and creation time when absent.
func (s *CandidateService) AddRecipe(ctx context.Context, recipe domain.Recipe) (domain.Recipe, error) {
	if recipe.ID == "" {
		recipe.ID = newID()
	}
	if recipe.CreatedAt.IsZero() {
		recipe.CreatedAt = s.clock.Now().UTC()
	}
	if err := recipe.Validate(); err != nil {
		return domain.Recipe{}, err
	}
	if err := s.recipes.Insert(ctx, recipe); err != nil {
		return domain.Recipe{}, fmt.Errorf("insert recipe: %w", err)
	}
	return recipe, nil
}

// Recipe finds one recipe in the ordered list.
func (s *CandidateService) Recipe(ctx context.Context, id string) (domain.Recipe, error) {
	recipes, err := s.Recipes(ctx)
	if err != nil {
		return domain.Recipe{}, err
	}
	for _, r := range recipes {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Recipe{}, domain.ErrRecipeNotFound
}
