package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thomaswerner858/DinnerMatch/internal/app"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

// recipeFile is the YAML layout accepted by seed.
type recipeFile struct {
	Recipes []recipeEntry `yaml:"recipes"`
}

type recipeEntry struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Body     string `yaml:"body"`
	ImageRef string `yaml:"imageRef"`
	OwnerID  string `yaml:"ownerId"`
}

type seedResult struct {
	Inserted []string `json:"inserted"`
	Skipped  []string `json:"skipped"`
}

func newSeedCommand(opts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert recipes from a YAML file",
		Long: `Insert recipes from a YAML file of the form

  recipes:
    - id: curry
      title: Green curry
      body: ...

Recipes whose id already exists are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadRecipeFile(file)
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, func(ctx context.Context, b Backend) error {
				result, err := seedRecipes(ctx, app.NewCandidateService(b.Recipes(), opts.clock), entries)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), opts.Format, result, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "inserted %d, skipped %d\n", len(result.Inserted), len(result.Skipped))
				})
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML recipe file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func loadRecipeFile(path string) ([]recipeEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe file: %w", err)
	}
	return parseRecipes(data)
}

func parseRecipes(data []byte) ([]recipeEntry, error) {
	var f recipeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse recipe file: %w", err)
	}
	if len(f.Recipes) == 0 {
		return nil, errors.New("recipe file contains no recipes")
	}
	return f.Recipes, nil
}

// seedRecipes inserts entries in file order. Existing ids are skipped; any
// other failure stops the run.
func seedRecipes(ctx context.Context, svc *app.CandidateService, entries []recipeEntry) (seedResult, error) {
	result := seedResult{Inserted: []string{}, Skipped: []string{}}
	for i, e := range entries {
		recipe, err := svc.AddRecipe(ctx, domain.Recipe{
			ID:       e.ID,
			Title:    e.Title,
			Body:     e.Body,
			ImageRef: e.ImageRef,
			OwnerID:  e.OwnerID,
		})
		var verr *domain.ValidationError
		if errors.As(err, &verr) && verr.Field == "id" && e.ID != "" {
			result.Skipped = append(result.Skipped, e.ID)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("recipe #%d: %w", i+1, err)
		}
		result.Inserted = append(result.Inserted, recipe.ID)
	}
	return result, nil
}
