package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/thomaswerner858/DinnerMatch/internal/adapter/postgres"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

// Backend is the set of stores the admin commands operate on.
type Backend interface {
	Migrate(ctx context.Context) error
	Recipes() domain.RecipeStore
	Votes() domain.VoteStore
	Pairings() domain.PairingStore
	Close()
}

// Connector opens a Backend for a database URL.
type Connector func(ctx context.Context, databaseURL string) (Backend, error)

type pgBackend struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens the PostgreSQL stores the server uses.
func ConnectPostgres(ctx context.Context, databaseURL string) (Backend, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL required (--database-url or DATABASE_URL env)")
	}
	pool, err := postgres.Connect(ctx, databaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &pgBackend{pool: pool}, nil
}

func (b *pgBackend) Migrate(ctx context.Context) error {
	return postgres.RunMigrationsWithLock(ctx, b.pool)
}

func (b *pgBackend) Recipes() domain.RecipeStore   { return postgres.NewRecipeRepo(b.pool) }
func (b *pgBackend) Votes() domain.VoteStore       { return postgres.NewVoteRepo(b.pool) }
func (b *pgBackend) Pairings() domain.PairingStore { return postgres.NewPairingRepo(b.pool) }
func (b *pgBackend) Close()                        { b.pool.Close() }

// withBackend opens the backend for one command run and closes it afterwards.
func withBackend(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, b Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := opts.connect(ctx, opts.DatabaseURL)
	if err != nil {
		return err
	}
	defer b.Close()

	return fn(ctx, b)
}
