package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

type VoteRepo struct {
	pool *pgxpool.Pool
}

func NewVoteRepo(pool *pgxpool.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

const listVotesByDay = `
SELECT id, user_id, recipe_id, kind, day, created_at
FROM votes
WHERE day = $1::date
  AND (cardinality($2::text[]) = 0 OR user_id = ANY($2::text[]))
ORDER BY created_at, id`

// ListByDay returns the votes of day, restricted to userIDs when any are given.
func (r *VoteRepo) ListByDay(ctx context.Context, day string, userIDs ...string) ([]domain.Vote, error) {
	if !domain.IsDay(day) {
		return nil, domain.NewValidationError("day", "day must be a YYYY-MM-DD calendar date")
	}
	if userIDs == nil {
		userIDs = []string{}
	}

	rows, err := r.pool.Query(ctx, listVotesByDay, day, userIDs)
	if err != nil {
		return nil, storeError("list votes", err)
	}

	votes, err := pgx.CollectRows(rows, scanVote)
	if err != nil {
		return nil, storeError("list votes", err)
	}
	return votes, nil
}

func scanVote(row pgx.CollectableRow) (domain.Vote, error) {
	var (
		v    domain.Vote
		kind string
		day  time.Time
	)
	if err := row.Scan(&v.ID, &v.UserID, &v.RecipeID, &kind, &day, &v.CreatedAt); err != nil {
		return domain.Vote{}, err
	}
	v.Kind = domain.VoteKind(kind)
	v.Day = day.Format(domain.DayLayout)
	v.CreatedAt = v.CreatedAt.UTC()
	return v, nil
}

// Votes are append-only; re-sending a vote with a known ID is a no-op and
// does not fire the insertion notification again.
const insertVote = `
INSERT INTO votes (id, user_id, recipe_id, kind, day, created_at)
VALUES ($1, $2, $3, $4, $5::date, $6)
ON CONFLICT (id) DO NOTHING`

func (r *VoteRepo) Insert(ctx context.Context, v domain.Vote) error {
	if err := v.Validate(); err != nil {
		return err
	}
	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if _, err := r.pool.Exec(ctx, insertVote, v.ID, v.UserID, v.RecipeID, string(v.Kind), v.Day, createdAt); err != nil {
		return storeError("insert vote", err)
	}
	return nil
}
