package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

type PairingRepo struct {
	pool *pgxpool.Pool
}

func NewPairingRepo(pool *pgxpool.Pool) *PairingRepo {
	return &PairingRepo{pool: pool}
}

func (r *PairingRepo) Get(ctx context.Context, selfID string) (domain.Pairing, error) {
	var partnerID string
	err := r.pool.QueryRow(ctx, `SELECT partner_id FROM pairings WHERE self_id = $1`, selfID).Scan(&partnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pairing{}, domain.ErrPairingNotFound
	}
	if err != nil {
		return domain.Pairing{}, storeError("get pairing", err)
	}
	return domain.Pairing{SelfID: selfID, PartnerID: partnerID}, nil
}

const upsertPairing = `
INSERT INTO pairings (self_id, partner_id, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (self_id) DO UPDATE
SET partner_id = EXCLUDED.partner_id, updated_at = now()`

// SetPartner stores the partner of selfID. An empty partnerID returns to single mode.
func (r *PairingRepo) SetPartner(ctx context.Context, selfID, partnerID string) error {
	selfID = strings.TrimSpace(selfID)
	partnerID = strings.TrimSpace(partnerID)
	if selfID == "" {
		return domain.NewValidationError("userId", "user id is required")
	}
	if selfID == partnerID {
		return domain.NewValidationError("partnerId", "a user cannot pair with themselves")
	}

	if _, err := r.pool.Exec(ctx, upsertPairing, selfID, partnerID); err != nil {
		return storeError("set partner", err)
	}
	return nil
}
