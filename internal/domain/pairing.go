package domain

import (
	"context"
	"strings"
)

// Pairing links a user to their partner. An empty PartnerID means single mode.
type Pairing struct {
	SelfID    string `json:"selfId"`
	PartnerID string `json:"partnerId"`
}

// Paired reports whether a partner is set.
func (p Pairing) Paired() bool {
	return strings.TrimSpace(p.PartnerID) != ""
}

// IsPartner reports whether userID is this pairing's partner.
func (p Pairing) IsPartner(userID string) bool {
	return p.Paired() && userID == p.PartnerID
}

// PairingStore reads and writes the partner configuration of a user.
type PairingStore interface {
	Get(ctx context.Context, selfID string) (Pairing, error)
	SetPartner(ctx context.Context, selfID, partnerID string) error
}

// PairingFeed announces partner changes to every running instance.
type PairingFeed interface {
	Publish(ctx context.Context, pairing Pairing) error
	Subscribe(ctx context.Context) (<-chan Pairing, error)
}
