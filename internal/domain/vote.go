package domain

import (
	"context"
	"strings"
	"time"
)

// VoteKind is a user's decision on a candidate.
type VoteKind string

const (
	VoteLike    VoteKind = "like"
	VoteDislike VoteKind = "dislike"
)

// ParseVoteKind accepts the stored kinds and the swipe directions the UI sends.
func ParseVoteKind(s string) (VoteKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like", "right":
		return VoteLike, nil
	case "dislike", "left":
		return VoteDislike, nil
	default:
		return "", NewValidationError("kind", "vote kind must be like or dislike")
	}
}

func (k VoteKind) Valid() bool {
	return k == VoteLike || k == VoteDislike
}

// Vote is one user's decision on one recipe for one day. Votes are append-only.
type Vote struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	RecipeID  string    `json:"recipeId"`
	Kind      VoteKind  `json:"kind"`
	Day       string    `json:"day"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsLike reports whether the vote is a Like.
func (v Vote) IsLike() bool {
	return v.Kind == VoteLike
}

// Validate rejects votes missing a required field.
func (v Vote) Validate() error {
	switch {
	case strings.TrimSpace(v.ID) == "":
		return NewValidationError("id", "vote id is required")
	case strings.TrimSpace(v.UserID) == "":
		return NewValidationError("userId", "user id is required")
	case strings.TrimSpace(v.RecipeID) == "":
		return NewValidationError("recipeId", "recipe id is required")
	case !v.Kind.Valid():
		return NewValidationError("kind", "vote kind must be like or dislike")
	case !IsDay(v.Day):
		return NewValidationError("day", "day must be a YYYY-MM-DD calendar date")
	}
	return nil
}

// VoteStore persists votes. Insert is idempotent by vote ID.
type VoteStore interface {
	ListByDay(ctx context.Context, day string, userIDs ...string) ([]Vote, error)
	Insert(ctx context.Context, vote Vote) error
}

// VoteFeed delivers every inserted vote to subscribers.
// Delivery is at-least-once: duplicates are possible and ordering is not guaranteed.
type VoteFeed interface {
	Subscribe(ctx context.Context) (<-chan Vote, error)
}
