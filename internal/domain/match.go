package domain

import "context"

// Match is a derived value: both paired users liked RecipeID on Day.
// UserID is the viewer the match is reported to.
type Match struct {
	RecipeID  string `json:"recipeId"`
	Day       string `json:"day"`
	UserID    string `json:"userId"`
	PartnerID string `json:"partnerId"`
}

// MatchNotifier delivers a celebration for a match to its viewer.
type MatchNotifier interface {
	NotifyMatch(ctx context.Context, match Match) error
}

// DayState is a session's per-day progress.
type DayState int

const (
	DayNoDecision DayState = iota
	DayDecided
	DayMatched
)

func (s DayState) String() string {
	switch s {
	case DayNoDecision:
		return "no_decision"
	case DayDecided:
		return "decided"
	case DayMatched:
		return "matched"
	default:
		return "unknown"
	}
}
