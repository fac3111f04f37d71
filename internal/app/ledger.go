package app

import (
	"slices"

	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

type userDay struct {
	userID string
	day    string
}

type likeKey struct {
	userID   string
	recipeID string
	day      string
}

type recipeDay struct {
	recipeID string
	day      string
}

// Ledger is the per-session vote set and match suppression state.
// It is not safe for concurrent use; a Session owns it from a single goroutine.
type Ledger struct {
	known      map[string]domain.Vote
	confirmed  map[string]struct{}
	decided    map[userDay]struct{}
	likes      map[likeKey]struct{}
	celebrated map[recipeDay]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{
		known:      make(map[string]domain.Vote),
		confirmed:  make(map[string]struct{}),
		decided:    make(map[userDay]struct{}),
		likes:      make(map[likeKey]struct{}),
		celebrated: make(map[recipeDay]struct{}),
	}
}

// Record upserts v by vote ID. It reports whether the ID was new.
func (l *Ledger) Record(v domain.Vote) bool {
	_, seen := l.known[v.ID]
	l.known[v.ID] = v
	l.decided[userDay{v.UserID, v.Day}] = struct{}{}
	if v.IsLike() {
		l.likes[likeKey{v.UserID, v.RecipeID, v.Day}] = struct{}{}
	}
	return !seen
}

// Confirm marks a known vote as durably stored.
func (l *Ledger) Confirm(voteID string) {
	if _, ok := l.known[voteID]; ok {
		l.confirmed[voteID] = struct{}{}
	}
}

// Pending returns votes cast by userID that the store has not acknowledged yet.
func (l *Ledger) Pending(userID string) []domain.Vote {
	var pending []domain.Vote
	for id, v := range l.known {
		if v.UserID != userID {
			continue
		}
		if _, ok := l.confirmed[id]; !ok {
			pending = append(pending, v)
		}
	}
	slices.SortFunc(pending, func(a, b domain.Vote) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return pending
}

// Observe records v and returns the Match events it newly implies for currentDay.
// Re-observing a vote, or observing it in any order relative to the partner's,
// yields at most one Match per (recipe, day).
func (l *Ledger) Observe(v domain.Vote, pairing domain.Pairing, currentDay string) []domain.Match {
	l.Record(v)

	if !pairing.Paired() || !v.IsLike() || v.Day != currentDay {
		return nil
	}

	var other string
	switch v.UserID {
	case pairing.PartnerID:
		other = pairing.SelfID
	case pairing.SelfID:
		other = pairing.PartnerID
	default:
		return nil
	}

	if !l.liked(other, v.RecipeID, v.Day) {
		return nil
	}
	if m, ok := l.celebrate(pairing, v.RecipeID, v.Day); ok {
		return []domain.Match{m}
	}
	return nil
}

// Reevaluate emits matches for currentDay that a pairing change newly implies.
func (l *Ledger) Reevaluate(pairing domain.Pairing, currentDay string) []domain.Match {
	var matches []domain.Match
	for _, recipeID := range l.MatchesForDay(pairing, currentDay) {
		if m, ok := l.celebrate(pairing, recipeID, currentDay); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

func (l *Ledger) HasDecided(userID, day string) bool {
	_, ok := l.decided[userDay{userID, day}]
	return ok
}

// MatchesForDay lists recipe IDs both partners liked on day, sorted. Unpaired yields none.
func (l *Ledger) MatchesForDay(pairing domain.Pairing, day string) []string {
	matches := []string{}
	if !pairing.Paired() {
		return matches
	}
	for key := range l.likes {
		if key.userID != pairing.SelfID || key.day != day {
			continue
		}
		if l.liked(pairing.PartnerID, key.recipeID, day) {
			matches = append(matches, key.recipeID)
		}
	}
	slices.Sort(matches)
	return matches
}

// State reports the local user's progress for day. Matched follows the
// current pairing, so a partner change can take a day back to Decided.
func (l *Ledger) State(pairing domain.Pairing, day string) domain.DayState {
	if len(l.MatchesForDay(pairing, day)) > 0 {
		return domain.DayMatched
	}
	if l.HasDecided(pairing.SelfID, day) {
		return domain.DayDecided
	}
	return domain.DayNoDecision
}

// Forget drops votes from users other than the pairing's, keeping confirmed state consistent.
func (l *Ledger) Forget(pairing domain.Pairing) {
	for id, v := range l.known {
		if v.UserID == pairing.SelfID || pairing.IsPartner(v.UserID) {
			continue
		}
		delete(l.known, id)
		delete(l.confirmed, id)
		delete(l.decided, userDay{v.UserID, v.Day})
		delete(l.likes, likeKey{v.UserID, v.RecipeID, v.Day})
	}
}

func (l *Ledger) liked(userID, recipeID, day string) bool {
	_, ok := l.likes[likeKey{userID, recipeID, day}]
	return ok
}

func (l *Ledger) celebrate(pairing domain.Pairing, recipeID, day string) (domain.Match, bool) {
	key := recipeDay{recipeID, day}
	if _, done := l.celebrated[key]; done {
		return domain.Match{}, false
	}
	l.celebrated[key] = struct{}{}
	return domain.Match{
		RecipeID:  recipeID,
		Day:       day,
		UserID:    pairing.SelfID,
		PartnerID: pairing.PartnerID,
	}, true
}
