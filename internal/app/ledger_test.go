package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

const testDay = "2024-01-05"

var alice = domain.Pairing{SelfID: "alice", PartnerID: "bob"}

func vote(id, user, recipe string, kind domain.VoteKind, day string) domain.Vote {
	return domain.Vote{ID: id, UserID: user, RecipeID: recipe, Kind: kind, Day: day}
}

func TestLedger_MutualLikeMatches(t *testing.T) {
	l := NewLedger()

	assert.Empty(t, l.Observe(vote("v1", "alice", "R2", domain.VoteLike, testDay), alice, testDay))
	matches := l.Observe(vote("v2", "bob", "R2", domain.VoteLike, testDay), alice, testDay)

	require.Len(t, matches, 1)
	assert.Equal(t, domain.Match{RecipeID: "R2", Day: testDay, UserID: "alice", PartnerID: "bob"}, matches[0])
	assert.Equal(t, []string{"R2"}, l.MatchesForDay(alice, testDay))
}

func TestLedger_OrderIndependence(t *testing.T) {
	local := vote("v1", "alice", "X", domain.VoteLike, testDay)
	remote := vote("v2", "bob", "X", domain.VoteLike, testDay)

	orders := map[string][]domain.Vote{
		"local first":  {local, remote},
		"remote first": {remote, local},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			l := NewLedger()
			var matches []domain.Match
			for _, v := range order {
				matches = append(matches, l.Observe(v, alice, testDay)...)
			}
			require.Len(t, matches, 1)
			assert.Equal(t, "X", matches[0].RecipeID)
			assert.Equal(t, []string{"X"}, l.MatchesForDay(alice, testDay))
		})
	}
}

func TestLedger_DuplicateDeliveryIsIdempotent(t *testing.T) {
	l := NewLedger()
	local := vote("v1", "alice", "X", domain.VoteLike, testDay)
	remote := vote("v2", "bob", "X", domain.VoteLike, testDay)

	l.Observe(local, alice, testDay)
	require.Len(t, l.Observe(remote, alice, testDay), 1)
	before := l.MatchesForDay(alice, testDay)

	assert.Empty(t, l.Observe(remote, alice, testDay))
	assert.Empty(t, l.Observe(local, alice, testDay))
	assert.Equal(t, before, l.MatchesForDay(alice, testDay))
}

func TestLedger_SecondLikeSameRecipeDoesNotReemit(t *testing.T) {
	l := NewLedger()
	l.Observe(vote("v1", "alice", "X", domain.VoteLike, testDay), alice, testDay)
	require.Len(t, l.Observe(vote("v2", "bob", "X", domain.VoteLike, testDay), alice, testDay), 1)

	// a second vote row with a new ID for the same (recipe, day)
	assert.Empty(t, l.Observe(vote("v3", "bob", "X", domain.VoteLike, testDay), alice, testDay))
}

func TestLedger_LikeAndDislikeNeverMatch(t *testing.T) {
	l := NewLedger()

	l.Observe(vote("v1", "alice", "X", domain.VoteLike, testDay), alice, testDay)
	assert.Empty(t, l.Observe(vote("v2", "bob", "X", domain.VoteDislike, testDay), alice, testDay))
	assert.Empty(t, l.MatchesForDay(alice, testDay))

	l2 := NewLedger()
	l2.Observe(vote("v1", "bob", "X", domain.VoteDislike, testDay), alice, testDay)
	assert.Empty(t, l2.Observe(vote("v2", "alice", "X", domain.VoteLike, testDay), alice, testDay))
}

func TestLedger_NoCrossDayMatch(t *testing.T) {
	l := NewLedger()

	l.Observe(vote("v1", "alice", "X", domain.VoteLike, "2024-01-05"), alice, "2024-01-06")
	assert.Empty(t, l.Observe(vote("v2", "bob", "X", domain.VoteLike, "2024-01-06"), alice, "2024-01-06"))
	assert.Empty(t, l.MatchesForDay(alice, "2024-01-05"))
	assert.Empty(t, l.MatchesForDay(alice, "2024-01-06"))
}

func TestLedger_PastDayLikesDoNotCelebrate(t *testing.T) {
	l := NewLedger()
	past := "2024-01-04"

	l.Observe(vote("v1", "alice", "X", domain.VoteLike, past), alice, testDay)
	assert.Empty(t, l.Observe(vote("v2", "bob", "X", domain.VoteLike, past), alice, testDay))
	// the gallery still shows it
	assert.Equal(t, []string{"X"}, l.MatchesForDay(alice, past))
}

func TestLedger_DislikeDecidesButNeverMatches(t *testing.T) {
	l := NewLedger()

	l.Observe(vote("v1", "alice", "R1", domain.VoteDislike, testDay), alice, testDay)
	assert.True(t, l.HasDecided("alice", testDay))
	assert.False(t, l.HasDecided("alice", "2024-01-06"))

	assert.Empty(t, l.Observe(vote("v2", "bob", "R1", domain.VoteLike, testDay), alice, testDay))
	assert.NotContains(t, l.MatchesForDay(alice, testDay), "R1")
}

func TestLedger_UnpairedNeverMatches(t *testing.T) {
	l := NewLedger()
	single := domain.Pairing{SelfID: "alice"}

	l.Observe(vote("v1", "alice", "X", domain.VoteLike, testDay), single, testDay)
	assert.Empty(t, l.Observe(vote("v2", "bob", "X", domain.VoteLike, testDay), single, testDay))
	assert.Empty(t, l.MatchesForDay(single, testDay))
	assert.NotNil(t, l.MatchesForDay(single, testDay))
}

func TestLedger_StrangersAreIgnoredForMatching(t *testing.T) {
	l := NewLedger()

	l.Observe(vote("v1", "alice", "X", domain.VoteLike, testDay), alice, testDay)
	assert.Empty(t, l.Observe(vote("v2", "carol", "X", domain.VoteLike, testDay), alice, testDay))
}

func TestLedger_MatchesForDaySorted(t *testing.T) {
	l := NewLedger()
	for _, r := range []string{"c", "a", "b"} {
		l.Observe(vote("a"+r, "alice", r, domain.VoteLike, testDay), alice, testDay)
		l.Observe(vote("b"+r, "bob", r, domain.VoteLike, testDay), alice, testDay)
	}
	assert.Equal(t, []string{"a", "b", "c"}, l.MatchesForDay(alice, testDay))
}

func TestLedger_StateMachine(t *testing.T) {
	l := NewLedger()
	assert.Equal(t, domain.DayNoDecision, l.State(alice, testDay))

	l.Observe(vote("v1", "alice", "X", domain.VoteLike, testDay), alice, testDay)
	assert.Equal(t, domain.DayDecided, l.State(alice, testDay))

	l.Observe(vote("v2", "bob", "X", domain.VoteLike, testDay), alice, testDay)
	assert.Equal(t, domain.DayMatched, l.State(alice, testDay))

	// a later day starts over
	assert.Equal(t, domain.DayNoDecision, l.State(alice, "2024-01-06"))
}

func TestLedger_StateFollowsCurrentPairing(t *testing.T) {
	l := NewLedger()
	l.Observe(vote("v1", "alice", "X", domain.VoteLike, testDay), alice, testDay)
	l.Observe(vote("v2", "bob", "X", domain.VoteLike, testDay), alice, testDay)
	require.Equal(t, domain.DayMatched, l.State(alice, testDay))

	withCarol := domain.Pairing{SelfID: "alice", PartnerID: "carol"}
	l.Forget(withCarol)

	assert.Empty(t, l.MatchesForDay(withCarol, testDay))
	assert.Equal(t, domain.DayDecided, l.State(withCarol, testDay))
}

func TestLedger_PendingUntilConfirmed(t *testing.T) {
	l := NewLedger()
	l.Record(vote("v1", "alice", "X", domain.VoteLike, testDay))
	l.Record(vote("v2", "alice", "Y", domain.VoteDislike, testDay))
	l.Record(vote("v3", "bob", "X", domain.VoteLike, testDay))

	assert.Len(t, l.Pending("alice"), 2)

	l.Confirm("v1")
	pending := l.Pending("alice")
	require.Len(t, pending, 1)
	assert.Equal(t, "v2", pending[0].ID)

	l.Confirm("unknown")
	assert.Len(t, l.Pending("alice"), 1)
}

func TestLedger_RecordUpsertsByID(t *testing.T) {
	l := NewLedger()
	v := vote("v1", "alice", "X", domain.VoteLike, testDay)

	assert.True(t, l.Record(v))
	assert.False(t, l.Record(v))
	assert.Len(t, l.Pending("alice"), 1)
}

func TestLedger_ReevaluateAfterPartnerChange(t *testing.T) {
	l := NewLedger()
	single := domain.Pairing{SelfID: "alice"}

	l.Observe(vote("v1", "alice", "X", domain.VoteLike, testDay), single, testDay)
	l.Observe(vote("v2", "carol", "X", domain.VoteLike, testDay), single, testDay)

	withCarol := domain.Pairing{SelfID: "alice", PartnerID: "carol"}
	matches := l.Reevaluate(withCarol, testDay)
	require.Len(t, matches, 1)
	assert.Equal(t, "carol", matches[0].PartnerID)

	assert.Empty(t, l.Reevaluate(withCarol, testDay))
}

func TestLedger_ForgetDropsFormerPartnerVotes(t *testing.T) {
	l := NewLedger()
	l.Observe(vote("v1", "alice", "X", domain.VoteLike, testDay), alice, testDay)
	l.Observe(vote("v2", "bob", "X", domain.VoteLike, testDay), alice, testDay)

	withCarol := domain.Pairing{SelfID: "alice", PartnerID: "carol"}
	l.Forget(withCarol)

	assert.False(t, l.HasDecided("bob", testDay))
	assert.True(t, l.HasDecided("alice", testDay))
	assert.Empty(t, l.MatchesForDay(withCarol, testDay))
}
