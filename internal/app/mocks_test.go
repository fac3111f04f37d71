package app

import (
	"context"
	"slices"
	"sync"

	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

// --- Mock RecipeStore ---

type mockRecipeStore struct {
	listFn   func(ctx context.Context) ([]domain.Recipe, error)
	insertFn func(ctx context.Context, recipe domain.Recipe) error
}

func (m *mockRecipeStore) List(ctx context.Context) ([]domain.Recipe, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockRecipeStore) Insert(ctx context.Context, recipe domain.Recipe) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, recipe)
	}
	return nil
}

// --- In-memory VoteStore + VoteFeed ---

// memVoteStore behaves like the real store: idempotent inserts by vote ID and
// every successful insert is echoed to subscribers.
type memVoteStore struct {
	mu       sync.Mutex
	votes    []domain.Vote
	failNext int
	failErr  error
	listErr  error
	listHits int
	subs     []chan domain.Vote
}

func newMemVoteStore() *memVoteStore {
	return &memVoteStore{}
}

func (m *memVoteStore) Insert(_ context.Context, v domain.Vote) error {
	m.mu.Lock()
	if m.failNext > 0 {
		m.failNext--
		err := m.failErr
		m.mu.Unlock()
		return err
	}
	if slices.ContainsFunc(m.votes, func(existing domain.Vote) bool { return existing.ID == v.ID }) {
		m.mu.Unlock()
		return nil
	}
	m.votes = append(m.votes, v)
	subs := slices.Clone(m.subs)
	m.mu.Unlock()

	for _, ch := range subs {
		ch <- v
	}
	return nil
}

func (m *memVoteStore) ListByDay(_ context.Context, day string, userIDs ...string) ([]domain.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listHits++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Vote
	for _, v := range m.votes {
		if v.Day != day {
			continue
		}
		if len(userIDs) > 0 && !slices.Contains(userIDs, v.UserID) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// seed stores a vote without echoing it.
func (m *memVoteStore) seed(votes ...domain.Vote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes = append(m.votes, votes...)
}

func (m *memVoteStore) setListErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

func (m *memVoteStore) failInserts(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	m.failErr = err
}

func (m *memVoteStore) Subscribe(ctx context.Context) (<-chan domain.Vote, error) {
	ch := make(chan domain.Vote, 64)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch, nil
}

// --- Mock PairingStore + PairingFeed ---

type memPairings struct {
	mu        sync.Mutex
	partners  map[string]string
	setErr    error
	feed      chan domain.Pairing
	published []domain.Pairing
}

func newMemPairings(pairs ...domain.Pairing) *memPairings {
	m := &memPairings{partners: make(map[string]string), feed: make(chan domain.Pairing, 16)}
	for _, p := range pairs {
		m.partners[p.SelfID] = p.PartnerID
	}
	return m
}

func (m *memPairings) Get(_ context.Context, selfID string) (domain.Pairing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	partner, ok := m.partners[selfID]
	if !ok {
		return domain.Pairing{}, domain.ErrPairingNotFound
	}
	return domain.Pairing{SelfID: selfID, PartnerID: partner}, nil
}

func (m *memPairings) SetPartner(_ context.Context, selfID, partnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.partners[selfID] = partnerID
	return nil
}

func (m *memPairings) Publish(_ context.Context, p domain.Pairing) error {
	m.mu.Lock()
	m.published = append(m.published, p)
	m.mu.Unlock()
	m.feed <- p
	return nil
}

func (m *memPairings) Subscribe(context.Context) (<-chan domain.Pairing, error) {
	return m.feed, nil
}

// --- Recording MatchNotifier ---

type recordingNotifier struct {
	mu      sync.Mutex
	matches []domain.Match
}

func (r *recordingNotifier) NotifyMatch(_ context.Context, m domain.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = append(r.matches, m)
	return nil
}

func (r *recordingNotifier) For(userID string) []domain.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Match
	for _, m := range r.matches {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

func (r *recordingNotifier) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches)
}

func (m *memVoteStore) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *memVoteStore) stored() []domain.Vote {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.votes)
}

func (m *memVoteStore) listCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listHits
}
