package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
	"github.com/thomaswerner858/DinnerMatch/internal/platform/correlation"
	"golang.org/x/sync/singleflight"
)

// Service is the registry of live sessions and the dispatcher that feeds them
// vote insertions and pairing changes.
type Service struct {
	votes       domain.VoteStore
	voteFeed    domain.VoteFeed
	pairings    domain.PairingStore
	pairingFeed domain.PairingFeed
	notifier    domain.MatchNotifier
	clock       clockwork.Clock
	opts        SessionOptions

	mu       sync.Mutex
	sessions map[string]*Session
	lastUsed map[string]time.Time
	creating singleflight.Group
}

// NewService creates the session registry. pairingFeed may be nil on a single instance.
func NewService(votes domain.VoteStore, voteFeed domain.VoteFeed, pairings domain.PairingStore, pairingFeed domain.PairingFeed, notifier domain.MatchNotifier, clock clockwork.Clock, opts SessionOptions) *Service {
	return &Service{
		votes:       votes,
		voteFeed:    voteFeed,
		pairings:    pairings,
		pairingFeed: pairingFeed,
		notifier:    notifier,
		clock:       clock,
		opts:        opts.withDefaults(),
		sessions:    make(map[string]*Session),
		lastUsed:    make(map[string]time.Time),
	}
}

// Session returns the live session of userID, creating and replaying it on first use.
func (s *Service) Session(ctx context.Context, userID string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.NewValidationError("userId", "user id is required")
	}

	if sess, ok := s.touch(userID); ok {
		return sess, nil
	}

	v, err, _ := s.creating.Do(userID, func() (any, error) {
		if sess, ok := s.touch(userID); ok {
			return sess, nil
		}

		pairing, err := s.pairings.Get(ctx, userID)
		if errors.Is(err, domain.ErrPairingNotFound) {
			pairing = domain.Pairing{SelfID: userID}
		} else if err != nil {
			return nil, fmt.Errorf("load pairing: %w", err)
		}

		sess := NewSession(pairing, s.votes, s.notifier, s.clock, s.opts)
		s.mu.Lock()
		s.sessions[userID] = sess
		s.lastUsed[userID] = s.clock.Now()
		s.mu.Unlock()

		sess.Start()
		slog.InfoContext(ctx, "Session started", "user_id", userID, "partner_id", pairing.PartnerID)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (s *Service) lookup(userID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// touch looks up a session and records the use.
func (s *Service) touch(userID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if ok {
		s.lastUsed[userID] = s.clock.Now()
	}
	return sess, ok
}

// discard drops sess from the registry unless it was already replaced.
func (s *Service) discard(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.UserID()] == sess {
		delete(s.sessions, sess.UserID())
		delete(s.lastUsed, sess.UserID())
	}
}

func (s *Service) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// withSession runs fn on the user's session. A session evicted between lookup
// and use is replaced once.
func withSession[T any](ctx context.Context, s *Service, userID string, fn func(*Session) (T, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		sess, err := s.Session(ctx, userID)
		if err != nil {
			var zero T
			return zero, err
		}
		v, err := fn(sess)
		if errors.Is(err, domain.ErrSessionStopped) && attempt == 0 {
			s.discard(sess)
			continue
		}
		return v, err
	}
}

func (s *Service) snapshot() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Run dispatches store insertions and pairing changes to live sessions until ctx ends.
// It also evicts idle sessions every SweepInterval.
func (s *Service) Run(ctx context.Context) error {
	sweep := s.clock.NewTicker(s.opts.SweepInterval)
	defer sweep.Stop()

	votes, err := s.voteFeed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to votes: %w", err)
	}

	var pairings <-chan domain.Pairing
	if s.pairingFeed != nil {
		pairings, err = s.pairingFeed.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("subscribe to pairing changes: %w", err)
		}
	}

	slog.Info("Vote dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Vote dispatcher stopped")
			return nil

		case v, ok := <-votes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("vote feed closed")
			}
			s.dispatchVote(correlation.WithID(ctx, correlation.NewID()), v)

		case p, ok := <-pairings:
			if !ok {
				pairings = nil
				continue
			}
			s.applyPairing(ctx, p)

		case <-sweep.Chan():
			s.EvictIdle(ctx)
		}
	}
}

func (s *Service) dispatchVote(ctx context.Context, v domain.Vote) {
	slog.DebugContext(ctx, "Vote observed", "vote_id", v.ID, "user_id", v.UserID, "recipe_id", v.RecipeID, "day", v.Day)
	for _, sess := range s.snapshot() {
		sess.OnVoteObserved(ctx, v)
	}
}

// EvictIdle stops sessions unused for IdleTimeout. Sessions holding votes the
// store has not acknowledged are kept so they can still be retried.
func (s *Service) EvictIdle(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.opts.IdleTimeout)

	s.mu.Lock()
	var idle []*Session
	for userID, sess := range s.sessions {
		if !s.lastUsed[userID].After(cutoff) {
			idle = append(idle, sess)
		}
	}
	s.mu.Unlock()

	var evicted []*Session
	for _, sess := range idle {
		pending, err := sess.PendingVotes(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Skipped session during eviction", "user_id", sess.UserID(), "error", err)
			continue
		}
		if len(pending) > 0 {
			slog.DebugContext(ctx, "Kept idle session with pending votes", "user_id", sess.UserID(), "pending", len(pending))
			continue
		}

		s.mu.Lock()
		// used again while we were checking
		if s.sessions[sess.UserID()] != sess || s.lastUsed[sess.UserID()].After(cutoff) {
			s.mu.Unlock()
			continue
		}
		delete(s.sessions, sess.UserID())
		delete(s.lastUsed, sess.UserID())
		s.mu.Unlock()
		evicted = append(evicted, sess)
	}

	for _, sess := range evicted {
		sess.Stop()
	}
	if len(evicted) > 0 {
		slog.InfoContext(ctx, "Idle sessions evicted", "count", len(evicted), "remaining", s.sessionCount())
	}
}

func (s *Service) applyPairing(ctx context.Context, p domain.Pairing) {
	sess, ok := s.lookup(p.SelfID)
	if !ok {
		return
	}
	if err := sess.SetPartner(ctx, p.PartnerID); err != nil {
		slog.WarnContext(ctx, "Pairing change not applied", "user_id", p.SelfID, "error", err)
	}
}

func (s *Service) CastVote(ctx context.Context, userID, recipeID string, kind domain.VoteKind, day string) (domain.Vote, error) {
	return withSession(ctx, s, userID, func(sess *Session) (domain.Vote, error) {
		return sess.CastVote(ctx, recipeID, kind, day)
	})
}

func (s *Service) RetryPending(ctx context.Context, userID string) (int, error) {
	return withSession(ctx, s, userID, func(sess *Session) (int, error) {
		return sess.RetryPending(ctx)
	})
}

// HasDecidedToday, MatchesForDay and DayState answer for any day; an empty day means today.
func (s *Service) HasDecidedToday(ctx context.Context, userID, day string) (bool, error) {
	day, err := s.dayOrToday(day)
	if err != nil {
		return false, err
	}
	return withSession(ctx, s, userID, func(sess *Session) (bool, error) {
		return sess.HasDecidedToday(ctx, sess.UserID(), day)
	})
}

func (s *Service) MatchesForDay(ctx context.Context, userID, day string) ([]string, error) {
	day, err := s.dayOrToday(day)
	if err != nil {
		return nil, err
	}
	return withSession(ctx, s, userID, func(sess *Session) ([]string, error) {
		return sess.MatchesForDay(ctx, day)
	})
}

func (s *Service) DayState(ctx context.Context, userID, day string) (domain.DayState, error) {
	day, err := s.dayOrToday(day)
	if err != nil {
		return domain.DayNoDecision, err
	}
	return withSession(ctx, s, userID, func(sess *Session) (domain.DayState, error) {
		return sess.State(ctx, day)
	})
}

func (s *Service) Pairing(ctx context.Context, userID string) (domain.Pairing, error) {
	return withSession(ctx, s, userID, func(sess *Session) (domain.Pairing, error) {
		return sess.Pairing(ctx)
	})
}

// SetPartner stores the new partner, applies it to the local session and
// announces it to other instances. An empty partnerID returns to single mode.
func (s *Service) SetPartner(ctx context.Context, userID, partnerID string) (domain.Pairing, error) {
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == strings.TrimSpace(userID) {
		return domain.Pairing{}, domain.NewValidationError("partnerId", "a user cannot pair with themselves")
	}

	sess, err := s.Session(ctx, userID)
	if err != nil {
		return domain.Pairing{}, err
	}

	if err := s.pairings.SetPartner(ctx, sess.UserID(), partnerID); err != nil {
		return domain.Pairing{}, fmt.Errorf("store pairing: %w", err)
	}
	if err := sess.SetPartner(ctx, partnerID); err != nil {
		return domain.Pairing{}, err
	}

	pairing := domain.Pairing{SelfID: sess.UserID(), PartnerID: partnerID}
	if s.pairingFeed != nil {
		if err := s.pairingFeed.Publish(ctx, pairing); err != nil {
			slog.WarnContext(ctx, "Pairing change not announced", "user_id", pairing.SelfID, "error", err)
		}
	}
	return pairing, nil
}

// Stop stops every live session.
func (s *Service) Stop() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.lastUsed = make(map[string]time.Time)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Stop()
		}()
	}
	wg.Wait()
	slog.Info("Sessions stopped", "count", len(sessions))
}

func (s *Service) dayOrToday(day string) (string, error) {
	if day == "" {
		return domain.DayOf(s.clock.Now()), nil
	}
	if !domain.IsDay(day) {
		return "", domain.NewValidationError("day", "must be a calendar date (YYYY-MM-DD)")
	}
	return day, nil
}
