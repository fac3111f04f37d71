package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
	"github.com/thomaswerner858/DinnerMatch/internal/platform/retry"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCommandTimeout = 5 * time.Second
	notifyTimeout         = 5 * time.Second
	stopTimeout           = 10 * time.Second
	defaultIdleTimeout    = 30 * time.Minute
	defaultSweepInterval  = time.Minute
)

var defaultReplayPolicy = retry.Policy{
	MaxAttempts:    6,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     30 * time.Second,
}

// SessionOptions tunes sessions and their eviction. Zero values select the defaults.
type SessionOptions struct {
	CommandTimeout time.Duration
	ReplayPolicy   retry.Policy

	// IdleTimeout is how long a session may go unused before the service stops it.
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = defaultCommandTimeout
	}
	if o.ReplayPolicy.InitialBackoff <= 0 {
		o.ReplayPolicy = defaultReplayPolicy
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = defaultIdleTimeout
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = defaultSweepInterval
	}
	return o
}

// sessionCmd is the command interface for the Session actor.
type sessionCmd interface{ isSessionCmd() }

type baseSessionCmd struct{}

func (baseSessionCmd) isSessionCmd() {}

type observeCmd struct {
	baseSessionCmd
	vote    domain.Vote
	confirm bool
	reply   chan struct{}
}

type confirmCmd struct {
	baseSessionCmd
	voteID string
	reply  chan struct{}
}

type pendingCmd struct {
	baseSessionCmd
	reply chan []domain.Vote
}

type decidedCmd struct {
	baseSessionCmd
	userID string
	day    string
	reply  chan bool
}

type matchesCmd struct {
	baseSessionCmd
	day   string
	reply chan []string
}

type stateCmd struct {
	baseSessionCmd
	day   string
	reply chan domain.DayState
}

type pairingCmd struct {
	baseSessionCmd
	reply chan domain.Pairing
}

type setPartnerCmd struct {
	baseSessionCmd
	partnerID string
	reply     chan bool
}

// claimDayCmd marks a past day as loaded. The reply lists the users whose
// votes must be fetched, or nothing when the day was loaded before.
type claimDayCmd struct {
	baseSessionCmd
	day   string
	reply chan []string
}

type releaseDayCmd struct {
	baseSessionCmd
	day   string
	reply chan struct{}
}

type stopCmd struct {
	baseSessionCmd
}

// Session is the match detector of one local user. A single goroutine owns the
// ledger and the pairing; store writes, replay fetches and notifications run
// outside of it.
type Session struct {
	userID   string
	votes    domain.VoteStore
	notifier domain.MatchNotifier
	clock    clockwork.Clock
	opts     SessionOptions

	// owned by run()
	ledger  *Ledger
	pairing domain.Pairing
	loaded  map[string]struct{}

	loading  singleflight.Group
	cmdCh    chan sessionCmd
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	bg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSession creates a session for pairing.SelfID and starts its command loop.
// Call Start to replay the day's votes from the store.
func NewSession(pairing domain.Pairing, votes domain.VoteStore, notifier domain.MatchNotifier, clock clockwork.Clock, opts SessionOptions) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		userID:   pairing.SelfID,
		votes:    votes,
		notifier: notifier,
		clock:    clock,
		opts:     opts.withDefaults(),
		ledger:   NewLedger(),
		pairing:  pairing,
		loaded:   make(map[string]struct{}),
		cmdCh:    make(chan sessionCmd, 256),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	go s.run()
	return s
}

func (s *Session) UserID() string {
	return s.userID
}

// Start replays the current day's votes of the user and the partner in the background.
func (s *Session) Start() {
	pairing, err := s.Pairing(s.ctx)
	if err != nil {
		slog.Warn("Session start skipped replay", "user_id", s.userID, "error", err)
		return
	}
	s.replay(pairing.SelfID, pairing.PartnerID)
}

// CastVote records the vote optimistically and then persists it. On a store
// failure the returned vote stays in the local ledger and the error is a
// *domain.StoreUnavailableError.
func (s *Session) CastVote(ctx context.Context, recipeID string, kind domain.VoteKind, day string) (domain.Vote, error) {
	if day == "" {
		day = domain.DayOf(s.clock.Now())
	}
	vote := domain.Vote{
		ID:        newID(),
		UserID:    s.userID,
		RecipeID:  recipeID,
		Kind:      kind,
		Day:       day,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := vote.Validate(); err != nil {
		return domain.Vote{}, err
	}

	if _, err := call(ctx, s, func(reply chan struct{}) sessionCmd {
		return observeCmd{vote: vote, reply: reply}
	}); err != nil {
		return domain.Vote{}, err
	}

	if err := s.persist(ctx, vote); err != nil {
		return vote, err
	}
	return vote, nil
}

// RetryPending re-sends every unacknowledged vote of the local user.
// It returns how many were confirmed.
func (s *Session) RetryPending(ctx context.Context) (int, error) {
	pending, err := s.PendingVotes(ctx)
	if err != nil {
		return 0, err
	}

	confirmed := 0
	var errs []error
	for _, v := range pending {
		if err := s.persist(ctx, v); err != nil {
			errs = append(errs, err)
			continue
		}
		confirmed++
	}
	return confirmed, errors.Join(errs...)
}

// OnVoteObserved feeds a vote reported by the store into the detector.
// Malformed votes are logged and dropped.
func (s *Session) OnVoteObserved(ctx context.Context, vote domain.Vote) {
	if err := vote.Validate(); err != nil {
		slog.WarnContext(ctx, "Dropping malformed vote event", "user_id", s.userID, "vote_id", vote.ID, "error", fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err))
		return
	}

	if _, err := call(ctx, s, func(reply chan struct{}) sessionCmd {
		return observeCmd{vote: vote, confirm: true, reply: reply}
	}); err != nil {
		slog.WarnContext(ctx, "Vote event not applied", "user_id", s.userID, "vote_id", vote.ID, "error", err)
	}
}

func (s *Session) HasDecidedToday(ctx context.Context, userID, day string) (bool, error) {
	if err := s.loadDay(ctx, day); err != nil {
		return false, err
	}
	return call(ctx, s, func(reply chan bool) sessionCmd {
		return decidedCmd{userID: userID, day: day, reply: reply}
	})
}

func (s *Session) MatchesForDay(ctx context.Context, day string) ([]string, error) {
	if err := s.loadDay(ctx, day); err != nil {
		return nil, err
	}
	return call(ctx, s, func(reply chan []string) sessionCmd {
		return matchesCmd{day: day, reply: reply}
	})
}

func (s *Session) State(ctx context.Context, day string) (domain.DayState, error) {
	if err := s.loadDay(ctx, day); err != nil {
		return domain.DayNoDecision, err
	}
	return call(ctx, s, func(reply chan domain.DayState) sessionCmd {
		return stateCmd{day: day, reply: reply}
	})
}

// PendingVotes returns the local user's votes the store has not acknowledged.
func (s *Session) PendingVotes(ctx context.Context) ([]domain.Vote, error) {
	return call(ctx, s, func(reply chan []domain.Vote) sessionCmd {
		return pendingCmd{reply: reply}
	})
}

func (s *Session) Pairing(ctx context.Context) (domain.Pairing, error) {
	return call(ctx, s, func(reply chan domain.Pairing) sessionCmd {
		return pairingCmd{reply: reply}
	})
}

// SetPartner switches the partner without restarting the session. Matches
// the new pairing implies for today are emitted once, and the new partner's
// votes for today are replayed.
func (s *Session) SetPartner(ctx context.Context, partnerID string) error {
	changed, err := call(ctx, s, func(reply chan bool) sessionCmd {
		return setPartnerCmd{partnerID: partnerID, reply: reply}
	})
	if err != nil {
		return err
	}
	if changed && partnerID != "" {
		s.replay(partnerID)
	}
	return nil
}

// Stop ends the command loop and waits for background work to finish.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.cmdCh <- stopCmd{}

		timeout := s.clock.NewTimer(stopTimeout)
		defer timeout.Stop()

		select {
		case <-s.done:
		case <-timeout.Chan():
			slog.Warn("Session stop timeout exceeded", "user_id", s.userID, "timeout", stopTimeout)
		}

		s.cancel()
		s.bg.Wait()
	})
}

func (s *Session) run() {
	defer close(s.done)

	for cmd := range s.cmdCh {
		switch c := cmd.(type) {
		case observeCmd:
			if !s.relevant(c.vote) {
				c.reply <- struct{}{}
				continue
			}
			matches := s.ledger.Observe(c.vote, s.pairing, s.today())
			if c.confirm {
				s.ledger.Confirm(c.vote.ID)
			}
			s.notify(matches)
			c.reply <- struct{}{}

		case confirmCmd:
			s.ledger.Confirm(c.voteID)
			c.reply <- struct{}{}

		case pendingCmd:
			c.reply <- s.ledger.Pending(s.userID)

		case decidedCmd:
			c.reply <- s.ledger.HasDecided(c.userID, c.day)

		case matchesCmd:
			c.reply <- s.ledger.MatchesForDay(s.pairing, c.day)

		case stateCmd:
			c.reply <- s.ledger.State(s.pairing, c.day)

		case pairingCmd:
			c.reply <- s.pairing

		case setPartnerCmd:
			if c.partnerID == s.pairing.PartnerID {
				c.reply <- false
				continue
			}
			s.pairing.PartnerID = c.partnerID
			s.ledger.Forget(s.pairing)
			// past days were loaded for the previous partner
			clear(s.loaded)
			s.notify(s.ledger.Reevaluate(s.pairing, s.today()))
			c.reply <- true

		case claimDayCmd:
			if _, ok := s.loaded[c.day]; ok {
				c.reply <- nil
				continue
			}
			s.loaded[c.day] = struct{}{}
			users := []string{s.userID}
			if s.pairing.Paired() {
				users = append(users, s.pairing.PartnerID)
			}
			c.reply <- users

		case releaseDayCmd:
			delete(s.loaded, c.day)
			c.reply <- struct{}{}

		case stopCmd:
			return
		}
	}
}

func (s *Session) relevant(v domain.Vote) bool {
	return v.UserID == s.userID || s.pairing.IsPartner(v.UserID)
}

func (s *Session) today() string {
	return domain.DayOf(s.clock.Now())
}

func (s *Session) persist(ctx context.Context, vote domain.Vote) error {
	if err := s.votes.Insert(ctx, vote); err != nil {
		if !domain.IsRetryable(err) {
			err = domain.NewStoreUnavailable("insert vote", err)
		}
		slog.WarnContext(ctx, "Vote kept locally, store write failed", "user_id", s.userID, "vote_id", vote.ID, "error", err)
		return err
	}

	if _, err := call(ctx, s, func(reply chan struct{}) sessionCmd {
		return confirmCmd{voteID: vote.ID, reply: reply}
	}); err != nil {
		slog.WarnContext(ctx, "Vote stored but not confirmed locally", "vote_id", vote.ID, "error", err)
	}
	return nil
}

// notify hands matches to the notifier without blocking the command loop.
func (s *Session) notify(matches []domain.Match) {
	if s.notifier == nil {
		return
	}
	for _, m := range matches {
		slog.Info("Match detected", "user_id", m.UserID, "partner_id", m.PartnerID, "recipe_id", m.RecipeID, "day", m.Day)
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			ctx, cancel := context.WithTimeout(s.ctx, notifyTimeout)
			defer cancel()
			if err := s.notifier.NotifyMatch(ctx, m); err != nil {
				slog.Error("Match notification failed", "user_id", m.UserID, "recipe_id", m.RecipeID, "day", m.Day, "error", err)
			}
		}()
	}
}

// replay fetches today's votes of userIDs and merges them by vote ID.
// Failures are retried; the session keeps serving local state meanwhile.
func (s *Session) replay(userIDs ...string) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()

		day := s.today()
		policy := s.opts.ReplayPolicy
		policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Vote replay failed, retrying", "user_id", s.userID, "attempt", attempt, "backoff", backoff, "error", err)
		}

		votes, err := retry.Do(s.ctx, policy, retry.Always, func(ctx context.Context) ([]domain.Vote, error) {
			return s.votes.ListByDay(ctx, day, userIDs...)
		})
		if err != nil {
			slog.Error("Vote replay gave up", "user_id", s.userID, "day", day, "error", err)
			return
		}

		for _, v := range votes {
			s.OnVoteObserved(s.ctx, v)
		}
		slog.Debug("Vote replay merged", "user_id", s.userID, "day", day, "votes", len(votes))
	}()
}

// loadDay fetches the stored votes of a past day once, so that queries about
// it see more than what this session happened to observe. Today is covered by
// the start replay and the vote feed.
func (s *Session) loadDay(ctx context.Context, day string) error {
	if day == s.today() {
		return nil
	}

	_, err, _ := s.loading.Do(day, func() (any, error) {
		users, err := call(ctx, s, func(reply chan []string) sessionCmd {
			return claimDayCmd{day: day, reply: reply}
		})
		if err != nil || len(users) == 0 {
			return nil, err
		}

		votes, err := s.votes.ListByDay(ctx, day, users...)
		if err != nil {
			if _, relErr := call(context.WithoutCancel(ctx), s, func(reply chan struct{}) sessionCmd {
				return releaseDayCmd{day: day, reply: reply}
			}); relErr != nil {
				slog.WarnContext(ctx, "Day load not released", "user_id", s.userID, "day", day, "error", relErr)
			}
			if !domain.IsRetryable(err) {
				err = domain.NewStoreUnavailable("list votes", err)
			}
			return nil, err
		}

		for _, v := range votes {
			s.OnVoteObserved(ctx, v)
		}
		slog.DebugContext(ctx, "Past day loaded", "user_id", s.userID, "day", day, "votes", len(votes))
		return nil, nil
	})
	return err
}

// call sends a command built around a reply channel and waits for the answer.
func call[T any](ctx context.Context, s *Session, build func(reply chan T) sessionCmd) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	reply := make(chan T, 1)

	select {
	case s.cmdCh <- build(reply):
	case <-s.done:
		return zero, domain.ErrSessionStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	timer := s.clock.NewTimer(s.opts.CommandTimeout)
	defer timer.Stop()

	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return zero, domain.ErrSessionStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.Chan():
		return zero, fmt.Errorf("session command timed out after %v", s.opts.CommandTimeout)
	}
}

func newID() string {
	return uuid.NewString()
}
