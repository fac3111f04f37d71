package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/thomaswerner858/DinnerMatch/internal/adapter/metrics"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
	"github.com/thomaswerner858/DinnerMatch/internal/platform/retry"
)

// VoteChannel is the NOTIFY channel the votes insert trigger publishes on.
const VoteChannel = "votes_inserted"

const feedBuffer = 256

var reconnectPolicy = retry.Policy{
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     30 * time.Second,
}

// VoteLister reads stored votes. The listener uses it to catch up after an outage.
type VoteLister interface {
	ListByDay(ctx context.Context, day string, userIDs ...string) ([]domain.Vote, error)
}

// connectionLostError reports that an established LISTEN connection dropped.
// lastAlive is when the connection last proved healthy.
type connectionLostError struct {
	lastAlive time.Time
	err       error
}

func (e *connectionLostError) Error() string { return "listener connection lost: " + e.err.Error() }
func (e *connectionLostError) Unwrap() error { return e.err }

// VoteListener turns PostgreSQL insert notifications into a vote stream.
// It holds one dedicated connection and reconnects with backoff when it drops.
// Notifications sent while it is disconnected are lost, so every reconnect
// re-reads the votes of the days the outage touched. Consumers deduplicate by vote ID.
type VoteListener struct {
	pool    *pgxpool.Pool
	backlog VoteLister
	clock   clockwork.Clock
	metrics *metrics.VoteMetrics
	policy  retry.Policy
}

// NewVoteListener creates the listener. voteMetrics may be nil.
func NewVoteListener(pool *pgxpool.Pool, backlog VoteLister, clock clockwork.Clock, voteMetrics *metrics.VoteMetrics) *VoteListener {
	return &VoteListener{pool: pool, backlog: backlog, clock: clock, metrics: voteMetrics, policy: reconnectPolicy}
}

// Subscribe starts listening. The channel is closed once ctx ends.
func (l *VoteListener) Subscribe(ctx context.Context) (<-chan domain.Vote, error) {
	out := make(chan domain.Vote, feedBuffer)

	policy := l.policy
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Vote listener connect failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	}
	// Connection failures back off; a lost connection ends the retry run so
	// the next one starts from the initial backoff.
	reconnectable := retry.When(func(err error) bool {
		var lost *connectionLostError
		return !errors.As(err, &lost) && ctx.Err() == nil
	})

	go func() {
		defer close(out)

		var lostAt time.Time
		for {
			err := retry.DoVoid(ctx, policy, reconnectable, func(ctx context.Context) error {
				return l.listen(ctx, out, lostAt)
			})
			if ctx.Err() != nil {
				return
			}

			var lost *connectionLostError
			if !errors.As(err, &lost) {
				slog.Error("Vote listener stopped", "error", err)
				return
			}
			slog.Warn("Vote listener disconnected, reconnecting", "error", lost.err)
			if l.metrics != nil {
				l.metrics.FeedReconnects.Inc()
			}
			lostAt = lost.lastAlive

			select {
			case <-l.clock.After(l.policy.InitialBackoff):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// listen holds one LISTEN connection. A non-zero since means an earlier
// connection dropped then, and missed votes are re-read before waiting.
func (l *VoteListener) listen(ctx context.Context, out chan<- domain.Vote, since time.Time) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	// LISTEN state must not leak back into the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{VoteChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", VoteChannel, err)
	}
	slog.Info("Vote listener connected", "channel", VoteChannel)

	if !since.IsZero() {
		if err := l.catchUp(ctx, out, since); err != nil {
			return err
		}
	}
	lastAlive := l.clock.Now()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &connectionLostError{lastAlive: lastAlive, err: err}
		}
		lastAlive = l.clock.Now()

		vote, err := DecodeVoteNotification(n.Payload)
		if err != nil {
			slog.Warn("Dropping malformed vote notification", "payload", n.Payload, "error", err)
			if l.metrics != nil {
				l.metrics.MalformedEvents.Inc()
			}
			continue
		}
		if l.metrics != nil {
			l.metrics.VotesObserved.Inc()
		}

		select {
		case out <- vote:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// catchUp re-reads every vote of the days from since up to today.
func (l *VoteListener) catchUp(ctx context.Context, out chan<- domain.Vote, since time.Time) error {
	first, err := domain.ParseDay(domain.DayOf(since))
	if err != nil {
		return err
	}
	last, err := domain.ParseDay(domain.DayOf(l.clock.Now()))
	if err != nil {
		return err
	}

	total := 0
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		votes, err := l.backlog.ListByDay(ctx, day.Format(domain.DayLayout))
		if err != nil {
			return fmt.Errorf("catch up votes: %w", err)
		}
		for _, v := range votes {
			select {
			case out <- v:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		total += len(votes)
	}
	slog.Info("Vote listener caught up", "since", since, "votes", total)
	return nil
}

// DecodeVoteNotification parses a trigger payload into a vote.
// Errors wrap domain.ErrMalformedEvent.
func DecodeVoteNotification(payload string) (domain.Vote, error) {
	var v domain.Vote
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return domain.Vote{}, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	if err := v.Validate(); err != nil {
		return domain.Vote{}, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	return v, nil
}
