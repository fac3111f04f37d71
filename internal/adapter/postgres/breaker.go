package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/thomaswerner858/DinnerMatch/internal/adapter/metrics"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

// BreakerVoteStore fails fast with StoreUnavailable while the wrapped store keeps failing.
type BreakerVoteStore struct {
	next domain.VoteStore
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerVoteStore trips after failures consecutive errors and lets a trial request through after openFor.
// dbMetrics may be nil.
func NewBreakerVoteStore(next domain.VoteStore, failures uint32, openFor time.Duration, dbMetrics *metrics.DBMetrics) *BreakerVoteStore {
	settings := gobreaker.Settings{
		Name:        "vote_store",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrValidation)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if dbMetrics != nil {
				dbMetrics.BreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	}
	return &BreakerVoteStore{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerVoteStore) ListByDay(ctx context.Context, day string, userIDs ...string) ([]domain.Vote, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.ListByDay(ctx, day, userIDs...)
	})
	if err != nil {
		return nil, breakerError("list votes", err)
	}
	return v.([]domain.Vote), nil
}

func (b *BreakerVoteStore) Insert(ctx context.Context, vote domain.Vote) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Insert(ctx, vote)
	})
	return breakerError("insert vote", err)
}

// State exposes the breaker state for health checks.
func (b *BreakerVoteStore) State() gobreaker.State {
	return b.cb.State()
}

func breakerError(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NewStoreUnavailable(op, err)
	}
	return err
}
