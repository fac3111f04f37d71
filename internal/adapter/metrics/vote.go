package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

// VoteMetrics holds Prometheus metrics for the vote and match pipeline.
type VoteMetrics struct {
	VotesCast       *prometheus.CounterVec
	VotesObserved   prometheus.Counter
	MalformedEvents prometheus.Counter
	FeedReconnects  prometheus.Counter
	Matches         prometheus.Counter
	Celebrations    *prometheus.CounterVec
}

// NewVoteMetrics creates and registers vote pipeline metrics on the given registry.
func NewVoteMetrics(reg prometheus.Registerer) *VoteMetrics {
	m := &VoteMetrics{
		VotesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Total number of votes cast, by kind and result.",
		}, []string{"kind", "result"}),
		VotesObserved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_observed_total",
			Help:      "Total number of vote insertions received from the store.",
		}),
		MalformedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_events_malformed_total",
			Help:      "Total number of vote notifications dropped as malformed.",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_feed_reconnects_total",
			Help:      "Total number of vote listener reconnects.",
		}),
		Matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_detected_total",
			Help:      "Total number of match events raised by sessions.",
		}),
		Celebrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "celebrations_total",
			Help:      "Total number of match celebrations, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.VotesCast, m.VotesObserved, m.MalformedEvents, m.FeedReconnects, m.Matches, m.Celebrations)
	return m
}

// MatchCounter counts match events on their way to the next notifier.
type MatchCounter struct {
	next    domain.MatchNotifier
	metrics *VoteMetrics
}

func NewMatchCounter(next domain.MatchNotifier, m *VoteMetrics) *MatchCounter {
	return &MatchCounter{next: next, metrics: m}
}

func (c *MatchCounter) NotifyMatch(ctx context.Context, match domain.Match) error {
	c.metrics.Matches.Inc()
	return c.next.NotifyMatch(ctx, match)
}
