package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomaswerner858/DinnerMatch/internal/adapter/metrics"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

type mockNotifier struct {
	mu      sync.Mutex
	err     error
	matches []domain.Match
}

func (m *mockNotifier) NotifyMatch(_ context.Context, match domain.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches = append(m.matches, match)
	return m.err
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matches)
}

var testMatch = domain.Match{RecipeID: "r1", Day: "2024-01-05", UserID: "a", PartnerID: "b"}

func TestCelebrationGuard_DeliversOnce(t *testing.T) {
	mr, client := setupTestClient(t)
	next := &mockNotifier{}
	m := metrics.NewVoteMetrics(prometheus.NewRegistry())
	guard := NewCelebrationGuard(client, next, 48*time.Hour, m)
	ctx := context.Background()

	require.NoError(t, guard.NotifyMatch(ctx, testMatch))
	require.NoError(t, guard.NotifyMatch(ctx, testMatch))

	assert.Equal(t, 1, next.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Celebrations.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Celebrations.WithLabelValues("duplicate")))
	assert.Equal(t, 48*time.Hour, mr.TTL(celebrationKey(testMatch)))
}

func TestCelebrationGuard_PartnerCelebratesSeparately(t *testing.T) {
	_, client := setupTestClient(t)
	next := &mockNotifier{}
	guard := NewCelebrationGuard(client, next, 48*time.Hour, nil)
	ctx := context.Background()

	partner := domain.Match{RecipeID: "r1", Day: "2024-01-05", UserID: "b", PartnerID: "a"}
	require.NoError(t, guard.NotifyMatch(ctx, testMatch))
	require.NoError(t, guard.NotifyMatch(ctx, partner))

	assert.Equal(t, 2, next.count())
}

func TestCelebrationGuard_ReleasesMarkerOnFailure(t *testing.T) {
	mr, client := setupTestClient(t)
	next := &mockNotifier{err: errors.New("publish failed")}
	guard := NewCelebrationGuard(client, next, 48*time.Hour, nil)
	ctx := context.Background()

	err := guard.NotifyMatch(ctx, testMatch)
	require.Error(t, err)
	assert.False(t, mr.Exists(celebrationKey(testMatch)))

	next.err = nil
	require.NoError(t, guard.NotifyMatch(ctx, testMatch))
	assert.Equal(t, 2, next.count())
}

func TestCelebrationGuard_RedisDownStillNotifies(t *testing.T) {
	mr, client := setupTestClient(t)
	next := &mockNotifier{}
	m := metrics.NewVoteMetrics(prometheus.NewRegistry())
	guard := NewCelebrationGuard(client, next, 48*time.Hour, m)
	mr.Close()

	require.NoError(t, guard.NotifyMatch(context.Background(), testMatch))
	assert.Equal(t, 1, next.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Celebrations.WithLabelValues("unguarded")))
}

func TestCelebrationKey(t *testing.T) {
	assert.Equal(t, "celebrated:a:r1:2024-01-05", celebrationKey(testMatch))
}
