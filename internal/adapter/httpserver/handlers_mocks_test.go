package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/thomaswerner858/DinnerMatch/internal/adapter/metrics"
	"github.com/thomaswerner858/DinnerMatch/internal/app"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
	"github.com/thomaswerner858/DinnerMatch/internal/platform/config"
)

// --- Mock implementations ---

type mockMatchService struct {
	castVoteFn        func(ctx context.Context, userID, recipeID string, kind domain.VoteKind, day string) (domain.Vote, error)
	retryPendingFn    func(ctx context.Context, userID string) (int, error)
	hasDecidedTodayFn func(ctx context.Context, userID, day string) (bool, error)
	matchesForDayFn   func(ctx context.Context, userID, day string) ([]string, error)
	dayStateFn        func(ctx context.Context, userID, day string) (domain.DayState, error)
	pairingFn         func(ctx context.Context, userID string) (domain.Pairing, error)
	setPartnerFn      func(ctx context.Context, userID, partnerID string) (domain.Pairing, error)
}

func (m *mockMatchService) CastVote(ctx context.Context, userID, recipeID string, kind domain.VoteKind, day string) (domain.Vote, error) {
	if m.castVoteFn != nil {
		return m.castVoteFn(ctx, userID, recipeID, kind, day)
	}
	return domain.Vote{ID: "v1", UserID: userID, RecipeID: recipeID, Kind: kind, Day: day}, nil
}

func (m *mockMatchService) RetryPending(ctx context.Context, userID string) (int, error) {
	if m.retryPendingFn != nil {
		return m.retryPendingFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockMatchService) HasDecidedToday(ctx context.Context, userID, day string) (bool, error) {
	if m.hasDecidedTodayFn != nil {
		return m.hasDecidedTodayFn(ctx, userID, day)
	}
	return false, nil
}

func (m *mockMatchService) MatchesForDay(ctx context.Context, userID, day string) ([]string, error) {
	if m.matchesForDayFn != nil {
		return m.matchesForDayFn(ctx, userID, day)
	}
	return nil, nil
}

func (m *mockMatchService) DayState(ctx context.Context, userID, day string) (domain.DayState, error) {
	if m.dayStateFn != nil {
		return m.dayStateFn(ctx, userID, day)
	}
	return domain.DayNoDecision, nil
}

func (m *mockMatchService) Pairing(ctx context.Context, userID string) (domain.Pairing, error) {
	if m.pairingFn != nil {
		return m.pairingFn(ctx, userID)
	}
	return domain.Pairing{SelfID: userID}, nil
}

func (m *mockMatchService) SetPartner(ctx context.Context, userID, partnerID string) (domain.Pairing, error) {
	if m.setPartnerFn != nil {
		return m.setPartnerFn(ctx, userID, partnerID)
	}
	return domain.Pairing{SelfID: userID, PartnerID: partnerID}, nil
}

type mockCandidateService struct {
	candidateFn func(ctx context.Context, day string) (app.Candidate, error)
	recipesFn   func(ctx context.Context) ([]domain.Recipe, error)
	recipeFn    func(ctx context.Context, id string) (domain.Recipe, error)
	addRecipeFn func(ctx context.Context, recipe domain.Recipe) (domain.Recipe, error)
}

func (m *mockCandidateService) Candidate(ctx context.Context, day string) (app.Candidate, error) {
	if m.candidateFn != nil {
		return m.candidateFn(ctx, day)
	}
	if day == "" {
		day = "2024-01-05"
	}
	return app.Candidate{Day: day}, nil
}

func (m *mockCandidateService) Recipes(ctx context.Context) ([]domain.Recipe, error) {
	if m.recipesFn != nil {
		return m.recipesFn(ctx)
	}
	return nil, nil
}

func (m *mockCandidateService) Recipe(ctx context.Context, id string) (domain.Recipe, error) {
	if m.recipeFn != nil {
		return m.recipeFn(ctx, id)
	}
	return domain.Recipe{}, domain.ErrRecipeNotFound
}

func (m *mockCandidateService) AddRecipe(ctx context.Context, recipe domain.Recipe) (domain.Recipe, error) {
	if m.addRecipeFn != nil {
		return m.addRecipeFn(ctx, recipe)
	}
	return recipe, nil
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{Port: "8080", VoteRateLimit: 100, VoteRateBurst: 100}
}

func newTestServer(t *testing.T, matches matchService, candidates candidateService, opts ...func(*Deps)) *Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	deps := Deps{
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		VoteMetrics: metrics.NewVoteMetrics(reg),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewServer(testConfig(), matches, candidates, deps)
}

func withHealthChecks(checks ...HealthCheck) func(*Deps) {
	return func(d *Deps) {
		d.HealthChecks = checks
	}
}

func withWebsocketHandler(h http.Handler) func(*Deps) {
	return func(d *Deps) {
		d.WebsocketHandler = h
	}
}

// doRequest runs a request through the full router and middleware chain.
func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
