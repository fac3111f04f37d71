package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/thomaswerner858/DinnerMatch/internal/domain"
	apperrors "github.com/thomaswerner858/DinnerMatch/internal/platform/errors"
)

type addRecipeRequest struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	ImageRef string `json:"imageRef"`
	OwnerID  string `json:"ownerId"`
}

type castVoteRequest struct {
	RecipeID string `json:"recipeId"`
	Kind     string `json:"kind"`
	Day      string `json:"day"`
}

type setPairingRequest struct {
	PartnerID string `json:"partnerId"`
}

type candidateResponse struct {
	Day          string         `json:"day"`
	HasCandidate bool           `json:"hasCandidate"`
	Recipe       *domain.Recipe `json:"recipe,omitempty"`
	Decided      bool           `json:"decided"`
	State        string         `json:"state"`
}

type voteFailedResponse struct {
	apperrors.ErrorResponse
	Vote domain.Vote `json:"vote"`
}

func (s *Server) handleListRecipes(c echo.Context) error {
	recipes, err := s.candidates.Recipes(c.Request().Context())
	if err != nil {
		return err
	}
	if recipes == nil {
		recipes = []domain.Recipe{}
	}

	if err := c.JSON(http.StatusOK, map[string]any{"recipes": recipes}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetRecipe(c echo.Context) error {
	recipe, err := s.candidates.Recipe(c.Request().Context(), c.Param("recipeID"))
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, recipe); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleAddRecipe(c echo.Context) error {
	var req addRecipeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	recipe, err := s.candidates.AddRecipe(c.Request().Context(), domain.Recipe{
		ID:       strings.TrimSpace(req.ID),
		Title:    strings.TrimSpace(req.Title),
		Body:     req.Body,
		ImageRef: req.ImageRef,
		OwnerID:  req.OwnerID,
	})
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusCreated, recipe); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCandidate(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("userID")

	candidate, err := s.candidates.Candidate(ctx, c.QueryParam("day"))
	if err != nil {
		return err
	}

	decided, err := s.matches.HasDecidedToday(ctx, userID, candidate.Day)
	if err != nil {
		return err
	}
	state, err := s.matches.DayState(ctx, userID, candidate.Day)
	if err != nil {
		return err
	}

	response := candidateResponse{
		Day:          candidate.Day,
		HasCandidate: candidate.HasCandidate(),
		Recipe:       candidate.Recipe,
		Decided:      decided,
		State:        state.String(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleCastVote answers 201 once the vote is stored. When the store is
// unavailable the vote stays pending locally and is returned with a 503.
func (s *Server) handleCastVote(c echo.Context) error {
	var req castVoteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	kind, err := domain.ParseVoteKind(req.Kind)
	if err != nil {
		return err
	}

	vote, err := s.matches.CastVote(c.Request().Context(), c.Param("userID"), strings.TrimSpace(req.RecipeID), kind, req.Day)
	s.countVote(kind, vote, err)
	if errors.Is(err, domain.ErrStoreUnavailable) && vote.ID != "" {
		structuredErr := apperrors.AsStructuredError(err).WithField("vote_id", vote.ID)
		response := voteFailedResponse{ErrorResponse: structuredErr.ToResponse(), Vote: vote}
		if err := c.JSON(structuredErr.HTTPStatus(), response); err != nil {
			return fmt.Errorf("failed to send JSON response: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusCreated, vote); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRetryPending(c echo.Context) error {
	confirmed, err := s.matches.RetryPending(c.Request().Context(), c.Param("userID"))
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, map[string]int{"confirmed": confirmed}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDecided(c echo.Context) error {
	decided, err := s.matches.HasDecidedToday(c.Request().Context(), c.Param("userID"), c.QueryParam("day"))
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, map[string]bool{"decided": decided}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleMatches(c echo.Context) error {
	matches, err := s.matches.MatchesForDay(c.Request().Context(), c.Param("userID"), c.QueryParam("day"))
	if err != nil {
		return err
	}
	if matches == nil {
		matches = []string{}
	}

	if err := c.JSON(http.StatusOK, map[string]any{"recipeIds": matches}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetPairing(c echo.Context) error {
	pairing, err := s.matches.Pairing(c.Request().Context(), c.Param("userID"))
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, pairing); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSetPairing(c echo.Context) error {
	var req setPairingRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	pairing, err := s.matches.SetPartner(c.Request().Context(), c.Param("userID"), req.PartnerID)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, pairing); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) countVote(kind domain.VoteKind, vote domain.Vote, err error) {
	if s.voteMetrics == nil {
		return
	}
	result := "stored"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrStoreUnavailable) && vote.ID != "":
		result = "pending"
	default:
		result = "rejected"
	}
	s.voteMetrics.VotesCast.WithLabelValues(string(kind), result).Inc()
}
