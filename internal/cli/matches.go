package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thomaswerner858/DinnerMatch/internal/app"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

type matchesResult struct {
	UserID    string   `json:"userId"`
	PartnerID string   `json:"partnerId"`
	Day       string   `json:"day"`
	RecipeIDs []string `json:"recipeIds"`
}

func newMatchesCommand(opts *RootOptions) *cobra.Command {
	var userID, day string

	cmd := &cobra.Command{
		Use:   "matches",
		Short: "List the recipes a user and their partner both liked on a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if day == "" {
				day = domain.DayOf(opts.clock.Now())
			}
			if !domain.IsDay(day) {
				return domain.NewValidationError("day", "must be a calendar date (YYYY-MM-DD)")
			}
			return withBackend(cmd, opts, func(ctx context.Context, b Backend) error {
				result, err := storedMatches(ctx, b, strings.TrimSpace(userID), day)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), opts.Format, result, func(w io.Writer) {
					if result.PartnerID == "" {
						_, _ = fmt.Fprintf(w, "%s has no partner\n", result.UserID)
						return
					}
					_, _ = fmt.Fprintf(w, "%s + %s on %s: %d match(es)\n", result.UserID, result.PartnerID, result.Day, len(result.RecipeIDs))
					for _, id := range result.RecipeIDs {
						_, _ = fmt.Fprintf(w, "  %s\n", id)
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&day, "day", "", "calendar date YYYY-MM-DD (default today, UTC)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// storedMatches rebuilds a ledger from the stored votes of the pair.
func storedMatches(ctx context.Context, b Backend, userID, day string) (matchesResult, error) {
	result := matchesResult{UserID: userID, Day: day, RecipeIDs: []string{}}

	pairing, err := b.Pairings().Get(ctx, userID)
	if errors.Is(err, domain.ErrPairingNotFound) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("load pairing: %w", err)
	}
	if !pairing.Paired() {
		return result, nil
	}
	result.PartnerID = pairing.PartnerID

	votes, err := b.Votes().ListByDay(ctx, day, pairing.SelfID, pairing.PartnerID)
	if err != nil {
		return result, fmt.Errorf("load votes: %w", err)
	}

	ledger := app.NewLedger()
	for _, v := range votes {
		ledger.Record(v)
	}
	result.RecipeIDs = ledger.MatchesForDay(pairing, day)
	return result, nil
}
