package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thomaswerner858/DinnerMatch/internal/app"
)

func newCandidateCommand(opts *RootOptions) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "candidate",
		Short: "Show the candidate recipe for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b Backend) error {
				candidate, err := app.NewCandidateService(b.Recipes(), opts.clock).Candidate(ctx, day)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), opts.Format, candidate, func(w io.Writer) {
					if !candidate.HasCandidate() {
						_, _ = fmt.Fprintf(w, "%s: no recipes\n", candidate.Day)
						return
					}
					_, _ = fmt.Fprintf(w, "%s: %s (%s)\n", candidate.Day, candidate.Recipe.Title, candidate.Recipe.ID)
				})
			})
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "calendar date YYYY-MM-DD (default today, UTC)")
	return cmd
}
