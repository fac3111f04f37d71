// Package cli implements dinnerctl, the admin command line for the DinnerMatch stores.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabaseURL string
	Format      string // "json" | "text"

	connect Connector
	clock   clockwork.Clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the dinnerctl root command backed by PostgreSQL.
func NewRootCommand() *cobra.Command {
	return newRootCommand(ConnectPostgres, clockwork.NewRealClock())
}

func newRootCommand(connect Connector, clock clockwork.Clock) *cobra.Command {
	opts := &RootOptions{connect: connect, clock: clock}

	cmd := &cobra.Command{
		Use:   "dinnerctl",
		Short: "DinnerMatch admin tool",
		Long:  "Migrate the database, seed recipes and inspect candidates and matches.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL (or set DATABASE_URL env)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newCandidateCommand(opts))
	cmd.AddCommand(newMatchesCommand(opts))
	cmd.AddCommand(newVersionCommand(opts))

	return cmd
}
