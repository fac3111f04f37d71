package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thomaswerner858/DinnerMatch/internal/platform/version"
)

func newVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			return printResult(cmd.OutOrStdout(), opts.Format, info, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, info.String())
			})
		},
	}
}
