package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/media-grabber/internal/version"
)

//nolint:gochecknoglobals // Cobra command requires a global definition for proper command-line parsing and execution.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}

//nolint:gochecknoinits // Cobra requires the init function to set up commands.
func init() {
	rootCmd.AddCommand(versionCmd)
}
