package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/media-grabber/internal/app"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
)

//nolint:gochecknoglobals // Cobra command requires a global definition for proper command-line parsing and execution.
var getCmd = &cobra.Command{
	Use:   "get [flags] {url}",
	Short: "Download a URL through a running server",
	Long: `Asks a running media-grabber server to download the URL, shows the
progress and saves the finished file to the output directory.

An interrupted transfer leaves a .part file; running the same command again
resumes it.`,
	Args:             cobra.ExactArgs(1),
	PersistentPreRun: initConfig,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := applyConfig(cmd, func(cfg *config.Config) error {
			return bindGetFlags(cmd.Flags(), cfg)
		})

		opts, err := getOptionsFromFlags(cmd.Flags(), args[0])
		if err != nil {
			logger.Fatalf(cmd.Context(), "Failed to parse flags: %v", err)
		}

		if !logger.IsDebugLevel() {
			opts.ProgressOutput = os.Stderr
		}

		app.ExecuteGetCommand(cmd.Context(), cfg, opts)
	},
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	addGetFlags(getCmd.Flags())
	rootCmd.AddCommand(getCmd)
}

func addGetFlags(flags *pflag.FlagSet) {
	flags.StringP(
		"format",
		"f",
		"",
		"format id from the listing of the URL (best available when empty).")

	flags.BoolP(
		"audio",
		"a",
		false,
		"extract audio only.")

	flags.StringP(
		"output",
		"o",
		".",
		"directory to save the downloaded file (the path will be created if it doesn't exist).")

	flags.String(
		"server",
		"",
		"media-grabber server URL, for example http://localhost:8000.")
}

func bindGetFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	if flag := flags.Lookup("server"); flag != nil && flag.Changed {
		serverURL, err := flags.GetString("server")
		if err != nil {
			return err
		}

		cfg.ServerURL = serverURL
	}

	return nil
}

func getOptionsFromFlags(flags *pflag.FlagSet, url string) (*app.GetOptions, error) {
	formatID, err := flags.GetString("format")
	if err != nil {
		return nil, err
	}

	audioOnly, err := flags.GetBool("audio")
	if err != nil {
		return nil, err
	}

	outputPath, err := flags.GetString("output")
	if err != nil {
		return nil, err
	}

	return &app.GetOptions{
		URL:        url,
		FormatID:   formatID,
		AudioOnly:  audioOnly,
		OutputPath: outputPath,
	}, nil
}
