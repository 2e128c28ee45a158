package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/media-grabber/internal/app"
	"github.com/oshokin/media-grabber/internal/config"
)

//nolint:gochecknoglobals // Cobra command requires a global definition for proper command-line parsing and execution.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the media-grabber HTTP server.

The server lists formats, runs downloads in the background, streams their
progress and delivers the finished files. Press Ctrl+C to stop it: running
downloads are cancelled and their partial files are removed.`,
	Args:             cobra.NoArgs,
	PersistentPreRun: initConfig,
	Run: func(cmd *cobra.Command, _ []string) {
		cfg := applyConfig(cmd, func(cfg *config.Config) error {
			return bindServeFlags(cmd.Flags(), cfg)
		})

		app.ExecuteServeCommand(cmd.Context(), cfg)
	},
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	addServeFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(flags *pflag.FlagSet) {
	flags.StringP(
		"listen",
		"l",
		"",
		"address to listen on, for example :8000 or 127.0.0.1:9000.")

	flags.StringP(
		"storage",
		"s",
		"",
		"directory holding finished downloads (created if it doesn't exist).")

	flags.StringP(
		"transport",
		"t",
		"",
		"progress transport: sse, websocket or both.")
}

func bindServeFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error

	if flag := flags.Lookup("listen"); flag != nil && flag.Changed {
		if cfg.ListenAddress, err = flags.GetString("listen"); err != nil {
			return err
		}
	}

	if flag := flags.Lookup("storage"); flag != nil && flag.Changed {
		if cfg.StoragePath, err = flags.GetString("storage"); err != nil {
			return err
		}
	}

	if flag := flags.Lookup("transport"); flag != nil && flag.Changed {
		if cfg.ProgressTransport, err = flags.GetString("transport"); err != nil {
			return err
		}
	}

	return nil
}
