package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/media-grabber/internal/app"
)

var (
	//nolint:gochecknoglobals // Cobra command requires a global definition for proper command-line parsing and execution.
	authCmd = &cobra.Command{
		Use:   "auth",
		Short: "Authentication management commands",
		Long: `Manage the cookies used for sites that require signing in.

Use 'auth login' to log in via browser and save the cookies file.`,
	}

	//nolint:gochecknoglobals // Cobra command requires a global definition for proper command-line parsing and execution.
	authLoginCmd = &cobra.Command{
		Use:   "login",
		Short: "Log in with a browser and save the cookies file",
		Long: `Opens a browser window at auth_login_url for you to log in.

The login process:
1. Browser opens at the configured login page
2. Log in as usual, including any second factor
3. Wait: the browser closes once one of auth_cookie_names appears

All cookies of the browser are then written in Netscape format to
cookies_file, and cookies_file is saved to the configuration file. The
server passes the file to yt-dlp for every download.`,
		Args:             cobra.NoArgs,
		PersistentPreRun: initConfig,
		Run: func(cmd *cobra.Command, _ []string) {
			app.ExecuteAuthLoginCommand(cmd.Context(), applyConfig(cmd, nil))
		},
	}
)

//nolint:gochecknoinits // Cobra requires the init function to set up commands.
func init() {
	authCmd.AddCommand(authLoginCmd)
	rootCmd.AddCommand(authCmd)
}
