package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
)

var (
	//nolint:gochecknoglobals // It is required for configuration initialization before the application starts.
	configFilenameFromFlag string

	//nolint:gochecknoglobals,lll // It is initialized once during the application's startup and shared across the command execution logic.
	appConfig *config.Config

	//nolint:gochecknoglobals,lll // Cobra command requires a global definition for proper command-line parsing and execution.
	rootCmd = &cobra.Command{
		Use:   "media-grabber",
		Short: "Download videos, audio and playlists from media sites through yt-dlp.",
		Long: `Media Grabber is an HTTP service that downloads media from web pages.
It supports:
- Listing the available video and audio formats of a URL
- Background downloads with live progress over Server-Sent Events or WebSocket
- Audio extraction and zipped playlists
- Resumable file delivery with HTTP range requests

Run 'media-grabber serve' to start the server and 'media-grabber get <url>' to use it.`,
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() {
	signals := []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)

	defer func() {
		_ = logger.Logger().Sync()
	}()

	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()

		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configFilenameFromFlag,
		"config",
		"c",
		"",
		fmt.Sprintf("path to the configuration file (default is '%s')",
			config.DefaultConfigFilename))
}

// initConfig loads the optional .env file and the configuration.
func initConfig(cmd *cobra.Command, _ []string) {
	if err := godotenv.Load(config.DefaultEnvFilename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warnf(cmd.Context(), "Failed to load %s: %v", config.DefaultEnvFilename, err)
	}

	var err error

	appConfig, err = config.LoadConfig(configFilenameFromFlag)
	if err != nil {
		logger.Fatalf(cmd.Context(), "Failed to load configuration: %v", err)
	}
}

// applyConfig validates the configuration once command flags are bound and applies the log level.
func applyConfig(cmd *cobra.Command, bind func(cfg *config.Config) error) *config.Config {
	if bind != nil {
		if err := bind(appConfig); err != nil {
			logger.Fatalf(cmd.Context(), "Failed to parse flags: %v", err)
		}
	}

	if err := config.ValidateConfig(appConfig); err != nil {
		logger.Fatalf(cmd.Context(), "Invalid configuration: %v", err)
	}

	logger.SetLevel(appConfig.ParsedLogLevel)

	return appConfig
}
