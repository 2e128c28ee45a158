package app

import (
	"context"

	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/service/auth"
)

// ExecuteAuthLoginCommand executes the auth login command.
// It opens a browser, waits for the user to log in, writes the cookies file
// and saves its location to the configuration file.
func ExecuteAuthLoginCommand(ctx context.Context, cfg *config.Config) {
	logger.Info(ctx, "Starting authentication process")

	authService, err := auth.NewService(cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize authentication service: %v", err)
	}

	result, err := authService.CaptureCookies(ctx)
	if err != nil {
		logger.Fatalf(ctx, "Authentication failed: %v", err)
	}

	if err = config.SaveConfig(cfg); err != nil {
		logger.Fatalf(ctx, "Failed to save configuration: %v", err)
	}

	logger.Infof(ctx, "Saved %d cookies to %s", result.CookieCount, result.Path)
	logger.Info(ctx, "Configuration updated successfully!")
	logger.Info(ctx, "Restart the server, or keep it running: the cookies file is read for every download.")
	logger.Info(ctx, "")
	logger.Info(ctx, "Try downloading a video:")
	logger.Info(ctx, "media-grabber get https://www.youtube.com/watch?v=dQw4w9WgXcQ")
}
