package auth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/oshokin/media-grabber/internal/logger"
)

// initBrowser launches a visible browser with a throwaway profile and opens a stealth page.
func (s *ServiceImpl) initBrowser(ctx context.Context) error {
	tempDir, err := os.MkdirTemp("", "media-grabber-auth-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary user data directory: %w", err)
	}

	s.tempDir = tempDir

	logger.Debugf(ctx, "Using temporary profile directory: %s", tempDir)

	browserLauncher := launcher.New().
		Headless(false).
		UserDataDir(tempDir)

	if chromePath, exists := launcher.LookPath(); exists {
		logger.Debugf(ctx, "Using system browser at: %s", chromePath)

		browserLauncher = browserLauncher.Bin(chromePath)
	} else {
		logger.Info(ctx, "System browser not found, downloading Chromium")
	}

	controlURL, err := browserLauncher.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	logger.Debugf(ctx, "Browser launched at: %s", controlURL)

	browserInstance := rod.New().ControlURL(controlURL)

	if logger.IsDebugLevel() {
		browserInstance = browserInstance.
			Trace(true).
			SlowMotion(browserSlowMotionDelay)
	}

	if err = browserInstance.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	s.browser = browserInstance

	page, err := stealth.Page(s.browser)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}

	s.page = page

	return nil
}

// isBrowserAlive checks if the browser is still running.
func (s *ServiceImpl) isBrowserAlive(ctx context.Context) (alive bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debugf(ctx, "Browser panic recovered: %v", r)

			alive = false
		}
	}()

	_, err := s.page.Info()

	return err == nil
}

// currentURL returns the page URL, or an empty string when the page is gone.
func (s *ServiceImpl) currentURL(ctx context.Context) string {
	defer func() {
		if r := recover(); r != nil {
			logger.Debugf(ctx, "currentURL panic recovered: %v", r)
		}
	}()

	info, err := s.page.Info()
	if err != nil {
		return ""
	}

	return info.URL
}

// cleanup closes the browser and removes the temporary profile.
func (s *ServiceImpl) cleanup(ctx context.Context) {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			logger.Debugf(ctx, "Browser close error (expected): %v", err)
		}

		s.browser = nil
		s.page = nil
	}

	if s.tempDir == "" {
		return
	}

	// Chrome releases profile locks shortly after exiting.
	time.Sleep(browserCleanupDelay)

	if err := os.RemoveAll(s.tempDir); err != nil {
		logger.Debugf(ctx, "Could not clean up temp directory %s: %v", s.tempDir, err)
	}

	s.tempDir = ""
}
