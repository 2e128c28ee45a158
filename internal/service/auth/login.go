package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/media-grabber/internal/logger"
)

// waitForUserLogin opens the login page and waits until a session cookie appears.
// It returns the name of that cookie.
func (s *ServiceImpl) waitForUserLogin(ctx context.Context) (string, error) {
	logger.Infof(ctx, "Opening %s", s.cfg.AuthLoginURL)

	if err := s.page.Context(ctx).Navigate(s.cfg.AuthLoginURL); err != nil {
		return "", fmt.Errorf("failed to open login page: %w", err)
	}

	logger.Info(ctx, "")
	logger.Info(ctx, "Please log in using the browser window.")
	logger.Infof(ctx, "The cookies are saved once one of these appears: %v", s.cfg.AuthCookieNames)
	logger.Info(ctx, "Do not close the browser, it is closed automatically.")
	logger.Info(ctx, "")

	sessionCookie, err := s.waitForSessionCookie(ctx)
	if err != nil {
		return "", err
	}

	logger.Infof(ctx, "Session cookie '%s' detected, login successful", sessionCookie)

	if !sleepContext(ctx, sessionEstablishDelay) {
		return "", ctx.Err()
	}

	return sessionCookie, nil
}

// waitForSessionCookie polls the browser cookies until one of the configured names is set.
func (s *ServiceImpl) waitForSessionCookie(ctx context.Context) (string, error) {
	timeout := s.cfg.ParsedAuthLoginTimeout

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()

	var lastURL string

	for {
		if !s.isBrowserAlive(ctx) {
			return "", ErrBrowserClosed
		}

		if currentURL := s.currentURL(ctx); currentURL != lastURL {
			logger.Debugf(ctx, "URL changed: %s", currentURL)

			lastURL = currentURL
		}

		cookies, err := s.browser.GetCookies()
		if err != nil {
			logger.Debugf(ctx, "Failed to read cookies: %v", err)
		} else if name, found := findSessionCookie(cookies, s.cfg.AuthCookieNames); found {
			return name, nil
		}

		s.simulateHumanBehavior(ctx)

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: waited for %v", ErrLoginTimeout, timeout)
			}

			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
