package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
)

const (
	// browserSlowMotionDelay is the delay between browser actions for visibility during debugging.
	browserSlowMotionDelay = 200 * time.Millisecond

	// loginPollInterval is the interval for polling the browser cookies.
	loginPollInterval = time.Second

	// sessionEstablishDelay lets the site finish setting cookies after the session cookie appears.
	sessionEstablishDelay = 2 * time.Second

	// humanBehaviorMinDelay is the minimum delay for simulated human actions.
	humanBehaviorMinDelay = 300 * time.Millisecond
	// humanBehaviorMaxDelay is the maximum delay for simulated human actions.
	humanBehaviorMaxDelay = 900 * time.Millisecond

	// mouseMovementsPerCheck is the number of random mouse movements per polling cycle.
	mouseMovementsPerCheck = 2

	// browserCleanupDelay is the delay to wait for the browser to release file locks before cleanup.
	browserCleanupDelay = 500 * time.Millisecond
)

// Static error definitions for better error handling.
var (
	// ErrNoLoginURL is returned when auth_login_url is not configured.
	ErrNoLoginURL = errors.New("auth_login_url is not configured")

	// ErrNoCookieNames is returned when auth_cookie_names is empty.
	ErrNoCookieNames = errors.New("auth_cookie_names is not configured")

	// ErrLoginTimeout is returned when login takes too long.
	ErrLoginTimeout = errors.New("login timeout exceeded")

	// ErrBrowserClosed is returned when the browser is closed by the user.
	ErrBrowserClosed = errors.New("browser was closed by user")

	// ErrNoCookies is returned when the browser holds no cookies after login.
	ErrNoCookies = errors.New("browser returned no cookies")
)

// CaptureResult describes a written cookies file.
type CaptureResult struct {
	// Path is the cookies file location.
	Path string
	// CookieCount is the number of written cookies.
	CookieCount int
	// SessionCookie is the name of the cookie that signalled the login.
	SessionCookie string
}

// Service captures a signed-in browser session.
type Service interface {
	// CaptureCookies opens a browser, waits for the user to log in and writes the cookies file.
	CaptureCookies(ctx context.Context) (*CaptureResult, error)
}

// ServiceImpl captures cookies with a rod-controlled browser.
type ServiceImpl struct {
	// cfg contains the application configuration.
	cfg *config.Config
	// browser is the controlled browser, set while capturing.
	browser *rod.Browser
	// page is the stealth page the user logs in on.
	page *rod.Page
	// tempDir stores the temporary profile directory for cleanup.
	tempDir string
}

// NewService creates a cookie capture service.
func NewService(cfg *config.Config) (*ServiceImpl, error) {
	if cfg.AuthLoginURL == "" {
		return nil, ErrNoLoginURL
	}

	if len(cfg.AuthCookieNames) == 0 {
		return nil, ErrNoCookieNames
	}

	return &ServiceImpl{
		cfg: cfg,
	}, nil
}

// CaptureCookies opens a browser, waits for the user to log in and writes the cookies file.
func (s *ServiceImpl) CaptureCookies(ctx context.Context) (*CaptureResult, error) {
	logger.Info(ctx, "Starting browser-based login")

	if err := s.initBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	defer s.cleanup(ctx)

	sessionCookie, err := s.waitForUserLogin(ctx)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	networkCookies, err := s.browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read browser cookies: %w", err)
	}

	cookies := fromNetworkCookies(networkCookies)
	if len(cookies) == 0 {
		return nil, ErrNoCookies
	}

	if err = WriteCookiesFile(s.cfg.CookiesFile, cookies); err != nil {
		return nil, err
	}

	logger.Infof(ctx, "Saved %d cookies to %s", len(cookies), s.cfg.CookiesFile)

	return &CaptureResult{
		Path:          s.cfg.CookiesFile,
		CookieCount:   len(cookies),
		SessionCookie: sessionCookie,
	}, nil
}
