package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Static error definitions for better error handling.
var (
	// ErrToolNotFound indicates that the yt-dlp executable cannot be found.
	ErrToolNotFound = errors.New("yt-dlp executable not found")
	// ErrAuthenticationRequired indicates that the source requires signing in or valid cookies.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrUnsupportedURL indicates that no extractor handles the URL.
	ErrUnsupportedURL = errors.New("unsupported URL")
	// ErrFormatNotAvailable indicates that the requested format selector matched nothing.
	ErrFormatNotAvailable = errors.New("requested format is not available")
	// ErrTimeout indicates that the process exceeded its deadline and was killed.
	ErrTimeout = errors.New("yt-dlp timed out")
	// ErrPermissionDenied indicates that the output location is not writable.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrExtractionFailed is the generic failure of the tool.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrEmptyURL indicates that no URL was given.
	ErrEmptyURL = errors.New("url is required")
)

// authenticationMarkers are fragments of yt-dlp diagnostics meaning the source wants a signed-in session.
//
//nolint:gochecknoglobals // This is an immutable lookup table.
var authenticationMarkers = []string{
	"sign in to confirm",
	"login required",
	"requires authentication",
	"use --cookies",
	"--cookies-from-browser",
	"private video",
	"members-only",
	"this video is only available for registered users",
	"account authentication is required",
	"confirm your age",
}

// ProcessError describes a failed yt-dlp run.
type ProcessError struct {
	// Kind is one of the package sentinel errors.
	Kind error
	// ExitCode is the process exit code, -1 when it did not exit normally.
	ExitCode int
	// Diagnostic is the error text printed by the tool.
	Diagnostic string
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	if e.Diagnostic == "" {
		return e.Kind.Error()
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Diagnostic)
}

// Unwrap returns the sentinel kind so errors.Is works on ProcessError.
func (e *ProcessError) Unwrap() error {
	return e.Kind
}

// classifyFailure converts the outcome of a finished process into a ProcessError.
func classifyFailure(ctx context.Context, runErr error, stderr string) error {
	diagnostic := extractDiagnostic(stderr)

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return &ProcessError{Kind: ErrTimeout, ExitCode: -1, Diagnostic: diagnostic}
	} else if ctxErr != nil {
		return ctxErr
	}

	if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, os.ErrNotExist) {
		return &ProcessError{Kind: ErrToolNotFound, ExitCode: -1, Diagnostic: runErr.Error()}
	}

	exitCode := -1

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	return &ProcessError{Kind: classifyDiagnostic(diagnostic), ExitCode: exitCode, Diagnostic: diagnostic}
}

// classifyDiagnostic maps yt-dlp error text to a sentinel error.
func classifyDiagnostic(diagnostic string) error {
	lower := strings.ToLower(diagnostic)

	for _, marker := range authenticationMarkers {
		if strings.Contains(lower, marker) {
			return ErrAuthenticationRequired
		}
	}

	switch {
	case strings.Contains(lower, "unsupported url"):
		return ErrUnsupportedURL
	case strings.Contains(lower, "requested format is not available"),
		strings.Contains(lower, "invalid format specification"):
		return ErrFormatNotAvailable
	case strings.Contains(lower, "permission denied"):
		return ErrPermissionDenied
	default:
		return ErrExtractionFailed
	}
}

// maxDiagnosticLength bounds the diagnostic text kept from stderr.
const maxDiagnosticLength = 2048

// extractDiagnostic returns the ERROR lines of stderr, or its tail when there are none.
func extractDiagnostic(stderr string) string {
	var errorLines []string

	for line := range strings.SplitSeq(stderr, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ERROR:") {
			errorLines = append(errorLines, strings.TrimSpace(strings.TrimPrefix(line, "ERROR:")))
		}
	}

	diagnostic := strings.Join(errorLines, "; ")
	if diagnostic == "" {
		diagnostic = strings.TrimSpace(stderr)
	}

	if len(diagnostic) > maxDiagnosticLength {
		diagnostic = diagnostic[len(diagnostic)-maxDiagnosticLength:]
	}

	return diagnostic
}
