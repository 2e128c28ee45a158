package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
)

// Static error definitions for better error handling.
var (
	// ErrInvalidURL indicates that the URL is missing or not an http(s) URL.
	ErrInvalidURL = errors.New("a valid http(s) url is required")
	// ErrInsufficientDiskSpace indicates that the storage has less free space than configured.
	ErrInsufficientDiskSpace = errors.New("insufficient disk space")
	// ErrQueueFull indicates that too many jobs are waiting or running.
	ErrQueueFull = errors.New("download queue is full")
	// ErrShuttingDown indicates that the orchestrator no longer accepts jobs.
	ErrShuttingDown = errors.New("server is shutting down")
	// ErrNoFilesProduced indicates that a download finished without output files.
	ErrNoFilesProduced = errors.New("download produced no files")
	// ErrExternalTimeout indicates that the external downloader exceeded its time limit.
	ErrExternalTimeout = errors.New("external downloader timed out")
	// ErrExternalNotFound indicates that the external downloader executable is missing.
	ErrExternalNotFound = errors.New("external downloader not found")
	// ErrExternalFailed indicates that the external downloader exited with an error.
	ErrExternalFailed = errors.New("external downloader failed")
)

// Failure codes recorded in the job error_code field.
const (
	FailureCodeAuthenticationRequired = "authentication_required"
	FailureCodeTimeout                = "timeout"
	FailureCodeToolNotFound           = "tool_not_found"
	FailureCodePermissionDenied       = "permission_denied"
	FailureCodeNoFiles                = "no_files"
	FailureCodeInvalidFormat          = "invalid_format"
	FailureCodeUnsupportedURL         = "unsupported_url"
	FailureCodeCancelled              = "cancelled"
	FailureCodeGeneric                = "generic"
)

// failure is a classified job error.
type failure struct {
	// code is one of the FailureCode constants.
	code string
	// message is shown to the user.
	message string
}

// classifyFailure turns a job error into a user-facing failure.
func (o *Orchestrator) classifyFailure(err error, timeout time.Duration) *failure {
	switch {
	case errors.Is(err, ytdlp.ErrAuthenticationRequired):
		return &failure{
			code: FailureCodeAuthenticationRequired,
			message: fmt.Sprintf(
				"This content requires authentication. Save your browser cookies to %q "+
					"(for example with 'media-grabber auth login') and try again.",
				o.cfg.CookiesFile),
		}
	case errors.Is(err, ytdlp.ErrTimeout),
		errors.Is(err, ErrExternalTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return &failure{
			code:    FailureCodeTimeout,
			message: fmt.Sprintf("Download exceeded the time limit of %s.", timeout),
		}
	case errors.Is(err, ytdlp.ErrToolNotFound), errors.Is(err, ErrExternalNotFound):
		return &failure{
			code:    FailureCodeToolNotFound,
			message: fmt.Sprintf("Download tool is not installed or not on PATH: %v", err),
		}
	case errors.Is(err, ytdlp.ErrPermissionDenied), errors.Is(err, fs.ErrPermission):
		return &failure{
			code:    FailureCodePermissionDenied,
			message: fmt.Sprintf("Permission denied while writing to the storage path: %v", err),
		}
	case errors.Is(err, ErrNoFilesProduced):
		return &failure{
			code:    FailureCodeNoFiles,
			message: "The download finished but produced no files.",
		}
	case errors.Is(err, ytdlp.ErrFormatNotAvailable):
		return &failure{
			code:    FailureCodeInvalidFormat,
			message: fmt.Sprintf("The requested format is not available: %v", err),
		}
	case errors.Is(err, ytdlp.ErrUnsupportedURL):
		return &failure{
			code:    FailureCodeUnsupportedURL,
			message: fmt.Sprintf("The URL is not supported: %v", err),
		}
	case errors.Is(err, context.Canceled):
		return &failure{
			code:    FailureCodeCancelled,
			message: "The download was cancelled.",
		}
	default:
		return &failure{
			code:    FailureCodeGeneric,
			message: fmt.Sprintf("Download failed: %v", err),
		}
	}
}
