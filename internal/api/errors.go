package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/registry"
	"github.com/oshokin/media-grabber/internal/service/delivery"
	"github.com/oshokin/media-grabber/internal/service/download"
	"github.com/oshokin/media-grabber/internal/service/extract"
	"github.com/oshokin/media-grabber/internal/service/storage"
)

// Static error definitions for better error handling.
var (
	// ErrInvalidBody indicates a request body that is not valid JSON.
	ErrInvalidBody = errors.New("invalid request body")
	// ErrMissingURL indicates a request without a url field.
	ErrMissingURL = errors.New("url is required")
	// ErrRateLimited indicates a client that exceeded its request rate.
	ErrRateLimited = errors.New("too many requests, slow down")
)

// Machine-readable error codes of error responses.
const (
	codeInvalidRequest         = "invalid_request"
	codeRangeNotSatisfiable    = "range_not_satisfiable"
	codeAuthenticationRequired = "authentication_required"
	codeUnsupportedURL         = "unsupported_url"
	codeExtractionFailed       = "extraction_failed"
	codeToolUnavailable        = "tool_unavailable"
	codeNotFound               = "not_found"
	codeForbidden              = "forbidden"
	codeInsufficientStorage    = "insufficient_storage"
	codeQueueFull              = "queue_full"
	codeRateLimited            = "rate_limited"
	codeShuttingDown           = "shutting_down"
	codeInternal               = "internal"
)

// errorResponse is the body of every error response.
type errorResponse struct {
	// Error is the human-readable message.
	Error string `json:"error"`
	// Code is the machine-readable error class.
	Code string `json:"code"`
}

// errorMapping binds a sentinel error to its HTTP status and code.
type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
//
//nolint:gochecknoglobals // This is an immutable lookup table.
var errorMappings = []errorMapping{
	{ErrInvalidBody, http.StatusBadRequest, codeInvalidRequest},
	{ErrMissingURL, http.StatusBadRequest, codeInvalidRequest},
	{extract.ErrInvalidURL, http.StatusBadRequest, codeInvalidRequest},
	{download.ErrInvalidURL, http.StatusBadRequest, codeInvalidRequest},
	{ytdlp.ErrEmptyURL, http.StatusBadRequest, codeInvalidRequest},
	{delivery.ErrMalformedRange, http.StatusBadRequest, codeInvalidRequest},
	{delivery.ErrUnsatisfiableRange, http.StatusRequestedRangeNotSatisfiable, codeRangeNotSatisfiable},
	{ytdlp.ErrAuthenticationRequired, http.StatusUnauthorized, codeAuthenticationRequired},
	{ytdlp.ErrUnsupportedURL, http.StatusUnprocessableEntity, codeUnsupportedURL},
	{ytdlp.ErrToolNotFound, http.StatusServiceUnavailable, codeToolUnavailable},
	{ytdlp.ErrFormatNotAvailable, http.StatusBadGateway, codeExtractionFailed},
	{ytdlp.ErrTimeout, http.StatusBadGateway, codeExtractionFailed},
	{ytdlp.ErrPermissionDenied, http.StatusBadGateway, codeExtractionFailed},
	{ytdlp.ErrExtractionFailed, http.StatusBadGateway, codeExtractionFailed},
	{registry.ErrJobNotFound, http.StatusNotFound, codeNotFound},
	{storage.ErrFileNotFound, http.StatusNotFound, codeNotFound},
	{storage.ErrNotRegularFile, http.StatusNotFound, codeNotFound},
	{storage.ErrForbiddenPath, http.StatusForbidden, codeForbidden},
	{storage.ErrPermissionDenied, http.StatusForbidden, codeForbidden},
	{download.ErrInsufficientDiskSpace, http.StatusInsufficientStorage, codeInsufficientStorage},
	{download.ErrQueueFull, http.StatusTooManyRequests, codeQueueFull},
	{ErrRateLimited, http.StatusTooManyRequests, codeRateLimited},
	{download.ErrShuttingDown, http.StatusServiceUnavailable, codeShuttingDown},
}

// classifyError returns the HTTP status and code of err.
func classifyError(err error) (int, string) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return mapping.status, mapping.code
		}
	}

	return http.StatusInternalServerError, codeInternal
}

// writeError sends err as a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	message := err.Error()

	switch {
	case code == codeAuthenticationRequired:
		message = fmt.Sprintf(
			"This content requires authentication. Save your browser cookies to %q "+
				"(for example with 'media-grabber auth login') and try again. Details: %v",
			s.cfg.CookiesFile, err)
	case status >= http.StatusInternalServerError:
		logger.Errorf(r.Context(), "%s %s failed: %v", r.Method, r.URL.Path, err)

		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
	default:
		logger.Debugf(r.Context(), "%s %s rejected: %v", r.Method, r.URL.Path, err)
	}

	writeJSON(r, w, status, &errorResponse{Error: message, Code: code})
}

// writeJSON sends body as a JSON response with the given status.
func writeJSON(r *http.Request, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warnf(r.Context(), "Failed to write response: %v", err)
	}
}
