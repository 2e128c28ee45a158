package grabber

import (
	"errors"
	"fmt"
)

// Static error definitions for better error handling.
var (
	// ErrInvalidServerURL indicates that the server URL is not an absolute http(s) URL.
	ErrInvalidServerURL = errors.New("invalid server URL")
	// ErrUnexpectedHTTPStatus indicates an unexpected HTTP status code was received.
	ErrUnexpectedHTTPStatus = errors.New("unexpected HTTP status")
	// ErrJobFailed indicates that the server finished the job with an error.
	ErrJobFailed = errors.New("download failed")
	// ErrJobNotFound indicates that the server no longer knows the job.
	ErrJobNotFound = errors.New("download not found")
	// ErrStreamEnded indicates that the progress stream closed before a terminal event.
	ErrStreamEnded = errors.New("progress stream ended unexpectedly")
	// ErrRangeIgnored indicates that a resume was requested but the server sent the whole file.
	ErrRangeIgnored = errors.New("server ignored the range request")
)

// APIError is an error response of the server.
type APIError struct {
	// StatusCode is the HTTP status.
	StatusCode int
	// Code is the machine-readable error class.
	Code string
	// Message is the human-readable message.
	Message string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap makes every APIError match ErrUnexpectedHTTPStatus.
func (e *APIError) Unwrap() error {
	return ErrUnexpectedHTTPStatus
}
