package http

import (
	"net/http"
	"time"

	"github.com/oshokin/media-grabber/internal/config"
)

// NewClient returns an HTTP client with logging and User-Agent injection.
// A zero timeout disables the client deadline, which streaming requests need.
func NewClient(timeout time.Duration) *http.Client {
	transport := NewUserAgentInjector(http.DefaultTransport, newUserAgentProvider())

	return &http.Client{
		Transport: NewLogTransport(transport, config.DefaultMaxLogLength),
		Timeout:   timeout,
	}
}
