package http

import (
	"time"

	"github.com/oshokin/media-grabber/internal/utils"
	"github.com/oshokin/media-grabber/internal/version"
)

const (
	// DefaultTimeout is the default timeout for API calls to the grabber server.
	DefaultTimeout = 30 * time.Second

	// eventStreamContentType is never dumped, reading it would block until the stream ends.
	eventStreamContentType = "text/event-stream"

	// productName is the product token of the User-Agent.
	productName = "media-grabber"
)

// UserAgent returns the User-Agent sent by the command line client.
func UserAgent() string {
	return newUserAgentProvider().GetUserAgent()
}

func newUserAgentProvider() *utils.ProductUserAgentProvider {
	return utils.NewProductUserAgentProvider(productName, version.Short())
}
