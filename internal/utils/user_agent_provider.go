package utils

//go:generate $MOCKGEN -source=user_agent_provider.go -destination=mocks/user_agent_provider_mock.go

import (
	"runtime"
	"strings"
)

// UserAgentProvider supplies the User-Agent header of outgoing requests.
type UserAgentProvider interface {
	// GetUserAgent returns a User-Agent string.
	GetUserAgent() string
}

// ProductUserAgentProvider identifies the client as product/version with a platform comment,
// for example "media-grabber/0.1.0 (linux; amd64)".
type ProductUserAgentProvider struct {
	// userAgent is the header value built once at construction.
	userAgent string
}

// NewProductUserAgentProvider builds the User-Agent of product at version.
// An empty version yields the product token alone.
func NewProductUserAgentProvider(product, version string) *ProductUserAgentProvider {
	token := strings.TrimSpace(product)
	if version = strings.TrimSpace(version); version != "" {
		token += "/" + version
	}

	return &ProductUserAgentProvider{
		userAgent: token + " (" + runtime.GOOS + "; " + runtime.GOARCH + ")",
	}
}

// GetUserAgent returns the User-Agent string.
func (p *ProductUserAgentProvider) GetUserAgent() string {
	return p.userAgent
}
