package auth

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/oshokin/media-grabber/internal/constants"
)

const (
	// netscapeHeader is the first line expected by cookie file readers.
	netscapeHeader = "# Netscape HTTP Cookie File"
	// httpOnlyPrefix marks HttpOnly cookies in the domain column.
	httpOnlyPrefix = "#HttpOnly_"
	// cookiesFilePermissions keeps the session secrets private.
	cookiesFilePermissions = 0o600
)

// Cookie is one browser cookie.
type Cookie struct {
	// Domain is the cookie domain; a leading dot includes subdomains.
	Domain string
	// Path is the cookie path.
	Path string
	// Name is the cookie name.
	Name string
	// Value is the cookie value.
	Value string
	// Secure restricts the cookie to HTTPS.
	Secure bool
	// HTTPOnly hides the cookie from scripts.
	HTTPOnly bool
	// Expires is the expiry as Unix seconds, 0 for session cookies.
	Expires int64
}

// fromNetworkCookies converts browser cookies, dropping nameless ones.
func fromNetworkCookies(cookies []*proto.NetworkCookie) []*Cookie {
	result := make([]*Cookie, 0, len(cookies))

	for _, cookie := range cookies {
		if cookie == nil || cookie.Name == "" {
			continue
		}

		var expires int64
		if !cookie.Session && cookie.Expires > 0 {
			expires = int64(cookie.Expires)
		}

		result = append(result, &Cookie{
			Domain:   cookie.Domain,
			Path:     cmp.Or(cookie.Path, "/"),
			Name:     cookie.Name,
			Value:    cookie.Value,
			Secure:   cookie.Secure,
			HTTPOnly: cookie.HTTPOnly,
			Expires:  expires,
		})
	}

	slices.SortStableFunc(result, func(a, b *Cookie) int {
		return cmp.Or(strings.Compare(a.Domain, b.Domain), strings.Compare(a.Name, b.Name))
	})

	return result
}

// FormatNetscape renders cookies in the Netscape cookies.txt format.
func FormatNetscape(cookies []*Cookie) string {
	var builder strings.Builder

	builder.WriteString(netscapeHeader)
	builder.WriteString("\n\n")

	for _, cookie := range cookies {
		domain := cookie.Domain
		if cookie.HTTPOnly {
			domain = httpOnlyPrefix + domain
		}

		builder.WriteString(strings.Join([]string{
			domain,
			netscapeBool(strings.HasPrefix(cookie.Domain, ".")),
			cookie.Path,
			netscapeBool(cookie.Secure),
			strconv.FormatInt(cookie.Expires, 10),
			cookie.Name,
			cookie.Value,
		}, "\t"))
		builder.WriteByte('\n')
	}

	return builder.String()
}

// WriteCookiesFile atomically writes cookies to path, readable by the owner only.
func WriteCookiesFile(path string, cookies []*Cookie) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.DefaultFolderPermissions); err != nil {
			return fmt.Errorf("failed to create cookies directory: %w", err)
		}
	}

	partPath := path + constants.PartFileSuffix

	if err := os.WriteFile(partPath, []byte(FormatNetscape(cookies)), cookiesFilePermissions); err != nil {
		return fmt.Errorf("failed to write cookies file: %w", err)
	}

	if err := os.Rename(partPath, path); err != nil {
		_ = os.Remove(partPath)

		return fmt.Errorf("failed to replace cookies file: %w", err)
	}

	return nil
}

// findSessionCookie returns the first wanted cookie name that is set.
func findSessionCookie(cookies []*proto.NetworkCookie, wanted []string) (string, bool) {
	for _, name := range wanted {
		for _, cookie := range cookies {
			if cookie != nil && cookie.Name == name && cookie.Value != "" {
				return name, true
			}
		}
	}

	return "", false
}

func netscapeBool(value bool) string {
	if value {
		return "TRUE"
	}

	return "FALSE"
}
