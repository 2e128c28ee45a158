package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/media-grabber/internal/config"
)

// TestNewService tests configuration checks.
func TestNewService(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr error
	}{
		{
			name: "valid",
			cfg: &config.Config{
				AuthLoginURL:    "https://www.youtube.com",
				AuthCookieNames: []string{"SID"},
			},
		},
		{
			name:    "missing login url",
			cfg:     &config.Config{AuthCookieNames: []string{"SID"}},
			wantErr: ErrNoLoginURL,
		},
		{
			name:    "missing cookie names",
			cfg:     &config.Config{AuthLoginURL: "https://www.youtube.com"},
			wantErr: ErrNoCookieNames,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			service, err := NewService(tt.cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, service)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, service)
		})
	}
}

// TestFromNetworkCookies tests conversion of browser cookies.
func TestFromNetworkCookies(t *testing.T) {
	t.Parallel()

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	cookies := fromNetworkCookies([]*proto.NetworkCookie{
		{Name: "SID", Value: "abc", Domain: ".youtube.com", Path: "/", Secure: true, HTTPOnly: true,
			Expires: proto.TimeSinceEpoch(expires.Unix())},
		{Name: "PREF", Value: "f1", Domain: ".youtube.com", Session: true, Expires: -1},
		{Name: "", Value: "ignored", Domain: ".youtube.com"},
		nil,
		{Name: "a", Value: "b", Domain: "accounts.google.com", Path: "/x"},
	})

	require.Len(t, cookies, 3)

	assert.Equal(t, &Cookie{
		Domain: ".youtube.com", Path: "/", Name: "PREF", Value: "f1",
	}, cookies[0])
	assert.Equal(t, &Cookie{
		Domain: ".youtube.com", Path: "/", Name: "SID", Value: "abc",
		Secure: true, HTTPOnly: true, Expires: expires.Unix(),
	}, cookies[1])
	assert.Equal(t, "accounts.google.com", cookies[2].Domain)
	assert.Equal(t, "/x", cookies[2].Path)
}

// TestFormatNetscape tests the cookies.txt layout.
func TestFormatNetscape(t *testing.T) {
	t.Parallel()

	content := FormatNetscape([]*Cookie{
		{Domain: ".youtube.com", Path: "/", Name: "SID", Value: "abc", Secure: true, HTTPOnly: true, Expires: 1893456000},
		{Domain: "example.com", Path: "/app", Name: "session", Value: "x=y"},
	})

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "# Netscape HTTP Cookie File", lines[0])
	assert.Empty(t, lines[1])
	assert.Equal(t, "#HttpOnly_.youtube.com\tTRUE\t/\tTRUE\t1893456000\tSID\tabc", lines[2])
	assert.Equal(t, "example.com\tFALSE\t/app\tFALSE\t0\tsession\tx=y", lines[3])
}

// TestWriteCookiesFile tests that the file is written privately and replaced whole.
func TestWriteCookiesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "cookies.txt")

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	cookies := []*Cookie{{Domain: ".youtube.com", Path: "/", Name: "SID", Value: "fresh"}}
	require.NoError(t, WriteCookiesFile(path, cookies))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, FormatNetscape(cookies), string(content))
	assert.NoFileExists(t, path+".part")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	freshDir := filepath.Join(t.TempDir(), "a", "b", "cookies.txt")
	require.NoError(t, WriteCookiesFile(freshDir, cookies))
	assert.FileExists(t, freshDir)
}

// TestFindSessionCookie tests session cookie detection.
func TestFindSessionCookie(t *testing.T) {
	t.Parallel()

	cookies := []*proto.NetworkCookie{
		{Name: "PREF", Value: "f1"},
		{Name: "SID", Value: ""},
		{Name: "__Secure-3PSID", Value: "token"},
	}

	tests := []struct {
		name      string
		wanted    []string
		wantName  string
		wantFound bool
	}{
		{name: "present", wanted: []string{"__Secure-3PSID"}, wantName: "__Secure-3PSID", wantFound: true},
		{name: "empty value skipped", wanted: []string{"SID"}},
		{name: "first configured wins", wanted: []string{"SID", "PREF", "__Secure-3PSID"}, wantName: "PREF", wantFound: true},
		{name: "absent", wanted: []string{"LOGIN_INFO"}},
		{name: "no names", wanted: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			name, found := findSessionCookie(cookies, tt.wanted)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantName, name)
		})
	}
}
