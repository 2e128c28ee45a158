//nolint:nolintlint,revive // utils is a common and acceptable package name for utility functions.
package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/media-grabber/internal/constants"
)

// TestSafeInt64ToUint64 tests the SafeInt64ToUint64 function.
func TestSafeInt64ToUint64(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), SafeInt64ToUint64(-5))
	assert.Equal(t, uint64(0), SafeInt64ToUint64(0))
	assert.Equal(t, uint64(42), SafeInt64ToUint64(42))
}

// TestSanitizeFilename tests the SanitizeFilename function.
func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "valid filename",
			input:    "Never Gonna Give You Up.mp4",
			expected: "Never Gonna Give You Up.mp4",
		},
		{
			name:     "invalid characters",
			input:    "AC/DC: Back in Black?",
			expected: "AC_DC_ Back in Black_",
		},
		{
			name:     "Windows reserved name",
			input:    "CON",
			expected: "_CON",
		},
		{
			name:     "trailing dots",
			input:    "test...",
			expected: "test",
		},
		{
			name:     "leading dots",
			input:    "..hidden",
			expected: "hidden",
		},
		{
			name:     "only dots",
			input:    "...",
			expected: "_",
		},
		{
			name:     "control characters",
			input:    "test\x00file",
			expected: "test_file",
		},
		{
			name:     "long name is truncated",
			input:    strings.Repeat("я", 300),
			expected: strings.Repeat("я", maxFilenameRunes),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

// TestIsFileExist tests the IsFileExist function.
func TestIsFileExist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "video.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), constants.DefaultFilePermissions))

	exists, err := IsFileExist(path)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = IsFileExist(dir)
	require.NoError(t, err)
	assert.False(t, exists, "directories are not files")

	exists, err = IsFileExist(filepath.Join(dir, "missing.mp4"))
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestIsTextContentType tests the IsTextContentType function.
func TestIsTextContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		expected    bool
	}{
		{
			name:        "text/plain",
			contentType: "text/plain",
			expected:    true,
		},
		{
			name:        "event stream with charset",
			contentType: "text/event-stream; charset=utf-8",
			expected:    true,
		},
		{
			name:        "application/json",
			contentType: "application/json",
			expected:    true,
		},
		{
			name:        "video/mp4",
			contentType: "video/mp4",
			expected:    false,
		},
		{
			name:        "text with invalid charset",
			contentType: "text/plain; charset=invalid",
			expected:    false,
		},
		{
			name:        "malformed content type",
			contentType: ";;",
			expected:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, IsTextContentType(tt.contentType))
		})
	}
}

// TestMimeTypeByFilename tests the MimeTypeByFilename function.
func TestMimeTypeByFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		expected string
	}{
		{filename: "song.mp3", expected: "audio/mpeg"},
		{filename: "SONG.MP3", expected: "audio/mpeg"},
		{filename: "clip.webm", expected: "video/webm"},
		{filename: "clip.mp4", expected: "video/mp4"},
		{filename: "bundle.zip", expected: "application/zip"},
		{filename: "noextension", expected: constants.DefaultMimeType},
		{filename: "weird.zzzunknown", expected: constants.DefaultMimeType},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, MimeTypeByFilename(tt.filename))
		})
	}
}

// TestHostMatches tests the HostMatches function.
func TestHostMatches(t *testing.T) {
	t.Parallel()

	domains := []string{"open.spotify.com", " Spotify.Link "}

	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{
			name:     "exact host",
			url:      "https://open.spotify.com/track/123",
			expected: true,
		},
		{
			name:     "case and whitespace are ignored",
			url:      "  https://SPOTIFY.link/abc",
			expected: true,
		},
		{
			name:     "subdomain",
			url:      "https://eu.open.spotify.com/album/1",
			expected: true,
		},
		{
			name:     "suffix without dot boundary",
			url:      "https://notopen.spotify.com.evil.io/",
			expected: false,
		},
		{
			name:     "other host",
			url:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			expected: false,
		},
		{
			name:     "not a url",
			url:      "%%%",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, HostMatches(tt.url, domains))
		})
	}
}

// TestShortID tests the ShortID function.
func TestShortID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "4e5f6a7b", ShortID("01928c3a-1b2c-7d3e-8f90-a1b24e5f6a7b"))
	assert.Equal(t, "abc", ShortID("abc"))
}

// TestMap tests the Map function.
func TestMap(t *testing.T) {
	t.Parallel()

	input := []string{"hello", "world"}
	assert.Equal(t, []string{"HELLO", "WORLD"}, Map(input, strings.ToUpper))
	assert.Empty(t, Map([]string{}, strings.ToUpper))
}

// TestFilter tests the Filter function.
func TestFilter(t *testing.T) {
	t.Parallel()

	input := []string{"a.mp3", "b.part", "c.mp4"}
	result := Filter(input, func(name string) bool {
		return !strings.HasSuffix(name, constants.PartFileSuffix)
	})

	assert.Equal(t, []string{"a.mp3", "c.mp4"}, result)
}

// TestIsHTTPURL tests the IsHTTPURL function.
func TestIsHTTPURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"https://www.youtube.com/watch?v=abc", true},
		{" http://example.com ", true},
		{"ftp://example.com/file", false},
		{"https://", false},
		{"not a url", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsHTTPURL(tt.input), tt.input)
	}
}
