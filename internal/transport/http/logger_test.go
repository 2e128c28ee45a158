package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedactHeaders tests that credential headers are blanked in dumps.
func TestRedactHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		dump     string
		expected string
	}{
		{
			name: "request with cookie",
			dump: "GET /downloads/a.mp4 HTTP/1.1\r\nHost: localhost\r\nCookie: SID=secret\r\n\r\n",
			expected: "GET /downloads/a.mp4 HTTP/1.1\r\nHost: localhost\r\nCookie: " + redactedValue +
				"\r\n\r\n",
		},
		{
			name: "response with body mentioning cookie",
			dump: "HTTP/1.1 200 OK\r\nset-cookie: token=1\r\nContent-Type: text/plain\r\n\r\nCookie: not a header",
			expected: "HTTP/1.1 200 OK\r\nset-cookie: " + redactedValue +
				"\r\nContent-Type: text/plain\r\n\r\nCookie: not a header",
		},
		{
			name:     "authorization",
			dump:     "POST /api/download HTTP/1.1\r\nAuthorization: Bearer abc",
			expected: "POST /api/download HTTP/1.1\r\nAuthorization: " + redactedValue,
		},
		{
			name:     "nothing sensitive",
			dump:     "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n",
			expected: "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, string(redactHeaders([]byte(tt.dump))))
		})
	}
}

// TestTruncate tests the dump length limit.
func TestTruncate(t *testing.T) {
	t.Parallel()

	transport, ok := NewLogTransport(http.DefaultTransport, 10).(*LogTransport)
	require.True(t, ok)

	assert.Equal(t, "short", transport.truncate([]byte("short")))
	assert.Equal(t, "0123456789... [truncated]", transport.truncate([]byte("0123456789abcdef")))
}

// TestLogTransportRejectsNilRequest tests the nil request guard.
func TestLogTransportRejectsNilRequest(t *testing.T) {
	t.Parallel()

	resp, err := NewLogTransport(http.DefaultTransport, 0).RoundTrip(nil) //nolint:bodyclose // No response.
	require.ErrorIs(t, err, ErrNilRequest)
	assert.Nil(t, resp)
}

// TestLogTransportPassesThrough tests that responses reach the caller unchanged.
func TestLogTransportPassesThrough(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := NewLogTransport(http.DefaultTransport, 0).RoundTrip(req)
	require.NoError(t, err)

	defer resp.Body.Close() //nolint:errcheck // Test cleanup, error is not critical.

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}
