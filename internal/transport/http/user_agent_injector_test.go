package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_utils "github.com/oshokin/media-grabber/internal/utils/mocks"
)

// TestUserAgentInjector tests User-Agent injection.
func TestUserAgentInjector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		userAgent     string
		providerCalls int
		want          string
	}{
		{name: "missing header", providerCalls: 1, want: "media-grabber/test"},
		{name: "existing header kept", userAgent: "curl/8.0", want: "curl/8.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)

			provider := mock_utils.NewMockUserAgentProvider(ctrl)
			provider.EXPECT().GetUserAgent().Return("media-grabber/test").Times(tt.providerCalls)

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.want, r.Header.Get("User-Agent"))
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, nil)
			require.NoError(t, err)

			if tt.userAgent != "" {
				req.Header.Set("User-Agent", tt.userAgent)
			}

			resp, err := NewUserAgentInjector(http.DefaultTransport, provider).RoundTrip(req)
			require.NoError(t, err)

			defer resp.Body.Close() //nolint:errcheck // Test cleanup, error is not critical.

			assert.Equal(t, http.StatusNoContent, resp.StatusCode)
			assert.Equal(t, tt.userAgent, req.Header.Get("User-Agent"), "original request must stay untouched")
		})
	}
}

// TestUserAgentInjectorNilRequest tests that a nil request is refused.
func TestUserAgentInjectorNilRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)

	resp, err := NewUserAgentInjector(http.DefaultTransport, mock_utils.NewMockUserAgentProvider(ctrl)).
		RoundTrip(nil) //nolint:bodyclose // No response on error.
	require.ErrorIs(t, err, ErrNilRequest)
	assert.Nil(t, resp)
}
