package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/media-grabber/internal/config"
)

func newServeConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		ListenAddress:                   "127.0.0.1:0",
		StoragePath:                     filepath.Join(t.TempDir(), "downloads"),
		ProgressTransport:               config.TransportBoth,
		ParsedProgressPollInterval:      10 * time.Millisecond,
		ProgressKeepaliveCount:          1,
		ParsedJobGracePeriod:            time.Minute,
		ParsedJobTTL:                    time.Hour,
		MaxConcurrentDownloads:          1,
		MaxQueuedDownloads:              1,
		ParsedDownloadTimeout:           time.Minute,
		YtDlpPath:                       filepath.Join(t.TempDir(), "missing-yt-dlp"),
		CookiesFile:                     filepath.Join(t.TempDir(), "cookies.txt"),
		ParsedExternalDownloaderTimeout: time.Minute,
		MaxVideoFormats:                 5,
		MaxAudioFormats:                 5,
		RegistryBackend:                 config.RegistryBackendMemory,
	}
}

// TestBuildServer tests wiring with each registry backend.
func TestBuildServer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(t *testing.T, cfg *config.Config)
	}{
		{
			name:   "memory registry",
			modify: func(*testing.T, *config.Config) {},
		},
		{
			name: "redis registry",
			modify: func(t *testing.T, cfg *config.Config) {
				t.Helper()

				cfg.RegistryBackend = config.RegistryBackendRedis
				cfg.RedisAddress = miniredis.RunT(t).Addr()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := newServeConfig(t)
			tt.modify(t, cfg)

			metricsRegistry := prometheus.NewRegistry()

			components, err := buildServer(t.Context(), cfg, metricsRegistry, metricsRegistry)
			require.NoError(t, err)

			t.Cleanup(func() {
				assert.NoError(t, components.orchestrator.Shutdown(context.Background()))
				components.close(context.Background())
			})

			recorder := httptest.NewRecorder()
			components.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, http.StatusOK, recorder.Code)

			var health map[string]any
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&health))
			assert.Equal(t, false, health["ytdlp_available"])
			assert.Equal(t, false, health["cookies_file_present"])

			recorder = httptest.NewRecorder()
			components.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/download",
				strings.NewReader(`{"url":"not a url"}`)))
			assert.Equal(t, http.StatusBadRequest, recorder.Code)

			recorder = httptest.NewRecorder()
			components.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			assert.Equal(t, http.StatusOK, recorder.Code)
			assert.Contains(t, recorder.Body.String(), "media_grabber_http_requests_total")
		})
	}
}

// TestBuildServerRedisUnavailable tests that an unreachable registry fails startup.
func TestBuildServerRedisUnavailable(t *testing.T) {
	t.Parallel()

	server := miniredis.RunT(t)
	address := server.Addr()
	server.Close()

	cfg := newServeConfig(t)
	cfg.RegistryBackend = config.RegistryBackendRedis
	cfg.RedisAddress = address

	_, err := buildServer(t.Context(), cfg, prometheus.NewRegistry(), prometheus.NewRegistry())
	require.Error(t, err)
}
