package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDelivery tests artifact delivery with and without ranges.
func TestDelivery(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, newTestConfig())
	ts.writeArtifact(t, "Clip [abc].mp4", "0123456789")

	tests := []struct {
		name         string
		path         string
		method       string
		rangeHeader  string
		wantStatus   int
		wantBody     string
		wantRange    string
		wantCode     string
		wantNoLength bool
	}{
		{name: "full", path: "/downloads/Clip%20%5Babc%5D.mp4", wantStatus: http.StatusOK, wantBody: "0123456789"},
		{
			name:        "closed range",
			path:        "/downloads/Clip%20%5Babc%5D.mp4",
			rangeHeader: "bytes=2-5",
			wantStatus:  http.StatusPartialContent,
			wantBody:    "2345",
			wantRange:   "bytes 2-5/10",
		},
		{
			name:        "open range",
			path:        "/downloads/Clip%20%5Babc%5D.mp4",
			rangeHeader: "bytes=7-",
			wantStatus:  http.StatusPartialContent,
			wantBody:    "789",
			wantRange:   "bytes 7-9/10",
		},
		{
			name:        "malformed range",
			path:        "/downloads/Clip%20%5Babc%5D.mp4",
			rangeHeader: "bytes=x-y",
			wantStatus:  http.StatusBadRequest,
			wantCode:    codeInvalidRequest,
		},
		{
			name:        "unsatisfiable range",
			path:        "/downloads/Clip%20%5Babc%5D.mp4",
			rangeHeader: "bytes=10-",
			wantStatus:  http.StatusRequestedRangeNotSatisfiable,
			wantCode:    codeRangeNotSatisfiable,
			wantRange:   "bytes */10",
		},
		{name: "missing", path: "/downloads/none.mp4", wantStatus: http.StatusNotFound, wantCode: codeNotFound},
		{name: "traversal", path: "/downloads/..%2F..%2Fetc%2Fpasswd", wantStatus: http.StatusForbidden, wantCode: codeForbidden},
		{name: "jobs folder", path: "/downloads/.jobs", wantStatus: http.StatusNotFound, wantCode: codeNotFound},
		{
			name:         "head",
			path:         "/downloads/Clip%20%5Babc%5D.mp4",
			method:       http.MethodHead,
			wantStatus:   http.StatusOK,
			wantNoLength: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			method := tt.method
			if method == "" {
				method = http.MethodGet
			}

			headers := map[string]string{}
			if tt.rangeHeader != "" {
				headers["Range"] = tt.rangeHeader
			}

			resp := ts.do(t, method, tt.path, "", headers)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantRange, resp.Header.Get("Content-Range"))

			switch {
			case tt.wantCode != "":
				assert.Equal(t, tt.wantCode, decodeResponse[errorResponse](t, resp).Code)
			case tt.wantNoLength:
				assert.Equal(t, "10", resp.Header.Get("Content-Length"))
				assert.Empty(t, readBody(t, resp))
			default:
				assert.Equal(t, tt.wantBody, readBody(t, resp))
				assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
				assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
			}
		})
	}

	assert.FileExists(t, filepath.Join(ts.storage.Root(), "Clip [abc].mp4"))
}

// TestDeleteAfterDelivery tests the delete-after-delivery policy.
func TestDeleteAfterDelivery(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig()
	cfg.DeleteAfterDelivery = true

	ts := newTestServer(t, cfg)
	ts.writeArtifact(t, "song.mp3", "0123456789")

	path := filepath.Join(ts.storage.Root(), "song.mp3")

	resp := ts.do(t, http.MethodGet, "/downloads/song.mp3", "", map[string]string{"Range": "bytes=0-4"})
	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "01234", readBody(t, resp))
	assert.FileExists(t, path)

	// Resuming to the end completes the delivery.
	resp = ts.do(t, http.MethodGet, "/downloads/song.mp3", "", map[string]string{"Range": "bytes=5-"})
	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "56789", readBody(t, resp))

	require.Eventually(t, func() bool {
		_, err := ts.storage.Resolve("song.mp3")

		return err != nil
	}, 5*time.Second, 10*time.Millisecond)

	resp = ts.do(t, http.MethodGet, "/downloads/song.mp3", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestTailReadKeepsFile tests that reading only the end of a file does not count as delivering it.
func TestTailReadKeepsFile(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig()
	cfg.DeleteAfterDelivery = true

	tests := []struct {
		name  string
		route string
	}{
		{name: "delivery route", route: "/downloads/"},
		{name: "one-time route", route: "/one-time-download/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t, cfg)
			ts.writeArtifact(t, "clip.mp4", "0123456789")

			path := filepath.Join(ts.storage.Root(), "clip.mp4")

			for _, rangeHeader := range []string{"bytes=-1", "bytes=7-", "bytes=3-"} {
				resp := ts.do(t, http.MethodGet, tt.route+"clip.mp4", "", map[string]string{"Range": rangeHeader})
				require.Equal(t, http.StatusPartialContent, resp.StatusCode, rangeHeader)
				readBody(t, resp)
			}

			assert.Never(t, func() bool {
				_, err := os.Stat(path)

				return err != nil
			}, 200*time.Millisecond, 10*time.Millisecond)

			resp := ts.do(t, http.MethodHead, "/downloads/clip.mp4", "", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.FileExists(t, path)

			// The whole file still completes the delivery.
			resp = ts.do(t, http.MethodGet, tt.route+"clip.mp4", "", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "0123456789", readBody(t, resp))

			require.Eventually(t, func() bool {
				_, err := ts.storage.Resolve("clip.mp4")

				return err != nil
			}, 5*time.Second, 10*time.Millisecond)
		})
	}
}

// TestOneTimeDelivery tests that the one-time route deletes regardless of the policy.
func TestOneTimeDelivery(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, newTestConfig())
	ts.writeArtifact(t, "bundle.zip", "zip-bytes")
	ts.writeArtifact(t, "keep.zip", "zip-bytes")

	resp := ts.do(t, http.MethodGet, "/downloads/keep.zip", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "zip-bytes", readBody(t, resp))

	resp = ts.do(t, http.MethodGet, "/one-time-download/bundle.zip", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "zip-bytes", readBody(t, resp))
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		_, err := ts.storage.Resolve("bundle.zip")

		return err != nil
	}, 5*time.Second, 10*time.Millisecond)

	assert.FileExists(t, filepath.Join(ts.storage.Root(), "keep.zip"))
}
