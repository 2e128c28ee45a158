package http

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/utils"
)

// redactedValue replaces credential header values in dumps.
const redactedValue = "[redacted]"

//nolint:gochecknoglobals // Immutable lookup table.
var sensitiveHeaders = [][]byte{
	[]byte("authorization"),
	[]byte("cookie"),
	[]byte("proxy-authorization"),
	[]byte("set-cookie"),
}

// LogTransport is an http.RoundTripper that logs round trips at debug level.
// Binary and event stream bodies are left out of the dumps, credential headers are redacted.
type LogTransport struct {
	// next is the underlying HTTP round tripper.
	next http.RoundTripper
	// maxLogLength is the maximum length of logged request/response data.
	maxLogLength uint64
}

// Static error definitions for better error handling.
var (
	// ErrNilRequest indicates that the HTTP request is nil.
	ErrNilRequest = errors.New("request is nil")
)

// NewLogTransport wraps next. A zero maxLogLength uses config.DefaultMaxLogLength.
func NewLogTransport(next http.RoundTripper, maxLogLength uint64) http.RoundTripper {
	if maxLogLength <= 0 {
		maxLogLength = config.DefaultMaxLogLength
	}

	return &LogTransport{
		next:         next,
		maxLogLength: maxLogLength,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *LogTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if !logger.IsDebugLevel() {
		return t.next.RoundTrip(req)
	}

	ctx := req.Context()

	requestDump := t.dumpRequest(req)

	startTime := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(startTime)

	if err != nil {
		logger.DebugKV(ctx, "HTTP round trip failed",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"duration", duration,
			"request", requestDump,
			"error", err)

		return nil, err
	}

	responseDump := t.dumpResponse(resp)

	logger.DebugKV(ctx, "HTTP round trip",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
		"duration", duration,
		"request", requestDump,
		"response", responseDump)

	return resp, nil
}

func (t *LogTransport) dumpRequest(req *http.Request) string {
	dump, err := httputil.DumpRequestOut(req, req.Body != nil && req.Body != http.NoBody)
	if err != nil {
		return err.Error()
	}

	return t.truncate(dump)
}

func (t *LogTransport) dumpResponse(resp *http.Response) string {
	contentType := resp.Header.Get("Content-Type")
	withBody := utils.IsTextContentType(contentType) && !strings.HasPrefix(contentType, eventStreamContentType)

	dump, err := httputil.DumpResponse(resp, withBody)
	if err != nil {
		return err.Error()
	}

	return t.truncate(dump)
}

func (t *LogTransport) truncate(data []byte) string {
	data = redactHeaders(data)

	if uint64(len(data)) > t.maxLogLength {
		return string(data[:t.maxLogLength]) + "... [truncated]"
	}

	return string(data)
}

// redactHeaders blanks the values of credential headers in the header block of a dump.
func redactHeaders(dump []byte) []byte {
	head, body, found := bytes.Cut(dump, []byte("\r\n\r\n"))
	lines := bytes.Split(head, []byte("\r\n"))

	for i, line := range lines {
		name, _, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			continue
		}

		for _, sensitive := range sensitiveHeaders {
			if bytes.EqualFold(bytes.TrimSpace(name), sensitive) {
				lines[i] = append(append([]byte{}, name...), ": "+redactedValue...)

				break
			}
		}
	}

	result := bytes.Join(lines, []byte("\r\n"))
	if found {
		result = append(append(result, "\r\n\r\n"...), body...)
	}

	return result
}
