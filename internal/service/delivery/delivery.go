package delivery

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/utils"
)

// ChunkSize is the size of the blocks streamed to clients.
const ChunkSize = 8 * 1024

// rangeUnitPrefix is the only range unit supported.
const rangeUnitPrefix = "bytes="

// Static error definitions for better error handling.
var (
	// ErrMalformedRange indicates a Range header that cannot be parsed.
	ErrMalformedRange = errors.New("malformed range header")
	// ErrUnsatisfiableRange indicates a range that lies outside the file.
	ErrUnsatisfiableRange = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte interval of a file.
type ByteRange struct {
	// Start is the first byte offset.
	Start int64
	// End is the last byte offset, inclusive.
	End int64
}

// Length returns the number of bytes in the range.
func (r *ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header value for a file of the given size.
func (r *ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange parses a single-range header against a file of the given size.
// An empty header returns nil. An end beyond the file is clamped to its last byte.
func ParseRange(header string, size int64) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil //nolint:nilnil // No range requested.
	}

	ranges, ok := strings.CutPrefix(header, rangeUnitPrefix)
	if !ok || strings.Contains(ranges, ",") {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}

	startText, endText, ok := strings.Cut(strings.TrimSpace(ranges), "-")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}

	startText = strings.TrimSpace(startText)
	endText = strings.TrimSpace(endText)

	if startText == "" {
		return parseSuffixRange(header, endText, size)
	}

	start, err := parseOffset(startText)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}

	end := size - 1

	if endText != "" {
		if end, err = parseOffset(endText); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedRange, header)
		}

		if end < start {
			return nil, fmt.Errorf("%w: %q", ErrUnsatisfiableRange, header)
		}
	}

	if start >= size {
		return nil, fmt.Errorf("%w: %q", ErrUnsatisfiableRange, header)
	}

	return &ByteRange{Start: start, End: min(end, size-1)}, nil
}

// parseSuffixRange handles "bytes=-N", the last N bytes of the file.
func parseSuffixRange(header, suffixText string, size int64) (*ByteRange, error) {
	suffix, err := parseOffset(suffixText)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}

	if suffix == 0 || size == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnsatisfiableRange, header)
	}

	return &ByteRange{Start: max(size-suffix, 0), End: size - 1}, nil
}

func parseOffset(text string) (int64, error) {
	if text == "" || strings.ContainsAny(text, "+-") {
		return 0, ErrMalformedRange
	}

	return strconv.ParseInt(text, 10, 64)
}

// Result describes a finished delivery.
type Result struct {
	// Start is the offset of the first byte sent.
	Start int64
	// Size is the size of the file.
	Size int64
	// ModifiedAt is the modification time of the file.
	ModifiedAt time.Time
	// Written is the number of body bytes sent.
	Written int64
	// Partial reports whether a 206 response was sent.
	Partial bool
	// ReachedEnd reports whether the last byte of the file was sent.
	ReachedEnd bool
}

// Serve streams the file at path to w, honoring the Range header of r.
// Errors returned before anything is written leave the response untouched,
// except for unsatisfiable ranges, which set Content-Range: bytes */size.
func Serve(w http.ResponseWriter, r *http.Request, path, name string) (*Result, error) {
	file, err := os.Open(path) //nolint:gosec // Path is resolved inside the storage root by the caller.
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warnf(r.Context(), "Failed to close '%s': %v", path, closeErr)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	size := info.Size()

	byteRange, err := ParseRange(r.Header.Get("Range"), size)
	if err != nil {
		if errors.Is(err, ErrUnsatisfiableRange) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		}

		return nil, err
	}

	result := &Result{Partial: byteRange != nil, Size: size, ModifiedAt: info.ModTime()}
	if byteRange == nil {
		byteRange = &ByteRange{Start: 0, End: size - 1}
	}

	result.Start = byteRange.Start

	header := w.Header()
	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Type", utils.MimeTypeByFilename(name))
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	header.Set("Content-Length", strconv.FormatInt(max(byteRange.Length(), 0), 10))
	header.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	status := http.StatusOK
	if result.Partial {
		status = http.StatusPartialContent

		header.Set("Content-Range", byteRange.ContentRange(size))
	}

	w.WriteHeader(status)

	if r.Method == http.MethodHead || size == 0 {
		result.ReachedEnd = size == 0 && r.Method != http.MethodHead

		return result, nil
	}

	if _, err = file.Seek(byteRange.Start, io.SeekStart); err != nil {
		return result, fmt.Errorf("failed to seek: %w", err)
	}

	result.Written, err = copyChunks(r, w, file, byteRange.Length())
	result.ReachedEnd = err == nil && byteRange.End == size-1 && result.Written == byteRange.Length()

	return result, err
}

// copyChunks writes up to remaining bytes in ChunkSize blocks, stopping when the request is cancelled.
func copyChunks(r *http.Request, w http.ResponseWriter, src io.Reader, remaining int64) (int64, error) {
	ctx := r.Context()
	buffer := make([]byte, ChunkSize)

	var written int64

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buffer[:min(int64(len(buffer)), remaining)])
		if n > 0 {
			wn, writeErr := w.Write(buffer[:n])
			written += int64(wn)
			remaining -= int64(wn)

			if writeErr != nil {
				return written, fmt.Errorf("failed to write chunk: %w", writeErr)
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return written, fmt.Errorf("failed to read chunk: %w", readErr)
		}
	}

	return written, nil
}
