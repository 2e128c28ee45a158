package utils

import (
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oshokin/media-grabber/internal/constants"
)

const (
	// maxFilenameRunes limits sanitized filenames so they fit common filesystem limits.
	maxFilenameRunes = 180

	// shortIDLength is the number of characters kept by ShortID.
	shortIDLength = 8
)

var (
	// invalidCharsPattern includes ASCII control characters (0-31) and Windows-restricted characters: < > : " / \ | ? *.
	//nolint:gochecknoglobals // This is immutable, pre-compiled regex pattern and used as a constant.
	invalidCharsPattern = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

	// textContentTypePatterns is a slice of regular expressions that match content types
	// considered to be text-based.
	//nolint:gochecknoglobals // These are immutable, pre-compiled regex patterns and used as constants.
	textContentTypePatterns = []*regexp.Regexp{
		regexp.MustCompile("^text/.+"),
		regexp.MustCompile("^application/json$"),
		regexp.MustCompile(`^application/x-ndjson$`),
	}

	// extraMimeTypes covers media extensions that the system MIME database often lacks.
	//nolint:gochecknoglobals // This is an immutable map used as a constant lookup table.
	extraMimeTypes = map[string]string{
		".mp3":  "audio/mpeg",
		".m4a":  "audio/mp4",
		".opus": "audio/opus",
		".ogg":  "audio/ogg",
		".flac": "audio/flac",
		".wav":  "audio/wav",
		".aac":  "audio/aac",
		".mp4":  "video/mp4",
		".webm": "video/webm",
		".mkv":  "video/x-matroska",
		".mov":  "video/quicktime",
		".zip":  "application/zip",
	}

	// windowsReservedNames is a map of filenames that are reserved on Windows systems.
	//nolint:gochecknoglobals // This is an immutable map used as a constant for validation purposes.
	windowsReservedNames = map[string]struct{}{
		"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
		"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
		"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
		"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
		"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
	}
)

// SafeInt64ToUint64 converts an int64 value to an uint64, clamping negatives to zero.
func SafeInt64ToUint64(val int64) uint64 {
	if val < 0 {
		return 0
	}

	return uint64(val)
}

// SanitizeFilename sanitizes a filename or folder name to be valid on both Windows and Unix-like systems.
// It removes or replaces invalid characters, handles Windows reserved names, limits the length,
// and ensures the filename is not empty.
func SanitizeFilename(name string) string {
	if name == "" {
		return ""
	}

	result := strings.TrimSpace(invalidCharsPattern.ReplaceAllString(name, "_"))

	if runes := []rune(result); len(runes) > maxFilenameRunes {
		result = string(runes[:maxFilenameRunes])
	}

	baseName := result
	if dotIndex := strings.LastIndex(result, "."); dotIndex != -1 {
		baseName = result[:dotIndex]
	}

	if _, ok := windowsReservedNames[strings.ToUpper(baseName)]; ok {
		result = "_" + result
	}

	// Trailing dots are invalid on Windows, leading ones hide files on Unix.
	result = strings.Trim(result, ".")

	if result == "" {
		result = "_"
	}

	return result
}

// IsFileExist checks if a file exists at the specified path.
// It returns true if the file exists and is not a directory, false if the file does not exist,
// and an error if there was an issue accessing the file.
func IsFileExist(path string) (bool, error) {
	stat, err := os.Stat(path)
	if err == nil {
		return !stat.IsDir(), nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// IsTextContentType checks if the given content type represents a text-based format
// with a UTF-8 compatible charset.
func IsTextContentType(contentType string) bool {
	parsedType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	for _, pattern := range textContentTypePatterns {
		if !pattern.MatchString(parsedType) {
			continue
		}

		charset := strings.ToLower(params["charset"])

		return charset == "" || charset == "utf-8" || charset == "us-ascii"
	}

	return false
}

// MimeTypeByFilename guesses the MIME type from the file extension.
// Unknown extensions yield application/octet-stream.
func MimeTypeByFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return constants.DefaultMimeType
	}

	if mimeType, ok := extraMimeTypes[ext]; ok {
		return mimeType
	}

	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}

	return constants.DefaultMimeType
}

// HostMatches reports whether the host of rawURL equals one of the domains
// or is a subdomain of it.
func HostMatches(rawURL string, domains []string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}

	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}

		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}

	return false
}

// ShortID returns the last characters of an identifier without dashes.
// For UUID v7 identifiers these are the random bits.
func ShortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) <= shortIDLength {
		return id
	}

	return id[len(id)-shortIDLength:]
}

// Map applies a transformation function to each element of a slice and returns a new slice with the results.
func Map[E, S any](v []E, transformFunc func(E) S) []S {
	result := make([]S, len(v))
	for i := range v {
		result[i] = transformFunc(v[i])
	}

	return result
}

// Filter returns the elements of v for which keep returns true.
func Filter[E any](v []E, keep func(E) bool) []E {
	result := make([]E, 0, len(v))

	for _, item := range v {
		if keep(item) {
			result = append(result, item)
		}
	}

	return result
}

// IsHTTPURL reports whether rawURL is an absolute http or https URL with a host.
func IsHTTPURL(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}

	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
