package ytdlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLine tests stdout line classification.
func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line        string
		wantKind    lineKind
		wantPayload string
	}{
		{"[mg-progress] 1|2|NA|NA|NA|NA|NA\r", lineKindProgress, "1|2|NA|NA|NA|NA|NA"},
		{"[mg-output] /tmp/a.mp4", lineKindOutput, "/tmp/a.mp4"},
		{"[mg-title] Title", lineKindTitle, "Title"},
		{"[youtube] abc: Downloading webpage", lineKindOther, "[youtube] abc: Downloading webpage"},
	}

	for _, tt := range tests {
		kind, payload := parseLine(tt.line)
		assert.Equal(t, tt.wantKind, kind, tt.line)
		assert.Equal(t, tt.wantPayload, payload, tt.line)
	}
}

// TestParseProgress tests progress payload decoding.
func TestParseProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    *Progress
	}{
		{
			name:    "exact total",
			payload: "512|1024|NA|2.00MiB/s|00:03|NA|NA",
			want: &Progress{
				DownloadedBytes: 512, TotalBytes: 1024, Speed: "2.00MiB/s", ETA: "00:03", ItemIndex: 1, ItemCount: 1,
			},
		},
		{
			name:    "estimated total",
			payload: "100|NA|400.5|NA|Unknown|2|3",
			want:    &Progress{DownloadedBytes: 100, TotalBytes: 400, ItemIndex: 2, ItemCount: 3},
		},
		{
			name:    "unknown total",
			payload: "100|NA|NA|NA|NA|NA|NA",
			want:    &Progress{DownloadedBytes: 100, ItemIndex: 1, ItemCount: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := parseProgress(tt.payload)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := parseProgress("NA|1|1|a|b|1|1")
	assert.False(t, ok)

	_, ok = parseProgress("1|2|3")
	assert.False(t, ok)
}

// TestProgressPercent tests overall completion across playlist items.
func TestProgressPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		progress Progress
		want     int
	}{
		{"unknown size", Progress{DownloadedBytes: 10}, 0},
		{"half of single", Progress{DownloadedBytes: 50, TotalBytes: 100}, 50},
		{"overshoot is clamped", Progress{DownloadedBytes: 150, TotalBytes: 100}, 100},
		{"second of four half done", Progress{DownloadedBytes: 1, TotalBytes: 2, ItemIndex: 2, ItemCount: 4}, 37},
		{"index beyond count", Progress{DownloadedBytes: 1, TotalBytes: 1, ItemIndex: 9, ItemCount: 2}, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.progress.Percent(), tt.name)
	}
}

// TestClassifyDiagnostic tests the mapping of tool errors to sentinels.
func TestClassifyDiagnostic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		diagnostic string
		want       error
	}{
		{"[youtube] x: Sign in to confirm your age", ErrAuthenticationRequired},
		{"Private video. Sign in if you've been granted access", ErrAuthenticationRequired},
		{"Use --cookies-from-browser or --cookies for the authentication", ErrAuthenticationRequired},
		{"Unsupported URL: https://example.com", ErrUnsupportedURL},
		{"Requested format is not available", ErrFormatNotAvailable},
		{"unable to open for writing: [Errno 13] Permission denied", ErrPermissionDenied},
		{"HTTP Error 500", ErrExtractionFailed},
	}

	for _, tt := range tests {
		assert.ErrorIs(t, classifyDiagnostic(tt.diagnostic), tt.want, tt.diagnostic)
	}
}

// TestExtractDiagnostic tests picking error lines out of stderr.
func TestExtractDiagnostic(t *testing.T) {
	t.Parallel()

	stderr := "WARNING: noisy\nERROR: first\n[debug] x\nERROR: second\n"
	assert.Equal(t, "first; second", extractDiagnostic(stderr))
	assert.Equal(t, "plain failure", extractDiagnostic("  plain failure \n"))

	long := make([]byte, maxDiagnosticLength+10)
	for i := range long {
		long[i] = 'a'
	}

	assert.Len(t, extractDiagnostic(string(long)), maxDiagnosticLength)
}
