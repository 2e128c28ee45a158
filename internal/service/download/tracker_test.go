package download

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/model"
)

// TestProgressTracker tests that written progress never decreases and repeats are throttled.
func TestProgressTracker(t *testing.T) {
	t.Parallel()

	var (
		patches []*model.JobPatch
		clock   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	)

	tracker := newProgressTracker(
		func(patch *model.JobPatch) { patches = append(patches, patch) },
		func() time.Time { return clock },
	)

	sample := func(downloaded int64, index int) {
		tracker.observe(&ytdlp.Progress{
			DownloadedBytes: downloaded,
			TotalBytes:      100,
			Speed:           "1MiB/s",
			ItemIndex:       index,
			ItemCount:       2,
		})
	}

	sample(20, 1)
	require.Len(t, patches, 1)
	require.NotNil(t, patches[0].Status)
	assert.Equal(t, model.JobStatusDownloading, *patches[0].Status)
	assert.Equal(t, 10, *patches[0].Progress)

	// Same percent within the interval is dropped.
	sample(21, 1)
	assert.Len(t, patches, 1)

	sample(60, 1)
	require.Len(t, patches, 2)
	assert.Nil(t, patches[1].Status)
	assert.Equal(t, 30, *patches[1].Progress)

	// The second item restarts its byte counter but the overall percent keeps growing.
	sample(0, 2)
	require.Len(t, patches, 3)
	assert.Equal(t, 50, *patches[2].Progress)

	// A regressing sample is reported at the previous percent once the interval passed.
	clock = clock.Add(progressWriteInterval)

	sample(0, 1)
	require.Len(t, patches, 4)
	assert.Equal(t, 50, *patches[3].Progress)

	sample(100, 2)
	require.Len(t, patches, 5)
	assert.Equal(t, 100, *patches[4].Progress)
}
