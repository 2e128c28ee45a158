package download

import (
	"sync"
	"time"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/model"
)

// progressTracker turns progress samples into registry patches.
// The reported percent never decreases, and samples that do not raise it
// are written at most once per progressWriteInterval.
type progressTracker struct {
	// write stores one patch.
	write func(patch *model.JobPatch)
	// now returns the current time.
	now func() time.Time
	// mu serializes samples.
	mu sync.Mutex
	// started is set after the first sample moved the job to downloading.
	started bool
	// percent is the last written percent.
	percent int
	// lastWrite is when the last patch was written.
	lastWrite time.Time
}

func newProgressTracker(write func(patch *model.JobPatch), now func() time.Time) *progressTracker {
	return &progressTracker{
		write: write,
		now:   now,
	}
}

// observe handles one sample; it is the ytdlp.ProgressFunc of the job.
func (t *progressTracker) observe(progress *ytdlp.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	percent := max(progress.Percent(), t.percent)
	now := t.now()

	if t.started && percent == t.percent && now.Sub(t.lastWrite) < progressWriteInterval {
		return
	}

	patch := model.ProgressPatch(percent, progress.Speed, progress.ETA)

	if !t.started {
		status := model.JobStatusDownloading
		patch.Status = &status
		t.started = true
	}

	t.percent = percent
	t.lastWrite = now

	t.write(patch)
}
