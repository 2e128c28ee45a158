package model

import (
	"path/filepath"
	"strings"
	"time"
)

// JobStatus is a stage of the job lifecycle.
type JobStatus string

// Job statuses in lifecycle order.
const (
	// JobStatusQueued means the job is accepted and waits for a download slot.
	JobStatusQueued JobStatus = "queued"
	// JobStatusStarting means the job owns a slot and prepares the download.
	JobStatusStarting JobStatus = "starting"
	// JobStatusDownloading means bytes are being fetched.
	JobStatusDownloading JobStatus = "downloading"
	// JobStatusProcessing means the download finished and outputs are being finalized.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusZipping means several outputs are being bundled into one archive.
	JobStatusZipping JobStatus = "zipping"
	// JobStatusCompleted is the terminal success status.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusError is the terminal failure status.
	JobStatusError JobStatus = "error"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// IsValid reports whether s is a known status.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusStarting, JobStatusDownloading,
		JobStatusProcessing, JobStatusZipping, JobStatusCompleted, JobStatusError:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a job in status s may move to next.
// Statuses only move forward, terminal statuses are final, and error is reachable from any active status.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}

	if next == s || next == JobStatusError {
		return true
	}

	return next.rank() > s.rank()
}

func (s JobStatus) rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusStarting:
		return 1
	case JobStatusDownloading:
		return 2
	case JobStatusProcessing:
		return 3
	case JobStatusZipping:
		return 4
	case JobStatusCompleted, JobStatusError:
		return 5
	default:
		return -1
	}
}

// ArtifactKind classifies a stored file.
type ArtifactKind string

// Artifact kinds.
const (
	ArtifactKindVideo   ArtifactKind = "video"
	ArtifactKindAudio   ArtifactKind = "audio"
	ArtifactKindArchive ArtifactKind = "archive"
	ArtifactKindOther   ArtifactKind = "other"
)

// artifactKindsByExtension classifies stored files by their extension.
//
//nolint:gochecknoglobals // This is an immutable lookup table.
var artifactKindsByExtension = map[string]ArtifactKind{
	".mp4": ArtifactKindVideo, ".webm": ArtifactKindVideo, ".mkv": ArtifactKindVideo,
	".mov": ArtifactKindVideo, ".avi": ArtifactKindVideo, ".flv": ArtifactKindVideo,
	".mp3": ArtifactKindAudio, ".m4a": ArtifactKindAudio, ".opus": ArtifactKindAudio,
	".ogg": ArtifactKindAudio, ".flac": ArtifactKindAudio, ".wav": ArtifactKindAudio,
	".aac": ArtifactKindAudio,
	".zip": ArtifactKindArchive, ".tar": ArtifactKindArchive, ".gz": ArtifactKindArchive,
	".7z": ArtifactKindArchive, ".rar": ArtifactKindArchive,
}

// ArtifactKindOf classifies a file by the extension of its name.
func ArtifactKindOf(filename string) ArtifactKind {
	if kind, ok := artifactKindsByExtension[strings.ToLower(filepath.Ext(filename))]; ok {
		return kind
	}

	return ArtifactKindOther
}

// JobResult references the artifact produced by a completed job.
type JobResult struct {
	// Filename is the artifact name inside the storage root.
	Filename string `json:"filename"`
	// Title is the media title reported by the extractor, if any.
	Title string `json:"title,omitempty"`
	// Size is the artifact size in bytes.
	Size int64 `json:"size"`
	// Kind classifies the artifact.
	Kind ArtifactKind `json:"kind"`
	// MimeType is the content type served for the artifact.
	MimeType string `json:"mime_type"`
	// DownloadURL is where the client retrieves the artifact.
	DownloadURL string `json:"download_url"`
	// ItemCount is the number of bundled items for multi-item jobs.
	ItemCount int `json:"item_count,omitempty"`
}

// Job is a snapshot of one download request's lifecycle.
type Job struct {
	// ID is the opaque client-visible identifier.
	ID string `json:"id"`
	// URL is the requested media URL.
	URL string `json:"url,omitempty"`
	// Status is the current lifecycle stage.
	Status JobStatus `json:"status"`
	// Progress is the completion percentage, 0 to 100.
	Progress int `json:"progress"`
	// Speed is the instantaneous transfer rate, when known.
	Speed string `json:"speed,omitempty"`
	// ETA is the estimated remaining time, when known.
	ETA string `json:"eta,omitempty"`
	// Result is present only once the job completed.
	Result *JobResult `json:"result,omitempty"`
	// Error is present only once the job failed.
	Error string `json:"error,omitempty"`
	// ErrorCode is the machine-readable failure class.
	ErrorCode string `json:"error_code,omitempty"`
	// CreatedAt is when the job was accepted.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the job last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}

	clone := *j

	if j.Result != nil {
		result := *j.Result
		clone.Result = &result
	}

	return &clone
}

// JobPatch is a partial update of a job. Nil fields are left unchanged.
type JobPatch struct {
	Status    *JobStatus
	Progress  *int
	Speed     *string
	ETA       *string
	Result    *JobResult
	Error     *string
	ErrorCode *string
}

// Apply merges the patch into job and stamps the update time.
// Progress never decreases while the job is downloading.
func (p *JobPatch) Apply(job *Job, now time.Time) {
	if p.Status != nil {
		job.Status = *p.Status
	}

	if p.Progress != nil {
		progress := min(max(*p.Progress, 0), 100)
		if job.Status != JobStatusDownloading || progress >= job.Progress {
			job.Progress = progress
		}
	}

	if p.Speed != nil {
		job.Speed = *p.Speed
	}

	if p.ETA != nil {
		job.ETA = *p.ETA
	}

	if p.Result != nil {
		result := *p.Result
		job.Result = &result
	}

	if p.Error != nil {
		job.Error = *p.Error
	}

	if p.ErrorCode != nil {
		job.ErrorCode = *p.ErrorCode
	}

	job.UpdatedAt = now
}

// StatusPatch returns a patch that only changes the status.
func StatusPatch(status JobStatus) *JobPatch {
	return &JobPatch{Status: &status}
}

// ProgressPatch returns a patch reporting download progress.
func ProgressPatch(progress int, speed, eta string) *JobPatch {
	return &JobPatch{Progress: &progress, Speed: &speed, ETA: &eta}
}

// CompletedPatch returns the terminal success patch.
func CompletedPatch(result *JobResult) *JobPatch {
	status := JobStatusCompleted
	progress := 100
	empty := ""

	return &JobPatch{
		Status:   &status,
		Progress: &progress,
		Result:   result,
		Speed:    &empty,
		ETA:      &empty,
	}
}

// FailedPatch returns the terminal failure patch.
func FailedPatch(code, message string) *JobPatch {
	status := JobStatusError
	empty := ""

	return &JobPatch{
		Status:    &status,
		Error:     &message,
		ErrorCode: &code,
		Speed:     &empty,
		ETA:       &empty,
	}
}
