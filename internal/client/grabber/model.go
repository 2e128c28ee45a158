package grabber

import (
	"io"

	"github.com/oshokin/media-grabber/internal/model"
)

// DownloadRequest starts a job.
type DownloadRequest struct {
	// URL is the media page.
	URL string `json:"url"`
	// FormatID selects a format from the listing. Empty means the best available.
	FormatID string `json:"format_id,omitempty"`
	// AudioOnly starts an audio extraction job instead.
	AudioOnly bool `json:"-"`
}

// DownloadResponse is the answer to an accepted job.
type DownloadResponse struct {
	// DownloadID is the job identifier.
	DownloadID string `json:"download_id"`
	// Status is the initial job status.
	Status model.JobStatus `json:"status"`
	// StatusURL answers one-shot status queries.
	StatusURL string `json:"status_url"`
	// ProgressURL is the Server-Sent Events stream, empty when disabled.
	ProgressURL string `json:"progress_url,omitempty"`
	// WebSocketURL is the WebSocket stream, empty when disabled.
	WebSocketURL string `json:"websocket_url,omitempty"`
}

// errorResponse is the body of server error responses.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Artifact is an open artifact download.
type Artifact struct {
	// Body is the response body; the caller closes it.
	Body io.ReadCloser
	// Offset is the position of the first body byte in the file.
	Offset int64
	// Size is the total file size, -1 when unknown.
	Size int64
}
