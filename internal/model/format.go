package model

// FormatKind tells whether a format carries video or audio only.
type FormatKind string

// Format kinds.
const (
	FormatKindVideo FormatKind = "video"
	FormatKindAudio FormatKind = "audio"
)

// FormatDescriptor is one downloadable variant of a media URL.
type FormatDescriptor struct {
	// FormatID is the selector passed back when starting a download.
	FormatID string `json:"format_id"`
	// Extension is the container extension without a dot.
	Extension string `json:"ext"`
	// Kind tells whether the format is video or audio only.
	Kind FormatKind `json:"kind"`
	// Resolution is the video resolution label, e.g. "1920x1080" or "1080p".
	Resolution string `json:"resolution,omitempty"`
	// Height is the numeric video height used for sorting.
	Height int `json:"height,omitempty"`
	// FPS is the rounded video frame rate.
	FPS int `json:"fps,omitempty"`
	// Bitrate is the rounded audio bitrate in kbps.
	Bitrate int `json:"bitrate,omitempty"`
	// VideoCodec is the video codec, if any.
	VideoCodec string `json:"vcodec,omitempty"`
	// AudioCodec is the audio codec, if any.
	AudioCodec string `json:"acodec,omitempty"`
	// Size is the exact or approximate size in bytes, nil when unknown.
	Size *int64 `json:"size,omitempty"`
	// Note is the extractor's human-readable remark.
	Note string `json:"note,omitempty"`
}

// FormatListing is the normalized result of a format discovery.
type FormatListing struct {
	// Title is the media title.
	Title string `json:"title"`
	// VideoFormats are deduplicated video formats, best first.
	VideoFormats []*FormatDescriptor `json:"video_formats"`
	// AudioFormats are deduplicated audio formats, best first.
	AudioFormats []*FormatDescriptor `json:"audio_formats"`
}
