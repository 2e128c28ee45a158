package ytdlp

// RawFormat is one entry of the "formats" array printed by yt-dlp -J.
type RawFormat struct {
	FormatID       string   `json:"format_id"`
	FormatNote     string   `json:"format_note"`
	Ext            string   `json:"ext"`
	Protocol       string   `json:"protocol"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Width          *int     `json:"width"`
	Height         *int     `json:"height"`
	FPS            *float64 `json:"fps"`
	ABR            *float64 `json:"abr"`
	TBR            *float64 `json:"tbr"`
	Resolution     string   `json:"resolution"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
}

// HasVideo reports whether the format carries a video stream.
func (f *RawFormat) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio reports whether the format carries an audio stream.
func (f *RawFormat) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// Info is the subset of yt-dlp metadata used by the application.
type Info struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Type       string       `json:"_type"`
	WebpageURL string       `json:"webpage_url"`
	Extractor  string       `json:"extractor"`
	Formats    []*RawFormat `json:"formats"`
	// PlaylistCount is the number of entries when the URL is a playlist.
	PlaylistCount int `json:"playlist_count"`
}

// DownloadOptions describes one download.
type DownloadOptions struct {
	// URL is the media or playlist URL.
	URL string
	// FormatSelector is a yt-dlp format selector. Empty selects the best available.
	FormatSelector string
	// OutputDir receives the downloaded files.
	OutputDir string
	// AudioOnly extracts audio and converts it to AudioFormat.
	AudioOnly bool
	// AudioFormat is the target codec for audio extraction (e.g., "mp3").
	AudioFormat string
	// AudioQuality is the target bitrate in kbps for audio extraction (e.g., "192").
	AudioQuality string
}

// Progress is one sample of a running download.
type Progress struct {
	// DownloadedBytes is the number of bytes fetched for the current item.
	DownloadedBytes int64
	// TotalBytes is the exact or estimated size of the current item, 0 when unknown.
	TotalBytes int64
	// Speed is the human-readable transfer rate.
	Speed string
	// ETA is the human-readable remaining time.
	ETA string
	// ItemIndex is the 1-based index of the current playlist item, 1 for single media.
	ItemIndex int
	// ItemCount is the number of playlist items, 1 for single media.
	ItemCount int
}

// Percent returns the overall completion across all items, clamped to [0, 100].
func (p *Progress) Percent() int {
	count := max(p.ItemCount, 1)
	index := min(max(p.ItemIndex, 1), count)

	var fraction float64
	if p.TotalBytes > 0 {
		fraction = min(float64(p.DownloadedBytes)/float64(p.TotalBytes), 1)
	}

	percent := (float64(index-1) + fraction) / float64(count) * 100 //nolint:mnd // Percent scale.

	return min(max(int(percent), 0), 100) //nolint:mnd // Percent scale.
}

// ProgressFunc receives download progress samples. It must not block.
type ProgressFunc func(progress *Progress)

// DownloadResult lists the files produced by a download.
type DownloadResult struct {
	// Title is the media or playlist title when reported.
	Title string
	// Files are absolute paths of the produced files in production order.
	Files []string
}
