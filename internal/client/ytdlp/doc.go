// Package ytdlp drives the yt-dlp executable.
//
// It probes URLs for their metadata and available formats, downloads media
// into a working directory while reporting progress, and classifies failures
// reported by the tool so callers can tell authentication problems apart from
// unsupported URLs and generic errors.
package ytdlp
