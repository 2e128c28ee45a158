// Package grabber is the HTTP client of a media-grabber server. It starts jobs,
// follows their progress over Server-Sent Events (or by polling the status
// endpoint when the server streams over WebSocket only) and opens artifacts
// for download, resuming from an offset with a Range request.
package grabber
