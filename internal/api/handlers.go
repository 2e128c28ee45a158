package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/model"
	"github.com/oshokin/media-grabber/internal/service/download"
	"github.com/oshokin/media-grabber/internal/service/storage"
	"github.com/oshokin/media-grabber/internal/utils"
	"github.com/oshokin/media-grabber/internal/version"
)

// Health statuses.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// Reasons of deleted files used as metric labels.
const (
	deleteReasonManual    = "manual"
	deleteReasonBulk      = "bulk"
	deleteReasonDelivered = "delivered"
)

// urlRequest is the body of format listing and audio download requests.
type urlRequest struct {
	// URL is the media URL.
	URL string `json:"url"`
}

// downloadRequest is the body of download requests.
type downloadRequest struct {
	// URL is the media URL.
	URL string `json:"url"`
	// FormatID is the format chosen from the listing; empty selects the best.
	FormatID string `json:"format_id"`
}

// downloadResponse tells the client where to follow an accepted job.
type downloadResponse struct {
	// DownloadID is the job identifier.
	DownloadID string `json:"download_id"`
	// Status is the initial job status.
	Status model.JobStatus `json:"status"`
	// StatusURL answers one-shot status queries.
	StatusURL string `json:"status_url"`
	// ProgressURL is the Server-Sent Events stream, when enabled.
	ProgressURL string `json:"progress_url,omitempty"`
	// WebSocketURL is the WebSocket stream, when enabled.
	WebSocketURL string `json:"websocket_url,omitempty"`
}

// filesResponse lists the stored artifacts.
type filesResponse struct {
	// Files are the artifacts, newest first.
	Files []*storage.FileInfo `json:"files"`
	// Count is the number of artifacts.
	Count int `json:"count"`
	// TotalSize is the sum of artifact sizes in bytes.
	TotalSize int64 `json:"total_size"`
	// TotalSizeHuman is TotalSize formatted for people.
	TotalSizeHuman string `json:"total_size_human"`
}

// deleteResponse reports a single deletion.
type deleteResponse struct {
	// Deleted is the removed file name.
	Deleted string `json:"deleted"`
	// FreedBytes is the size of the removed file.
	FreedBytes int64 `json:"freed_bytes"`
	// FreedHuman is FreedBytes formatted for people.
	FreedHuman string `json:"freed_human"`
}

// healthResponse reports liveness and environment checks.
type healthResponse struct {
	// Status is ok, or degraded when free space is below the configured minimum.
	Status string `json:"status"`
	// Version is the server version.
	Version string `json:"version"`
	// CookiesFilePresent reports whether authenticated extraction is possible.
	CookiesFilePresent bool `json:"cookies_file_present"`
	// FreeDiskSpace is the free space of the storage file system in bytes.
	FreeDiskSpace uint64 `json:"free_disk_space"`
	// FreeDiskSpaceHuman is FreeDiskSpace formatted for people.
	FreeDiskSpaceHuman string `json:"free_disk_space_human"`
	// StoragePath is the absolute storage root.
	StoragePath string `json:"storage_path"`
	// ActiveJobs is the number of unfinished jobs.
	ActiveJobs int `json:"active_jobs"`
	// YtDlpAvailable reports whether yt-dlp answered the version probe.
	YtDlpAvailable bool `json:"ytdlp_available"`
	// YtDlpVersion is the installed yt-dlp version.
	YtDlpVersion string `json:"ytdlp_version,omitempty"`
	// ProgressTransport is the configured progress transport.
	ProgressTransport string `json:"progress_transport"`
	// DeleteAfterDelivery reports the delivery policy.
	DeleteAfterDelivery bool `json:"delete_after_delivery"`
}

// handleFormats lists the formats of the URL given in the body or the url query parameter.
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	var req urlRequest

	if r.Method == http.MethodGet {
		req.URL = r.URL.Query().Get("url")
	} else if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, ErrMissingURL)

		return
	}

	listing, err := s.formats.ListFormats(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(r, w, http.StatusOK, listing)
}

// handleDownload starts a download with the chosen format.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.startDownload(w, r, &download.Request{URL: req.URL, FormatID: strings.TrimSpace(req.FormatID)})
}

// handleDownloadAudio starts an audio-only download.
func (s *Server) handleDownloadAudio(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.startDownload(w, r, &download.Request{URL: req.URL, AudioOnly: true})
}

func (s *Server) startDownload(w http.ResponseWriter, r *http.Request, req *download.Request) {
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, ErrMissingURL)

		return
	}

	job, err := s.downloads.StartDownload(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	id := url.PathEscape(job.ID)
	response := &downloadResponse{
		DownloadID: job.ID,
		Status:     job.Status,
		StatusURL:  s.publicURL("/api/status/" + id),
	}

	if s.sseEnabled() {
		response.ProgressURL = s.publicURL("/api/progress/" + id)
	}

	if s.webSocketEnabled() {
		response.WebSocketURL = s.webSocketURL("/ws/" + id)
	}

	writeJSON(r, w, http.StatusAccepted, response)
}

// handleStatus returns the current snapshot of a job.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(r, w, http.StatusOK, job)
}

// handleListFiles lists the stored artifacts.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.storage.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	var total int64
	for _, file := range files {
		total += file.Size
	}

	writeJSON(r, w, http.StatusOK, &filesResponse{
		Files:          files,
		Count:          len(files),
		TotalSize:      total,
		TotalSizeHuman: humanize.IBytes(utils.SafeInt64ToUint64(total)),
	})
}

// handleDeleteFile removes one artifact.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "filename")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	freed, err := s.storage.Delete(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.metrics.FilesDeleted.WithLabelValues(deleteReasonManual).Inc()

	writeJSON(r, w, http.StatusOK, &deleteResponse{
		Deleted:    name,
		FreedBytes: freed,
		FreedHuman: humanize.IBytes(utils.SafeInt64ToUint64(freed)),
	})
}

// handleDeleteAllFiles removes every artifact.
func (s *Server) handleDeleteAllFiles(w http.ResponseWriter, r *http.Request) {
	report, err := s.storage.DeleteAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.metrics.FilesDeleted.WithLabelValues(deleteReasonBulk).Add(float64(report.Deleted))

	writeJSON(r, w, http.StatusOK, report)
}

// handleHealth reports liveness and environment checks. It always answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	response := &healthResponse{
		Status:              healthOK,
		Version:             version.Short(),
		CookiesFilePresent:  s.extractor.HasCookies(),
		StoragePath:         s.storage.Root(),
		ProgressTransport:   s.cfg.ProgressTransport,
		DeleteAfterDelivery: s.cfg.DeleteAfterDelivery,
	}

	free, err := s.storage.FreeSpace()
	if err != nil {
		logger.Warnf(ctx, "Failed to check free disk space: %v", err)
	} else {
		response.FreeDiskSpace = free
		response.FreeDiskSpaceHuman = humanize.IBytes(free)

		if free < s.cfg.ParsedMinFreeDiskSpace {
			response.Status = healthDegraded
		}
	}

	if response.ActiveJobs, err = s.registry.CountActive(ctx); err != nil {
		logger.Warnf(ctx, "Failed to count active jobs: %v", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	if response.YtDlpVersion, err = s.extractor.Version(probeCtx); err != nil {
		logger.Warnf(ctx, "yt-dlp is not available: %v", err)
	} else {
		response.YtDlpAvailable = true
	}

	writeJSON(r, w, http.StatusOK, response)
}

// decodeBody parses a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(dst)
	if err == nil {
		return nil
	}

	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty body", ErrInvalidBody)
	}

	return fmt.Errorf("%w: %w", ErrInvalidBody, err)
}

// pathParam returns the decoded value of a route parameter.
func pathParam(r *http.Request, key string) (string, error) {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value, nil
	}

	decoded, err := url.PathUnescape(value)
	if err != nil {
		return "", fmt.Errorf("%w: %w", storage.ErrForbiddenPath, err)
	}

	return decoded, nil
}
