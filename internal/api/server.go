package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/metrics"
	"github.com/oshokin/media-grabber/internal/model"
	"github.com/oshokin/media-grabber/internal/registry"
	"github.com/oshokin/media-grabber/internal/service/delivery"
	"github.com/oshokin/media-grabber/internal/service/download"
	"github.com/oshokin/media-grabber/internal/service/extract"
	"github.com/oshokin/media-grabber/internal/service/progress"
	"github.com/oshokin/media-grabber/internal/service/storage"
)

const (
	// maxBodySize bounds JSON request bodies.
	maxBodySize = 1 << 20
	// healthProbeTimeout bounds the yt-dlp version check of the health endpoint.
	healthProbeTimeout = 5 * time.Second
	// webSocketBufferSize is the read and write buffer size of WebSocket connections.
	webSocketBufferSize = 4096
	// deliveryTrackerCapacity is how many partially delivered files are remembered.
	deliveryTrackerCapacity = 1024
	// deliveryTrackerTTL is how long a partial delivery waits for its continuation.
	deliveryTrackerTTL = 24 * time.Hour
)

// Downloads starts background download jobs.
type Downloads interface {
	// StartDownload accepts a job and returns its queued snapshot.
	StartDownload(ctx context.Context, req *download.Request) (*model.Job, error)
}

// Watcher streams job status to one subscriber.
type Watcher interface {
	// Watch emits events for the job until it is terminal or ctx is done.
	Watch(ctx context.Context, id string, emit progress.EmitFunc) error
}

// FileStore is the storage root as seen by the HTTP layer.
type FileStore interface {
	// Root returns the absolute storage directory.
	Root() string
	// Resolve maps an artifact name to its path inside the root.
	Resolve(name string) (string, error)
	// List returns the stored artifacts.
	List(ctx context.Context) ([]*storage.FileInfo, error)
	// Delete removes one artifact and returns the freed bytes.
	Delete(ctx context.Context, name string) (int64, error)
	// DeleteAll removes every artifact.
	DeleteAll(ctx context.Context) (*storage.DeleteReport, error)
	// FreeSpace returns the bytes available on the storage file system.
	FreeSpace() (uint64, error)
}

// Dependencies are the collaborators of a Server.
type Dependencies struct {
	// Formats lists the formats of a URL.
	Formats extract.Service
	// Downloads starts jobs.
	Downloads Downloads
	// Registry answers status queries.
	Registry registry.Registry
	// Notifier streams progress.
	Notifier Watcher
	// Storage owns the artifacts.
	Storage FileStore
	// Extractor is probed by the health endpoint.
	Extractor ytdlp.Client
	// Metrics receives HTTP counters. Nil uses unregistered collectors.
	Metrics *metrics.Metrics
	// Gatherer is exposed on /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server serves the HTTP API.
type Server struct {
	// cfg contains the application configuration.
	cfg *config.Config
	// formats lists the formats of a URL.
	formats extract.Service
	// downloads starts jobs.
	downloads Downloads
	// registry answers status queries.
	registry registry.Registry
	// notifier streams progress.
	notifier Watcher
	// storage owns the artifacts.
	storage FileStore
	// extractor is probed by the health endpoint.
	extractor ytdlp.Client
	// metrics receives HTTP counters.
	metrics *metrics.Metrics
	// gatherer is exposed on /metrics.
	gatherer prometheus.Gatherer
	// limiter throttles job creation per client.
	limiter *clientLimiter
	// upgrader turns requests into WebSocket connections.
	upgrader *websocket.Upgrader
	// delivered tracks how much of each file clients have received.
	delivered *delivery.PrefixTracker
}

// NewServer creates the HTTP API server.
func NewServer(cfg *config.Config, deps *Dependencies) *Server {
	collectors := deps.Metrics
	if collectors == nil {
		collectors = metrics.NewUnregistered()
	}

	return &Server{
		cfg:       cfg,
		formats:   deps.Formats,
		downloads: deps.Downloads,
		registry:  deps.Registry,
		notifier:  deps.Notifier,
		storage:   deps.Storage,
		extractor: deps.Extractor,
		metrics:   collectors,
		gatherer:  deps.Gatherer,
		limiter:   newClientLimiter(cfg.RateLimitPerSecond, int(cfg.RateLimitBurst)),
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  webSocketBufferSize,
			WriteBufferSize: webSocketBufferSize,
		},
		delivered: delivery.NewPrefixTracker(deliveryTrackerCapacity, deliveryTrackerTTL),
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	if s.cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}

	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/formats", s.handleFormats)
		r.Post("/formats", s.handleFormats)

		r.With(s.rateLimit).Post("/download", s.handleDownload)
		r.With(s.rateLimit).Post("/download-audio", s.handleDownloadAudio)

		r.Get("/status/{id}", s.handleStatus)

		if s.sseEnabled() {
			r.Get("/progress/{id}", s.handleProgressStream)
		}

		r.Get("/files", s.handleListFiles)
		r.Delete("/files", s.handleDeleteAllFiles)
		r.Delete("/files/{filename}", s.handleDeleteFile)
	})

	if s.webSocketEnabled() {
		r.Get("/ws/{id}", s.handleWebSocket)
	}

	r.Get(download.DownloadsRoutePrefix+"{filename}", s.handleDelivery)
	r.Head(download.DownloadsRoutePrefix+"{filename}", s.handleDelivery)
	r.Get("/one-time-download/{filename}", s.handleOneTimeDelivery)

	return r
}

func (s *Server) sseEnabled() bool {
	return s.cfg.ProgressTransport != config.TransportWebSocket
}

func (s *Server) webSocketEnabled() bool {
	return s.cfg.ProgressTransport != config.TransportSSE
}

// publicURL prefixes path with the configured public base URL.
func (s *Server) publicURL(path string) string {
	return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + path
}

// webSocketURL returns the WebSocket address of path.
func (s *Server) webSocketURL(path string) string {
	base := strings.TrimSuffix(s.cfg.PublicBaseURL, "/")

	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	return base + path
}
