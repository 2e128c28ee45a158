package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oshokin/media-grabber/internal/api"
	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/events"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/metrics"
	"github.com/oshokin/media-grabber/internal/registry"
	"github.com/oshokin/media-grabber/internal/service/download"
	"github.com/oshokin/media-grabber/internal/service/extract"
	"github.com/oshokin/media-grabber/internal/service/progress"
	"github.com/oshokin/media-grabber/internal/service/storage"
	"github.com/oshokin/media-grabber/internal/version"
)

const (
	// readHeaderTimeout bounds the time to read request headers.
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout bounds the graceful shutdown of requests and jobs.
	shutdownTimeout = 30 * time.Second
	// startupProbeTimeout bounds the extraction tool version check.
	startupProbeTimeout = 10 * time.Second
)

// serverComponents are the wired parts of a running server.
type serverComponents struct {
	// handler is the HTTP router.
	handler http.Handler
	// orchestrator runs the jobs.
	orchestrator *download.Orchestrator
	// closers release connections in reverse order of creation.
	closers []func() error
}

// ExecuteServeCommand runs the HTTP server until ctx is cancelled.
func ExecuteServeCommand(ctx context.Context, cfg *config.Config) {
	logger.Infof(ctx, "Starting %s", version.Full())

	components, err := buildServer(ctx, cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize server: %v", err)
	}

	defer components.close(ctx)

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           components.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	serveErrors := make(chan error, 1)

	go func() {
		logger.Infof(ctx, "Listening on %s, storage at %s, progress over %s",
			cfg.ListenAddress, cfg.StoragePath, cfg.ProgressTransport)

		serveErrors <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf(ctx, "Server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Info(ctx, "Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf(ctx, "Failed to stop HTTP server gracefully: %v", err)
	}

	if pending := components.orchestrator.Pending(); pending > 0 {
		logger.Infof(ctx, "Cancelling %d unfinished downloads", pending)
	}

	if err = components.orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Warnf(ctx, "Failed to stop downloads gracefully: %v", err)
	}

	logger.Info(ctx, "Server stopped")
}

// buildServer wires every server component.
func buildServer(
	ctx context.Context,
	cfg *config.Config,
	registerer prometheus.Registerer,
	gatherer prometheus.Gatherer,
) (*serverComponents, error) {
	components := new(serverComponents)

	janitor, err := storage.NewJanitor(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	if _, err = janitor.SweepLeftovers(ctx); err != nil {
		logger.Warnf(ctx, "Failed to clean up storage: %v", err)
	}

	jobs, err := newRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if closer, ok := jobs.(interface{ Close() error }); ok {
		components.closers = append(components.closers, closer.Close)
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		components.close(ctx)

		return nil, err
	}

	components.closers = append(components.closers, publisher.Close)

	collectors := metrics.New(registerer)
	extractor := ytdlp.NewClient(cfg.YtDlpPath, cfg.CookiesFile)

	logExtractorVersion(ctx, extractor)

	components.orchestrator = download.NewOrchestrator(ctx, cfg, &download.Dependencies{
		Registry:  jobs,
		Extractor: extractor,
		Runner:    download.NewCommandRunner(),
		Storage:   janitor,
		Publisher: publisher,
		Metrics:   collectors,
	})

	server := api.NewServer(cfg, &api.Dependencies{
		Formats:   extract.NewService(cfg, extractor),
		Downloads: components.orchestrator,
		Registry:  jobs,
		Notifier:  progress.NewNotifier(jobs, cfg.ParsedProgressPollInterval, cfg.ProgressKeepaliveCount),
		Storage:   janitor,
		Extractor: extractor,
		Metrics:   collectors,
		Gatherer:  gatherer,
	})

	components.handler = server.Router()

	return components, nil
}

// newRegistry creates the configured job registry.
func newRegistry(ctx context.Context, cfg *config.Config) (registry.Registry, error) {
	if cfg.RegistryBackend != config.RegistryBackendRedis {
		logger.Info(ctx, "Storing jobs in memory")

		return registry.NewMemoryRegistry(cfg.ParsedJobGracePeriod), nil
	}

	logger.Infof(ctx, "Storing jobs in Redis at %s", cfg.RedisAddress)

	jobs, err := registry.NewRedisRegistry(ctx, &registry.RedisOptions{
		Address:     cfg.RedisAddress,
		Password:    cfg.RedisPassword,
		DB:          int(cfg.RedisDB),
		JobTTL:      cfg.ParsedJobTTL,
		GracePeriod: cfg.ParsedJobGracePeriod,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return jobs, nil
}

// newPublisher creates the job event publisher, a no-op one without brokers.
func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}, nil
	}

	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, err
	}

	return publisher, nil
}

// logExtractorVersion reports whether the extraction tool can be started.
func logExtractorVersion(ctx context.Context, extractor ytdlp.Client) {
	probeCtx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
	defer cancel()

	toolVersion, err := extractor.Version(probeCtx)
	if err != nil {
		logger.Warnf(ctx, "Extraction tool is not available, downloads will fail: %v", err)

		return
	}

	logger.Infof(ctx, "Using yt-dlp %s", toolVersion)
}

// close releases connections in reverse order of creation.
func (c *serverComponents) close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warnf(ctx, "Failed to release a connection: %v", err)
		}
	}

	c.closers = nil
}
