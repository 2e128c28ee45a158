package download

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/events"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/metrics"
	"github.com/oshokin/media-grabber/internal/model"
	"github.com/oshokin/media-grabber/internal/registry"
	"github.com/oshokin/media-grabber/internal/utils"
)

const (
	// externalFormatID routes a job to the external downloader regardless of its host.
	externalFormatID = "spotdl"
	// defaultArchiveTitle names archives of sources without a title.
	defaultArchiveTitle = "playlist"
	// progressWriteInterval is the minimum delay between registry writes that do not change the percent.
	progressWriteInterval = 250 * time.Millisecond
	// DownloadsRoutePrefix is the path artifacts are served from.
	DownloadsRoutePrefix = "/downloads/"
)

// Execution paths used as metric labels.
const (
	pathExtractor = "extractor"
	pathExternal  = "external"
)

// Request describes a download to start.
type Request struct {
	// URL is the media or playlist URL.
	URL string
	// FormatID is the format selector chosen from a listing. Empty selects the best available.
	FormatID string
	// AudioOnly extracts audio and converts it to the configured audio format.
	AudioOnly bool
}

// Storage is the part of the storage root used by the orchestrator.
type Storage interface {
	// Root returns the absolute storage directory.
	Root() string
	// JobsDir returns the directory holding per-job working directories.
	JobsDir() string
	// Publish moves src into the root as name, or under a suffixed name when name is taken,
	// and returns the name it claimed.
	Publish(ctx context.Context, src, name, suffix string) (string, error)
	// FreeSpace returns the bytes available on the storage file system.
	FreeSpace() (uint64, error)
}

// Dependencies are the collaborators of an Orchestrator.
type Dependencies struct {
	// Registry stores job state.
	Registry registry.Registry
	// Extractor downloads through the extraction tool.
	Extractor ytdlp.Client
	// Runner runs the external downloader.
	Runner ProcessRunner
	// Storage owns the storage root.
	Storage Storage
	// Publisher receives job lifecycle events. Nil disables publishing.
	Publisher events.Publisher
	// Metrics receives job counters. Nil uses unregistered collectors.
	Metrics *metrics.Metrics
}

// task is the handle of one running job.
type task struct {
	// id is the job identifier.
	id string
	// cancel stops the job.
	cancel context.CancelFunc
	// done is closed when the job goroutine exits.
	done chan struct{}
}

// Orchestrator runs download jobs in the background, at most max_concurrent_downloads at a time.
type Orchestrator struct {
	// cfg contains the application configuration.
	cfg *config.Config
	// registry stores job state.
	registry registry.Registry
	// extractor downloads through the extraction tool.
	extractor ytdlp.Client
	// runner runs the external downloader.
	runner ProcessRunner
	// storage owns the storage root.
	storage Storage
	// publisher receives job lifecycle events.
	publisher events.Publisher
	// metrics receives job counters.
	metrics *metrics.Metrics
	// semaphore limits the number of jobs downloading at once.
	semaphore chan struct{}
	// baseCtx is the parent of every job context; it outlives the requests that start jobs.
	baseCtx context.Context
	// tasks holds the handles of unfinished jobs.
	tasks map[string]*task
	// reserved counts queue slots held by jobs still being created in the registry.
	reserved int
	// tasksMutex protects tasks, reserved and closed.
	tasksMutex *sync.Mutex
	// closed is set once Shutdown starts.
	closed bool
	// waitGroup tracks job goroutines.
	waitGroup *sync.WaitGroup
	// now returns the current time.
	now func() time.Time
}

// NewOrchestrator creates an orchestrator. Jobs inherit values, but not cancellation, from ctx.
func NewOrchestrator(ctx context.Context, cfg *config.Config, deps *Dependencies) *Orchestrator {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	collectors := deps.Metrics
	if collectors == nil {
		collectors = metrics.NewUnregistered()
	}

	return &Orchestrator{
		cfg:        cfg,
		registry:   deps.Registry,
		extractor:  deps.Extractor,
		runner:     deps.Runner,
		storage:    deps.Storage,
		publisher:  publisher,
		metrics:    collectors,
		semaphore:  make(chan struct{}, max(cfg.MaxConcurrentDownloads, 1)),
		baseCtx:    context.WithoutCancel(ctx),
		tasks:      make(map[string]*task),
		tasksMutex: new(sync.Mutex),
		waitGroup:  new(sync.WaitGroup),
		now:        time.Now,
	}
}

// StartDownload accepts a job and returns its queued snapshot without waiting for the download.
func (o *Orchestrator) StartDownload(ctx context.Context, req *Request) (*model.Job, error) {
	req.URL = strings.TrimSpace(req.URL)
	if !utils.IsHTTPURL(req.URL) {
		return nil, ErrInvalidURL
	}

	if err := o.checkDiskSpace(ctx); err != nil {
		return nil, err
	}

	if err := o.reserve(); err != nil {
		return nil, err
	}

	job, err := o.registry.Create(ctx, req.URL)

	o.tasksMutex.Lock()
	o.reserved--

	if err != nil {
		o.tasksMutex.Unlock()
		o.waitGroup.Done()

		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	jobCtx, cancel := context.WithCancel(logger.WithKV(o.baseCtx, "job_id", job.ID))
	handle := &task{
		id:     job.ID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	o.tasks[job.ID] = handle

	// Shutdown started while the job was being created: it ends as cancelled.
	if o.closed {
		cancel()
	}

	o.tasksMutex.Unlock()

	path := pathExtractor
	if o.isExternal(req) {
		path = pathExternal
	}

	o.metrics.JobsStarted.WithLabelValues(path).Inc()
	o.metrics.JobsQueued.Inc()
	o.publish(jobCtx, events.TypeJobAccepted, job)

	logger.Infof(jobCtx, "Accepted %s download of %s", path, req.URL)

	jobRequest := *req

	go o.run(jobCtx, handle, &jobRequest)

	return job, nil
}

// reserve takes a queue slot for a job about to be created.
// The slot is counted by the wait group until the job goroutine exits.
func (o *Orchestrator) reserve() error {
	o.tasksMutex.Lock()
	defer o.tasksMutex.Unlock()

	if o.closed {
		return ErrShuttingDown
	}

	inProgress := len(o.tasks) + o.reserved
	if limit := o.cfg.MaxQueuedDownloads; limit > 0 && int64(inProgress) >= limit {
		return fmt.Errorf("%w: %d jobs in progress", ErrQueueFull, inProgress)
	}

	o.reserved++
	o.waitGroup.Add(1)

	return nil
}

// Cancel stops a running job. It reports whether the job was found.
func (o *Orchestrator) Cancel(id string) bool {
	o.tasksMutex.Lock()
	handle, ok := o.tasks[id]
	o.tasksMutex.Unlock()

	if ok {
		handle.cancel()
	}

	return ok
}

// Pending returns the number of accepted jobs that have not finished.
func (o *Orchestrator) Pending() int {
	o.tasksMutex.Lock()
	defer o.tasksMutex.Unlock()

	return len(o.tasks)
}

// Shutdown stops accepting jobs, cancels the running ones and waits for them until ctx is done.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.tasksMutex.Lock()
	o.closed = true

	for _, handle := range o.tasks {
		handle.cancel()
	}

	o.tasksMutex.Unlock()

	finished := make(chan struct{})

	go func() {
		o.waitGroup.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for downloads: %w", ctx.Err())
	}
}

// run executes one job from slot acquisition to its terminal registry write.
func (o *Orchestrator) run(ctx context.Context, handle *task, req *Request) {
	startedAt := o.now()
	queued := true

	defer func() {
		if queued {
			o.metrics.JobsQueued.Dec()
		}

		handle.cancel()

		o.tasksMutex.Lock()
		delete(o.tasks, handle.id)
		o.tasksMutex.Unlock()

		close(handle.done)
		o.waitGroup.Done()
	}()

	// A panic in one job must not take down the server.
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Errorf(ctx, "Download panicked: %v", recovered)
			o.fail(ctx, handle.id, fmt.Errorf("internal error: %v", recovered), 0, startedAt)
		}
	}()

	if err := ctx.Err(); err != nil {
		o.fail(ctx, handle.id, err, 0, startedAt)

		return
	}

	// Wait for a download slot; the job stays queued meanwhile.
	select {
	case o.semaphore <- struct{}{}:
	case <-ctx.Done():
		o.fail(ctx, handle.id, ctx.Err(), 0, startedAt)

		return
	}

	defer func() {
		// Release the slot for the next job.
		<-o.semaphore
	}()

	queued = false

	o.metrics.JobsQueued.Dec()
	o.metrics.JobsActive.Inc()

	defer o.metrics.JobsActive.Dec()

	result, timeout, err := o.execute(ctx, handle.id, req)
	if err != nil {
		o.fail(ctx, handle.id, err, timeout, startedAt)

		return
	}

	o.complete(ctx, handle.id, result, startedAt)
}

// execute downloads into the job working directory and produces the artifact.
func (o *Orchestrator) execute(ctx context.Context, id string, req *Request) (*model.JobResult, time.Duration, error) {
	if err := o.update(ctx, id, model.StatusPatch(model.JobStatusStarting)); err != nil {
		return nil, 0, err
	}

	workDir := filepath.Join(o.storage.JobsDir(), id)
	if err := ensureDir(workDir); err != nil {
		return nil, 0, err
	}

	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warnf(ctx, "Failed to remove working directory '%s': %v", workDir, err)
		}
	}()

	var (
		files   []string
		title   string
		timeout time.Duration
		err     error
	)

	if o.isExternal(req) {
		timeout = o.cfg.ParsedExternalDownloaderTimeout
		files, err = o.runExternal(ctx, id, req, workDir, timeout)
	} else {
		timeout = o.cfg.ParsedDownloadTimeout
		files, title, err = o.runExtractor(ctx, id, req, workDir, timeout)
	}

	if err != nil {
		return nil, timeout, err
	}

	if err = o.update(ctx, id, model.StatusPatch(model.JobStatusProcessing)); err != nil {
		return nil, timeout, err
	}

	result, err := o.finalize(ctx, id, title, files)

	return result, timeout, err
}

// runExtractor downloads through the extraction tool, translating its progress into registry writes.
func (o *Orchestrator) runExtractor(
	ctx context.Context,
	id string,
	req *Request,
	workDir string,
	timeout time.Duration,
) ([]string, string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tracker := newProgressTracker(func(patch *model.JobPatch) {
		if err := o.update(ctx, id, patch); err != nil {
			logger.Warnf(ctx, "Failed to record progress: %v", err)
		}
	}, o.now)

	opts := &ytdlp.DownloadOptions{
		URL:            req.URL,
		FormatSelector: req.FormatID,
		OutputDir:      workDir,
		AudioOnly:      req.AudioOnly,
		AudioFormat:    o.cfg.AudioExtractFormat,
		AudioQuality:   o.cfg.AudioExtractQuality,
	}

	result, err := o.extractor.Download(ctx, opts, tracker.observe)
	if err != nil {
		return nil, "", err
	}

	return result.Files, result.Title, nil
}

// runExternal runs the external downloader and collects the files it produced.
func (o *Orchestrator) runExternal(
	ctx context.Context,
	id string,
	req *Request,
	workDir string,
	timeout time.Duration,
) ([]string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// The external tool reports no byte progress, so the job only moves to downloading.
	if err := o.update(ctx, id, model.StatusPatch(model.JobStatusDownloading)); err != nil {
		return nil, err
	}

	args := utils.Map(o.cfg.ExternalDownloaderArgs, func(arg string) string {
		return strings.NewReplacer("{url}", req.URL, "{dir}", workDir).Replace(arg)
	})

	return o.runner.RunAndCollectOutputs(ctx, o.cfg.ExternalDownloaderCommand, args, workDir)
}

// finalize moves the single output into the storage root, or bundles several outputs into an archive.
func (o *Orchestrator) finalize(ctx context.Context, id, title string, files []string) (*model.JobResult, error) {
	files = utils.Filter(files, func(path string) bool {
		info, err := os.Stat(path)

		return err == nil && info.Mode().IsRegular()
	})

	if len(files) == 0 {
		return nil, ErrNoFilesProduced
	}

	shortID := utils.ShortID(id)

	var (
		source    = files[0]
		name      = utils.SanitizeFilename(filepath.Base(files[0]))
		itemCount int
	)

	if len(files) > 1 {
		if err := o.update(ctx, id, model.StatusPatch(model.JobStatusZipping)); err != nil {
			return nil, err
		}

		archiveTitle := utils.SanitizeFilename(title)
		if archiveTitle == "" {
			archiveTitle = defaultArchiveTitle
		}

		name = archiveTitle + "-" + shortID + constants.ExtensionZIP
		source = filepath.Join(o.storage.JobsDir(), id, "."+shortID+constants.ExtensionZIP)
		itemCount = len(files)

		logger.Infof(ctx, "Bundling %d files into '%s'", itemCount, name)

		if err := writeArchive(ctx, source, files); err != nil {
			return nil, err
		}

		// The archive is complete and closed, so the originals can go.
		for _, file := range files {
			if err := os.Remove(file); err != nil {
				logger.Warnf(ctx, "Failed to remove bundled file '%s': %v", file, err)
			}
		}
	}

	name, err := o.storage.Publish(ctx, source, name, shortID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filepath.Join(o.storage.Root(), name))
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}

	return &model.JobResult{
		Filename:    name,
		Title:       title,
		Size:        info.Size(),
		Kind:        model.ArtifactKindOf(name),
		MimeType:    utils.MimeTypeByFilename(name),
		DownloadURL: o.downloadURL(name),
		ItemCount:   itemCount,
	}, nil
}

// complete records the terminal success of a job.
func (o *Orchestrator) complete(ctx context.Context, id string, result *model.JobResult, startedAt time.Time) {
	if err := o.update(ctx, id, model.CompletedPatch(result)); err != nil {
		logger.Errorf(ctx, "Failed to record completion: %v", err)

		return
	}

	o.metrics.JobsFinished.WithLabelValues(metrics.OutcomeCompleted, "").Inc()
	o.metrics.JobDuration.WithLabelValues(metrics.OutcomeCompleted).Observe(o.now().Sub(startedAt).Seconds())

	logger.Infof(ctx, "Download completed: '%s' (%s)",
		result.Filename, humanize.IBytes(utils.SafeInt64ToUint64(result.Size)))

	o.publishCurrent(ctx, events.TypeJobCompleted, id)
}

// fail records the terminal failure of a job.
func (o *Orchestrator) fail(ctx context.Context, id string, err error, timeout time.Duration, startedAt time.Time) {
	failure := o.classifyFailure(err, timeout)

	logger.Errorf(ctx, "Download failed (%s): %v", failure.code, err)

	if updateErr := o.update(ctx, id, model.FailedPatch(failure.code, failure.message)); updateErr != nil {
		logger.Errorf(ctx, "Failed to record failure: %v", updateErr)

		return
	}

	o.metrics.JobsFinished.WithLabelValues(metrics.OutcomeFailed, failure.code).Inc()
	o.metrics.JobDuration.WithLabelValues(metrics.OutcomeFailed).Observe(o.now().Sub(startedAt).Seconds())

	o.publishCurrent(ctx, events.TypeJobFailed, id)
}

// update writes to the registry even when the job context is already cancelled.
func (o *Orchestrator) update(ctx context.Context, id string, patch *model.JobPatch) error {
	if err := o.registry.Update(context.WithoutCancel(ctx), id, patch); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return nil
}

// publishCurrent publishes an event built from the stored job.
func (o *Orchestrator) publishCurrent(ctx context.Context, eventType events.Type, id string) {
	job, err := o.registry.Get(context.WithoutCancel(ctx), id)
	if err != nil {
		logger.Warnf(ctx, "Failed to read job for the %s event: %v", eventType, err)

		return
	}

	o.publish(ctx, eventType, job)
}

// publish sends an event, logging failures.
func (o *Orchestrator) publish(ctx context.Context, eventType events.Type, job *model.Job) {
	if err := o.publisher.Publish(context.WithoutCancel(ctx), events.NewJobEvent(eventType, job)); err != nil {
		logger.Warnf(ctx, "Failed to publish %s event: %v", eventType, err)
	}
}

// checkDiskSpace rejects new jobs when the storage is almost full.
func (o *Orchestrator) checkDiskSpace(ctx context.Context) error {
	required := o.cfg.ParsedMinFreeDiskSpace
	if required == 0 {
		return nil
	}

	free, err := o.storage.FreeSpace()
	if err != nil {
		logger.Warnf(ctx, "Failed to check free disk space: %v", err)

		return nil
	}

	if free < required {
		return fmt.Errorf("%w: %s free, %s required",
			ErrInsufficientDiskSpace, humanize.IBytes(free), humanize.IBytes(required))
	}

	return nil
}

// isExternal reports whether the request goes to the external downloader.
func (o *Orchestrator) isExternal(req *Request) bool {
	return req.FormatID == externalFormatID || utils.HostMatches(req.URL, o.cfg.ExternalDownloaderDomains)
}

// downloadURL returns where clients fetch the artifact.
func (o *Orchestrator) downloadURL(name string) string {
	return strings.TrimSuffix(o.cfg.PublicBaseURL, "/") + DownloadsRoutePrefix + url.PathEscape(name)
}
