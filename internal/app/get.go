package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/oshokin/media-grabber/internal/client/grabber"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/model"
	"github.com/oshokin/media-grabber/internal/utils"
)

const (
	// appendFileOptions resumes a partial file.
	appendFileOptions = os.O_CREATE | os.O_APPEND | os.O_WRONLY
	// overwriteFileOptions restarts a partial file.
	overwriteFileOptions = os.O_CREATE | os.O_TRUNC | os.O_WRONLY
)

// ErrIncompleteDownload indicates that the artifact stream ended early; the partial file is kept for resuming.
var ErrIncompleteDownload = errors.New("incomplete download")

// GetOptions are the arguments of the get command.
type GetOptions struct {
	// URL is the media page.
	URL string
	// FormatID selects a format. Empty means the best available.
	FormatID string
	// AudioOnly requests an audio extraction job.
	AudioOnly bool
	// OutputPath is the directory the artifact is saved to.
	OutputPath string
	// ProgressOutput receives the progress bars. Nil disables them.
	ProgressOutput io.Writer
}

// ExecuteGetCommand downloads one URL through a running server and saves the artifact locally.
func ExecuteGetCommand(ctx context.Context, cfg *config.Config, opts *GetOptions) {
	client, err := grabber.NewClient(cfg.ServerURL)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize client: %v", err)
	}

	path, err := runGet(ctx, client, opts)
	if err != nil {
		logger.Fatalf(ctx, "Download failed: %v", err)
	}

	logger.Infof(ctx, "Saved %s", path)
}

// runGet starts a job, follows it to the end and saves its artifact. It returns the saved path.
func runGet(ctx context.Context, client grabber.Client, opts *GetOptions) (string, error) {
	accepted, err := client.StartDownload(ctx, &grabber.DownloadRequest{
		URL:       opts.URL,
		FormatID:  opts.FormatID,
		AudioOnly: opts.AudioOnly,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start download: %w", err)
	}

	ctx = logger.WithKV(ctx, "download_id", accepted.DownloadID)
	logger.Infof(ctx, "Download accepted: %s", opts.URL)

	bar := newPercentBar(opts.ProgressOutput)

	job, err := client.WatchProgress(ctx, accepted, func(job *model.Job) {
		if bar == nil {
			logger.Debugf(ctx, "Status %s, %d%%", job.Status, job.Progress)

			return
		}

		bar.Describe(string(job.Status))
		_ = bar.Set(job.Progress)
	})

	if bar != nil {
		_ = bar.Finish()
	}

	if err != nil {
		return "", err
	}

	if job.Result == nil || job.Result.DownloadURL == "" {
		return "", fmt.Errorf("%w: job has no artifact", grabber.ErrJobFailed)
	}

	logger.Infof(ctx, "Server finished '%s' (%s)",
		job.Result.Filename, humanize.IBytes(utils.SafeInt64ToUint64(job.Result.Size)))

	return saveArtifact(ctx, client, job.Result, opts)
}

// saveArtifact downloads the artifact next to a .part file, resuming a previous attempt.
func saveArtifact(
	ctx context.Context,
	client grabber.Client,
	result *model.JobResult,
	opts *GetOptions,
) (string, error) {
	if err := os.MkdirAll(opts.OutputPath, constants.DefaultFolderPermissions); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	targetPath := filepath.Join(opts.OutputPath, utils.SanitizeFilename(result.Filename))

	exists, err := utils.IsFileExist(targetPath)
	if err != nil {
		return "", err
	}

	if exists {
		logger.Infof(ctx, "File '%s' already exists, skipping download", targetPath)

		return targetPath, nil
	}

	partPath := targetPath + constants.PartFileSuffix

	var offset int64
	if info, statErr := os.Stat(partPath); statErr == nil {
		offset = info.Size()
	}

	artifact, err := client.OpenArtifact(ctx, result.DownloadURL, offset)
	if offset > 0 && isUnresumable(err) {
		logger.Info(ctx, "Server cannot resume, restarting download")

		offset = 0
		artifact, err = client.OpenArtifact(ctx, result.DownloadURL, 0)
	}

	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}

	defer artifact.Body.Close() //nolint:errcheck // Error on close is not critical here.

	if offset > 0 {
		logger.Infof(ctx, "Resuming at %s", humanize.IBytes(utils.SafeInt64ToUint64(offset)))
	}

	fileOptions := overwriteFileOptions
	if artifact.Offset > 0 {
		fileOptions = appendFileOptions
	}

	file, err := os.OpenFile(filepath.Clean(partPath), fileOptions, constants.DefaultFilePermissions)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	written, copyErr := io.Copy(byteProgressWriter(file, opts.ProgressOutput, artifact), artifact.Body)
	closeErr := file.Close()

	if copyErr != nil {
		return "", fmt.Errorf("failed to write file: %w", copyErr)
	}

	if closeErr != nil {
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if artifact.Size >= 0 && artifact.Offset+written != artifact.Size {
		return "", fmt.Errorf("%w: have %d of %d bytes", ErrIncompleteDownload, artifact.Offset+written, artifact.Size)
	}

	if err = os.Rename(partPath, targetPath); err != nil {
		return "", fmt.Errorf("failed to finalize file: %w", err)
	}

	return targetPath, nil
}

// isUnresumable reports whether a resume attempt must restart from the first byte.
func isUnresumable(err error) bool {
	var apiErr *grabber.APIError

	return errors.Is(err, grabber.ErrRangeIgnored) ||
		(errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusRequestedRangeNotSatisfiable)
}

// newPercentBar renders job progress, or returns nil when output is disabled.
func newPercentBar(output io.Writer) *progressbar.ProgressBar {
	if output == nil {
		return nil
	}

	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(output),
		progressbar.OptionSetDescription(string(model.JobStatusQueued)),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
}

// byteProgressWriter mirrors writes into a byte progress bar when output is enabled.
func byteProgressWriter(file, output io.Writer, artifact *grabber.Artifact) io.Writer {
	if output == nil {
		return file
	}

	bar := progressbar.NewOptions64(artifact.Size,
		progressbar.OptionSetWriter(output),
		progressbar.OptionSetDescription("saving"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(output)
		}),
	)

	if artifact.Offset > 0 {
		_ = bar.Set64(artifact.Offset)
	}

	return io.MultiWriter(file, bar)
}
