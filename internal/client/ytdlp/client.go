package ytdlp

//go:generate $MOCKGEN -source=client.go -destination=mocks/client_mock.go

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/process"
	"github.com/oshokin/media-grabber/internal/utils"
)

const (
	// defaultAudioFormat is used when audio extraction has no target codec.
	defaultAudioFormat = "mp3"
	// defaultAudioQuality is used when audio extraction has no target bitrate.
	defaultAudioQuality = "192"
	// bestAudioSelector picks the best audio-only stream, falling back to the best combined one.
	bestAudioSelector = "bestaudio/best"
	// bestVideoSelector picks the best video with the best audio, falling back to the best combined one.
	bestVideoSelector = "bestvideo*+bestaudio/best"
	// outputFilenameTemplate names produced files after their title and id.
	outputFilenameTemplate = "%(title).150B [%(id)s].%(ext)s"
	// maxLineLength bounds a single line of tool output.
	maxLineLength = 1024 * 1024
)

// Client is the external media extraction capability.
type Client interface {
	// Probe returns metadata and raw formats of url without downloading anything.
	Probe(ctx context.Context, url string) (*Info, error)
	// Download fetches the media into opts.OutputDir, reporting progress to onProgress.
	Download(ctx context.Context, opts *DownloadOptions, onProgress ProgressFunc) (*DownloadResult, error)
	// Version returns the tool version, failing when the tool is unavailable.
	Version(ctx context.Context) (string, error)
	// HasCookies reports whether a cookies file is available for authenticated sources.
	HasCookies() bool
}

// ClientImpl runs the yt-dlp executable.
type ClientImpl struct {
	// binaryPath is the executable name or path.
	binaryPath string
	// cookiesFile is passed with --cookies when it exists.
	cookiesFile string
}

// NewClient creates a yt-dlp client.
func NewClient(binaryPath, cookiesFile string) *ClientImpl {
	return &ClientImpl{
		binaryPath:  binaryPath,
		cookiesFile: cookiesFile,
	}
}

// Probe returns metadata and raw formats of url without downloading anything.
func (c *ClientImpl) Probe(ctx context.Context, url string) (*Info, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrEmptyURL
	}

	args := []string{"-J", "--no-warnings", "--skip-download", "--flat-playlist"}
	args = append(args, c.cookieArgs(ctx)...)
	args = append(args, "--", url)

	var stdout, stderr bytes.Buffer

	cmd := c.command(ctx, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyFailure(ctx, err, stderr.String())
	}

	var info Info
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, &ProcessError{
			Kind:       ErrExtractionFailed,
			Diagnostic: fmt.Sprintf("failed to decode metadata: %v", err),
		}
	}

	return &info, nil
}

// Download fetches the media into opts.OutputDir, reporting progress to onProgress.
//
//nolint:funlen // Process plumbing reads better in one place.
func (c *ClientImpl) Download(
	ctx context.Context,
	opts *DownloadOptions,
	onProgress ProgressFunc,
) (*DownloadResult, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, ErrEmptyURL
	}

	cmd := c.command(ctx, c.downloadArgs(ctx, opts)...)
	cmd.Dir = opts.OutputDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	var stderr lockedBuffer

	cmd.Stderr = &stderr

	logger.Debugf(ctx, "Running %s %s", c.binaryPath, strings.Join(cmd.Args[1:], " "))

	if err = cmd.Start(); err != nil {
		return nil, classifyFailure(ctx, err, "")
	}

	result := new(DownloadResult)
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineLength)

	for scanner.Scan() {
		kind, payload := parseLine(scanner.Text())

		switch kind {
		case lineKindProgress:
			if progress, ok := parseProgress(payload); ok && onProgress != nil {
				onProgress(progress)
			}
		case lineKindOutput:
			path := strings.TrimSpace(payload)
			if path == "" {
				continue
			}

			if !filepath.IsAbs(path) {
				path = filepath.Join(opts.OutputDir, path)
			}

			if _, dup := seen[path]; !dup {
				seen[path] = struct{}{}
				result.Files = append(result.Files, path)
			}
		case lineKindTitle:
			if result.Title == "" {
				result.Title = cleanField(payload)
			}
		case lineKindOther:
			logger.Debugf(ctx, "yt-dlp: %s", payload)
		}
	}

	// Drain whatever is left so the process never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)

	if err = cmd.Wait(); err != nil {
		return nil, classifyFailure(ctx, err, stderr.String())
	}

	return result, nil
}

// Version returns the tool version, failing when the tool is unavailable.
func (c *ClientImpl) Version(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer

	cmd := c.command(ctx, "--version")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", classifyFailure(ctx, err, stderr.String())
	}

	return strings.TrimSpace(stdout.String()), nil
}

// downloadArgs builds the command line of a download.
func (c *ClientImpl) downloadArgs(ctx context.Context, opts *DownloadOptions) []string {
	args := []string{
		"--newline",
		"--no-warnings",
		"--no-colors",
		"--progress",
		"--yes-playlist",
		"--progress-template", progressTemplate,
		"--print", outputTemplate,
		"--print", titleTemplate,
		"-o", filepath.Join(opts.OutputDir, outputFilenameTemplate),
	}

	if opts.AudioOnly {
		audioFormat := opts.AudioFormat
		if audioFormat == "" {
			audioFormat = defaultAudioFormat
		}

		audioQuality := opts.AudioQuality
		if audioQuality == "" {
			audioQuality = defaultAudioQuality
		}

		selector := opts.FormatSelector
		if selector == "" {
			selector = bestAudioSelector
		}

		args = append(args,
			"-f", selector,
			"--extract-audio",
			"--audio-format", audioFormat,
			"--audio-quality", strings.TrimSuffix(audioQuality, "K")+"K",
		)
	} else {
		args = append(args, "-f", videoSelector(opts.FormatSelector))
	}

	args = append(args, c.cookieArgs(ctx)...)

	return append(args, "--", opts.URL)
}

// videoSelector merges the best audio into a chosen format, which may be video-only.
func videoSelector(formatID string) string {
	formatID = strings.TrimSpace(formatID)
	if formatID == "" {
		return bestVideoSelector
	}

	// Selectors that already use yt-dlp operators are passed through.
	if strings.ContainsAny(formatID, "+/[*") {
		return formatID
	}

	return formatID + "+bestaudio/" + formatID
}

// cookieArgs returns the --cookies option when the cookies file exists.
func (c *ClientImpl) cookieArgs(ctx context.Context) []string {
	if c.cookiesFile == "" {
		return nil
	}

	exists, err := utils.IsFileExist(c.cookiesFile)
	if err != nil {
		logger.Warnf(ctx, "Failed to check cookies file '%s': %v", c.cookiesFile, err)

		return nil
	}

	if !exists {
		return nil
	}

	return []string{"--cookies", c.cookiesFile}
}

// HasCookies reports whether the configured cookies file exists.
func (c *ClientImpl) HasCookies() bool {
	if c.cookiesFile == "" {
		return false
	}

	exists, err := utils.IsFileExist(c.cookiesFile)

	return err == nil && exists
}

// command prepares a yt-dlp process bound to ctx; its children die with it.
func (c *ClientImpl) command(ctx context.Context, args ...string) *exec.Cmd {
	return process.Command(ctx, c.binaryPath, args...)
}

// lockedBuffer is a bytes.Buffer safe for the concurrent writes of exec.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

// String returns the collected text.
func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
