package grabber

//go:generate $MOCKGEN -source=client.go -destination=mocks/client_mock.go

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oshokin/media-grabber/internal/model"
	"github.com/oshokin/media-grabber/internal/service/progress"
	http_transport "github.com/oshokin/media-grabber/internal/transport/http"
)

// Client talks to a media-grabber server.
type Client interface {
	// StartDownload starts a job.
	StartDownload(ctx context.Context, req *DownloadRequest) (*DownloadResponse, error)
	// GetStatus returns a job snapshot.
	GetStatus(ctx context.Context, statusURL string) (*model.Job, error)
	// WatchProgress follows the job until it completes and returns the final snapshot.
	// Every snapshot is passed to onUpdate.
	WatchProgress(ctx context.Context, accepted *DownloadResponse, onUpdate func(*model.Job)) (*model.Job, error)
	// OpenArtifact opens an artifact, starting at offset when it is positive.
	OpenArtifact(ctx context.Context, downloadURL string, offset int64) (*Artifact, error)
}

const (
	// apiDownloadURI starts a regular job.
	apiDownloadURI = "api/download"
	// apiDownloadAudioURI starts an audio extraction job.
	apiDownloadAudioURI = "api/download-audio"

	// statusPollInterval is used when the server does not stream progress over SSE.
	statusPollInterval = time.Second

	// maxErrorBodySize bounds the error body read from the server.
	maxErrorBodySize = 64 * 1024
)

// ClientImpl implements Client over HTTP.
type ClientImpl struct {
	// baseURL is the server root; relative links are resolved against it.
	baseURL *url.URL
	// httpClient sends bounded API requests.
	httpClient *http.Client
	// streamClient sends unbounded requests: progress streams and artifact downloads.
	streamClient *http.Client
	// pollInterval is the status polling period.
	pollInterval time.Duration
}

// NewClient creates a client of the server at serverURL.
func NewClient(serverURL string) (*ClientImpl, error) {
	baseURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidServerURL, err)
	}

	if (baseURL.Scheme != "http" && baseURL.Scheme != "https") || baseURL.Host == "" {
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidServerURL, serverURL)
	}

	if baseURL.Path == "" {
		baseURL.Path = "/"
	}

	return &ClientImpl{
		baseURL:      baseURL,
		httpClient:   http_transport.NewClient(http_transport.DefaultTimeout),
		streamClient: http_transport.NewClient(0),
		pollInterval: statusPollInterval,
	}, nil
}

// StartDownload starts a job.
func (c *ClientImpl) StartDownload(ctx context.Context, req *DownloadRequest) (*DownloadResponse, error) {
	uri := apiDownloadURI
	if req.AudioOnly {
		uri = apiDownloadAudioURI
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(uri), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	request.Header.Set("Content-Type", "application/json")

	var accepted DownloadResponse
	if err = c.doJSON(c.httpClient, request, http.StatusAccepted, &accepted); err != nil {
		return nil, err
	}

	return &accepted, nil
}

// GetStatus returns a job snapshot.
func (c *ClientImpl) GetStatus(ctx context.Context, statusURL string) (*model.Job, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(statusURL), http.NoBody)
	if err != nil {
		return nil, err
	}

	var job model.Job
	if err = c.doJSON(c.httpClient, request, http.StatusOK, &job); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, apiErr.Message)
		}

		return nil, err
	}

	return &job, nil
}

// WatchProgress follows the job until it completes and returns the final snapshot.
func (c *ClientImpl) WatchProgress(
	ctx context.Context,
	accepted *DownloadResponse,
	onUpdate func(*model.Job),
) (*model.Job, error) {
	if accepted.ProgressURL == "" {
		return c.pollStatus(ctx, accepted.StatusURL, onUpdate)
	}

	return c.streamProgress(ctx, accepted.ProgressURL, onUpdate)
}

// streamProgress reads the Server-Sent Events stream until a terminal event.
func (c *ClientImpl) streamProgress(
	ctx context.Context,
	progressURL string,
	onUpdate func(*model.Job),
) (*model.Job, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(progressURL), http.NoBody)
	if err != nil {
		return nil, err
	}

	request.Header.Set("Accept", "text/event-stream")

	response, err := c.streamClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress stream: %w", err)
	}

	defer response.Body.Close() //nolint:errcheck // Error on close is not critical here.

	if response.StatusCode != http.StatusOK {
		return nil, readAPIError(response)
	}

	var final *model.Job

	err = readEvents(response.Body, func(event *progress.Event) error {
		switch event.Type {
		case progress.EventProgress:
			notify(onUpdate, event.Job)

			return nil
		case progress.EventCompleted, progress.EventError:
			notify(onUpdate, event.Job)
			final = event.Job

			return errStopReading
		case progress.EventNotFound:
			return fmt.Errorf("%w: %s", ErrJobNotFound, event.Message)
		default:
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if final == nil {
		return nil, ErrStreamEnded
	}

	return checkFinal(final)
}

// pollStatus queries the status endpoint until the job is terminal.
func (c *ClientImpl) pollStatus(ctx context.Context, statusURL string, onUpdate func(*model.Job)) (*model.Job, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.GetStatus(ctx, statusURL)
		if err != nil {
			return nil, err
		}

		notify(onUpdate, job)

		if job.Status.IsTerminal() {
			return checkFinal(job)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// OpenArtifact opens an artifact, starting at offset when it is positive.
func (c *ClientImpl) OpenArtifact(ctx context.Context, downloadURL string, offset int64) (*Artifact, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(downloadURL), http.NoBody)
	if err != nil {
		return nil, err
	}

	if offset > 0 {
		request.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	response, err := c.streamClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to request artifact: %w", err)
	}

	switch {
	case response.StatusCode == http.StatusOK && offset > 0:
		response.Body.Close() //nolint:errcheck,gosec // Error on close is not critical here.

		return nil, ErrRangeIgnored
	case response.StatusCode == http.StatusOK:
		return &Artifact{Body: response.Body, Size: response.ContentLength}, nil
	case response.StatusCode == http.StatusPartialContent:
		start, size, parseErr := parseContentRange(response.Header.Get("Content-Range"))
		if parseErr != nil {
			response.Body.Close() //nolint:errcheck,gosec // Error on close is not critical here.

			return nil, parseErr
		}

		return &Artifact{Body: response.Body, Offset: start, Size: size}, nil
	default:
		defer response.Body.Close() //nolint:errcheck // Error on close is not critical here.

		return nil, readAPIError(response)
	}
}

// resolve turns a path or link of the server into an absolute URL.
func (c *ClientImpl) resolve(link string) string {
	ref, err := url.Parse(link)
	if err != nil {
		return c.baseURL.JoinPath(link).String()
	}

	if ref.IsAbs() {
		return ref.String()
	}

	return c.baseURL.ResolveReference(ref).String()
}

// doJSON sends request and decodes a response of the expected status into target.
func (c *ClientImpl) doJSON(client *http.Client, request *http.Request, expected int, target any) error {
	response, err := client.Do(request)
	if err != nil {
		return err
	}

	defer response.Body.Close() //nolint:errcheck // Error on close is not critical here.

	if response.StatusCode != expected {
		return readAPIError(response)
	}

	if err = json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// readAPIError converts an error response into an APIError.
func readAPIError(response *http.Response) error {
	apiErr := &APIError{StatusCode: response.StatusCode}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxErrorBodySize))
	if err != nil {
		apiErr.Message = http.StatusText(response.StatusCode)

		return apiErr
	}

	var decoded errorResponse
	if json.Unmarshal(body, &decoded) == nil && decoded.Error != "" {
		apiErr.Code = decoded.Code
		apiErr.Message = decoded.Error

		return apiErr
	}

	apiErr.Message = http.StatusText(response.StatusCode)

	return apiErr
}

// checkFinal turns a failed job into ErrJobFailed.
func checkFinal(job *model.Job) (*model.Job, error) {
	if job.Status == model.JobStatusError {
		return job, fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
	}

	return job, nil
}

func notify(onUpdate func(*model.Job), job *model.Job) {
	if onUpdate != nil && job != nil {
		onUpdate(job)
	}
}

// parseContentRange parses "bytes start-end/size".
func parseContentRange(header string) (int64, int64, error) {
	var start, end, size int64

	if _, err := fmt.Sscanf(header, "bytes %d-%d/%d", &start, &end, &size); err != nil {
		return 0, 0, fmt.Errorf("invalid Content-Range '%s': %w", header, err)
	}

	return start, size, nil
}
