package download

//go:generate $MOCKGEN -source=runner.go -destination=mocks/runner_mock.go

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/process"
)

// maxDiagnosticLength bounds the process output kept for error messages.
const maxDiagnosticLength = 4096

// ProcessRunner runs an external downloader and reports the files it produced.
type ProcessRunner interface {
	// RunAndCollectOutputs runs command with args in workDir and returns the absolute paths of new files.
	RunAndCollectOutputs(ctx context.Context, command string, args []string, workDir string) ([]string, error)
}

// CommandRunner discovers outputs by comparing the working directory before and after the run.
type CommandRunner struct{}

// NewCommandRunner creates a directory-diffing process runner.
func NewCommandRunner() *CommandRunner {
	return new(CommandRunner)
}

// RunAndCollectOutputs runs command with args in workDir and returns the absolute paths of new files.
// The process and its children are killed when ctx is done.
func (r *CommandRunner) RunAndCollectOutputs(
	ctx context.Context,
	command string,
	args []string,
	workDir string,
) ([]string, error) {
	before, err := snapshotFiles(workDir)
	if err != nil {
		return nil, err
	}

	output := new(tailBuffer)

	cmd := process.Command(ctx, command, args...)
	cmd.Dir = workDir
	cmd.Stdout = output
	cmd.Stderr = output

	logger.Debugf(ctx, "Running %s %s", command, strings.Join(args, " "))

	if err = cmd.Run(); err != nil {
		return nil, processError(ctx, command, err, output.String())
	}

	after, err := snapshotFiles(workDir)
	if err != nil {
		return nil, err
	}

	produced := make([]string, 0, len(after))

	for path := range after {
		if _, existed := before[path]; !existed {
			produced = append(produced, path)
		}
	}

	slices.Sort(produced)

	return produced, nil
}

// processError classifies a failed run.
func processError(ctx context.Context, command string, runErr error, output string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrExternalTimeout, command)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrExternalNotFound, command)
	}

	diagnostic := strings.TrimSpace(output)
	if diagnostic == "" {
		return fmt.Errorf("%w: %w", ErrExternalFailed, runErr)
	}

	return fmt.Errorf("%w: %w: %s", ErrExternalFailed, runErr, diagnostic)
}

// snapshotFiles returns the set of finished regular files below dir.
func snapshotFiles(dir string) (map[string]struct{}, error) {
	files := make(map[string]struct{})

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.Type().IsRegular() && !strings.HasSuffix(entry.Name(), constants.PartFileSuffix) {
			files[path] = struct{}{}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list working directory: %w", err)
	}

	return files, nil
}

// tailBuffer keeps the last maxDiagnosticLength bytes written to it.
type tailBuffer struct {
	mu   sync.Mutex
	data []byte
}

// Write implements io.Writer.
func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, p...)
	if len(b.data) > maxDiagnosticLength {
		b.data = b.data[len(b.data)-maxDiagnosticLength:]
	}

	return len(p), nil
}

// String returns the kept output.
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.data)
}

// ensureDir creates dir with the default permissions.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, constants.DefaultFolderPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return nil
}
