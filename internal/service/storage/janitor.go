package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/model"
	"github.com/oshokin/media-grabber/internal/utils"
)

// Static error definitions for better error handling.
var (
	// ErrForbiddenPath indicates that a name would resolve outside the storage root.
	ErrForbiddenPath = errors.New("path is outside the storage root")
	// ErrFileNotFound indicates that the named artifact does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrPermissionDenied indicates that the file system refused the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotRegularFile indicates that the name refers to a directory or a special file.
	ErrNotRegularFile = errors.New("not a regular file")
	// ErrNameTaken indicates that every candidate name for a new artifact is already used.
	ErrNameTaken = errors.New("no free artifact name")
)

// maxPublishAttempts bounds the candidate names tried when publishing an artifact.
const maxPublishAttempts = 100

// FileInfo describes a stored artifact.
type FileInfo struct {
	// Name is the file name inside the storage root.
	Name string `json:"name"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// SizeHuman is the size formatted for people.
	SizeHuman string `json:"size_human"`
	// Kind classifies the file.
	Kind model.ArtifactKind `json:"kind"`
	// MimeType is the content type guessed from the extension.
	MimeType string `json:"mime_type"`
	// ModifiedAt is the last modification time.
	ModifiedAt time.Time `json:"modified_at"`
}

// DeleteFailure is one file that bulk deletion could not remove.
type DeleteFailure struct {
	// Name is the file name inside the storage root.
	Name string `json:"name"`
	// Error is the reason of the failure.
	Error string `json:"error"`
}

// DeleteReport summarizes a bulk deletion.
type DeleteReport struct {
	// Deleted is the number of removed files.
	Deleted int `json:"deleted"`
	// FreedBytes is the total size of removed files.
	FreedBytes int64 `json:"freed_bytes"`
	// FreedHuman is FreedBytes formatted for people.
	FreedHuman string `json:"freed_human"`
	// Failures lists files that could not be removed.
	Failures []*DeleteFailure `json:"failures"`
}

// Janitor owns the storage root: it resolves, lists and deletes artifacts.
type Janitor struct {
	// root is the absolute, symlink-free storage directory.
	root string
}

// NewJanitor creates the storage root if needed and returns its janitor.
func NewJanitor(root string) (*Janitor, error) {
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path: %w", err)
	}

	if err = os.MkdirAll(absolute, constants.DefaultFolderPermissions); err != nil {
		return nil, fmt.Errorf("failed to create storage path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path: %w", err)
	}

	return &Janitor{root: resolved}, nil
}

// Root returns the absolute storage directory.
func (j *Janitor) Root() string {
	return j.root
}

// JobsDir returns the directory holding per-job working directories.
func (j *Janitor) JobsDir() string {
	return filepath.Join(j.root, constants.JobsFolderName)
}

// Resolve maps an artifact name to its path, refusing names that escape the root.
func (j *Janitor) Resolve(name string) (string, error) {
	if name == "" ||
		name == "." ||
		name == ".." ||
		strings.ContainsAny(name, `/\`) ||
		strings.ContainsRune(name, 0) ||
		filepath.IsAbs(name) ||
		filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %q", ErrForbiddenPath, name)
	}

	if name == constants.JobsFolderName || strings.HasSuffix(name, constants.PartFileSuffix) {
		return "", fmt.Errorf("%w: %q", ErrFileNotFound, name)
	}

	path := filepath.Join(j.root, name)

	info, err := os.Lstat(path)
	if err != nil {
		return "", wrapFSError(err, name)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, evalErr := filepath.EvalSymlinks(path)
		if evalErr != nil {
			return "", wrapFSError(evalErr, name)
		}

		if !j.contains(target) {
			return "", fmt.Errorf("%w: %q", ErrForbiddenPath, name)
		}

		if info, err = os.Stat(target); err != nil {
			return "", wrapFSError(err, name)
		}
	}

	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q", ErrNotRegularFile, name)
	}

	return path, nil
}

// List returns the stored artifacts sorted by modification time, newest first.
func (j *Janitor) List(ctx context.Context) ([]*FileInfo, error) {
	entries, err := os.ReadDir(j.root)
	if err != nil {
		return nil, wrapFSError(err, j.root)
	}

	result := make([]*FileInfo, 0, len(entries))

	for _, entry := range entries {
		if !isArtifactEntry(entry) {
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			logger.Warnf(ctx, "Failed to stat '%s': %v", entry.Name(), infoErr)

			continue
		}

		result = append(result, newFileInfo(entry.Name(), info))
	}

	slices.SortFunc(result, func(a, b *FileInfo) int {
		return cmp.Or(b.ModifiedAt.Compare(a.ModifiedAt), strings.Compare(a.Name, b.Name))
	})

	return result, nil
}

// Delete removes one artifact and returns the number of bytes freed.
func (j *Janitor) Delete(ctx context.Context, name string) (int64, error) {
	path, err := j.Resolve(name)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, wrapFSError(err, name)
	}

	if err = os.Remove(path); err != nil {
		return 0, wrapFSError(err, name)
	}

	logger.Infof(ctx, "Deleted '%s' (%s)", name, humanize.IBytes(utils.SafeInt64ToUint64(info.Size())))

	return info.Size(), nil
}

// DeleteAll removes every artifact, reporting per-file failures without stopping.
func (j *Janitor) DeleteAll(ctx context.Context) (*DeleteReport, error) {
	files, err := j.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &DeleteReport{Failures: make([]*DeleteFailure, 0)}

	for _, file := range files {
		freed, deleteErr := j.Delete(ctx, file.Name)
		if deleteErr != nil {
			logger.Warnf(ctx, "Failed to delete '%s': %v", file.Name, deleteErr)

			report.Failures = append(report.Failures, &DeleteFailure{Name: file.Name, Error: deleteErr.Error()})

			continue
		}

		report.Deleted++
		report.FreedBytes += freed
	}

	report.FreedHuman = humanize.IBytes(utils.SafeInt64ToUint64(report.FreedBytes))

	logger.Infof(ctx, "Deleted %d files, freed %s, %d failures", report.Deleted, report.FreedHuman, len(report.Failures))

	return report, nil
}

// SweepLeftovers removes job working directories and partial files left by an interrupted run.
// It returns the number of removed entries.
func (j *Janitor) SweepLeftovers(ctx context.Context) (int, error) {
	var removed int

	jobDirs, err := os.ReadDir(j.JobsDir())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, wrapFSError(err, constants.JobsFolderName)
	}

	for _, entry := range jobDirs {
		if removeErr := os.RemoveAll(filepath.Join(j.JobsDir(), entry.Name())); removeErr != nil {
			logger.Warnf(ctx, "Failed to remove job directory '%s': %v", entry.Name(), removeErr)

			continue
		}

		removed++
	}

	entries, err := os.ReadDir(j.root)
	if err != nil {
		return removed, wrapFSError(err, j.root)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), constants.PartFileSuffix) {
			continue
		}

		if removeErr := os.Remove(filepath.Join(j.root, entry.Name())); removeErr != nil {
			logger.Warnf(ctx, "Failed to remove partial file '%s': %v", entry.Name(), removeErr)

			continue
		}

		removed++
	}

	if removed > 0 {
		logger.Infof(ctx, "Removed %d leftovers of interrupted downloads", removed)
	}

	return removed, nil
}

// FreeSpace returns the bytes available to unprivileged users on the storage file system.
func (j *Janitor) FreeSpace() (uint64, error) {
	return freeSpace(j.root)
}

// Publish moves src into the storage root as name, or as name with suffix inserted before
// the extension when name is taken, and returns the name it claimed. Names are claimed
// atomically, so concurrent publishers never overwrite each other or an existing artifact.
func (j *Janitor) Publish(ctx context.Context, src, name, suffix string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for attempt := range maxPublishAttempts {
		candidate := name

		switch {
		case attempt == 1:
			candidate = base + "-" + suffix + ext
		case attempt > 1:
			candidate = base + "-" + suffix + "-" + strconv.Itoa(attempt) + ext
		}

		err := claim(ctx, src, filepath.Join(j.root, candidate))
		if err == nil {
			return candidate, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to publish artifact: %w", wrapFSError(err, candidate))
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNameTaken, name)
}

// claim moves src to dst and fails with fs.ErrExist when dst already exists.
func claim(ctx context.Context, src, dst string) error {
	err := os.Link(src, dst)
	if err == nil {
		if removeErr := os.Remove(src); removeErr != nil {
			logger.Warnf(ctx, "Failed to remove published source '%s': %v", src, removeErr)
		}

		return nil
	}

	if errors.Is(err, fs.ErrExist) {
		return err
	}

	// No hard links on this file system: reserve the name, then replace the reservation.
	placeholder, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, constants.DefaultFilePermissions)
	if err != nil {
		return err
	}

	if err = placeholder.Close(); err == nil {
		err = os.Rename(src, dst)
	}

	if err != nil {
		_ = os.Remove(dst)

		return err
	}

	return nil
}

// contains reports whether path lies inside the storage root.
func (j *Janitor) contains(path string) bool {
	rel, err := filepath.Rel(j.root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// isArtifactEntry reports whether a root entry is a deliverable artifact.
func isArtifactEntry(entry fs.DirEntry) bool {
	name := entry.Name()

	return entry.Type().IsRegular() &&
		!strings.HasPrefix(name, ".") &&
		!strings.HasSuffix(name, constants.PartFileSuffix)
}

func newFileInfo(name string, info fs.FileInfo) *FileInfo {
	return &FileInfo{
		Name:       name,
		Size:       info.Size(),
		SizeHuman:  humanize.IBytes(utils.SafeInt64ToUint64(info.Size())),
		Kind:       model.ArtifactKindOf(name),
		MimeType:   utils.MimeTypeByFilename(name),
		ModifiedAt: info.ModTime().UTC(),
	}
}

// wrapFSError converts file system errors into package sentinels.
func wrapFSError(err error, name string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %q", ErrFileNotFound, name)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %q", ErrPermissionDenied, name)
	default:
		return fmt.Errorf("failed to access %q: %w", name, err)
	}
}
