package download

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
)

// writeArchive bundles files into a zip archive at destination.
// The archive is written to a .part file and renamed only after it is closed,
// so destination never holds a truncated archive. Entries are named after the
// base names of the files, with numeric suffixes for duplicates.
func writeArchive(ctx context.Context, destination string, files []string) (err error) {
	partPath := destination + constants.PartFileSuffix

	out, err := os.OpenFile(partPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, constants.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}

		if removeErr := os.Remove(partPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.Warnf(ctx, "Failed to remove partial archive '%s': %v", partPath, removeErr)
		}
	}()

	archive := zip.NewWriter(out)
	names := make(map[string]struct{}, len(files))

	for _, file := range files {
		if err = ctx.Err(); err != nil {
			break
		}

		if err = addArchiveEntry(archive, file, uniqueEntryName(names, filepath.Base(file))); err != nil {
			break
		}
	}

	if closeErr := archive.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to finish archive: %w", closeErr)
	}

	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close archive: %w", closeErr)
	}

	if err != nil {
		return err
	}

	if err = os.Rename(partPath, destination); err != nil {
		return fmt.Errorf("failed to rename archive: %w", err)
	}

	return nil
}

// addArchiveEntry copies one file into the archive.
func addArchiveEntry(archive *zip.Writer, path, name string) error {
	in, err := os.Open(path) //nolint:gosec // Path comes from the job working directory.
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	defer in.Close() //nolint:errcheck // Read-only file.

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build archive header for %s: %w", path, err)
	}

	header.Name = name
	header.Method = zip.Deflate

	entry, err := archive.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}

	if _, err = io.Copy(entry, in); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", name, err)
	}

	return nil
}

// uniqueEntryName returns name, or name with a " (n)" suffix when it is already used.
func uniqueEntryName(used map[string]struct{}, name string) string {
	candidate := name
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 2; ; i++ {
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}

			return candidate
		}

		candidate = stem + " (" + strconv.Itoa(i) + ")" + ext
	}
}
