//go:build linux || darwin || freebsd

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func freeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to stat file system: %w", err)
	}

	return uint64(stat.Bavail) * uint64(stat.Bsize), nil //nolint:gosec,unconvert // Field types differ per OS.
}
