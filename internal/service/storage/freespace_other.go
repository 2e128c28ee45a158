//go:build !linux && !darwin && !freebsd

package storage

import "errors"

// errFreeSpaceUnsupported indicates that the platform cannot report free space.
var errFreeSpaceUnsupported = errors.New("free space is not supported on this platform")

func freeSpace(_ string) (uint64, error) {
	return 0, errFreeSpaceUnsupported
}
