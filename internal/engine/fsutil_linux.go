//go:build linux

package engine

import (
	"errors"

	"golang.org/x/sys/unix"
)

// allocate uses fallocate(2); handled is false when the filesystem does not support it.
func allocate(fd uintptr, size int64) (handled bool, err error) {
	err = unix.Fallocate(int(fd), 0, 0, size)
	if errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS) {
		return false, nil
	}
	return true, err
}

func evict(fd uintptr) {
	_ = unix.Fadvise(int(fd), 0, 0, unix.FADV_DONTNEED)
}
