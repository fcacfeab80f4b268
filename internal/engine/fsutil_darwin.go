//go:build darwin

package engine

import (
	"errors"

	"golang.org/x/sys/unix"
)

// allocate reserves blocks with F_PREALLOCATE, then sets the length. handled is false
// when the filesystem does not support preallocation.
func allocate(fd uintptr, size int64) (handled bool, err error) {
	store := &unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Offset:  0,
		Length:  size,
	}
	err = unix.FcntlFstore(fd, unix.F_PREALLOCATE, store)
	if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP) {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	return true, unix.Ftruncate(int(fd), size)
}

func evict(fd uintptr) {
	// F_NOCACHE only affects later I/O on this descriptor
	_, _ = unix.FcntlInt(fd, unix.F_NOCACHE, 1)
}
