package engine

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
)

type fdFile interface {
	Fd() uintptr
}

type syncer interface {
	Sync() error
}

// preallocate reserves size bytes for f so the volume reports ENOSPC here rather than
// mid-write. Real files get platform allocation; when that is unavailable the file is
// filled with zeros from the zeros buffer, since a truncated file may be sparse.
func preallocate(f billy.File, size int64, zeros []byte) error {
	if fd, ok := f.(fdFile); ok {
		if handled, err := allocate(fd.Fd(), size); handled {
			return err
		}
	}
	return zeroFill(f, size, zeros)
}

func zeroFill(f billy.File, size int64, zeros []byte) error {
	if len(zeros) == 0 && size > 0 {
		return fmt.Errorf("zero fill of %d bytes without a buffer", size)
	}
	for left := size; left > 0; {
		n := min(int64(len(zeros)), left)
		w, err := f.Write(zeros[:n])
		if err != nil {
			return err
		}
		left -= int64(w)
	}
	return syncFile(f)
}

// syncFile flushes f to stable storage when the file supports it.
func syncFile(f billy.File) error {
	if s, ok := f.(syncer); ok {
		return s.Sync()
	}
	return nil
}

// dropCache asks the kernel to forget cached pages of f so verification reads the
// medium instead of memory. Best effort.
func dropCache(f billy.File) {
	if fd, ok := f.(fdFile); ok {
		evict(fd.Fd())
	}
}
