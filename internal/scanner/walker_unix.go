//go:build !windows

package scanner

import (
	"io/fs"
	"sync"
	"syscall"
)

// platformRootInfo holds the device the walk started on
type platformRootInfo struct {
	dev uint64
}

func getPlatformRootInfo(path string) platformRootInfo {
	var stat syscall.Stat_t
	if err := syscall.Stat(path, &stat); err != nil {
		return platformRootInfo{}
	}
	return platformRootInfo{dev: uint64(stat.Dev)}
}

// shouldSkipDir keeps the walk on one volume; fragments never span mounts
func shouldSkipDir(path string, d fs.DirEntry, rootInfo platformRootInfo, seen *sync.Map) bool {
	info, err := d.Info()
	if err != nil {
		return false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	if uint64(stat.Dev) != rootInfo.dev {
		return true
	}
	if _, exists := seen.LoadOrStore(stat.Ino, true); exists {
		return true
	}
	return false
}

// getFileSize returns allocated bytes, or -1 for an already counted hard link.
// Placeholders that were never written may be sparse, so blocks matter here.
func getFileSize(info fs.FileInfo, seen *sync.Map) int64 {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.Size()
	}
	if stat.Nlink > 1 {
		if _, exists := seen.LoadOrStore(stat.Ino, true); exists {
			return -1
		}
	}
	// Blocks is in 512-byte units
	return int64(stat.Blocks) * 512
}
