//go:build windows

package scanner

import (
	"io/fs"
	"sync"
)

type platformRootInfo struct{}

func getPlatformRootInfo(path string) platformRootInfo {
	return platformRootInfo{}
}

// Drive letters are separate volumes already.
func shouldSkipDir(path string, d fs.DirEntry, rootInfo platformRootInfo, seen *sync.Map) bool {
	return false
}

func getFileSize(info fs.FileInfo, seen *sync.Map) int64 {
	return info.Size()
}
