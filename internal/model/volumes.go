package model

import (
	"context"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// Volume represents a mounted, writable filesystem
type Volume struct {
	Device     string // e.g., "/dev/sda1"
	Path       string // mount point
	Fstype     string
	ReadOnly   bool
	TotalBytes uint64
	FreeBytes  uint64
}

// UsedBytes returns bytes used on this volume
func (v Volume) UsedBytes() uint64 {
	if v.FreeBytes > v.TotalBytes {
		return 0
	}
	return v.TotalBytes - v.FreeBytes
}

// UsedPercent returns percentage of volume used
func (v Volume) UsedPercent() float64 {
	if v.TotalBytes == 0 {
		return 0
	}
	return float64(v.UsedBytes()) / float64(v.TotalBytes) * 100
}

// Kernel and virtual filesystems that cannot hold fragments.
var pseudoFS = map[string]bool{
	"autofs": true, "binfmt_misc": true, "bpf": true, "cgroup": true, "cgroup2": true,
	"configfs": true, "debugfs": true, "devpts": true, "devtmpfs": true, "efivarfs": true,
	"fusectl": true, "hugetlbfs": true, "mqueue": true, "nsfs": true, "proc": true,
	"pstore": true, "ramfs": true, "securityfs": true, "squashfs": true, "sysfs": true,
	"tracefs": true, "devfs": true, "nullfs": true,
}

// usable reports whether a partition is worth offering for a scan.
func usable(p disk.PartitionStat) bool {
	if p.Mountpoint == "" || pseudoFS[p.Fstype] {
		return false
	}
	return true
}

func readOnly(p disk.PartitionStat) bool {
	return slices.Contains(p.Opts, "ro")
}

// GetVolumes returns all mounted volumes that can be scanned, sorted by mount point
func GetVolumes(ctx context.Context) ([]Volume, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	return collect(ctx, parts, Probe{}), nil
}

func collect(ctx context.Context, parts []disk.PartitionStat, probe Probe) []Volume {
	seen := make(map[string]bool)
	var volumes []Volume
	for _, p := range parts {
		if !usable(p) || seen[p.Mountpoint] {
			continue
		}
		seen[p.Mountpoint] = true

		v := Volume{
			Device:   p.Device,
			Path:     p.Mountpoint,
			Fstype:   p.Fstype,
			ReadOnly: readOnly(p),
		}
		if u, err := probe.Usage(ctx, p.Mountpoint); err == nil {
			v.TotalBytes = u.TotalBytes
			v.FreeBytes = u.FreeBytes
		}
		volumes = append(volumes, v)
	}

	sort.Slice(volumes, func(i, j int) bool {
		return volumes[i].Path < volumes[j].Path
	})
	return volumes
}

// VolumeFor returns the index of the volume whose mount point is the longest
// prefix of path, or -1.
func VolumeFor(volumes []Volume, path string) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		return -1
	}
	best, bestLen := -1, -1
	for i, v := range volumes {
		if !within(abs, v.Path) {
			continue
		}
		if len(v.Path) > bestLen {
			best, bestLen = i, len(v.Path)
		}
	}
	return best
}

func within(path, mount string) bool {
	if path == mount {
		return true
	}
	if !strings.HasSuffix(mount, string(filepath.Separator)) {
		mount += string(filepath.Separator)
	}
	return strings.HasPrefix(path, mount)
}
