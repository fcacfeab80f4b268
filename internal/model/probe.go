package model

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

// Probe measures volume capacity through statfs (or the platform equivalent).
// The zero value is ready to use.
type Probe struct{}

// FreeBytes returns the bytes an unprivileged writer can still allocate under path.
func (Probe) FreeBytes(ctx context.Context, path string) (uint64, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("usage %s: %w", path, err)
	}
	return u.Free, nil
}

// Usage returns total and free bytes for the volume holding path.
func (Probe) Usage(ctx context.Context, path string) (Volume, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Volume{}, fmt.Errorf("usage %s: %w", path, err)
	}
	return Volume{
		Path:       path,
		Fstype:     u.Fstype,
		TotalBytes: u.Total,
		FreeBytes:  u.Free,
	}, nil
}
