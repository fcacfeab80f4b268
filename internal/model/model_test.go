package model

import (
	"context"
	"testing"

	"github.com/lumipallolabs/diskprobe/internal/marker"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeUsage(t *testing.T) {
	v := Volume{TotalBytes: 200, FreeBytes: 50}
	assert.Equal(t, uint64(150), v.UsedBytes())
	assert.InDelta(t, 75.0, v.UsedPercent(), 0.001)

	assert.Zero(t, Volume{}.UsedPercent())
	assert.Zero(t, Volume{TotalBytes: 1, FreeBytes: 2}.UsedBytes())
}

func TestCollectFiltersPseudoFilesystems(t *testing.T) {
	parts := []disk.PartitionStat{
		{Device: "/dev/sda2", Mountpoint: "/", Fstype: "ext4", Opts: []string{"rw"}},
		{Device: "proc", Mountpoint: "/proc", Fstype: "proc"},
		{Device: "/dev/sda1", Mountpoint: "/boot", Fstype: "vfat", Opts: []string{"ro"}},
		{Device: "/dev/sda2", Mountpoint: "/", Fstype: "ext4"},
		{Device: "/dev/loop0", Mountpoint: "/snap/core", Fstype: "squashfs"},
	}

	vols := collect(context.Background(), parts, Probe{})
	require.Len(t, vols, 2)
	assert.Equal(t, "/", vols[0].Path)
	assert.Equal(t, "/boot", vols[1].Path)
	assert.True(t, vols[1].ReadOnly)
	assert.False(t, vols[0].ReadOnly)
}

func TestVolumeFor(t *testing.T) {
	vols := []Volume{{Path: "/"}, {Path: "/mnt/data"}, {Path: "/mnt/datastore"}}

	assert.Equal(t, 1, VolumeFor(vols, "/mnt/data/photos"))
	assert.Equal(t, 1, VolumeFor(vols, "/mnt/data"))
	assert.Equal(t, 2, VolumeFor(vols, "/mnt/datastore/x"))
	assert.Equal(t, 0, VolumeFor(vols, "/home/user"))
	assert.Equal(t, -1, VolumeFor(nil, "/home"))
}

func TestProbeFreeBytes(t *testing.T) {
	free, err := Probe{}.FreeBytes(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.NotZero(t, free)

	_, err = Probe{}.FreeBytes(context.Background(), "/definitely/not/here")
	assert.Error(t, err)
}

func TestInventory(t *testing.T) {
	inv := &Inventory{Entries: []*Entry{
		{Name: "a.tf.ready.good", Size: 100, Marker: marker.Good},
		{Name: "b.tf.ready.good", Size: 300, Marker: marker.Good},
		{Name: "c.tf.bad", Size: 50, Marker: marker.Bad},
		{Name: "d.tf", Size: 10, Marker: marker.Placeholder},
	}}

	assert.Equal(t, int64(460), inv.TotalSize())
	assert.Equal(t, 2, inv.Count(marker.Good))
	assert.Equal(t, int64(400), inv.SizeOf(marker.Good))
	assert.Len(t, inv.ByMarker()[marker.Bad], 1)
	assert.Len(t, inv.Filter(func(e *Entry) bool { return e.Size >= 100 }), 2)
}

func TestSortBySize(t *testing.T) {
	entries := []*Entry{
		{Name: "small", Size: 100},
		{Name: "large", Size: 1000},
		{Name: "b", Size: 500},
		{Name: "a", Size: 500},
	}
	SortBySize(entries)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"large", "a", "b", "small"}, names)
}
