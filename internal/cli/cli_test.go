package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lumipallolabs/diskprobe/internal/core"
	"github.com/lumipallolabs/diskprobe/internal/marker"
	"github.com/lumipallolabs/diskprobe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProbe uint64

func (p fixedProbe) FreeBytes(context.Context, string) (uint64, error) {
	return uint64(p), nil
}

// run executes one command line with an isolated home directory
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	a := &app{
		version:  "1.2.3",
		ctrlOpts: []core.Option{core.WithProbe(fixedProbe(1000))},
	}
	root := newRootCmd(a)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return home
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "diskprobe 1.2.3\n", out)
}

func TestScanMarkersHistoryClean(t *testing.T) {
	isolate(t)
	target := t.TempDir()

	out, err := run(t, "", "scan", "--plain", "--quiet", "--fragments", "10", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Planned 10 of 10 fragments")
	assert.Contains(t, out, "good       10")

	entries, err := os.ReadDir(filepath.Join(target, ".diskprobe"))
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	out, err = run(t, "", "markers", target)
	require.NoError(t, err)
	assert.Contains(t, out, ".good")
	assert.Contains(t, out, "verified, safe to delete")
	assert.Contains(t, out, "10 fragment files")
	assert.NotContains(t, out, "never reached a final marker")

	out, err = run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, target)
	assert.Contains(t, out, "Lifetime: 1 scans")

	out, err = run(t, "n\n", "clean", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Delete 10 fragment files")
	assert.Contains(t, out, "aborted")

	out, err = run(t, "y\n", "clean", target)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 10 files")

	out, err = run(t, "", "clean", "--yes", target)
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to delete")
}

func TestScanComparesWithPreviousRun(t *testing.T) {
	isolate(t)
	target := t.TempDir()

	_, err := run(t, "", "scan", "--plain", "-q", "-n", "5", target)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(target, ".diskprobe")))

	out, err := run(t, "", "scan", "--plain", "-q", "-n", "5", target)
	require.NoError(t, err)
	assert.Contains(t, out, "good +0, bad +0, slow +0")

	out, err = run(t, "", "history", "--volume", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Lifetime: 2 scans")
}

func TestScanRejectsBadInput(t *testing.T) {
	isolate(t)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err := run(t, "", "scan", "--plain", file)
	assert.ErrorContains(t, err, "not a directory")

	_, err = run(t, "", "scan", "--plain", "--digest", "sha1", t.TempDir())
	assert.ErrorContains(t, err, "digest")
}

func TestMissingRequiredConfig(t *testing.T) {
	isolate(t)
	_, err := run(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "version")
	assert.Error(t, err)
}

func TestPrintInventoryFlagsInterruptedScans(t *testing.T) {
	inv := &model.Inventory{Root: "/vol/.diskprobe", Entries: []*model.Entry{
		{Name: "a.tf.ready.good", Size: 100, Marker: marker.Good},
		{Name: "b.tf.ready", Size: 100, Marker: marker.Ready},
		{Name: "c.tf", Size: 100, Marker: marker.Placeholder},
	}}

	var buf bytes.Buffer
	printInventory(&buf, inv)
	out := buf.String()
	assert.Contains(t, out, "3 fragment files")
	assert.Contains(t, out, "written, not verified")
	assert.Contains(t, out, "2 fragments never reached a final marker")
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	for in, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "": false, "maybe\n": false} {
		ok, err := confirm(strings.NewReader(in), &out, "sure?")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "input %q", in)
	}
}
