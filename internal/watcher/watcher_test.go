package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, w *Watcher, want EventType, path string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Type == want && ev.Path == path {
				return
			}
		case <-timeout:
			t.Fatalf("no %s event for %s", want, path)
		}
	}
}

func TestWatcherReportsDeletion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.tf.ready.good")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	w, err := New()
	require.NoError(t, err)
	require.NoError(t, w.Add(dir))
	w.Start()

	require.NoError(t, os.Remove(path))
	waitFor(t, w, EventDeleted, path)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestWatcherReportsRenameAway(t *testing.T) {
	dir := t.TempDir()
	elsewhere := t.TempDir()
	path := filepath.Join(dir, "b.tf.ready.good")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	w, err := New()
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Add(dir))
	w.Start()

	require.NoError(t, os.Rename(path, filepath.Join(elsewhere, "b")))
	waitFor(t, w, EventDeleted, path)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "deleted", EventDeleted.String())
	assert.Equal(t, "created", EventCreated.String())
	assert.Equal(t, "modified", EventModified.String())
}
