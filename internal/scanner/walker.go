package scanner

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/lumipallolabs/diskprobe/internal/marker"
	"github.com/lumipallolabs/diskprobe/internal/model"
)

const progressEvery = 256

// Walker implements parallel fragment discovery
type Walker struct {
	workers    int
	progressCh chan Progress
	progress   Progress
}

// NewWalker creates a new parallel filesystem walker
func NewWalker(workers int) *Walker {
	if workers < 1 {
		workers = 8
	}
	return &Walker{
		workers:    workers,
		progressCh: make(chan Progress, 100),
	}
}

// Progress returns the progress channel. It is closed when Scan returns.
func (w *Walker) Progress() <-chan Progress {
	return w.progressCh
}

func (w *Walker) snapshot() Progress {
	return Progress{
		FilesScanned: atomic.LoadInt64(&w.progress.FilesScanned),
		DirsScanned:  atomic.LoadInt64(&w.progress.DirsScanned),
		Fragments:    atomic.LoadInt64(&w.progress.Fragments),
		BytesFound:   atomic.LoadInt64(&w.progress.BytesFound),
	}
}

// report sends progress without ever blocking the walk
func (w *Walker) report() {
	select {
	case w.progressCh <- w.snapshot():
	default:
	}
}

// Scan walks root with fastwalk, staying on root's filesystem, and collects files
// carrying fragment markers.
func (w *Walker) Scan(ctx context.Context, root string) (*model.Inventory, error) {
	defer close(w.progressCh)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	rootInfo := getPlatformRootInfo(absRoot)

	var (
		mu      sync.Mutex
		entries []*model.Entry
		seen    sync.Map
	)

	conf := &fastwalk.Config{
		Follow:     false,
		NumWorkers: w.workers,
	}

	walkErr := fastwalk.Walk(conf, absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || path == absRoot {
			return nil
		}

		if d.IsDir() {
			atomic.AddInt64(&w.progress.DirsScanned, 1)
			if shouldSkipDir(path, d, rootInfo, &seen) {
				return fs.SkipDir
			}
			return nil
		}

		n := atomic.AddInt64(&w.progress.FilesScanned, 1)
		if n%progressEvery == 0 {
			w.report()
		}

		name := d.Name()
		if !marker.IsFragment(name) {
			return nil
		}
		m, ok := marker.Of(name)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size := getFileSize(info, &seen)
		if size < 0 {
			return nil
		}

		atomic.AddInt64(&w.progress.Fragments, 1)
		atomic.AddInt64(&w.progress.BytesFound, size)

		mu.Lock()
		entries = append(entries, &model.Entry{
			Path:    path,
			Name:    name,
			Size:    size,
			Marker:  m,
			ModTime: info.ModTime(),
		})
		mu.Unlock()
		return nil
	})

	if walkErr != nil {
		if errors.Is(walkErr, ctx.Err()) {
			return nil, ctx.Err()
		}
		return nil, walkErr
	}

	// fastwalk visits in no particular order
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	w.report()

	return &model.Inventory{Root: absRoot, Entries: entries}, nil
}

// Ensure Walker implements Scanner
var _ Scanner = (*Walker)(nil)
