package watcher

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/lumipallolabs/diskprobe/internal/logging"
)

// EventType represents the type of filesystem event
type EventType int

const (
	EventDeleted EventType = iota
	EventCreated
	EventModified
)

func (t EventType) String() string {
	switch t {
	case EventDeleted:
		return "deleted"
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	default:
		return "unknown"
	}
}

// Event represents a filesystem change event
type Event struct {
	Type EventType
	Path string
}

// Watcher reports changes to files in a set of directories
type Watcher struct {
	fsw     *fsnotify.Watcher
	eventCh chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a new filesystem watcher
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:     fsw,
		eventCh: make(chan Event, 100),
		done:    make(chan struct{}),
	}, nil
}

// Events returns the channel for receiving filesystem events. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.eventCh
}

// Add watches the direct children of dir. Fragments live in one flat directory,
// so there is no recursive variant.
func (w *Watcher) Add(dir string) error {
	return w.fsw.Add(dir)
}

// Start begins delivering events
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Debug.Debugf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var t EventType
	switch {
	// Moving to the trash is a rename away from the watched directory
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		t = EventDeleted
	case event.Has(fsnotify.Create):
		t = EventCreated
	case event.Has(fsnotify.Write):
		t = EventModified
	default:
		return
	}

	select {
	case w.eventCh <- Event{Type: t, Path: event.Name}:
	default:
	}
}

// Stop stops the watcher and closes the event channel
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	close(w.eventCh)
	return err
}
