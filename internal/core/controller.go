package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/lumipallolabs/diskprobe/internal/config"
	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/lumipallolabs/diskprobe/internal/history"
	"github.com/lumipallolabs/diskprobe/internal/logging"
	"github.com/lumipallolabs/diskprobe/internal/marker"
	"github.com/lumipallolabs/diskprobe/internal/metrics"
	"github.com/lumipallolabs/diskprobe/internal/model"
	"github.com/lumipallolabs/diskprobe/internal/scanner"
	"github.com/lumipallolabs/diskprobe/internal/stats"
	"github.com/lumipallolabs/diskprobe/internal/watcher"
)

var (
	ErrNoTarget       = errors.New("no volume selected")
	ErrScanInProgress = errors.New("a scan is already running")
)

// Option configures a Controller
type Option func(*Controller)

// WithVolumes replaces volume discovery
func WithVolumes(volumes []model.Volume) Option {
	return func(c *Controller) { c.volumes = volumes }
}

// WithProbe replaces the capacity probe
func WithProbe(p engine.CapacityProbe) Option {
	return func(c *Controller) { c.probe = p }
}

// WithStats replaces the default stats manager
func WithStats(m *stats.Manager) Option {
	return func(c *Controller) { c.statsManager = m }
}

// WithArchive replaces the default history archive
func WithArchive(a *history.Archive) Option {
	return func(c *Controller) { c.archive = a }
}

// WithFilesystem replaces how the fragment directory is opened
func WithFilesystem(open func(dir string) (billy.Filesystem, error)) Option {
	return func(c *Controller) { c.openFS = open }
}

// Controller manages the core application logic without UI dependencies
type Controller struct {
	mu sync.RWMutex

	cfg *config.Config

	// State
	volumes        []model.Volume
	selectedVolume int
	customPath     string
	scan           ScanState
	reclaimed      ReclaimedState
	report         *engine.Report
	verified       map[string]int64 // verified fragment path -> size

	// Internal services
	probe        engine.CapacityProbe
	watcher      *watcher.Watcher
	statsManager *stats.Manager
	archive      *history.Archive
	openFS       func(dir string) (billy.Filesystem, error)

	// how long a cancelled scan waits for a reader to take its final events
	deliverGrace time.Duration
}

// NewController creates a new application controller
func NewController(cfg *config.Config, customPath string, opts ...Option) *Controller {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Controller{
		cfg:        cfg,
		customPath: customPath,
		verified:   make(map[string]int64),
		probe:        model.Probe{},
		openFS:       openFragmentDir,
		deliverGrace: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.volumes == nil {
		volumes, err := model.GetVolumes(context.Background())
		if err != nil {
			logging.Debug.Debugf("failed to list volumes: %v", err)
		}
		c.volumes = volumes
	}
	if c.archive == nil {
		c.archive = history.New(history.DefaultDir())
	}
	if c.statsManager == nil {
		c.statsManager = stats.NewManager()
		if err := c.statsManager.Load(); err != nil {
			logging.Debug.Debugf("failed to load stats: %v", err)
		}
	}
	c.reclaimed.Lifetime = c.statsManager.ReclaimedLifetime()

	// Find saved default volume
	if customPath == "" {
		defaultVolume := c.statsManager.DefaultVolume()
		for i, v := range c.volumes {
			if v.Path == defaultVolume {
				c.selectedVolume = i
				break
			}
		}
	}

	return c
}

func openFragmentDir(dir string) (billy.Filesystem, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create fragment dir: %w", err)
	}
	return osfs.New(dir, osfs.WithBoundOS()), nil
}

// Config returns the active configuration
func (c *Controller) Config() *config.Config {
	return c.cfg
}

// State returns a read-only snapshot of the current state
func (c *Controller) State() AppState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return AppState{
		Volumes:        c.volumes,
		SelectedVolume: c.selectedVolume,
		CustomPath:     c.customPath,
		Scan:           c.scan,
		Reclaimed:      c.reclaimed,
		Report:         c.report,
	}
}

// Volumes returns the available volumes
func (c *Controller) Volumes() []model.Volume {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volumes
}

// RefreshVolumes re-reads mounted volumes and their free space
func (c *Controller) RefreshVolumes(ctx context.Context) error {
	volumes, err := model.GetVolumes(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var selected string
	if v := c.selectedLocked(); v != nil {
		selected = v.Path
	}
	c.volumes = volumes
	c.selectedVolume = 0
	for i, v := range volumes {
		if v.Path == selected {
			c.selectedVolume = i
		}
	}
	return nil
}

// SelectedVolume returns the currently selected volume
func (c *Controller) SelectedVolume() *model.Volume {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectedLocked()
}

func (c *Controller) selectedLocked() *model.Volume {
	if c.selectedVolume < 0 || c.selectedVolume >= len(c.volumes) {
		return nil
	}
	v := c.volumes[c.selectedVolume]
	return &v
}

// SelectedVolumeIndex returns the index of the selected volume
func (c *Controller) SelectedVolumeIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectedVolume
}

// HasSavedDefaultVolume returns true if there's a valid saved default volume
func (c *Controller) HasSavedDefaultVolume() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.customPath != "" {
		return true // Custom path counts as having a target
	}

	defaultVolume := c.statsManager.DefaultVolume()
	for _, v := range c.volumes {
		if v.Path == defaultVolume {
			return true
		}
	}
	return false
}

// CustomPath returns the custom scan path if set
func (c *Controller) CustomPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.customPath
}

// ScanState returns the current scan state
func (c *Controller) ScanState() ScanState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scan
}

// ReclaimedState returns the current reclaimed space state
func (c *Controller) ReclaimedState() ReclaimedState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reclaimed
}

// LastReport returns the report of the last finished scan, if any
func (c *Controller) LastReport() *engine.Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.report
}

// Stats returns lifetime statistics
func (c *Controller) Stats() stats.Stats {
	return c.statsManager.Snapshot()
}

// Archive returns the history archive
func (c *Controller) Archive() *history.Archive {
	return c.archive
}

// SelectVolume selects a volume by index and saves it as the default
func (c *Controller) SelectVolume(idx int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx < 0 || idx >= len(c.volumes) {
		return fmt.Errorf("volume index %d out of range", idx)
	}
	if c.scan.Running() {
		return ErrScanInProgress
	}

	c.selectedVolume = idx
	c.customPath = ""
	c.reclaimed.Session = 0
	c.statsManager.SetDefaultVolume(c.volumes[idx].Path)
	return nil
}

// Target returns the path that will be probed
func (c *Controller) Target() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.targetLocked()
}

func (c *Controller) targetLocked() string {
	if c.customPath != "" {
		return c.customPath
	}
	if v := c.selectedLocked(); v != nil {
		return v.Path
	}
	return ""
}

// FragmentDir returns where fragments for path are placed
func (c *Controller) FragmentDir(path string) string {
	return filepath.Join(path, c.cfg.FragmentDir)
}

// StartScan begins probing the selected volume or custom path
func (c *Controller) StartScan(ctx context.Context) (<-chan Event, error) {
	c.mu.Lock()

	path := c.targetLocked()
	if path == "" {
		c.mu.Unlock()
		return nil, ErrNoTarget
	}
	if c.scan.Running() {
		c.mu.Unlock()
		return nil, ErrScanInProgress
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	// The new session replaces the set of verified fragments being watched
	if c.watcher != nil {
		_ = c.watcher.Stop()
		c.watcher = nil
	}

	dir := c.FragmentDir(path)
	c.scan = ScanState{
		Phase:     PhasePlanning,
		StartTime: time.Now(),
		Volume:    path,
		Dir:       dir,
	}
	c.mu.Unlock()

	eventCh := make(chan Event, 100)
	go c.runScan(ctx, path, dir, eventCh)
	return eventCh, nil
}

// runScan executes the session in a goroutine
func (c *Controller) runScan(ctx context.Context, path, dir string, eventCh chan Event) {
	defer close(eventCh)

	logging.Debug.Debugf("[Controller] Starting scan of %s into %s", path, dir)
	c.deliver(ctx, eventCh, ScanStartedEvent{Volume: path, Dir: dir})

	fail := func(err error) {
		c.mu.Lock()
		c.scan.Phase = PhaseIdle
		c.mu.Unlock()

		if c.deliver(ctx, eventCh, ScanCompletedEvent{Err: err}) {
			c.deliver(ctx, eventCh, ErrorEvent{Err: err})
		}
	}

	fs, err := c.openFS(dir)
	if err != nil {
		fail(err)
		return
	}

	sinks := []engine.Sink{
		&eventSink{ctx: ctx, c: c, ch: eventCh},
		engine.LogSink{Log: logging.Scanner},
	}
	var recorder *metrics.Recorder
	if c.cfg.MetricsFile != "" {
		recorder = metrics.NewRecorder(path)
		sinks = append(sinks, recorder)
	}

	session := engine.NewSession(fs, path, c.probe, engine.Tee(sinks...), c.cfg.SessionOptions(dir))
	report, err := session.Run(ctx)
	if err != nil && !engine.IsCancelled(err) {
		logging.Debug.Debugf("[Controller] Scan failed: %v", err)
		fail(err)
		return
	}

	comparison := c.record(report, dir)
	if recorder != nil {
		if werr := recorder.WriteTextfile(c.cfg.MetricsFile); werr != nil {
			logging.Debug.Debugf("[Controller] metrics export failed: %v", werr)
			c.deliver(ctx, eventCh, ErrorEvent{Err: fmt.Errorf("write metrics: %w", werr)})
		}
	}

	c.mu.Lock()
	c.scan.Phase = PhaseComplete
	c.scan.Tally = report.Tally
	c.scan.Average = report.Average
	c.mu.Unlock()

	c.deliver(ctx, eventCh, ScanCompletedEvent{Report: &report, Comparison: comparison, Err: err})
	logging.Debug.Debugf("[Controller] Scan complete: %+v", report.Tally)
}

// record keeps the report, feeds the lifetime stats and archives it
func (c *Controller) record(report engine.Report, dir string) *history.Comparison {
	verified := make(map[string]int64)
	for _, f := range report.Fragments {
		if f.Status == engine.StatusVerifyOk && !f.Slow {
			verified[filepath.Join(dir, f.Path)] = report.FragmentSize
		}
	}

	c.mu.Lock()
	c.report = &report
	c.verified = verified
	c.reclaimed.Session = 0
	c.mu.Unlock()

	c.statsManager.AddSession(report)

	prev, err := c.archive.LoadLatest(report.Volume)
	if err != nil {
		prev = nil
	}
	if _, err := c.archive.Save(report); err != nil {
		logging.Debug.Debugf("[Controller] archive failed: %v", err)
	} else if _, err := c.archive.Prune(report.Volume, c.cfg.HistoryKeep); err != nil {
		logging.Debug.Debugf("[Controller] prune failed: %v", err)
	}

	cmp := history.Compare(prev, &report)
	return &cmp
}

// FinalizeScan marks the scan as fully complete (after UI delay)
func (c *Controller) FinalizeScan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scan.Phase == PhaseComplete {
		c.scan.Phase = PhaseIdle
	}
}

// StartWatching watches the fragment directory of the last scan and reports space
// reclaimed as the operator deletes verified fragments.
func (c *Controller) StartWatching() (<-chan Event, error) {
	c.mu.Lock()

	if c.report == nil {
		c.mu.Unlock()
		return nil, nil
	}
	dir := c.report.Dir

	// Stop existing watcher
	if c.watcher != nil {
		_ = c.watcher.Stop()
	}

	w, err := watcher.New()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.watcher = w
	c.mu.Unlock()

	if err := w.Add(dir); err != nil {
		logging.Debug.Debugf("Failed to watch %s: %v", dir, err)
	}
	w.Start()
	logging.Debug.Debugf("Filesystem watcher started for %s", dir)

	eventCh := make(chan Event, 100)
	go c.watchLoop(w, eventCh)
	return eventCh, nil
}

// watchLoop processes filesystem events
func (c *Controller) watchLoop(w *watcher.Watcher, eventCh chan Event) {
	defer close(eventCh)

	for event := range w.Events() {
		if event.Type != watcher.EventDeleted {
			continue
		}
		if ev, ok := c.reclaim(event.Path); ok {
			eventCh <- ev
		}
	}
}

// reclaim credits a deleted verified fragment once
func (c *Controller) reclaim(path string) (ReclaimedEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size, ok := c.verified[path]
	if !ok {
		return ReclaimedEvent{}, false
	}
	delete(c.verified, path)

	c.reclaimed.Session += size
	c.reclaimed.Lifetime += size
	c.statsManager.AddReclaimed(size)
	logging.Debug.Debugf("Watcher: reclaimed %d bytes from %s", size, path)

	return ReclaimedEvent{
		Path:             path,
		Size:             size,
		SessionReclaimed: c.reclaimed.Session,
		TotalReclaimed:   c.reclaimed.Lifetime,
	}, true
}

// Inventory lists the fragment files left under path's fragment directory. progress,
// when not nil, receives walk updates on a separate goroutine until Inventory returns.
func (c *Controller) Inventory(ctx context.Context, path string, progress func(scanner.Progress)) (*model.Inventory, error) {
	dir := c.FragmentDir(path)
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}

	w := scanner.NewWalker(8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range w.Progress() {
			if progress != nil {
				progress(p)
			}
		}
	}()

	inv, err := w.Scan(ctx, dir)
	<-done
	return inv, err
}

// Clean deletes fragments from inv. Only verified fragments count as reclaimed.
func (c *Controller) Clean(ctx context.Context, inv *model.Inventory, markers ...marker.Marker) (scanner.CleanResult, error) {
	cl := scanner.NewCleaner(markers...)
	cl.OnRemoved = func(e *model.Entry) {
		if e.Marker != marker.Good {
			return
		}
		c.mu.Lock()
		delete(c.verified, e.Path)
		c.reclaimed.Session += e.Size
		c.reclaimed.Lifetime += e.Size
		c.mu.Unlock()
		c.statsManager.AddReclaimed(e.Size)
	}
	return cl.Clean(ctx, inv)
}

// Stop cleans up resources
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watcher != nil {
		_ = c.watcher.Stop()
		c.watcher = nil
	}
	if c.statsManager != nil {
		_ = c.statsManager.Close()
	}
}
