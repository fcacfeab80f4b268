package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lumipallolabs/diskprobe/internal/engine"
)

// Stats holds persistent statistics
type Stats struct {
	Sessions          int    `json:"sessions"`
	BytesProbed       int64  `json:"bytes_probed"`
	FragmentsGood     int64  `json:"fragments_good"`
	FragmentsBad      int64  `json:"fragments_bad"`
	FragmentsSlow     int64  `json:"fragments_slow"`
	ReclaimedLifetime int64  `json:"reclaimed_lifetime"`
	DefaultVolume     string `json:"default_volume,omitempty"` // mount point to select on startup
}

// Manager handles loading and saving stats
type Manager struct {
	path         string
	stats        Stats
	mu           sync.RWMutex
	dirty        bool
	saveTimer    *time.Timer
	saveDuration time.Duration
}

// NewManager creates a stats manager backed by the default file
func NewManager() *Manager {
	return NewManagerAt(defaultPath())
}

// NewManagerAt creates a stats manager backed by path
func NewManagerAt(path string) *Manager {
	return &Manager{
		path:         path,
		saveDuration: 2 * time.Second, // Debounce saves
	}
}

func defaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".diskprobe-stats.json"
	}
	return filepath.Join(home, ".diskprobe", "stats.json")
}

// Load loads stats from disk
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.stats = Stats{}
			return nil
		}
		return err
	}

	return json.Unmarshal(data, &m.stats)
}

// Save saves stats to disk immediately
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saveLocked()
}

// saveLocked saves stats without acquiring the lock (caller must hold lock)
func (m *Manager) saveLocked() error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m.stats, "", "  ")
	if err != nil {
		return err
	}

	m.dirty = false
	return os.WriteFile(m.path, data, 0644)
}

// Snapshot returns a copy of the current stats
func (m *Manager) Snapshot() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// ReclaimedLifetime returns bytes reclaimed by deleting verified fragments, all time
func (m *Manager) ReclaimedLifetime() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats.ReclaimedLifetime
}

// DefaultVolume returns the default volume mount point
func (m *Manager) DefaultVolume() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats.DefaultVolume
}

// SetDefaultVolume sets the default volume and schedules a save
func (m *Manager) SetDefaultVolume(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stats.DefaultVolume == path {
		return
	}
	m.stats.DefaultVolume = path
	m.scheduleLocked()
}

// AddSession folds a finished session into the lifetime totals
func (m *Manager) AddSession(r engine.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Sessions++
	m.stats.BytesProbed += r.BytesProbed()
	m.stats.FragmentsGood += int64(r.Tally.Good)
	m.stats.FragmentsBad += int64(r.Tally.Bad)
	m.stats.FragmentsSlow += int64(r.Tally.Slow)
	m.scheduleLocked()
}

// AddReclaimed adds to the lifetime reclaimed counter and schedules a save
func (m *Manager) AddReclaimed(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.ReclaimedLifetime += bytes
	m.scheduleLocked()
}

// scheduleLocked marks stats dirty and (re)arms the debounced save
func (m *Manager) scheduleLocked() {
	m.dirty = true

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.saveTimer = time.AfterFunc(m.saveDuration, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.dirty {
			_ = m.saveLocked() // Ignore errors for background save
		}
	})
}

// Close ensures any pending saves are written
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}

	if m.dirty {
		return m.saveLocked()
	}
	return nil
}
