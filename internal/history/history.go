// Package history archives session reports per volume so later runs can be
// compared against earlier ones.
package history

import (
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/zeebo/blake3"
)

const (
	ext        = ".gob.gz"
	sep        = "@"
	timeLayout = "2006-01-02_150405.000"
)

// Archive handles saving and loading session reports
type Archive struct {
	dir string
}

// New creates an archive in the given directory
func New(dir string) *Archive {
	return &Archive{dir: dir}
}

// DefaultDir returns the default archive directory
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".diskprobe", "history")
	}
	return filepath.Join(home, ".diskprobe", "history")
}

// Key turns a volume path into a file-name-safe archive key. The readable part is
// lossy, so a short hash of the path keeps distinct volumes apart.
func Key(volume string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, volume)
	mapped = strings.Trim(mapped, "_")
	if mapped == "" {
		mapped = "root"
	}
	sum := blake3.Sum256([]byte(volume))
	return mapped + "-" + hex.EncodeToString(sum[:4])
}

// Record is an archived report file
type Record struct {
	Path string
	Key  string
	Time time.Time
}

// Save archives a report under its volume's key and returns the file path
func (a *Archive) Save(r engine.Report) (string, error) {
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return "", fmt.Errorf("create history dir: %w", err)
	}

	stamp := r.FinishedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	path := filepath.Join(a.dir, Key(r.Volume)+sep+stamp.UTC().Format(timeLayout)+ext)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	if err := gob.NewEncoder(gz).Encode(r); err != nil {
		gz.Close()
		return "", fmt.Errorf("encode: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}
	return path, nil
}

// List returns the archived reports for a key, oldest first. An empty key lists
// every volume.
func (a *Archive) List(key string) ([]Record, error) {
	pattern := "*" + sep + "*" + ext
	if key != "" {
		pattern = key + sep + "*" + ext
	}
	files, err := filepath.Glob(filepath.Join(a.dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob: %w", err)
	}

	records := make([]Record, 0, len(files))
	for _, f := range files {
		rec, err := parseName(f)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Time.Equal(records[j].Time) {
			return records[i].Time.Before(records[j].Time)
		}
		return records[i].Key < records[j].Key
	})
	return records, nil
}

func parseName(path string) (Record, error) {
	base := strings.TrimSuffix(filepath.Base(path), ext)
	key, stamp, ok := strings.Cut(base, sep)
	if !ok {
		return Record{}, fmt.Errorf("invalid filename %s", base)
	}
	t, err := time.Parse(timeLayout, stamp)
	if err != nil {
		return Record{}, err
	}
	return Record{Path: path, Key: key, Time: t}, nil
}

// Load decodes one archived report
func (a *Archive) Load(path string) (*engine.Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	var r engine.Report
	if err := gob.NewDecoder(gz).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &r, nil
}

// LoadLatest loads the most recent report for a volume
func (a *Archive) LoadLatest(volume string) (*engine.Report, error) {
	records, err := a.List(Key(volume))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no history for %s", volume)
	}
	return a.Load(records[len(records)-1].Path)
}

// Prune keeps the newest keep reports for a volume and deletes the rest
func (a *Archive) Prune(volume string, keep int) (int, error) {
	records, err := a.List(Key(volume))
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(records)-removed > keep {
		if err := os.Remove(records[removed].Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
