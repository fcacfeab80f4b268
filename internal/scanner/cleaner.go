package scanner

import (
	"context"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/lumipallolabs/diskprobe/internal/logging"
	"github.com/lumipallolabs/diskprobe/internal/marker"
	"github.com/lumipallolabs/diskprobe/internal/model"
)

// Fragments are random payloads or zero-filled placeholders; both sniff as this.
const fragmentMIME = "application/octet-stream"

// DefaultCleanable are the markers whose files hold nothing worth keeping.
// Bad, very bad and slow fragments stay behind as quarantine unless asked for.
var DefaultCleanable = []marker.Marker{marker.Good, marker.Ready, marker.Placeholder}

// Skipped is a fragment the cleaner refused or failed to remove
type Skipped struct {
	Path   string
	Reason string
}

// CleanResult summarizes a clean pass
type CleanResult struct {
	Removed int
	Freed   int64
	Skipped []Skipped
}

// Cleaner deletes fragment files from an inventory
type Cleaner struct {
	markers map[marker.Marker]bool

	// OnRemoved is called after each deletion; optional
	OnRemoved func(e *model.Entry)
}

// NewCleaner returns a cleaner for the given markers
func NewCleaner(markers ...marker.Marker) *Cleaner {
	if len(markers) == 0 {
		markers = DefaultCleanable
	}
	set := make(map[marker.Marker]bool, len(markers))
	for _, m := range markers {
		set[m] = true
	}
	return &Cleaner{markers: set}
}

// Selects reports whether e would be considered for removal
func (c *Cleaner) Selects(e *model.Entry) bool {
	return c.markers[e.Marker]
}

// Clean removes the selected entries of inv. A file whose content does not sniff
// as opaque binary is skipped: whatever it is, a probe did not write it.
func (c *Cleaner) Clean(ctx context.Context, inv *model.Inventory) (CleanResult, error) {
	var res CleanResult
	for _, e := range inv.Filter(c.Selects) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if reason := checkContent(e.Path); reason != "" {
			res.Skipped = append(res.Skipped, Skipped{Path: e.Path, Reason: reason})
			continue
		}
		if err := os.Remove(e.Path); err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: e.Path, Reason: err.Error()})
			continue
		}

		logging.Scanner.Debugf("removed %s (%d bytes)", e.Path, e.Size)
		res.Removed++
		res.Freed += e.Size
		if c.OnRemoved != nil {
			c.OnRemoved(e)
		}
	}
	return res, nil
}

func checkContent(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return err.Error()
	}
	if !mtype.Is(fragmentMIME) {
		return fmt.Sprintf("content looks like %s", mtype.String())
	}
	return ""
}
