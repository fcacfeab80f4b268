package model

import (
	"sort"
	"time"

	"github.com/lumipallolabs/diskprobe/internal/marker"
)

// Entry is a fragment file found on disk
type Entry struct {
	Path    string
	Name    string
	Size    int64 // allocated bytes
	Marker  marker.Marker
	ModTime time.Time
}

// Inventory is the set of fragment files under a root
type Inventory struct {
	Root    string
	Entries []*Entry
}

// ByMarker groups entries by their last marker
func (inv *Inventory) ByMarker() map[marker.Marker][]*Entry {
	groups := make(map[marker.Marker][]*Entry)
	for _, e := range inv.Entries {
		groups[e.Marker] = append(groups[e.Marker], e)
	}
	return groups
}

// Count returns the number of entries carrying m
func (inv *Inventory) Count(m marker.Marker) int {
	n := 0
	for _, e := range inv.Entries {
		if e.Marker == m {
			n++
		}
	}
	return n
}

// TotalSize returns bytes held by all entries
func (inv *Inventory) TotalSize() int64 {
	var total int64
	for _, e := range inv.Entries {
		total += e.Size
	}
	return total
}

// SizeOf returns bytes held by entries carrying m
func (inv *Inventory) SizeOf(m marker.Marker) int64 {
	var total int64
	for _, e := range inv.Entries {
		if e.Marker == m {
			total += e.Size
		}
	}
	return total
}

// Filter returns the entries for which keep returns true
func (inv *Inventory) Filter(keep func(*Entry) bool) []*Entry {
	var out []*Entry
	for _, e := range inv.Entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// SortBySize sorts entries by size descending, then by name ascending
func SortBySize(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		si, sj := entries[i].Size, entries[j].Size
		if si != sj {
			return si > sj
		}
		return entries[i].Name < entries[j].Name
	})
}
