// Package marker defines the on-disk filename suffixes that record a fragment's
// progress and final classification.
//
// Markers are appended, never replaced, so a fragment's file name is its audit trail:
// a fragment that was allocated, written and verified ends up as "<id>.tf.ready.good".
// The last suffix is authoritative.
package marker

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// Marker is a filename suffix including the leading dot.
type Marker string

const (
	Placeholder Marker = ".tf"
	Ready       Marker = ".ready"
	Good        Marker = ".good"
	Bad         Marker = ".bad"
	VeryBad     Marker = ".verybad"
	Timeout     Marker = ".timeout"
)

// All lists every marker in lifecycle order.
var All = []Marker{Placeholder, Ready, Good, Bad, VeryBad, Timeout}

// Terminal reports whether m records a final classification.
func (m Marker) Terminal() bool {
	switch m {
	case Good, Bad, VeryBad, Timeout:
		return true
	}
	return false
}

// Description returns operator-facing text for the marker.
func (m Marker) Description() string {
	switch m {
	case Placeholder:
		return "allocated, never written"
	case Ready:
		return "written, not verified"
	case Good:
		return "verified, safe to delete"
	case Bad:
		return "write failed or content mismatch"
	case VeryBad:
		return "unreadable on verify"
	case Timeout:
		return "slow write"
	default:
		return ""
	}
}

// Append returns path with m appended.
func Append(path string, m Marker) string {
	return path + string(m)
}

// Of returns the last marker of name, if it is a known one.
func Of(name string) (Marker, bool) {
	ext := Marker(filepath.Ext(name))
	for _, m := range All {
		if ext == m {
			return m, true
		}
	}
	return "", false
}

// IsFragment reports whether name is "<id>.tf" followed only by known markers, the
// shape of every fragment file.
func IsFragment(name string) bool {
	parts := strings.Split(filepath.Base(name), ".")
	for i := 1; i < len(parts); i++ {
		if "."+parts[i] != string(Placeholder) {
			continue
		}
		if parts[0] == "" {
			return false
		}
		for _, p := range parts[i+1:] {
			if _, ok := Of("." + p); !ok {
				return false
			}
		}
		return true
	}
	return false
}

// Rename appends m to the file at path and returns the new path.
func Rename(fs billy.Basic, path string, m Marker) (string, error) {
	next := Append(path, m)
	if err := fs.Rename(path, next); err != nil {
		return path, err
	}
	return next, nil
}
