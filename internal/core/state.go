package core

import (
	"time"

	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/lumipallolabs/diskprobe/internal/model"
)

// ScanPhase represents the current phase of a probe
type ScanPhase int

const (
	PhaseIdle ScanPhase = iota
	PhasePlanning
	PhaseWriting
	PhaseVerifying
	PhaseComplete
)

// String returns a human-readable phase name
func (p ScanPhase) String() string {
	switch p {
	case PhasePlanning:
		return "Allocating fragments"
	case PhaseWriting:
		return "Writing fragments"
	case PhaseVerifying:
		return "Verifying fragments"
	case PhaseComplete:
		return "Complete"
	default:
		return ""
	}
}

func phaseOf(p engine.Phase) ScanPhase {
	switch p {
	case engine.PhasePlanning:
		return PhasePlanning
	case engine.PhaseWriting:
		return PhaseWriting
	case engine.PhaseVerifying:
		return PhaseVerifying
	case engine.PhaseComplete:
		return PhaseComplete
	default:
		return PhaseIdle
	}
}

// ScanState holds the current scan state
type ScanState struct {
	Phase     ScanPhase
	StartTime time.Time
	Volume    string
	Dir       string
	Plan      engine.PlanInfo

	Allocated   int
	Written     int
	Verified    int
	VerifyMax   int
	Combined    int
	CombinedMax int

	Tally       engine.Tally
	Average     time.Duration
	Diagnostics int
}

// IsScanning returns true if a scan is in progress (including the brief "Complete" display)
func (s ScanState) IsScanning() bool {
	return s.Phase != PhaseIdle
}

// Running returns true while the engine is still working
func (s ScanState) Running() bool {
	return s.Phase == PhasePlanning || s.Phase == PhaseWriting || s.Phase == PhaseVerifying
}

// Elapsed returns time since scan started
func (s ScanState) Elapsed() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	return time.Since(s.StartTime).Truncate(time.Second)
}

func fraction(cur, max int) float64 {
	if max <= 0 {
		return 0
	}
	return float64(cur) / float64(max)
}

// WriteFraction is the write bar position
func (s ScanState) WriteFraction() float64 { return fraction(s.Written, s.Plan.Count) }

// VerifyFraction is the verify bar position
func (s ScanState) VerifyFraction() float64 { return fraction(s.Verified, s.VerifyMax) }

// CombinedFraction is the combined bar position
func (s ScanState) CombinedFraction() float64 { return fraction(s.Combined, s.CombinedMax) }

// ReclaimedState tracks space recovered by deleting verified fragments
type ReclaimedState struct {
	Session  int64 // Bytes reclaimed since the last scan
	Lifetime int64 // Bytes reclaimed all time
}

// AppState holds the complete application state (read-only view)
type AppState struct {
	Volumes        []model.Volume
	SelectedVolume int
	CustomPath     string // If scanning a custom path instead of a volume
	Scan           ScanState
	Reclaimed      ReclaimedState
	Report         *engine.Report
	Error          error
}
