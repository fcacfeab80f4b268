package core

import (
	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/lumipallolabs/diskprobe/internal/history"
)

// Event represents a state change from the controller
type Event interface {
	isEvent()
}

// ScanStartedEvent is emitted when a scan begins
type ScanStartedEvent struct {
	Volume string
	Dir    string
}

func (ScanStartedEvent) isEvent() {}

// PlanReadyEvent is emitted once placeholders are allocated
type PlanReadyEvent struct {
	Plan engine.PlanInfo
}

func (PlanReadyEvent) isEvent() {}

// ProgressEvent is emitted as each phase advances
type ProgressEvent struct {
	Progress engine.Progress
}

func (ProgressEvent) isEvent() {}

// FragmentEvent is emitted once per fragment per phase
type FragmentEvent struct {
	Update engine.FragmentUpdate
}

func (FragmentEvent) isEvent() {}

// DiagnosticEvent is emitted for best-effort failures
type DiagnosticEvent struct {
	Diagnostic engine.Diagnostic
}

func (DiagnosticEvent) isEvent() {}

// ScanCompletedEvent is emitted when a scan finishes. Report is set for completed
// and cancelled sessions; Err is set for cancelled and failed ones.
type ScanCompletedEvent struct {
	Report     *engine.Report
	Comparison *history.Comparison
	Err        error
}

func (ScanCompletedEvent) isEvent() {}

// ReclaimedEvent is emitted when a verified fragment is deleted
type ReclaimedEvent struct {
	Path             string
	Size             int64
	SessionReclaimed int64
	TotalReclaimed   int64
}

func (ReclaimedEvent) isEvent() {}

// ErrorEvent is emitted when an error occurs
type ErrorEvent struct {
	Err error
}

func (ErrorEvent) isEvent() {}
