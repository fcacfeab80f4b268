package engine

import "time"

// Phase identifies which stage of a session is running.
type Phase int

const (
	PhasePlanning Phase = iota
	PhaseWriting
	PhaseVerifying
	PhaseComplete
)

// String returns a human-readable phase name
func (p Phase) String() string {
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

// Status is a fragment's position in the write/verify state machine.
type Status int

const (
	StatusPlanned Status = iota
	StatusWriting
	StatusWriteOk
	StatusWriteSlow
	StatusWriteFailed
	StatusVerifyOk
	StatusVerifyMismatch
	StatusVerifyError
)

func (s Status) String() string {
	switch s {
	case StatusPlanned:
		return "planned"
	case StatusWriting:
		return "writing"
	case StatusWriteOk:
		return "write-ok"
	case StatusWriteSlow:
		return "write-slow"
	case StatusWriteFailed:
		return "write-failed"
	case StatusVerifyOk:
		return "verify-ok"
	case StatusVerifyMismatch:
		return "verify-mismatch"
	case StatusVerifyError:
		return "verify-error"
	default:
		return "unknown"
	}
}

// Survived reports whether a fragment is carried into the verify phase.
func (s Status) Survived() bool {
	return s == StatusWriteOk || s == StatusWriteSlow
}

// Color is the visual category a renderer paints a fragment cell with.
type Color int

const (
	ColorPending Color = iota
	ColorWarning       // write failed
	ColorSuccess       // written, including slow writes
	ColorAlert         // verify mismatch or read error
	ColorConfirm       // verified
)

// ColorOf maps a status to its color category. Slow writes share the success color
// during the write phase; verification is authoritative.
func ColorOf(s Status) Color {
	switch s {
	case StatusWriteFailed:
		return ColorWarning
	case StatusWriteOk, StatusWriteSlow:
		return ColorSuccess
	case StatusVerifyMismatch, StatusVerifyError:
		return ColorAlert
	case StatusVerifyOk:
		return ColorConfirm
	default:
		return ColorPending
	}
}

// Outcome is the counter a fragment is tallied under.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeGood
	OutcomeBad
	OutcomeSlow
)

// Fragment is one filler file. It is mutated only by the phase that owns it.
type Fragment struct {
	ID            string
	Index         int
	Path          string // current name, follows marker renames
	Size          int64
	Status        Status
	Slow          bool
	WriteDuration time.Duration
	Err           error
}

// Outcome returns the counter f currently belongs to.
func (f *Fragment) Outcome() Outcome {
	switch f.Status {
	case StatusWriteFailed, StatusVerifyMismatch, StatusVerifyError:
		return OutcomeBad
	case StatusWriteSlow:
		return OutcomeSlow
	case StatusVerifyOk:
		if f.Slow {
			return OutcomeSlow
		}
		return OutcomeGood
	default:
		return OutcomePending
	}
}

// Tally holds the session counters.
type Tally struct {
	Good int
	Bad  int
	Slow int
}

// Total returns the number of classified fragments.
func (t Tally) Total() int {
	return t.Good + t.Bad + t.Slow
}
