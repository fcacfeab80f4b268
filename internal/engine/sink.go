package engine

import (
	"time"

	"go.uber.org/zap"
)

// PlanInfo is reported once placeholders are allocated. Count may be below
// Requested when the volume filled up early; renderers recompute their grid and
// progress bounds from it.
type PlanInfo struct {
	Requested    int
	Count        int
	FragmentSize int64
	FreeBytes    uint64
	Dir          string
	Digest       string
	Fingerprint  string
}

// Progress reports phase completion plus the combined write+verify bar, whose
// maximum is twice the fragment count.
type Progress struct {
	Phase       Phase
	Current     int
	Max         int
	Combined    int
	CombinedMax int
}

// FragmentUpdate is emitted once per fragment per phase, in index order.
type FragmentUpdate struct {
	Index    int
	Phase    Phase
	Status   Status
	Color    Color
	Path     string
	Duration time.Duration // write duration, zero in the verify phase
	Average  time.Duration // adaptive threshold after this write
	Tally    Tally
}

// Diagnostic reports a swallowed best-effort failure, such as a marker rename that
// could not be applied. It never changes a classification.
type Diagnostic struct {
	Index int
	Op    string
	Path  string
	Err   error
}

// Sink receives session events from the worker goroutine. Implementations must not
// block indefinitely.
type Sink interface {
	OnPlan(PlanInfo)
	OnProgress(Progress)
	OnFragment(FragmentUpdate)
	OnDiagnostic(Diagnostic)
	OnComplete(Report)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) OnPlan(PlanInfo)           {}
func (NopSink) OnProgress(Progress)       {}
func (NopSink) OnFragment(FragmentUpdate) {}
func (NopSink) OnDiagnostic(Diagnostic)   {}
func (NopSink) OnComplete(Report)         {}

type tee []Sink

// Tee fans every event out to sinks in order.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) OnPlan(p PlanInfo) {
	for _, s := range t {
		s.OnPlan(p)
	}
}

func (t tee) OnProgress(p Progress) {
	for _, s := range t {
		s.OnProgress(p)
	}
}

func (t tee) OnFragment(u FragmentUpdate) {
	for _, s := range t {
		s.OnFragment(u)
	}
}

func (t tee) OnDiagnostic(d Diagnostic) {
	for _, s := range t {
		s.OnDiagnostic(d)
	}
}

func (t tee) OnComplete(r Report) {
	for _, s := range t {
		s.OnComplete(r)
	}
}

// LogSink writes events to a zap logger at debug level; diagnostics go out as warnings.
type LogSink struct {
	Log *zap.SugaredLogger
}

func (l LogSink) OnPlan(p PlanInfo) {
	l.Log.Debugw("plan ready",
		"requested", p.Requested, "count", p.Count,
		"fragment_size", p.FragmentSize, "dir", p.Dir, "fingerprint", p.Fingerprint)
}

func (l LogSink) OnProgress(Progress) {}

func (l LogSink) OnFragment(u FragmentUpdate) {
	l.Log.Debugw("fragment",
		"index", u.Index, "phase", u.Phase.String(), "status", u.Status.String(),
		"duration", u.Duration, "average", u.Average, "path", u.Path)
}

func (l LogSink) OnDiagnostic(d Diagnostic) {
	l.Log.Warnw("swallowed fault", "index", d.Index, "op", d.Op, "path", d.Path, "error", d.Err)
}

func (l LogSink) OnComplete(r Report) {
	l.Log.Debugw("session complete",
		"good", r.Tally.Good, "bad", r.Tally.Bad, "slow", r.Tally.Slow,
		"cancelled", r.Cancelled, "elapsed", r.FinishedAt.Sub(r.StartedAt))
}
