// Package engine implements the fill-and-verify scan: a session allocates fragment
// placeholders across a volume's free space, writes a fingerprinted payload into each
// one while timing it, then re-reads every surviving fragment and classifies it.
//
// A Session runs on a single goroutine and owns its fragments and counters. Observers
// only ever see copies delivered through a Sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookgo/clock"
	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/lumipallolabs/diskprobe/internal/logging"
	"github.com/lumipallolabs/diskprobe/internal/marker"
	"github.com/lumipallolabs/diskprobe/internal/sample"
)

const defaultBufferSize = 1 << 20

// CapacityProbe reports how many bytes a volume can still take.
type CapacityProbe interface {
	FreeBytes(ctx context.Context, path string) (uint64, error)
}

// Options configure a session. With more than one verify worker the filesystem must
// tolerate an Open running alongside a Rename.
type Options struct {
	Requested     int
	Digest        sample.Digest
	Policy        PolicyConfig
	VerifyWorkers int
	BufferSize    int
	Dir           string // where fs is rooted, for reports only
	Clock         clock.Clock
}

// Session is one scan of one volume.
type Session struct {
	ID     string
	volume string
	fs     billy.Filesystem
	probe  CapacityProbe
	sink   Sink
	opts   Options
	clock  clock.Clock

	planner   *Planner
	policy    *TimeoutPolicy
	sample    *sample.Sample
	buf       []byte
	free      uint64
	fragments []*Fragment
	tally     Tally
	combined  int
	started   time.Time
}

// NewSession prepares a session that fills fs, whose free space is measured on volume.
func NewSession(fs billy.Filesystem, volume string, probe CapacityProbe, sink Sink, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.VerifyWorkers < 1 {
		opts.VerifyWorkers = 1
	}
	if opts.Policy.Unit <= 0 {
		opts.Policy = DefaultPolicy()
	}
	if opts.Digest == "" {
		opts.Digest = sample.MD5
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Session{
		ID:      uuid.NewString(),
		volume:  volume,
		fs:      fs,
		probe:   probe,
		sink:    sink,
		opts:    opts,
		clock:   opts.Clock,
		planner: NewPlanner(fs),
		policy:  NewTimeoutPolicy(opts.Policy),
	}
}

// Run executes planning, writing and verification in sequence. Per-fragment faults
// are folded into the tally; only a failed capacity probe, an empty plan, or
// cancellation end the session early. A cancelled session still returns (and
// reports) a partial Report alongside ctx.Err().
func (s *Session) Run(ctx context.Context) (Report, error) {
	if s.opts.Requested <= 0 {
		return Report{}, fmt.Errorf("requested fragment count must be positive, got %d", s.opts.Requested)
	}
	s.started = s.clock.Now()

	free, err := s.probe.FreeBytes(ctx, s.volume)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrCapacityProbe, err)
	}
	s.free = free

	size := sample.FragmentSize(free, s.opts.Requested)
	if size == 0 {
		return Report{}, ErrNoCapacity
	}
	smp, err := sample.New(size, s.opts.Digest)
	if err != nil {
		return Report{}, err
	}
	s.sample = smp
	s.buf = make([]byte, min(int64(s.opts.BufferSize), size))

	logging.Scanner.Debugf("session %s: free=%d requested=%d size=%d", s.ID, free, s.opts.Requested, size)

	count := Count(free, size)
	s.planner.ChunkSize = s.opts.BufferSize
	s.planner.OnAllocated = func(done, total int) {
		s.sink.OnProgress(Progress{Phase: PhasePlanning, Current: done, Max: total})
	}
	s.fragments, err = s.planner.Plan(ctx, count, size)
	if err != nil {
		return s.finish(true), err
	}
	if len(s.fragments) == 0 {
		return Report{}, ErrNoCapacity
	}

	s.sink.OnPlan(PlanInfo{
		Requested:    s.opts.Requested,
		Count:        len(s.fragments),
		FragmentSize: size,
		FreeBytes:    free,
		Dir:          s.opts.Dir,
		Digest:       string(s.opts.Digest),
		Fingerprint:  smp.Fingerprint,
	})

	survivors, err := s.writePhase(ctx)
	if err != nil {
		return s.finish(true), err
	}
	if err := s.verifyPhase(ctx, survivors); err != nil {
		return s.finish(true), err
	}
	return s.finish(false), nil
}

// Tally returns the counters. Only valid once Run has returned.
func (s *Session) Tally() Tally {
	return s.tally
}

// Fragments returns the plan. Only valid once Run has returned.
func (s *Session) Fragments() []*Fragment {
	return s.fragments
}

func (s *Session) finish(cancelled bool) Report {
	r := Report{
		SessionID:  s.ID,
		Volume:     s.volume,
		Dir:        s.opts.Dir,
		StartedAt:  s.started,
		FinishedAt: s.clock.Now(),
		Requested:  s.opts.Requested,
		Planned:    len(s.fragments),
		FreeBytes:  s.free,
		Digest:     string(s.opts.Digest),
		Tally:      s.tally,
		Average:    s.policy.Average(),
		Cancelled:  cancelled,
		Fragments:  make([]FragmentRecord, 0, len(s.fragments)),
	}
	if s.sample != nil {
		r.FragmentSize = s.sample.Size
		r.Fingerprint = s.sample.Fingerprint
	}
	for _, f := range s.fragments {
		r.Fragments = append(r.Fragments, newRecord(f))
	}
	s.sink.OnComplete(r)
	return r
}

// rename applies a marker best-effort. A failure is reported as a diagnostic and
// leaves the fragment's classification untouched.
func (s *Session) rename(f *Fragment, m marker.Marker) string {
	next, err := marker.Rename(s.fs, f.Path, m)
	if err != nil {
		logging.Scanner.Debugf("rename %s -> %s failed: %v", f.Path, m, err)
		s.sink.OnDiagnostic(Diagnostic{Index: f.Index, Op: "mark " + string(m), Path: f.Path, Err: err})
	}
	return next
}

func (s *Session) progress(phase Phase, current, max int) {
	s.sink.OnProgress(Progress{
		Phase:       phase,
		Current:     current,
		Max:         max,
		Combined:    s.combined,
		CombinedMax: 2 * len(s.fragments),
	})
}

// IsCancelled reports whether err ended a session through its context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
