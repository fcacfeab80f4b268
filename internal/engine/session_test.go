package engine

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	errInjected = errors.New("injected fault")
	errNoSpace  = errors.New("no space left on device")
)

type fakeProbe struct {
	free uint64
	err  error
}

func (p fakeProbe) FreeBytes(context.Context, string) (uint64, error) {
	return p.free, p.err
}

// faultFS wraps an in-memory filesystem with allocation limits, a byte capacity,
// failing writes and simulated write latency. Only written bytes count against the
// capacity: Truncate extends files sparsely, like APFS or ext4. Writes are counted in the order they are opened. memfs
// keeps its directory in a plain map, so metadata calls are serialized here for
// parallel verification.
type faultFS struct {
	billy.Filesystem
	clock *clock.Mock

	mu         sync.Mutex
	allocLimit int   // 0 means unlimited
	capacity   int64 // 0 means unlimited
	used       map[string]int64
	created    int
	writes     int
	failWrites map[int]bool
	delays     map[int]time.Duration
	failRename string // rename targets with this suffix fail
}

func newFaultFS() *faultFS {
	return &faultFS{
		Filesystem: memfs.New(),
		clock:      clock.NewMock(),
		used:       map[string]int64{},
		failWrites: map[int]bool{},
		delays:     map[int]time.Duration{},
	}
}

func (f *faultFS) charge(name string, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.capacity > 0 {
		var total int64
		for _, u := range f.used {
			total += u
		}
		if total+n > f.capacity {
			return errNoSpace
		}
	}
	f.used[name] += n
	return nil
}

// capFile charges writes against the filesystem capacity.
type capFile struct {
	billy.File
	fs   *faultFS
	name string
}

func (c *capFile) Write(p []byte) (int, error) {
	if err := c.fs.charge(c.name, int64(len(p))); err != nil {
		return 0, err
	}
	return c.File.Write(p)
}

func (f *faultFS) Open(name string) (billy.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Filesystem.Open(name)
}

func (f *faultFS) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.used, name)
	return f.Filesystem.Remove(name)
}

// overwrite replaces a file's content behind the session's back.
func (f *faultFS) overwrite(name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return util.WriteFile(f.Filesystem, name, data, 0644)
}

func (f *faultFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if flag&os.O_CREATE != 0 {
		if f.allocLimit > 0 && f.created >= f.allocLimit {
			return nil, errNoSpace
		}
		f.created++
	}
	if flag&os.O_TRUNC == 0 {
		file, err := f.Filesystem.OpenFile(name, flag, perm)
		if err != nil {
			return nil, err
		}
		return &capFile{File: file, fs: f, name: name}, nil
	}

	n := f.writes
	f.writes++
	if f.failWrites[n] {
		return nil, errInjected
	}
	file, err := f.Filesystem.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	f.used[name] = 0
	return &latencyFile{File: &capFile{File: file, fs: f, name: name}, clock: f.clock, delay: f.delays[n]}, nil
}

func (f *faultFS) Rename(from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRename != "" && strings.HasSuffix(to, f.failRename) {
		return errInjected
	}
	if err := f.Filesystem.Rename(from, to); err != nil {
		return err
	}
	if u, ok := f.used[from]; ok {
		f.used[to] = u
		delete(f.used, from)
	}
	return nil
}

// latencyFile advances the mock clock when closed, as if the write took delay.
type latencyFile struct {
	billy.File
	clock *clock.Mock
	delay time.Duration
}

func (l *latencyFile) Close() error {
	l.clock.Add(l.delay)
	return l.File.Close()
}

type recordSink struct {
	plans    []PlanInfo
	progress []Progress
	updates  []FragmentUpdate
	diags    []Diagnostic
	reports  []Report

	onFragment func(FragmentUpdate)
}

func (r *recordSink) OnPlan(p PlanInfo)         { r.plans = append(r.plans, p) }
func (r *recordSink) OnProgress(p Progress)     { r.progress = append(r.progress, p) }
func (r *recordSink) OnDiagnostic(d Diagnostic) { r.diags = append(r.diags, d) }
func (r *recordSink) OnComplete(rep Report)     { r.reports = append(r.reports, rep) }

func (r *recordSink) OnFragment(u FragmentUpdate) {
	r.updates = append(r.updates, u)
	if r.onFragment != nil {
		r.onFragment(u)
	}
}

func (r *recordSink) phase(p Phase) []FragmentUpdate {
	var out []FragmentUpdate
	for _, u := range r.updates {
		if u.Phase == p {
			out = append(out, u)
		}
	}
	return out
}

func (r *recordSink) lastCombined() Progress {
	for i := len(r.progress) - 1; i >= 0; i-- {
		if r.progress[i].Phase != PhasePlanning {
			return r.progress[i]
		}
	}
	return Progress{}
}

func newTestSession(fs *faultFS, free uint64, requested int, sink Sink) *Session {
	return NewSession(fs, "/vol", fakeProbe{free: free}, sink, Options{
		Requested: requested,
		Dir:       "/vol/.diskprobe",
		Clock:     fs.clock,
	})
}

func fileNames(t *testing.T, fs billy.Filesystem) []string {
	t.Helper()
	infos, err := fs.ReadDir("/")
	require.NoError(t, err)
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	sort.Strings(names)
	return names
}

func TestSessionAllGood(t *testing.T) {
	fs := newFaultFS()
	sink := &recordSink{}
	s := newTestSession(fs, 1000, 10, sink)

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Tally{Good: 10}, s.Tally())
	assert.True(t, report.Complete())
	assert.Equal(t, int64(100), report.FragmentSize)
	assert.Equal(t, 10, report.Planned)

	require.Len(t, sink.plans, 1)
	assert.Equal(t, 10, sink.plans[0].Count)
	assert.Equal(t, report.Fingerprint, sink.plans[0].Fingerprint)

	for _, name := range fileNames(t, fs) {
		assert.True(t, strings.HasSuffix(name, ".tf.ready.good"), name)
	}
	for _, f := range s.Fragments() {
		fi, err := fs.Stat(f.Path)
		require.NoError(t, err)
		assert.Equal(t, int64(100), fi.Size())
		assert.Equal(t, StatusVerifyOk, f.Status)
	}

	last := sink.lastCombined()
	assert.Equal(t, 20, last.Combined)
	assert.Equal(t, 20, last.CombinedMax)
	require.Len(t, sink.reports, 1)
}

func TestSessionEventsInIndexOrder(t *testing.T) {
	fs := newFaultFS()
	sink := &recordSink{}
	s := newTestSession(fs, 2000, 20, sink)
	s.opts.VerifyWorkers = 4

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	for _, p := range []Phase{PhaseWriting, PhaseVerifying} {
		updates := sink.phase(p)
		require.Len(t, updates, 20, p.String())
		for i, u := range updates {
			assert.Equal(t, i, u.Index, p.String())
		}
	}

	prev := 0
	for _, p := range sink.progress {
		if p.Phase == PhasePlanning {
			continue
		}
		assert.GreaterOrEqual(t, p.Combined, prev)
		prev = p.Combined
	}
}

func TestSessionTruncatedPlan(t *testing.T) {
	fs := newFaultFS()
	fs.allocLimit = 3
	sink := &recordSink{}
	s := newTestSession(fs, 1_000_000, 10, sink)

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.plans, 1)
	assert.Equal(t, 3, sink.plans[0].Count)
	assert.Equal(t, 10, sink.plans[0].Requested)
	assert.Equal(t, int64(100_000), sink.plans[0].FragmentSize)
	assert.Equal(t, 3, report.Planned)
	assert.Equal(t, 3, s.Tally().Total())
	assert.Equal(t, 6, sink.lastCombined().CombinedMax)
	assert.Len(t, fileNames(t, fs), 3)
}

func TestSessionSparseFilesystemTruncatesPlan(t *testing.T) {
	fs := newFaultFS()
	fs.capacity = 350
	sink := &recordSink{}
	s := newTestSession(fs, 1000, 10, sink)

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Planned)
	assert.Equal(t, Tally{Good: 3}, s.Tally())
	names := fileNames(t, fs)
	require.Len(t, names, 3)
	for _, name := range names {
		assert.True(t, strings.HasSuffix(name, ".tf.ready.good"), name)
	}
}

func TestPlannerWritesOutPlaceholders(t *testing.T) {
	fs := newFaultFS()
	fs.capacity = 250
	p := NewPlanner(fs)
	p.ChunkSize = 32

	fragments, err := p.Plan(context.Background(), 10, 100)
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	for _, f := range fragments {
		fi, err := fs.Stat(f.Path)
		require.NoError(t, err)
		assert.Equal(t, int64(100), fi.Size())
	}
	// the failed third placeholder is removed, not left half written
	assert.Len(t, fileNames(t, fs), 2)
	assert.Equal(t, int64(200), fs.used[fragments[0].Path]+fs.used[fragments[1].Path])
}

func TestSessionWriteFailure(t *testing.T) {
	fs := newFaultFS()
	fs.failWrites[1] = true
	sink := &recordSink{}
	s := newTestSession(fs, 400, 4, sink)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Tally{Good: 3, Bad: 1}, s.Tally())

	failed := s.Fragments()[1]
	assert.Equal(t, StatusWriteFailed, failed.Status)
	assert.ErrorIs(t, failed.Err, ErrWrite)
	assert.True(t, strings.HasSuffix(failed.Path, ".tf.bad"), failed.Path)

	writes := sink.phase(PhaseWriting)
	assert.Equal(t, ColorWarning, writes[1].Color)
	assert.Len(t, sink.phase(PhaseVerifying), 3)

	last := sink.lastCombined()
	assert.Equal(t, last.CombinedMax, last.Combined)
}

func TestSessionSlowWriteStaysSlow(t *testing.T) {
	fs := newFaultFS()
	fs.delays[0] = 25 * time.Second
	sink := &recordSink{}
	s := newTestSession(fs, 300, 3, sink)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Tally{Good: 2, Slow: 1}, s.Tally())

	slow := s.Fragments()[0]
	assert.Equal(t, StatusVerifyOk, slow.Status)
	assert.Equal(t, OutcomeSlow, slow.Outcome())
	assert.ErrorIs(t, slow.Err, ErrWriteTimeout)
	assert.True(t, strings.HasSuffix(slow.Path, ".tf.ready.timeout"), slow.Path)
	assert.Equal(t, 25*time.Second, slow.WriteDuration)

	writes := sink.phase(PhaseWriting)
	assert.Equal(t, StatusWriteSlow, writes[0].Status)
	assert.Equal(t, ColorSuccess, writes[0].Color)
	// 25s is above the fold ceiling, so the seed is untouched.
	assert.Equal(t, 20*time.Second, writes[0].Average)
}

func TestSessionSlowWriteThenVerifyFails(t *testing.T) {
	fs := newFaultFS()
	fs.delays[0] = 25 * time.Second
	sink := &recordSink{}
	sink.onFragment = func(u FragmentUpdate) {
		if u.Phase == PhaseWriting && u.Index == 0 {
			require.NoError(t, fs.Remove(u.Path))
		}
	}
	s := newTestSession(fs, 300, 3, sink)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Tally{Good: 2, Bad: 1}, s.Tally())
	assert.Equal(t, StatusVerifyError, s.Fragments()[0].Status)
	assert.ErrorIs(t, s.Fragments()[0].Err, ErrVerifyRead)
}

func TestSessionMismatch(t *testing.T) {
	fs := newFaultFS()
	sink := &recordSink{}
	sink.onFragment = func(u FragmentUpdate) {
		if u.Phase == PhaseWriting && u.Index == 2 {
			require.NoError(t, fs.overwrite(u.Path, make([]byte, 100)))
		}
	}
	s := newTestSession(fs, 500, 5, sink)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Tally{Good: 4, Bad: 1}, s.Tally())
	f := s.Fragments()[2]
	assert.Equal(t, StatusVerifyMismatch, f.Status)
	assert.ErrorIs(t, f.Err, ErrVerifyMismatch)
	assert.True(t, strings.HasSuffix(f.Path, ".tf.ready.bad"), f.Path)
	assert.Equal(t, ColorAlert, sink.phase(PhaseVerifying)[2].Color)
}

func TestSessionVerifyErrorReportsDiagnostic(t *testing.T) {
	fs := newFaultFS()
	sink := &recordSink{}
	sink.onFragment = func(u FragmentUpdate) {
		if u.Phase == PhaseWriting && u.Index == 1 {
			require.NoError(t, fs.Remove(u.Path))
		}
	}
	s := newTestSession(fs, 300, 3, sink)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	f := s.Fragments()[1]
	assert.Equal(t, StatusVerifyError, f.Status)
	assert.Equal(t, Tally{Good: 2, Bad: 1}, s.Tally())

	// The file is gone, so the .verybad rename can only fail.
	require.Len(t, sink.diags, 1)
	assert.Equal(t, 1, sink.diags[0].Index)
	assert.Equal(t, "mark .verybad", sink.diags[0].Op)
	assert.True(t, strings.HasSuffix(f.Path, ".tf.ready"), f.Path)
}

func TestSessionRenameFailureKeepsClassification(t *testing.T) {
	fs := newFaultFS()
	fs.failRename = ".good"
	sink := &recordSink{}
	s := newTestSession(fs, 200, 2, sink)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Tally{Good: 2}, s.Tally())
	assert.Len(t, sink.diags, 2)
	for _, name := range fileNames(t, fs) {
		assert.True(t, strings.HasSuffix(name, ".tf.ready"), name)
	}
}

func TestSessionCounterInvariant(t *testing.T) {
	fs := newFaultFS()
	fs.failWrites[3] = true
	fs.delays[0] = 30 * time.Second
	fs.delays[5] = 30 * time.Second
	sink := &recordSink{}
	sink.onFragment = func(u FragmentUpdate) {
		if u.Phase != PhaseWriting {
			return
		}
		switch u.Index {
		case 5:
			require.NoError(t, fs.overwrite(u.Path, []byte("x")))
		case 7:
			require.NoError(t, fs.Remove(u.Path))
		}
	}
	s := newTestSession(fs, 1000, 10, sink)

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Tally{Good: 6, Bad: 3, Slow: 1}, s.Tally())
	assert.Equal(t, report.Planned, report.Tally.Total())
	for _, u := range sink.updates {
		assert.LessOrEqual(t, u.Tally.Total(), report.Planned)
	}
}

func TestSessionCapacityProbeFails(t *testing.T) {
	sink := &recordSink{}
	s := NewSession(memfs.New(), "/vol", fakeProbe{err: errInjected}, sink, Options{Requested: 10})

	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrCapacityProbe)
	assert.Empty(t, sink.reports)
}

func TestSessionNoCapacity(t *testing.T) {
	t.Run("empty volume", func(t *testing.T) {
		_, err := newTestSession(newFaultFS(), 0, 10, nil).Run(context.Background())
		assert.ErrorIs(t, err, ErrNoCapacity)
	})

	t.Run("first allocation fails", func(t *testing.T) {
		fs := newFaultFS()
		fs.Filesystem = readOnly{fs.Filesystem}
		_, err := newTestSession(fs, 1000, 10, nil).Run(context.Background())
		assert.ErrorIs(t, err, ErrNoCapacity)
	})
}

// readOnly refuses to create files.
type readOnly struct {
	billy.Filesystem
}

func (r readOnly) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&os.O_CREATE != 0 {
		return nil, os.ErrPermission
	}
	return r.Filesystem.OpenFile(name, flag, perm)
}

func TestSessionCancelDuringWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs := newFaultFS()
	sink := &recordSink{}
	sink.onFragment = func(u FragmentUpdate) {
		if u.Phase == PhaseWriting && u.Index == 1 {
			cancel()
		}
	}
	s := newTestSession(fs, 500, 5, sink)

	report, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsCancelled(err))

	assert.True(t, report.Cancelled)
	assert.False(t, report.Complete())
	require.Len(t, sink.reports, 1)
	assert.True(t, sink.reports[0].Cancelled)
	assert.Len(t, sink.phase(PhaseWriting), 2)
	assert.Empty(t, sink.phase(PhaseVerifying))
	assert.Equal(t, StatusPlanned, s.Fragments()[2].Status)
}

func TestSessionCancelDuringVerify(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs := newFaultFS()
	sink := &recordSink{}
	sink.onFragment = func(u FragmentUpdate) {
		if u.Phase == PhaseVerifying && u.Index == 0 {
			cancel()
		}
	}
	s := newTestSession(fs, 800, 8, sink)
	s.opts.VerifyWorkers = 3

	report, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Cancelled)
	assert.Len(t, sink.phase(PhaseVerifying), 1)
	assert.Equal(t, 1, report.Tally.Good)
}

func TestSessionRejectsNonPositiveRequest(t *testing.T) {
	_, err := newTestSession(newFaultFS(), 1000, 0, nil).Run(context.Background())
	assert.Error(t, err)
}
