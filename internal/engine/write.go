package engine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/lumipallolabs/diskprobe/internal/marker"
)

// writerOnly hides ReadFrom so copies go through the session buffer.
type writerOnly struct {
	io.Writer
}

// writePhase writes every planned fragment in index order and returns those that
// were written (ok or slow). Writes are strictly sequential so each duration
// reflects a single operation on the medium.
func (s *Session) writePhase(ctx context.Context) ([]*Fragment, error) {
	total := len(s.fragments)
	survivors := make([]*Fragment, 0, total)

	for i, f := range s.fragments {
		if err := ctx.Err(); err != nil {
			return survivors, err
		}

		s.writeFragment(f)
		if f.Status.Survived() {
			survivors = append(survivors, f)
		}

		s.combined++
		if f.Status == StatusWriteFailed {
			// Nothing to verify; its verify step is done as well.
			s.combined++
		}

		s.sink.OnFragment(FragmentUpdate{
			Index:    f.Index,
			Phase:    PhaseWriting,
			Status:   f.Status,
			Color:    ColorOf(f.Status),
			Path:     f.Path,
			Duration: f.WriteDuration,
			Average:  s.policy.Average(),
			Tally:    s.tally,
		})
		s.progress(PhaseWriting, i+1, total)
	}
	return survivors, nil
}

func (s *Session) writeFragment(f *Fragment) {
	f.Status = StatusWriting
	start := s.clock.Now()

	if err := s.writePayload(f.Path); err != nil {
		s.failWrite(f, err)
		return
	}
	ready, err := marker.Rename(s.fs, f.Path, marker.Ready)
	if err != nil {
		s.failWrite(f, err)
		return
	}
	f.Path = ready

	dt := s.clock.Now().Sub(start)
	f.WriteDuration = dt

	threshold := s.policy.Average()
	if !s.policy.Observe(dt) {
		f.Status = StatusWriteOk
		return
	}

	f.Status = StatusWriteSlow
	f.Slow = true
	f.Err = fmt.Errorf("%w: %s > %s", ErrWriteTimeout, dt, threshold)
	s.tally.Slow++
	f.Path = s.rename(f, marker.Timeout)
}

func (s *Session) failWrite(f *Fragment, err error) {
	f.Status = StatusWriteFailed
	f.Err = fmt.Errorf("%w: %v", ErrWrite, err)
	s.tally.Bad++
	f.Path = s.rename(f, marker.Bad)
}

// writePayload overwrites the placeholder at path with the full sample.
func (s *Session) writePayload(path string) error {
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	n, err := io.CopyBuffer(writerOnly{f}, s.sample.NewReader(), s.buf)
	if err == nil && n != s.sample.Size {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = syncFile(f)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
