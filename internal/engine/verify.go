package engine

import (
	"context"
	"fmt"

	"github.com/lumipallolabs/diskprobe/internal/marker"
	"github.com/lumipallolabs/diskprobe/internal/sample"
	"golang.org/x/sync/errgroup"
)

type verifyResult struct {
	fingerprint string
	err         error
}

// verifyPhase re-reads every survivor. Reads may run on several workers, but results
// are applied (renames, counters, events) on this goroutine in index order.
func (s *Session) verifyPhase(ctx context.Context, survivors []*Fragment) error {
	total := len(survivors)
	results := make([]chan verifyResult, total)
	for i := range results {
		results[i] = make(chan verifyResult, 1)
	}

	readCtx, stop := context.WithCancel(ctx)
	var g errgroup.Group
	g.SetLimit(s.opts.VerifyWorkers)

	fed := make(chan struct{})
	go func() {
		defer close(fed)
		for i, f := range survivors {
			if readCtx.Err() != nil {
				return
			}
			i, path := i, f.Path
			g.Go(func() error {
				if err := readCtx.Err(); err != nil {
					results[i] <- verifyResult{err: err}
					return nil
				}
				fp, err := s.fingerprint(path)
				results[i] <- verifyResult{fingerprint: fp, err: err}
				return nil
			})
		}
	}()
	defer func() {
		stop()
		<-fed
		_ = g.Wait()
	}()

	for i, f := range survivors {
		if err := ctx.Err(); err != nil {
			return err
		}

		var r verifyResult
		select {
		case r = <-results[i]:
		case <-ctx.Done():
			return ctx.Err()
		}

		s.applyVerify(f, r)
		s.combined++

		s.sink.OnFragment(FragmentUpdate{
			Index:   f.Index,
			Phase:   PhaseVerifying,
			Status:  f.Status,
			Color:   ColorOf(f.Status),
			Path:    f.Path,
			Average: s.policy.Average(),
			Tally:   s.tally,
		})
		s.progress(PhaseVerifying, i+1, total)
	}
	return nil
}

func (s *Session) fingerprint(path string) (string, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	dropCache(f)
	return sample.Fingerprint(f, s.sample.Digest)
}

// applyVerify classifies f. A slow fragment that verifies keeps its timeout marker
// and stays counted as slow; one that fails verification moves from slow to bad.
func (s *Session) applyVerify(f *Fragment, r verifyResult) {
	switch {
	case r.err != nil:
		f.Status = StatusVerifyError
		f.Err = fmt.Errorf("%w: %v", ErrVerifyRead, r.err)
		s.demote(f)
		f.Path = s.rename(f, marker.VeryBad)

	case r.fingerprint != s.sample.Fingerprint:
		f.Status = StatusVerifyMismatch
		f.Err = fmt.Errorf("%w: got %s, want %s", ErrVerifyMismatch, r.fingerprint, s.sample.Fingerprint)
		s.demote(f)
		f.Path = s.rename(f, marker.Bad)

	default:
		f.Status = StatusVerifyOk
		if f.Slow {
			return
		}
		s.tally.Good++
		f.Path = s.rename(f, marker.Good)
	}
}

func (s *Session) demote(f *Fragment) {
	if f.Slow {
		s.tally.Slow--
	}
	s.tally.Bad++
}
