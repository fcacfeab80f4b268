package core

import (
	"context"
	"time"

	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/lumipallolabs/diskprobe/internal/logging"
)

// eventSink turns engine callbacks into controller state and events. Sends give up
// once ctx is done so a cancelled scan never blocks on a reader that went away.
type eventSink struct {
	ctx context.Context
	c   *Controller
	ch  chan<- Event
}

func (s *eventSink) send(ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case s.ch <- ev:
	case <-s.ctx.Done():
	}
}

// deliver sends an event that ends or frames a scan. Once ctx is done the reader may
// have gone away, so it gets deliverGrace to take the event before it is dropped.
func (c *Controller) deliver(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	default:
	}
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
	}

	t := time.NewTimer(c.deliverGrace)
	defer t.Stop()
	select {
	case ch <- ev:
		return true
	case <-t.C:
		logging.Debug.Debugf("[Controller] dropped %T, nobody reading", ev)
		return false
	}
}

func (s *eventSink) OnPlan(p engine.PlanInfo) {
	s.c.mu.Lock()
	s.c.scan.Plan = p
	s.c.scan.CombinedMax = 2 * p.Count
	s.c.mu.Unlock()

	s.send(PlanReadyEvent{Plan: p})
}

func (s *eventSink) OnProgress(p engine.Progress) {
	s.c.mu.Lock()
	s.c.scan.Phase = phaseOf(p.Phase)
	switch p.Phase {
	case engine.PhasePlanning:
		s.c.scan.Allocated = p.Current
	case engine.PhaseWriting:
		s.c.scan.Written = p.Current
	case engine.PhaseVerifying:
		s.c.scan.Verified = p.Current
		s.c.scan.VerifyMax = p.Max
	}
	if p.CombinedMax > 0 {
		s.c.scan.Combined = p.Combined
		s.c.scan.CombinedMax = p.CombinedMax
	}
	s.c.mu.Unlock()

	s.send(ProgressEvent{Progress: p})
}

func (s *eventSink) OnFragment(u engine.FragmentUpdate) {
	s.c.mu.Lock()
	s.c.scan.Tally = u.Tally
	s.c.scan.Average = u.Average
	s.c.mu.Unlock()

	s.send(FragmentEvent{Update: u})
}

func (s *eventSink) OnDiagnostic(d engine.Diagnostic) {
	s.c.mu.Lock()
	s.c.scan.Diagnostics++
	s.c.mu.Unlock()

	s.send(DiagnosticEvent{Diagnostic: d})
}

// OnComplete is a no-op: the report is delivered with ScanCompletedEvent once it
// has been archived.
func (s *eventSink) OnComplete(engine.Report) {}
