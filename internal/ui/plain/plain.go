// Package plain renders scan progress as a single console progress bar, for
// terminals without TUI support and for scripted runs.
package plain

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lumipallolabs/diskprobe/internal/core"
	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/lumipallolabs/diskprobe/internal/history"
	"github.com/schollz/progressbar/v3"
)

// ErrNoCompletion is returned when the event stream closes without a result
var ErrNoCompletion = errors.New("scan ended without a result")

// Renderer prints scan events to out
type Renderer struct {
	out      io.Writer
	bar      *progressbar.ProgressBar
	phase    engine.Phase
	quiet    bool
	diagnose int
}

// New creates a renderer writing to out. A quiet renderer prints no progress bar.
func New(out io.Writer, quiet bool) *Renderer {
	return &Renderer{out: out, quiet: quiet, phase: -1}
}

// Run consumes events until ch closes and returns the completion event
func (r *Renderer) Run(ch <-chan core.Event) (core.ScanCompletedEvent, error) {
	var (
		done core.ScanCompletedEvent
		seen bool
	)
	for ev := range ch {
		switch e := ev.(type) {
		case core.ScanStartedEvent:
			fmt.Fprintf(r.out, "Probing %s (fragments in %s)\n", e.Volume, e.Dir)

		case core.PlanReadyEvent:
			r.plan(e.Plan)

		case core.ProgressEvent:
			r.progress(e.Progress)

		case core.DiagnosticEvent:
			r.diagnose++
			r.println(fmt.Sprintf("warning: %s %s: %v", e.Diagnostic.Op, e.Diagnostic.Path, e.Diagnostic.Err))

		case core.ErrorEvent:
			r.println(fmt.Sprintf("error: %v", e.Err))

		case core.ScanCompletedEvent:
			if r.bar != nil {
				_ = r.bar.Finish()
				fmt.Fprintln(r.out)
			}
			done, seen = e, true
			if e.Report != nil {
				PrintReport(r.out, e.Report)
				if e.Comparison != nil {
					PrintComparison(r.out, e.Comparison)
				}
			}
		}
	}
	if !seen {
		return done, ErrNoCompletion
	}
	return done, nil
}

func (r *Renderer) plan(p engine.PlanInfo) {
	fmt.Fprintf(r.out, "Planned %d of %d fragments of %s (%s free, %s)\n",
		p.Count, p.Requested, humanize.IBytes(uint64(p.FragmentSize)), humanize.IBytes(p.FreeBytes), p.Digest)

	if r.quiet {
		return
	}
	r.bar = progressbar.NewOptions64(int64(2*p.Count),
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionSetDescription(engine.PhaseWriting.String()),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

func (r *Renderer) progress(p engine.Progress) {
	if r.bar == nil || p.CombinedMax == 0 {
		return
	}
	if p.Phase != r.phase {
		r.phase = p.Phase
		r.bar.Describe(p.Phase.String())
	}
	_ = r.bar.Set(p.Combined)
}

func (r *Renderer) println(line string) {
	if r.bar != nil {
		_, _ = progressbar.Bprintln(r.bar, line)
		return
	}
	fmt.Fprintln(r.out, line)
}

// Diagnostics returns how many best-effort failures were reported
func (r *Renderer) Diagnostics() int {
	return r.diagnose
}

// PrintReport writes the summary of a finished session
func PrintReport(w io.Writer, rep *engine.Report) {
	state := "complete"
	if rep.Cancelled {
		state = "cancelled"
	}
	fmt.Fprintf(w, "Session %s %s in %s\n", rep.SessionID, state, rep.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(w, "  volume     %s\n", rep.Volume)
	fmt.Fprintf(w, "  fragments  %d x %s (%s probed)\n",
		rep.Planned, humanize.IBytes(uint64(rep.FragmentSize)), humanize.IBytes(uint64(rep.BytesProbed())))
	fmt.Fprintf(w, "  good       %d\n", rep.Tally.Good)
	fmt.Fprintf(w, "  bad        %d\n", rep.Tally.Bad)
	fmt.Fprintf(w, "  slow       %d\n", rep.Tally.Slow)
	fmt.Fprintf(w, "  timeout    %s\n", rep.Average)
}

// PrintComparison writes the change since the previous session of the same volume
func PrintComparison(w io.Writer, c *history.Comparison) {
	if c.Previous == nil {
		fmt.Fprintln(w, "  first archived scan of this volume")
		return
	}
	fmt.Fprintf(w, "  since %s: good %+d, bad %+d, slow %+d, free %s\n",
		humanize.Time(c.Previous.FinishedAt), c.GoodDelta, c.BadDelta, c.SlowDelta, signedBytes(c.FreeDelta))
	if c.Degraded() {
		fmt.Fprintln(w, "  WARNING: bad or slow share increased")
	}
}

func signedBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return "+" + humanize.IBytes(uint64(n))
}
