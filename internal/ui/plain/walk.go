package plain

import (
	"io"

	"github.com/lumipallolabs/diskprobe/internal/scanner"
	"github.com/schollz/progressbar/v3"
)

// WalkSpinner shows a spinner while a fragment directory is walked. It stays hidden
// until the walk has seen threshold files, so small directories print nothing.
type WalkSpinner struct {
	out       io.Writer
	threshold int64
	bar       *progressbar.ProgressBar
}

// NewWalkSpinner creates a spinner writing to out
func NewWalkSpinner(out io.Writer, threshold int64) *WalkSpinner {
	return &WalkSpinner{out: out, threshold: threshold}
}

// Update is the scanner progress callback
func (s *WalkSpinner) Update(p scanner.Progress) {
	if s.bar == nil {
		if p.FilesScanned < s.threshold {
			return
		}
		s.bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetWriter(s.out),
			progressbar.OptionSetDescription("walking fragment files"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetSpinnerChangeInterval(0),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = s.bar.Set64(p.Fragments)
}

// Shown reports whether the spinner was ever drawn
func (s *WalkSpinner) Shown() bool {
	return s.bar != nil
}

// Finish clears the spinner line
func (s *WalkSpinner) Finish() {
	if s.bar != nil {
		_ = s.bar.Finish()
	}
}
