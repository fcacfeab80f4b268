package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lumipallolabs/diskprobe/internal/core"
	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/lumipallolabs/diskprobe/internal/ui/plain"
	"github.com/lumipallolabs/diskprobe/internal/ui/tui"
	"github.com/spf13/cobra"
)

type scanFlags struct {
	plain         bool
	quiet         bool
	fragments     int
	digest        string
	verifyWorkers int
	bufferSize    int
	metricsFile   string
}

func newScanCmd(a *app) *cobra.Command {
	var f scanFlags
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Probe a volume or directory",
		Long: `Fills the free space under path with fragment files, writes and verifies them.
Without a path the saved default volume is used, or the volume selector opens.

Example:
  diskprobe scan /media/usb
  diskprobe scan --plain --fragments 500 /media/usb`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return a.runScan(cmd, path, f)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&f.plain, "plain", false, "print progress to the console instead of the interactive view")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "with --plain, print only the summary")
	flags.IntVarP(&f.fragments, "fragments", "n", 0, "number of fragments to split the free space into")
	flags.StringVar(&f.digest, "digest", "", "fingerprint algorithm (md5 or blake3)")
	flags.IntVar(&f.verifyWorkers, "verify-workers", 0, "parallel fingerprint readers")
	flags.IntVar(&f.bufferSize, "buffer-size", 0, "write buffer size in bytes")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	return cmd
}

// apply overrides configuration values with the flags that were set
func (f scanFlags) apply(cmd *cobra.Command, a *app) error {
	changed := cmd.Flags().Changed
	if changed("fragments") {
		a.cfg.Fragments = f.fragments
	}
	if changed("digest") {
		a.cfg.Digest = f.digest
	}
	if changed("verify-workers") {
		a.cfg.VerifyWorkers = f.verifyWorkers
	}
	if changed("buffer-size") {
		a.cfg.BufferSize = f.bufferSize
	}
	if changed("metrics-file") {
		a.cfg.MetricsFile = f.metricsFile
	}
	return a.cfg.Validate()
}

func (a *app) runScan(cmd *cobra.Command, path string, f scanFlags) error {
	if err := f.apply(cmd, a); err != nil {
		return err
	}
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", abs)
		}
		path = abs
	}

	ctrl := a.newController(path, true)
	defer ctrl.Stop()

	if f.plain {
		return a.runPlain(cmd, ctrl, f.quiet)
	}

	a.log.Debugw("starting interactive view", "target", ctrl.Target())
	p := tea.NewProgram(tui.NewApp(ctrl, a.version), tea.WithAltScreen(), tea.WithContext(cmdContext(cmd)))
	_, err := p.Run()
	return err
}

func (a *app) runPlain(cmd *cobra.Command, ctrl *core.Controller, quiet bool) error {
	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch, err := ctrl.StartScan(ctx)
	if errors.Is(err, core.ErrNoTarget) {
		return fmt.Errorf("%w: pass a path or select a default volume in the interactive view", err)
	}
	if err != nil {
		return err
	}

	r := plain.New(out(cmd), quiet)
	done, err := r.Run(ch)
	if err != nil {
		return err
	}
	if done.Err != nil {
		if engine.IsCancelled(done.Err) {
			fmt.Fprintln(out(cmd), "scan cancelled; partial results were archived")
			return nil
		}
		return done.Err
	}
	a.log.Debugw("scan finished", "tally", done.Report.Tally, "diagnostics", r.Diagnostics())
	return nil
}
