package cli

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/lumipallolabs/diskprobe/internal/marker"
	"github.com/lumipallolabs/diskprobe/internal/model"
	"github.com/lumipallolabs/diskprobe/internal/scanner"
	"github.com/lumipallolabs/diskprobe/internal/ui/plain"
	"github.com/spf13/cobra"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...)
}

func newVolumesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "volumes",
		Short: "List mounted volumes that can be probed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			volumes, err := model.GetVolumes(cmdContext(cmd))
			if err != nil {
				return err
			}
			t := newTable("MOUNT", "DEVICE", "FS", "FREE", "TOTAL", "USED", "")
			for _, v := range volumes {
				ro := ""
				if v.ReadOnly {
					ro = "ro"
				}
				t.Row(v.Path, v.Device, v.Fstype,
					humanize.IBytes(v.FreeBytes), humanize.IBytes(v.TotalBytes),
					fmt.Sprintf("%.0f%%", v.UsedPercent()), ro)
			}
			fmt.Fprintln(out(cmd), t.Render())
			return nil
		},
	}
}

// directories with fewer files are walked without a spinner
const walkSpinnerAfter = 4096

// inventory walks the fragment directory under the path argument
func (a *app) inventory(cmd *cobra.Command, args []string) (*model.Inventory, error) {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	ctrl := a.newController(abs, false)
	defer ctrl.Stop()

	spinner := plain.NewWalkSpinner(cmd.ErrOrStderr(), walkSpinnerAfter)
	inv, err := ctrl.Inventory(cmdContext(cmd), abs, spinner.Update)
	spinner.Finish()
	if err != nil {
		return nil, fmt.Errorf("no fragments under %s: %w", abs, err)
	}
	return inv, nil
}

func newMarkersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "markers [path]",
		Short: "Summarize fragment files left by previous scans",
		Long: `Walks the fragment directory under path (default: current directory) and groups
the fragment files by their last marker.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.inventory(cmd, args)
			if err != nil {
				return err
			}
			printInventory(out(cmd), inv)
			return nil
		},
	}
}

func printInventory(w io.Writer, inv *model.Inventory) {
	t := newTable("MARKER", "FILES", "SIZE", "MEANING")
	for _, m := range marker.All {
		n := inv.Count(m)
		if n == 0 {
			continue
		}
		t.Row(string(m), strconv.Itoa(n), humanize.IBytes(uint64(inv.SizeOf(m))), m.Description())
	}
	fmt.Fprintf(w, "%s\n", inv.Root)
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d fragment files, %s\n", len(inv.Entries), humanize.IBytes(uint64(inv.TotalSize())))

	unfinished := len(inv.Filter(func(e *model.Entry) bool { return !e.Marker.Terminal() }))
	if unfinished > 0 {
		fmt.Fprintf(w, "%d fragments never reached a final marker; the scan that left them was interrupted\n", unfinished)
	}
}

func newCleanCmd(a *app) *cobra.Command {
	var all, yes bool
	cmd := &cobra.Command{
		Use:   "clean [path]",
		Short: "Delete fragment files to reclaim space",
		Long: `Deletes verified (.good) fragments and unfinished leftovers (.tf, .ready) under
path. Bad, unreadable and slow fragments are kept so the damaged regions stay
occupied; --all removes them too. Files whose content does not look like a
fragment are never deleted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			markers := scanner.DefaultCleanable
			if all {
				markers = marker.All
			}
			return a.runClean(cmd, args, markers, yes)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also delete bad, unreadable and slow fragments")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) runClean(cmd *cobra.Command, args []string, markers []marker.Marker, yes bool) error {
	inv, err := a.inventory(cmd, args)
	if err != nil {
		return err
	}

	cl := scanner.NewCleaner(markers...)
	selected := inv.Filter(cl.Selects)
	if len(selected) == 0 {
		fmt.Fprintln(out(cmd), "nothing to delete")
		return nil
	}
	var size int64
	for _, e := range selected {
		size += e.Size
	}

	if !yes {
		q := fmt.Sprintf("Delete %d fragment files (%s) under %s?", len(selected), humanize.IBytes(uint64(size)), inv.Root)
		ok, err := confirm(cmd.InOrStdin(), out(cmd), q)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out(cmd), "aborted")
			return nil
		}
	}

	ctrl := a.newController(filepath.Dir(inv.Root), false)
	defer ctrl.Stop()

	res, err := ctrl.Clean(cmdContext(cmd), inv, markers...)
	fmt.Fprintf(out(cmd), "deleted %d files, reclaimed %s\n", res.Removed, humanize.IBytes(uint64(res.Freed)))
	for _, s := range res.Skipped {
		fmt.Fprintf(out(cmd), "skipped %s: %s\n", s.Path, s.Reason)
	}
	return err
}

// confirm asks a yes/no question; anything but y/yes is no
func confirm(in io.Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
