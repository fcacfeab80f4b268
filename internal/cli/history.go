package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/lumipallolabs/diskprobe/internal/history"
	"github.com/lumipallolabs/diskprobe/internal/stats"
	"github.com/lumipallolabs/diskprobe/internal/ui/plain"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		volume string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived scan reports and lifetime statistics",
		Long: `Lists archived session reports, newest last, and compares the latest report of
each volume with the one before it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := a.newController("", false)
			defer ctrl.Stop()

			key := ""
			if volume != "" {
				abs, err := filepath.Abs(volume)
				if err != nil {
					return err
				}
				key = history.Key(abs)
			}
			return printHistory(out(cmd), ctrl.Archive(), key, limit, ctrl.Stats())
		},
	}
	cmd.Flags().StringVar(&volume, "volume", "", "only show reports for this volume or path")
	cmd.Flags().IntVar(&limit, "limit", 20, "show at most this many reports")
	return cmd
}

func printHistory(w io.Writer, archive *history.Archive, key string, limit int, st stats.Stats) error {
	records, err := archive.List(key)
	if err != nil {
		return err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "no archived scans")
	} else {
		t := newTable("FINISHED", "VOLUME", "FRAGMENTS", "GOOD", "BAD", "SLOW", "TIMEOUT", "")
		// latest two reports per key, for the comparison below
		latest := make(map[string][]*engine.Report)
		var order []string

		for _, rec := range records {
			r, err := archive.Load(rec.Path)
			if err != nil {
				t.Row(rec.Time.Local().Format("2006-01-02 15:04"), rec.Key, "", "", "", "", "", "unreadable")
				continue
			}
			state := ""
			if r.Cancelled {
				state = "cancelled"
			}
			t.Row(rec.Time.Local().Format("2006-01-02 15:04"), r.Volume,
				fmt.Sprintf("%d x %s", r.Planned, humanize.IBytes(uint64(r.FragmentSize))),
				strconv.Itoa(r.Tally.Good), strconv.Itoa(r.Tally.Bad), strconv.Itoa(r.Tally.Slow),
				r.Average.String(), state)

			if _, ok := latest[rec.Key]; !ok {
				order = append(order, rec.Key)
			}
			reports := append(latest[rec.Key], r)
			if len(reports) > 2 {
				reports = reports[1:]
			}
			latest[rec.Key] = reports
		}
		fmt.Fprintln(w, t.Render())

		for _, k := range order {
			reports := latest[k]
			if len(reports) < 2 {
				continue
			}
			cmp := history.Compare(reports[0], reports[1])
			fmt.Fprintf(w, "%s:\n", reports[1].Volume)
			plain.PrintComparison(w, &cmp)
		}
	}

	fmt.Fprintf(w, "\nLifetime: %d scans, %s probed, %d good, %d bad, %d slow, %s reclaimed\n",
		st.Sessions, humanize.IBytes(uint64(st.BytesProbed)),
		st.FragmentsGood, st.FragmentsBad, st.FragmentsSlow,
		humanize.IBytes(uint64(st.ReclaimedLifetime)))
	return nil
}
