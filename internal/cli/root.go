// Package cli wires the diskprobe commands.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/lumipallolabs/diskprobe/internal/config"
	"github.com/lumipallolabs/diskprobe/internal/core"
	"github.com/lumipallolabs/diskprobe/internal/logging"
	"github.com/lumipallolabs/diskprobe/internal/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries state shared by every command of one invocation
type app struct {
	version string
	cfgPath string
	verbose bool

	cfg *config.Config
	log *zap.SugaredLogger

	// extra controller options, used by tests to swap probes and storage
	ctrlOpts []core.Option
}

// newController builds a controller for path. Commands that operate on a path do not
// need volume discovery.
func (a *app) newController(path string, withVolumes bool) *core.Controller {
	opts := a.ctrlOpts
	if !withVolumes {
		opts = append([]core.Option{core.WithVolumes([]model.Volume{})}, opts...)
	}
	return core.NewController(a.cfg, path, opts...)
}

// NewRootCmd builds the command tree
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(&app{version: version})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "diskprobe",
		Short: "Probe a volume for bad or slow regions by filling its free space",
		Long: `diskprobe fills the free space of a volume with fingerprinted fragment files,
times every write against an adaptive timeout, reads every fragment back and
classifies it as good, bad or slow. Fragment files are renamed as they progress
(.tf, .ready, then .good/.bad/.verybad/.timeout) so the directory itself is the
result. Delete the .good files afterwards to reclaim the space; the others stay
behind to keep the damaged regions occupied.

Run without arguments to open the interactive view on the default volume.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
			logging.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, "", scanFlags{})
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", config.DefaultPath(), "config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose console logging")

	root.AddCommand(
		newScanCmd(a),
		newVolumesCmd(a),
		newMarkersCmd(a),
		newCleanCmd(a),
		newHistoryCmd(a),
		newVersionCmd(a),
	)
	return root
}

// init loads the configuration and console logger
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.NewConsole(a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.log = logger.Sugar()
	a.log.Debugw("config loaded", "path", a.cfgPath, "fragments", cfg.Fragments, "digest", cfg.Digest)
	return nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "diskprobe %s\n", a.version)
		},
	}
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
