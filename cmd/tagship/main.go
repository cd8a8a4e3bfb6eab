package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bft-labs/tagship/internal/cliconfig"
	"github.com/bft-labs/tagship/pkg/log"
	"github.com/bft-labs/tagship/pkg/tagship"
	"github.com/bft-labs/tagship/plugins/planwatcher"
)

const helpBanner = `
 ████████   ██████    ██████   █████  █████   █████ █████ ███████████ 
░░░░███░   ███░░███  ███░░███ ███░░  ░░███   ░░███ ░░███ ░░███░░░░░███
   ░███   ░███ ░███ ░███ ░░░ ░░█████  ░███████████  ░███  ░██████████ 
   ░███   ░████████ ░███  ███ ░░░░███ ░███░░░░░███  ░███  ░███░░░░░░  
   ░███   ░███░░███ ░░██████  ██████  █████   █████ █████ █████       
   ░░░    ░░░  ░░░   ░░░░░░  ░░░░░░  ░░░░░   ░░░░░ ░░░░░ ░░░░░        
`

const helpDescription = `
Ship every channel of a tagged Python CLI release from one command.

Highlights:
  - Builds once, then publishes to PyPI, GitHub Releases, Cloudsmith and both image registries in parallel.
  - Waits for PyPI to serve the new version before updating the Homebrew taps.
  - A failed GitHub release is reported without blocking the other channels.
  - Configure via file, env (TAGSHIP_* or the usual CI variables), or flags.
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  tagship --ref refs/tags/v1.2.3
  tagship --ref v1.2.3 --only push_to_tap
  tagship plan --watch --pipeline release.yaml
  tagship status --ref v1.3.0
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	logger  log.Logger
}

// setup layers file and env config under the flags and builds the logger.
func (c *cli) setup(cmd *cobra.Command) error {
	if err := cliconfig.Load(cmd.Flags(), &c.cfg, c.cfgPath); err != nil {
		return err
	}
	logger, err := cliconfig.NewLogger(c.cfg)
	if err != nil {
		return err
	}
	c.logger = logger
	logger.Debug("configuration", log.Any("config", c.cfg.Masked()))
	return nil
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "tagship",
		Short:         "Release a tagged Python CLI to every distribution channel",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.runRelease,
	}
	root.PersistentFlags().StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.tagship/config.toml)")
	cliconfig.BindFlags(root.PersistentFlags(), &c.cfg)

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the release pipeline for the configured tag",
		Args:  cobra.NoArgs,
		RunE:  c.runRelease,
	})

	var watch bool
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the job graph in execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlan(cmd, watch)
		},
	}
	planCmd.Flags().BoolVar(&watch, "watch", false, "re-validate the pipeline file on every change")
	root.AddCommand(planCmd)

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the last run and the latest published release",
		Args:  cobra.NoArgs,
		RunE:  c.runStatus,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tagship:", err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func (c *cli) runRelease(cmd *cobra.Command, args []string) error {
	if err := c.setup(cmd); err != nil {
		return err
	}
	t, err := tagship.New(c.cfg, tagship.WithLogger(c.logger))
	if err != nil {
		return fmt.Errorf("create tagship: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	rec, err := t.Run(ctx)
	if rec.ID != "" {
		printRecord(cmd, rec)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Warn("release interrupted", log.Run(rec.ID))
		}
		return err
	}
	return nil
}

func (c *cli) runPlan(cmd *cobra.Command, watch bool) error {
	if err := c.setup(cmd); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var opts []tagship.Option
	if watch {
		if c.cfg.PipelineFile == "" {
			return fmt.Errorf("%w: --watch needs --pipeline", tagship.ErrInvalidConfig)
		}
		opts = append(opts, planwatcher.WithPlanWatcher(planwatcher.DefaultConfig(), func(p tagship.Plan, err error) {
			if err != nil {
				fmt.Fprintln(out, "invalid pipeline:", err)
				return
			}
			_ = p.Write(out)
			fmt.Fprintln(out)
		}))
	}

	t, err := tagship.New(c.cfg, append(opts, tagship.WithLogger(c.logger))...)
	if err != nil {
		return err
	}
	if watch {
		ctx, stop := signalContext()
		defer stop()
		return t.Watch(ctx)
	}

	plan, err := t.Plan()
	if err != nil {
		return err
	}
	return plan.Write(out)
}

func (c *cli) runStatus(cmd *cobra.Command, args []string) error {
	if err := c.setup(cmd); err != nil {
		return err
	}
	t, err := tagship.New(c.cfg, tagship.WithLogger(c.logger))
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	st, err := t.Status(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	latest := st.LatestRelease
	if latest == "" {
		latest = "none"
	}
	fmt.Fprintf(out, "repository:      %s\n", st.Repository)
	fmt.Fprintf(out, "latest release:  %s\n", latest)
	if st.Tag != nil {
		fmt.Fprintf(out, "configured tag:  %s (newer: %t)\n", st.Tag.Name, st.Newer)
	}
	if st.LastRun == nil {
		fmt.Fprintln(out, "last run:        none")
		return nil
	}
	fmt.Fprintln(out)
	printRecord(cmd, *st.LastRun)
	return nil
}

func printRecord(cmd *cobra.Command, rec tagship.RunRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s for %s: %s\n", rec.ID, rec.Tag.Name, rec.Status)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tSTATE\tATTEMPTS\tERROR")
	for _, j := range rec.Jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", j.Name, j.State, j.Attempts, j.Error)
	}
	_ = tw.Flush()
}
