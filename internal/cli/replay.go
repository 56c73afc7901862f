package cli

import (
	"github.com/spf13/cobra"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Scenario string
	Config   string
	Ticks    int
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run a scenario and print its recorded dispatch trace",
		Long: `Load a scenario fixture, run it for --ticks ticks (default 1), and
print the executor's in-memory dispatch trace in the order it was
recorded: state transitions, ticks, and each atom's starting/start/
ending/end notifications.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "path to a scenario fixture (required)")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to an executor config file")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", 1, "number of ticks to run before replaying the trace")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sess, err := newSession(opts.Scenario, opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	defer sess.Close()

	sess.exec.StartExecution()
	for i := 0; i < opts.Ticks; i++ {
		if err := sess.exec.Tick(); err != nil {
			return reportRunFailure(formatter, err)
		}
	}

	if err := sess.rec.Replay(cmd.OutOrStdout()); err != nil {
		return WrapExitError(ExitCommandError, "failed to replay trace", err)
	}
	return nil
}
