package cli

import (
	"github.com/spf13/cobra"
)

// TickOptions holds flags for the tick command.
type TickOptions struct {
	*RootOptions
	Scenario string
	Config   string
	N        int
}

// TickResult reports the outcome of advancing N ticks.
type TickResult struct {
	State   string `json:"state"`
	Ticks   int    `json:"ticks"`
	Current string `json:"current_time"`
}

// NewTickCommand creates the tick command.
func NewTickCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TickOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Load a scenario and advance it by N ticks",
		Long: `Load a scenario fixture, start execution, and call Tick N times
(default 1), reporting the resulting state and current time.

Unlike run, tick does not wait between calls and does not stop early on
Finished — it performs N ticks, which is useful for stepping through
dispatch one tick at a time. A tick that fails ends the command at once
with that failure.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTick(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "path to a scenario fixture (required)")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to an executor config file")
	cmd.Flags().IntVar(&opts.N, "n", 1, "number of ticks to advance")

	return cmd
}

func runTick(opts *TickOptions, cmd *cobra.Command) error {
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

	for i := 0; i < opts.N; i++ {
		if err := sess.exec.Tick(); err != nil {
			return reportRunFailure(formatter, err)
		}
		formatter.VerboseLog("tick %d: state=%s time=%s", i+1, sess.exec.State(), sess.exec.CurrentTime())
	}

	return formatter.Success(TickResult{
		State:   sess.exec.State().String(),
		Ticks:   opts.N,
		Current: sess.exec.CurrentTime().String(),
	})
}
