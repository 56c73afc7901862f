package cli

import (
	"github.com/spf13/cobra"

	"github.com/ratioSolver/PlExA/internal/script"
)

// AdaptOptions holds flags for the adapt command.
type AdaptOptions struct {
	*RootOptions
	Scenario string
	Config   string
	Script   string
	After    int // ticks to run before applying the adaptation
}

// AdaptResult reports the outcome of applying an adaptation script.
type AdaptResult struct {
	State   string `json:"state"`
	Current string `json:"current_time"`
}

// NewAdaptCommand creates the adapt command.
func NewAdaptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdaptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "adapt",
		Short: "Apply an adaptation script against a running scenario",
		Long: `Load a scenario fixture, start execution, advance by --after ticks,
apply an adaptation script (new atoms, new clauses), and tick once more
so the adaptation's re-solve (scenario S6) actually runs.

Example:
  plexa adapt --scenario move.yaml --script add-waypoint.yaml --after 3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdapt(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "path to a scenario fixture (required)")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to an executor config file")
	cmd.Flags().StringVar(&opts.Script, "script", "", "path to an adaptation script fixture (required)")
	_ = cmd.MarkFlagRequired("script")
	cmd.Flags().IntVar(&opts.After, "after", 0, "number of ticks to advance before adapting")

	return cmd
}

func runAdapt(opts *AdaptOptions, cmd *cobra.Command) error {
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
	for i := 0; i < opts.After; i++ {
		if err := sess.exec.Tick(); err != nil {
			return reportRunFailure(formatter, err)
		}
	}

	adaptScript, err := script.Load(opts.Script)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load adaptation script", err)
	}

	if err := sess.exec.Adapt(adaptScript.Apply); err != nil {
		return WrapExitError(ExitCommandError, "adaptation script failed", err)
	}
	formatter.VerboseLog("adaptation queued; applying on next tick")

	if err := sess.exec.Tick(); err != nil {
		return reportRunFailure(formatter, err)
	}

	return formatter.Success(AdaptResult{
		State:   sess.exec.State().String(),
		Current: sess.exec.CurrentTime().String(),
	})
}
