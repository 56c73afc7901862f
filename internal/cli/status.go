package cli

import (
	"sort"

	"github.com/spf13/cobra"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Scenario string
	Config   string
	After    int // ticks to run before reporting status
}

// StatusResult reports an executor's current state.
type StatusResult struct {
	Name      string   `json:"name"`
	State     string   `json:"state"`
	Current   string   `json:"current_time"`
	Running   bool     `json:"running"`
	Executing []uint64 `json:"executing"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Load a scenario, advance it, and report executor status",
		Long: `Load a scenario fixture, start execution, optionally advance by
--after ticks, and report the executor's name, state, current time, and
the set of atoms currently executing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "path to a scenario fixture (required)")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to an executor config file")
	cmd.Flags().IntVar(&opts.After, "after", 0, "number of ticks to advance before reporting status")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
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

	executing := sess.exec.Executing()
	ids := make([]uint64, 0, len(executing))
	for _, a := range executing {
		ids = append(ids, uint64(a.ID))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return formatter.Success(StatusResult{
		Name:      sess.exec.Name(),
		State:     sess.exec.State().String(),
		Current:   sess.exec.CurrentTime().String(),
		Running:   sess.exec.IsRunning(),
		Executing: ids,
	})
}
