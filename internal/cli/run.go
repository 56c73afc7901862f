package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ratioSolver/PlExA/internal/clock"
	"github.com/ratioSolver/PlExA/internal/executor"
	"github.com/ratioSolver/PlExA/internal/plan"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Scenario string
	Config   string
	Cadence  time.Duration
	Ticks    int // 0 means run until Finished/Failed
}

// RunResult summarizes a completed run for JSON output.
type RunResult struct {
	State   string `json:"state"`
	Ticks   int    `json:"ticks"`
	Current string `json:"current_time"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a scenario and dispatch it to completion or failure",
		Long: `Load a scenario fixture, start execution, and tick the dispatcher
until the plan finishes, fails, or the requested number of ticks is
reached.

Example:
  plexa run --scenario ./fixtures/move.yaml --cadence 200ms`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "path to a scenario fixture (required)")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to an executor config file")
	cmd.Flags().DurationVar(&opts.Cadence, "cadence", time.Second, "wall-clock time between ticks")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", 0, "number of ticks to run (0 = until finished or failed)")

	return cmd
}

func runRun(opts *RunOptions, cmd *cobra.Command) error {
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
	formatter.VerboseLog("executor %s started", sess.exec.Name())

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	ticksRun := 0

	// tick advances the executor once and reports whether the run should
	// stop here: either a tick-level error (reported by the caller) or the
	// executor reaching Finished/Failed.
	tick := func() (stop bool, err error) {
		if err := sess.exec.Tick(); err != nil {
			return true, reportRunFailure(formatter, err)
		}
		ticksRun++
		formatter.VerboseLog("tick %d: state=%s time=%s", ticksRun, sess.exec.State(), sess.exec.CurrentTime())
		if s := sess.exec.State(); s == plan.Finished || s == plan.Failed {
			return true, nil
		}
		return false, nil
	}

	// The first tick runs immediately; the clock drives every tick after
	// that at opts.Cadence.
	if opts.Ticks == 0 || ticksRun < opts.Ticks {
		if stop, err := tick(); err != nil {
			return err
		} else if stop {
			return reportRunResult(formatter, sess, ticksRun)
		}
	}

	pulses := make(chan struct{}, 1)
	ticker := clock.New(opts.Cadence, func() {
		select {
		case pulses <- struct{}{}:
		default: // a tick is already pending; the clock does not queue a backlog
		}
	})
	ticker.Start()
	defer ticker.Stop()

runLoop:
	for opts.Ticks == 0 || ticksRun < opts.Ticks {
		select {
		case <-ctx.Done():
			break runLoop
		case <-pulses:
			stop, err := tick()
			if err != nil {
				return err
			}
			if stop {
				break runLoop
			}
		}
	}

	return reportRunResult(formatter, sess, ticksRun)
}

func reportRunResult(formatter *OutputFormatter, sess *session, ticks int) error {
	result := RunResult{
		State:   sess.exec.State().String(),
		Ticks:   ticks,
		Current: sess.exec.CurrentTime().String(),
	}
	if sess.exec.State() == plan.Failed {
		_ = formatter.Error(ExecutionErrorCode(sess.exec.LastFailure()), "execution failed", result)
		return NewExitError(ExitFailure, "execution ended in the failed state")
	}
	return formatter.Success(result)
}

func reportRunFailure(formatter *OutputFormatter, err error) error {
	if executor.IsExecutionFailed(err) {
		_ = formatter.Error(ExecutionErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "execution failed", err)
	}
	return WrapExitError(ExitCommandError, "tick failed", err)
}
