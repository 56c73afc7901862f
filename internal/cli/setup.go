package cli

import (
	"fmt"

	"github.com/ratioSolver/PlExA/internal/config"
	"github.com/ratioSolver/PlExA/internal/executor"
	"github.com/ratioSolver/PlExA/internal/script"
	"github.com/ratioSolver/PlExA/internal/solver"
	"github.com/ratioSolver/PlExA/internal/trace"
)

// session bundles everything a subcommand drives against a single loaded
// fixture: the reference solver, its executor, and an attached trace
// recorder.
type session struct {
	solver *solver.RefSolver
	exec   *executor.Executor
	rec    *trace.Recorder
}

// Close releases the session's trace recorder.
func (s *session) Close() error { return s.rec.Close() }

// newSession loads scenarioPath and, if configPath is non-empty,
// configPath, then wires a RefSolver, an Executor, and a trace.Recorder
// together and runs the initial solve that produces the first timeline.
func newSession(scenarioPath, configPath string) (*session, error) {
	cfg := executor.DefaultConfig()
	if configPath != "" {
		f, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg, err = f.ExecutorConfig()
		if err != nil {
			return nil, fmt.Errorf("building executor config: %w", err)
		}
	}

	sc, err := script.Load(scenarioPath)
	if err != nil {
		return nil, fmt.Errorf("loading scenario: %w", err)
	}

	s := solver.NewRefSolver()
	ex := executor.New(cfg, s, executor.UUIDGenerator{})

	rec, err := trace.Open()
	if err != nil {
		return nil, fmt.Errorf("opening trace recorder: %w", err)
	}
	ex.RegisterListener(rec)

	if err := sc.Apply(s); err != nil {
		rec.Close()
		return nil, fmt.Errorf("applying scenario: %w", err)
	}

	if !s.Solve() {
		// The executor's observer already transitioned it to Failed. The
		// failure is returned as a session-construction error, which every
		// caller reports as a command error; it is not reported with the
		// E_EXEC_ code a Tick-triggered failure gets.
		rec.Close()
		return nil, fmt.Errorf("initial solve found no consistent plan")
	}

	return &session{solver: s, exec: ex, rec: rec}, nil
}
