package executor

import (
	"testing"

	"github.com/ratioSolver/PlExA/internal/plan"
	"github.com/ratioSolver/PlExA/internal/solver"
	"github.com/ratioSolver/PlExA/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constAtom(s *solver.RefSolver, id plan.ID, at int64) plan.Atom {
	sigma := s.NewSATVar().Lit()
	s.NewClause(sigma)
	return plan.Atom{
		ID:    id,
		Kind:  plan.Impulse,
		Sigma: sigma,
		Vars: map[string]plan.Expression{
			plan.NameAT: plan.ArithExpr{Lin: plan.LinExpr{Constant: plan.RationalFromInt(at)}},
		},
	}
}

// varAtom builds an impulse atom whose AT expression is a bare theory
// variable rather than a constant, so its point value comes from the
// linear theory's default (0, the unset lower bound's fallback) and can
// be moved by SetLB without ever being frozen to a fixed point.
func varAtom(s *solver.RefSolver, id plan.ID, atVar plan.Var) plan.Atom {
	sigma := s.NewSATVar().Lit()
	s.NewClause(sigma)
	return plan.Atom{
		ID:    id,
		Kind:  plan.Impulse,
		Sigma: sigma,
		Vars: map[string]plan.Expression{
			plan.NameAT: plan.ArithExpr{Lin: plan.LinExpr{Terms: []plan.LinTerm{{Var: atVar, Num: 1, Den: 1}}}},
		},
	}
}

// recordingListener collects every notification an Executor fans out, in
// call order, for assertions against the dispatch phases.
type recordingListener struct {
	states    []plan.State
	ticks     []plan.InfRational
	starting  [][]plan.ID
	started   [][]plan.ID
	ending    [][]plan.ID
	ended     [][]plan.ID
}

func ids(atoms []plan.Atom) []plan.ID {
	out := make([]plan.ID, len(atoms))
	for i, a := range atoms {
		out[i] = a.ID
	}
	return out
}

func (r *recordingListener) ExecutorStateChanged(s plan.State)  { r.states = append(r.states, s) }
func (r *recordingListener) Tick(t plan.InfRational)            { r.ticks = append(r.ticks, t) }
func (r *recordingListener) Starting(atoms []plan.Atom)         { r.starting = append(r.starting, ids(atoms)) }
func (r *recordingListener) Start(atoms []plan.Atom)            { r.started = append(r.started, ids(atoms)) }
func (r *recordingListener) Ending(atoms []plan.Atom)           { r.ending = append(r.ending, ids(atoms)) }
func (r *recordingListener) End(atoms []plan.Atom)              { r.ended = append(r.ended, ids(atoms)) }

// newFixture builds a RefSolver with a single impulse atom at AT=0, a
// horizon of 1, and an Executor registered against it, then runs the
// initial solve (the step newSession performs before any tick in the
// CLI). UnitsPerTick defaults to 1.
func newFixture(t *testing.T) (*Executor, *solver.RefSolver, plan.Atom) {
	t.Helper()
	s := solver.NewRefSolver()
	ex := New(DefaultConfig(), s, testutil.NewFixedIDGenerator("exec-test"))

	a := constAtom(s, 1, 0)
	s.AddAtom(a, "at-location")
	s.SetHorizon(plan.ArithExpr{Lin: plan.LinExpr{Constant: plan.RationalFromInt(1)}})

	require.True(t, s.Solve())
	return ex, s, a
}

func TestNew_DefaultsNameAndConfig(t *testing.T) {
	s := solver.NewRefSolver()
	ex := New(Config{}, s, testutil.NewFixedIDGenerator("fallback"))
	assert.Equal(t, "fallback", ex.Name())
	assert.Equal(t, plan.Reasoning, ex.State())
}

func TestNew_HonorsExplicitName(t *testing.T) {
	s := solver.NewRefSolver()
	ex := New(Config{Name: "custom"}, s, testutil.NewFixedIDGenerator("unused"))
	assert.Equal(t, "custom", ex.Name())
}

// P1: after the initial solve, the executor reaches Idle (not yet
// started) or Executing (already started), never stays in Reasoning.
func TestInitialSolve_TransitionsOutOfReasoning(t *testing.T) {
	ex, _, _ := newFixture(t)
	assert.NotEqual(t, plan.Reasoning, ex.State())
	assert.Equal(t, plan.Idle, ex.State())
}

func TestStartExecution_EntersExecuting(t *testing.T) {
	ex, _, _ := newFixture(t)
	ex.StartExecution()
	assert.Equal(t, plan.Executing, ex.State())
	assert.True(t, ex.IsRunning())
}

func TestPauseExecution_EntersIdleAndStopsTicks(t *testing.T) {
	ex, _, _ := newFixture(t)
	ex.StartExecution()
	ex.PauseExecution()
	assert.Equal(t, plan.Idle, ex.State())
	assert.False(t, ex.IsRunning())

	before := ex.CurrentTime()
	require.NoError(t, ex.Tick())
	assert.Equal(t, 0, before.Cmp(ex.CurrentTime()), "a paused executor must not advance time on Tick")
}

// S1-style scenario: one impulse atom at AT=0, horizon=1, default
// UnitsPerTick=1. Tick 1 dispatches the pulse at t=0 (drainPulses uses
// current_time=0, which still satisfies t<=current_time) and advances
// current_time to 1 without yet satisfying the horizon check, which runs
// before the advance. Tick 2 finds no pulses left and current_time=1
// meets the horizon, reaching Finished.
func TestTick_ImpulseAtomReachesFinishedAfterTwoTicks(t *testing.T) {
	ex, _, _ := newFixture(t)
	ex.StartExecution()

	require.NoError(t, ex.Tick())
	assert.Equal(t, plan.Executing, ex.State())
	assert.Equal(t, 0, ex.CurrentTime().Cmp(plan.FromInt(1)))

	require.NoError(t, ex.Tick())
	assert.Equal(t, plan.Finished, ex.State())
}

func TestTick_DispatchesStartingStartEndingEndForImpulse(t *testing.T) {
	ex, s, _ := newFixture(t)
	ln := &recordingListener{}
	ex.RegisterListener(ln)
	ex.StartExecution()

	require.NoError(t, ex.Tick())

	require.Len(t, ln.starting, 1)
	assert.Equal(t, []plan.ID{1}, ln.starting[0])
	require.Len(t, ln.started, 1)
	assert.Equal(t, []plan.ID{1}, ln.started[0])
	require.Len(t, ln.ending, 1)
	assert.Equal(t, []plan.ID{1}, ln.ending[0])
	require.Len(t, ln.ended, 1)
	assert.Equal(t, []plan.ID{1}, ln.ended[0])

	require.NotEmpty(t, ln.states)
	assert.Contains(t, ln.states, plan.Executing)
	_, ok := s.Atom(1)
	assert.True(t, ok)
}

func TestExecuting_EmptyAfterImpulseDispatch(t *testing.T) {
	ex, _, _ := newFixture(t)
	ex.StartExecution()
	require.NoError(t, ex.Tick())
	assert.Empty(t, ex.Executing(), "an impulse atom starts and ends within the same drain, never staying in the executing set")
}

// R1: DontStartYet postpones a start pulse past its originally-solved
// time; absorbing the delay forces a re-solve that pushes the pulse
// forward rather than dispatching it.
func TestDontStartYet_DelaysAVariableStart(t *testing.T) {
	s := solver.NewRefSolver()
	ex := New(DefaultConfig(), s, testutil.NewFixedIDGenerator("delay-test"))

	atVar := s.NewSATVar()
	a := varAtom(s, 1, atVar)
	s.AddAtom(a, "at-location")
	s.SetHorizon(plan.ArithExpr{Lin: plan.LinExpr{Constant: plan.RationalFromInt(5)}})
	require.True(t, s.Solve())

	ex.DontStartYet(map[plan.ID]plan.Rational{1: plan.RationalFromInt(2)})
	ex.StartExecution()

	require.NoError(t, ex.Tick())
	assert.Equal(t, plan.Executing, ex.State())

	lb, _ := s.ArithBounds(plan.ArithExpr{Lin: plan.LinExpr{Terms: []plan.LinTerm{{Var: atVar, Num: 1, Den: 1}}}})
	assert.True(t, lb.Cmp(plan.FromInt(0)) > 0, "absorbing the delay must raise AT's lower bound above its original point value")
}

// B2/ConstantDelayRequested: delaying a solver-constant expression is
// rejected outright rather than silently ignored.
func TestDontStartYet_RejectsConstantExpression(t *testing.T) {
	ex, _, _ := newFixture(t)
	ex.DontStartYet(map[plan.ID]plan.Rational{1: plan.RationalFromInt(1)})
	ex.StartExecution()

	err := ex.Tick()
	require.Error(t, err)
	assert.True(t, IsKind(err, ConstantDelayRequested))
	assert.Equal(t, plan.Failed, ex.State())
}

// adversarialStartListener always delays the lowest-id atom in the
// current Starting batch (the same slice drainPulses notifies listeners
// with on every restart). Any single atom's absorbed delay pushes it
// past current_time on its own, so with only one atom the delay loop
// would escape after one restart; with several atoms sitting on the
// same pulse, delaying them one at a time forces drainPulses to restart
// once per remaining atom, which is what exercises the restart bound.
type adversarialStartListener struct {
	ex    *Executor
	delay plan.Rational
}

func (a *adversarialStartListener) ExecutorStateChanged(plan.State) {}
func (a *adversarialStartListener) Tick(plan.InfRational)           {}
func (a *adversarialStartListener) Starting(atoms []plan.Atom) {
	if len(atoms) == 0 {
		return
	}
	a.ex.DontStartYet(map[plan.ID]plan.Rational{atoms[0].ID: a.delay})
}
func (a *adversarialStartListener) Start([]plan.Atom)  {}
func (a *adversarialStartListener) Ending([]plan.Atom) {}
func (a *adversarialStartListener) End([]plan.Atom)    {}

// ExhaustedReSolve: a listener that keeps postponing whichever atom is
// still due must not hang drainPulses forever. Once restarts exceed
// MaxReSolveAttempts the tick fails cleanly instead of looping until
// every pulse finally clears current_time on its own.
func TestDrainPulses_AdversarialListenerExhaustsReSolveBudget(t *testing.T) {
	s := solver.NewRefSolver()
	cfg := DefaultConfig()
	cfg.MaxReSolveAttempts = 2
	ex := New(cfg, s, testutil.NewFixedIDGenerator("exhaust-test"))

	for id := plan.ID(1); id <= 3; id++ {
		atVar := s.NewSATVar()
		s.AddAtom(varAtom(s, id, atVar), "at-location")
	}
	s.SetHorizon(plan.ArithExpr{Lin: plan.LinExpr{Constant: plan.RationalFromInt(100)}})
	require.True(t, s.Solve())

	ex.RegisterListener(&adversarialStartListener{ex: ex, delay: plan.RationalFromInt(1)})
	ex.StartExecution()

	err := ex.Tick()
	require.Error(t, err)
	assert.True(t, IsKind(err, ExhaustedReSolve))
	assert.Equal(t, plan.Failed, ex.State())
}

// S6: Adapt applies immediately but defers its state transition and
// re-solve to the next Tick.
func TestAdapt_DefersStateTransitionToNextTick(t *testing.T) {
	ex, s, _ := newFixture(t)
	ex.StartExecution()
	require.NoError(t, ex.Tick()) // drains the t=0 pulse, still Executing

	applied := false
	err := ex.Adapt(func(sv solver.Solver) error {
		applied = true
		second := constAtom(s, 2, 1)
		sv.AddAtom(second, "at-location")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, applied, "Adapt must run fn synchronously")
	assert.Equal(t, plan.Executing, ex.State(), "the state transition is deferred to the next Tick")

	require.NoError(t, ex.Tick())
	assert.Contains(t, []plan.State{plan.Executing, plan.Finished}, ex.State())
}

func TestAdapt_PropagatesScriptError(t *testing.T) {
	ex, _, _ := newFixture(t)
	sentinel := assertError("boom")
	err := ex.Adapt(func(solver.Solver) error { return sentinel })
	assert.Equal(t, sentinel, err)
}

type assertError string

func (e assertError) Error() string { return string(e) }

// Failure forces the reported atoms' activation literals false; when a
// root-level unit clause already fixed sigma true, no backjump can
// recover and the executor reports UnsatisfiableUnderExecution.
func TestFailure_UnrecoverableConflictFailsExecution(t *testing.T) {
	ex, _, atom := newFixture(t)
	ex.StartExecution()

	// atom.Sigma was forced true by a root-level unit clause in
	// newFixture/constAtom, before the solver's initial solve took any
	// decision; no backjump can undo a root-level assignment, so
	// conflicting it out here is unrecoverable.
	err := ex.Failure([]plan.Atom{atom})
	require.Error(t, err)
	assert.True(t, IsExecutionFailed(err))
	assert.True(t, IsKind(err, UnsatisfiableUnderExecution))
	assert.Equal(t, plan.Failed, ex.State())
}

// B1/InconsistentProblem: a directly contradictory pair of unit clauses
// fails the initial solve and the executor transitions straight to
// Failed without ever reaching Idle/Executing.
func TestSolve_InconsistentProblemFailsExecutor(t *testing.T) {
	s := solver.NewRefSolver()
	ex := New(DefaultConfig(), s, testutil.NewFixedIDGenerator("unsat-test"))

	v := s.NewSATVar()
	l := v.Lit()
	s.NewClause(l)
	s.NewClause(l.Negate())

	assert.False(t, s.Solve())
	assert.Equal(t, plan.Failed, ex.State())
}

func TestListener_ReceivesStateChangesInOrder(t *testing.T) {
	ex, _, _ := newFixture(t)
	ln := &recordingListener{}
	ex.RegisterListener(ln)

	ex.StartExecution()
	require.NoError(t, ex.Tick())
	require.NoError(t, ex.Tick())

	assert.Equal(t, []plan.State{plan.Executing, plan.Finished}, ln.states)
}

func TestExecuting_SortedByID(t *testing.T) {
	atoms := []plan.Atom{{ID: 3}, {ID: 1}, {ID: 2}}
	sortAtoms(atoms)
	assert.Equal(t, []plan.ID{1, 2, 3}, ids(atoms))
}

func TestFailureKind_StringsAreStable(t *testing.T) {
	cases := map[FailureKind]string{
		InconsistentProblem:         "inconsistent_problem",
		UnsatisfiableUnderExecution: "unsatisfiable_under_execution",
		ConstantDelayRequested:      "constant_delay_requested",
		TheoryConflict:              "theory_conflict",
		ExhaustedReSolve:            "exhausted_resolve",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestIsKind_FalseForNonExecutionError(t *testing.T) {
	assert.False(t, IsKind(assertError("plain"), InconsistentProblem))
	assert.False(t, IsExecutionFailed(assertError("plain")))
}
