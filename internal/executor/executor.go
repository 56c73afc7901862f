// Package executor implements the State Machine & Dispatcher and the
// Listener Fan-out (spec.md section 2, components 5 and 6): the top-level
// controller that processes ticks, drives the pulse timeline, negotiates
// delays with listeners, freezes values at dispatch, and transitions
// between Reasoning/Adapting/Idle/Executing/Finished/Failed.
package executor

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ratioSolver/PlExA/internal/adaptation"
	"github.com/ratioSolver/PlExA/internal/plan"
	"github.com/ratioSolver/PlExA/internal/solver"
	"github.com/ratioSolver/PlExA/internal/theory"
	"github.com/ratioSolver/PlExA/internal/timeline"
)

// Config holds the executor's construction-time parameters (spec.md
// section 6, "Configuration").
type Config struct {
	// Name optionally identifies this executor in logs; if empty, a
	// fresh id is generated.
	Name string
	// UnitsPerTick is the fixed tick window width (default 1).
	UnitsPerTick plan.Rational
	// MaxReSolveAttempts bounds the delay-absorb/re-solve loop within a
	// single tick (spec.md section 4.4, "Termination"). Defaults to 64
	// when zero.
	MaxReSolveAttempts int
}

// DefaultConfig returns a Config with units_per_tick = 1 and a re-solve
// bound of 64.
func DefaultConfig() Config {
	return Config{UnitsPerTick: plan.RationalFromInt(1), MaxReSolveAttempts: 64}
}

// AdaptFunc applies an adaptation request (a parsed scenario/script,
// typically produced by internal/script) directly against the solver —
// new atoms, new clauses, new flaws. It is the executor's only coupling
// to "parsing of the planning domain script", which spec.md section 1
// lists as an external collaborator, not part of the core.
type AdaptFunc func(solver.Solver) error

// Executor is the plan execution core: the single value that implements
// solver.SolverObserver so the solver can call back into it, while a
// separate *theory.Execution (registered alongside it) implements
// solver.PropagationTheory. spec.md section 9 describes a single value
// implementing both interfaces; splitting them across two cooperating
// types keeps the Execution Theory and the Dispatcher as the two
// separately-budgeted components spec.md section 2 lists them as,
// without reintroducing inheritance — still two interfaces, not one type
// wearing two hats.
type Executor struct {
	mu      sync.Mutex
	running atomic.Bool

	name               string
	unitsPerTick       plan.Rational
	maxReSolveAttempts int

	solver   solver.Solver
	store    *adaptation.Store
	timeline *timeline.PulseTimeline
	xi       plan.Lit

	currentTime plan.InfRational
	state       plan.State

	executing map[plan.ID]plan.Atom
	dontStart map[plan.ID]plan.Rational
	dontEnd   map[plan.ID]plan.Rational

	pendingAdapt bool
	callbackErr  error
	lastFailure  error

	listeners listeners
	idGen     IDGenerator
	log       *slog.Logger
}

// New constructs an Executor driving s, registering itself as the
// solver's observer and installing a fresh execution theory guarded by a
// newly-allocated global literal xi (spec.md section 3, "Global guard
// xi").
func New(cfg Config, s solver.Solver, idGen IDGenerator) *Executor {
	maxAttempts := cfg.MaxReSolveAttempts
	if maxAttempts <= 0 {
		maxAttempts = 64
	}
	unitsPerTick := cfg.UnitsPerTick
	if unitsPerTick.IsZero() {
		unitsPerTick = plan.RationalFromInt(1)
	}

	xiVar := s.NewSATVar()
	xi := xiVar.Lit()
	s.Bind(xiVar)

	store := adaptation.New()
	th := theory.New(store, s, xi)
	s.RegisterTheory(th)

	name := cfg.Name
	if name == "" {
		name = idGen.Generate()
	}

	ex := &Executor{
		name:               name,
		unitsPerTick:       unitsPerTick,
		maxReSolveAttempts: maxAttempts,
		solver:             s,
		store:              store,
		timeline:           timeline.New(),
		xi:                 xi,
		currentTime:        plan.FromInt(0),
		state:              plan.Reasoning,
		executing:          make(map[plan.ID]plan.Atom),
		dontStart:          make(map[plan.ID]plan.Rational),
		dontEnd:            make(map[plan.ID]plan.Rational),
		idGen:              idGen,
		log:                slog.Default().With("executor", name),
	}
	s.RegisterObserver(ex)
	return ex
}

// RegisterListener adds ln to the fan-out registry.
func (e *Executor) RegisterListener(ln Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners.register(ln)
}

// Name returns the executor's identifier.
func (e *Executor) Name() string { return e.name }

// CurrentTime returns the executor's current time.
func (e *Executor) CurrentTime() plan.InfRational {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTime
}

// State returns the executor's current top-level state.
func (e *Executor) State() plan.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsRunning reports whether the executor is dispatching, using the
// atomic flag so observers may read it without the mutex (spec.md
// section 5).
func (e *Executor) IsRunning() bool { return e.running.Load() }

// LastFailure returns the ExecutionFailed this executor most recently
// transitioned to Failed for, or nil if it has never failed. Unlike the
// error Tick/Adapt/Failure return directly, this also covers the initial
// out-of-Tick solve (solver.SolverObserver.OnInconsistentProblem), which
// has no caller-visible error value of its own to attach a FailureKind to.
func (e *Executor) LastFailure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFailure
}

// Executing returns the atoms currently in the executing set, sorted by
// id for determinism.
func (e *Executor) Executing() []plan.Atom {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]plan.Atom, 0, len(e.executing))
	for _, a := range e.executing {
		out = append(out, a)
	}
	sortAtoms(out)
	return out
}

// StartExecution transitions the executor into Executing and marks it
// running.
func (e *Executor) StartExecution() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running.Store(true)
	e.setState(plan.Executing)
}

// PauseExecution stops future dispatch; it does not cancel an in-flight
// solve (spec.md section 5).
func (e *Executor) PauseExecution() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running.Store(false)
	e.setState(plan.Idle)
}

// DontStartYet registers additional start delays, keyed by atom id. It
// does not acquire the executor's lock, so it is called either from
// within a Listener.Starting/Ending callback, which already runs under
// that lock, or while no other goroutine is using the executor (spec.md
// section 5: a
// listener must never call Tick/Adapt/Failure, which would deadlock the
// non-reentrant mutex — DontStartYet/DontEndYet are the one reentrant
// path, by design). Calling it twice with the same (atom, delay) is a
// no-op (property P5).
func (e *Executor) DontStartYet(delays map[plan.ID]plan.Rational) {
	for id, d := range delays {
		e.dontStart[id] = d
	}
}

// DontEndYet registers additional end delays; see DontStartYet.
func (e *Executor) DontEndYet(delays map[plan.ID]plan.Rational) {
	for id, d := range delays {
		e.dontEnd[id] = d
	}
}

// Failure handles an external failure report for the given atoms
// (spec.md section 4.5): it conflicts out their activation literals and
// asks the solver to find an alternative plan.
func (e *Executor) Failure(atoms []plan.Atom) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failureLocked(atoms)
}

func (e *Executor) failureLocked(atoms []plan.Atom) error {
	conflict := make([]plan.Lit, 0, len(atoms))
	for _, a := range atoms {
		conflict = append(conflict, a.Sigma.Negate())
	}
	e.solver.SwapConflict(conflict)
	if !e.solver.BacktrackAnalyzeAndBackjump() {
		return e.fail(newFailure(UnsatisfiableUnderExecution, "backjump failed handling reported failure"))
	}
	if err := e.solveLocked(); err != nil {
		return e.fail(err)
	}
	return nil
}

// Adapt applies fn against the solver and queues an adaptation request:
// the state transition and re-solve happen on the next Tick (scenario
// S6), so a failure caused by the adaptation itself is reported from
// Tick, not from Adapt. Adapt only fails if fn itself errors — a script
// or schema problem, not a solver failure.
func (e *Executor) Adapt(fn AdaptFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e.solver); err != nil {
		return err
	}
	e.pendingAdapt = true
	return nil
}

// Tick runs one pass of the dispatcher algorithm (spec.md section 4.4).
func (e *Executor) Tick() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pendingAdapt {
		if err := e.processPendingAdapt(); err != nil {
			return err
		}
	}

	if !e.running.Load() {
		return nil
	}

	if err := e.drainPulses(); err != nil {
		return err
	}

	if e.horizonReachedLocked() && len(e.dontEnd) == 0 {
		e.setState(plan.Finished)
	}

	e.currentTime = e.currentTime.Add(e.unitsPerTick)
	e.listeners.tick(e.currentTime)
	return nil
}

func (e *Executor) processPendingAdapt() error {
	e.pendingAdapt = false
	wasRunning := e.running.Load()
	if wasRunning {
		e.setState(plan.Adapting)
	} else {
		e.setState(plan.Reasoning)
	}
	if err := e.solveLocked(); err != nil {
		return e.fail(err)
	}
	return nil
}

// drainPulses is the inner loop of spec.md section 4.4 step 3: while
// pulses is non-empty and its minimum is <= current_time, dispatch it.
//
// An absorbed delay moves the delayed atom past current_time, so one atom
// causes at most one restart; but a listener that postpones a different
// atom of the same pulse on every Starting/Ending notification (buggy or
// adversarial) can make the delay-absorb/re-solve branch below restart
// once per atom, and without a bound indefinitely, while holding e.mu.
// resolveAttempts bounds that restart count against maxReSolveAttempts,
// per spec.md section 4.4's termination requirement.
func (e *Executor) drainPulses() error {
	resolveAttempts := 0
	for {
		t, ok := e.timeline.Min()
		if !ok || t.Greater(e.currentTime) {
			return nil
		}

		starting := e.timeline.StartAtomsAt(t)
		ending := e.timeline.EndAtomsAt(t)

		e.listeners.starting(starting)
		e.listeners.ending(ending)

		delaysHappened, err := e.absorbDelays(starting, ending)
		if err != nil {
			return e.fail(err)
		}
		if delaysHappened {
			resolveAttempts++
			if resolveAttempts > e.maxReSolveAttempts {
				return e.fail(newFailuref(ExhaustedReSolve, "exceeded %d delay-absorb/re-solve restarts in one tick", e.maxReSolveAttempts))
			}
			if !e.solver.Propagate() {
				return e.fail(newFailure(TheoryConflict, "propagation failed after delay absorption"))
			}
			if err := e.solveLocked(); err != nil {
				return e.fail(err)
			}
			e.timeline.Rebuild(e.solver, e.currentTime)
			continue // timeline changed: restart, do not keep draining the old t
		}

		if err := e.freezeStarts(starting); err != nil {
			return e.fail(err)
		}
		e.listeners.start(starting)

		if err := e.freezeEnds(ending); err != nil {
			return e.fail(err)
		}
		e.listeners.end(ending)

		e.timeline.Remove(t)
	}
}

var skipFreezeStart = map[string]bool{
	plan.NameAT:       true,
	plan.NameDURATION: true,
	plan.NameEND:      true,
}

func (e *Executor) absorbDelays(starting, ending []plan.Atom) (bool, error) {
	h1, err := e.absorbSide(starting, e.dontStart, plan.Atom.StartName)
	if err != nil {
		return false, err
	}
	h2, err := e.absorbSide(ending, e.dontEnd, plan.Atom.EndName)
	if err != nil {
		return false, err
	}
	return h1 || h2, nil
}

func (e *Executor) absorbSide(atoms []plan.Atom, dont map[plan.ID]plan.Rational, nameOf func(plan.Atom) string) (bool, error) {
	happened := false
	for _, a := range atoms {
		d, ok := dont[a.ID]
		if !ok {
			continue
		}
		name := nameOf(a)
		expr, ok := a.Get(name)
		if !ok {
			delete(dont, a.ID)
			continue
		}
		if e.solver.IsConstant(expr) {
			return false, newFailuref(ConstantDelayRequested, "atom %d: cannot delay constant expression %q", uint64(a.ID), name)
		}
		ad, ok := e.store.Get(a.ID)
		if !ok {
			delete(dont, a.ID)
			continue
		}
		delta := d
		if e.unitsPerTick.Cmp(delta) > 0 {
			delta = e.unitsPerTick
		}
		lb := e.solver.ArithValue(expr).Add(delta)
		e.store.UpdateArithLB(a.ID, name, lb)

		ae := expr.(plan.ArithExpr)
		v := e.solver.NewVar(ae.Lin)
		if !e.solver.SetLB(v, lb, ad.SigmaXi) {
			e.solver.SwapConflict(e.solver.LastConflict())
			if !e.solver.BacktrackAnalyzeAndBackjump() {
				return false, newFailure(UnsatisfiableUnderExecution, "backjump failed absorbing delay")
			}
		}
		delete(dont, a.ID)
		happened = true
	}
	return happened, nil
}

func (e *Executor) freezeStarts(atoms []plan.Atom) error {
	for _, a := range atoms {
		ad, ok := e.store.Get(a.ID)
		if !ok {
			continue
		}
		for name, expr := range a.Vars {
			if skipFreezeStart[name] {
				continue
			}
			if err := e.freezeExpr(a, ad, name, expr); err != nil {
				return err
			}
		}
		e.executing[a.ID] = a
	}
	return nil
}

func (e *Executor) freezeEnds(atoms []plan.Atom) error {
	for _, a := range atoms {
		ad, ok := e.store.Get(a.ID)
		if !ok {
			delete(e.executing, a.ID)
			continue
		}
		name := a.EndName()
		if expr, ok := a.Get(name); ok {
			if err := e.freezeExpr(a, ad, name, expr); err != nil {
				return err
			}
		}
		delete(e.executing, a.ID)
	}
	return nil
}

func (e *Executor) freezeExpr(a plan.Atom, ad *adaptation.Adaptation, name string, expr plan.Expression) error {
	switch ex := expr.(type) {
	case plan.BoolExpr:
		v := e.solver.Value(ex.Lit)
		if v == solver.Undefined {
			return nil
		}
		e.store.FreezeBool(a.ID, name, v == solver.True)
	case plan.ArithExpr:
		if ex.Lin.IsConstant() {
			return nil
		}
		val := e.solver.ArithValue(expr)
		e.store.FreezeArith(a.ID, name, val)
		vr := e.solver.NewVar(ex.Lin)
		if !e.solver.Set(vr, val, ad.SigmaXi) {
			e.solver.SwapConflict(e.solver.LastConflict())
			if !e.solver.BacktrackAnalyzeAndBackjump() {
				return newFailure(UnsatisfiableUnderExecution, "backjump failed freezing expression")
			}
		}
	case plan.EnumExpr:
		values := e.solver.Values(ex.Var)
		if len(values) == 0 {
			return nil
		}
		e.store.FreezeEnum(a.ID, name, values[0])
	}
	return nil
}

func (e *Executor) horizonReachedLocked() bool {
	h := e.solver.Horizon()
	if h == nil {
		return false
	}
	return e.solver.ArithValue(h).LessEq(e.currentTime)
}

func (e *Executor) solveLocked() error {
	e.callbackErr = nil
	ok := e.solver.Solve()
	if e.callbackErr != nil {
		return e.callbackErr
	}
	if !ok {
		return newFailure(InconsistentProblem, "solver reported no solution")
	}
	return nil
}

// fail transitions to Failed, records err as the reason LastFailure
// reports, and returns err, so every Failed transition (even one a
// caller never sees an error for directly) carries its FailureKind.
func (e *Executor) fail(err error) error {
	e.lastFailure = err
	e.setState(plan.Failed)
	return err
}

func (e *Executor) setState(s plan.State) {
	if e.state == s {
		return
	}
	e.state = s
	e.listeners.stateChanged(s)
}

func sortAtoms(atoms []plan.Atom) {
	for i := 1; i < len(atoms); i++ {
		for j := i; j > 0 && atoms[j-1].ID > atoms[j].ID; j-- {
			atoms[j-1], atoms[j] = atoms[j], atoms[j-1]
		}
	}
}

// ---- solver.SolverObserver ----

// OnStartedSolving implements solver.SolverObserver (spec.md section 4.4,
// "solver_started_solving while state != Reasoning -> Adapting").
func (e *Executor) OnStartedSolving() {
	if e.state != plan.Reasoning {
		e.setState(plan.Adapting)
	}
}

// OnSolutionFound implements solver.SolverObserver (spec.md section 4.4).
func (e *Executor) OnSolutionFound() {
	switch e.solver.Value(e.xi) {
	case solver.False:
		e.callbackErr = newFailure(UnsatisfiableUnderExecution, "global guard xi forced false")
		return
	case solver.Undefined:
		e.solver.TakeDecision(e.xi)
		if e.solver.Value(e.xi) == solver.Undefined {
			if !e.solver.Solve() {
				e.callbackErr = newFailure(UnsatisfiableUnderExecution, "solve failed deciding global guard")
				return
			}
		}
	}
	e.timeline.Rebuild(e.solver, e.currentTime)
	if e.running.Load() {
		e.setState(plan.Executing)
	} else {
		e.setState(plan.Idle)
	}
}

// OnInconsistentProblem implements solver.SolverObserver (spec.md
// section 4.4, "solver_inconsistent_problem: clear timeline; transition
// to Failed").
func (e *Executor) OnInconsistentProblem() {
	e.timeline = timeline.New()
	e.fail(newFailure(InconsistentProblem, "solver reported no solution"))
}

// OnFlawCreated implements solver.SolverObserver, delegating to the
// Adaptation Store (spec.md section 4.2).
func (e *Executor) OnFlawCreated(f solver.Flaw) {
	e.store.OnFlawCreated(e.solver, f, e.xi, e.currentTime)
}
