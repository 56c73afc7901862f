package solver

import (
	"math/big"
	"sort"

	"github.com/ratioSolver/PlExA/internal/plan"
)

// RefSolver is a minimal, in-memory implementation of Solver. It performs
// real unit propagation and a simplified chronological backjump over a SAT
// trail, and tracks linear/ordered-values domains directly — enough to
// exercise the executor's contract with its solver collaborator in tests
// and the cmd/plexa demo. It deliberately does not implement flaw/resolver
// causal search: that remains the external, out-of-scope black box spec.md
// section 1 describes. Callers build a concrete "solution" with the Add*
// builder methods below and drive it with TakeDecision/Solve.
type RefSolver struct {
	nextVar plan.Var

	assigned map[plan.Var]bool
	truth    map[plan.Var]bool
	level    int
	trail    []trailEntry
	clauses  [][]plan.Lit
	bound    map[plan.Var]bool // vars Bind() was called on, for introspection

	observer SolverObserver
	theory   PropagationTheory
	conflict []plan.Lit

	linVars map[plan.Var]*linRec
	linErr  []plan.Lit
	linUndo []linUndoEntry

	ovVars map[plan.Var]*ovRec

	atoms      map[plan.ID]plan.Atom
	predicates []Predicate
	predAtoms  map[string][]plan.ID
	horizon    plan.Expression
}

type trailEntry struct {
	lit    plan.Lit
	level  int
	reason []plan.Lit // nil for a decision literal
}

type linRec struct {
	lin plan.LinExpr
	lb  plan.InfRational
	ub  plan.InfRational
}

// linUndoEntry is one leveled undo record for a linear bound mutation,
// mirroring trailEntry for the boolean trail: SetLB/SetUB/Set push the
// bound's pre-mutation value here before narrowing it, and Pop replays
// them in reverse for the level being popped. Without this, a bound
// frozen or narrowed by theory.Execution's reassertion would survive a
// backjump past the decision that caused it (R2).
type linUndoEntry struct {
	v     plan.Var
	level int
	lb    plan.InfRational
	ub    plan.InfRational
}

type ovRec struct {
	domain map[plan.Ref]bool
	lits   map[plan.Ref]plan.Lit
}

// NewRefSolver returns an empty RefSolver.
func NewRefSolver() *RefSolver {
	return &RefSolver{
		assigned:  make(map[plan.Var]bool),
		truth:     make(map[plan.Var]bool),
		bound:     make(map[plan.Var]bool),
		linVars:   make(map[plan.Var]*linRec),
		ovVars:    make(map[plan.Var]*ovRec),
		atoms:     make(map[plan.ID]plan.Atom),
		predAtoms: make(map[string][]plan.ID),
	}
}

func (s *RefSolver) allocVar() plan.Var {
	s.nextVar++
	return s.nextVar
}

// ---- SATCore ----

func (s *RefSolver) NewSATVar() plan.Var { return s.allocVar() }

func (s *RefSolver) litValue(l plan.Lit) LitValue {
	v := l.Var()
	if !s.assigned[v] {
		return Undefined
	}
	t := s.truth[v]
	if l.Positive() {
		if t {
			return True
		}
		return False
	}
	if t {
		return False
	}
	return True
}

func (s *RefSolver) Value(l plan.Lit) LitValue { return s.litValue(l) }

func (s *RefSolver) assign(lit plan.Lit, reason []plan.Lit) bool {
	v := lit.Var()
	if s.assigned[v] {
		if s.litValue(lit) == True {
			return true
		}
		// Contradiction: conflicting unit assignments. The clause that
		// forced the opposite phase, plus this literal's reason, explains
		// it.
		s.conflict = append(append([]plan.Lit{}, reason...), lit.Negate())
		return false
	}
	s.assigned[v] = true
	s.truth[v] = lit.Positive()
	s.trail = append(s.trail, trailEntry{lit: lit, level: s.level, reason: reason})
	if s.theory != nil {
		if !s.theory.OnPropagate(lit) {
			return false
		}
	}
	return true
}

// clauseStatus reports, for a clause, whether it is satisfied, and if not
// the literals still unassigned.
func (s *RefSolver) clauseStatus(clause []plan.Lit) (satisfied bool, unassigned []plan.Lit) {
	for _, l := range clause {
		switch s.litValue(l) {
		case True:
			return true, nil
		case Undefined:
			unassigned = append(unassigned, l)
		}
	}
	return false, unassigned
}

func (s *RefSolver) unitPropagateClause(clause []plan.Lit) bool {
	satisfied, unassigned := s.clauseStatus(clause)
	if satisfied {
		return true
	}
	if len(unassigned) == 0 {
		// All literals false: conflict.
		s.conflict = append([]plan.Lit{}, clause...)
		return false
	}
	if len(unassigned) == 1 {
		return s.assign(unassigned[0], clause)
	}
	return true
}

func (s *RefSolver) NewClause(lits ...plan.Lit) bool {
	clause := append([]plan.Lit{}, lits...)
	s.clauses = append(s.clauses, clause)
	return s.unitPropagateClause(clause)
}

// Propagate runs unit propagation to a fixpoint over all clauses.
func (s *RefSolver) Propagate() bool {
	for {
		progressed := false
		for _, c := range s.clauses {
			satisfied, unassigned := s.clauseStatus(c)
			if satisfied {
				continue
			}
			if len(unassigned) == 0 {
				s.conflict = append([]plan.Lit{}, c...)
				return false
			}
			if len(unassigned) == 1 {
				before := len(s.trail)
				if !s.assign(unassigned[0], c) {
					return false
				}
				if len(s.trail) > before {
					progressed = true
				}
			}
		}
		if !progressed {
			return true
		}
	}
}

// Pop undoes every assignment made at the current decision level, every
// linear bound narrowed at that level, and decrements the level.
func (s *RefSolver) Pop() {
	if s.level == 0 {
		return
	}
	for len(s.trail) > 0 && s.trail[len(s.trail)-1].level == s.level {
		e := s.trail[len(s.trail)-1]
		s.trail = s.trail[:len(s.trail)-1]
		delete(s.assigned, e.lit.Var())
		delete(s.truth, e.lit.Var())
	}
	for len(s.linUndo) > 0 && s.linUndo[len(s.linUndo)-1].level == s.level {
		u := s.linUndo[len(s.linUndo)-1]
		s.linUndo = s.linUndo[:len(s.linUndo)-1]
		if rec, ok := s.linVars[u.v]; ok {
			rec.lb, rec.ub = u.lb, u.ub
		}
	}
	s.level--
	if s.theory != nil {
		s.theory.Pop()
	}
}

func (s *RefSolver) RootLevel() bool { return s.level == 0 }

func (s *RefSolver) TakeDecision(l plan.Lit) {
	s.level++
	if s.theory != nil {
		s.theory.Push()
	}
	s.assign(l, nil)
}

// Solve runs propagation, backjumping on conflict a bounded number of
// times. It does not perform DPLL search: the "solution" is whatever
// assignment the caller built via TakeDecision/NewClause, matching this
// package's stated scope (search itself is the external black box).
func (s *RefSolver) Solve() bool {
	if s.observer != nil {
		s.observer.OnStartedSolving()
	}
	ok := s.solveLoop()
	if !ok {
		if s.observer != nil {
			s.observer.OnInconsistentProblem()
		}
		return false
	}
	if s.observer != nil {
		s.observer.OnSolutionFound()
	}
	return true
}

const maxReSolveAttempts = 64

func (s *RefSolver) solveLoop() bool {
	for i := 0; i < maxReSolveAttempts; i++ {
		if s.Propagate() {
			return true
		}
		if !s.BacktrackAnalyzeAndBackjump() {
			return false
		}
	}
	return false
}

// ---- TheoryHost ----

func (s *RefSolver) Bind(v plan.Var) { s.bound[v] = true }

func (s *RefSolver) Record(clause []plan.Lit) {
	cp := append([]plan.Lit{}, clause...)
	s.clauses = append(s.clauses, cp)
	s.unitPropagateClause(cp)
}

func (s *RefSolver) SwapConflict(foreign []plan.Lit) {
	s.conflict = append([]plan.Lit{}, foreign...)
}

func (s *RefSolver) Conflict() []plan.Lit { return s.conflict }

// BacktrackAnalyzeAndBackjump pops decision levels until the stored
// conflict clause is no longer violated by the trail, or until it would
// pop past the root, in which case the problem is inconsistent.
func (s *RefSolver) BacktrackAnalyzeAndBackjump() bool {
	if s.conflict == nil {
		return true
	}
	for s.level > 0 {
		s.Pop()
		if satisfied, unassigned := s.clauseStatus(s.conflict); satisfied || len(unassigned) > 0 {
			s.conflict = nil
			return true
		}
	}
	return false
}

// ---- LinearTheory ----

func (s *RefSolver) ensureLin(v plan.Var) *linRec {
	rec, ok := s.linVars[v]
	if !ok {
		rec = &linRec{lb: plan.NegativeInfinity(), ub: plan.PositiveInfinity()}
		s.linVars[v] = rec
	}
	return rec
}

func (s *RefSolver) NewVar(lin plan.LinExpr) plan.Var {
	if len(lin.Terms) == 1 && lin.Constant.IsZero() {
		t := lin.Terms[0]
		if t.Num == 1 && (t.Den == 0 || t.Den == 1) {
			rec := s.ensureLin(t.Var)
			rec.lin = lin
			return t.Var
		}
	}
	v := s.allocVar()
	rec := s.ensureLin(v)
	rec.lin = lin
	return v
}

func (s *RefSolver) pointValue(v plan.Var) plan.Rational {
	rec, ok := s.linVars[v]
	if !ok {
		return plan.RationalFromInt(0)
	}
	if rec.lb.Kind == plan.Finite {
		return rec.lb.Value
	}
	return plan.RationalFromInt(0)
}

func (s *RefSolver) ValueOf(lin plan.LinExpr) plan.Rational {
	total := lin.Constant
	for _, t := range lin.Terms {
		coeffDen := t.Den
		if coeffDen == 0 {
			coeffDen = 1
		}
		scaled := plan.NewRational(t.Num, coeffDen)
		val := s.pointValue(t.Var)
		total = total.Add(mulRational(scaled, val))
	}
	return total
}

func mulRational(a, b plan.Rational) plan.Rational {
	// Rational only exposes Add/Sub/Cmp and its exact string form: the
	// coefficients 1, 0 and -1 are handled directly, any other product
	// is taken through math/big (exact while the result's numerator and
	// denominator fit in an int64).
	if a.Cmp(plan.RationalFromInt(1)) == 0 {
		return b
	}
	if a.Cmp(plan.RationalFromInt(0)) == 0 {
		return plan.RationalFromInt(0)
	}
	if a.Cmp(plan.RationalFromInt(-1)) == 0 {
		return plan.RationalFromInt(0).Sub(b)
	}
	x, _ := new(big.Rat).SetString(a.String())
	y, _ := new(big.Rat).SetString(b.String())
	p := new(big.Rat).Mul(x, y)
	return plan.NewRational(p.Num().Int64(), p.Denom().Int64())
}

// snapshotLin records rec's pre-mutation bounds at the current level so
// Pop can restore them; called just before any lb/ub narrowing below.
func (s *RefSolver) snapshotLin(v plan.Var, rec *linRec) {
	s.linUndo = append(s.linUndo, linUndoEntry{v: v, level: s.level, lb: rec.lb, ub: rec.ub})
}

func (s *RefSolver) SetLB(v plan.Var, val plan.InfRational, reason plan.Lit) bool {
	rec := s.ensureLin(v)
	if val.Cmp(rec.lb) > 0 {
		s.snapshotLin(v, rec)
		rec.lb = val
	}
	if rec.lb.Cmp(rec.ub) > 0 {
		s.linErr = []plan.Lit{reason.Negate()}
		return false
	}
	return true
}

func (s *RefSolver) SetUB(v plan.Var, val plan.InfRational, reason plan.Lit) bool {
	rec := s.ensureLin(v)
	if val.Cmp(rec.ub) < 0 {
		s.snapshotLin(v, rec)
		rec.ub = val
	}
	if rec.lb.Cmp(rec.ub) > 0 {
		s.linErr = []plan.Lit{reason.Negate()}
		return false
	}
	return true
}

func (s *RefSolver) Set(v plan.Var, val plan.InfRational, reason plan.Lit) bool {
	rec := s.ensureLin(v)
	if val.Cmp(rec.lb) < 0 || val.Cmp(rec.ub) > 0 {
		s.linErr = []plan.Lit{reason.Negate()}
		return false
	}
	s.snapshotLin(v, rec)
	rec.lb, rec.ub = val, val
	return true
}

func (s *RefSolver) LastConflict() []plan.Lit { return s.linErr }

// ---- OrderedValuesTheory ----

func (s *RefSolver) ensureOV(v plan.Var) *ovRec {
	rec, ok := s.ovVars[v]
	if !ok {
		rec = &ovRec{domain: make(map[plan.Ref]bool), lits: make(map[plan.Ref]plan.Lit)}
		s.ovVars[v] = rec
	}
	return rec
}

// SetEnumDomain is a builder method (not part of Solver) used by fixtures
// to seed an ordered-values variable's candidate set.
func (s *RefSolver) SetEnumDomain(v plan.Var, refs []plan.Ref) {
	rec := s.ensureOV(v)
	rec.domain = make(map[plan.Ref]bool, len(refs))
	for _, r := range refs {
		rec.domain[r] = true
	}
}

func (s *RefSolver) Values(v plan.Var) []plan.Ref {
	rec, ok := s.ovVars[v]
	if !ok {
		return nil
	}
	out := make([]plan.Ref, 0, len(rec.domain))
	for r := range rec.domain {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *RefSolver) Allows(v plan.Var, ref plan.Ref) plan.Lit {
	rec := s.ensureOV(v)
	if l, ok := rec.lits[ref]; ok {
		return l
	}
	nv := s.allocVar()
	l := nv.Lit()
	rec.lits[ref] = l
	if rec.domain[ref] {
		s.assign(l, nil)
	} else {
		s.assign(l.Negate(), nil)
	}
	return l
}

// NarrowEnumDomain removes every ref but keep from v's candidate set,
// simulating the propagation a real ordered-values theory performs when a
// constraint rules out candidates.
func (s *RefSolver) NarrowEnumDomain(v plan.Var, keep plan.Ref) {
	rec := s.ensureOV(v)
	rec.domain = map[plan.Ref]bool{keep: true}
}

// ---- Introspection ----

func (s *RefSolver) IsImpulse(a plan.Atom) bool  { return a.Kind == plan.Impulse }
func (s *RefSolver) IsInterval(a plan.Atom) bool { return a.Kind == plan.Interval }

func (s *RefSolver) IsConstant(e plan.Expression) bool {
	ae, ok := e.(plan.ArithExpr)
	if !ok {
		return false
	}
	return ae.Lin.IsConstant()
}

func (s *RefSolver) ArithValue(e plan.Expression) plan.InfRational {
	ae, ok := e.(plan.ArithExpr)
	if !ok {
		return plan.FromInt(0)
	}
	if ae.Lin.IsConstant() {
		return plan.FromRational(ae.Lin.Constant)
	}
	return plan.FromRational(s.ValueOf(ae.Lin))
}

func (s *RefSolver) ArithBounds(e plan.Expression) (plan.InfRational, plan.InfRational) {
	ae, ok := e.(plan.ArithExpr)
	if !ok {
		return plan.FromInt(0), plan.FromInt(0)
	}
	if ae.Lin.IsConstant() {
		v := plan.FromRational(ae.Lin.Constant)
		return v, v
	}
	if len(ae.Lin.Terms) == 1 {
		rec, ok := s.linVars[ae.Lin.Terms[0].Var]
		if ok {
			return rec.lb, rec.ub
		}
	}
	return plan.NegativeInfinity(), plan.PositiveInfinity()
}

func (s *RefSolver) Predicates() []Predicate { return s.predicates }

func (s *RefSolver) AtomsOf(p Predicate) []plan.Atom {
	ids := s.predAtoms[p.Name]
	out := make([]plan.Atom, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.atoms[id])
	}
	return out
}

func (s *RefSolver) Horizon() plan.Expression { return s.horizon }

// SetHorizon is a builder method used by fixtures to set get("horizon").
func (s *RefSolver) SetHorizon(e plan.Expression) { s.horizon = e }

// ---- Registration ----

func (s *RefSolver) RegisterObserver(o SolverObserver) { s.observer = o }

func (s *RefSolver) RegisterTheory(t PropagationTheory) TheoryHost {
	s.theory = t
	return s
}

// ---- Atom/predicate builders ----

// AddAtom registers an atom under the given predicate name and notifies
// the observer of an atom-flaw, mirroring the solver's on_flaw_created
// callback (spec.md section 4.2).
func (s *RefSolver) AddAtom(a plan.Atom, predicateName string) {
	s.atoms[a.ID] = a
	found := false
	for _, p := range s.predicates {
		if p.Name == predicateName {
			found = true
			break
		}
	}
	if !found {
		s.predicates = append(s.predicates, Predicate{Name: predicateName, Kind: a.Kind})
	}
	s.predAtoms[predicateName] = append(s.predAtoms[predicateName], a.ID)
	if s.observer != nil {
		s.observer.OnFlawCreated(Flaw{Atom: a, IsAtomFlaw: true})
	}
}

// SetLinPoint freezes v's linear domain to a single point, used by
// fixtures to describe "the current solution"'s assignment.
func (s *RefSolver) SetLinPoint(v plan.Var, val plan.InfRational) {
	rec := s.ensureLin(v)
	rec.lb, rec.ub = val, val
}

// Atom returns the registered atom for id, for tests and the CLI.
func (s *RefSolver) Atom(id plan.ID) (plan.Atom, bool) {
	a, ok := s.atoms[id]
	return a, ok
}
