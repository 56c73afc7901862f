// Package solver defines the constraint-solver collaborator interface the
// execution core depends on (spec.md section 6) and a minimal reference
// implementation of it (reference.go) used for tests and the cmd/plexa
// demo.
//
// The real flaw/resolver causal search that picks a plan is out of scope
// here exactly as it is in spec.md section 1: this package only implements
// the operations the executor actually calls against the solver, the
// linear-rational theory, and the ordered-values theory.
package solver

import "github.com/ratioSolver/PlExA/internal/plan"

// LitValue is the three-valued result of asking the SAT core for a
// literal's current assignment.
type LitValue int

const (
	Undefined LitValue = iota
	True
	False
)

// Predicate identifies a relevant predicate classification (spec.md
// section 4.3: "A predicate is relevant if the solver classifies it as
// impulse or interval").
type Predicate struct {
	Name string
	Kind plan.Kind
}

// Flaw is the minimal flaw shape the executor cares about: whether it is
// an atom-flaw, and if so which atom it concerns (spec.md section 4.2).
type Flaw struct {
	Atom      plan.Atom
	IsAtomFlaw bool
}

// SATCore is the boolean satisfiability core the executor and its theory
// talk to, per the concept-level names in spec.md section 6.
type SATCore interface {
	NewSATVar() plan.Var
	NewClause(lits ...plan.Lit) bool
	Value(l plan.Lit) LitValue
	Propagate() bool
	Pop()
	RootLevel() bool
	TakeDecision(l plan.Lit)
	Solve() bool
}

// LinearTheory is the linear-rational theory the executor pushes bounds
// into.
type LinearTheory interface {
	NewVar(lin plan.LinExpr) plan.Var
	ValueOf(lin plan.LinExpr) plan.Rational
	SetLB(v plan.Var, val plan.InfRational, reason plan.Lit) bool
	SetUB(v plan.Var, val plan.InfRational, reason plan.Lit) bool
	Set(v plan.Var, val plan.InfRational, reason plan.Lit) bool
	// LastConflict returns the explanation clause for the most recent
	// SetLB/SetUB/Set failure, valid until the next call into the theory.
	LastConflict() []plan.Lit
}

// OrderedValuesTheory is the enum/ordered-values theory behind EnumExpr.
type OrderedValuesTheory interface {
	// Values returns the current candidate set for v (spec.md section 6:
	// "value(var) -> set<ref>"; named Values here because SATCore already
	// defines Value(lit) on the same Solver type).
	Values(v plan.Var) []plan.Ref
	Allows(v plan.Var, ref plan.Ref) plan.Lit
}

// Introspection is the atom/expression introspection surface spec.md
// section 6 lists under "Atom introspection".
type Introspection interface {
	IsImpulse(a plan.Atom) bool
	IsInterval(a plan.Atom) bool
	IsConstant(e plan.Expression) bool
	ArithValue(e plan.Expression) plan.InfRational
	ArithBounds(e plan.Expression) (plan.InfRational, plan.InfRational)
	Predicates() []Predicate
	AtomsOf(p Predicate) []plan.Atom
	Horizon() plan.Expression
}

// TheoryHost is the theory plug-in protocol a propagation theory uses to
// talk back to the solver core (spec.md section 6 and section 9's note
// that swap_conflict should be "a method on the theory interface that
// receives the foreign theory's conflict, not a public mutable field").
type TheoryHost interface {
	Bind(v plan.Var)
	Record(clause []plan.Lit)
	SwapConflict(foreign []plan.Lit)
	BacktrackAnalyzeAndBackjump() bool
	Conflict() []plan.Lit
}

// PropagationTheory is the plugin interface the solver drives (spec.md
// section 4.1 and section 9's "two interfaces, not inheritance"). It is
// implemented by theory.Execution, not by executor.Executor.
type PropagationTheory interface {
	OnPropagate(p plan.Lit) bool
	Push()
	Pop()
	Check() bool
}

// SolverObserver is the callback interface the solver drives on its own
// lifecycle events; executor.Executor implements this.
type SolverObserver interface {
	OnStartedSolving()
	OnSolutionFound()
	OnInconsistentProblem()
	OnFlawCreated(f Flaw)
}

// Solver is the full collaborator surface the executor depends on.
type Solver interface {
	SATCore
	LinearTheory
	OrderedValuesTheory
	Introspection
	TheoryHost

	RegisterObserver(o SolverObserver)
	RegisterTheory(t PropagationTheory) TheoryHost

	AddAtom(a plan.Atom, predicateName string)
}
