// Package theory implements the Execution Theory: the propagation plugin
// registered with the solver's SAT core that re-asserts the Adaptation
// Store's committed bounds whenever their guard literals become true
// (spec.md section 4.1).
package theory

import (
	"github.com/ratioSolver/PlExA/internal/adaptation"
	"github.com/ratioSolver/PlExA/internal/plan"
	"github.com/ratioSolver/PlExA/internal/solver"
)

// Execution is the single global-guard propagation theory described in
// spec.md section 2 (component 4) and section 4.1. It holds no
// decision-level state of its own: Push/Pop/Check are no-ops, because
// every re-assertion is already guarded by a literal that the SAT trail
// tracks (spec.md section 4.1, "Why this shape").
type Execution struct {
	store *adaptation.Store
	s     solver.Solver
	xi    plan.Lit
}

// New returns an Execution theory over store, driven by s, guarded by the
// global literal xi. The caller is responsible for allocating xi and
// binding it to the solver before registering this theory.
func New(store *adaptation.Store, s solver.Solver, xi plan.Lit) *Execution {
	return &Execution{store: store, s: s, xi: xi}
}

// OnPropagate implements solver.PropagationTheory. It is the contract of
// spec.md section 4.1: when xi becomes true, every adaptation whose
// sigma_xi already holds is re-asserted; when some sigma_xi becomes true,
// that one atom's adaptations are re-asserted.
func (e *Execution) OnPropagate(p plan.Lit) bool {
	if p == e.xi {
		for _, ad := range e.store.All() {
			if e.s.Value(ad.SigmaXi) == solver.True {
				if !e.reassertAll(ad, ad.SigmaXi) {
					return false
				}
			}
		}
		return true
	}
	if !p.Positive() {
		return true
	}
	if ad, ok := e.store.ByGuardVar(p.Var()); ok {
		return e.reassertAll(ad, p)
	}
	return true
}

// Push is a no-op: see the Execution doc comment.
func (e *Execution) Push() {}

// Pop is a no-op: see the Execution doc comment.
func (e *Execution) Pop() {}

// Check is a no-op: see the Execution doc comment.
func (e *Execution) Check() bool { return true }

func (e *Execution) reassertAll(ad *adaptation.Adaptation, reason plan.Lit) bool {
	for name, b := range ad.Bounds {
		expr, ok := ad.Atom.Get(name)
		if !ok {
			continue
		}
		if !e.reassertOne(expr, b, reason) {
			return false
		}
	}
	return true
}

// reassertOne is the per-bound re-assertion algorithm of spec.md section
// 4.1: a match on the bound's tag, producing a forced implication, a
// no-op, or a conflict.
func (e *Execution) reassertOne(expr plan.Expression, b plan.Bound, reason plan.Lit) bool {
	switch bound := b.(type) {
	case plan.BoolBound:
		return e.reassertBool(expr.(plan.BoolExpr), bound, reason)
	case plan.ArithBound:
		return e.reassertArith(expr.(plan.ArithExpr), bound, reason)
	case plan.EnumBound:
		return e.reassertEnum(expr.(plan.EnumExpr), bound, reason)
	default:
		return true
	}
}

func (e *Execution) reassertBool(expr plan.BoolExpr, bound plan.BoolBound, reason plan.Lit) bool {
	lit := expr.Lit
	want := lit
	if !bound.Value {
		want = lit.Negate()
	}
	switch e.s.Value(want) {
	case solver.True:
		return true
	case solver.Undefined:
		e.s.Record([]plan.Lit{want, reason.Negate()})
		return e.s.Conflict() == nil
	default: // False: current value contradicts the committed bound.
		e.s.SwapConflict([]plan.Lit{want, reason.Negate()})
		return false
	}
}

func (e *Execution) reassertArith(expr plan.ArithExpr, bound plan.ArithBound, reason plan.Lit) bool {
	if expr.Lin.IsConstant() {
		return true
	}
	v := e.s.NewVar(expr.Lin)
	if !e.s.SetLB(v, bound.LB, reason) {
		e.s.SwapConflict(e.s.LastConflict())
		return false
	}
	if !e.s.SetUB(v, bound.UB, reason) {
		e.s.SwapConflict(e.s.LastConflict())
		return false
	}
	return true
}

func (e *Execution) reassertEnum(expr plan.EnumExpr, bound plan.EnumBound, reason plan.Lit) bool {
	allowed := e.s.Allows(expr.Var, bound.Value)
	candidates := e.s.Values(expr.Var)
	if len(candidates) > 1 {
		e.s.Record([]plan.Lit{allowed, reason.Negate()})
		return e.s.Conflict() == nil
	}
	if len(candidates) == 1 && candidates[0] == bound.Value {
		return true
	}
	e.s.SwapConflict([]plan.Lit{allowed, reason.Negate()})
	return false
}
