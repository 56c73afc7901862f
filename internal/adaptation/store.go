// Package adaptation owns the canonical record of what the executor has
// told the solver about each atom: the Atom Adaptation Store of spec.md
// section 4.2.
package adaptation

import (
	"github.com/ratioSolver/PlExA/internal/plan"
	"github.com/ratioSolver/PlExA/internal/solver"
)

// Adaptation is one atom's committed adaptation record: a theory-literal
// guard that gates it, and a map from expression name to the bound the
// executor has imposed (spec.md section 3, "AtomAdaptation").
//
// Atom is captured at creation time, not re-fetched from the solver on
// every access — atoms are immutable identity+shape+vars records once the
// solver creates them (spec.md section 3), so this is safe and lets the
// execution theory re-assert bounds without an atom-by-id lookup.
type Adaptation struct {
	Atom    plan.Atom
	SigmaXi plan.Lit
	Bounds  map[string]plan.Bound
}

// Store is the Atom Adaptation Store. Every method assumes the caller
// already holds whatever lock serializes access to the executor (spec.md
// section 5: the store is "owned by the executor and mutated only under
// its mutex") — Store itself does no locking.
type Store struct {
	byAtom     map[plan.ID]*Adaptation
	bySigmaVar map[plan.Var]plan.ID
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byAtom:     make(map[plan.ID]*Adaptation),
		bySigmaVar: make(map[plan.Var]plan.ID),
	}
}

// Get returns the adaptation recorded for atomID, if any.
func (s *Store) Get(atomID plan.ID) (*Adaptation, bool) {
	a, ok := s.byAtom[atomID]
	return a, ok
}

// ByGuardVar resolves a propagated σ_ξ variable back to its atom, used by
// the execution theory's on_propagate dispatch.
func (s *Store) ByGuardVar(v plan.Var) (*Adaptation, bool) {
	id, ok := s.bySigmaVar[v]
	if !ok {
		return nil, false
	}
	a := s.byAtom[id]
	return a, true
}

// All returns every recorded adaptation, in no particular order. Used by
// the execution theory when the global guard ξ itself propagates true.
func (s *Store) All() []*Adaptation {
	out := make([]*Adaptation, 0, len(s.byAtom))
	for _, a := range s.byAtom {
		out = append(out, a)
	}
	return out
}

// Create installs a fresh Adaptation for atom a, guarded by sigmaXi, with
// the initial bound on its start-point expression: ArithBound(currentTime,
// +inf) — "no activity may start in the past" (spec.md section 3). It is a
// no-op if a already has a recorded adaptation (spec.md section 3's
// invariant: at most one AtomAdaptation per atom).
func (s *Store) Create(a plan.Atom, sigmaVar plan.Var, sigmaXi plan.Lit, currentTime plan.InfRational) *Adaptation {
	if existing, ok := s.byAtom[a.ID]; ok {
		return existing
	}
	ad := &Adaptation{
		Atom:    a,
		SigmaXi: sigmaXi,
		Bounds:  make(map[string]plan.Bound),
	}
	ad.Bounds[a.StartName()] = plan.ArithBound{LB: currentTime, UB: plan.PositiveInfinity()}
	s.byAtom[a.ID] = ad
	s.bySigmaVar[sigmaVar] = a.ID
	return ad
}

// OnFlawCreated is the spec.md section 4.2 on_flaw_created operation: if f
// is an atom-flaw, allocate a fresh sigma_xi, bind it to the theory,
// register the retraction clause {not sigma(a), not xi, sigma_xi}, and
// record the initial adaptation. It is a no-op for non-atom flaws, and
// idempotent for an atom that already has a recorded adaptation.
func (s *Store) OnFlawCreated(sol solver.Solver, f solver.Flaw, xi plan.Lit, currentTime plan.InfRational) *Adaptation {
	if !f.IsAtomFlaw {
		return nil
	}
	a := f.Atom
	if existing, ok := s.byAtom[a.ID]; ok {
		return existing
	}
	sigmaVar := sol.NewSATVar()
	sigmaXi := sigmaVar.Lit()
	sol.Bind(sigmaVar)
	sol.NewClause(a.Sigma.Negate(), xi.Negate(), sigmaXi)
	return s.Create(a, sigmaVar, sigmaXi, currentTime)
}

// UpdateArithLB upserts the lower bound of the arithmetic bound on a's
// expression named name. If a bound already exists its upper bound is
// kept; otherwise the upper bound starts at +inf. The stored lower bound
// only ever increases (spec.md section 4.2's invariant and property P6),
// so this takes the max of the existing and requested lower bound rather
// than a bare replace.
func (s *Store) UpdateArithLB(atomID plan.ID, name string, lb plan.InfRational) {
	ad, ok := s.byAtom[atomID]
	if !ok {
		return
	}
	ub := plan.PositiveInfinity()
	if existing, ok := ad.Bounds[name]; ok {
		if ab, ok := existing.(plan.ArithBound); ok {
			ub = ab.UB
			if ab.LB.Cmp(lb) > 0 {
				lb = ab.LB
			}
		}
	}
	ad.Bounds[name] = plan.ArithBound{LB: lb, UB: ub}
}

// FreezeArith pins a's expression named name to the point value v.
func (s *Store) FreezeArith(atomID plan.ID, name string, v plan.InfRational) {
	ad, ok := s.byAtom[atomID]
	if !ok {
		return
	}
	ad.Bounds[name] = plan.ArithBound{LB: v, UB: v}
}

// FreezeBool pins a's expression named name to the boolean value v.
func (s *Store) FreezeBool(atomID plan.ID, name string, v bool) {
	ad, ok := s.byAtom[atomID]
	if !ok {
		return
	}
	ad.Bounds[name] = plan.BoolBound{Value: v}
}

// FreezeEnum pins a's expression named name to the single domain ref v.
func (s *Store) FreezeEnum(atomID plan.ID, name string, v plan.Ref) {
	ad, ok := s.byAtom[atomID]
	if !ok {
		return
	}
	ad.Bounds[name] = plan.EnumBound{Value: v}
}
