package solver

import (
	"testing"

	"github.com/ratioSolver/PlExA/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// R2: backjumping past the decision level that narrowed a linear bound
// must leave no residual lb/ub constraint behind — the bound reverts to
// whatever it was before that decision, exactly as the boolean trail
// reverts assignments made at the popped level.
func TestPop_UndoesLinearBoundNarrowedAtPoppedLevel(t *testing.T) {
	s := NewRefSolver()

	d := s.NewSATVar()
	dl := d.Lit()
	s.TakeDecision(dl)
	require.Equal(t, 1, s.level)

	v := s.NewSATVar()
	expr := plan.ArithExpr{Lin: plan.LinExpr{Terms: []plan.LinTerm{{Var: v, Num: 1, Den: 1}}}}

	lbBefore, ubBefore := s.ArithBounds(expr)
	require.Equal(t, 0, lbBefore.Cmp(plan.NegativeInfinity()))
	require.Equal(t, 0, ubBefore.Cmp(plan.PositiveInfinity()))

	require.True(t, s.SetLB(v, plan.FromInt(5), dl))
	lb, _ := s.ArithBounds(expr)
	require.Equal(t, 0, lb.Cmp(plan.FromInt(5)))

	// Force a conflict that is only resolved by undoing the decision at
	// level 1: the conflict clause contains dl's negation, which is false
	// while dl holds and becomes unassigned (hence "satisfied or has an
	// unassigned literal") only once Pop() removes it.
	s.SwapConflict([]plan.Lit{dl.Negate()})
	require.True(t, s.BacktrackAnalyzeAndBackjump())
	assert.Equal(t, 0, s.level)

	lbAfter, ubAfter := s.ArithBounds(expr)
	assert.Equal(t, 0, lbAfter.Cmp(plan.NegativeInfinity()), "backjumping past the freezing decision must clear the narrowed lower bound")
	assert.Equal(t, 0, ubAfter.Cmp(plan.PositiveInfinity()))
}

// Bounds narrowed at a level that survives a backjump must stay in place:
// only the popped levels' mutations are undone.
func TestPop_PreservesLinearBoundAtSurvivingLevel(t *testing.T) {
	s := NewRefSolver()

	outer := s.NewSATVar()
	outerLit := outer.Lit()
	s.TakeDecision(outerLit)

	v := s.NewSATVar()
	expr := plan.ArithExpr{Lin: plan.LinExpr{Terms: []plan.LinTerm{{Var: v, Num: 1, Den: 1}}}}
	require.True(t, s.SetLB(v, plan.FromInt(3), outerLit))

	inner := s.NewSATVar()
	innerLit := inner.Lit()
	s.TakeDecision(innerLit)
	require.True(t, s.SetLB(v, plan.FromInt(7), innerLit))

	s.SwapConflict([]plan.Lit{innerLit.Negate()})
	require.True(t, s.BacktrackAnalyzeAndBackjump())
	assert.Equal(t, 1, s.level, "only the inner decision should have been popped")

	lb, _ := s.ArithBounds(expr)
	assert.Equal(t, 0, lb.Cmp(plan.FromInt(3)), "the outer level's bound must survive a backjump that stops above it")
}
