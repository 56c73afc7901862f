package timeline

import (
	"testing"

	"github.com/ratioSolver/PlExA/internal/plan"
	"github.com/ratioSolver/PlExA/internal/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arithVar(v plan.Var) plan.Expression {
	return plan.ArithExpr{Lin: plan.LinExpr{Terms: []plan.LinTerm{{Var: v, Num: 1, Den: 1}}}}
}

func forceTrue(t *testing.T, s *solver.RefSolver, l plan.Lit) {
	t.Helper()
	require.True(t, s.NewClause(l))
}

func TestRebuild_ImpulseAfterCurrentTime(t *testing.T) {
	s := solver.NewRefSolver()

	sigmaVar := s.NewSATVar()
	sigma := sigmaVar.Lit()
	atVar := s.NewSATVar()
	s.SetLinPoint(atVar, plan.FromInt(3))

	a := plan.Atom{ID: 1, Kind: plan.Impulse, Sigma: sigma, Vars: map[string]plan.Expression{
		plan.NameAT: arithVar(atVar),
	}}
	s.AddAtom(a, "fire")
	forceTrue(t, s, sigma)

	tl := New()
	tl.Rebuild(s, plan.FromInt(0))

	require.Equal(t, 1, tl.Len())
	pulse, ok := tl.Min()
	require.True(t, ok)
	assert.Equal(t, 0, pulse.Cmp(plan.FromInt(3)))
	assert.Len(t, tl.StartAtomsAt(plan.FromInt(3)), 1)
	assert.Len(t, tl.EndAtomsAt(plan.FromInt(3)), 1)
}

func TestRebuild_SkipsImpulseInPast(t *testing.T) {
	s := solver.NewRefSolver()
	sigmaVar := s.NewSATVar()
	sigma := sigmaVar.Lit()
	atVar := s.NewSATVar()
	s.SetLinPoint(atVar, plan.FromInt(1))

	a := plan.Atom{ID: 1, Kind: plan.Impulse, Sigma: sigma, Vars: map[string]plan.Expression{
		plan.NameAT: arithVar(atVar),
	}}
	s.AddAtom(a, "fire")
	forceTrue(t, s, sigma)

	tl := New()
	tl.Rebuild(s, plan.FromInt(5))

	assert.Equal(t, 0, tl.Len())
}

func TestRebuild_IntervalStartAndEnd(t *testing.T) {
	s := solver.NewRefSolver()
	sigmaVar := s.NewSATVar()
	sigma := sigmaVar.Lit()
	startVar := s.NewSATVar()
	endVar := s.NewSATVar()
	s.SetLinPoint(startVar, plan.FromInt(2))
	s.SetLinPoint(endVar, plan.FromInt(5))

	a := plan.Atom{ID: 1, Kind: plan.Interval, Sigma: sigma, Vars: map[string]plan.Expression{
		plan.NameSTART: arithVar(startVar),
		plan.NameEND:   arithVar(endVar),
	}}
	s.AddAtom(a, "span")
	forceTrue(t, s, sigma)

	tl := New()
	tl.Rebuild(s, plan.FromInt(0))

	require.Equal(t, 2, tl.Len())
	assert.Len(t, tl.StartAtomsAt(plan.FromInt(2)), 1)
	assert.Len(t, tl.EndAtomsAt(plan.FromInt(5)), 1)
	assert.Len(t, tl.StartAtomsAt(plan.FromInt(5)), 0)
}

func TestRebuild_IntervalStartedBeforeNowStillEnds(t *testing.T) {
	s := solver.NewRefSolver()
	sigmaVar := s.NewSATVar()
	sigma := sigmaVar.Lit()
	startVar := s.NewSATVar()
	endVar := s.NewSATVar()
	s.SetLinPoint(startVar, plan.FromInt(1))
	s.SetLinPoint(endVar, plan.FromInt(5))

	a := plan.Atom{ID: 1, Kind: plan.Interval, Sigma: sigma, Vars: map[string]plan.Expression{
		plan.NameSTART: arithVar(startVar),
		plan.NameEND:   arithVar(endVar),
	}}
	s.AddAtom(a, "span")
	forceTrue(t, s, sigma)

	tl := New()
	tl.Rebuild(s, plan.FromInt(3))

	assert.Len(t, tl.StartAtomsAt(plan.FromInt(1)), 0)
	assert.Len(t, tl.EndAtomsAt(plan.FromInt(5)), 1)
}

func TestRebuild_InactiveAtomIgnored(t *testing.T) {
	s := solver.NewRefSolver()
	sigmaVar := s.NewSATVar()
	sigma := sigmaVar.Lit()
	atVar := s.NewSATVar()
	s.SetLinPoint(atVar, plan.FromInt(3))

	a := plan.Atom{ID: 1, Kind: plan.Impulse, Sigma: sigma, Vars: map[string]plan.Expression{
		plan.NameAT: arithVar(atVar),
	}}
	s.AddAtom(a, "fire")
	forceTrue(t, s, sigma.Negate())

	tl := New()
	tl.Rebuild(s, plan.FromInt(0))

	assert.Equal(t, 0, tl.Len())
}

func TestRemove(t *testing.T) {
	tl := New()
	tl.addPulse(plan.FromInt(1))
	tl.addPulse(plan.FromInt(2))
	tl.Remove(plan.FromInt(1))
	require.Equal(t, 1, tl.Len())
	p, _ := tl.Min()
	assert.Equal(t, 0, p.Cmp(plan.FromInt(2)))
}
