package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratioSolver/PlExA/internal/plan"
	"github.com/ratioSolver/PlExA/internal/solver"
)

const validFixture = `
atoms:
  - id: 1
    kind: impulse
    predicate: at-location
    vars:
      AT:
        type: arith
        value: "3"
  - id: 2
    kind: interval
    predicate: move
    vars:
      START:
        type: arith
        const: "0"
      END:
        type: arith
        value: "5"
      DURATION:
        type: arith
        value: "5"
horizon: "10"
`

func TestParse_ValidFixtureRoundTrips(t *testing.T) {
	sc, err := Parse([]byte(validFixture))
	require.NoError(t, err)
	require.Len(t, sc.Atoms, 2)
	assert.Equal(t, uint64(1), sc.Atoms[0].ID)
	assert.Equal(t, "impulse", sc.Atoms[0].Kind)
	assert.Equal(t, "10", sc.Horizon)
}

func TestParse_RejectsUnknownKind(t *testing.T) {
	_, err := Parse([]byte(`
atoms:
  - id: 1
    kind: bogus
    predicate: p
`))
	assert.Error(t, err)
}

func TestParse_RejectsMissingPredicate(t *testing.T) {
	_, err := Parse([]byte(`
atoms:
  - id: 1
    kind: impulse
`))
	assert.Error(t, err)
}

func TestScenario_ApplyRegistersAtomsAndHorizon(t *testing.T) {
	sc, err := Parse([]byte(validFixture))
	require.NoError(t, err)

	s := solver.NewRefSolver()
	require.NoError(t, sc.Apply(s))

	atom, ok := s.Atom(plan.ID(1))
	require.True(t, ok)
	assert.Equal(t, plan.Impulse, atom.Kind)
	at, ok := atom.Get(plan.NameAT)
	require.True(t, ok)
	assert.Equal(t, plan.ExprArith, at.Kind())

	horizon := s.Horizon()
	require.NotNil(t, horizon)
	assert.True(t, s.IsConstant(horizon))
}

func TestScenario_ApplyWithClausesForcesLiteral(t *testing.T) {
	sc, err := Parse([]byte(`
atoms:
  - id: 1
    kind: impulse
    predicate: p
    sigma: 1
clauses:
  - [1]
`))
	require.NoError(t, err)

	s := solver.NewRefSolver()
	s.NewSATVar() // pre-allocate var 1 so sigma: 1 refers to a real var
	require.NoError(t, sc.Apply(s))

	assert.Equal(t, solver.True, s.Value(plan.Lit(1)))
}

func TestScenario_ApplyDefaultSigmaIsForcedTrue(t *testing.T) {
	sc, err := Parse([]byte(`
atoms:
  - id: 1
    kind: impulse
    predicate: p
`))
	require.NoError(t, err)

	s := solver.NewRefSolver()
	require.NoError(t, sc.Apply(s))

	atom, ok := s.Atom(plan.ID(1))
	require.True(t, ok)
	assert.Equal(t, solver.True, s.Value(atom.Sigma))
}

func TestScenario_ApplyEnumSeedsDomain(t *testing.T) {
	sc, err := Parse([]byte(`
atoms:
  - id: 1
    kind: impulse
    predicate: p
    vars:
      AT:
        type: arith
        const: "0"
      LOCATION:
        type: enum
        domain: [1, 2, 3]
`))
	require.NoError(t, err)

	s := solver.NewRefSolver()
	require.NoError(t, sc.Apply(s))

	atom, _ := s.Atom(plan.ID(1))
	loc, ok := atom.Get("LOCATION")
	require.True(t, ok)
	enumExpr := loc.(plan.EnumExpr)
	assert.ElementsMatch(t, []plan.Ref{1, 2, 3}, s.Values(enumExpr.Var))
}
