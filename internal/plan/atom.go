package plan

// Kind distinguishes the two atom shapes spec.md section 3 defines.
type Kind int

const (
	// Impulse atoms have a single time expression, AT.
	Impulse Kind = iota
	// Interval atoms have START, END, and DURATION expressions.
	Interval
)

func (k Kind) String() string {
	if k == Impulse {
		return "impulse"
	}
	return "interval"
}

// Standard expression names, per spec.md section 3.
const (
	NameAT       = "AT"
	NameSTART    = "START"
	NameEND      = "END"
	NameDURATION = "DURATION"
)

// ID is the opaque solver-owned identity of an atom. The executor never
// owns an atom; it only ever holds this id (spec.md section 9, "back-
// references from adaptation to atom").
type ID uint64

// Lit is an opaque SAT literal, as allocated by the solver collaborator.
// Negation is represented by Lit.Negate(); var identity is exposed by Var.
type Lit int32

// Negate returns the complementary literal.
func (l Lit) Negate() Lit { return -l }

// Var returns the variable this literal is defined over, always positive.
func (l Lit) Var() Var {
	if l < 0 {
		return Var(-l)
	}
	return Var(l)
}

// Positive reports whether l is the positive phase of its variable.
func (l Lit) Positive() bool { return l > 0 }

// Var is an opaque SAT variable handle.
type Var int32

// Lit returns the positive literal for v.
func (v Var) Lit() Lit { return Lit(v) }

// Atom is the executor's view of a solver-owned planning entity: an
// opaque identity, its shape, its activation literal, and the named
// expressions it owns (spec.md section 3).
type Atom struct {
	ID    ID
	Kind  Kind
	Sigma Lit // activation literal sigma
	Vars  map[string]Expression
}

// Get returns the named expression and whether it is present.
func (a Atom) Get(name string) (Expression, bool) {
	e, ok := a.Vars[name]
	return e, ok
}

// StartName returns the name of a's start-point expression: AT for
// impulse atoms, START for interval atoms.
func (a Atom) StartName() string {
	if a.Kind == Impulse {
		return NameAT
	}
	return NameSTART
}

// EndName returns the name of a's end-point expression: AT for impulse
// atoms, END for interval atoms.
func (a Atom) EndName() string {
	if a.Kind == Impulse {
		return NameAT
	}
	return NameEND
}
