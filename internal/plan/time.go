// Package plan holds the time, atom, expression, and bound types that the
// execution core and the solver collaborator interface (internal/solver)
// share.
package plan

import (
	"fmt"
	"math/big"
)

// Rational is an exact rational wall-plan time or duration. It wraps
// math/big.Rat: no ecosystem exact-rational library appears anywhere in
// the retrieval pack, and big.Rat is the standard library's own answer to
// the same problem, so no third-party substitute was dropped here.
type Rational struct {
	r big.Rat
}

// NewRational builds a Rational equal to num/den.
func NewRational(num, den int64) Rational {
	var out Rational
	out.r.SetFrac64(num, den)
	return out
}

// RationalFromInt builds a Rational equal to n.
func RationalFromInt(n int64) Rational {
	var out Rational
	out.r.SetInt64(n)
	return out
}

func (r Rational) String() string { return r.r.RatString() }

// Cmp returns -1, 0, or 1 as r is less than, equal to, or greater than o.
func (r Rational) Cmp(o Rational) int { return r.r.Cmp(&o.r) }

// Add returns r + o.
func (r Rational) Add(o Rational) Rational {
	var out Rational
	out.r.Add(&r.r, &o.r)
	return out
}

// Sub returns r - o.
func (r Rational) Sub(o Rational) Rational {
	var out Rational
	out.r.Sub(&r.r, &o.r)
	return out
}

// Max returns the greater of r and o.
func (r Rational) Max(o Rational) Rational {
	if r.Cmp(o) >= 0 {
		return r
	}
	return o
}

// IsZero reports whether r is exactly zero.
func (r Rational) IsZero() bool { return r.r.Sign() == 0 }

// InfKind distinguishes finite values from the two plan-wide infinities.
type InfKind int

const (
	Finite InfKind = iota
	PosInf
	NegInf
)

// InfRational is a rational scalar plus an integer epsilon-multiplier, used
// throughout scheduling so that strict inequalities can be expressed
// without resorting to ties (spec.md section 3, "infinitesimal rationals").
// A PosInf/NegInf InfRational carries no meaningful Value or Eps.
type InfRational struct {
	Kind  InfKind
	Value Rational
	Eps   int64
}

// PositiveInfinity returns the plan-wide +infinity value.
func PositiveInfinity() InfRational { return InfRational{Kind: PosInf} }

// NegativeInfinity returns the plan-wide -infinity value.
func NegativeInfinity() InfRational { return InfRational{Kind: NegInf} }

// FromRational lifts a finite Rational into an InfRational with zero
// epsilon.
func FromRational(r Rational) InfRational { return InfRational{Kind: Finite, Value: r} }

// FromInt lifts an integer into a finite InfRational.
func FromInt(n int64) InfRational { return FromRational(RationalFromInt(n)) }

// WithEps returns q shifted by the given number of epsilons, e.g. to
// express "strictly after q" as WithEps(q, 1).
func WithEps(q InfRational, eps int64) InfRational {
	if q.Kind != Finite {
		return q
	}
	return InfRational{Kind: Finite, Value: q.Value, Eps: q.Eps + eps}
}

// Cmp orders InfRational values: NegInf < any finite < PosInf, finite
// values compare by (Value, Eps) lexicographically.
func (q InfRational) Cmp(o InfRational) int {
	if q.Kind != o.Kind {
		switch {
		case q.Kind == NegInf || o.Kind == PosInf:
			return -1
		case q.Kind == PosInf || o.Kind == NegInf:
			return 1
		}
	}
	if q.Kind != Finite {
		return 0 // both same infinite kind
	}
	if c := q.Value.Cmp(o.Value); c != 0 {
		return c
	}
	switch {
	case q.Eps < o.Eps:
		return -1
	case q.Eps > o.Eps:
		return 1
	default:
		return 0
	}
}

func (q InfRational) Less(o InfRational) bool    { return q.Cmp(o) < 0 }
func (q InfRational) LessEq(o InfRational) bool  { return q.Cmp(o) <= 0 }
func (q InfRational) Greater(o InfRational) bool { return q.Cmp(o) > 0 }

// Add adds a finite Rational offset to q. Adding to an infinite value is a
// no-op: infinity plus anything finite is still infinity.
func (q InfRational) Add(d Rational) InfRational {
	if q.Kind != Finite {
		return q
	}
	return InfRational{Kind: Finite, Value: q.Value.Add(d), Eps: q.Eps}
}

// Max returns the greater of q and o.
func (q InfRational) Max(o InfRational) InfRational {
	if q.Cmp(o) >= 0 {
		return q
	}
	return o
}

func (q InfRational) String() string {
	switch q.Kind {
	case PosInf:
		return "+inf"
	case NegInf:
		return "-inf"
	default:
		if q.Eps == 0 {
			return q.Value.String()
		}
		return fmt.Sprintf("%s%+dε", q.Value.String(), q.Eps)
	}
}
