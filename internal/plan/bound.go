package plan

// BoundKind tags the three Bound variants spec.md section 3 defines
// ("AtomAdaptation... bounds: mapping from expression identity to one of
// BoolBound(value), ArithBound(lb, ub), EnumBound(value_ref)").
type BoundKind int

const (
	BoundBool BoundKind = iota
	BoundArith
	BoundEnum
)

// Bound is a sealed interface over the three recorded-bound variants.
// Sum-typed per spec.md section 9, replacing the source's inheritance
// hierarchy (item_bounds / bool_bounds / arith_bounds / var_bounds).
type Bound interface {
	Kind() BoundKind
}

// BoolBound pins a bool expression to value.
type BoolBound struct {
	Value bool
}

func (BoolBound) Kind() BoundKind { return BoundBool }

// ArithBound constrains an arithmetic expression to [LB, UB]. Freezing an
// expression is expressed as LB == UB.
type ArithBound struct {
	LB, UB InfRational
}

func (ArithBound) Kind() BoundKind { return BoundArith }

// IsFrozenAt reports whether this is a frozen (point) bound equal to v.
func (b ArithBound) IsFrozenAt(v InfRational) bool {
	return b.LB.Cmp(v) == 0 && b.UB.Cmp(v) == 0
}

// EnumBound pins an enum expression to a single domain value.
type EnumBound struct {
	Value Ref
}

func (EnumBound) Kind() BoundKind { return BoundEnum }
