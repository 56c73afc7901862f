// Package script loads scenario/adaptation-script fixtures: YAML files
// describing atoms, predicates, and goal clauses, schema-checked with an
// embedded CUE definition, and turned into calls against internal/solver.
// It is the stand-in for "parsing of the planning domain script" that
// spec.md section 1 lists as an external collaborator — it implements
// fixture loading only, never planning (spec.md section 4.7).
package script

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/ratioSolver/PlExA/internal/plan"
	"github.com/ratioSolver/PlExA/internal/solver"
)

// schemaSrc is the CUE shape every scenario file must satisfy. It checks
// structure only — field presence and basic types — never planning
// semantics, which remain the out-of-scope collaborator's job.
const schemaSrc = `
atoms: [...{
	id:        int
	kind:      "impulse" | "interval"
	predicate: string
	sigma?:    int
	vars?: [string]: {
		type:   "bool" | "arith" | "enum"
		value?: string
		const?: string
		domain?: [...int]
	}
}]
clauses?: [...[...int]]
horizon?: string
`

// VarSpec describes one named expression on a fixture atom.
type VarSpec struct {
	Type   string `yaml:"type"`
	Value  string `yaml:"value,omitempty"`
	Const  string `yaml:"const,omitempty"`
	Domain []int  `yaml:"domain,omitempty"`
}

// AtomSpec describes one fixture atom.
type AtomSpec struct {
	ID        uint64             `yaml:"id"`
	Kind      string             `yaml:"kind"`
	Predicate string             `yaml:"predicate"`
	Sigma     int                `yaml:"sigma,omitempty"`
	Vars      map[string]VarSpec `yaml:"vars"`
}

// Scenario is a parsed, schema-validated fixture.
type Scenario struct {
	Atoms   []AtomSpec `yaml:"atoms"`
	Clauses [][]int    `yaml:"clauses,omitempty"`
	Horizon string     `yaml:"horizon,omitempty"`
}

// Load reads path, validates it against schemaSrc, and parses it into a
// Scenario.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("script: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and parses raw YAML bytes into a Scenario.
func Parse(data []byte) (Scenario, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return Scenario{}, fmt.Errorf("script: parse yaml: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc)
	if schema.Err() != nil {
		return Scenario{}, fmt.Errorf("script: internal schema error: %w", schema.Err())
	}
	val := ctx.Encode(normalizeForCUE(generic))
	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Scenario{}, fmt.Errorf("script: schema validation: %w", err)
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return Scenario{}, fmt.Errorf("script: decode: %w", err)
	}
	return scenario, nil
}

// normalizeForCUE converts map[any]any produced by some YAML decoders
// into map[string]any so cue.Context.Encode accepts it.
func normalizeForCUE(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = normalizeForCUE(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[fmt.Sprintf("%v", k)] = normalizeForCUE(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = normalizeForCUE(val)
		}
		return out
	default:
		return v
	}
}

// Apply installs the scenario's atoms and clauses into s. It satisfies
// executor.AdaptFunc's shape (func(solver.Solver) error) so a loaded
// Scenario can be passed directly to Executor.Adapt.
func (sc Scenario) Apply(s solver.Solver) error {
	ref, _ := s.(*solver.RefSolver)

	for _, as := range sc.Atoms {
		atom, err := sc.buildAtom(s, ref, as)
		if err != nil {
			return fmt.Errorf("script: atom %d: %w", as.ID, err)
		}
		s.AddAtom(atom, as.Predicate)
	}

	for _, clause := range sc.Clauses {
		lits := make([]plan.Lit, len(clause))
		for i, raw := range clause {
			lits[i] = plan.Lit(raw)
		}
		s.NewClause(lits...)
	}

	if sc.Horizon != "" && ref != nil {
		r, err := parseRational(sc.Horizon)
		if err != nil {
			return fmt.Errorf("script: horizon: %w", err)
		}
		ref.SetHorizon(plan.ArithExpr{Lin: plan.LinExpr{Constant: r}})
	}

	return nil
}

func (sc Scenario) buildAtom(s solver.Solver, ref *solver.RefSolver, as AtomSpec) (plan.Atom, error) {
	kind, err := parseKind(as.Kind)
	if err != nil {
		return plan.Atom{}, err
	}

	sigma, err := sc.resolveSigma(s, as.Sigma)
	if err != nil {
		return plan.Atom{}, err
	}

	vars := make(map[string]plan.Expression, len(as.Vars))
	for name, vs := range as.Vars {
		expr, err := buildExpr(s, ref, vs)
		if err != nil {
			return plan.Atom{}, fmt.Errorf("var %q: %w", name, err)
		}
		vars[name] = expr
	}

	return plan.Atom{ID: plan.ID(as.ID), Kind: kind, Sigma: sigma, Vars: vars}, nil
}

func (sc Scenario) resolveSigma(s solver.Solver, sigma int) (plan.Lit, error) {
	if sigma != 0 {
		return plan.Lit(sigma), nil
	}
	v := s.NewSATVar()
	l := v.Lit()
	if !s.NewClause(l) {
		return 0, fmt.Errorf("failed to force default activation literal true")
	}
	return l, nil
}

func buildExpr(s solver.Solver, ref *solver.RefSolver, vs VarSpec) (plan.Expression, error) {
	switch vs.Type {
	case "bool":
		v := s.NewSATVar()
		lit := v.Lit()
		if vs.Value != "" {
			want := lit
			if vs.Value == "false" {
				want = lit.Negate()
			}
			s.NewClause(want)
		}
		return plan.BoolExpr{Lit: lit}, nil
	case "arith":
		if vs.Const != "" {
			r, err := parseRational(vs.Const)
			if err != nil {
				return nil, err
			}
			return plan.ArithExpr{Lin: plan.LinExpr{Constant: r}}, nil
		}
		v := s.NewSATVar()
		if vs.Value != "" && ref != nil {
			val, err := parseRational(vs.Value)
			if err != nil {
				return nil, err
			}
			ref.SetLinPoint(v, plan.FromRational(val))
		}
		return plan.ArithExpr{Lin: plan.LinExpr{Terms: []plan.LinTerm{{Var: v, Num: 1, Den: 1}}}}, nil
	case "enum":
		v := s.NewSATVar()
		if len(vs.Domain) > 0 && ref != nil {
			refs := make([]plan.Ref, len(vs.Domain))
			for i, d := range vs.Domain {
				refs[i] = plan.Ref(d)
			}
			ref.SetEnumDomain(v, refs)
		}
		return plan.EnumExpr{Var: v}, nil
	default:
		return nil, fmt.Errorf("unknown var type %q", vs.Type)
	}
}

func parseKind(s string) (plan.Kind, error) {
	switch s {
	case "impulse":
		return plan.Impulse, nil
	case "interval":
		return plan.Interval, nil
	default:
		return 0, fmt.Errorf("unknown atom kind %q", s)
	}
}

func parseRational(s string) (plan.Rational, error) {
	parts := strings.SplitN(s, "/", 2)
	num, ok := new(big.Int).SetString(parts[0], 10)
	if !ok {
		return plan.Rational{}, fmt.Errorf("invalid rational %q", s)
	}
	den := big.NewInt(1)
	if len(parts) == 2 {
		den, ok = new(big.Int).SetString(parts[1], 10)
		if !ok {
			return plan.Rational{}, fmt.Errorf("invalid rational %q", s)
		}
	}
	return plan.NewRational(num.Int64(), den.Int64()), nil
}
