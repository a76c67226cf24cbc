// Package equation turns a logical node definition into a CPT.
//
// An equation is an HCL expression, optionally preceded by a header naming
// the target and its parents:
//
//	InfoPriv (InfoGap, InformationFlow) = InfoGap == "Gap_Absent" || InformationFlow == "present" ? "present" : "absent"
//
// While compiling, each parent name is bound to the label of its current state
// and the target name is bound to the candidate target state. The expression
// may yield a bool (the candidate is true when it holds), a state label (the
// candidate is true when it matches) or a list of labels.
package equation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
)

// TieBreak selects what happens when a parent configuration makes zero or
// several target states true.
type TieBreak string

const (
	// TieBreakStrict rejects the equation.
	TieBreakStrict TieBreak = "strict"
	// TieBreakFirst keeps the first true state in declared order.
	TieBreakFirst TieBreak = "first"
	// TieBreakUniform spreads the mass over the true states, or over all
	// states when none is true.
	TieBreakUniform TieBreak = "uniform"
)

// Options configures equation compilation.
type Options struct {
	TieBreak TieBreak `yaml:"tie_break,omitempty" json:"tie_break,omitempty" validate:"omitempty,oneof=strict first uniform"`
	// Noise blends each deterministic row with the uniform distribution:
	// row = (1-Noise)*row + Noise/|states|.
	Noise float64 `yaml:"noise,omitempty" json:"noise,omitempty" validate:"gte=0,lt=1"`
}

// Domain describes a variable as seen by the compiler.
type Domain struct {
	Name   string
	States []string
}

// Equation is a parsed node definition.
type Equation struct {
	Source  string
	Target  string   // from the header, "" when absent
	Parents []string // from the header
	expr    hclsyntax.Expression
}

var headerRe = regexp.MustCompile(`(?s)^\s*([A-Za-z_][A-Za-z0-9_-]*)\s*\(([^()]*)\)\s*=([^=].*)$`)

// Parse parses an equation without binding it to a network.
func Parse(src string) (*Equation, error) {
	eq := &Equation{Source: src}
	body := src
	if m := headerRe.FindStringSubmatch(src); m != nil {
		eq.Target = m[1]
		for _, p := range strings.Split(m[2], ",") {
			if p = strings.TrimSpace(p); p != "" {
				eq.Parents = append(eq.Parents, p)
			}
		}
		body = m[3]
	}

	expr, diags := hclsyntax.ParseExpression([]byte(strings.TrimSpace(body)), "equation", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse equation %q: %s: %w", src, diags.Error(), internalerr.ErrInvalidInput)
	}
	eq.expr = expr
	return eq, nil
}

// Compile parses src and compiles it against target and its parents, given
// in canonical parent order.
func Compile(target Domain, parents []Domain, src string, opts Options) ([][]float64, error) {
	eq, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return eq.Compile(target, parents, opts)
}

// Compile enumerates every parent configuration (last parent fastest) and
// emits one CPT row per configuration.
func (eq *Equation) Compile(target Domain, parents []Domain, opts Options) ([][]float64, error) {
	if opts.Noise < 0 || opts.Noise >= 1 {
		return nil, fmt.Errorf("equation noise %v: %w", opts.Noise, internalerr.ErrInvalidConfig)
	}
	if err := eq.checkScope(target, parents); err != nil {
		return nil, err
	}

	cards := make([]int, len(parents))
	total := 1
	for i, p := range parents {
		cards[i] = len(p.States)
		total *= cards[i]
	}

	vars := make(map[string]cty.Value, len(parents)+1)
	ctx := &hcl.EvalContext{Variables: vars}
	states := make([]int, len(parents))
	rows := make([][]float64, 0, total)

	for r := 0; r < total; r++ {
		for i, p := range parents {
			vars[p.Name] = cty.StringVal(p.States[states[i]])
		}

		truth := make([]bool, len(target.States))
		for k, candidate := range target.States {
			vars[target.Name] = cty.StringVal(candidate)
			ok, err := eq.holds(ctx, target, candidate)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", describeRow(parents, states), err)
			}
			truth[k] = ok
		}

		row, err := resolve(truth, opts.TieBreak)
		if err != nil {
			return nil, fmt.Errorf("equation for %q at %s: %w", target.Name, describeRow(parents, states), err)
		}
		if opts.Noise > 0 {
			u := opts.Noise / float64(len(row))
			for i := range row {
				row[i] = (1-opts.Noise)*row[i] + u
			}
		}
		rows = append(rows, row)

		// odometer over parent states, last parent fastest
		for i := len(states) - 1; i >= 0; i-- {
			states[i]++
			if states[i] < cards[i] {
				break
			}
			states[i] = 0
		}
	}
	return rows, nil
}

// checkScope verifies the header against the real parent set and that the
// expression references only the target and its parents.
func (eq *Equation) checkScope(target Domain, parents []Domain) error {
	scope := make(map[string]struct{}, len(parents)+1)
	scope[target.Name] = struct{}{}
	for _, p := range parents {
		scope[p.Name] = struct{}{}
	}

	if eq.Target != "" {
		if eq.Target != target.Name {
			return fmt.Errorf("equation header names %q, compiling %q: %w", eq.Target, target.Name, internalerr.ErrInvalidInput)
		}
		if len(eq.Parents) != len(parents) {
			return fmt.Errorf("equation header lists %d parents, %q has %d: %w",
				len(eq.Parents), target.Name, len(parents), internalerr.ErrInvalidInput)
		}
		listed := make(map[string]struct{}, len(eq.Parents))
		for _, p := range eq.Parents {
			if _, ok := scope[p]; !ok || p == target.Name {
				return fmt.Errorf("equation header parent %q is not a parent of %q: %w", p, target.Name, internalerr.ErrInvalidInput)
			}
			if _, dup := listed[p]; dup {
				return fmt.Errorf("equation header lists %q twice: %w", p, internalerr.ErrInvalidInput)
			}
			listed[p] = struct{}{}
		}
	}

	for _, tr := range eq.expr.Variables() {
		name := tr.RootName()
		if _, ok := scope[name]; !ok {
			return fmt.Errorf("equation for %q references %q: %w", target.Name, name, internalerr.ErrNotFound)
		}
	}
	return nil
}

func (eq *Equation) holds(ctx *hcl.EvalContext, target Domain, candidate string) (bool, error) {
	val, diags := eq.expr.Value(ctx)
	if diags.HasErrors() {
		return false, fmt.Errorf("evaluate equation: %s: %w", diags.Error(), internalerr.ErrInvalidInput)
	}
	if val.IsNull() || !val.IsKnown() {
		return false, fmt.Errorf("equation yields no value: %w", internalerr.ErrInvalidInput)
	}

	ty := val.Type()
	switch {
	case ty.Equals(cty.Bool):
		return val.True(), nil
	case ty.Equals(cty.String):
		label := val.AsString()
		if !hasState(target, label) {
			return false, fmt.Errorf("equation yields %q for %q: %w", label, target.Name, internalerr.ErrUnknownState)
		}
		return label == candidate, nil
	case ty.IsListType() || ty.IsSetType() || ty.IsTupleType():
		found := false
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			if elem.IsNull() || !elem.IsKnown() || !elem.Type().Equals(cty.String) {
				return false, fmt.Errorf("equation yields a non-label element: %w", internalerr.ErrInvalidInput)
			}
			label := elem.AsString()
			if !hasState(target, label) {
				return false, fmt.Errorf("equation yields %q for %q: %w", label, target.Name, internalerr.ErrUnknownState)
			}
			if label == candidate {
				found = true
			}
		}
		return found, nil
	default:
		return false, fmt.Errorf("equation yields %s: %w", ty.FriendlyName(), internalerr.ErrInvalidInput)
	}
}

func resolve(truth []bool, tb TieBreak) ([]float64, error) {
	row := make([]float64, len(truth))
	count, first := 0, -1
	for i, t := range truth {
		if t {
			if first < 0 {
				first = i
			}
			count++
		}
	}

	switch {
	case count == 1:
		row[first] = 1
	case tb == TieBreakFirst && count > 1:
		row[first] = 1
	case tb == TieBreakUniform && count > 0:
		for i, t := range truth {
			if t {
				row[i] = 1 / float64(count)
			}
		}
	case tb == TieBreakUniform:
		for i := range row {
			row[i] = 1 / float64(len(row))
		}
	default:
		return nil, fmt.Errorf("%d states true: %w", count, internalerr.ErrNonDeterministicEquation)
	}
	return row, nil
}

func hasState(d Domain, label string) bool {
	for _, s := range d.States {
		if s == label {
			return true
		}
	}
	return false
}

func describeRow(parents []Domain, states []int) string {
	if len(parents) == 0 {
		return "(no parents)"
	}
	parts := make([]string, len(parents))
	for i, p := range parents {
		parts[i] = p.Name + "=" + p.States[states[i]]
	}
	return strings.Join(parts, ", ")
}
